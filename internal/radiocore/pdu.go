package radiocore

// Advertising PDU types, the low nibble of a primary/secondary advertising
// channel PDU's first header byte (RadioTask.c's PDU_Type enum).
const (
	pduADVInd        = 0x0
	pduADVDirectInd  = 0x1
	pduADVNonconnInd = 0x2
	pduScanReq       = 0x3
	pduScanRsp       = 0x4
	pduConnectInd    = 0x5
	pduADVScanInd    = 0x6
	pduADVExtInd     = 0x7

	// pduAUXConnectRsp is AUX_CONNECT_RSP, sent only on a secondary
	// advertising channel in response to AUX_CONNECT_REQ. RadioTask.h's
	// AdvPDUType enum only lists the eight legacy/primary-channel values
	// above; AUX_CONNECT_RSP is assigned here per the Core Spec's extended
	// advertising PDU type numbering rather than mirrored from that enum.
	pduAUXConnectRsp = 0x8
)

// Data channel LL control opcode, low 2 bits of the first header byte.
const llidControl = 0x3
