package packetring

import "github.com/cwsl/blesniffercore/internal/frame"

// Advertising PDU types (the low nibble of the first header byte), used to
// locate AdvA/RxAdd when filtering (spec §4.4, grounded on PacketTask.c's
// macFilterCheck).
const (
	pduADVIND        = 0x0
	pduADVDirectIND  = 0x1
	pduADVNonconnIND = 0x2
	pduSCANReq       = 0x3
	pduSCANRsp       = 0x4
	pduCONNECTInd    = 0x5
	pduADVScanIND    = 0x6
	pduADVExtInd     = 0x7
)

// MACLen is the length of a BLE device address in bytes.
const MACLen = 6

// MACFilter allows only advertising PDUs whose extracted AdvA/RxAdd address
// matches Target. RPA filtering uses a different mechanism (ResolverFilter)
// and the two are mutually exclusive (spec §4.4).
type MACFilter struct {
	Target [MACLen]byte
}

// Matches implements the address-extraction logic of macFilterCheck: AdvA
// sits at offset 2 for ADV_IND/DIRECT/NONCONN/SCAN_IND/SCAN_RSP, the
// advertiser's AdvA sits at offset 8 for SCAN_REQ/CONNECT_IND (after the
// scanner/initiator address at offset 2), and
// ADV_EXT_IND is always accepted since its AdvA (if any) lives in the aux
// packet, not the primary-channel PDU.
func (m MACFilter) Matches(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	pduType := payload[0] & 0xF
	switch pduType {
	case pduADVIND, pduADVDirectIND, pduADVNonconnIND, pduADVScanIND, pduSCANRsp:
		if len(payload) < 8 {
			return false
		}
		return macEqual(payload[2:8], m.Target)
	case pduSCANReq, pduCONNECTInd:
		if len(payload) < 14 {
			return false
		}
		return macEqual(payload[8:14], m.Target)
	case pduADVExtInd:
		return true
	default:
		return false
	}
}

func macEqual(b []byte, mac [MACLen]byte) bool {
	for i := 0; i < MACLen; i++ {
		if b[i] != mac[i] {
			return false
		}
	}
	return true
}

// Resolver resolves a resolvable private address against an IRK; satisfied
// by internal/rpa.Resolver, kept as an interface here so packetring does
// not depend on the AES primitive directly.
type Resolver interface {
	Resolve(rpa [MACLen]byte) bool
}

// RPAFilter allows advertising PDUs whose extracted address resolves
// against the configured IRK (spec §4.4's "IRK-based RPA matching").
type RPAFilter struct {
	Resolver Resolver
}

func (rf RPAFilter) Matches(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	pduType := payload[0] & 0xF
	var addr [MACLen]byte
	switch pduType {
	case pduADVIND, pduADVDirectIND, pduADVNonconnIND, pduADVScanIND, pduSCANRsp:
		if len(payload) < 8 {
			return false
		}
		copy(addr[:], payload[2:8])
	case pduSCANReq, pduCONNECTInd:
		if len(payload) < 14 {
			return false
		}
		copy(addr[:], payload[8:14])
	case pduADVExtInd:
		return true
	default:
		return false
	}
	return rf.Resolver.Resolve(addr)
}

// Filter is satisfied by MACFilter and RPAFilter.
type Filter interface {
	Matches(payload []byte) bool
}

// PassesFilter applies the RSSI floor and, if set, the MAC/RPA address
// filter to an advertising-channel frame. Non-advertising frames (channel <
// 37) and out-of-band frames (channel >= 40) are not subject to filtering.
func PassesFilter(f *frame.Frame, minRSSI int8, addrFilter Filter) bool {
	if !f.IsAdvertising() {
		return true
	}
	if f.RSSI < minRSSI {
		return false
	}
	if addrFilter != nil && !addrFilter.Matches(f.Payload()) {
		return false
	}
	return true
}
