// Package chansel implements the BLE Channel Selection Algorithms #1 and #2
// (spec §4.3, C3): pure functions mapping (accessAddress, chanMap,
// eventCounter) to a physical data channel.
package chansel

import "errors"

// NumDataChannels is the number of BLE data channels (0-36).
const NumDataChannels = 37

// ErrEmptyChanMap is returned when a channel map has no set bits; CSA1 would
// otherwise divide by zero building its remapping table (spec §8 boundary
// case: "CSA1 must not divide by zero... implementations should refuse").
var ErrEmptyChanMap = errors.New("chansel: channel map has no used channels")

// usedChannels returns the sorted list of channel indices set in chanMap.
func usedChannels(chanMap uint64) []uint8 {
	used := make([]uint8, 0, NumDataChannels)
	for i := uint8(0); i < NumDataChannels; i++ {
		if chanMap&(1<<i) != 0 {
			used = append(used, i)
		}
	}
	return used
}

// ComputeMap1 builds the CSA1 remapping table (spec §4.3): for each channel
// i, table[i] = i if i is used, else the i-mod-numUsed'th used channel.
func ComputeMap1(chanMap uint64) ([NumDataChannels]uint8, error) {
	var table [NumDataChannels]uint8
	used := usedChannels(chanMap)
	if len(used) == 0 {
		return table, ErrEmptyChanMap
	}
	for i := uint8(0); i < NumDataChannels; i++ {
		if chanMap&(1<<i) != 0 {
			table[i] = i
		} else {
			table[i] = used[int(i)%len(used)]
		}
	}
	return table, nil
}

// CSA2 holds the per-connection state CSA2 needs between ComputeChannel
// calls: the channel identifier derived from the access address, and the
// used-channel remapping table derived from the channel map.
type CSA2 struct {
	chanMap           uint64
	channelIdentifier uint16
	remappingTable    []uint8
}

// NewCSA2 computes the mapping state for an access address and channel map
// (csa2_computeMapping in the original).
func NewCSA2(accessAddress uint32, chanMap uint64) (CSA2, error) {
	used := usedChannels(chanMap)
	if len(used) == 0 {
		return CSA2{}, ErrEmptyChanMap
	}
	lower := uint16(accessAddress & 0xFFFF)
	upper := uint16(accessAddress >> 16)
	return CSA2{
		chanMap:           chanMap,
		channelIdentifier: lower ^ upper,
		remappingTable:    used,
	}, nil
}

func permute(b uint16) uint16 {
	byte0 := uint8(b & 0xFF)
	byte1 := uint8(b >> 8)
	return uint16(bitReverseTable[byte0]) | uint16(bitReverseTable[byte1])<<8
}

func multiplyAdd(a, b uint16) uint16 {
	return uint16((uint32(a)*17 + uint32(b)) & 0xFFFF)
}

func (c CSA2) eprn(counter uint16) uint16 {
	u := counter ^ c.channelIdentifier
	u = permute(u)
	u = multiplyAdd(u, c.channelIdentifier)
	u = permute(u)
	u = multiplyAdd(u, c.channelIdentifier)
	u = permute(u)
	u = multiplyAdd(u, c.channelIdentifier)
	u ^= c.channelIdentifier
	return u
}

// ComputeChannel returns the physical channel for connEventCounter (spec
// §4.3, invariant #4: the returned channel is always set in chanMap).
func (c CSA2) ComputeChannel(connEventCounter uint32) uint8 {
	ePrn := c.eprn(uint16(connEventCounter & 0xFFFF))
	modEprn := uint8(ePrn % NumDataChannels)
	if c.chanMap&(1<<modEprn) != 0 {
		return modEprn
	}
	return c.remappingTable[(uint32(len(c.remappingTable))*uint32(ePrn))>>16]
}
