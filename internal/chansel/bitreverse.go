package chansel

// bitReverseTable[b] is b with its bits reversed within the byte. The
// original firmware generates this at compile time via a macro trick
// (R2/R4/R6 in csa2.c); Go has no constexpr, so the idiomatic equivalent is
// to compute it once at package init.
var bitReverseTable [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		b := uint8(i)
		var r uint8
		for bit := 0; bit < 8; bit++ {
			r <<= 1
			r |= b & 1
			b >>= 1
		}
		bitReverseTable[i] = r
	}
}
