package advcache

import "testing"

func mac(last byte) [MACLen]byte {
	return [MACLen]byte{0xA4, 0xC1, 0x38, 0xAA, 0xBB, last}
}

func TestFetchNotFound(t *testing.T) {
	var c Cache
	if got := c.Fetch(mac(0x01)); got != NotFound {
		t.Fatalf("got %#x, want NotFound", got)
	}
}

func TestStoreAndFetch(t *testing.T) {
	var c Cache
	c.Store(mac(0x01), 0x00)
	c.Store(mac(0x02), 0x20)

	if got := c.Fetch(mac(0x01)); got != 0x00 {
		t.Errorf("mac 0x01 header = %#x, want 0x00", got)
	}
	if got := c.Fetch(mac(0x02)); got != 0x20 {
		t.Errorf("mac 0x02 header = %#x, want 0x20", got)
	}
}

func TestOverwriteUpdatesMostRecentSlotOnly(t *testing.T) {
	var c Cache
	c.Store(mac(0x01), 0x00)
	c.Store(mac(0x01), 0x20) // same MAC seen again with different header

	if got := c.Fetch(mac(0x01)); got != 0x20 {
		t.Fatalf("expected newest header 0x20, got %#x", got)
	}
}

func TestWraparoundEvictsOldest(t *testing.T) {
	var c Cache
	for i := 0; i < Size; i++ {
		c.Store(mac(byte(i)), uint8(i))
	}
	// one more store evicts slot 0 (mac(0x00))
	c.Store(mac(0x99), 0xAA)

	if got := c.Fetch(mac(0x00)); got != NotFound {
		t.Fatalf("expected evicted entry to be gone, got %#x", got)
	}
	if got := c.Fetch(mac(0x99)); got != 0xAA {
		t.Fatalf("newest entry missing: got %#x", got)
	}
}
