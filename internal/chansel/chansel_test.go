package chansel

import "testing"

func TestComputeMap1IdentityOnUsedChannels(t *testing.T) {
	const chanMap = 0x1FFFFFFFFF // all 37 channels used
	table, err := ComputeMap1(chanMap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := uint8(0); i < NumDataChannels; i++ {
		if table[i] != i {
			t.Errorf("table[%d] = %d, want %d (invariant #3)", i, table[i], i)
		}
	}
}

func TestComputeMap1RemapsUnusedChannels(t *testing.T) {
	// channels 0 and 1 only
	const chanMap = 0x3
	table, err := ComputeMap1(chanMap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := uint8(0); i < NumDataChannels; i++ {
		if table[i] != 0 && table[i] != 1 {
			t.Errorf("table[%d] = %d, want 0 or 1", i, table[i])
		}
	}
	if table[0] != 0 || table[1] != 1 {
		t.Errorf("used channels must map to themselves: table[0]=%d table[1]=%d", table[0], table[1])
	}
}

func TestComputeMap1EmptyMapRefused(t *testing.T) {
	if _, err := ComputeMap1(0); err != ErrEmptyChanMap {
		t.Fatalf("expected ErrEmptyChanMap, got %v", err)
	}
}

func TestCSA2ComputeChannelAlwaysUsed(t *testing.T) {
	const chanMap = 0x1FFFFFFFFF
	csa2, err := NewCSA2(0x12345678, chanMap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for ctr := uint32(0); ctr < 2000; ctr++ {
		ch := csa2.ComputeChannel(ctr)
		if chanMap&(1<<ch) == 0 {
			t.Fatalf("ComputeChannel(%d) = %d, which is not set in chanMap (invariant #4)", ctr, ch)
		}
	}
}

func TestCSA2SparseMapAlwaysUsed(t *testing.T) {
	const chanMap = 0x0000000021 // channels 0 and 5
	csa2, err := NewCSA2(0xAABBCCDD, chanMap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for ctr := uint32(0); ctr < 500; ctr++ {
		ch := csa2.ComputeChannel(ctr)
		if ch != 0 && ch != 5 {
			t.Fatalf("ComputeChannel(%d) = %d, want 0 or 5", ctr, ch)
		}
	}
}

func TestNewCSA2EmptyMapRefused(t *testing.T) {
	if _, err := NewCSA2(0x1, 0); err != ErrEmptyChanMap {
		t.Fatalf("expected ErrEmptyChanMap, got %v", err)
	}
}

func TestBitReverseTableSelfInverse(t *testing.T) {
	for i := 0; i < 256; i++ {
		if bitReverseTable[bitReverseTable[i]] != uint8(i) {
			t.Fatalf("bitReverseTable not self-inverse at %d", i)
		}
	}
}
