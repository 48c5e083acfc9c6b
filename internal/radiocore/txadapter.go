package radiocore

import (
	"github.com/cwsl/blesniffercore/internal/radio"
	"github.com/cwsl/blesniffercore/internal/txring"
)

// txSourceAdapter satisfies radio.TXSource on top of a *txring.Ring. The two
// packages declare distinct TXEntry types on purpose (radio's doc comment:
// no import-time dependency on txring), so this is the conversion point
// between them.
type txSourceAdapter struct {
	ring *txring.Ring
}

func (a txSourceAdapter) Take() []radio.TXEntry {
	entries := a.ring.Take()
	out := make([]radio.TXEntry, len(entries))
	for i, e := range entries {
		out[i] = radio.TXEntry{LLID: e.LLID, Data: e.Data, EventCtr: e.EventCtr}
	}
	return out
}

func (a txSourceAdapter) Flush(n uint32) { a.ring.Flush(n) }
