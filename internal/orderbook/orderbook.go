// Package orderbook maintains a price-sorted bid/ask ladder per symbol,
// gated on a monotonic generation number so a REST snapshot and a live
// diff-depth stream can be fused into one consistent view.
package orderbook

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"
)

// Delta reports the structural effect bid/ask had on a price level.
type Delta int

const (
	DeltaRemoved  Delta = -1
	DeltaRejected Delta = 0
	DeltaInserted Delta = 1
)

func decimalComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

// PriceLevel is one (price, volume) pair of a snapshot seed or a diff.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

func (p PriceLevel) equalTo(other PriceLevel) bool {
	return p.Price.Equal(other.Price) && p.Volume.Equal(other.Volume)
}

// ladder is one side (bids or asks) of the book: a decimal-keyed ordered
// map giving O(log n) insert/delete and O(1) best-of-book via Min/Max.
type ladder struct {
	levels *treemap.Map
}

func newLadder() *ladder {
	return &ladder{levels: treemap.NewWith(decimalComparator)}
}

// apply inserts, updates, or removes price and reports the resulting delta.
func (l *ladder) apply(price, volume decimal.Decimal) Delta {
	_, existed := l.levels.Get(price)
	switch {
	case volume.IsZero():
		if !existed {
			return DeltaRejected
		}
		l.levels.Remove(price)
		return DeltaRemoved
	case existed:
		l.levels.Put(price, volume)
		return DeltaRejected
	default:
		l.levels.Put(price, volume)
		return DeltaInserted
	}
}

func (l *ladder) replaceAll(seed []PriceLevel) {
	l.levels.Clear()
	for _, lv := range seed {
		if lv.Volume.IsZero() {
			continue
		}
		l.levels.Put(lv.Price, lv.Volume)
	}
}

// min and max return the extreme levels of the side: min is the best ask,
// max is the best bid. ok is false when the side is empty.
func (l *ladder) min() (PriceLevel, bool) {
	if l.levels.Empty() {
		return PriceLevel{}, false
	}
	p, v := l.levels.Min()
	return PriceLevel{Price: p.(decimal.Decimal), Volume: v.(decimal.Decimal)}, true
}

func (l *ladder) max() (PriceLevel, bool) {
	if l.levels.Empty() {
		return PriceLevel{}, false
	}
	p, v := l.levels.Max()
	return PriceLevel{Price: p.(decimal.Decimal), Volume: v.(decimal.Decimal)}, true
}

// top returns up to n levels, ascending for asks (lowest first) and
// descending for bids (highest first).
func (l *ladder) top(n int, ascending bool) []PriceLevel {
	out := make([]PriceLevel, 0, n)
	it := l.levels.Iterator()
	if ascending {
		for it.Next() && len(out) < n {
			out = append(out, PriceLevel{Price: it.Key().(decimal.Decimal), Volume: it.Value().(decimal.Decimal)})
		}
	} else {
		for it.End(); it.Prev() && len(out) < n; {
			out = append(out, PriceLevel{Price: it.Key().(decimal.Decimal), Volume: it.Value().(decimal.Decimal)})
		}
	}
	return out
}

// OrderBook is the generation-gated bid/ask ladder for one symbol. Every
// mutating call takes the write lock, so a snapshot commit is atomic with
// respect to concurrent diff dispatch.
type OrderBook struct {
	Symbol string

	mu         sync.RWMutex
	bids       *ladder
	asks       *ladder
	generation int64

	lastBestBid PriceLevel
	lastBestAsk PriceLevel
}

// New creates an empty book at generation 0.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newLadder(),
		asks:   newLadder(),
	}
}

// Generation returns the last committed/applied generation.
func (ob *OrderBook) Generation() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.generation
}

// Bid applies a bid-side update. generation <= current generation is
// rejected: state is left untouched and Delta 0 is returned.
func (ob *OrderBook) Bid(price, volume decimal.Decimal, generation int64) Delta {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if generation <= ob.generation {
		return DeltaRejected
	}
	d := ob.bids.apply(price, volume)
	if generation > ob.generation {
		ob.generation = generation
	}
	return d
}

// Ask applies an ask-side update with the same gating rule as Bid.
func (ob *OrderBook) Ask(price, volume decimal.Decimal, generation int64) Delta {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if generation <= ob.generation {
		return DeltaRejected
	}
	d := ob.asks.apply(price, volume)
	if generation > ob.generation {
		ob.generation = generation
	}
	return d
}

// ApplyDiff applies every bid/ask level of one diff-depth event as a
// single atomic unit, gated once against g rather than once per level:
// a live event carries one generation (u) across many price levels, and
// gating per level would reject every level after the first once the
// book's generation catches up to the event's. Returns applied=false
// and leaves the book untouched when g <= the book's generation.
func (ob *OrderBook) ApplyDiff(g int64, bids, asks []PriceLevel) (applied bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if g <= ob.generation {
		return false
	}
	for _, lv := range bids {
		ob.bids.apply(lv.Price, lv.Volume)
	}
	for _, lv := range asks {
		ob.asks.apply(lv.Price, lv.Volume)
	}
	ob.generation = g
	return true
}

// Seed is a batch of levels for Commit, tagged by side.
type Seed struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// Commit atomically replaces both ladders with seed and sets the
// generation to g. After Commit, any diff carrying u <= g is stale and
// will be rejected by Bid/Ask.
func (ob *OrderBook) Commit(g int64, seed Seed) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids.replaceAll(seed.Bids)
	ob.asks.replaceAll(seed.Asks)
	ob.generation = g
}

// MinAsk returns the lowest ask, or ok=false if the ask side is empty.
func (ob *OrderBook) MinAsk() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.min()
}

// MaxBid returns the highest bid, or ok=false if the bid side is empty.
func (ob *OrderBook) MaxBid() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.max()
}

// TopAsks returns up to n ask levels, lowest price first.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.top(n, true)
}

// TopBids returns up to n bid levels, highest price first.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.top(n, false)
}

// Snapshot is an immutable copy of a book's state, suitable for handing to
// event-bus subscribers that must not alias live, mutable engine state.
type Snapshot struct {
	Symbol     string
	Bids       []PriceLevel // highest price first
	Asks       []PriceLevel // lowest price first
	Generation int64
}

// Snapshot copies the book's current state.
func (ob *OrderBook) Snapshot() Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return Snapshot{
		Symbol:     ob.Symbol,
		Bids:       ob.bids.top(ob.bids.levels.Size(), false),
		Asks:       ob.asks.top(ob.asks.levels.Size(), true),
		Generation: ob.generation,
	}
}

// BookTicker is a best-bid/best-ask snapshot, published on book_ticker
// when either side's top of book moves.
type BookTicker struct {
	Symbol  string
	BestBid PriceLevel
	BestAsk PriceLevel
}

// BestChanged reports the book's current best bid/ask and whether either
// moved since the last call, updating the change-detection cache in the
// same locked section so callers never miss or double-count a move.
func (ob *OrderBook) BestChanged() (BookTicker, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	bid, _ := ob.bids.max()
	ask, _ := ob.asks.min()
	changed := !bid.equalTo(ob.lastBestBid) || !ask.equalTo(ob.lastBestAsk)
	ob.lastBestBid, ob.lastBestAsk = bid, ask
	return BookTicker{Symbol: ob.Symbol, BestBid: bid, BestAsk: ask}, changed
}

// FirstDiffInRange reports whether a diff's [firstUpdate, finalUpdate]
// range straddles the book's committed generation g, i.e. U <= g+1 <= u.
// The engine calls this on the first live diff after a snapshot commit to
// decide whether a resnapshot is needed (see Engine.handleDepth).
func FirstDiffInRange(firstUpdate, finalUpdate, g int64) bool {
	return firstUpdate <= g+1 && g+1 <= finalUpdate
}
