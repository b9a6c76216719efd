// Package tradebook keeps a bounded, append-only tape of market trades
// alongside a parallel tape of the caller's own fills.
package tradebook

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Side is one of buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is one tape entry. AskID/BidID are optional and left zero when the
// upstream doesn't report them.
type Trade struct {
	TID    int64
	Side   Side
	TsMs   int64
	Price  decimal.Decimal
	Amount decimal.Decimal
	AskID  int64
	BidID  int64
}

// TradeBook holds a market tape and an own-trades tape for one symbol.
// Duplicate trade IDs are permitted; the upstream may repost a trade and
// the book does not dedupe.
type TradeBook struct {
	Symbol string

	mu       sync.RWMutex
	market   []Trade
	own      []Trade
	maxEntry int
}

// New creates an empty book. maxEntry bounds each tape; 0 means unbounded.
func New(symbol string, maxEntry int) *TradeBook {
	return &TradeBook{Symbol: symbol, maxEntry: maxEntry}
}

// Add appends to the market tape.
func (tb *TradeBook) Add(t Trade) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.market = appendBounded(tb.market, t, tb.maxEntry)
}

// AddMyTrade appends to the own-trades tape.
func (tb *TradeBook) AddMyTrade(t Trade) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.own = appendBounded(tb.own, t, tb.maxEntry)
}

// Fetch returns up to size market-tape entries, newest first.
func (tb *TradeBook) Fetch(size int) []Trade {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return reverseTail(tb.market, size)
}

// FetchMyTrades returns up to size own-trades entries, newest first.
func (tb *TradeBook) FetchMyTrades(size int) []Trade {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return reverseTail(tb.own, size)
}

// Snapshot is an immutable copy of both tapes, safe to hand to event-bus
// subscribers.
type Snapshot struct {
	Symbol string
	Market []Trade
	Own    []Trade
}

// Snapshot copies both tapes in full, newest-last (storage order).
func (tb *TradeBook) Snapshot() Snapshot {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	market := make([]Trade, len(tb.market))
	copy(market, tb.market)
	own := make([]Trade, len(tb.own))
	copy(own, tb.own)
	return Snapshot{Symbol: tb.Symbol, Market: market, Own: own}
}

func appendBounded(tape []Trade, t Trade, max int) []Trade {
	tape = append(tape, t)
	if max > 0 && len(tape) > max {
		tape = tape[len(tape)-max:]
	}
	return tape
}

func reverseTail(tape []Trade, size int) []Trade {
	if size > len(tape) {
		size = len(tape)
	}
	out := make([]Trade, size)
	for i := 0; i < size; i++ {
		out[i] = tape[len(tape)-1-i]
	}
	return out
}
