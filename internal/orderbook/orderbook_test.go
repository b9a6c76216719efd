package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSnapshotThenDiff(t *testing.T) {
	ob := New("BTCUSDT")
	ob.Commit(100, Seed{
		Bids: []PriceLevel{{Price: d("10"), Volume: d("1")}},
		Asks: []PriceLevel{{Price: d("11"), Volume: d("2")}},
	})

	ob.Bid(d("10"), d("0"), 101)
	ob.Ask(d("12"), d("3"), 102)

	if _, ok := ob.MaxBid(); ok {
		t.Error("expected bids to be empty")
	}
	ask, ok := ob.MinAsk()
	if !ok || !ask.Price.Equal(d("11")) {
		t.Errorf("expected min ask 11, got %+v ok=%v", ask, ok)
	}
	if got := ob.Generation(); got != 102 {
		t.Errorf("expected generation 102, got %d", got)
	}
	asks := ob.TopAsks(10)
	if len(asks) != 2 || !asks[1].Price.Equal(d("12")) {
		t.Errorf("unexpected ask ladder: %+v", asks)
	}
}

func TestStaleDiffDropped(t *testing.T) {
	ob := New("BTCUSDT")
	ob.Commit(200, Seed{})

	delta := ob.Ask(d("50"), d("1"), 199)
	if delta != DeltaRejected {
		t.Errorf("expected stale diff rejected, got delta %d", delta)
	}
	if got := ob.Generation(); got != 200 {
		t.Errorf("book generation should be unchanged, got %d", got)
	}
	if _, ok := ob.MinAsk(); ok {
		t.Error("expected book unchanged by stale diff")
	}
}

func TestGenerationMonotonicOnAcceptedUpdates(t *testing.T) {
	ob := New("BTCUSDT")
	ob.Commit(10, Seed{})

	before := ob.Generation()
	ob.Bid(d("1"), d("1"), 11)
	after := ob.Generation()
	if after < before {
		t.Errorf("generation decreased: %d -> %d", before, after)
	}
}

func TestVolumeLookupInvariant(t *testing.T) {
	ob := New("BTCUSDT")
	ob.Bid(d("5"), d("2"), 1)

	bid, ok := ob.MaxBid()
	if !ok || !bid.Volume.Equal(d("2")) {
		t.Fatalf("expected volume 2 at price 5, got %+v ok=%v", bid, ok)
	}

	ob.Bid(d("5"), d("0"), 2)
	if _, ok := ob.MaxBid(); ok {
		t.Error("expected price absent after zero-volume update")
	}
}

func TestBestChangedReportsMovesAndSuppressesRepeats(t *testing.T) {
	ob := New("BTCUSDT")
	ob.Commit(1, Seed{
		Bids: []PriceLevel{{Price: d("10"), Volume: d("1")}},
		Asks: []PriceLevel{{Price: d("11"), Volume: d("1")}},
	})

	ticker, changed := ob.BestChanged()
	if !changed {
		t.Fatal("expected the first call to report a change from the zero value")
	}
	if !ticker.BestBid.Price.Equal(d("10")) || !ticker.BestAsk.Price.Equal(d("11")) {
		t.Errorf("unexpected ticker: %+v", ticker)
	}

	if _, changed := ob.BestChanged(); changed {
		t.Error("expected no change when best bid/ask are unchanged")
	}

	ob.Bid(d("10.5"), d("2"), 2)
	if ticker, changed := ob.BestChanged(); !changed || !ticker.BestBid.Price.Equal(d("10.5")) {
		t.Errorf("expected a new best bid to be reported changed: %+v changed=%v", ticker, changed)
	}
}

func TestSnapshotThenReplayingSameGenerationDiffIsIdempotent(t *testing.T) {
	ob := New("BTCUSDT")
	seed := Seed{
		Bids: []PriceLevel{{Price: d("10"), Volume: d("1")}},
		Asks: []PriceLevel{{Price: d("11"), Volume: d("2")}},
	}
	ob.Commit(100, seed)

	before := ob.Snapshot()
	// A diff carrying u == G must be rejected outright, not merely
	// happen to be a no-op: replay a level that would mutate the book
	// (remove the bid, insert a new ask) if it were wrongly accepted.
	bidDelta := ob.Bid(d("10"), d("0"), 100)
	askDelta := ob.Ask(d("99"), d("5"), 100)
	after := ob.Snapshot()

	if bidDelta != DeltaRejected || askDelta != DeltaRejected {
		t.Errorf("expected diff at u=G to be rejected, got bidDelta=%d askDelta=%d", bidDelta, askDelta)
	}
	if len(after.Bids) != len(before.Bids) || len(after.Asks) != len(before.Asks) {
		t.Errorf("replaying a diff at u=G mutated the book: %+v -> %+v", before, after)
	}
	if bid, ok := ob.MaxBid(); !ok || !bid.Price.Equal(d("10")) || !bid.Volume.Equal(d("1")) {
		t.Errorf("book no longer byte-identical to the snapshot: %+v ok=%v", bid, ok)
	}
	if _, ok := ob.MinAsk(); !ok {
		t.Error("expected ask side unchanged by the rejected diff")
	}
}
