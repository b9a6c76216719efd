package stream

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/BullionBear/sequex/internal/kline"
	"github.com/BullionBear/sequex/internal/orderbook"
	"github.com/BullionBear/sequex/pkg/binance"
	"github.com/BullionBear/sequex/pkg/eventbus"
)

type staticDepthClient struct{ body string }

func (c *staticDepthClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(c.body))}, nil
}

func newTestEngine(mock binance.HTTPClient, bus *eventbus.EventBus) *Engine {
	client := binance.NewClientWithHTTPClient(binance.DefaultConfig(), mock)
	return New(client, bus, zerolog.Nop(), []kline.Period{kline.Period1m})
}

// TestReadyBarrierWaitsForEverySymbol exercises the startup depth barrier
// directly, bypassing Start's WebSocket dial: orderbook_open must not fire
// until every tracked symbol's snapshot has landed.
func TestReadyBarrierWaitsForEverySymbol(t *testing.T) {
	mock := &staticDepthClient{body: `{"lastUpdateId":1,"bids":[["10","1"]],"asks":[["11","1"]]}`}
	bus := eventbus.New()
	e := newTestEngine(mock, bus)

	e.symbols = []string{"A", "B"}
	e.books["A"] = orderbook.New("A")
	e.books["B"] = orderbook.New("B")
	atomic.StoreInt64(&e.depthPending, 2)

	fired := 0
	var snapshots map[string]orderbook.Snapshot
	bus.On("orderbook_open", func(args ...interface{}) {
		fired++
		snapshots = args[0].(map[string]orderbook.Snapshot)
	})

	e.loadDepth("A")
	if fired != 0 {
		t.Fatalf("expected orderbook_open to wait for symbol B, fired %d times", fired)
	}

	e.loadDepth("B")
	if fired != 1 {
		t.Fatalf("expected orderbook_open to fire exactly once, fired %d times", fired)
	}
	if _, ok := snapshots["A"]; !ok {
		t.Error("expected snapshot A present in the barrier payload")
	}
	if _, ok := snapshots["B"]; !ok {
		t.Error("expected snapshot B present in the barrier payload")
	}
}

// TestFailedSnapshotDoesNotAdvanceBarrier matches the fatal-on-failure
// barrier semantics: a failing snapshot never decrements depthPending, so
// orderbook_open can never fire for that cohort.
func TestFailedSnapshotDoesNotAdvanceBarrier(t *testing.T) {
	mock := &erroringDepthClient{}
	bus := eventbus.New()
	e := newTestEngine(mock, bus)

	e.symbols = []string{"A"}
	e.books["A"] = orderbook.New("A")
	atomic.StoreInt64(&e.depthPending, 1)

	fired := 0
	bus.On("orderbook_open", func(args ...interface{}) { fired++ })
	errs := 0
	bus.On("error", func(args ...interface{}) { errs++ })

	e.loadDepth("A")

	if fired != 0 {
		t.Errorf("expected orderbook_open never to fire after a failed snapshot, fired %d times", fired)
	}
	if errs != 1 {
		t.Errorf("expected exactly one error event, got %d", errs)
	}
	if atomic.LoadInt64(&e.depthPending) != 1 {
		t.Errorf("expected depthPending unchanged by a failed snapshot, got %d", e.depthPending)
	}
}

type erroringDepthClient struct{}

func (c *erroringDepthClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 400, Body: io.NopCloser(strings.NewReader(`{"code":-1121,"msg":"Invalid symbol."}`))}, nil
}
