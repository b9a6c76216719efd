package trader

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/BullionBear/sequex/internal/order"
	"github.com/BullionBear/sequex/pkg/binance"
)

type countingHTTPClient struct {
	calls int32
	body  string
}

func (c *countingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

func testClient(mock binance.HTTPClient) *binance.Client {
	cfg := &binance.Config{APIKey: "key", APISecret: "secret"}
	return binance.NewClientWithHTTPClient(cfg, mock)
}

func TestTraderDefersOrderUntilReady(t *testing.T) {
	mock := &countingHTTPClient{body: `{"symbol":"BTCUSDT","orderId":42,"clientOrderId":"x","transactTime":1}`}
	tr := New(testClient(mock), zerolog.Nop())

	submitted := make(chan int64, 1)
	trade := tr.Order(0, order.Request{
		Symbol:   "BTCUSDT",
		Side:     order.SideBuy,
		Type:     order.TypeMarket,
		Quantity: decimal.NewFromInt(1),
	})
	trade.OnSubmit(func(orderID int64) { submitted <- orderID })

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&mock.calls) != 0 {
		t.Fatalf("expected no HTTP call before readiness, got %d", mock.calls)
	}

	tr.Ready().Flip()

	select {
	case id := <-submitted:
		if id != 42 {
			t.Errorf("expected order id 42, got %d", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for submit event")
	}

	if atomic.LoadInt32(&mock.calls) != 1 {
		t.Errorf("expected exactly one HTTP call, got %d", mock.calls)
	}
}

func TestTraderSubmitsImmediatelyWhenAlreadyReady(t *testing.T) {
	mock := &countingHTTPClient{body: `{"symbol":"BTCUSDT","orderId":7,"clientOrderId":"x","transactTime":1}`}
	tr := New(testClient(mock), zerolog.Nop())
	tr.Ready().Flip()

	submitted := make(chan int64, 1)
	trade := tr.Order(0, order.Request{
		Symbol:   "BTCUSDT",
		Side:     order.SideSell,
		Type:     order.TypeMarket,
		Quantity: decimal.NewFromInt(1),
	})
	trade.OnSubmit(func(orderID int64) { submitted <- orderID })

	select {
	case id := <-submitted:
		if id != 7 {
			t.Errorf("expected order id 7, got %d", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for submit event")
	}
}
