// Package trader submits orders gated on upstream readiness and reports
// their outcome asynchronously on a per-order Trade handle.
package trader

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/BullionBear/sequex/internal/order"
	"github.com/BullionBear/sequex/pkg/binance"
)

// Trader submits orders through a Client once an external readiness
// signal (typically the market-data engine's startup barrier, or an
// account-stream subscriber) has flipped. Orders placed before readiness
// are held on the Trader's Ready gate and submitted the instant it opens.
type Trader struct {
	client *binance.Client
	ready  *Ready
	logger zerolog.Logger
}

// New creates a Trader bound to client. Call Ready().Flip() once the
// caller considers the upstream ready for order submission.
func New(client *binance.Client, logger zerolog.Logger) *Trader {
	return &Trader{
		client: client,
		ready:  &Ready{},
		logger: logger.With().Str("component", "trader").Logger(),
	}
}

// Ready exposes the trader's readiness gate so the engine (or any other
// readiness source) can flip it.
func (t *Trader) Ready() *Ready {
	return t.ready
}

// Order returns a Trade handle immediately. If the trader is ready,
// submission starts now; otherwise it is deferred until Ready().Flip()
// runs. timeout bounds only the HTTP call itself, applied from the moment
// submission actually begins — not from the time Order is called, since
// that could be long before readiness.
func (t *Trader) Order(timeout time.Duration, req order.Request) *Trade {
	trade := newTrade(req)

	submit := func() { t.submit(timeout, trade) }
	if t.ready.IsReady() {
		go submit()
	} else {
		t.ready.OnReady(func() { go submit() })
	}

	return trade
}

func (t *Trader) submit(timeout time.Duration, trade *Trade) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ack, err := t.client.CreateOrder(ctx, toClientRequest(trade.Request))
	if err != nil {
		t.logger.Warn().Err(err).Str("trade", trade.ID).Msg("order submission failed")
		trade.emitError(err)
		return
	}

	t.logger.Info().Str("trade", trade.ID).Int64("order_id", ack.OrderID).Msg("order submitted")
	trade.emitSubmit(ack.OrderID)
}

func toClientRequest(req order.Request) binance.OrderRequest {
	cr := binance.OrderRequest{
		Symbol:   req.Symbol,
		Side:     req.Side.String(),
		Type:     req.Type.String(),
		Quantity: req.Quantity.String(),
	}
	if req.Type != order.TypeMarket {
		cr.Price = req.Price.String()
		cr.TimeInForce = "GTC"
	}
	return cr
}
