package trader

import (
	"github.com/google/uuid"

	"github.com/BullionBear/sequex/internal/order"
	"github.com/BullionBear/sequex/pkg/eventbus"
)

// Trade is the handle returned by Trader.Order. It publishes its own
// lifecycle events (submit, error) to subscribers registered on it; it
// owns no goroutine of its own and is safe to drop once the caller no
// longer needs updates.
type Trade struct {
	ID      string
	Request order.Request

	bus *eventbus.EventBus
}

func newTrade(req order.Request) *Trade {
	return &Trade{
		ID:      uuid.NewString(),
		Request: req,
		bus:     eventbus.New(),
	}
}

// OnSubmit registers a handler for this trade's successful submission,
// called with the exchange-assigned order id.
func (t *Trade) OnSubmit(handler func(orderID int64)) {
	t.bus.On("submit", func(args ...interface{}) {
		handler(args[0].(int64))
	})
}

// OnError registers a handler for this trade's submission failure, called
// with the transport or upstream-HTTP error that caused it.
func (t *Trade) OnError(handler func(err error)) {
	t.bus.On("error", func(args ...interface{}) {
		handler(args[0].(error))
	})
}

func (t *Trade) emitSubmit(orderID int64) {
	t.bus.Emit("submit", orderID)
}

func (t *Trade) emitError(err error) {
	t.bus.Emit("error", err)
}
