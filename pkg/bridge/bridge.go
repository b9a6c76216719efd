// Package bridge republishes event-bus traffic onto NATS JetStream for an
// external consuming platform. It is an optional add-on: nothing in
// internal/stream or internal/trader depends on it.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/BullionBear/sequex/pkg/eventbus"
)

// busEvents is the full set of names the engine ever emits on the shared
// bus; Register subscribes to all of them so nothing silently fails to
// bridge. A trader.Trade's submit/error events go on that Trade's own bus
// and are not bridged.
var busEvents = []string{
	"orderbook_open",
	"tradebook_open",
	"kline_open",
	"ticker_message",
	"trade_message",
	"kline_message",
	"book_ticker",
	"error",
}

// symboledEvents carry the symbol they describe as their first argument
// (the engine emits these per symbol, not per fleet): Register builds
// <prefix>.<symbol>.<event> for these. The startup barriers and error
// describe the whole fleet rather than one symbol, so they keep the
// plain <prefix>.<event> subject.
var symboledEvents = map[string]bool{
	"ticker_message": true,
	"trade_message":  true,
	"kline_message":  true,
	"book_ticker":    true,
}

// NATSBridge republishes every bus event under subjectPrefix + "." + name,
// or subjectPrefix + "." + symbol + "." + name for the per-symbol events.
type NATSBridge struct {
	js            nats.JetStreamContext
	subjectPrefix string
	logger        zerolog.Logger
}

// New connects to a JetStream context on an already-dialed nats.Conn.
func New(nc *nats.Conn, subjectPrefix string, logger zerolog.Logger) (*NATSBridge, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}
	return &NATSBridge{
		js:            js,
		subjectPrefix: subjectPrefix,
		logger:        logger.With().Str("component", "nats-bridge").Logger(),
	}, nil
}

// Register subscribes to every bus event and republishes it to NATS. It
// should be called once, before the engine or trader start emitting.
func (b *NATSBridge) Register(bus *eventbus.EventBus) {
	for _, name := range busEvents {
		name := name
		bus.On(name, func(args ...interface{}) {
			b.publish(name, args)
		})
	}
}

func (b *NATSBridge) publish(event string, args []interface{}) {
	data, err := json.Marshal(args)
	if err != nil {
		b.logger.Warn().Err(err).Str("event", event).Msg("marshal bridged event failed")
		return
	}
	subject := b.subjectPrefix + "." + event
	if symboledEvents[event] {
		if symbol, ok := firstArgString(args); ok {
			subject = b.subjectPrefix + "." + symbol + "." + event
		}
	}
	if _, err := b.js.Publish(subject, data); err != nil {
		b.logger.Warn().Err(err).Str("subject", subject).Msg("publish bridged event failed")
	}
}

func firstArgString(args []interface{}) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
