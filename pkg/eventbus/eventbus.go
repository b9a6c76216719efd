// Package eventbus is a minimal named-event publish/subscribe facility.
// Handlers run synchronously, in registration order, on the emitting
// goroutine — callers that need concurrency hand off to their own worker
// pool inside the handler.
package eventbus

import "sync"

// Handler receives whatever arguments Emit's caller passed to Emit.
type Handler func(args ...interface{})

// EventBus dispatches named events to handlers registered with On.
type EventBus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// New creates an empty bus.
func New() *EventBus {
	return &EventBus{handlers: make(map[string][]Handler)}
}

// On registers handler for name. Handlers for the same name fire in the
// order they were registered.
func (b *EventBus) On(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Emit invokes every handler registered for name, synchronously, in
// registration order. Handlers registered after Emit begins are not
// included in this call's dispatch.
func (b *EventBus) Emit(name string, args ...interface{}) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers[name]))
	copy(handlers, b.handlers[name])
	b.mu.Unlock()

	for _, h := range handlers {
		h(args...)
	}
}
