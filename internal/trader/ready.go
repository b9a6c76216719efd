package trader

import "sync"

// Ready is a one-shot, edge-triggered future: OnReady registers a callback
// that fires exactly once, either immediately (if already flipped) or the
// moment Flip is called, whichever comes first. This gives pre- and
// post-readiness registration the same observable behavior.
type Ready struct {
	mu      sync.Mutex
	flipped bool
	waiters []func()
}

// OnReady registers f to run when the gate opens. If the gate is already
// open, f runs synchronously before OnReady returns.
func (r *Ready) OnReady(f func()) {
	r.mu.Lock()
	if r.flipped {
		r.mu.Unlock()
		f()
		return
	}
	r.waiters = append(r.waiters, f)
	r.mu.Unlock()
}

// Flip opens the gate and runs every pending waiter, in registration
// order. Subsequent calls are no-ops.
func (r *Ready) Flip() {
	r.mu.Lock()
	if r.flipped {
		r.mu.Unlock()
		return
	}
	r.flipped = true
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, w := range waiters {
		w()
	}
}

// IsReady reports whether Flip has already been called.
func (r *Ready) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flipped
}
