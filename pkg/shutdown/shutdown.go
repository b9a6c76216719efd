package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Shutdown coordinates a graceful process exit: components register a
// callback with HookShutdownCallback, then the process waits on either an
// OS signal or a manual trigger before running every callback concurrently.
type Shutdown struct {
	logger    zerolog.Logger
	rootCtx   context.Context
	cancel    func()
	mutex     sync.Mutex
	callbacks []callback
	sigCh     chan os.Signal
}

type callback struct {
	name    string
	f       func()
	timeout time.Duration // 0 means no timeout
}

// NewShutdown creates a Shutdown bound to logger.
func NewShutdown(logger zerolog.Logger) *Shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	return &Shutdown{
		logger:    logger,
		rootCtx:   ctx,
		cancel:    cancel,
		callbacks: make([]callback, 0),
		sigCh:     sigCh,
	}
}

// HookShutdownCallback registers a callback to run during shutdown. If
// timeout is 0 the callback runs without a deadline; otherwise a callback
// that doesn't finish in time is logged and abandoned (its goroutine is
// not killed, only no longer waited on).
func (s *Shutdown) HookShutdownCallback(name string, f func(), timeout time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.callbacks = append(s.callbacks, callback{name: name, f: f, timeout: timeout})
}

// Context returns the root context, cancelled the moment shutdown begins.
func (s *Shutdown) Context() context.Context {
	return s.rootCtx
}

// SysDown returns a channel closed the moment shutdown begins.
func (s *Shutdown) SysDown() <-chan struct{} {
	return s.rootCtx.Done()
}

// WaitForShutdown blocks until an OS signal arrives, then runs every
// registered callback.
func (s *Shutdown) WaitForShutdown(sigs ...os.Signal) {
	if len(sigs) > 0 {
		signal.Notify(s.sigCh, sigs...)
	}
	<-s.sigCh
	s.cancel()
	s.logger.Info().Msg("shutdown signal received, waiting 1s to begin shutdown")
	time.Sleep(time.Second)
	s.shutdown()
	s.logger.Info().Msg("shutdown completed")
}

// ShutdownNow triggers shutdown programmatically, without waiting for a signal.
func (s *Shutdown) ShutdownNow() {
	s.cancel()
	s.logger.Info().Msg("manual shutdown triggered, waiting 1s to begin shutdown")
	time.Sleep(time.Second)
	s.shutdown()
	s.logger.Info().Msg("shutdown completed")
}

func (s *Shutdown) shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	wg := sync.WaitGroup{}
	for _, cb := range s.callbacks {
		wg.Add(1)
		go func(cb callback) {
			defer wg.Done()
			s.logger.Info().Str("name", cb.name).Msg("begin shutdown callback")

			var ctx context.Context
			var cancel context.CancelFunc
			if cb.timeout > 0 {
				ctx, cancel = context.WithTimeout(context.Background(), cb.timeout)
				defer cancel()
			} else {
				ctx = context.Background()
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				cb.f()
			}()

			select {
			case <-done:
				s.logger.Info().Str("name", cb.name).Msg("shutdown callback done")
			case <-ctx.Done():
				if cb.timeout > 0 {
					s.logger.Error().Str("name", cb.name).Dur("timeout", cb.timeout).Msg("shutdown callback timed out")
				}
			}
		}(cb)
	}
	wg.Wait()
}
