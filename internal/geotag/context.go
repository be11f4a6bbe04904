package geotag

import (
	"context"
	"sync/atomic"
)

// LoopContext carries the run flag of the capture loop. The loop reads it at
// iteration boundaries; Stop clears it exactly once and may be called from
// any goroutine, including a signal handler.
type LoopContext struct {
	running atomic.Bool
}

// NewLoopContext returns a context in the running state.
func NewLoopContext() *LoopContext {
	lc := &LoopContext{}
	lc.running.Store(true)
	return lc
}

// Running reports whether the loop should keep going.
func (lc *LoopContext) Running() bool {
	return lc.running.Load()
}

// Stop clears the run flag. It reports true only for the call that
// actually cleared it.
func (lc *LoopContext) Stop() bool {
	return lc.running.CompareAndSwap(true, false)
}

// StopWhenDone stops lc once ctx is cancelled. onStop, when non-nil, runs
// after the flag is cleared. The returned function releases the watcher.
func (lc *LoopContext) StopWhenDone(ctx context.Context, onStop func()) (release func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if lc.Stop() && onStop != nil {
				onStop()
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}
