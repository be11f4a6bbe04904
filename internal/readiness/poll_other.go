//go:build !unix

package readiness

import "time"

// pollFds reports every descriptor ready after sleeping the timeout; the
// caller's non-blocking reads decide what is actually pending.
func pollFds(watches []watch, timeout time.Duration) ([]bool, bool, error) {
	time.Sleep(timeout)
	ready := make([]bool, len(watches))
	for i := range ready {
		ready[i] = true
	}
	return ready, false, nil
}
