// Package readiness blocks the capture loop until the camera or the fix
// source has data, so the loop never spins on an idle device.
package readiness

import (
	"time"

	"github.com/banshee-data/geotag/internal/timeutil"
)

// DefaultTimeout bounds each wait so the loop can re-read its run flag.
const DefaultTimeout = 250 * time.Millisecond

// Descriptor exposes a file descriptor that becomes readable when data is
// pending. ok is false when the holder has nothing to watch.
type Descriptor interface {
	Fd() (fd uintptr, ok bool)
}

// Result reports which side became ready. A side without a descriptor is
// always reported ready so the caller falls back to a non-blocking check.
type Result struct {
	Frame    bool
	Fix      bool
	TimedOut bool
}

// Poller waits on the frame and fix descriptors.
type Poller struct {
	Frame Descriptor
	Fix   Descriptor

	// Timeout bounds a blocking wait. Zero means DefaultTimeout.
	Timeout time.Duration
	// Idle is slept when one side cannot be watched, so that a source
	// without a descriptor is not checked in a tight loop.
	Idle  time.Duration
	Clock timeutil.Clock
}

// New returns a Poller over frame and fix. fix may be nil.
func New(frame, fix Descriptor, timeout time.Duration) *Poller {
	return &Poller{Frame: frame, Fix: fix, Timeout: timeout, Clock: timeutil.RealClock{}}
}

func (p *Poller) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p *Poller) idle() {
	if p.Idle <= 0 {
		return
	}
	if p.Clock == nil {
		time.Sleep(p.Idle)
		return
	}
	p.Clock.Sleep(p.Idle)
}

// watch is one descriptor considered by a wait.
type watch struct {
	fd    uintptr
	frame bool
}

// plan collects the descriptors to watch. fixPending drops the fix
// descriptor: data already known to be waiting would keep it readable and
// turn the wait into a busy loop.
func (p *Poller) plan(fixPending bool) (watches []watch, unwatched Result) {
	if p.Frame != nil {
		if fd, ok := p.Frame.Fd(); ok {
			watches = append(watches, watch{fd: fd, frame: true})
		} else {
			unwatched.Frame = true
		}
	}
	if p.Fix != nil && !fixPending {
		if fd, ok := p.Fix.Fd(); ok {
			watches = append(watches, watch{fd: fd})
		} else {
			unwatched.Fix = true
		}
	}
	return watches, unwatched
}

// Wait blocks until a watched descriptor is readable or the timeout passes.
// When a side has no descriptor the wait does not block; it checks the rest
// once and sleeps Idle instead.
func (p *Poller) Wait(fixPending bool) (Result, error) {
	watches, res := p.plan(fixPending)
	blocking := !res.Frame && !res.Fix
	if len(watches) == 0 {
		p.idle()
		return res, nil
	}

	timeout := p.timeout()
	if !blocking {
		timeout = 0
	}
	ready, timedOut, err := pollFds(watches, timeout)
	if err != nil {
		return Result{}, err
	}
	for i, w := range watches {
		if !ready[i] {
			continue
		}
		if w.frame {
			res.Frame = true
		} else {
			res.Fix = true
		}
	}
	if !blocking {
		p.idle()
		return res, nil
	}
	res.TimedOut = timedOut
	return res, nil
}
