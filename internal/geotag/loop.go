package geotag

import (
	"errors"
	"fmt"

	"github.com/banshee-data/geotag/internal/capture"
	"github.com/banshee-data/geotag/internal/monitoring"
)

// Loop is the synchronization loop. It is driven by a single goroutine.
type Loop struct {
	dev  Device
	fix  Fixes
	enc  Encoder
	sink Sink
	wait Waiter

	next       uint64
	fixPending bool
	stats      Stats
}

// NewLoop wires the loop collaborators. wait may be nil, in which case the
// loop checks the device without blocking.
func NewLoop(dev Device, fix Fixes, enc Encoder, sink Sink, wait Waiter) *Loop {
	return &Loop{dev: dev, fix: fix, enc: enc, sink: sink, wait: wait}
}

// Stats returns the counters accumulated so far.
func (l *Loop) Stats() Stats { return l.stats }

// NextIndex is the index the next persisted frame will get.
func (l *Loop) NextIndex() uint64 { return l.next }

// Run iterates until lc is stopped or a fatal error occurs. The device must
// already be streaming.
func (l *Loop) Run(lc *LoopContext) error {
	for lc.Running() {
		if err := l.iterate(lc); err != nil {
			return err
		}
	}
	return nil
}

// iterate handles at most one frame. Every path out of it releases the
// frame it grabbed.
func (l *Loop) iterate(lc *LoopContext) (err error) {
	buf, ok, err := l.awaitFrame(lc)
	if err != nil || !ok {
		return err
	}
	l.stats.Frames++
	defer func() {
		if rerr := l.dev.Release(buf); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release buffer %d: %w", buf.Index, rerr))
		}
	}()

	pending := l.fix.Poll()
	l.fixPending = false
	if !pending {
		l.stats.NoFix++
		l.stats.Dropped++
		return nil
	}
	if _, err := l.fix.Fetch(); err != nil {
		return err
	}
	fix, fresh := l.fix.TakeFresh()
	if !fresh {
		l.stats.NonPosition++
		l.stats.Dropped++
		return nil
	}

	frame := GeoFrame{Pixels: buf.Bytes(), Format: l.dev.Format(), Fix: fix, Index: l.next}
	return l.persist(frame)
}

func (l *Loop) persist(f GeoFrame) error {
	name := l.enc.Filename(f.Index)
	if err := l.enc.Encode(f.Pixels, f.Format.Width, f.Format.Height, f.Format.BytesPerLine, name); err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Index, err)
	}
	rec := Record{
		Latitude:   f.Fix.Latitude,
		Longitude:  f.Fix.Longitude,
		FrameIndex: f.Index,
		FixTime:    f.Fix.Time,
		ImagePath:  name,
	}
	if err := l.sink.Append(rec); err != nil {
		return fmt.Errorf("persist frame %d: %w", f.Index, err)
	}
	l.next++
	l.stats.Persisted++
	monitoring.Logf("%s", rec)
	return nil
}

// awaitFrame waits until a frame is grabbed or lc is stopped.
func (l *Loop) awaitFrame(lc *LoopContext) (*capture.Buffer, bool, error) {
	for lc.Running() {
		if l.wait != nil {
			res, err := l.wait.Wait(l.fixPending)
			if err != nil {
				return nil, false, fmt.Errorf("wait for frame: %w", err)
			}
			if res.Fix {
				l.fixPending = true
			}
			if !res.Frame {
				continue
			}
		}
		buf, ok, err := l.dev.GrabFrame()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return buf, true, nil
		}
	}
	return nil, false, nil
}
