package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/geotag/internal/timeutil"
)

var errNotStreaming = errors.New("synthetic: stream is off")

// SyntheticDriver is an in-memory stand-in for a camera. It keeps a kernel-style
// FIFO of queued buffers and fills them with a moving luma ramp. It is used in
// dev mode and by tests, which can inject failures through the *Err fields.
type SyntheticDriver struct {
	// Frames caps the number of frames produced. Negative means unlimited.
	Frames int
	// Interval paces frame production against Clock when both are set.
	Interval time.Duration
	Clock    timeutil.Clock
	// Offer, when set, replaces the format the driver accepts in SetFormat.
	Offer *Format
	// MaxBuffers caps RequestBuffers; zero grants whatever is asked.
	MaxBuffers int

	OpenErr      error
	FormatErr    error
	MapErr       error
	MapErrIndex  int
	StreamOnErr  error
	StreamOffErr error

	format    Format
	regions   [][]byte
	queue     []int
	open      bool
	streaming bool
	produced  int
	last      time.Time
	calls     []string
}

// NewSyntheticDriver returns a driver that produces frames limited frames.
func NewSyntheticDriver(frames int) *SyntheticDriver {
	return &SyntheticDriver{Frames: frames, MapErrIndex: -1}
}

// Calls returns the lifecycle calls made so far, in order.
func (s *SyntheticDriver) Calls() []string {
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Produced returns the number of frames handed out by Dequeue.
func (s *SyntheticDriver) Produced() int { return s.produced }

// Exhausted reports whether the frame budget has been used up.
func (s *SyntheticDriver) Exhausted() bool {
	return s.Frames >= 0 && s.produced >= s.Frames
}

// Queued returns the number of buffers waiting in the driver queue.
func (s *SyntheticDriver) Queued() int { return len(s.queue) }

func (s *SyntheticDriver) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *SyntheticDriver) Open(path string) error {
	s.record("open %s", path)
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.open = true
	return nil
}

func (s *SyntheticDriver) SetFormat(want Format) (Format, error) {
	s.record("set-format")
	if s.FormatErr != nil {
		return Format{}, s.FormatErr
	}
	s.format = want
	if s.Offer != nil {
		s.format = *s.Offer
	}
	return s.format, nil
}

func (s *SyntheticDriver) RequestBuffers(count int) (int, error) {
	s.record("request-buffers %d", count)
	if s.MaxBuffers > 0 && count > s.MaxBuffers {
		count = s.MaxBuffers
	}
	return count, nil
}

func (s *SyntheticDriver) MapBuffer(index int) ([]byte, error) {
	s.record("map %d", index)
	if s.MapErr != nil && (s.MapErrIndex < 0 || s.MapErrIndex == index) {
		return nil, s.MapErr
	}
	r := make([]byte, s.format.ImageSize())
	s.regions = append(s.regions, r)
	return r, nil
}

func (s *SyntheticDriver) UnmapBuffer(index int, _ []byte) error {
	s.record("unmap %d", index)
	return nil
}

func (s *SyntheticDriver) FreeBuffers() error {
	s.record("free-buffers")
	s.regions = nil
	return nil
}

func (s *SyntheticDriver) Queue(index int) error {
	if !s.open {
		return errors.New("synthetic: device closed")
	}
	for _, q := range s.queue {
		if q == index {
			return fmt.Errorf("synthetic: buffer %d already queued", index)
		}
	}
	s.queue = append(s.queue, index)
	return nil
}

func (s *SyntheticDriver) Dequeue() (int, int, bool, error) {
	if !s.streaming {
		return 0, 0, false, errNotStreaming
	}
	if s.Exhausted() || len(s.queue) == 0 {
		return 0, 0, false, nil
	}
	if s.Clock != nil && s.Interval > 0 {
		now := s.Clock.Now()
		if !s.last.IsZero() && now.Sub(s.last) < s.Interval {
			return 0, 0, false, nil
		}
		s.last = now
	}
	idx := s.queue[0]
	s.queue = s.queue[1:]
	s.fill(s.regions[idx])
	s.produced++
	return idx, len(s.regions[idx]), true, nil
}

// fill writes a horizontal luma ramp shifted by the frame number, with
// neutral chroma.
func (s *SyntheticDriver) fill(r []byte) {
	stride := s.format.BytesPerLine
	if stride <= 0 {
		return
	}
	for y := 0; y < s.format.Height; y++ {
		row := r[y*stride : (y+1)*stride]
		for x := 0; x+3 < len(row); x += 4 {
			px := x / 2
			row[x] = byte(px + s.produced)
			row[x+1] = 128
			row[x+2] = byte(px + 1 + s.produced)
			row[x+3] = 128
		}
	}
}

func (s *SyntheticDriver) StreamOn() error {
	s.record("stream-on")
	if s.StreamOnErr != nil {
		return s.StreamOnErr
	}
	s.streaming = true
	return nil
}

func (s *SyntheticDriver) StreamOff() error {
	s.record("stream-off")
	s.streaming = false
	s.queue = s.queue[:0]
	return s.StreamOffErr
}

func (s *SyntheticDriver) Close() error {
	s.record("close")
	s.open = false
	return nil
}

// Fd reports no descriptor; callers fall back to polling.
func (s *SyntheticDriver) Fd() (uintptr, bool) { return 0, false }
