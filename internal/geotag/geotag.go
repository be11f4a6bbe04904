// Package geotag pairs captured camera frames with fresh position fixes and
// persists one image and one record per pairing.
package geotag

import (
	"fmt"
	"time"

	"github.com/banshee-data/geotag/internal/capture"
	"github.com/banshee-data/geotag/internal/gpsfix"
	"github.com/banshee-data/geotag/internal/readiness"
)

// GeoFrame is a frame paired with the fix it was tagged with. Pixels alias
// the capture buffer and are only valid until the buffer is released.
type GeoFrame struct {
	Pixels []byte
	Format capture.Format
	Fix    gpsfix.Fix
	Index  uint64
}

// Record is what the sink persists for each tagged frame.
type Record struct {
	Latitude   float64
	Longitude  float64
	FrameIndex uint64
	FixTime    time.Time
	ImagePath  string
}

func (r Record) String() string {
	return fmt.Sprintf("time: %s lat: %f lon: %f image: %d",
		r.FixTime.UTC().Format(time.RFC3339), r.Latitude, r.Longitude, r.FrameIndex)
}

// Device is the capture device surface the loop drives.
type Device interface {
	StartCapturing() error
	GrabFrame() (*capture.Buffer, bool, error)
	Release(*capture.Buffer) error
	StopCapturing() error
	Uninit() error
	State() capture.State
	Format() capture.Format
}

// Fixes is the fix tracker surface the loop drives.
type Fixes interface {
	Poll() bool
	Fetch() (gpsfix.Fix, error)
	TakeFresh() (gpsfix.Fix, bool)
	Close() error
}

// Encoder writes one image artifact per tagged frame.
type Encoder interface {
	Filename(index uint64) string
	Encode(pixels []byte, width, height, stride int, filename string) error
}

// Sink persists tagged frame records.
type Sink interface {
	Append(Record) error
	Close() error
}

// Waiter blocks until a frame or fix may be ready.
type Waiter interface {
	Wait(fixPending bool) (readiness.Result, error)
}

// Stats counts what happened to the frames the loop grabbed.
type Stats struct {
	Frames      int
	Dropped     int
	NoFix       int
	NonPosition int
	Persisted   int
}

func (s Stats) String() string {
	return fmt.Sprintf("frames=%d persisted=%d dropped=%d (no fix %d, non-position %d)",
		s.Frames, s.Persisted, s.Dropped, s.NoFix, s.NonPosition)
}
