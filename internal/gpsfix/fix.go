// Package gpsfix tracks position fixes from a location source and hands each
// fresh position out at most once.
package gpsfix

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrSource reports a transport-level fault of a fix source. It is fatal to
// the capture loop.
var ErrSource = errors.New("gpsfix: source error")

// Kind classifies a report fetched from a source.
type Kind int

const (
	// Unknown is any report that carries no usable position.
	Unknown Kind = iota
	// PositionFix carries a latitude and longitude the system trusts.
	PositionFix
	// SkyView is a satellite status report.
	SkyView
)

func (k Kind) String() string {
	switch k {
	case PositionFix:
		return "position"
	case SkyView:
		return "sky"
	default:
		return "unknown"
	}
}

// Fix is one report from a fix source. Latitude and Longitude are only
// meaningful when Kind is PositionFix.
type Fix struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Kind      Kind
}

// HasPosition reports whether the fix carries usable coordinates.
func (f Fix) HasPosition() bool {
	return f.Kind == PositionFix &&
		!math.IsNaN(f.Latitude) && !math.IsNaN(f.Longitude) &&
		f.Latitude >= -90 && f.Latitude <= 90 &&
		f.Longitude >= -180 && f.Longitude <= 180
}

func (f Fix) String() string {
	if f.Kind != PositionFix {
		return fmt.Sprintf("%s report", f.Kind)
	}
	return fmt.Sprintf("time: %s lat: %f lon: %f", f.Time.UTC().Format(time.RFC3339Nano), f.Latitude, f.Longitude)
}

// Source is a location fix feed. Poll never blocks. Fetch decodes the next
// pending report and returns an error wrapping ErrSource on transport faults.
type Source interface {
	Poll() bool
	Fetch() (Fix, error)
	Close() error
}

// Descriptor is implemented by sources whose pending data can be observed on
// a file descriptor.
type Descriptor interface {
	Fd() (uintptr, bool)
}

func sourceError(op string, err error) error {
	if errors.Is(err, ErrSource) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrSource, op, err)
}
