//go:build !linux

package capture

import "errors"

var errNoV4L2 = errors.New("video4linux is only available on linux")

// V4L2Driver is unavailable on this platform; every operation fails.
type V4L2Driver struct{}

// NewV4L2Driver returns a driver whose Open always fails.
func NewV4L2Driver() *V4L2Driver { return &V4L2Driver{} }

func (v *V4L2Driver) Card() string                     { return "" }
func (v *V4L2Driver) Open(string) error                { return errNoV4L2 }
func (v *V4L2Driver) SetFormat(Format) (Format, error) { return Format{}, errNoV4L2 }
func (v *V4L2Driver) RequestBuffers(int) (int, error)  { return 0, errNoV4L2 }
func (v *V4L2Driver) MapBuffer(int) ([]byte, error)    { return nil, errNoV4L2 }
func (v *V4L2Driver) UnmapBuffer(int, []byte) error    { return errNoV4L2 }
func (v *V4L2Driver) FreeBuffers() error               { return errNoV4L2 }
func (v *V4L2Driver) Queue(int) error                  { return errNoV4L2 }
func (v *V4L2Driver) Dequeue() (int, int, bool, error) { return 0, 0, false, errNoV4L2 }
func (v *V4L2Driver) StreamOn() error                  { return errNoV4L2 }
func (v *V4L2Driver) StreamOff() error                 { return errNoV4L2 }
func (v *V4L2Driver) Close() error                     { return nil }
func (v *V4L2Driver) Fd() (uintptr, bool)              { return 0, false }
