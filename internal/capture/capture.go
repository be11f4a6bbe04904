// Package capture drives a streaming camera through its lifecycle and manages
// the fixed pool of memory-mapped frame buffers shared with the kernel.
//
// A Device moves through Uninitialized, Configured and Streaming. While
// streaming, every buffer is owned by exactly one party: the driver queue
// (DeviceQueued) or the caller (ApplicationHeld). Buffers are never created or
// destroyed mid-stream, only re-owned by Acquire and Release.
package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceOpen is returned when the device node cannot be opened or is
	// not a streaming capture device.
	ErrDeviceOpen = errors.New("capture: device open failed")
	// ErrFormatUnsupported is returned when the driver refuses the requested
	// pixel format or resolution.
	ErrFormatUnsupported = errors.New("capture: format unsupported")
	// ErrBufferMapping is returned when buffers cannot be requested or mapped.
	ErrBufferMapping = errors.New("capture: buffer mapping failed")
	// ErrStreamStart is returned when the stream cannot be armed.
	ErrStreamStart = errors.New("capture: stream start failed")
	// ErrInvalidState is returned when an operation is called out of sequence.
	// It indicates a programming error.
	ErrInvalidState = errors.New("capture: invalid state")
	// ErrNoBufferReady is returned by Acquire when the driver has no filled
	// buffer. Callers retry.
	ErrNoBufferReady = errors.New("capture: no buffer ready")
	// ErrInvalidOwnership is returned when a buffer transition is attempted
	// from the wrong owner. It indicates a programming error.
	ErrInvalidOwnership = errors.New("capture: invalid buffer ownership")
)

// PixelFormat is a V4L2 four character code.
type PixelFormat uint32

// FourCC builds a PixelFormat from its four character code.
func FourCC(a, b, c, d byte) PixelFormat {
	return PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// PixelFmtYUYV is packed 4:2:2 luma/chroma, two bytes per pixel.
var PixelFmtYUYV = FourCC('Y', 'U', 'Y', 'V')

func (p PixelFormat) String() string {
	return string([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
}

// BytesPerPixelYUYV is the packed depth of PixelFmtYUYV.
const BytesPerPixelYUYV = 2

// Format is the negotiated image layout of a capture session.
type Format struct {
	Width        int
	Height       int
	BytesPerLine int
	PixelFormat  PixelFormat
}

// ImageSize returns the number of bytes in one frame.
func (f Format) ImageSize() int {
	return f.BytesPerLine * f.Height
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s stride=%d", f.Width, f.Height, f.PixelFormat, f.BytesPerLine)
}

// State is the lifecycle state of a Device.
type State int

const (
	Uninitialized State = iota
	Configured
	Streaming
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Streaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Driver is the kernel-facing half of a capture device. Implementations are
// not required to track buffer ownership; Device and BufferPool do that.
type Driver interface {
	// Open opens the device node and verifies it supports streaming capture.
	Open(path string) error
	// SetFormat requests a format and returns what the driver accepted.
	SetFormat(want Format) (Format, error)
	// RequestBuffers asks for count buffers and returns how many were granted.
	RequestBuffers(count int) (int, error)
	// MapBuffer maps buffer index into the process.
	MapBuffer(index int) ([]byte, error)
	// UnmapBuffer releases a mapping returned by MapBuffer.
	UnmapBuffer(index int, data []byte) error
	// FreeBuffers releases the driver's buffer allocation.
	FreeBuffers() error
	// Queue hands buffer index to the driver to be filled.
	Queue(index int) error
	// Dequeue returns a filled buffer without blocking. ok is false when no
	// buffer is ready.
	Dequeue() (index, bytesUsed int, ok bool, err error)
	StreamOn() error
	StreamOff() error
	Close() error
	// Fd returns the descriptor that becomes readable when a frame is ready.
	Fd() (uintptr, bool)
}
