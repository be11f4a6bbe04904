package capture

import (
	"errors"
	"fmt"
)

// Device is one capture session over a Driver.
type Device struct {
	driver Driver
	state  State
	path   string
	format Format
	pool   *BufferPool
}

// NewDevice returns an uninitialized device backed by driver.
func NewDevice(driver Driver) *Device {
	return &Device{driver: driver}
}

// State returns the current lifecycle state.
func (d *Device) State() State { return d.state }

// Path returns the device node passed to Init.
func (d *Device) Path() string { return d.path }

// Format returns the negotiated format. It is zero before Init.
func (d *Device) Format() Format { return d.format }

// Pool returns the buffer pool, or nil before Init.
func (d *Device) Pool() *BufferPool { return d.pool }

// Fd returns the readiness descriptor of the underlying driver.
func (d *Device) Fd() (uintptr, bool) {
	if d.state == Uninitialized {
		return 0, false
	}
	return d.driver.Fd()
}

func (d *Device) expect(op string, want State) error {
	if d.state != want {
		return fmt.Errorf("%w: %s requires %s, device is %s", ErrInvalidState, op, want, d.state)
	}
	return nil
}

// Init opens path, negotiates a YUYV format at width x height and maps
// bufferCount buffers. On failure every resource acquired so far is released
// and the device stays Uninitialized.
func (d *Device) Init(path string, width, height, bufferCount int) (err error) {
	if err := d.expect("Init", Uninitialized); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid resolution %dx%d", ErrFormatUnsupported, width, height)
	}
	if bufferCount < 1 {
		return fmt.Errorf("%w: buffer count must be positive, got %d", ErrBufferMapping, bufferCount)
	}

	if err := d.driver.Open(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceOpen, path, err)
	}
	var regions [][]byte
	requested := false
	defer func() {
		if err == nil {
			return
		}
		for i, r := range regions {
			_ = d.driver.UnmapBuffer(i, r)
		}
		if requested {
			_ = d.driver.FreeBuffers()
		}
		_ = d.driver.Close()
	}()

	want := Format{
		Width:        width,
		Height:       height,
		BytesPerLine: width * BytesPerPixelYUYV,
		PixelFormat:  PixelFmtYUYV,
	}
	got, err := d.driver.SetFormat(want)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormatUnsupported, err)
	}
	if got.PixelFormat != want.PixelFormat || got.Width != want.Width || got.Height != want.Height {
		return fmt.Errorf("%w: requested %s, driver offered %s", ErrFormatUnsupported, want, got)
	}
	if got.BytesPerLine < want.BytesPerLine {
		got.BytesPerLine = want.BytesPerLine
	}

	granted, err := d.driver.RequestBuffers(bufferCount)
	if err != nil {
		return fmt.Errorf("%w: request %d buffers: %v", ErrBufferMapping, bufferCount, err)
	}
	requested = true
	if granted < 1 {
		return fmt.Errorf("%w: driver granted no buffers", ErrBufferMapping)
	}
	for i := 0; i < granted; i++ {
		r, err := d.driver.MapBuffer(i)
		if err != nil {
			return fmt.Errorf("%w: map buffer %d: %v", ErrBufferMapping, i, err)
		}
		regions = append(regions, r)
	}

	d.path = path
	d.format = got
	d.pool = newBufferPool(d.driver, regions)
	d.state = Configured
	return nil
}

// StartCapturing submits every buffer to the driver queue and arms the stream.
func (d *Device) StartCapturing() error {
	if err := d.expect("StartCapturing", Configured); err != nil {
		return err
	}
	if err := d.pool.submitAll(); err != nil {
		d.abortStart()
		return fmt.Errorf("%w: %v", ErrStreamStart, err)
	}
	if err := d.driver.StreamOn(); err != nil {
		d.abortStart()
		return fmt.Errorf("%w: %v", ErrStreamStart, err)
	}
	d.state = Streaming
	return nil
}

// abortStart drops any buffers queued by a failed StartCapturing. STREAMOFF
// is the only way to make the driver forget queued buffers.
func (d *Device) abortStart() {
	_ = d.driver.StreamOff()
	d.pool.reclaim()
}

// GrabFrame polls for a filled buffer without blocking. ok is false, with a
// nil error, when no frame is ready yet. A returned buffer is held by the
// caller until Release.
func (d *Device) GrabFrame() (buf *Buffer, ok bool, err error) {
	if err := d.expect("GrabFrame", Streaming); err != nil {
		return nil, false, err
	}
	b, err := d.pool.Acquire()
	if errors.Is(err, ErrNoBufferReady) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Release hands a buffer obtained from GrabFrame back to the driver.
func (d *Device) Release(b *Buffer) error {
	if err := d.expect("Release", Streaming); err != nil {
		return err
	}
	return d.pool.Release(b)
}

// StopCapturing halts the stream and leaves every buffer Free.
func (d *Device) StopCapturing() error {
	if err := d.expect("StopCapturing", Streaming); err != nil {
		return err
	}
	err := d.driver.StreamOff()
	d.pool.reclaim()
	d.state = Configured
	if err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// Uninit unmaps every buffer and closes the device handle.
func (d *Device) Uninit() error {
	if err := d.expect("Uninit", Configured); err != nil {
		return err
	}
	var errs []error
	for i, r := range d.pool.regions() {
		if err := d.driver.UnmapBuffer(i, r); err != nil {
			errs = append(errs, fmt.Errorf("unmap buffer %d: %w", i, err))
		}
	}
	if err := d.driver.FreeBuffers(); err != nil {
		errs = append(errs, fmt.Errorf("free buffers: %w", err))
	}
	if err := d.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", d.path, err))
	}
	d.pool = nil
	d.format = Format{}
	d.state = Uninitialized
	return errors.Join(errs...)
}
