//go:build linux

package capture

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Constants from linux/videodev2.h.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000

	v4l2BufTypeVideoCapture = 1
	v4l2MemoryMMAP          = 1
	v4l2FieldInterlaced     = 4
)

type v4l2Capability struct {
	Driver       [16]uint8
	Card         [32]uint8
	BusInfo      [32]uint8
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format. The 200 byte union contains
// pointers, so it is pointer aligned.
type v4l2Format struct {
	Type uint32
	Fmt  [200 / unsafe.Sizeof(uintptr(0))]uintptr
}

func (f *v4l2Format) pix() *v4l2PixFormat {
	return (*v4l2PixFormat)(unsafe.Pointer(&f.Fmt[0]))
}

type v4l2RequestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	Reserved     [3]uint8
}

type v4l2Timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	Userbits [4]uint8
}

type v4l2Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Timestamp unix.Timeval
	Timecode  v4l2Timecode
	Sequence  uint32
	Memory    uint32
	// M is the offset/userptr/planes/fd union; for MMAP the low 32 bits
	// hold the mapping offset.
	M         uintptr
	Length    uint32
	Reserved2 uint32
	RequestFD uint32
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('V')<<8 | nr
}

var (
	vidiocQueryCap  = ioc(iocRead, 0, unsafe.Sizeof(v4l2Capability{}))
	vidiocSFmt      = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqBufs   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQueryBuf  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDQBuf     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
)

// xioctl retries the request while it is interrupted by a signal.
func xioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

// V4L2Driver talks to a Video4Linux2 device node using memory-mapped
// streaming I/O. The node is opened non-blocking so Dequeue never waits.
type V4L2Driver struct {
	fd   int
	open bool
	card string
}

// NewV4L2Driver returns a driver with no device opened.
func NewV4L2Driver() *V4L2Driver {
	return &V4L2Driver{fd: -1}
}

// Card returns the device name reported by VIDIOC_QUERYCAP.
func (v *V4L2Driver) Card() string { return v.card }

func (v *V4L2Driver) Open(path string) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}

	var caps v4l2Capability
	if err := xioctl(fd, vidiocQueryCap, unsafe.Pointer(&caps)); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%s is not a V4L2 device: %w", path, err)
	}
	c := caps.Capabilities
	if c&v4l2CapDeviceCaps != 0 {
		c = caps.DeviceCaps
	}
	if c&v4l2CapVideoCapture == 0 {
		unix.Close(fd)
		return fmt.Errorf("%s does not support video capture", path)
	}
	if c&v4l2CapStreaming == 0 {
		unix.Close(fd)
		return fmt.Errorf("%s does not support streaming i/o", path)
	}

	v.fd = fd
	v.open = true
	v.card = unix.ByteSliceToString(caps.Card[:])
	return nil
}

func (v *V4L2Driver) SetFormat(want Format) (Format, error) {
	f := v4l2Format{Type: v4l2BufTypeVideoCapture}
	pix := f.pix()
	pix.Width = uint32(want.Width)
	pix.Height = uint32(want.Height)
	pix.PixelFormat = uint32(want.PixelFormat)
	pix.Field = v4l2FieldInterlaced
	if err := xioctl(v.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return Format{
		Width:        int(pix.Width),
		Height:       int(pix.Height),
		BytesPerLine: int(pix.BytesPerLine),
		PixelFormat:  PixelFormat(pix.PixelFormat),
	}, nil
}

func (v *V4L2Driver) requestBuffers(count int) (int, error) {
	req := v4l2RequestBuffers{
		Count:  uint32(count),
		Type:   v4l2BufTypeVideoCapture,
		Memory: v4l2MemoryMMAP,
	}
	if err := xioctl(v.fd, vidiocReqBufs, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	return int(req.Count), nil
}

func (v *V4L2Driver) RequestBuffers(count int) (int, error) {
	n, err := v.requestBuffers(count)
	if err != nil {
		return 0, err
	}
	if n < 2 {
		return n, fmt.Errorf("insufficient buffer memory: granted %d", n)
	}
	return n, nil
}

func (v *V4L2Driver) MapBuffer(index int) ([]byte, error) {
	buf := v4l2Buffer{
		Index:  uint32(index),
		Type:   v4l2BufTypeVideoCapture,
		Memory: v4l2MemoryMMAP,
	}
	if err := xioctl(v.fd, vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", index, err)
	}
	offset := int64(uint32(buf.M))
	return unix.Mmap(v.fd, offset, int(buf.Length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (v *V4L2Driver) UnmapBuffer(_ int, data []byte) error {
	return unix.Munmap(data)
}

func (v *V4L2Driver) FreeBuffers() error {
	_, err := v.requestBuffers(0)
	return err
}

func (v *V4L2Driver) Queue(index int) error {
	buf := v4l2Buffer{
		Index:  uint32(index),
		Type:   v4l2BufTypeVideoCapture,
		Memory: v4l2MemoryMMAP,
	}
	if err := xioctl(v.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

func (v *V4L2Driver) Dequeue() (int, int, bool, error) {
	buf := v4l2Buffer{
		Type:   v4l2BufTypeVideoCapture,
		Memory: v4l2MemoryMMAP,
	}
	err := xioctl(v.fd, vidiocDQBuf, unsafe.Pointer(&buf))
	if errors.Is(err, unix.EAGAIN) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	return int(buf.Index), int(buf.BytesUsed), true, nil
}

func (v *V4L2Driver) StreamOn() error {
	typ := int32(v4l2BufTypeVideoCapture)
	if err := xioctl(v.fd, vidiocStreamOn, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	return nil
}

func (v *V4L2Driver) StreamOff() error {
	typ := int32(v4l2BufTypeVideoCapture)
	if err := xioctl(v.fd, vidiocStreamOff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	return nil
}

func (v *V4L2Driver) Close() error {
	if !v.open {
		return nil
	}
	v.open = false
	fd := v.fd
	v.fd = -1
	return unix.Close(fd)
}

func (v *V4L2Driver) Fd() (uintptr, bool) {
	if !v.open {
		return 0, false
	}
	return uintptr(v.fd), true
}
