// Package encode writes captured YUYV frames as image files.
package encode

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/banshee-data/geotag/internal/fsutil"
)

var (
	// ErrUnknownFormat is returned for an unsupported image format name.
	ErrUnknownFormat = errors.New("encode: unknown image format")
	// ErrBadFrame is returned when the pixel buffer does not match the
	// declared geometry.
	ErrBadFrame = errors.New("encode: malformed frame")
)

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	TIFF Format = "tiff"
	BMP  Format = "bmp"
)

// DefaultJPEGQuality is used when Encoder.Quality is unset.
const DefaultJPEGQuality = 90

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext is the file extension written for f.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// Encoder writes one file per frame into Dir, named by frame index.
type Encoder struct {
	FS      fsutil.FileSystem
	Dir     string
	Format  Format
	Gray    bool
	Quality int
}

// New prepares dir and returns an encoder writing format into it.
func New(fsys fsutil.FileSystem, dir string, format Format, gray bool) (*Encoder, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Encoder{FS: fsys, Dir: dir, Format: format, Gray: gray}, nil
}

// Filename returns the artifact path for a frame index.
func (e *Encoder) Filename(index uint64) string {
	return filepath.Join(e.Dir, strconv.FormatUint(index, 10)+"."+e.Format.Ext())
}

// Encode converts pixels and writes them to filename. A partially written
// file is removed on failure.
func (e *Encoder) Encode(pixels []byte, width, height, stride int, filename string) error {
	img, err := e.image(pixels, width, height, stride)
	if err != nil {
		return err
	}
	w, err := e.FS.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := e.write(w, img); err != nil {
		w.Close()
		_ = e.FS.Remove(filename)
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}
	return nil
}

func (e *Encoder) image(pixels []byte, width, height, stride int) (image.Image, error) {
	if e.Gray {
		return YUYVToGray(pixels, width, height, stride)
	}
	return YUYVToYCbCr(pixels, width, height, stride)
}

func (e *Encoder) write(w io.Writer, img image.Image) error {
	switch e.Format {
	case PNG, "":
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	case JPEG:
		q := e.Quality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, e.Format)
}
