// Package config loads the geotag run configuration from a JSON file. Every
// field is optional; the Get* accessors supply defaults for unset fields.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/geotag/internal/encode"
	"github.com/banshee-data/geotag/internal/gpsfix"
)

// Defaults applied when a field is unset.
const (
	DefaultDevice      = "/dev/video0"
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultBuffers     = 6
	DefaultGPSD        = "localhost:" + gpsfix.DefaultGPSDPort
	DefaultDBPath      = "images.db"
	DefaultOutDir      = "."
	DefaultFormat      = "png"
	DefaultWaitTimeout = 250 * time.Millisecond
	DefaultIdle        = 10 * time.Millisecond
	DefaultDevInterval = 100 * time.Millisecond
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration of a capture run.
type Config struct {
	// Camera
	Device  *string `json:"device,omitempty"`
	Width   *int    `json:"width,omitempty"`
	Height  *int    `json:"height,omitempty"`
	Buffers *int    `json:"buffers,omitempty"`

	// Fix source: gpsd unless an NMEA serial port is set.
	GPSD       *string             `json:"gpsd,omitempty"` // host:port
	NMEAPort   *string             `json:"nmea_port,omitempty"`
	NMEASerial *gpsfix.PortOptions `json:"nmea_serial,omitempty"`

	// Output
	DBPath      *string `json:"db_path,omitempty"`
	OutDir      *string `json:"out_dir,omitempty"`
	Format      *string `json:"format,omitempty"`
	Gray        *bool   `json:"gray,omitempty"`
	JPEGQuality *int    `json:"jpeg_quality,omitempty"`

	// Loop
	WaitTimeout *string `json:"wait_timeout,omitempty"` // duration string like "250ms"
	Idle        *string `json:"idle,omitempty"`

	// Dev mode replaces the camera with a synthetic one.
	Dev         *bool   `json:"dev,omitempty"`
	DevFrames   *int    `json:"dev_frames,omitempty"`
	DevInterval *string `json:"dev_interval,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

// Validate checks that the set values are usable.
func (c *Config) Validate() error {
	for name, v := range map[string]*int{"width": c.Width, "height": c.Height} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	if c.Width != nil && *c.Width%2 != 0 {
		return fmt.Errorf("width must be even for YUYV, got %d", *c.Width)
	}
	if c.Buffers != nil && *c.Buffers < 2 {
		return fmt.Errorf("buffers must be at least 2, got %d", *c.Buffers)
	}
	if c.GPSD != nil && *c.GPSD != "" {
		if _, _, err := net.SplitHostPort(*c.GPSD); err != nil {
			return fmt.Errorf("invalid gpsd address '%s': %w", *c.GPSD, err)
		}
	}
	if c.NMEASerial != nil {
		if _, err := c.NMEASerial.Normalize(); err != nil {
			return fmt.Errorf("invalid nmea_serial: %w", err)
		}
	}
	if c.Format != nil {
		if _, err := encode.ParseFormat(*c.Format); err != nil {
			return err
		}
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
	}
	if c.DevFrames != nil && *c.DevFrames == 0 {
		return fmt.Errorf("dev_frames must be negative (unlimited) or positive")
	}
	if err := validDuration("wait_timeout", c.WaitTimeout); err != nil {
		return err
	}
	if err := validDuration("idle", c.Idle); err != nil {
		return err
	}
	return validDuration("dev_interval", c.DevInterval)
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func getString(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetDevice returns the capture device path or the default.
func (c *Config) GetDevice() string { return getString(c.Device, DefaultDevice) }

// GetWidth returns the requested frame width or the default.
func (c *Config) GetWidth() int { return getInt(c.Width, DefaultWidth) }

// GetHeight returns the requested frame height or the default.
func (c *Config) GetHeight() int { return getInt(c.Height, DefaultHeight) }

// GetBuffers returns the number of capture buffers or the default.
func (c *Config) GetBuffers() int { return getInt(c.Buffers, DefaultBuffers) }

// GetGPSD returns the gpsd host and port.
func (c *Config) GetGPSD() (host, port string) {
	addr := getString(c.GPSD, DefaultGPSD)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, gpsfix.DefaultGPSDPort
	}
	return host, port
}

// GetNMEAPort returns the serial port of an NMEA receiver, empty for gpsd.
func (c *Config) GetNMEAPort() string { return getString(c.NMEAPort, "") }

// GetNMEASerial returns the serial options for the NMEA receiver.
func (c *Config) GetNMEASerial() gpsfix.PortOptions {
	if c.NMEASerial == nil {
		return gpsfix.PortOptions{}
	}
	return *c.NMEASerial
}

// GetDBPath returns the sqlite database path or the default.
func (c *Config) GetDBPath() string { return getString(c.DBPath, DefaultDBPath) }

// GetOutDir returns the image output directory or the default.
func (c *Config) GetOutDir() string { return getString(c.OutDir, DefaultOutDir) }

// GetFormat returns the image format, falling back to PNG.
func (c *Config) GetFormat() encode.Format {
	f, err := encode.ParseFormat(getString(c.Format, DefaultFormat))
	if err != nil {
		return encode.PNG
	}
	return f
}

// GetGray reports whether images are written as luma only.
func (c *Config) GetGray() bool { return c.Gray != nil && *c.Gray }

// GetJPEGQuality returns the JPEG quality or the encoder default.
func (c *Config) GetJPEGQuality() int { return getInt(c.JPEGQuality, encode.DefaultJPEGQuality) }

// GetWaitTimeout returns the readiness wait bound.
func (c *Config) GetWaitTimeout() time.Duration {
	return getDuration(c.WaitTimeout, DefaultWaitTimeout)
}

// GetIdle returns the pause used when a source cannot be waited on.
func (c *Config) GetIdle() time.Duration { return getDuration(c.Idle, DefaultIdle) }

// GetDev reports whether the synthetic camera is used.
func (c *Config) GetDev() bool { return c.Dev != nil && *c.Dev }

// GetDevFrames returns the synthetic frame budget; negative is unlimited.
func (c *Config) GetDevFrames() int { return getInt(c.DevFrames, -1) }

// GetDevInterval returns the synthetic frame period.
func (c *Config) GetDevInterval() time.Duration {
	return getDuration(c.DevInterval, DefaultDevInterval)
}
