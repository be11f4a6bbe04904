package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/geotag/internal/capture"
	"github.com/banshee-data/geotag/internal/config"
	"github.com/banshee-data/geotag/internal/db"
	"github.com/banshee-data/geotag/internal/encode"
	"github.com/banshee-data/geotag/internal/fsutil"
	"github.com/banshee-data/geotag/internal/geotag"
	"github.com/banshee-data/geotag/internal/gpsfix"
	"github.com/banshee-data/geotag/internal/readiness"
	"github.com/banshee-data/geotag/internal/timeutil"
	"github.com/banshee-data/geotag/internal/version"
)

func runFlags() (*flag.FlagSet, *string, *bool) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON config file; flags override its values")
	fs.String("device", config.DefaultDevice, "V4L2 capture device")
	fs.Int("width", config.DefaultWidth, "Frame width")
	fs.Int("height", config.DefaultHeight, "Frame height")
	fs.Int("buffers", config.DefaultBuffers, "Number of mmap capture buffers")
	fs.String("gpsd", config.DefaultGPSD, "gpsd host:port")
	fs.String("nmea-port", "", "Read NMEA from this serial port instead of gpsd")
	fs.String("db", config.DefaultDBPath, "SQLite database path")
	fs.String("out", config.DefaultOutDir, "Image output directory")
	fs.String("format", config.DefaultFormat, "Image format: png, jpeg, tiff or bmp")
	fs.Bool("gray", false, "Write luma-only images")
	fs.String("wait-timeout", config.DefaultWaitTimeout.String(), "Upper bound on one readiness wait")
	fs.String("idle", config.DefaultIdle.String(), "Sleep when no descriptor can be watched")
	fs.Bool("dev", false, "Use a synthetic camera instead of a V4L2 device")
	fs.Int("dev-frames", -1, "Frames the synthetic camera produces before stopping (negative: unlimited)")
	fs.String("dev-interval", config.DefaultDevInterval.String(), "Synthetic frame interval")
	showVersion := fs.Bool("version", false, "Print version and exit")
	return fs, configPath, showVersion
}

func runCommand(args []string, stdout io.Writer) error {
	fs, configPath, showVersion := runFlags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := runCapture(ctx, cfg, stdout)
	log.Printf("capture finished: %s", stats)
	return err
}

// openFixSource connects the configured fix source.
func openFixSource(ctx context.Context, cfg *config.Config) (gpsfix.Source, string, error) {
	if port := cfg.GetNMEAPort(); port != "" {
		src, err := gpsfix.OpenNMEA(port, cfg.GetNMEASerial())
		if err != nil {
			return nil, "", err
		}
		return src, src.String(), nil
	}
	host, port := cfg.GetGPSD()
	src, err := gpsfix.DialGPSD(ctx, host, port)
	if err != nil {
		return nil, "", err
	}
	return src, src.String(), nil
}

func newDriver(cfg *config.Config) (capture.Driver, *capture.SyntheticDriver) {
	if !cfg.GetDev() {
		return capture.NewV4L2Driver(), nil
	}
	drv := capture.NewSyntheticDriver(cfg.GetDevFrames())
	drv.Interval = cfg.GetDevInterval()
	drv.Clock = timeutil.RealClock{}
	return drv, drv
}

// runCapture wires the collaborators of one run and drives the pipeline
// until ctx is cancelled or a fatal error occurs.
func runCapture(ctx context.Context, cfg *config.Config, stdout io.Writer) (geotag.Stats, error) {
	store, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return geotag.Stats{}, fmt.Errorf("failed to open database: %w", err)
	}

	src, srcName, err := openFixSource(ctx, cfg)
	if err != nil {
		store.Close()
		return geotag.Stats{}, err
	}
	tracker := gpsfix.NewTracker(src)
	log.Printf("fix source %s", srcName)

	driver, synthetic := newDriver(cfg)
	dev := capture.NewDevice(driver)
	if err := dev.Init(cfg.GetDevice(), cfg.GetWidth(), cfg.GetHeight(), cfg.GetBuffers()); err != nil {
		tracker.Close()
		store.Close()
		return geotag.Stats{}, err
	}
	camera := "synthetic camera"
	if v, ok := driver.(*capture.V4L2Driver); ok {
		camera = v.Card()
	}
	log.Printf("initialized %s (%s): %s, %d buffers", dev.Path(), camera, dev.Format(), dev.Pool().Len())

	// Everything opened below is released by the pipeline shutdown.
	enc, err := encode.New(fsutil.OSFileSystem{}, cfg.GetOutDir(), cfg.GetFormat(), cfg.GetGray())
	if err == nil {
		enc.Quality = cfg.GetJPEGQuality()
	}
	var sink *sessionSink
	if err == nil {
		sink, err = newSessionSink(store, dev, srcName, timeutil.RealClock{})
	}
	if err != nil {
		_ = dev.Uninit()
		tracker.Close()
		store.Close()
		return geotag.Stats{}, err
	}
	log.Printf("session %s, writing %s images to %s", sink.ID(), enc.Format, enc.Dir)

	lc := geotag.NewLoopContext()
	release := lc.StopWhenDone(ctx, func() { fmt.Fprintln(stdout, "\nExit") })
	defer release()

	poller := readiness.New(dev, tracker, cfg.GetWaitTimeout())
	poller.Idle = cfg.GetIdle()
	var waiter geotag.Waiter = poller
	if synthetic != nil && synthetic.Frames >= 0 {
		waiter = &untilExhausted{Waiter: poller, drv: synthetic, lc: lc}
	}

	p := &geotag.Pipeline{Device: dev, Fixes: tracker, Encoder: enc, Sink: sink, Waiter: waiter}
	stats, err := p.Run(lc)
	if synthetic != nil {
		log.Printf("synthetic camera produced %d frames", synthetic.Produced())
	}
	return stats, err
}

// untilExhausted stops the loop once a finite synthetic camera runs dry.
type untilExhausted struct {
	geotag.Waiter
	drv *capture.SyntheticDriver
	lc  *geotag.LoopContext
}

func (u *untilExhausted) Wait(fixPending bool) (readiness.Result, error) {
	if u.drv.Exhausted() {
		u.lc.Stop()
		return readiness.Result{TimedOut: true}, nil
	}
	return u.Waiter.Wait(fixPending)
}
