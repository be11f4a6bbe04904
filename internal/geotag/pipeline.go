package geotag

import (
	"errors"
	"fmt"

	"github.com/banshee-data/geotag/internal/capture"
)

// Pipeline owns the collaborators of one capture run and tears them down in
// order when the loop exits.
type Pipeline struct {
	Device  Device
	Fixes   Fixes
	Encoder Encoder
	Sink    Sink
	Waiter  Waiter
}

// Run starts streaming, runs the loop until lc stops or a fatal error, and
// then shuts down: stop streaming, release the device, close the fix source
// and close the sink. Shutdown runs on every path, including a failed start.
func (p *Pipeline) Run(lc *LoopContext) (Stats, error) {
	loop := NewLoop(p.Device, p.Fixes, p.Encoder, p.Sink, p.Waiter)

	var runErr error
	if err := p.Device.StartCapturing(); err != nil {
		runErr = err
	} else {
		runErr = loop.Run(lc)
	}
	return loop.Stats(), errors.Join(runErr, p.shutdown())
}

func (p *Pipeline) shutdown() error {
	var errs []error
	if p.Device.State() == capture.Streaming {
		if err := p.Device.StopCapturing(); err != nil {
			errs = append(errs, fmt.Errorf("stop capturing: %w", err))
		}
	}
	if p.Device.State() != capture.Uninitialized {
		if err := p.Device.Uninit(); err != nil {
			errs = append(errs, fmt.Errorf("uninit device: %w", err))
		}
	}
	if err := p.Fixes.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close fix source: %w", err))
	}
	if err := p.Sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	return errors.Join(errs...)
}
