package readiness

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geotag/internal/timeutil"
)

type fdHolder struct {
	fd uintptr
	ok bool
}

func (h fdHolder) Fd() (uintptr, bool) { return h.fd, h.ok }

func pipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestWait_NoDescriptorsSleepsIdle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	p := &Poller{Frame: fdHolder{}, Fix: fdHolder{}, Idle: 5 * time.Millisecond, Clock: clock}

	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.Equal(t, Result{Frame: true, Fix: true}, res)
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, clock.Sleeps())
}

func TestWait_TimesOutOnQuietDescriptors(t *testing.T) {
	fr, _ := pipe(t)
	fx, _ := pipe(t)
	p := &Poller{Frame: fdHolder{fr.Fd(), true}, Fix: fdHolder{fx.Fd(), true}, Timeout: 10 * time.Millisecond}

	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.Equal(t, Result{TimedOut: true}, res)
}

func TestWait_FrameReady(t *testing.T) {
	fr, fw := pipe(t)
	fx, _ := pipe(t)
	_, err := fw.Write([]byte{1})
	require.NoError(t, err)

	p := &Poller{Frame: fdHolder{fr.Fd(), true}, Fix: fdHolder{fx.Fd(), true}, Timeout: time.Second}
	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.Equal(t, Result{Frame: true}, res)
}

func TestWait_FixReadyThenExcluded(t *testing.T) {
	fr, _ := pipe(t)
	fx, xw := pipe(t)
	_, err := xw.Write([]byte("{}\n"))
	require.NoError(t, err)

	p := &Poller{Frame: fdHolder{fr.Fd(), true}, Fix: fdHolder{fx.Fd(), true}, Timeout: 10 * time.Millisecond}
	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.Equal(t, Result{Fix: true}, res)

	// The fix descriptor stays readable until the data is read; once the
	// caller knows it is pending the wait only watches the frame.
	res, err = p.Wait(true)
	require.NoError(t, err)
	assert.Equal(t, Result{TimedOut: true}, res)
}

func TestWait_UnwatchableFrameDoesNotBlock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	fx, _ := pipe(t)
	p := &Poller{Frame: fdHolder{}, Fix: fdHolder{fx.Fd(), true}, Timeout: time.Hour, Idle: time.Millisecond, Clock: clock}

	start := time.Now()
	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Result{Frame: true}, res)
	assert.Len(t, clock.Sleeps(), 1)
}

func TestWait_NilFix(t *testing.T) {
	fr, fw := pipe(t)
	_, err := fw.Write([]byte{1})
	require.NoError(t, err)

	p := New(fdHolder{fr.Fd(), true}, nil, 0)
	res, err := p.Wait(false)
	require.NoError(t, err)
	assert.True(t, res.Frame)
	assert.False(t, res.Fix)
}
