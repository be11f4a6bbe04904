package gpsfix

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geotag/internal/timeutil"
)

// chunkPort returns one chunk per Read and (0, nil) once drained, like a
// serial port with a zero read timeout.
type chunkPort struct {
	chunks []string
	err    error
	closed bool
}

func (p *chunkPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, p.err
	}
	n := copy(b, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if p.chunks[0] == "" {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *chunkPort) Close() error {
	p.closed = true
	return nil
}

const (
	rmcValid   = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	rmcVoid    = "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D"
	ggaFix     = "$GPGGA,123521,4807.100,N,01131.200,E,1,08,0.9,545.4,M,46.9,M,,*44"
	ggaNoFix   = "$GPGGA,123520,4807.038,N,01131.000,E,0,00,,,M,,M,,*58"
	gsv        = "$GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45*75"
	vtg        = "$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48"
	badChecksm = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00"
)

func TestNMEA_Classification(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Kind
	}{
		{"rmc valid", rmcValid, PositionFix},
		{"rmc void", rmcVoid, Unknown},
		{"gga fix", ggaFix, PositionFix},
		{"gga no fix", ggaNoFix, Unknown},
		{"gsv", gsv, SkyView},
		{"vtg", vtg, Unknown},
		{"bad checksum", badChecksm, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNMEA(&chunkPort{chunks: []string{tt.line + "\r\n"}}, "test", nil)
			require.True(t, n.Poll())
			f, err := n.Fetch()
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Kind)
		})
	}
}

func TestNMEA_PositionAndTimestamp(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	port := &chunkPort{chunks: []string{ggaFix + "\r\n"}}
	n := NewNMEA(port, "test", clock)

	require.True(t, n.Poll())
	f, err := n.Fetch()
	require.NoError(t, err)
	assert.InDelta(t, 48.118333, f.Latitude, 1e-5)
	assert.InDelta(t, 11.52, f.Longitude, 1e-5)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 35, 21, 0, time.UTC), f.Time, "no RMC date yet, clock date used")

	port.chunks = []string{rmcValid + "\r\n"}
	require.True(t, n.Poll())
	f, err = n.Fetch()
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, f.Latitude, 1e-5)
	assert.InDelta(t, 11.516666, f.Longitude, 1e-5)
	assert.Equal(t, time.Date(1994, 3, 23, 12, 35, 19, 0, time.UTC), f.Time)
}

func TestNMEA_SplitAcrossReads(t *testing.T) {
	port := &chunkPort{chunks: []string{rmcValid[:20], rmcValid[20:] + "\r\n" + gsv[:10]}}
	n := NewNMEA(port, "test", nil)

	assert.False(t, n.Poll(), "half a sentence is not pending")
	require.True(t, n.Poll())
	f, err := n.Fetch()
	require.NoError(t, err)
	assert.Equal(t, PositionFix, f.Kind)
	assert.False(t, n.Poll())
}

func TestNMEA_ReadFault(t *testing.T) {
	port := &chunkPort{chunks: []string{gsv + "\r\n"}, err: io.EOF}
	n := NewNMEA(port, "test", nil)

	require.True(t, n.Poll())
	f, err := n.Fetch()
	require.NoError(t, err, "buffered sentences come before the fault")
	assert.Equal(t, SkyView, f.Kind)

	require.True(t, n.Poll())
	_, err = n.Fetch()
	require.ErrorIs(t, err, ErrSource)
	assert.True(t, errors.Is(err, ErrSource))

	require.NoError(t, n.Close())
	assert.True(t, port.closed)
}

func TestPortOptions_Normalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 4800, DataBits: 8, StopBits: 1, Parity: "N"}, opts)
	assert.Equal(t, "4800 8N1", PortOptions{}.String())

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.Error(t, err)

	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
}
