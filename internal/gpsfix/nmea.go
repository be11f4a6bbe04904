package gpsfix

import (
	"bytes"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/banshee-data/geotag/internal/timeutil"
)

// maxSentence bounds a partial line; NMEA 0183 sentences are at most 82 bytes
// but some receivers emit longer proprietary ones.
const maxSentence = 1024

// NMEA reads NMEA 0183 sentences from a serial GNSS receiver. The port must
// return immediately from Read when no bytes are waiting.
type NMEA struct {
	port    SerialPorter
	name    string
	clock   timeutil.Clock
	buf     []byte
	partial []byte
	lines   [][]byte
	date    nmea.Date
	err     error
}

// NewNMEA reads sentences from port. name identifies the receiver in logs.
func NewNMEA(port SerialPorter, name string, clock timeutil.Clock) *NMEA {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &NMEA{
		port:  port,
		name:  name,
		clock: clock,
		buf:   make([]byte, 512),
	}
}

// OpenNMEA opens the serial receiver at path.
func OpenNMEA(path string, opts PortOptions) (*NMEA, error) {
	port, err := OpenSerialPort(path, opts)
	if err != nil {
		return nil, sourceError("open "+path, err)
	}
	return NewNMEA(port, path, nil), nil
}

func (n *NMEA) String() string { return "nmea://" + n.name }

// Poll reads whatever the port has buffered and reports whether a complete
// sentence, or a fault, is pending.
func (n *NMEA) Poll() bool {
	if len(n.lines) > 0 || n.err != nil {
		return true
	}
	n.fill()
	return len(n.lines) > 0 || n.err != nil
}

func (n *NMEA) fill() {
	k, err := n.port.Read(n.buf)
	if k > 0 {
		n.partial = append(n.partial, n.buf[:k]...)
		for {
			i := bytes.IndexByte(n.partial, '\n')
			if i < 0 {
				break
			}
			line := bytes.TrimSpace(n.partial[:i])
			if len(line) > 0 {
				n.lines = append(n.lines, append([]byte(nil), line...))
			}
			n.partial = n.partial[i+1:]
		}
		if len(n.partial) > maxSentence {
			n.partial = n.partial[:0]
		}
	}
	if err != nil {
		n.err = err
	}
}

// Fetch decodes the next pending sentence. Buffered sentences are delivered
// before a read fault is reported.
func (n *NMEA) Fetch() (Fix, error) {
	if len(n.lines) == 0 && n.err == nil {
		n.fill()
	}
	if len(n.lines) > 0 {
		line := n.lines[0]
		n.lines = n.lines[1:]
		return n.decode(string(line)), nil
	}
	if n.err != nil {
		return Fix{}, sourceError("read "+n.name, n.err)
	}
	return Fix{Kind: Unknown}, nil
}

func (n *NMEA) decode(line string) Fix {
	s, err := nmea.Parse(line)
	if err != nil {
		return Fix{Kind: Unknown}
	}
	switch m := s.(type) {
	case nmea.RMC:
		if m.Date.Valid {
			n.date = m.Date
		}
		if m.Validity != nmea.ValidRMC {
			return Fix{Kind: Unknown}
		}
		return Fix{Kind: PositionFix, Latitude: m.Latitude, Longitude: m.Longitude, Time: n.timestamp(m.Time)}
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
			return Fix{Kind: Unknown}
		}
		return Fix{Kind: PositionFix, Latitude: m.Latitude, Longitude: m.Longitude, Time: n.timestamp(m.Time)}
	case nmea.GSV, nmea.GSA:
		return Fix{Kind: SkyView}
	default:
		return Fix{Kind: Unknown}
	}
}

// timestamp combines a time of day with the last date seen in an RMC
// sentence, falling back to the current UTC date.
func (n *NMEA) timestamp(t nmea.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	var year, day int
	var month time.Month
	if n.date.Valid {
		year, month, day = n.date.YY+2000, time.Month(n.date.MM), n.date.DD
		if n.date.YY >= 80 {
			year = n.date.YY + 1900
		}
	} else {
		year, month, day = n.clock.Now().UTC().Date()
	}
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// Close closes the serial port.
func (n *NMEA) Close() error {
	return n.port.Close()
}
