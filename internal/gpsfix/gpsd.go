package gpsfix

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// DefaultGPSDPort is the port gpsd listens on.
const DefaultGPSDPort = "2947"

// pollWindow bounds how long Poll waits for the socket. An already expired
// deadline would fail the read before the kernel buffer is inspected.
const pollWindow = time.Millisecond

// readerSize bounds one report line. SKY reports with many satellites run to
// a few kilobytes.
const readerSize = 64 << 10

// watchCommand enables JSON streaming of every report class.
const watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// gpsdReport is the subset of a gpsd JSON report the tracker needs.
type gpsdReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Time  string   `json:"time"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// GPSD reads reports from a gpsd daemon in watch mode.
type GPSD struct {
	conn net.Conn
	r    *bufio.Reader
	addr string
	err  error
}

// DialGPSD connects to gpsd at host:port and enables watch mode.
func DialGPSD(ctx context.Context, host, port string) (*GPSD, error) {
	if port == "" {
		port = DefaultGPSDPort
	}
	addr := net.JoinHostPort(host, port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrSource, addr, err)
	}
	g, err := NewGPSD(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return g, nil
}

// NewGPSD enables watch mode on an established connection.
func NewGPSD(conn net.Conn) (*GPSD, error) {
	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return nil, fmt.Errorf("%w: enable watch: %v", ErrSource, err)
	}
	return &GPSD{
		conn: conn,
		r:    bufio.NewReaderSize(conn, readerSize),
		addr: conn.RemoteAddr().String(),
	}, nil
}

// String identifies the daemon.
func (g *GPSD) String() string { return "gpsd://" + g.addr }

// Poll reports whether a complete report line is waiting, without blocking.
// Bytes of a partial line stay buffered until the rest arrives. A broken
// connection also counts as pending so that Fetch can surface the fault.
func (g *GPSD) Poll() bool {
	if g.err != nil || g.lineBuffered() {
		return true
	}
	if err := g.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		g.err = err
		return true
	}
	defer func() {
		if err := g.conn.SetReadDeadline(time.Time{}); err != nil && g.err == nil {
			g.err = err
		}
	}()
	for {
		_, err := g.r.Peek(g.r.Buffered() + 1)
		if g.lineBuffered() {
			return true
		}
		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
			return false
		case errors.Is(err, bufio.ErrBufferFull):
			g.err = fmt.Errorf("report exceeds %d bytes", g.r.Size())
			return true
		default:
			g.err = err
			return true
		}
	}
}

func (g *GPSD) lineBuffered() bool {
	b, _ := g.r.Peek(g.r.Buffered())
	return bytes.IndexByte(b, '\n') >= 0
}

// Fetch reads and decodes the next report line. Call it only after Poll
// reported true, so the line is already buffered.
func (g *GPSD) Fetch() (Fix, error) {
	if g.err != nil {
		return Fix{}, sourceError("read "+g.addr, g.err)
	}
	line, err := g.r.ReadBytes('\n')
	if err != nil {
		g.err = err
		return Fix{}, sourceError("read "+g.addr, err)
	}
	return decodeGPSD(line), nil
}

// decodeGPSD maps one JSON report to a Fix. Undecodable lines are reported as
// Unknown rather than as faults.
func decodeGPSD(line []byte) Fix {
	var rep gpsdReport
	if err := json.Unmarshal(line, &rep); err != nil {
		return Fix{Kind: Unknown}
	}
	switch rep.Class {
	case "TPV":
		if rep.Mode < 2 || rep.Lat == nil || rep.Lon == nil {
			return Fix{Kind: Unknown}
		}
		f := Fix{Kind: PositionFix, Latitude: *rep.Lat, Longitude: *rep.Lon}
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(rep.Time)); err == nil {
			f.Time = ts
		}
		return f
	case "SKY":
		return Fix{Kind: SkyView}
	default:
		return Fix{Kind: Unknown}
	}
}

// Fd returns the socket descriptor for readiness multiplexing.
func (g *GPSD) Fd() (uintptr, bool) {
	sc, ok := g.conn.(syscall.Conn)
	if !ok {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd uintptr
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, false
	}
	return fd, true
}

// Close disables watch mode and closes the connection.
func (g *GPSD) Close() error {
	_ = g.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = g.conn.Write([]byte(`?WATCH={"enable":false};` + "\n"))
	return g.conn.Close()
}
