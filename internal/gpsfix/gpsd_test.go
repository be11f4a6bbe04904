package gpsfix

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGPSD(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Fix
	}{
		{
			name: "3d fix",
			line: `{"class":"TPV","device":"/dev/ttyUSB0","mode":3,"time":"2010-04-30T11:48:20.10Z","lat":46.498204497,"lon":7.568061439,"alt":1327.689}`,
			want: Fix{Kind: PositionFix, Latitude: 46.498204497, Longitude: 7.568061439, Time: time.Date(2010, 4, 30, 11, 48, 20, 100000000, time.UTC)},
		},
		{
			name: "2d fix without time",
			line: `{"class":"TPV","mode":2,"lat":-33.5,"lon":151.25}`,
			want: Fix{Kind: PositionFix, Latitude: -33.5, Longitude: 151.25},
		},
		{
			name: "no fix",
			line: `{"class":"TPV","mode":1,"time":"2010-04-30T11:48:20.10Z"}`,
			want: Fix{Kind: Unknown},
		},
		{
			name: "mode set but latitude missing",
			line: `{"class":"TPV","mode":2,"lon":151.25}`,
			want: Fix{Kind: Unknown},
		},
		{
			name: "sky view",
			line: `{"class":"SKY","satellites":[{"PRN":5,"el":31,"az":86,"ss":43,"used":true}]}`,
			want: Fix{Kind: SkyView},
		},
		{
			name: "version banner",
			line: `{"class":"VERSION","release":"3.25","proto_major":3,"proto_minor":15}`,
			want: Fix{Kind: Unknown},
		},
		{
			name: "garbage",
			line: `not json`,
			want: Fix{Kind: Unknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeGPSD([]byte(tt.line))
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.Latitude, got.Latitude)
			assert.Equal(t, tt.want.Longitude, got.Longitude)
			assert.True(t, tt.want.Time.Equal(got.Time), "time %v, want %v", got.Time, tt.want.Time)
		})
	}
}

// fakeGPSD accepts one client, checks it enables watch mode and then writes
// lines on request.
func fakeGPSD(t *testing.T) (addr string, lines chan<- string, watch <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string)
	cmds := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		cmd, _ := r.ReadString('\n')
		cmds <- strings.TrimSpace(cmd)
		go func() {
			for {
				c, err := r.ReadString('\n')
				if err != nil {
					return
				}
				cmds <- strings.TrimSpace(c)
			}
		}()
		for l := range out {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), out, cmds
}

func waitPoll(t *testing.T, s Source) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Poll() {
		if time.Now().After(deadline) {
			t.Fatal("source never became ready")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGPSD_WatchAndFetch(t *testing.T) {
	addr, lines, watch := fakeGPSD(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	g, err := DialGPSD(context.Background(), host, port)
	require.NoError(t, err)
	assert.Equal(t, `?WATCH={"enable":true,"json":true};`, <-watch)

	fd, ok := g.Fd()
	assert.True(t, ok)
	assert.NotZero(t, fd)

	assert.False(t, g.Poll(), "nothing sent yet")

	lines <- `{"class":"SKY"}`
	lines <- `{"class":"TPV","mode":3,"lat":51.5,"lon":-0.12}`

	tr := NewTracker(g)
	waitPoll(t, g)
	f, err := tr.Fetch()
	require.NoError(t, err)
	assert.Equal(t, SkyView, f.Kind)
	_, fresh := tr.TakeFresh()
	assert.False(t, fresh)

	waitPoll(t, g)
	f, err = tr.Fetch()
	require.NoError(t, err)
	assert.Equal(t, PositionFix, f.Kind)
	got, fresh := tr.TakeFresh()
	require.True(t, fresh)
	assert.Equal(t, 51.5, got.Latitude)
	assert.Equal(t, -0.12, got.Longitude)

	close(lines)
	waitPoll(t, g)
	_, err = tr.Fetch()
	require.ErrorIs(t, err, ErrSource)
	_, err = g.Fetch()
	require.ErrorIs(t, err, ErrSource, "fault is sticky")

	require.NoError(t, g.Close())
}

func TestGPSD_PartialLineNotPending(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close() })

	watch := make(chan string, 1)
	go func() {
		cmd, _ := bufio.NewReader(server).ReadString('\n')
		watch <- strings.TrimSpace(cmd)
	}()
	g, err := NewGPSD(client)
	require.NoError(t, err)
	assert.Equal(t, `?WATCH={"enable":true,"json":true};`, <-watch)

	send := func(s string) {
		go func() { _, _ = server.Write([]byte(s)) }()
	}

	// The head of a report arrives and the daemon stalls.
	send(`{"class":"TPV","mode":3,"lat":1`)
	deadline := time.Now().Add(2 * time.Second)
	for g.r.Buffered() == 0 {
		require.False(t, g.Poll(), "partial line reported as pending")
		if time.Now().After(deadline) {
			t.Fatal("partial line never read")
		}
	}
	for i := 0; i < 5; i++ {
		assert.False(t, g.Poll(), "partial line reported as pending")
	}

	send(`,"lon":2}` + "\n")
	waitPoll(t, g)

	done := make(chan Fix, 1)
	go func() {
		f, err := g.Fetch()
		assert.NoError(t, err)
		done <- f
	}()
	select {
	case f := <-done:
		assert.Equal(t, PositionFix, f.Kind)
		assert.Equal(t, 1.0, f.Latitude)
		assert.Equal(t, 2.0, f.Longitude)
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch blocked after Poll reported a line")
	}

	server.Close()
	waitPoll(t, g)
	_, err = g.Fetch()
	require.ErrorIs(t, err, ErrSource)
}

func TestDialGPSD_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	host, port, _ := net.SplitHostPort(addr)
	_, err = DialGPSD(context.Background(), host, port)
	require.ErrorIs(t, err, ErrSource)
}
