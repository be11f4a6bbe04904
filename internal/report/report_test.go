package report

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geotag/internal/db"
)

func track() []db.GeoRecord {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	// Due north along a meridian, 0.001° apart (about 111 m).
	var recs []db.GeoRecord
	for i := 0; i < 5; i++ {
		recs = append(recs, db.GeoRecord{
			FrameIndex: uint64(i),
			Latitude:   51.0 + float64(i)*0.001,
			Longitude:  -1.0,
			FixTime:    start.Add(time.Duration(i) * 2 * time.Second),
		})
	}
	return recs
}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tol              float64
	}{
		{"same point", 10, 10, 10, 10, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 5},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111195, 5},
		{"antipodes", 0, 0, 0, 180, 20015114, 10},
		{"London to Paris", 51.5074, -0.1278, 48.8566, 2.3522, 343556, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.tol)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("abc", track())
	assert.Equal(t, 5, s.Frames)
	assert.InDelta(t, 51.002, s.MeanLat, 1e-9)
	assert.InDelta(t, -1.0, s.MeanLon, 1e-12)
	assert.Zero(t, s.StdLon)
	assert.InDelta(t, 0.0015811, s.StdLat, 1e-6)
	assert.Equal(t, 51.0, s.MinLat)
	assert.InDelta(t, 51.004, s.MaxLat, 1e-12)
	assert.InDelta(t, 4*111.195, s.TrackLength, 0.5)
	assert.InDelta(t, 111.195, s.MedianStep, 0.2)
	assert.Equal(t, 8*time.Second, s.Span)
}

func TestSummarize_Degenerate(t *testing.T) {
	s := Summarize("empty", nil)
	assert.Equal(t, Summary{SessionID: "empty"}, s)

	one := Summarize("one", track()[:1])
	assert.Equal(t, 1, one.Frames)
	assert.Zero(t, one.StdLat)
	assert.Zero(t, one.TrackLength)
	assert.Zero(t, one.Span)

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	assert.Contains(t, buf.String(), "no tagged frames")
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summarize("abc", track()).WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "session abc")
	assert.Contains(t, out, "frames:        5")
	assert.Contains(t, out, "span:          8s")
}

func TestWriteHTML(t *testing.T) {
	recs := track()
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Summarize("abc", recs), recs))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "rendered a page")
	assert.Contains(t, html, "geotag session abc")
	assert.Contains(t, html, "frame 4")
}

func TestWritePNG(t *testing.T) {
	recs := track()
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, Summarize("abc", recs), recs))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)

	buf.Reset()
	require.NoError(t, WritePNG(&buf, Summary{SessionID: "none"}, nil), "an empty session still renders axes")
}
