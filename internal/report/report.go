// Package report summarises a capture session: positional statistics, the
// distance covered, and track charts.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/geotag/internal/db"
)

// earthRadius is the mean Earth radius in metres.
const earthRadius = 6371008.8

// Haversine returns the great-circle distance in metres between two points
// given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Summary holds the statistics of one session's tagged frames.
type Summary struct {
	SessionID string
	Frames    int

	MeanLat, MeanLon float64
	StdLat, StdLon   float64
	MinLat, MaxLat   float64
	MinLon, MaxLon   float64

	// TrackLength is the summed distance between consecutive frames, in
	// metres.
	TrackLength float64
	// MedianStep is the median distance between consecutive frames.
	MedianStep float64
	// Span is the time between the first and last fix.
	Span time.Duration
}

// Summarize computes the statistics of recs, which must be ordered by frame
// index.
func Summarize(sessionID string, recs []db.GeoRecord) Summary {
	s := Summary{SessionID: sessionID, Frames: len(recs)}
	if len(recs) == 0 {
		return s
	}
	lats := make([]float64, len(recs))
	lons := make([]float64, len(recs))
	for i, r := range recs {
		lats[i], lons[i] = r.Latitude, r.Longitude
	}
	s.MeanLat, s.StdLat = stat.MeanStdDev(lats, nil)
	s.MeanLon, s.StdLon = stat.MeanStdDev(lons, nil)
	if len(recs) == 1 {
		s.StdLat, s.StdLon = 0, 0
	}
	s.MinLat, s.MaxLat = floats.Min(lats), floats.Max(lats)
	s.MinLon, s.MaxLon = floats.Min(lons), floats.Max(lons)

	if len(recs) > 1 {
		steps := make([]float64, len(recs)-1)
		for i := 1; i < len(recs); i++ {
			steps[i-1] = Haversine(lats[i-1], lons[i-1], lats[i], lons[i])
		}
		s.TrackLength = floats.Sum(steps)
		sort.Float64s(steps)
		s.MedianStep = stat.Quantile(0.5, stat.Empirical, steps, nil)
	}

	first, last := recs[0].FixTime, recs[len(recs)-1].FixTime
	if !first.IsZero() && !last.IsZero() {
		s.Span = last.Sub(first)
	}
	return s
}

// WriteText prints the summary in a human readable form.
func (s Summary) WriteText(w io.Writer) error {
	if s.Frames == 0 {
		_, err := fmt.Fprintf(w, "session %s: no tagged frames\n", s.SessionID)
		return err
	}
	_, err := fmt.Fprintf(w, `session %s
frames:        %d
mean position: %.6f, %.6f (σ %.6f, %.6f)
bounds:        lat [%.6f, %.6f] lon [%.6f, %.6f]
track length:  %.1f m (median step %.1f m)
span:          %s
`,
		s.SessionID, s.Frames,
		s.MeanLat, s.MeanLon, s.StdLat, s.StdLon,
		s.MinLat, s.MaxLat, s.MinLon, s.MaxLon,
		s.TrackLength, s.MedianStep, s.Span)
	return err
}
