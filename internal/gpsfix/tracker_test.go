package gpsfix

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed list of reports.
type scriptedSource struct {
	reports []Fix
	errAt   int
	fetches int
	closed  bool
}

func (s *scriptedSource) Poll() bool { return len(s.reports) > 0 || s.errAt > 0 }

func (s *scriptedSource) Fetch() (Fix, error) {
	s.fetches++
	if s.errAt > 0 && s.fetches == s.errAt {
		return Fix{}, errors.New("connection reset")
	}
	if len(s.reports) == 0 {
		return Fix{Kind: Unknown}, nil
	}
	f := s.reports[0]
	s.reports = s.reports[1:]
	return f, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func pos(lat, lon float64) Fix {
	return Fix{Kind: PositionFix, Latitude: lat, Longitude: lon, Time: time.Unix(int64(lat*1000), 0)}
}

func TestTracker_TakeFreshOnce(t *testing.T) {
	src := &scriptedSource{reports: []Fix{pos(1, 2)}}
	tr := NewTracker(src)

	_, ok := tr.TakeFresh()
	assert.False(t, ok, "nothing fetched yet")

	require.True(t, tr.Poll())
	f, err := tr.Fetch()
	require.NoError(t, err)
	assert.Equal(t, PositionFix, f.Kind)

	got, ok := tr.TakeFresh()
	require.True(t, ok)
	assert.Equal(t, pos(1, 2), got)

	_, ok = tr.TakeFresh()
	assert.False(t, ok, "a fix is fresh only once")

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, pos(1, 2), last)
}

func TestTracker_NonPositionReportsDropped(t *testing.T) {
	src := &scriptedSource{reports: []Fix{
		{Kind: SkyView},
		{Kind: Unknown, Latitude: 5, Longitude: 5},
		{Kind: PositionFix, Latitude: math.NaN(), Longitude: 1},
		{Kind: PositionFix, Latitude: 91, Longitude: 1},
	}}
	tr := NewTracker(src)

	for i := 0; i < 4; i++ {
		f, err := tr.Fetch()
		require.NoError(t, err)
		assert.NotEqual(t, PositionFix, f.Kind, "report %d", i)
		_, ok := tr.TakeFresh()
		assert.False(t, ok, "report %d must not become fresh", i)
	}
	_, ok := tr.Last()
	assert.False(t, ok)
}

func TestTracker_LatestWins(t *testing.T) {
	src := &scriptedSource{reports: []Fix{pos(1, 1), {Kind: SkyView}, pos(2, 2)}}
	tr := NewTracker(src)
	for src.Poll() {
		_, err := tr.Fetch()
		require.NoError(t, err)
	}

	got, ok := tr.TakeFresh()
	require.True(t, ok)
	assert.Equal(t, pos(2, 2), got)
	_, ok = tr.TakeFresh()
	assert.False(t, ok, "overwritten fixes are not queued")
}

func TestTracker_FetchErrorWrapsSource(t *testing.T) {
	tr := NewTracker(&scriptedSource{errAt: 1})
	_, err := tr.Fetch()
	require.ErrorIs(t, err, ErrSource)
}

func TestTracker_Close(t *testing.T) {
	src := &scriptedSource{}
	tr := NewTracker(src)
	require.NoError(t, tr.Close())
	assert.True(t, src.closed)
	_, ok := tr.Fd()
	assert.False(t, ok)
}

// TestTracker_AtMostOnceProperty interleaves fetches and takes at random and
// checks no position value is handed out twice.
func TestTracker_AtMostOnceProperty(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		var reports []Fix
		for i := 0; i < 100; i++ {
			if rng.Intn(3) == 0 {
				reports = append(reports, Fix{Kind: SkyView})
				continue
			}
			reports = append(reports, pos(float64(i)/10, float64(i)/10))
		}
		src := &scriptedSource{reports: reports}
		tr := NewTracker(src)

		seen := map[Fix]bool{}
		for src.Poll() {
			if rng.Intn(2) == 0 {
				_, err := tr.Fetch()
				require.NoError(t, err)
			}
			if f, ok := tr.TakeFresh(); ok {
				if seen[f] {
					t.Fatalf("seed %d: fix %v taken twice", seed, f)
				}
				seen[f] = true
			}
		}
	}
}
