package main

import (
	"errors"

	"github.com/banshee-data/geotag/internal/capture"
	"github.com/banshee-data/geotag/internal/db"
	"github.com/banshee-data/geotag/internal/geotag"
	"github.com/banshee-data/geotag/internal/timeutil"
)

// sessionSink persists loop records under one database session and closes
// the database when the run ends.
type sessionSink struct {
	store *db.DB
	id    string
	clock timeutil.Clock
}

func newSessionSink(store *db.DB, dev *capture.Device, fixSource string, clock timeutil.Clock) (*sessionSink, error) {
	f := dev.Format()
	id, err := store.StartSession(dev.Path(), f.Width, f.Height, fixSource, clock.Now())
	if err != nil {
		return nil, err
	}
	return &sessionSink{store: store, id: id, clock: clock}, nil
}

func (s *sessionSink) ID() string { return s.id }

func (s *sessionSink) Append(r geotag.Record) error {
	return s.store.RecordGeoFrame(db.GeoRecord{
		SessionID:  s.id,
		FrameIndex: r.FrameIndex,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		FixTime:    r.FixTime,
		ImagePath:  r.ImagePath,
		RecordedAt: s.clock.Now(),
	})
}

func (s *sessionSink) Close() error {
	return errors.Join(s.store.EndSession(s.id, s.clock.Now()), s.store.Close())
}
