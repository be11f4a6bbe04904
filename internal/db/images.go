package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession is returned when a session id matches no row.
var ErrNoSession = errors.New("db: no such session")

// Session is one capture run.
type Session struct {
	ID         string
	Device     string
	Width      int
	Height     int
	FixSource  string
	StartedAt  time.Time
	EndedAt    time.Time
	FrameCount int
}

// Active reports whether the session has not been ended.
func (s Session) Active() bool { return s.EndedAt.IsZero() }

func (s *Session) String() string {
	end := "running"
	if !s.Active() {
		end = s.EndedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s  %s %dx%d  %s  %s .. %s  frames=%d",
		s.ID, s.Device, s.Width, s.Height, s.FixSource,
		s.StartedAt.UTC().Format(time.RFC3339), end, s.FrameCount)
}

// GeoRecord is one persisted frame and the position it was tagged with.
type GeoRecord struct {
	SessionID  string
	FrameIndex uint64
	Latitude   float64
	Longitude  float64
	FixTime    time.Time
	ImagePath  string
	RecordedAt time.Time
}

func (r *GeoRecord) String() string {
	return fmt.Sprintf("%d: lat %.6f lon %.6f %s", r.FrameIndex, r.Latitude, r.Longitude, r.ImagePath)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec := int64(s)
	return time.Unix(sec, int64((s-float64(sec))*1e9)).UTC()
}

func nullableSeconds(t time.Time) sql.NullFloat64 {
	if t.IsZero() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: unixSeconds(t), Valid: true}
}

// StartSession records the start of a capture run and returns its id.
func (db *DB) StartSession(device string, width, height int, fixSource string, started time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, device, width, height, fix_source, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, device, width, height, fixSource, unixSeconds(started),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time and final frame count of a session.
func (db *DB) EndSession(id string, ended time.Time) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = ?, frame_count = (SELECT COUNT(*) FROM images WHERE session_id = ?) WHERE session_id = ?`,
		unixSeconds(ended), id, id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return nil
}

// RecordGeoFrame inserts one tagged frame.
func (db *DB) RecordGeoFrame(r GeoRecord) error {
	var session sql.NullString
	if r.SessionID != "" {
		session = sql.NullString{String: r.SessionID, Valid: true}
	}
	recorded := r.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO images (latitude, longitude, idx, session_id, fix_time, image_path, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Latitude, r.Longitude, int64(r.FrameIndex), session, nullableSeconds(r.FixTime), r.ImagePath, unixSeconds(recorded),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", r.FrameIndex, err)
	}
	return nil
}

// GeoFrames returns the frames of a session ordered by index. An empty id
// selects frames recorded without a session.
func (db *DB) GeoFrames(sessionID string) ([]GeoRecord, error) {
	var rows *sql.Rows
	var err error
	const cols = `SELECT latitude, longitude, idx, session_id, fix_time, image_path, recorded_at FROM images`
	if sessionID == "" {
		rows, err = db.Query(cols + ` WHERE session_id IS NULL ORDER BY idx`)
	} else {
		rows, err = db.Query(cols+` WHERE session_id = ? ORDER BY idx`, sessionID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GeoRecord
	for rows.Next() {
		var (
			r        GeoRecord
			idx      int64
			session  sql.NullString
			fixTime  sql.NullFloat64
			recorded float64
		)
		if err := rows.Scan(&r.Latitude, &r.Longitude, &idx, &session, &fixTime, &r.ImagePath, &recorded); err != nil {
			return nil, err
		}
		r.FrameIndex = uint64(idx)
		r.SessionID = session.String
		if fixTime.Valid {
			r.FixTime = fromUnixSeconds(fixTime.Float64)
		}
		r.RecordedAt = fromUnixSeconds(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

const sessionCols = `SELECT session_id, device, width, height, fix_source, started_at, ended_at,
	CASE WHEN ended_at IS NULL THEN (SELECT COUNT(*) FROM images i WHERE i.session_id = s.session_id) ELSE frame_count END
	FROM sessions s`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		s       Session
		started float64
		ended   sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Device, &s.Width, &s.Height, &s.FixSource, &started, &ended, &s.FrameCount); err != nil {
		return Session{}, err
	}
	s.StartedAt = fromUnixSeconds(started)
	if ended.Valid {
		s.EndedAt = fromUnixSeconds(ended.Float64)
	}
	return s, nil
}

// Sessions lists every session, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(sessionCols + ` ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSession loads one session by id.
func (db *DB) GetSession(id string) (Session, error) {
	s, err := scanSession(db.QueryRow(sessionCols+` WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return s, err
}

// LatestSession returns the most recently started session.
func (db *DB) LatestSession() (Session, error) {
	s, err := scanSession(db.QueryRow(sessionCols + ` ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	return s, err
}
