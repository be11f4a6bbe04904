package gpsfix

// Tracker filters a Source down to position fixes and guarantees each fresh
// position is taken at most once. Later positions overwrite earlier ones
// that were never taken.
type Tracker struct {
	src   Source
	last  Fix
	have  bool
	fresh bool
}

// NewTracker wraps src.
func NewTracker(src Source) *Tracker {
	return &Tracker{src: src}
}

// Poll reports whether the source has a report queued. It never blocks.
func (t *Tracker) Poll() bool {
	return t.src.Poll()
}

// Fetch retrieves the next report. A position fix becomes the last-known fix
// and marks it fresh; every other report is dropped after being returned.
func (t *Tracker) Fetch() (Fix, error) {
	f, err := t.src.Fetch()
	if err != nil {
		return Fix{}, sourceError("fetch", err)
	}
	if f.Kind == PositionFix && !f.HasPosition() {
		f.Kind = Unknown
	}
	if f.Kind == PositionFix {
		t.last = f
		t.have = true
		t.fresh = true
	}
	return f, nil
}

// TakeFresh returns the last position fix if it has not been taken since it
// was fetched, and clears the fresh marker.
func (t *Tracker) TakeFresh() (Fix, bool) {
	if !t.fresh {
		return Fix{}, false
	}
	t.fresh = false
	return t.last, true
}

// Last returns the most recent position fix regardless of freshness.
func (t *Tracker) Last() (Fix, bool) {
	return t.last, t.have
}

// Fd exposes the source descriptor when it has one.
func (t *Tracker) Fd() (uintptr, bool) {
	if d, ok := t.src.(Descriptor); ok {
		return d.Fd()
	}
	return 0, false
}

// Close closes the underlying source.
func (t *Tracker) Close() error {
	return t.src.Close()
}
