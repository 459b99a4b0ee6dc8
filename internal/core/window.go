package core

import "time"

const DefaultWindowDays = 30

// Window selects records created in the half-open interval [now-N days, now).
type Window struct {
	days int
}

// NewWindow returns a window of the given length in days.
func NewWindow(days int) (Window, error) {
	if days <= 0 {
		return Window{}, ErrInvalidWindow
	}
	return Window{days: days}, nil
}

// DefaultWindow is the 30 day window used when the caller does not choose one.
func DefaultWindow() Window { return Window{days: DefaultWindowDays} }

// Days returns the window length; an unset Window reports the default.
func (w Window) Days() int {
	if w.days == 0 {
		return DefaultWindowDays
	}
	return w.days
}

// Bounds resolves the window against now.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	to = now.UTC()
	from = to.Add(-time.Duration(w.Days()) * 24 * time.Hour)
	return from, to
}

// Contains reports whether t falls inside the window resolved at now.
func (w Window) Contains(now, t time.Time) bool {
	from, to := w.Bounds(now)
	return !t.Before(from) && t.Before(to)
}
