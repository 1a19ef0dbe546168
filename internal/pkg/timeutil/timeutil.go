// Package timeutil is the single clock for post and comment timestamps.
package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Precision matches timestamptz so both storage backends keep identical values.
const Precision = time.Microsecond

var (
	locationMu sync.RWMutex
	location   = time.UTC
)

// SetLocation sets the zone timestamps are rendered in. Empty means UTC.
func SetLocation(name string) error {
	tz := strings.TrimSpace(name)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("load location %q: %w", tz, err)
	}
	locationMu.Lock()
	location = loc
	locationMu.Unlock()
	return nil
}

// Location returns the configured zone.
func Location() *time.Location {
	locationMu.RLock()
	loc := location
	locationMu.RUnlock()
	return loc
}

// Now returns the current time truncated to Precision, in the configured zone
// and without a monotonic reading.
func Now() time.Time {
	return Normalize(time.Now())
}

// Normalize applies the same truncation and zone as Now to t.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Round(0).Truncate(Precision).In(Location())
}

// Later returns the later of a and b.
func Later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
