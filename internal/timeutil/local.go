package timeutil

import (
	"sync"
	"time"
)

var (
	mu  sync.RWMutex
	loc = defaultLocation()
)

// defaultLocation is West Africa Time, where the retailers operate.
func defaultLocation() *time.Location {
	l, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		// Fallback: fixed zone if tzdata is not available
		return time.FixedZone("WAT", 1*60*60)
	}
	return l
}

// SetLocation changes the business timezone. Called once at startup.
func SetLocation(l *time.Location) {
	if l == nil {
		return
	}
	mu.Lock()
	loc = l
	mu.Unlock()
}

// Location returns the business timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// Now returns the current time in the business timezone
func Now() time.Time {
	return time.Now().In(Location())
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
	StampLayout    = "20060102-150405"
)
