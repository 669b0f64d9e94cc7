// Package clock supplies the current time in the site's civil time zone.
package clock

import (
	"time"
)

// DefaultZone is the IANA zone the site reports weather in.
const DefaultZone = "Asia/Seoul"

// kstOffset is used when the zone database has no entry for the configured zone.
const kstOffset = 9 * 60 * 60

// Clock returns the current instant and the zone calendar dates are taken in.
// Tests substitute a fixed implementation.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// ZoneClock reports time.Now in a fixed location.
type ZoneClock struct {
	loc      *time.Location
	fallback bool
}

// New resolves zone via the zone database. When the lookup fails the clock uses a
// fixed UTC+9 zone named KST; Fallback reports whether that happened.
func New(zone string) *ZoneClock {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return &ZoneClock{loc: time.FixedZone("KST", kstOffset), fallback: true}
	}
	return &ZoneClock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the resolved location.
func (c *ZoneClock) Location() *time.Location {
	return c.loc
}

// Fallback is true when the zone database lookup failed.
func (c *ZoneClock) Fallback() bool {
	return c.fallback
}

// Fixed is a Clock frozen at T. Advance moves it forward.
type Fixed struct {
	T time.Time
}

// Now returns the frozen time.
func (f *Fixed) Now() time.Time {
	return f.T
}

// Location returns the location of T.
func (f *Fixed) Location() *time.Location {
	return f.T.Location()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
