// Package system provides the wall clock used by crawl runs.
package system

import "time"

// Vietnam is the fixed UTC+7 zone the news site publishes in.
var Vietnam = time.FixedZone("ICT", 7*60*60)

// Clock implements crawler.Clock using time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting times in loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
