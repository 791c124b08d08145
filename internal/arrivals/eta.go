package arrivals

import (
	"strings"
	"time"

	"github.com/jusunglee/commute-go/internal/models"
)

// Clock anchors zone-less upstream times. Loc is the transit system's local
// zone and Now picks the service day for clock-only values.
type Clock struct {
	Loc *time.Location
	Now time.Time
}

func (c Clock) location() *time.Location {
	if c.Loc == nil {
		return Eastern
	}
	return c.Loc
}

func (c Clock) now() time.Time {
	if c.Now.IsZero() {
		return time.Now().In(c.location())
	}
	return c.Now.In(c.location())
}

// ETA is a resolved arrival time and the signal it came from.
type ETA struct {
	Time   time.Time
	Source models.ETASource
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var dateLayouts = []string{
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 3:04 PM",
	"02-Jan-2006 03:04:05 PM",
	"02-Jan-2006 3:04:05 PM",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"03:04:05 PM",
}

// rollover is how far behind Now a clock-only value may fall before it is
// read as tomorrow's, e.g. "12:10 AM" seen at 11:55 PM.
const rollover = 12 * time.Hour

// ParseTime parses an upstream time string. Values carrying a zone are
// converted to the clock's zone; values without one are taken as already
// local. Clock-only values land on the clock's service day, or the next one
// when they would be more than rollover in the past. Anything else reports
// ok=false.
func ParseTime(s string, c Clock) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc := c.location()

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	upper := strings.ToUpper(s)
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation(layout, upper, loc)
		if err != nil {
			continue
		}
		now := c.now()
		at := time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, loc)
		if now.Sub(at) > rollover {
			at = at.AddDate(0, 0, 1)
		}
		return at, true
	}
	return time.Time{}, false
}

// SelectETA picks the best available arrival time for a matched trip: a
// well-formed live value first, then a scheduled one. The matched stop entry
// is consulted before trip-level fields. ok is false when neither resolves.
func SelectETA(m Match, s Schema, c Clock) (ETA, bool) {
	if t, ok := firstTime(c, s.Live, m.Stop, m.Trip); ok {
		return ETA{Time: t, Source: models.ETALive}, true
	}
	if t, ok := firstTime(c, s.Scheduled, m.Stop, m.Trip); ok {
		return ETA{Time: t, Source: models.ETAScheduled}, true
	}
	return ETA{}, false
}

func firstTime(c Clock, keys []string, sources ...map[string]any) (time.Time, bool) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, k := range keys {
			if t, ok := ParseTime(String(src, k), c); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
