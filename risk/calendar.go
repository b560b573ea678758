package risk

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Calendar is a static list of high-impact event dates, compared in a
// fixed timezone.
type Calendar struct {
	dates map[string]bool
	loc   *time.Location
}

// NewCalendar parses YYYY-MM-DD dates. A nil loc means UTC.
func NewCalendar(dates []string, loc *time.Location) (Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := Calendar{dates: make(map[string]bool, len(dates)), loc: loc}
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return Calendar{}, fmt.Errorf("blackout date %q: %w", d, err)
		}
		c.dates[t.Format(dateLayout)] = true
	}
	return c, nil
}

// Day formats t as a date in the calendar's timezone.
func (c Calendar) Day(t time.Time) string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// Blackout reports whether t falls on an event date.
func (c Calendar) Blackout(t time.Time) bool {
	return c.dates[c.Day(t)]
}
