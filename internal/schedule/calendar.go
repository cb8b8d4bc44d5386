package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar holds the business-hours configuration every scheduling
// computation runs against. It is immutable after construction and safe for
// concurrent use.
type Calendar struct {
	loc           *time.Location
	businessOpen  int // minutes from local midnight
	businessClose int
	slotDuration  time.Duration
	weekdays      [7]bool // indexed by time.Weekday
}

// NewCalendar builds a calendar from an IANA timezone name, HH:MM
// business-hours bounds and a fixed slot duration. Slots are Mon-Fri only.
func NewCalendar(tz, openHHMM, closeHHMM string, slotDuration time.Duration) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	open, err := parseHHMM(openHHMM)
	if err != nil {
		return nil, fmt.Errorf("business hours start: %w", err)
	}
	close, err := parseHHMM(closeHHMM)
	if err != nil {
		return nil, fmt.Errorf("business hours end: %w", err)
	}
	if open >= close {
		return nil, fmt.Errorf("business hours start %s must precede end %s", openHHMM, closeHHMM)
	}
	if slotDuration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %s", slotDuration)
	}

	cal := &Calendar{
		loc:           loc,
		businessOpen:  open,
		businessClose: close,
		slotDuration:  slotDuration,
	}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		cal.weekdays[wd] = true
	}
	return cal, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid HH:MM value %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// Location returns the configured business timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// SlotDuration returns the fixed length of every bookable slot.
func (c *Calendar) SlotDuration() time.Duration { return c.slotDuration }

// Normalize converts an instant into the business timezone.
func (c *Calendar) Normalize(t time.Time) time.Time { return t.In(c.loc) }

// InBusinessHours reports whether the instant's local time-of-day falls in
// the half-open [open, close) window.
func (c *Calendar) InBusinessHours(t time.Time) bool {
	local := t.In(c.loc)
	mins := local.Hour()*60 + local.Minute()
	return mins >= c.businessOpen && mins < c.businessClose
}

// OnBusinessDay reports whether the instant falls on a bookable weekday.
func (c *Calendar) OnBusinessDay(t time.Time) bool {
	return c.weekdays[t.In(c.loc).Weekday()]
}

// DayOpen returns the first slot start of the given instant's day.
func (c *Calendar) DayOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		c.businessOpen/60, c.businessOpen%60, 0, 0, c.loc)
}

// DayClose returns the end of business on the given instant's day. No slot
// may extend past it.
func (c *Calendar) DayClose(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		c.businessClose/60, c.businessClose%60, 0, 0, c.loc)
}

// At places the given instant's time-of-day onto a day shifted by offsetDays,
// in the business timezone. Used by the alternative-slot search to probe the
// same time on neighboring days.
func (c *Calendar) At(t time.Time, offsetDays int) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offsetDays,
		local.Hour(), local.Minute(), local.Second(), 0, c.loc)
}

const (
	instantLayout     = "2006-01-02T15:04:05"
	instantLayoutMins = "2006-01-02T15:04"
	dayLayout         = "2006-01-02"
)

// ParseInstant parses an ISO-8601 datetime string at the service boundary.
// Offset-qualified strings keep their instant; naive strings are assumed
// local to the business timezone. Malformed input wraps ErrMalformedInstant.
func (c *Calendar) ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(c.loc), nil
	}
	if t, err := time.ParseInLocation(instantLayout, s, c.loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(instantLayoutMins, s, c.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 datetime", ErrMalformedInstant, s)
}

// ParseDay parses a YYYY-MM-DD date, also accepting a full datetime whose
// date component is then used.
func (c *Calendar) ParseDay(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dayLayout, s, c.loc); err == nil {
		return t, nil
	}
	if t, err := c.ParseInstant(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 date", ErrMalformedInstant, s)
}
