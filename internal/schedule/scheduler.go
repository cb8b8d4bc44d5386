package schedule

import (
	"context"
	"fmt"
	"time"
)

// maxHorizonDays caps outward day searches so a bad caller cannot fan a
// single request into thousands of ledger queries.
const maxHorizonDays = 365

const maxAlternatives = 5

// Scheduler answers availability questions against the business calendar
// and the booking ledger. It is read-only: the availability check is a fast
// pre-check for callers, not a lock. Two concurrent callers can both observe
// a slot as free; the authoritative double-booking guard is the serialized
// write path that owns the ledger.
type Scheduler struct {
	cal    *Calendar
	ledger Ledger
}

func NewScheduler(cal *Calendar, ledger Ledger) *Scheduler {
	return &Scheduler{cal: cal, ledger: ledger}
}

// Calendar exposes the business calendar the scheduler was built with.
func (s *Scheduler) Calendar() *Calendar { return s.cal }

// IsAvailable reports whether a single slot starting at start can be booked.
func (s *Scheduler) IsAvailable(ctx context.Context, start time.Time) (bool, error) {
	return s.IsAvailableRange(ctx, start, start.Add(s.cal.SlotDuration()))
}

// IsAvailableRange reports whether the interval [start, end) can be booked.
// An empty or inverted interval is a validation error, not "unavailable".
func (s *Scheduler) IsAvailableRange(ctx context.Context, start, end time.Time) (bool, error) {
	start = s.cal.Normalize(start)
	end = s.cal.Normalize(end)

	if !end.After(start) {
		return false, fmt.Errorf("%w: [%s, %s)", ErrEmptyInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if !s.cal.InBusinessHours(start) || !s.cal.OnBusinessDay(start) {
		return false, nil
	}

	// Slots never extend past end of business: 16:59 with a 30-minute slot
	// is not bookable even though 16:59 itself is inside the window.
	if end.After(s.cal.DayClose(start)) {
		return false, nil
	}

	conflicts, err := s.overlapping(ctx, start, end)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// FreeSlots returns every bookable slot start on the given day, ascending.
// Only the date component of day matters. Non-business days yield an empty
// list. The result reflects the ledger at call time; nothing is cached.
func (s *Scheduler) FreeSlots(ctx context.Context, day time.Time) ([]time.Time, error) {
	open := s.cal.DayOpen(day)
	if !s.cal.OnBusinessDay(open) {
		return []time.Time{}, nil
	}
	close := s.cal.DayClose(day)

	// One fetch for the whole day; the grid is scanned against it in memory.
	occupied, err := s.overlapping(ctx, open, close)
	if err != nil {
		return nil, err
	}

	dur := s.cal.SlotDuration()
	slots := make([]time.Time, 0, close.Sub(open)/dur)
	for cur := open; !cur.Add(dur).After(close); cur = cur.Add(dur) {
		if !overlapsAny(occupied, cur, cur.Add(dur), dur) {
			slots = append(slots, cur)
		}
	}
	return slots, nil
}

// SuggestAlternatives proposes up to five bookable substitutes near the
// requested instant. It probes the same time-of-day on neighboring days,
// earlier day before later at each offset, then pads with any-time free
// slots from the requested day if fewer than three were found. Proximity
// ranking only; quality ranking lives in the Optimizer.
func (s *Scheduler) SuggestAlternatives(ctx context.Context, requested time.Time, horizonDays int) ([]time.Time, error) {
	if horizonDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizonDays)
	}
	if horizonDays > maxHorizonDays {
		horizonDays = maxHorizonDays
	}

	requested = s.cal.Normalize(requested)
	alternatives := make([]time.Time, 0, maxAlternatives)

	ok, err := s.IsAvailable(ctx, requested)
	if err != nil {
		return nil, err
	}
	if ok {
		alternatives = append(alternatives, requested)
	}

	for offset := 1; offset <= horizonDays; offset++ {
		for _, direction := range [2]int{-1, 1} {
			candidate := s.cal.At(requested, direction*offset)
			ok, err := s.IsAvailable(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if ok {
				alternatives = append(alternatives, candidate)
				if len(alternatives) >= maxAlternatives {
					return alternatives, nil
				}
			}
		}
	}

	if len(alternatives) < 3 {
		free, err := s.FreeSlots(ctx, requested)
		if err != nil {
			return nil, err
		}
		for _, slot := range free {
			if len(alternatives) >= maxAlternatives {
				break
			}
			if !containsInstant(alternatives, slot) {
				alternatives = append(alternatives, slot)
			}
		}
	}

	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}
	return alternatives, nil
}

// overlapping fetches confirmed bookings whose occupied interval intersects
// [start, end). The ledger query is widened by one slot duration to catch
// bookings that start before the window but spill into it.
func (s *Scheduler) overlapping(ctx context.Context, start, end time.Time) ([]Occupancy, error) {
	dur := s.cal.SlotDuration()
	fetched, err := s.ledger.ConfirmedInRange(ctx, start.Add(-dur), end)
	if err != nil {
		return nil, fmt.Errorf("fetch confirmed bookings: %w", err)
	}

	var conflicts []Occupancy
	for _, b := range fetched {
		if b.Start.Before(end) && b.Start.Add(dur).After(start) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

// overlapsAny applies the strict half-open interval test: occupying
// [b, b+dur) conflicts with [start, end) iff b < end && b+dur > start.
// Back-to-back intervals do not conflict.
func overlapsAny(occupied []Occupancy, start, end time.Time, dur time.Duration) bool {
	for _, b := range occupied {
		if b.Start.Before(end) && b.Start.Add(dur).After(start) {
			return true
		}
	}
	return false
}

func containsInstant(list []time.Time, t time.Time) bool {
	for _, v := range list {
		if v.Equal(t) {
			return true
		}
	}
	return false
}
