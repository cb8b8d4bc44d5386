package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	baseScore = 50
	maxScore  = 100

	maxSuggestions  = 5
	highDemandCount = 3

	highCancellationRate = 0.3
	highNoShowRate       = 0.2
	highRecoveryRate     = 0.7
)

// RankedSlot is one scored suggestion. Rationale lists the bonuses that
// fired, in evaluation order.
type RankedSlot struct {
	Start     time.Time
	Score     int
	Rationale string
}

// PatternSummary is the historical picture a ranking request scores
// against. Recomputed per call, never persisted.
type PatternSummary struct {
	TotalBookings       int
	CancellationRate    float64
	NoShowRate          float64
	HighDemandHours     []int
	RecoverySuccessRate float64
}

// Optimizer ranks free slots by how well history says they will hold up:
// demand by hour, cancellation and no-show rates, per-user preferred hours.
// It layers on the Scheduler and shares its read-only contract.
type Optimizer struct {
	sched *Scheduler
	hist  HistorySource
}

func NewOptimizer(sched *Scheduler, hist HistorySource) *Optimizer {
	return &Optimizer{sched: sched, hist: hist}
}

// SuggestOptimalSlots enumerates free slots over [from, to] day by day,
// scores each against the historical summary, and returns the top five by
// score, earliest first among ties. Identical ledger state yields an
// identical list.
func (o *Optimizer) SuggestOptimalSlots(ctx context.Context, from, to time.Time, userID *uuid.UUID) ([]RankedSlot, error) {
	cal := o.sched.Calendar()
	from = cal.Normalize(from)
	to = cal.Normalize(to)

	firstDay := cal.DayOpen(from)
	lastDay := cal.DayOpen(to)
	if lastDay.Before(firstDay) {
		return nil, fmt.Errorf("%w: %s after %s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if lastDay.Sub(firstDay) > maxHorizonDays*24*time.Hour {
		lastDay = cal.At(firstDay, maxHorizonDays)
	}

	var candidates []time.Time
	for day := 0; ; day++ {
		cur := cal.At(firstDay, day)
		if cur.After(lastDay) {
			break
		}
		slots, err := o.sched.FreeSlots(ctx, cur)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, slots...)
	}
	if len(candidates) == 0 {
		return []RankedSlot{}, nil
	}

	summary, preferred, err := o.analyze(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedSlot, len(candidates))
	for i, slot := range candidates {
		score, rationale := scoreSlot(cal.Normalize(slot), summary, preferred)
		ranked[i] = RankedSlot{Start: slot, Score: score, Rationale: rationale}
	}

	// Candidates arrive in ascending instant order, so a stable sort on
	// score alone keeps the earliest-first tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > maxSuggestions {
		ranked = ranked[:maxSuggestions]
	}
	return ranked, nil
}

// Analyze builds the pattern summary without scoring anything, for callers
// that surface the historical picture itself.
func (o *Optimizer) Analyze(ctx context.Context, userID *uuid.UUID) (PatternSummary, error) {
	summary, _, err := o.analyze(ctx, userID)
	return summary, err
}

func (o *Optimizer) analyze(ctx context.Context, userID *uuid.UUID) (PatternSummary, []int, error) {
	stats, err := o.hist.BookingStats(ctx, userID)
	if err != nil {
		return PatternSummary{}, nil, fmt.Errorf("fetch booking stats: %w", err)
	}

	recovery, err := o.hist.RecoverySuccessRate(ctx)
	if err != nil {
		return PatternSummary{}, nil, fmt.Errorf("fetch recovery success rate: %w", err)
	}

	var preferred []int
	if userID != nil {
		preferred, err = o.hist.PreferredHours(ctx, *userID)
		if err != nil {
			return PatternSummary{}, nil, fmt.Errorf("fetch preferred hours: %w", err)
		}
	}

	summary := PatternSummary{
		TotalBookings:       stats.TotalBookings,
		CancellationRate:    stats.CancellationRate,
		NoShowRate:          stats.NoShowRate,
		HighDemandHours:     topDemandHours(stats.HourCounts, highDemandCount),
		RecoverySuccessRate: recovery,
	}
	return summary, preferred, nil
}

// topDemandHours picks the n most-booked hours. Ties resolve toward the
// earlier hour so the set is stable across calls.
func topDemandHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

// scoreSlot applies the additive bonuses in their fixed evaluation order.
// The rationale fragments mirror that order exactly.
func scoreSlot(slot time.Time, summary PatternSummary, preferredHours []int) (int, string) {
	score := baseScore
	var reasons []string

	hour := slot.Hour()

	if containsHour(summary.HighDemandHours, hour) {
		score += 20
		reasons = append(reasons, "Popular time slot")
	} else {
		score += 10
		reasons = append(reasons, "Available time slot")
	}

	if summary.CancellationRate > highCancellationRate && hour < 12 {
		score += 15
		reasons = append(reasons, "Morning slot (lower cancellation risk)")
	}

	if summary.NoShowRate > highNoShowRate && hour >= 10 && hour <= 14 {
		score += 15
		reasons = append(reasons, "Mid-day slot (better attendance)")
	}

	if containsHour(preferredHours, hour) {
		score += 25
		reasons = append(reasons, "Matches user preference")
	}

	if wd := slot.Weekday(); wd >= time.Monday && wd <= time.Friday {
		score += 10
		reasons = append(reasons, "Weekday appointment")
	}

	if summary.RecoverySuccessRate > highRecoveryRate {
		score += 10
		reasons = append(reasons, "High recovery success rate for this time")
	}

	if score > maxScore {
		score = maxScore
	}
	return score, strings.Join(reasons, "; ")
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}
