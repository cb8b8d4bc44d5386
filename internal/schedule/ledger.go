package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Occupancy is one confirmed booking's claim on the calendar: a start
// instant implicitly paired with the calendar's slot duration.
type Occupancy struct {
	Start  time.Time
	UserID uuid.UUID
}

// Ledger is the read-only view of confirmed bookings the scheduling core
// runs against. Writes happen elsewhere; within a single scheduling call the
// occupancy set is fetched once and never re-queried.
type Ledger interface {
	// ConfirmedInRange returns confirmed bookings whose start falls in
	// [start, end). Callers widen the window by one slot duration when they
	// need bookings that merely overlap the interval.
	ConfirmedInRange(ctx context.Context, start, end time.Time) ([]Occupancy, error)
}

// BookingStats summarizes historical booking outcomes.
type BookingStats struct {
	TotalBookings    int
	CancellationRate float64
	NoShowRate       float64
	HourCounts       map[int]int // confirmed bookings per local hour-of-day
}

// HistorySource supplies the historical signals the optimizer scores with.
type HistorySource interface {
	// BookingStats aggregates outcomes across all bookings, or for one user
	// when userID is non-nil.
	BookingStats(ctx context.Context, userID *uuid.UUID) (BookingStats, error)

	// PreferredHours returns the user's recorded preferred hours-of-day, or
	// an empty slice when no profile exists.
	PreferredHours(ctx context.Context, userID uuid.UUID) ([]int, error)

	// RecoverySuccessRate is the fraction of missed-call recovery attempts
	// that ended in a booking.
	RecoverySuccessRate(ctx context.Context) (float64, error)
}
