package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrProfileNotFound = errors.New("client profile not found")
)

// Repository contains all DB interactions needed by the booking service and
// the scheduling core. It doubles as the schedule package's Ledger and
// HistorySource.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error)

	// Writes
	CreateConfirmedBooking(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)

	// Scheduling reads
	ConfirmedInRange(ctx context.Context, start, end time.Time) ([]schedule.Occupancy, error)

	// Historical aggregates for the optimizer
	BookingStats(ctx context.Context, userID *uuid.UUID) (schedule.BookingStats, error)
	PreferredHours(ctx context.Context, userID uuid.UUID) ([]int, error)
	RecoverySuccessRate(ctx context.Context) (float64, error)
}
