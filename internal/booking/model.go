package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusNoShow      Status = "no_show"
)

// Occupies reports whether a booking in this status claims calendar space.
// Everything except confirmed is inert for availability.
func (s Status) Occupies() bool {
	return s == StatusConfirmed
}

type User struct {
	ID          uuid.UUID
	Name        string
	PhoneNumber *string
	Email       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Booking struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	StartTime time.Time
	Reason    *string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientProfile carries per-user scheduling preferences used by the
// optimizer. Hours are local to the business timezone.
type ClientProfile struct {
	UserID         uuid.UUID
	PreferredHours []int
	UpdatedAt      time.Time
}
