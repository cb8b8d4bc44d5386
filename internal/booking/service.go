package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/Saadia-Asghar/callpilot-control/internal/redis"
	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

var (
	ErrSlotUnavailable         = errors.New("requested slot is not available")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")
)

// Service owns the booking write path. The scheduler's availability check is
// only a pre-check; the authoritative double-booking guard is the per-slot
// Redis lock plus the re-check inside its critical section.
type Service struct {
	repo   Repository
	sched  *schedule.Scheduler
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, sched *schedule.Scheduler, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		sched:  sched,
		locker: locker,
		log:    log,
	}
}

// Book reserves the slot starting at start for the user. The caller must
// treat an ErrSlotUnavailable result as a hard stop and either offer
// alternatives or re-prompt.
func (s *Service) Book(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*Booking, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	start = s.sched.Calendar().Normalize(start)

	ok, err := s.sched.IsAvailable(ctx, start)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}

	var created *Booking

	err = s.locker.WithSlotLock(ctx, start, func(lockCtx context.Context) error {
		// Re-check inside the critical section: another caller may have won
		// the race between the pre-check and the lock.
		ok, err := s.sched.IsAvailable(lockCtx, start)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSlotUnavailable
		}

		b, err := s.repo.CreateConfirmedBooking(lockCtx, userID, start, reason)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		created = b

		s.log.Info().
			Str("booking_id", b.ID.String()).
			Str("user_id", userID.String()).
			Time("start", start).
			Msg("booking confirmed")
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Cancel frees a confirmed booking's slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("booking_id", id.String()).Msg("booking cancelled")
	return b, nil
}

// MarkNoShow records a missed appointment. No-show bookings stay immutable
// afterwards and feed the optimizer's history.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusNoShow)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("booking_id", id.String()).Msg("booking marked no-show")
	return b, nil
}

// Reschedule moves a confirmed booking to a new start. The old row is kept
// as history with status rescheduled; the new time gets its own confirmed
// row so it occupies calendar space.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*Booking, error) {
	old, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if old.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	newStart = s.sched.Calendar().Normalize(newStart)

	ok, err := s.sched.IsAvailable(ctx, newStart)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}

	var moved *Booking

	err = s.locker.WithSlotLock(ctx, newStart, func(lockCtx context.Context) error {
		ok, err := s.sched.IsAvailable(lockCtx, newStart)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSlotUnavailable
		}

		if _, err := s.repo.UpdateBookingStatus(lockCtx, id, StatusConfirmed, StatusRescheduled); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return ErrInvalidStatusTransition
			}
			return fmt.Errorf("retire old booking: %w", err)
		}

		b, err := s.repo.CreateConfirmedBooking(lockCtx, old.UserID, newStart, old.Reason)
		if err != nil {
			return fmt.Errorf("create rescheduled booking: %w", err)
		}
		moved = b

		s.log.Info().
			Str("booking_id", id.String()).
			Str("new_booking_id", b.ID.String()).
			Time("new_start", newStart).
			Msg("booking rescheduled")
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return moved, nil
}

// GetBooking retrieves a booking by ID.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookingsByUser retrieves a user's bookings, newest first.
func (s *Service) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := s.repo.ListBookingsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings by user: %w", err)
	}
	return bookings, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Booking, error) {
	b, err := s.repo.UpdateBookingStatus(ctx, id, StatusConfirmed, to)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// Either the booking does not exist or it is no longer
			// confirmed; tell them apart for the caller.
			if _, getErr := s.repo.GetBookingByID(ctx, id); getErr == nil {
				return nil, ErrInvalidStatusTransition
			}
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return b, nil
}
