package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
	tz   string // business timezone for hour-of-day aggregates
}

func NewPgRepository(pool *pgxpool.Pool, tz string) *PgRepository {
	return &PgRepository{pool: pool, tz: tz}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var phone, email *string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&phone,
		&email,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.PhoneNumber = phone
	u.Email = email
	return &u, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var reason *string

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.StartTime,
		&reason,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Reason = reason
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone_number, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, start_time, reason, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, start_time, reason, status, created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateConfirmedBooking(ctx context.Context, userID uuid.UUID, start time.Time, reason *string) (*Booking, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, start_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'confirmed', now(), now())
		RETURNING id, user_id, start_time, reason, status, created_at, updated_at
	`, id, userID, start, reason)

	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, user_id, start_time, reason, status, created_at, updated_at
	`, id, to, from)

	return scanBooking(row)
}

func (r *PgRepository) ConfirmedInRange(ctx context.Context, start, end time.Time) ([]schedule.Occupancy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, user_id
		FROM bookings
		WHERE status = 'confirmed'
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Occupancy
	for rows.Next() {
		var occ schedule.Occupancy
		if err := rows.Scan(&occ.Start, &occ.UserID); err != nil {
			return nil, err
		}
		result = append(result, occ)
	}
	return result, rows.Err()
}

func (r *PgRepository) BookingStats(ctx context.Context, userID *uuid.UUID) (schedule.BookingStats, error) {
	stats := schedule.BookingStats{HourCounts: make(map[int]int)}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM bookings
		WHERE $1::uuid IS NULL OR user_id = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return schedule.BookingStats{}, fmt.Errorf("count booking statuses: %w", err)
	}
	defer rows.Close()

	var cancelled, noShows int
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return schedule.BookingStats{}, err
		}
		stats.TotalBookings += count
		switch status {
		case StatusCancelled:
			cancelled = count
		case StatusNoShow:
			noShows = count
		}
	}
	if err := rows.Err(); err != nil {
		return schedule.BookingStats{}, err
	}

	if stats.TotalBookings > 0 {
		stats.CancellationRate = float64(cancelled) / float64(stats.TotalBookings)
		stats.NoShowRate = float64(noShows) / float64(stats.TotalBookings)
	}

	hourRows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM start_time AT TIME ZONE $2)::int AS hr, COUNT(*)
		FROM bookings
		WHERE status = 'confirmed'
		  AND ($1::uuid IS NULL OR user_id = $1)
		GROUP BY hr
	`, userID, r.tz)
	if err != nil {
		return schedule.BookingStats{}, fmt.Errorf("count bookings per hour: %w", err)
	}
	defer hourRows.Close()

	for hourRows.Next() {
		var hour, count int
		if err := hourRows.Scan(&hour, &count); err != nil {
			return schedule.BookingStats{}, err
		}
		stats.HourCounts[hour] = count
	}
	return stats, hourRows.Err()
}

func (r *PgRepository) PreferredHours(ctx context.Context, userID uuid.UUID) ([]int, error) {
	var hours []int32
	err := r.pool.QueryRow(ctx, `
		SELECT preferred_hours
		FROM client_profiles
		WHERE user_id = $1
	`, userID).Scan(&hours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	result := make([]int, len(hours))
	for i, h := range hours {
		result[i] = int(h)
	}
	return result, nil
}

func (r *PgRepository) RecoverySuccessRate(ctx context.Context) (float64, error) {
	var successes, attempts int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'successful'), COUNT(*)
		FROM recovery_logs
	`).Scan(&successes, &attempts)
	if err != nil {
		return 0, err
	}
	if attempts == 0 {
		return 0, nil
	}
	return float64(successes) / float64(attempts), nil
}

// SaveClientProfile upserts a user's preferred hours. The scheduling core
// only reads profiles; writes come from profile-facing callers.
func (r *PgRepository) SaveClientProfile(ctx context.Context, profile ClientProfile) error {
	hours := make([]int32, len(profile.PreferredHours))
	for i, h := range profile.PreferredHours {
		hours[i] = int32(h)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_profiles (user_id, preferred_hours, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET preferred_hours = EXCLUDED.preferred_hours,
		    updated_at = now()
	`, profile.UserID, hours)
	if err != nil {
		return fmt.Errorf("save client profile: %w", err)
	}
	return nil
}
