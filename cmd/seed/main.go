package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saadia-Asghar/callpilot-control/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	userIDs, err := seedUsers(context.Background(), pool, 200)
	if err != nil {
		log.Fatalf("seed users: %v", err)
	}
	if err := seedProfiles(context.Background(), pool, userIDs); err != nil {
		log.Fatalf("seed client profiles: %v", err)
	}
	if err := seedBookingHistory(context.Background(), pool, userIDs, 1500); err != nil {
		log.Fatalf("seed booking history: %v", err)
	}
	if err := seedRecoveryLogs(context.Background(), pool, userIDs, 300); err != nil {
		log.Fatalf("seed recovery logs: %v", err)
	}

	log.Println("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d users", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		phone := gofakeit.Phone()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, phone_number, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.Name(), phone, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("users seeded")
	return ids, nil
}

func seedProfiles(ctx context.Context, pool *pgxpool.Pool, userIDs []uuid.UUID) error {
	// Roughly a third of users have recorded time preferences.
	log.Println("seeding client profiles")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range userIDs {
		if gofakeit.Number(0, 2) != 0 {
			continue
		}

		count := gofakeit.Number(1, 3)
		hours := make([]int32, 0, count)
		for i := 0; i < count; i++ {
			hours = append(hours, int32(gofakeit.Number(9, 16)))
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO client_profiles (user_id, preferred_hours, updated_at)
			VALUES ($1, $2, now())
		`, id, hours)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("client profiles seeded")
	return nil
}

func seedBookingHistory(ctx context.Context, pool *pgxpool.Pool, userIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d historical bookings", count)

	statuses := []string{
		"confirmed", "confirmed", "confirmed", "confirmed", "confirmed",
		"cancelled", "cancelled",
		"rescheduled",
		"no_show",
	}
	reasons := []string{
		"Initial consultation",
		"Follow-up visit",
		"Annual checkup",
		"Treatment session",
		"Review appointment",
	}

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			userID := userIDs[gofakeit.Number(0, len(userIDs)-1)]
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			reason := reasons[gofakeit.Number(0, len(reasons)-1)]

			// Past weekday slot on the half-hour grid, 09:00-16:30.
			daysAgo := gofakeit.Number(1, 90)
			start := time.Now().AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour)
			for start.Weekday() == time.Saturday || start.Weekday() == time.Sunday {
				start = start.AddDate(0, 0, -1)
			}
			start = start.Add(time.Duration(9*60+30*gofakeit.Number(0, 15)) * time.Minute)

			_, err := tx.Exec(ctx, `
				INSERT INTO bookings (id, user_id, start_time, reason, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), userID, start, reason, status)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		log.Printf("seeded bookings %d-%d", offset, end)
	}

	log.Println("booking history seeded")
	return nil
}

func seedRecoveryLogs(ctx context.Context, pool *pgxpool.Pool, userIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d recovery logs", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		userID := userIDs[gofakeit.Number(0, len(userIDs)-1)]
		status := "failed"
		if gofakeit.Number(0, 9) < 6 {
			status = "successful"
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO recovery_logs (user_id, status, created_at)
			VALUES ($1, $2, now() - make_interval(days => $3))
		`, userID, status, gofakeit.Number(1, 60))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("recovery logs seeded")
	return nil
}
