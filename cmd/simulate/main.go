package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saadia-Asghar/callpilot-control/internal/db"
)

// Drives mixed read/book traffic at a running api-server so the
// check-then-act behavior can be observed under contention: concurrent
// workers aimed at the same day produce 409s on the booking path while the
// availability reads stay consistent.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	UserLimit    int
	PostgresDSN  string
}

type Counters struct {
	availability int64
	slots        int64
	alternatives int64
	booked       int64
	conflicts    int64
	errors       int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()
	log.Printf("simulate starting: url=%s duration=%s workers=%d booking_ratio=%.2f",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.BookingRatio)

	users, err := loadUserIDs(cfg)
	if err != nil {
		log.Fatalf("load users: %v", err)
	}
	if len(users) == 0 {
		log.Fatal("no users found, run cmd/seed first")
	}
	log.Printf("loaded %d users", len(users))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var counters Counters
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runWorker(ctx, cfg, users, &counters, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(i))
	}

	wg.Wait()

	log.Printf("simulate done: availability=%d slots=%d alternatives=%d booked=%d conflicts=%d errors=%d",
		atomic.LoadInt64(&counters.availability),
		atomic.LoadInt64(&counters.slots),
		atomic.LoadInt64(&counters.alternatives),
		atomic.LoadInt64(&counters.booked),
		atomic.LoadInt64(&counters.conflicts),
		atomic.LoadInt64(&counters.errors),
	)
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_URL", "http://localhost:8080"),
		Duration:     30 * time.Second,
		Workers:      8,
		BookingRatio: 0.3,
		UserLimit:    100,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SIM_BOOKING_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.BookingRatio = f
		}
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadUserIDs(cfg SimConfig) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	return fetchUserIDs(ctx, pool, cfg.UserLimit)
}

func fetchUserIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM users LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func runWorker(ctx context.Context, cfg SimConfig, users []uuid.UUID, counters *Counters, rng *rand.Rand) {
	client := &http.Client{Timeout: 10 * time.Second}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		target := randomSlotTime(rng)

		if rng.Float64() < cfg.BookingRatio {
			doBooking(ctx, client, cfg.APIBaseURL, users[rng.Intn(len(users))], target, counters)
			continue
		}

		switch rng.Intn(3) {
		case 0:
			url := fmt.Sprintf("%s/availability?start=%s", cfg.APIBaseURL, target.Format(time.RFC3339))
			doGet(ctx, client, url, &counters.availability, counters)
		case 1:
			url := fmt.Sprintf("%s/slots?day=%s", cfg.APIBaseURL, target.Format("2006-01-02"))
			doGet(ctx, client, url, &counters.slots, counters)
		default:
			url := fmt.Sprintf("%s/alternatives?requested=%s", cfg.APIBaseURL, target.Format(time.RFC3339))
			doGet(ctx, client, url, &counters.alternatives, counters)
		}
	}
}

// randomSlotTime picks a grid-aligned time within the next two weeks so
// workers collide on a small set of slots.
func randomSlotTime(rng *rand.Rand) time.Time {
	day := time.Now().AddDate(0, 0, rng.Intn(14)+1)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	return day.Add(time.Duration(9*60+30*rng.Intn(16)) * time.Minute)
}

func doGet(ctx context.Context, client *http.Client, url string, counter *int64, counters *Counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		atomic.AddInt64(&counters.errors, 1)
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&counters.errors, 1)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		atomic.AddInt64(&counters.errors, 1)
		return
	}
	atomic.AddInt64(counter, 1)
}

func doBooking(ctx context.Context, client *http.Client, baseURL string, userID uuid.UUID, start time.Time, counters *Counters) {
	body, _ := json.Marshal(map[string]string{
		"user_id": userID.String(),
		"start":   start.Format(time.RFC3339),
		"reason":  "load test booking",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/bookings", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&counters.errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&counters.errors, 1)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusCreated:
		atomic.AddInt64(&counters.booked, 1)
	case resp.StatusCode == http.StatusConflict:
		atomic.AddInt64(&counters.conflicts, 1)
	case resp.StatusCode >= 500:
		atomic.AddInt64(&counters.errors, 1)
	}
}
