package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

type RouterConfig struct {
	Scheduler   *schedule.Scheduler
	Optimizer   *schedule.Optimizer
	Bookings    BookingService
	HorizonDays int
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Env         string
	Version     string
	Logger      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	cal := cfg.Scheduler.Calendar()

	// Scheduling reads
	r.Get("/availability", availabilityHandler(cfg.Scheduler))
	r.Get("/slots", freeSlotsHandler(cfg.Scheduler))
	r.Get("/alternatives", alternativesHandler(cfg.Scheduler, cfg.HorizonDays))
	r.Get("/suggestions", suggestionsHandler(cfg.Optimizer, cal, cfg.HorizonDays))

	// Booking writes
	r.Post("/bookings", createBookingHandler(cfg.Bookings, cal))
	r.Get("/bookings", listBookingsHandler(cfg.Bookings))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/reschedule", rescheduleBookingHandler(cfg.Bookings, cal))
	r.Post("/bookings/{id}/no-show", noShowBookingHandler(cfg.Bookings))

	return r
}
