package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Saadia-Asghar/callpilot-control/internal/api"
	"github.com/Saadia-Asghar/callpilot-control/internal/booking"
	"github.com/Saadia-Asghar/callpilot-control/internal/config"
	"github.com/Saadia-Asghar/callpilot-control/internal/db"
	redisclient "github.com/Saadia-Asghar/callpilot-control/internal/redis"
	"github.com/Saadia-Asghar/callpilot-control/internal/schedule"
)

const version = "0.3.0"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	logger.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Str("business_hours", cfg.BusinessHoursStart+"-"+cfg.BusinessHoursEnd).
		Dur("slot_duration", cfg.SlotDuration).
		Msg("configuration loaded")

	cal, err := schedule.NewCalendar(cfg.Timezone, cfg.BusinessHoursStart, cfg.BusinessHoursEnd, cfg.SlotDuration)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid business calendar")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := booking.NewPgRepository(pgPool, cfg.Timezone)
	sched := schedule.NewScheduler(cal, repo)
	opt := schedule.NewOptimizer(sched, repo)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	bookings := booking.NewService(repo, sched, locker, logger)

	router := api.NewRouter(api.RouterConfig{
		Scheduler:   sched,
		Optimizer:   opt,
		Bookings:    bookings,
		HorizonDays: cfg.SuggestionHorizonDays,
		PgPool:      pgPool,
		Redis:       rdb,
		Env:         cfg.Env,
		Version:     version,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}
