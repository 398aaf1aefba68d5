package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abiolaogu/voxguard-detectord/internal/behavior"
	"github.com/abiolaogu/voxguard-detectord/internal/config"
	"github.com/abiolaogu/voxguard-detectord/internal/detector"
	"github.com/abiolaogu/voxguard-detectord/internal/domain/events"
	"github.com/abiolaogu/voxguard-detectord/internal/httpserver"
	"github.com/abiolaogu/voxguard-detectord/internal/outbox"
	"github.com/abiolaogu/voxguard-detectord/internal/ports"
	"github.com/abiolaogu/voxguard-detectord/internal/recordstore"
	"github.com/abiolaogu/voxguard-detectord/internal/timeseries"
	"github.com/abiolaogu/voxguard-detectord/internal/windowcache"
	"github.com/abiolaogu/voxguard-detectord/pkg/metrics"
	"github.com/abiolaogu/voxguard-detectord/pkg/valueobj"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	switch strings.ToLower(getenv("LOG_LEVEL", "info")) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not reachable yet")
	} else {
		log.Info().Msg("redis reachable")
	}
	pingCancel()
	cache := windowcache.NewRedisCache(rdb)

	store, err := recordstore.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	if cfg.Postgres.MigrationsDir != "" {
		if err := store.InitSchema(ctx, cfg.Postgres.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
	}

	var sink *timeseries.Sink
	if cfg.InfluxDB.URL != "" {
		sink = timeseries.NewSink(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	}

	publisher := &logPublisher{}
	ob := outbox.New(publisher, cfg.Outbox.AlertCapacity, cfg.Outbox.RoutineCapacity)

	thresholds := behavior.DefaultThresholds()
	if cfg.Behavioral.CPMWarning > 0 {
		thresholds.CPMWarning = cfg.Behavioral.CPMWarning
	}
	if cfg.Behavioral.CPMCritical > 0 {
		thresholds.CPMCritical = cfg.Behavioral.CPMCritical
	}
	if cfg.Behavioral.ACDWarningSeconds > 0 {
		thresholds.ACDWarning = cfg.Behavioral.ACDWarningSeconds
	}
	if cfg.Behavioral.ACDCriticalSeconds > 0 {
		thresholds.ACDCritical = cfg.Behavioral.ACDCriticalSeconds
	}
	if cfg.Behavioral.UniqueDestinationsCritical > 0 {
		thresholds.UniqueDstCritical = cfg.Behavioral.UniqueDestinationsCritical
	}
	tracker := behavior.NewTracker(behavior.DefaultConfig())

	det := detector.New(detector.Config{
		Window:             mustWindow(cfg.Detection.WindowSeconds),
		Threshold:          mustThreshold(cfg.Detection.Threshold),
		CooldownSeconds:    cfg.Detection.CooldownSeconds,
		AutoBlockEnabled:   cfg.Detection.AutoBlockEnabled,
		CacheTimeout:       time.Duration(cfg.Cache.CacheTimeoutMs) * time.Millisecond,
		StoreTimeout:       time.Duration(cfg.Cache.StoreTimeoutMs) * time.Millisecond,
		SinkTimeout:        time.Duration(cfg.Cache.SinkTimeoutMs) * time.Millisecond,
		BehaviorThresholds: thresholds,
	}, cache, store, sinkOrNil(sink), ob, tracker)

	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{Detector: det})
	metrics.Register(prometheus.DefaultRegisterer)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8443"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	httpserver.EnableDrainFlag(true)

	go func() {
		log.Info().Str("addr", addr).Msg("voxguard-detectord listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown requested; draining")

	httpserver.SetDraining(true)

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown did not complete in time; forcing close")
		_ = srv.Close()
	} else {
		log.Info().Msg("http server shut down cleanly")
	}

	cleanup()
	ob.Close()
	tracker.Close()
	if sink != nil {
		_ = sink.Close()
	}
	store.Close()
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}

	log.Info().Msg("voxguard-detectord exited")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// mustWindow validates the configured window, falling back to the
// documented default when unset.
func mustWindow(seconds int) valueobj.DetectionWindow {
	if seconds <= 0 {
		return valueobj.DefaultDetectionWindow()
	}
	w, err := valueobj.NewDetectionWindow(seconds)
	if err != nil {
		log.Fatal().Err(err).Int("window_seconds", seconds).Msg("invalid detection window")
	}
	return w
}

// mustThreshold validates the configured threshold, falling back to
// the documented default when unset.
func mustThreshold(count int) valueobj.DetectionThreshold {
	if count <= 0 {
		return valueobj.DefaultDetectionThreshold()
	}
	t, err := valueobj.NewDetectionThreshold(count)
	if err != nil {
		log.Fatal().Err(err).Int("threshold", count).Msg("invalid detection threshold")
	}
	return t
}

// sinkOrNil erases a nil *timeseries.Sink down to a nil
// ports.TimeSeriesSink, avoiding the typed-nil-interface trap when
// InfluxDB is not configured.
func sinkOrNil(s *timeseries.Sink) ports.TimeSeriesSink {
	if s == nil {
		return nil
	}
	return s
}

// logPublisher is the outbox's downstream delivery target when no
// external subscriber transport is configured: it logs every event at
// info level. A real deployment wires the outbox to NCC/dashboard
// subscribers instead (out of scope per spec.md §1).
type logPublisher struct{}

func (logPublisher) Publish(_ context.Context, evt events.Event) error {
	log.Info().
		Str("event_type", evt.EventType()).
		Str("aggregate_id", evt.AggregateID()).
		Msg("domain_event")
	return nil
}
