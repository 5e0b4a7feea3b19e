// pipeline-service
//
// Recruiting pipeline for the team applications. Exposes a REST API and a
// gRPC service used by the Gateway to implement:
//   - applications: create, submit, view (phase-projected), list
//   - offers: interview/trial offers, rejections, decisions
//   - interviews: slot lookup, system selection, booking, cancellation, outcomes
//   - phase: read and advance the recruiting phase
//
// Publishes EVENT_* domain events to Redis for Gateway SSE forwarding.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/calendar"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/config"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/db"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/events"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/grpcserver"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/httpapi"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/logger"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/store/postgres"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[pipeline-service] Config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "pipeline-service"))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()
	store := postgres.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("postgres schema", zap.Error(err))
	}
	log.Info("PostgreSQL connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("Redis connected")

	// ── Services ─────────────────────────────────────────────────────────────
	svc := pipeline.NewService(store, store, cfg.Catalog, log.Named("pipeline"),
		pipeline.WithPublisher(events.NewRedisPublisher(rdb, "")))

	var cal booking.Calendar
	if cfg.CalendarCredentialsFile != "" {
		client, err := calendar.New(ctx, cfg.CalendarTimeout, option.WithCredentialsFile(cfg.CalendarCredentialsFile))
		if err != nil {
			log.Fatal("calendar client", zap.Error(err))
		}
		cal = client
	} else {
		log.Warn("CALENDAR_CREDENTIALS_FILE not set; interview booking is disabled")
	}

	coord := booking.New(svc, store, cal,
		booking.NewRedisLocker(rdb, cfg.BookingLockTTL, cfg.BookingLockWait),
		log.Named("booking"),
		booking.WithHorizonDays(cfg.BookingHorizonDays))
	svc.SetOfferRemovalHook(coord)

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	httpapi.NewHandler(svc, coord, log.Named("http")).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CalendarTimeout + 10*time.Second,
	}

	go func() {
		log.Info("HTTP listening", zap.String("version", version), zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("gRPC listen", zap.Error(err))
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(svc, coord, log))

	go func() {
		log.Info("gRPC listening", zap.String("port", cfg.GRPCPort))
		if err := gs.Serve(lis); err != nil {
			log.Fatal("gRPC server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	gs.GracefulStop()
	log.Info("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "pipeline-service",
		"version": version,
	})
}
