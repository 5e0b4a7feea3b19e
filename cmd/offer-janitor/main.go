// offer-janitor
//
// Reverts interview offers left in SCHEDULING by booking requests that died
// before their final write. Runs the sweep on JANITOR_SCHEDULE and once at
// startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/config"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/db"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/events"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/janitor"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/logger"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[offer-janitor] Config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "offer-janitor"))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	reaper := janitor.NewReaper(
		postgres.New(pool),
		booking.NewRedisLocker(rdb, cfg.BookingLockTTL, cfg.BookingLockWait),
		events.NewRedisPublisher(rdb, ""),
		cfg.JanitorStaleAfter,
		log,
	)
	sched := janitor.NewScheduler(reaper, cfg.JanitorSchedule, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	sched.Stop()
}
