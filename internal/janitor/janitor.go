// Package janitor reverts interview offers stuck in SCHEDULING after a
// booking request died between its claim and its final write.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/metrics"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

// ─── Reaper ──────────────────────────────────────────────────────────────────

// Reaper performs one sweep over stale claims.
type Reaper struct {
	repo       pipeline.Repository
	locks      booking.Locker
	pub        pipeline.Publisher
	staleAfter time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewReaper returns a Reaper reverting claims older than staleAfter. locks
// is the booking lock so a sweep never races a live booking request.
func NewReaper(repo pipeline.Repository, locks booking.Locker, pub pipeline.Publisher, staleAfter time.Duration, log *zap.Logger) *Reaper {
	if pub == nil {
		pub = pipeline.NopPublisher{}
	}
	return &Reaper{repo: repo, locks: locks, pub: pub, staleAfter: staleAfter, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Sweep reverts every stale claim and returns how many were reverted. A
// failure on one claim is logged and does not stop the sweep.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.staleAfter)
	stale, err := r.repo.ListStaleClaims(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	reverted := 0
	for _, b := range stale {
		ok, err := r.revert(ctx, b, cutoff)
		if err != nil {
			r.log.Warn("reverting stale claim failed", zap.Stringer("booking", b), zap.Error(err))
			continue
		}
		if ok {
			reverted++
		}
	}
	return reverted, nil
}

func (r *Reaper) revert(ctx context.Context, b pipeline.Booking, cutoff time.Time) (bool, error) {
	app, err := r.repo.GetApplication(ctx, b.ApplicationID)
	if err != nil {
		return false, err
	}
	release, err := r.locks.Acquire(ctx, booking.LockKey(app.Team, b.System))
	if err != nil {
		return false, err
	}
	defer func() {
		if err := release(); err != nil {
			r.log.Warn("booking lock release failed", zap.String("system", b.System), zap.Error(err))
		}
	}()

	changed := false
	app, err = r.repo.UpdateApplication(ctx, b.ApplicationID, func(a *pipeline.Application) error {
		changed = false
		o := a.InterviewOffer(b.System)
		// Re-check under the row lock: the request may have finished since.
		if o == nil || o.Status != pipeline.OfferScheduling || o.ClaimedAt == nil || !o.ClaimedAt.Before(cutoff) {
			return nil
		}
		changed = true
		a.UpdatedAt = r.now().UTC()
		return a.AbandonClaim(b.System)
	})
	if err != nil || !changed {
		return false, err
	}

	metrics.StaleClaimsReverted.Inc()
	r.log.Info("stale claim reverted",
		zap.String("applicationId", app.ID), zap.String("team", app.Team), zap.String("system", b.System))
	if err := r.pub.Publish(ctx, pipeline.Event{
		Type:          pipeline.EventApplicationUpdated,
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		Team:          app.Team,
		System:        b.System,
		Status:        string(app.Status),
		At:            r.now().UTC().Format(time.RFC3339),
	}); err != nil {
		r.log.Warn("publish EVENT_APPLICATION_UPDATED failed", zap.Error(err))
	}
	return true, nil
}

// ─── Scheduler ───────────────────────────────────────────────────────────────

// Scheduler wraps robfig/cron and runs the sweep on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	reaper   *Reaper
	schedule string // e.g. "@every 5m"
	log      *zap.Logger
}

// NewScheduler creates a Scheduler. Overlapping runs are skipped.
func NewScheduler(reaper *Reaper, schedule string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reaper:   reaper,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the job and starts the scheduler. It also sweeps once
// immediately so claims left by a crash are released without waiting.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("janitor started", zap.String("schedule", s.schedule))

	go s.run(ctx)
	return nil
}

// Stop waits for a running sweep and shuts down the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("janitor stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := s.reaper.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("sweep complete", zap.Int("reverted", n))
	}
}
