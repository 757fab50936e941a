package importer

// janitor.go removes idle sessions on a cron schedule.
//
// The server runs it against Service.Sweep, which removes idle memory
// sessions under their session locks; Redis expires idle keys by TTL. A
// failed sweep is logged and retried on the next tick.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep every ten minutes.
const DefaultSweepSchedule = "*/10 * * * *"

// JanitorConfig holds configuration for the idle session sweep.
type JanitorConfig struct {
	Schedule    string        // Standard 5-field cron spec (default: every 10 min)
	IdleTimeout time.Duration // Sessions untouched this long are removed (default: 2h)
}

// Janitor periodically sweeps idle sessions from a store.
type Janitor struct {
	store Sweeper
	cfg   JanitorConfig
	cron  *cron.Cron
	now   func() time.Time
}

// NewJanitor creates a Janitor. The schedule is parsed immediately so a bad
// spec fails at startup.
func NewJanitor(store Sweeper, cfg JanitorConfig) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	j := &Janitor{store: store, cfg: cfg, cron: cron.New(), now: time.Now}
	if _, err := j.cron.AddFunc(cfg.Schedule, func() { j.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", cfg.Schedule, err)
	}
	return j, nil
}

// Start begins running the sweep in the background.
func (j *Janitor) Start() {
	slog.Info("session janitor started",
		"schedule", j.cfg.Schedule,
		"idle_timeout", j.cfg.IdleTimeout.String(),
	)
	j.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish or ctx
// to end.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	slog.Info("session janitor stopped")
}

// Sweep performs one pass and returns the number of sessions removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := j.now()
	removed, err := j.store.Sweep(ctx, start.Add(-j.cfg.IdleTimeout))
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		slog.Info("idle sessions swept",
			"sessions_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return removed
}
