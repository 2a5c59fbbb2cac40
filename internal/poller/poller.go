// Package poller drives the milestone engine: on a fixed interval it fetches
// registration snapshots, runs each through the engine, and applies the
// resulting store mutations and notifications. It also posts the leaderboard
// summary at fixed times of day and honors the global cutoff date.
//
// Cycles never overlap; a long cycle simply delays the next tick. A snapshot
// source failure aborts the whole cycle (retried on the next tick), while
// per-event store failures only skip that event.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attendly/regpulse/internal/metrics"
	"github.com/attendly/regpulse/internal/milestone"
	"github.com/attendly/regpulse/internal/notify"
	"github.com/attendly/regpulse/internal/store"
)

// --------------------------------------------------------------------------
// Collaborator contracts
// --------------------------------------------------------------------------

// SnapshotSource supplies current per-event registration totals.
type SnapshotSource interface {
	FetchAll(ctx context.Context) ([]milestone.Snapshot, error)
}

// EventStore persists per-event milestone state and announcement history.
type EventStore interface {
	Get(ctx context.Context, eventID string) (*milestone.TrackedEvent, error)
	Insert(ctx context.Context, ev milestone.TrackedEvent) error
	UpdateCount(ctx context.Context, ev milestone.TrackedEvent) error
	UpdateNotified(ctx context.Context, ev milestone.TrackedEvent) error
	RecordNotification(ctx context.Context, n store.SentNotification) error
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Config holds the poller's collaborators and schedule.
type Config struct {
	Source   SnapshotSource
	Store    EventStore
	Notifier notify.Notifier

	PollInterval     time.Duration
	LeaderboardTimes []string // "HH:MM", local time
	CutoffDate       time.Time

	// PostLeaderboard posts the summary. May be nil to disable.
	PostLeaderboard func(ctx context.Context) error

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Poller runs the driver loop.
type Poller struct {
	cfg Config
	now func() time.Time
}

// New creates a Poller. Source, Store, and Logger are required.
func New(cfg Config) *Poller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Poller{cfg: cfg, now: now}
}

// CycleResult tracks the outcome of one poll cycle.
type CycleResult struct {
	Snapshots    int
	Tracked      int
	Notified     int
	Updated      int
	Ignored      int
	Failed       int
	NotifyFailed int
	Duration     time.Duration
}

// Summary returns a human-readable summary.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf(
		"snapshots=%d tracked=%d notified=%d updated=%d ignored=%d failed=%d notify_failed=%d dur=%s",
		r.Snapshots, r.Tracked, r.Notified, r.Updated, r.Ignored,
		r.Failed, r.NotifyFailed, r.Duration.Round(time.Millisecond))
}

// --------------------------------------------------------------------------
// Cycle
// --------------------------------------------------------------------------

// RunCycle runs one full poll cycle. The returned error is non-nil only for
// cycle-fatal failures (snapshot source unreachable); per-event failures are
// counted in the result and logged.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	start := p.now()
	var result CycleResult

	snapshots, err := p.cfg.Source.FetchAll(ctx)
	if err != nil {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.CycleFailures.Inc()
		}
		return result, fmt.Errorf("fetch snapshots: %w", err)
	}
	result.Snapshots = len(snapshots)

	for _, snap := range snapshots {
		p.processSnapshot(ctx, snap, &result)
	}

	result.Duration = p.now().Sub(start)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.CyclesTotal.Inc()
		p.cfg.Metrics.CycleDuration.Observe(result.Duration.Seconds())
	}
	return result, nil
}

// processSnapshot runs one event through the engine and applies the decision.
// Store failures are isolated here so one bad event never aborts the cycle.
func (p *Poller) processSnapshot(ctx context.Context, snap milestone.Snapshot, result *CycleResult) {
	logger := p.cfg.Logger

	prev, err := p.cfg.Store.Get(ctx, snap.EventID)
	if err != nil {
		logger.Warn("Store read failed, skipping event",
			"event_id", snap.EventID, "error", err)
		p.countEventFailure(result)
		return
	}

	d := milestone.Decide(prev, snap, p.now())

	switch d.Action {
	case milestone.ActionStartTracking:
		if err := p.cfg.Store.Insert(ctx, d.State); err != nil {
			logger.Warn("Store insert failed, skipping event",
				"event_id", snap.EventID, "error", err)
			p.countEventFailure(result)
			return
		}
		result.Tracked++
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.EventsTracked.Inc()
		}
		logger.Info("Tracking new event",
			"event_id", snap.EventID, "count", snap.TotalCount,
			"milestone", d.State.LastMilestoneNotified)

	case milestone.ActionNotify:
		// Persist before sending: a crash or send failure after this point
		// costs one announcement, never a duplicate (at-most-once bias).
		if err := p.cfg.Store.UpdateNotified(ctx, d.State); err != nil {
			logger.Warn("Store update failed, skipping event",
				"event_id", snap.EventID, "error", err)
			p.countEventFailure(result)
			return
		}
		if err := p.cfg.Notifier.Send(ctx, snap.DisplayName, snap.TotalCount); err != nil {
			logger.Warn("Notification send failed, milestone stays advanced",
				"event_id", snap.EventID, "count", snap.TotalCount, "error", err)
			result.NotifyFailed++
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.NotifyFailures.Inc()
			}
			return
		}
		result.Notified++
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.NotificationsSent.Inc()
		}
		logger.Info("Milestone announced",
			"event_id", snap.EventID, "count", snap.TotalCount,
			"milestone", d.State.LastMilestoneNotified)

		if err := p.cfg.Store.RecordNotification(ctx, store.SentNotification{
			EventID:     snap.EventID,
			DisplayName: snap.DisplayName,
			TotalCount:  snap.TotalCount,
			Milestone:   d.State.LastMilestoneNotified,
			SentAt:      p.now(),
		}); err != nil {
			logger.Warn("Failed to record notification history",
				"event_id", snap.EventID, "error", err)
		}

	case milestone.ActionUpdateOnly:
		if err := p.cfg.Store.UpdateCount(ctx, d.State); err != nil {
			logger.Warn("Store update failed, skipping event",
				"event_id", snap.EventID, "error", err)
			p.countEventFailure(result)
			return
		}
		result.Updated++

	case milestone.ActionIgnore:
		result.Ignored++
	}
}

func (p *Poller) countEventFailure(result *CycleResult) {
	result.Failed++
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.EventFailures.Inc()
	}
}

// --------------------------------------------------------------------------
// Schedule
// --------------------------------------------------------------------------

// Start runs the poll loop and the leaderboard schedule. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func (p *Poller) Start(ctx context.Context) {
	logger := p.cfg.Logger
	logger.Info("Poller started",
		"interval", p.cfg.PollInterval,
		"leaderboard_times", p.cfg.LeaderboardTimes)

	if p.cfg.PostLeaderboard != nil && len(p.cfg.LeaderboardTimes) > 0 {
		go p.leaderboardLoop(ctx)
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.pastCutoff() {
				logger.Info("Cutoff date passed, skipping cycle")
				continue
			}
			result, err := p.RunCycle(ctx)
			if err != nil {
				logger.Error("Cycle aborted", "error", err)
			} else {
				logger.Info("Cycle complete", "summary", result.Summary())
			}
		case <-ctx.Done():
			logger.Info("Poller stopped")
			return
		}
	}
}

// leaderboardLoop sleeps until each configured wall-clock time and posts the
// summary.
func (p *Poller) leaderboardLoop(ctx context.Context) {
	logger := p.cfg.Logger
	for {
		next, err := NextRun(p.now(), p.cfg.LeaderboardTimes)
		if err != nil {
			logger.Error("Invalid leaderboard schedule", "error", err)
			return
		}

		select {
		case <-time.After(next.Sub(p.now())):
			if p.pastCutoff() {
				logger.Info("Cutoff date passed, skipping leaderboard")
				continue
			}
			if err := p.cfg.PostLeaderboard(ctx); err != nil {
				logger.Warn("Leaderboard post failed", "error", err)
			} else {
				if p.cfg.Metrics != nil {
					p.cfg.Metrics.LeaderboardsPosted.Inc()
				}
				logger.Info("Leaderboard posted", "at", next.Format("15:04"))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) pastCutoff() bool {
	return !p.cfg.CutoffDate.IsZero() && p.now().After(p.cfg.CutoffDate)
}

// NextRun returns the earliest upcoming occurrence of any of the given
// "HH:MM" times of day, in now's location.
func NextRun(now time.Time, times []string) (time.Time, error) {
	if len(times) == 0 {
		return time.Time{}, fmt.Errorf("no schedule times configured")
	}

	var next time.Time
	for _, s := range times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule time %q: %w", s, err)
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next, nil
}
