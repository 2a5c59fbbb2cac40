// Package maintenance runs periodic background housekeeping as Go tickers.
// All scheduled work is driven from Go since the service is already a
// persistent, long-running process.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // Old notification_log rows
	RetentionDays   int           // How long announcement history is kept
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 1 * time.Hour,
		RetentionDays:   90,
	}
}

// Start launches the maintenance tickers. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	if cfg.CleanupInterval <= 0 {
		logger.Info("Maintenance disabled")
		return
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}

	logger.Info("Maintenance ticker started",
		"cleanup", cfg.CleanupInterval, "retention_days", cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleanup(ctx, pool, cfg.RetentionDays, logger)
		case <-ctx.Done():
			logger.Info("Maintenance ticker stopped")
			return
		}
	}
}

// cleanup purges announcement history older than the retention window.
// The tracked_events table is never purged; rows live for the lifetime of
// their event.
func cleanup(ctx context.Context, pool *pgxpool.Pool, retentionDays int, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM notification_log
		WHERE sent_at < NOW() - make_interval(days => $1)`, retentionDays)
	if err != nil {
		logger.Warn("Cleanup: failed to purge old notification history", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged old notification history", "count", tag.RowsAffected())
	}
}
