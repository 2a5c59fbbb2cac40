// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/regpulse/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the poller, store, and
// API layers use. Prepared statements eliminate parse overhead per cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Milestone store
		"tracked_event_get": `
			SELECT event_id, display_name, last_known_count,
			       last_milestone_notified, last_notified_at, last_updated_at
			FROM tracked_events WHERE event_id = $1`,
		"tracked_event_insert": `
			INSERT INTO tracked_events (
				event_id, display_name, last_known_count,
				last_milestone_notified, last_updated_at
			) VALUES ($1, $2, $3, $4, $5)`,
		"tracked_event_update_count": `
			UPDATE tracked_events
			SET display_name = $2, last_known_count = $3, last_updated_at = $4
			WHERE event_id = $1`,
		"tracked_event_update_notified": `
			UPDATE tracked_events
			SET display_name = $2, last_known_count = $3,
			    last_milestone_notified = $4, last_notified_at = $5,
			    last_updated_at = $5
			WHERE event_id = $1`,
		"tracked_events_list": `
			SELECT event_id, display_name, last_known_count,
			       last_milestone_notified, last_notified_at, last_updated_at
			FROM tracked_events ORDER BY last_known_count DESC`,

		// Snapshot source
		"registration_counts": `
			SELECT e.slug, e.name, COUNT(r.id)::int AS total
			FROM events e
			JOIN registrations r ON r.event_id = e.id
			GROUP BY e.slug, e.name
			HAVING COUNT(r.id) > 0`,

		// Leaderboard
		"leaderboard_top": `
			SELECT e.name, COUNT(r.id)::int AS total
			FROM events e
			JOIN registrations r ON r.event_id = e.id
			GROUP BY e.name
			ORDER BY total DESC, e.name
			LIMIT $1`,

		// Notification history
		"notification_log_insert": `
			INSERT INTO notification_log (event_id, display_name, total_count, milestone, sent_at)
			VALUES ($1, $2, $3, $4, $5)`,
		"notification_log_recent": `
			SELECT event_id, display_name, total_count, milestone, sent_at
			FROM notification_log
			ORDER BY sent_at DESC
			LIMIT $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
