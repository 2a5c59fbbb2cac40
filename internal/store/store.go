// Package store persists per-event milestone state in Postgres. It is the
// engine's only durable state: one tracked_events row per event plus an
// append-only notification_log of what was announced.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/regpulse/internal/milestone"
)

// Store wraps the pool with milestone-state operations. All queries go
// through prepared statements registered in internal/db.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the tracked state for an event, or (nil, nil) if the event has
// never been seen.
func (s *Store) Get(ctx context.Context, eventID string) (*milestone.TrackedEvent, error) {
	var ev milestone.TrackedEvent
	err := s.pool.QueryRow(ctx, "tracked_event_get", eventID).Scan(
		&ev.EventID, &ev.DisplayName, &ev.LastKnownCount,
		&ev.LastMilestoneNotified, &ev.LastNotifiedAt, &ev.LastUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked event %s: %w", eventID, err)
	}
	return &ev, nil
}

// Insert creates the row for a first-sighted event. Create-only: a duplicate
// event_id is a unique violation, which keeps first-sighting semantics honest
// if two processes ever race on the same event.
func (s *Store) Insert(ctx context.Context, ev milestone.TrackedEvent) error {
	_, err := s.pool.Exec(ctx, "tracked_event_insert",
		ev.EventID, ev.DisplayName, ev.LastKnownCount,
		ev.LastMilestoneNotified, ev.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracked event %s: %w", ev.EventID, err)
	}
	return nil
}

// UpdateCount persists a count-only change; the milestone field is untouched.
func (s *Store) UpdateCount(ctx context.Context, ev milestone.TrackedEvent) error {
	_, err := s.pool.Exec(ctx, "tracked_event_update_count",
		ev.EventID, ev.DisplayName, ev.LastKnownCount, ev.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tracked event %s: %w", ev.EventID, err)
	}
	return nil
}

// UpdateNotified persists the advanced milestone along with the new count.
func (s *Store) UpdateNotified(ctx context.Context, ev milestone.TrackedEvent) error {
	_, err := s.pool.Exec(ctx, "tracked_event_update_notified",
		ev.EventID, ev.DisplayName, ev.LastKnownCount,
		ev.LastMilestoneNotified, ev.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update notified event %s: %w", ev.EventID, err)
	}
	return nil
}

// List returns all tracked events, largest first.
func (s *Store) List(ctx context.Context) ([]milestone.TrackedEvent, error) {
	rows, err := s.pool.Query(ctx, "tracked_events_list")
	if err != nil {
		return nil, fmt.Errorf("list tracked events: %w", err)
	}
	defer rows.Close()

	var events []milestone.TrackedEvent
	for rows.Next() {
		var ev milestone.TrackedEvent
		if err := rows.Scan(
			&ev.EventID, &ev.DisplayName, &ev.LastKnownCount,
			&ev.LastMilestoneNotified, &ev.LastNotifiedAt, &ev.LastUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tracked event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --------------------------------------------------------------------------
// Notification history
// --------------------------------------------------------------------------

// SentNotification is one row of announcement history.
type SentNotification struct {
	EventID     string    `json:"event_id"`
	DisplayName string    `json:"display_name"`
	TotalCount  int       `json:"total_count"`
	Milestone   int       `json:"milestone"`
	SentAt      time.Time `json:"sent_at"`
}

// RecordNotification appends to the announcement history. Best-effort from
// the poller's perspective; a failure here never blocks the cycle.
func (s *Store) RecordNotification(ctx context.Context, n SentNotification) error {
	_, err := s.pool.Exec(ctx, "notification_log_insert",
		n.EventID, n.DisplayName, n.TotalCount, n.Milestone, n.SentAt,
	)
	if err != nil {
		return fmt.Errorf("record notification for %s: %w", n.EventID, err)
	}
	return nil
}

// RecentNotifications returns the latest announcements, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]SentNotification, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "notification_log_recent", limit)
	if err != nil {
		return nil, fmt.Errorf("recent notifications: %w", err)
	}
	defer rows.Close()

	var out []SentNotification
	for rows.Next() {
		var n SentNotification
		if err := rows.Scan(&n.EventID, &n.DisplayName, &n.TotalCount, &n.Milestone, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
