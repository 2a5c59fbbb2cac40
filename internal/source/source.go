// Package source queries the registration database for current per-event
// totals. One query per poll cycle; events with zero registrations are never
// returned.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attendly/regpulse/internal/milestone"
)

// Source reads registration-count snapshots from Postgres.
type Source struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Source backed by the given pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Source {
	return &Source{pool: pool, logger: logger}
}

// FetchAll returns one snapshot per event with at least one registration.
// Events carrying a stable slug keep it as their identity; events without one
// fall back to a name-derived id, which is logged since renames would then
// split the event's history.
func (s *Source) FetchAll(ctx context.Context) ([]milestone.Snapshot, error) {
	rows, err := s.pool.Query(ctx, "registration_counts")
	if err != nil {
		return nil, fmt.Errorf("fetch registration counts: %w", err)
	}
	defer rows.Close()

	var snapshots []milestone.Snapshot
	seen := make(map[string]string)
	for rows.Next() {
		var slug *string
		var name string
		var total int
		if err := rows.Scan(&slug, &name, &total); err != nil {
			return nil, fmt.Errorf("scan registration count: %w", err)
		}

		id := ""
		if slug != nil {
			id = *slug
		}
		if id == "" {
			id = milestone.EventID(name)
			s.logger.Warn("Event has no stable slug, using name-derived id",
				"name", name, "event_id", id)
		}
		if id == "" {
			s.logger.Warn("Skipping event with empty identity", "name", name)
			continue
		}
		if prior, dup := seen[id]; dup {
			// Two events collapsing to one id would corrupt both histories.
			s.logger.Error("Event id collision, skipping later event",
				"event_id", id, "kept", prior, "skipped", name)
			continue
		}
		seen[id] = name

		snapshots = append(snapshots, milestone.Snapshot{
			EventID:     id,
			DisplayName: name,
			TotalCount:  total,
		})
	}
	return snapshots, rows.Err()
}
