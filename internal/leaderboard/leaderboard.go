// Package leaderboard builds the twice-daily registration summary. Query and
// formatting only; the poller decides when to post.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one row of the leaderboard.
type Entry struct {
	DisplayName string `json:"display_name"`
	TotalCount  int    `json:"total_count"`
}

// TextSender posts a raw message to the broadcast channel.
type TextSender interface {
	SendText(ctx context.Context, text string) error
}

// Top returns the highest-count events, ties broken by name.
func Top(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := pool.Query(ctx, "leaderboard_top", limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DisplayName, &e.TotalCount); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Post queries the leaderboard and sends the rendered summary.
func Post(ctx context.Context, pool *pgxpool.Pool, sender TextSender, limit int) error {
	entries, err := Top(ctx, pool, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return sender.SendText(ctx, Format(entries))
}

// Format renders the compact ranking message.
func Format(entries []Entry) string {
	var b strings.Builder
	b.WriteString(":trophy: *Registration leaderboard*\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s: %d\n", i+1, e.DisplayName, e.TotalCount)
	}
	return strings.TrimRight(b.String(), "\n")
}
