// Package milestone holds the registration milestone engine: pure decision
// logic that maps a stream of registration-count snapshots to tracking
// actions (start tracking, notify, update, ignore).
//
// The engine performs no I/O. The poller feeds it one snapshot plus the
// stored state per event and applies the resulting decision via the store
// and notifier.
package milestone

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// Below this count milestones step in tens; at or above, in twenties.
	largeEventCount = 50

	// Counts below this never notify, regardless of crossings.
	minNotifyCount = 10

	// For events whose last notified milestone is >= largeEventCount, a new
	// milestone must also be at least this factor larger to notify.
	dampeningFactor = 1.2
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// TrackedEvent is the persisted per-event state. One row per distinct event,
// created on first sighting and never deleted. LastMilestoneNotified never
// decreases over the lifetime of the row.
type TrackedEvent struct {
	EventID               string
	DisplayName           string
	LastKnownCount        int
	LastMilestoneNotified int
	LastNotifiedAt        *time.Time
	LastUpdatedAt         time.Time
}

// Snapshot is one observation of an event's current registration count.
// Snapshots are ephemeral; they are not retained after a decision is made.
type Snapshot struct {
	EventID     string
	DisplayName string
	TotalCount  int
}

// --------------------------------------------------------------------------
// Milestone computation
// --------------------------------------------------------------------------

// MilestoneFor returns the milestone threshold for a registration count:
// the largest multiple of 10 below 50, the largest multiple of 20 from 50 up.
// Monotonically non-decreasing in count. Note the divisor switch at 50 means
// the crossover is flat: MilestoneFor(49) == MilestoneFor(50) == 40.
func MilestoneFor(count int) int {
	if count < 0 {
		return 0
	}
	if count < largeEventCount {
		return count / 10 * 10
	}
	return count / 20 * 20
}

// --------------------------------------------------------------------------
// Event identity
// --------------------------------------------------------------------------

// EventID derives a stable identifier from an event's display name: lowered,
// runs of non-alphanumerics collapsed to a single hyphen. Used only when the
// source system has no stable key of its own; renames change the identity,
// which callers should treat as a data-quality risk and log.
func EventID(displayName string) string {
	var b strings.Builder
	b.Grow(len(displayName))
	hyphen := false
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
