package milestone

import "time"

// Action is the tagged outcome of a decision.
type Action int

const (
	// ActionIgnore means the count is unchanged; nothing is written.
	ActionIgnore Action = iota
	// ActionStartTracking creates the event's row silently. First sightings
	// never notify, so a fresh deploy does not flood the channel with
	// historical counts.
	ActionStartTracking
	// ActionNotify announces the crossing and persists the new milestone.
	ActionNotify
	// ActionUpdateOnly persists the new count; the milestone is unchanged.
	ActionUpdateOnly
)

// String returns the action name for logs.
func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionStartTracking:
		return "start_tracking"
	case ActionNotify:
		return "notify"
	case ActionUpdateOnly:
		return "update_only"
	default:
		return "unknown"
	}
}

// Decision is the engine's output for one snapshot: what to do, and the
// state to persist. State is meaningful for every action except ActionIgnore.
// A Notify decision carries the exact observed count in State.LastKnownCount;
// the milestone value is only the trigger, never the announced number.
type Decision struct {
	Action Action
	State  TrackedEvent
}

// Decide runs the per-event state machine for one snapshot. prev is the
// stored state, or nil if the event has never been seen. Pure: no I/O, no
// clock reads beyond the supplied now.
func Decide(prev *TrackedEvent, snap Snapshot, now time.Time) Decision {
	m := MilestoneFor(snap.TotalCount)

	if prev == nil {
		return Decision{
			Action: ActionStartTracking,
			State: TrackedEvent{
				EventID:               snap.EventID,
				DisplayName:           snap.DisplayName,
				LastKnownCount:        snap.TotalCount,
				LastMilestoneNotified: m,
				LastUpdatedAt:         now,
			},
		}
	}

	crossed := m > prev.LastMilestoneNotified
	shouldNotify := crossed
	if prev.LastMilestoneNotified >= largeEventCount {
		// Large events increment by small absolute amounts; require a 20%
		// relative jump over the last notified milestone as well.
		shouldNotify = crossed && float64(m) >= float64(prev.LastMilestoneNotified)*dampeningFactor
	}
	if snap.TotalCount < minNotifyCount {
		shouldNotify = false
	}

	if shouldNotify {
		notifiedAt := now
		return Decision{
			Action: ActionNotify,
			State: TrackedEvent{
				EventID:               snap.EventID,
				DisplayName:           snap.DisplayName,
				LastKnownCount:        snap.TotalCount,
				LastMilestoneNotified: m,
				LastNotifiedAt:        &notifiedAt,
				LastUpdatedAt:         now,
			},
		}
	}

	if snap.TotalCount != prev.LastKnownCount {
		return Decision{
			Action: ActionUpdateOnly,
			State: TrackedEvent{
				EventID:               snap.EventID,
				DisplayName:           snap.DisplayName,
				LastKnownCount:        snap.TotalCount,
				LastMilestoneNotified: prev.LastMilestoneNotified,
				LastNotifiedAt:        prev.LastNotifiedAt,
				LastUpdatedAt:         now,
			},
		}
	}

	// Nothing changed; skip the write entirely.
	return Decision{Action: ActionIgnore}
}
