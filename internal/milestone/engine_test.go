package milestone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func snap(count int) Snapshot {
	return Snapshot{EventID: "gophercon-2026", DisplayName: "GopherCon 2026", TotalCount: count}
}

func tracked(count, notified int) *TrackedEvent {
	return &TrackedEvent{
		EventID:               "gophercon-2026",
		DisplayName:           "GopherCon 2026",
		LastKnownCount:        count,
		LastMilestoneNotified: notified,
	}
}

func TestDecideFirstSightingIsSilent(t *testing.T) {
	for _, count := range []int{1, 8, 10, 85, 500} {
		d := Decide(nil, snap(count), testNow)
		assert.Equal(t, ActionStartTracking, d.Action, "count=%d", count)
		assert.Equal(t, count, d.State.LastKnownCount)
		assert.Equal(t, MilestoneFor(count), d.State.LastMilestoneNotified)
		assert.Nil(t, d.State.LastNotifiedAt)
	}
}

func TestDecideFirstSightingSeedsMilestone(t *testing.T) {
	d := Decide(nil, snap(85), testNow)
	require.Equal(t, ActionStartTracking, d.Action)
	assert.Equal(t, 80, d.State.LastMilestoneNotified)
}

func TestDecideNoCrossingAtDivisorSwitch(t *testing.T) {
	// 45 -> 52: MilestoneFor(52) is still 40, so no crossing.
	d := Decide(tracked(45, 40), snap(52), testNow)
	assert.Equal(t, ActionUpdateOnly, d.Action)
	assert.Equal(t, 52, d.State.LastKnownCount)
	assert.Equal(t, 40, d.State.LastMilestoneNotified)
}

func TestDecideSmallEventCrossingNotifies(t *testing.T) {
	d := Decide(tracked(58, 40), snap(61), testNow)
	require.Equal(t, ActionNotify, d.Action)
	assert.Equal(t, 61, d.State.LastKnownCount, "payload carries the exact count")
	assert.Equal(t, 60, d.State.LastMilestoneNotified)
	require.NotNil(t, d.State.LastNotifiedAt)
	assert.Equal(t, testNow, *d.State.LastNotifiedAt)
}

func TestDecideLargeEventDampening(t *testing.T) {
	// 80 -> 100 clears the 20% bar (100 >= 96).
	d := Decide(tracked(95, 80), snap(100), testNow)
	assert.Equal(t, ActionNotify, d.Action)

	// From milestone 95 the bar is 114, so 100 does not notify.
	d = Decide(tracked(99, 95), snap(100), testNow)
	assert.Equal(t, ActionUpdateOnly, d.Action)
	assert.Equal(t, 95, d.State.LastMilestoneNotified)
}

func TestDecideNeverNotifiesBelowTen(t *testing.T) {
	// A crossing at a tiny count is suppressed.
	d := Decide(tracked(8, 0), snap(9), testNow)
	assert.Equal(t, ActionUpdateOnly, d.Action)

	d = Decide(tracked(3, 0), snap(9), testNow)
	assert.NotEqual(t, ActionNotify, d.Action)
}

func TestDecideIgnoreWhenUnchanged(t *testing.T) {
	d := Decide(tracked(61, 60), snap(61), testNow)
	assert.Equal(t, ActionIgnore, d.Action)
}

func TestDecideIdempotentUnderUnchangedInput(t *testing.T) {
	// First pass notifies; applying the resulting state and re-running the
	// same snapshot must produce Ignore.
	first := Decide(tracked(58, 40), snap(61), testNow)
	require.Equal(t, ActionNotify, first.Action)

	second := Decide(&first.State, snap(61), testNow.Add(time.Minute))
	assert.Equal(t, ActionIgnore, second.Action)
}

func TestDecideMilestoneNeverRegresses(t *testing.T) {
	// Count drops below the notified milestone; the milestone stays put.
	d := Decide(tracked(61, 60), snap(44), testNow)
	require.Equal(t, ActionUpdateOnly, d.Action)
	assert.Equal(t, 60, d.State.LastMilestoneNotified)
	assert.Equal(t, 44, d.State.LastKnownCount)
}

func TestDecideResyncsDisplayName(t *testing.T) {
	prev := tracked(40, 40)
	s := snap(45)
	s.DisplayName = "GopherCon 2026 (Sold Out)"
	d := Decide(prev, s, testNow)
	require.Equal(t, ActionUpdateOnly, d.Action)
	assert.Equal(t, s.DisplayName, d.State.DisplayName)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "notify", ActionNotify.String())
	assert.Equal(t, "ignore", ActionIgnore.String())
	assert.Equal(t, "start_tracking", ActionStartTracking.String())
	assert.Equal(t, "update_only", ActionUpdateOnly.String())
}
