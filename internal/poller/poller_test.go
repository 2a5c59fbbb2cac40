package poller

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/regpulse/internal/milestone"
	"github.com/attendly/regpulse/internal/store"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeSource struct {
	snapshots []milestone.Snapshot
	err       error
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]milestone.Snapshot, error) {
	return f.snapshots, f.err
}

type fakeStore struct {
	events  map[string]milestone.TrackedEvent
	history []store.SentNotification
	failGet map[string]bool
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:  make(map[string]milestone.TrackedEvent),
		failGet: make(map[string]bool),
	}
}

func (f *fakeStore) Get(ctx context.Context, eventID string) (*milestone.TrackedEvent, error) {
	if f.failGet[eventID] {
		return nil, fmt.Errorf("read failure for %s", eventID)
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (f *fakeStore) Insert(ctx context.Context, ev milestone.TrackedEvent) error {
	if _, exists := f.events[ev.EventID]; exists {
		return fmt.Errorf("duplicate event %s", ev.EventID)
	}
	f.events[ev.EventID] = ev
	f.writes++
	return nil
}

func (f *fakeStore) UpdateCount(ctx context.Context, ev milestone.TrackedEvent) error {
	f.events[ev.EventID] = ev
	f.writes++
	return nil
}

func (f *fakeStore) UpdateNotified(ctx context.Context, ev milestone.TrackedEvent) error {
	f.events[ev.EventID] = ev
	f.writes++
	return nil
}

func (f *fakeStore) RecordNotification(ctx context.Context, n store.SentNotification) error {
	f.history = append(f.history, n)
	return nil
}

type sentMsg struct {
	name  string
	count int
}

type fakeNotifier struct {
	sent []sentMsg
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, displayName string, count int) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMsg{displayName, count})
	return nil
}

func newTestPoller(src *fakeSource, st *fakeStore, n *fakeNotifier) *Poller {
	return New(Config{
		Source:   src,
		Store:    st,
		Notifier: n,
		Logger:   slog.Default(),
	})
}

func snapshots(counts map[string]int) []milestone.Snapshot {
	var out []milestone.Snapshot
	for name, count := range counts {
		out = append(out, milestone.Snapshot{
			EventID:     milestone.EventID(name),
			DisplayName: name,
			TotalCount:  count,
		})
	}
	return out
}

// --------------------------------------------------------------------------
// Cycle tests
// --------------------------------------------------------------------------

func TestRunCycleFirstSightingIsSilent(t *testing.T) {
	src := &fakeSource{snapshots: snapshots(map[string]int{"GopherCon 2026": 85})}
	st := newFakeStore()
	n := &fakeNotifier{}

	result, err := newTestPoller(src, st, n).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Tracked)
	assert.Equal(t, 0, result.Notified)
	assert.Empty(t, n.sent)

	ev := st.events["gophercon-2026"]
	assert.Equal(t, 85, ev.LastKnownCount)
	assert.Equal(t, 80, ev.LastMilestoneNotified)
}

func TestRunCycleNotifiesOnCrossing(t *testing.T) {
	st := newFakeStore()
	st.events["gophercon-2026"] = milestone.TrackedEvent{
		EventID: "gophercon-2026", DisplayName: "GopherCon 2026",
		LastKnownCount: 58, LastMilestoneNotified: 40,
	}
	src := &fakeSource{snapshots: snapshots(map[string]int{"GopherCon 2026": 61})}
	n := &fakeNotifier{}

	result, err := newTestPoller(src, st, n).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Notified)
	require.Len(t, n.sent, 1)
	assert.Equal(t, sentMsg{"GopherCon 2026", 61}, n.sent[0], "exact count, not milestone")

	ev := st.events["gophercon-2026"]
	assert.Equal(t, 60, ev.LastMilestoneNotified)

	require.Len(t, st.history, 1)
	assert.Equal(t, 61, st.history[0].TotalCount)
	assert.Equal(t, 60, st.history[0].Milestone)
}

func TestRunCycleIdempotentUnderUnchangedInput(t *testing.T) {
	src := &fakeSource{snapshots: snapshots(map[string]int{
		"GopherCon 2026": 61,
		"Go Days Berlin": 12,
	})}
	st := newFakeStore()
	n := &fakeNotifier{}
	p := newTestPoller(src, st, n)

	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	writesAfterFirst := st.writes
	sentAfterFirst := len(n.sent)

	second, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, second.Ignored)
	assert.Equal(t, writesAfterFirst, st.writes, "no additional state writes")
	assert.Equal(t, sentAfterFirst, len(n.sent), "no additional notifications")
}

func TestRunCycleIsolatesPerEventFailures(t *testing.T) {
	src := &fakeSource{snapshots: []milestone.Snapshot{
		{EventID: "broken", DisplayName: "Broken Event", TotalCount: 30},
		{EventID: "healthy", DisplayName: "Healthy Event", TotalCount: 30},
	}}
	st := newFakeStore()
	st.failGet["broken"] = true
	n := &fakeNotifier{}

	result, err := newTestPoller(src, st, n).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Tracked)
	assert.Contains(t, st.events, "healthy")
}

func TestRunCycleSourceFailureIsCycleFatal(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("connection refused")}
	st := newFakeStore()

	_, err := newTestPoller(src, st, &fakeNotifier{}).RunCycle(context.Background())
	require.Error(t, err)
	assert.Zero(t, st.writes)
}

func TestRunCycleFailedSendStillAdvancesMilestone(t *testing.T) {
	st := newFakeStore()
	st.events["gophercon-2026"] = milestone.TrackedEvent{
		EventID: "gophercon-2026", DisplayName: "GopherCon 2026",
		LastKnownCount: 58, LastMilestoneNotified: 40,
	}
	src := &fakeSource{snapshots: snapshots(map[string]int{"GopherCon 2026": 61})}
	n := &fakeNotifier{err: fmt.Errorf("webhook returned 500")}

	result, err := newTestPoller(src, st, n).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Notified)
	assert.Equal(t, 1, result.NotifyFailed)
	// Milestone persisted before the send, so a retry storm cannot re-announce
	// a stale count on the next cycle.
	assert.Equal(t, 60, st.events["gophercon-2026"].LastMilestoneNotified)
	assert.Empty(t, st.history)
}

func TestRunCycleSummary(t *testing.T) {
	src := &fakeSource{snapshots: snapshots(map[string]int{"GopherCon 2026": 85})}
	result, err := newTestPoller(src, newFakeStore(), &fakeNotifier{}).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, result.Summary(), "tracked=1")
}

// --------------------------------------------------------------------------
// Schedule tests
// --------------------------------------------------------------------------

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	next, err := NextRun(now, []string{"09:00", "17:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC), next)

	// Both times already passed today: earliest slot tomorrow.
	late := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	next, err = NextRun(late, []string{"09:00", "17:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), next)

	_, err = NextRun(now, nil)
	require.Error(t, err)

	_, err = NextRun(now, []string{"25:99"})
	require.Error(t, err)
}

func TestPastCutoff(t *testing.T) {
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	p := New(Config{
		CutoffDate: cutoff,
		Logger:     slog.Default(),
		Now:        func() time.Time { return cutoff.Add(time.Hour) },
	})
	assert.True(t, p.pastCutoff())

	p = New(Config{
		CutoffDate: cutoff,
		Logger:     slog.Default(),
		Now:        func() time.Time { return cutoff.Add(-time.Hour) },
	})
	assert.False(t, p.pastCutoff())

	p = New(Config{Logger: slog.Default()})
	assert.False(t, p.pastCutoff())
}
