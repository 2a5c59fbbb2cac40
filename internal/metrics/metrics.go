// Package metrics exposes Prometheus instrumentation for the poll loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the poll-loop counters. One instance per process,
// registered against a single registry.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CycleFailures      prometheus.Counter
	EventsTracked      prometheus.Counter
	NotificationsSent  prometheus.Counter
	NotifyFailures     prometheus.Counter
	EventFailures      prometheus.Counter
	CycleDuration      prometheus.Summary
	LeaderboardsPosted prometheus.Counter
}

// New creates and registers the metric set.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "cycle_failures_total",
			Help:      "Cycles aborted because the snapshot source was unavailable.",
		}),
		EventsTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "events_tracked_total",
			Help:      "Events seen for the first time.",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "notifications_sent_total",
			Help:      "Milestone announcements delivered.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "notify_failures_total",
			Help:      "Milestone announcements that failed to deliver.",
		}),
		EventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "event_failures_total",
			Help:      "Events skipped in a cycle due to store errors.",
		}),
		CycleDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "regpulse",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent running a poll cycle.",
		}),
		LeaderboardsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regpulse",
			Name:      "leaderboards_posted_total",
			Help:      "Leaderboard summaries posted.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal, m.CycleFailures, m.EventsTracked,
		m.NotificationsSent, m.NotifyFailures, m.EventFailures,
		m.CycleDuration, m.LeaderboardsPosted,
	)
	return m
}
