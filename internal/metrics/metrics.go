// Package metrics holds the Prometheus collectors for matchmaking and the
// websocket sessions. Everything is registered on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Match attempt outcomes
const (
	OutcomeMatched   = "matched"
	OutcomeLockBusy  = "lock_busy"
	OutcomeShortfall = "shortfall"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Connection kinds
const (
	KindChat  = "chat"
	KindMatch = "match"
)

var (
	MatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_attempts_total",
			Help: "Match attempts by outcome.",
		},
		[]string{"outcome"},
	)

	MatchAttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_attempt_duration_seconds",
			Help:    "Duration of a match attempt including lock and store round trips.",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchedTickets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matched_tickets_total",
			Help: "Tickets moved to MATCHED.",
		},
	)

	WSConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Open websocket connections by kind.",
		},
		[]string{"kind"},
	)

	ChatMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages persisted.",
		},
	)

	ChatReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reads_total",
			Help: "Read receipts processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(MatchAttempts, MatchAttemptDuration, MatchedTickets, WSConnections, ChatMessages, ChatReads)
}
