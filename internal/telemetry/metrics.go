// Package telemetry holds the process's Prometheus collectors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RequestsEnqueued counts number requests entering the queue.
var RequestsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "queue",
	Name:      "requests_enqueued_total",
	Help:      "Number requests enqueued to the matching queue.",
})

// Matches counts submissions successfully paired with a pending request.
var Matches = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "queue",
	Name:      "matches_total",
	Help:      "Phone submissions matched to a pending request.",
})

// MatchMisses counts submissions that found no usable request, by reason.
var MatchMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "queue",
	Name:      "match_misses_total",
	Help:      "Phone submissions that could not be matched.",
}, []string{"reason"})

// Decisions counts operator outcome decisions by kind.
var Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "lifecycle",
	Name:      "decisions_total",
	Help:      "Outcome decisions on forwarded numbers.",
}, []string{"outcome"})

// Revocations counts revoke annotations on finished registrations.
var Revocations = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "lifecycle",
	Name:      "revocations_total",
	Help:      "Registrations later flagged as revoked.",
})

// BeaconRefreshes counts outstanding-demand message replacements.
var BeaconRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "beacon",
	Name:      "refreshes_total",
	Help:      "Beacon delete+recreate cycles.",
})

// DigestRuns counts daily digest deliveries by result.
var DigestRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "digest",
	Name:      "runs_total",
	Help:      "Daily digest runs.",
}, []string{"result"})

// NewRegistry creates a registry with default and bot collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestsEnqueued,
		Matches,
		MatchMisses,
		Decisions,
		Revocations,
		BeaconRefreshes,
		DigestRuns,
	)
	return reg
}
