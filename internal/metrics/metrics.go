// Package metrics defines the Prometheus collectors of the server and of the
// client-side synchronizer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "receiptsplit"

// Server holds the collectors of the session server.
type Server struct {
	RPCs         *prometheus.CounterVec
	RPCDuration  *prometheus.HistogramVec
	LimitReached *prometheus.CounterVec
}

// NewServer creates the server collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		RPCs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rpcs_total",
			Help:      "RPCs handled, by procedure and connect code.",
		}, []string{"procedure", "code"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		LimitReached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "limit_reached_total",
			Help:      "Requests rejected by a quota, by quota name.",
		}, []string{"quota"}),
	}
	reg.MustRegister(m.RPCs, m.RPCDuration, m.LimitReached)
	return m
}

// Sync holds the collectors of a client-side synchronizer.
type Sync struct {
	Polls              *prometheus.CounterVec
	Mutations          *prometheus.CounterVec
	Rollbacks          *prometheus.CounterVec
	BestEffortFailures *prometheus.CounterVec
}

// NewSync creates the synchronizer collectors and registers them with reg.
func NewSync(reg prometheus.Registerer) *Sync {
	m := &Sync{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "polls_total",
			Help:      "Poll ticks by result (skipped, unchanged, applied, failed, inactive).",
		}, []string{"result"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "mutations_total",
			Help:      "Mutations issued by action and outcome.",
		}, []string{"action", "outcome"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "rollbacks_total",
			Help:      "Optimistic updates restored after a failed acknowledged mutation.",
		}, []string{"action"}),
		BestEffortFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "best_effort_failures_total",
			Help:      "Unacknowledged mutations that failed and were left to polling.",
		}, []string{"action"}),
	}
	reg.MustRegister(m.Polls, m.Mutations, m.Rollbacks, m.BestEffortFailures)
	return m
}
