package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ItemsQueued counts accepted queue items by side.
var ItemsQueued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "p2pmatch_items_queued_total",
		Help: "Total number of items accepted into the withdrawal/deposit queues",
	},
	[]string{"side"},
)

// MatchAttempts counts matching attempts by outcome (matched, no_match, timeout).
var MatchAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "p2pmatch_match_attempts_total",
		Help: "Total matching attempts by outcome",
	},
	[]string{"outcome"},
)

// PairsCommitted counts committed match pairs.
var PairsCommitted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "p2pmatch_pairs_committed_total",
		Help: "Total match pairs committed",
	},
)

// OperationLatency records latency distribution per engine operation.
var OperationLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "p2pmatch_operation_latency_seconds",
		Help:    "Latency in seconds per engine operation",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// MatchScore records the score distribution of committed pairs.
var MatchScore = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "p2pmatch_match_score",
		Help:    "Match score of committed pairs (0-100)",
		Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 100},
	},
)

func init() {
	prometheus.MustRegister(ItemsQueued, MatchAttempts, PairsCommitted)
	prometheus.MustRegister(OperationLatency, MatchScore)
}
