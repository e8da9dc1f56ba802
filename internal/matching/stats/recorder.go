// Package stats provides the rolling performance recorder and the
// read-only statistics aggregation over repository state.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/peerflow/p2pmatch/pkg/metrics"
)

// DefaultCapacity bounds the rolling buffer per operation.
const DefaultCapacity = 512

type sample struct {
	at      time.Time
	dur     time.Duration
	success bool
}

// ring is a fixed-capacity rolling buffer of samples.
type ring struct {
	samples []sample
	next    int
	full    bool
}

func (r *ring) add(s sample) {
	r.samples[r.next] = s
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// OperationMetrics is a point-in-time view over one operation's rolling
// window.
type OperationMetrics struct {
	Operation    string    `json:"operation"`
	Count        int       `json:"count"`
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	P50Ms        float64   `json:"p50_ms"`
	P95Ms        float64   `json:"p95_ms"`
	P99Ms        float64   `json:"p99_ms"`
	LastRecorded time.Time `json:"last_recorded"`
}

// Recorder keeps a bounded rolling buffer of latency/outcome samples per
// named operation and mirrors them into the prometheus collectors.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	ops      map[string]*ring
}

// NewRecorder creates a recorder; capacity <= 0 selects DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity, ops: make(map[string]*ring)}
}

// Record appends one sample for the operation.
func (r *Recorder) Record(operation string, d time.Duration, success bool) {
	metrics.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	rb, ok := r.ops[operation]
	if !ok {
		rb = &ring{samples: make([]sample, r.capacity)}
		r.ops[operation] = rb
	}
	rb.add(sample{at: time.Now(), dur: d, success: success})
}

// Operations lists the names seen so far, sorted.
func (r *Recorder) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot computes the rolling aggregates for one operation.
func (r *Recorder) Snapshot(operation string) (OperationMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rb, ok := r.ops[operation]
	if !ok || rb.len() == 0 {
		return OperationMetrics{Operation: operation}, false
	}

	n := rb.len()
	durs := make([]time.Duration, 0, n)
	var sum time.Duration
	var successes int
	var last time.Time
	for i := 0; i < n; i++ {
		s := rb.samples[i]
		durs = append(durs, s.dur)
		sum += s.dur
		if s.success {
			successes++
		}
		if s.at.After(last) {
			last = s.at
		}
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })

	return OperationMetrics{
		Operation:    operation,
		Count:        n,
		SuccessRate:  float64(successes) / float64(n),
		AvgLatencyMs: float64(sum.Milliseconds()) / float64(n),
		P50Ms:        percentileMs(durs, 0.50),
		P95Ms:        percentileMs(durs, 0.95),
		P99Ms:        percentileMs(durs, 0.99),
		LastRecorded: last,
	}, true
}

// percentileMs uses nearest-rank on an ascending-sorted slice.
func percentileMs(sorted []time.Duration, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Microseconds()) / 1000.0
}
