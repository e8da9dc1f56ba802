package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder(0)

	_, ok := r.Snapshot("add_item")
	assert.False(t, ok, "unseen operation has no snapshot")

	r.Record("add_item", 10*time.Millisecond, true)
	r.Record("add_item", 20*time.Millisecond, true)
	r.Record("add_item", 30*time.Millisecond, false)
	r.Record("cancel_item", 5*time.Millisecond, true)

	m, ok := r.Snapshot("add_item")
	require.True(t, ok)
	assert.Equal(t, 3, m.Count)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
	assert.InDelta(t, 20.0, m.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 20.0, m.P50Ms, 1e-9)
	assert.InDelta(t, 30.0, m.P95Ms, 1e-9)
	assert.InDelta(t, 30.0, m.P99Ms, 1e-9)
	assert.False(t, m.LastRecorded.IsZero())

	assert.Equal(t, []string{"add_item", "cancel_item"}, r.Operations())
}

func TestRecorderRollingWindowIsBounded(t *testing.T) {
	r := NewRecorder(4)

	// Old, slow, failing samples that must fall out of the window.
	for i := 0; i < 8; i++ {
		r.Record("sweep", time.Second, false)
	}
	for i := 0; i < 4; i++ {
		r.Record("sweep", time.Millisecond, true)
	}

	m, ok := r.Snapshot("sweep")
	require.True(t, ok)
	assert.Equal(t, 4, m.Count)
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.InDelta(t, 1.0, m.AvgLatencyMs, 1e-9, "evicted samples must not drag the average")
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		3 * time.Millisecond,
		4 * time.Millisecond,
	}
	assert.InDelta(t, 2.0, percentileMs(sorted, 0.50), 1e-9)
	assert.InDelta(t, 4.0, percentileMs(sorted, 0.95), 1e-9)
	assert.InDelta(t, 1.0, percentileMs(sorted, 0.01), 1e-9)
	assert.Zero(t, percentileMs(nil, 0.5))
}
