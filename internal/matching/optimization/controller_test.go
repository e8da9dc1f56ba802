package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

func strategyPtr(s model.MatchStrategy) *model.MatchStrategy { return &s }
func int64Ptr(v int64) *int64                                { return &v }
func float64Ptr(v float64) *float64                          { return &v }

func TestControllerDefaults(t *testing.T) {
	c := NewController(zaptest.NewLogger(t))
	cfg := c.Config()

	assert.Equal(t, model.MatchBalanced, cfg.Strategies.MatchOptimization)
	assert.Equal(t, model.QueueSmart, cfg.Strategies.QueueOptimization)
	assert.Equal(t, model.RiskModerate, cfg.Strategies.RiskOptimization)
	assert.Equal(t, int64(5000), cfg.Thresholds.MaxProcessingTimeMs)
	assert.Equal(t, 80.0, cfg.Thresholds.MinMatchScore)
}

func TestControllerPartialUpdate(t *testing.T) {
	c := NewController(zaptest.NewLogger(t))

	got, err := c.Update(Patch{
		MatchOptimization: strategyPtr(model.MatchSpeed),
		MinMatchScore:     float64Ptr(65),
	})
	require.NoError(t, err)

	assert.Equal(t, model.MatchSpeed, got.Strategies.MatchOptimization)
	assert.Equal(t, 65.0, got.Thresholds.MinMatchScore)
	// Untouched fields keep their values.
	assert.Equal(t, model.QueueSmart, got.Strategies.QueueOptimization)
	assert.Equal(t, int64(5000), got.Thresholds.MaxProcessingTimeMs)
	assert.Equal(t, got, c.Config())
}

func TestControllerUpdateIsIdempotent(t *testing.T) {
	c := NewController(nil)
	p := Patch{MaxProcessingTimeMs: int64Ptr(250), MinMatchScore: float64Ptr(42)}

	first, err := c.Update(p)
	require.NoError(t, err)
	second, err := c.Update(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestControllerRejectsInvalidPatchAtomically(t *testing.T) {
	c := NewController(zaptest.NewLogger(t))
	before := c.Config()

	tests := []struct {
		name  string
		patch Patch
		field string
	}{
		{
			name:  "unknown match strategy",
			patch: Patch{MatchOptimization: strategyPtr("turbo")},
			field: "strategies.match_optimization",
		},
		{
			name:  "non-positive time budget",
			patch: Patch{MaxProcessingTimeMs: int64Ptr(0)},
			field: "thresholds.max_processing_time_ms",
		},
		{
			name:  "score above range",
			patch: Patch{MinMatchScore: float64Ptr(100.5)},
			field: "thresholds.min_match_score",
		},
		{
			name:  "score below range",
			patch: Patch{MinMatchScore: float64Ptr(-1)},
			field: "thresholds.min_match_score",
		},
		{
			name: "valid field does not rescue an invalid one",
			patch: Patch{
				MinMatchScore:       float64Ptr(70),
				MaxProcessingTimeMs: int64Ptr(-5),
			},
			field: "thresholds.max_processing_time_ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Update(tt.patch)
			require.Error(t, err)
			var cfgErr *model.OptimizationConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, before, c.Config(), "rejected patch must not partially apply")
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := model.DefaultOptimizationConfig()
	require.NoError(t, Validate(cfg))

	bad := cfg
	bad.Strategies.QueueOptimization = "lifo"
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.Strategies.RiskOptimization = "reckless"
	assert.Error(t, Validate(bad))
}
