// Package optimization holds the tunable strategy/threshold configuration
// consumed by the matching engine.
package optimization

import (
	"sync"

	"go.uber.org/zap"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// Patch is a merge-patch over the optimization config; nil fields are
// left untouched.
type Patch struct {
	MatchOptimization   *model.MatchStrategy `json:"match_optimization,omitempty"`
	QueueOptimization   *model.QueueStrategy `json:"queue_optimization,omitempty"`
	RiskOptimization    *model.RiskStrategy  `json:"risk_optimization,omitempty"`
	MaxProcessingTimeMs *int64               `json:"max_processing_time_ms,omitempty"`
	MinMatchScore       *float64             `json:"min_match_score,omitempty"`
}

// Controller owns the effective optimization config. Reads return copies,
// updates validate the merged result before swapping, so a rejected patch
// leaves the previous configuration untouched and in-flight scans keep the
// snapshot they started with.
type Controller struct {
	mu     sync.RWMutex
	cfg    model.OptimizationConfig
	logger *zap.Logger
}

// NewController starts from the default configuration.
func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: model.DefaultOptimizationConfig(), logger: logger}
}

// Config returns the current effective configuration.
func (c *Controller) Config() model.OptimizationConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Update merge-patches the configuration. On invalid input it returns an
// *model.OptimizationConfigError and applies nothing.
func (c *Controller) Update(p Patch) (model.OptimizationConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := c.cfg
	if p.MatchOptimization != nil {
		merged.Strategies.MatchOptimization = *p.MatchOptimization
	}
	if p.QueueOptimization != nil {
		merged.Strategies.QueueOptimization = *p.QueueOptimization
	}
	if p.RiskOptimization != nil {
		merged.Strategies.RiskOptimization = *p.RiskOptimization
	}
	if p.MaxProcessingTimeMs != nil {
		merged.Thresholds.MaxProcessingTimeMs = *p.MaxProcessingTimeMs
	}
	if p.MinMatchScore != nil {
		merged.Thresholds.MinMatchScore = *p.MinMatchScore
	}

	if err := Validate(merged); err != nil {
		return c.cfg, err
	}

	c.cfg = merged
	c.logger.Info("optimization config updated",
		zap.String("match_optimization", string(merged.Strategies.MatchOptimization)),
		zap.String("queue_optimization", string(merged.Strategies.QueueOptimization)),
		zap.String("risk_optimization", string(merged.Strategies.RiskOptimization)),
		zap.Int64("max_processing_time_ms", merged.Thresholds.MaxProcessingTimeMs),
		zap.Float64("min_match_score", merged.Thresholds.MinMatchScore))
	return merged, nil
}

// Validate checks enum membership and threshold ranges of a full config.
func Validate(cfg model.OptimizationConfig) error {
	if !cfg.Strategies.MatchOptimization.Valid() {
		return &model.OptimizationConfigError{Field: "strategies.match_optimization", Reason: "unknown strategy " + string(cfg.Strategies.MatchOptimization)}
	}
	if !cfg.Strategies.QueueOptimization.Valid() {
		return &model.OptimizationConfigError{Field: "strategies.queue_optimization", Reason: "unknown strategy " + string(cfg.Strategies.QueueOptimization)}
	}
	if !cfg.Strategies.RiskOptimization.Valid() {
		return &model.OptimizationConfigError{Field: "strategies.risk_optimization", Reason: "unknown strategy " + string(cfg.Strategies.RiskOptimization)}
	}
	if cfg.Thresholds.MaxProcessingTimeMs <= 0 {
		return &model.OptimizationConfigError{Field: "thresholds.max_processing_time_ms", Reason: "must be positive"}
	}
	if cfg.Thresholds.MinMatchScore < 0 || cfg.Thresholds.MinMatchScore > 100 {
		return &model.OptimizationConfigError{Field: "thresholds.min_match_score", Reason: "must be within [0,100]"}
	}
	return nil
}
