package model

// MatchStrategy selects the candidate scan/selection rule.
type MatchStrategy string

const (
	MatchSpeed    MatchStrategy = "speed"
	MatchAccuracy MatchStrategy = "accuracy"
	MatchBalanced MatchStrategy = "balanced"
)

func (m MatchStrategy) Valid() bool {
	return m == MatchSpeed || m == MatchAccuracy || m == MatchBalanced
}

// QueueStrategy selects how the candidate snapshot is ordered before scoring.
type QueueStrategy string

const (
	// QueueFIFO keeps the repository order: priority, then insertion time.
	QueueFIFO QueueStrategy = "fifo"
	// QueueSmart reorders the snapshot by amount closeness to the incoming item.
	QueueSmart QueueStrategy = "smart"
)

func (q QueueStrategy) Valid() bool {
	return q == QueueFIFO || q == QueueSmart
}

// RiskStrategy controls how heavily risk-profile mismatches are penalized.
type RiskStrategy string

const (
	RiskConservative RiskStrategy = "conservative"
	RiskModerate     RiskStrategy = "moderate"
	RiskAggressive   RiskStrategy = "aggressive"
)

func (r RiskStrategy) Valid() bool {
	return r == RiskConservative || r == RiskModerate || r == RiskAggressive
}

// StrategyConfig is the tunable strategy block of the optimization config.
type StrategyConfig struct {
	MatchOptimization MatchStrategy `json:"match_optimization"`
	QueueOptimization QueueStrategy `json:"queue_optimization"`
	RiskOptimization  RiskStrategy  `json:"risk_optimization"`
}

// ThresholdConfig bounds a single matching attempt.
type ThresholdConfig struct {
	MaxProcessingTimeMs int64   `json:"max_processing_time_ms"`
	MinMatchScore       float64 `json:"min_match_score"`
}

// OptimizationConfig is the full tunable configuration consumed by the
// matching engine. MatchPair keeps a snapshot of it at commit time.
type OptimizationConfig struct {
	Strategies StrategyConfig  `json:"strategies"`
	Thresholds ThresholdConfig `json:"thresholds"`
}

// DefaultOptimizationConfig returns the effective configuration before any
// update has been applied.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		Strategies: StrategyConfig{
			MatchOptimization: MatchBalanced,
			QueueOptimization: QueueSmart,
			RiskOptimization:  RiskModerate,
		},
		Thresholds: ThresholdConfig{
			MaxProcessingTimeMs: 5000,
			MinMatchScore:       80,
		},
	}
}
