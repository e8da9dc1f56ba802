package stats

import (
	"context"
	"time"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// QueueStats is the enhanced point-in-time view over both queues.
type QueueStats struct {
	PendingWithdrawals int                  `json:"pending_withdrawals"`
	PendingDeposits    int                  `json:"pending_deposits"`
	MatchedPairs       int                  `json:"matched_pairs"`
	WindowStart        time.Time            `json:"window_start"`
	OldestPendingAgeMs int64                `json:"oldest_pending_age_ms"`
	WithdrawalStatuses map[model.Status]int `json:"withdrawal_statuses"`
	DepositStatuses    map[model.Status]int `json:"deposit_statuses"`
	AverageMatchScore  float64              `json:"average_match_score"`
	Operations         []OperationMetrics   `json:"operations"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// PatternMetrics exposes the instrumentation-side view: per-operation
// rolling aggregates plus the adapter in use.
type PatternMetrics struct {
	Adapter     string             `json:"adapter"`
	Operations  []OperationMetrics `json:"operations"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Aggregator derives statistics from repository state and the recorder.
// All methods are pure reads.
type Aggregator struct {
	repo        model.QueueRepository
	recorder    *Recorder
	adapterName string
}

// NewAggregator wires the read sources. adapterName labels which pattern
// adapter the engine runs with.
func NewAggregator(repo model.QueueRepository, recorder *Recorder, adapterName string) *Aggregator {
	return &Aggregator{repo: repo, recorder: recorder, adapterName: adapterName}
}

// EnhancedQueueStats aggregates queue counts and pair totals for the given
// trailing window (window <= 0 means the last 24 hours).
func (a *Aggregator) EnhancedQueueStats(ctx context.Context, window time.Duration) (*QueueStats, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := time.Now()
	since := now.Add(-window)

	wCounts, err := a.repo.CountByStatus(ctx, model.SideWithdrawal)
	if err != nil {
		return nil, err
	}
	dCounts, err := a.repo.CountByStatus(ctx, model.SideDeposit)
	if err != nil {
		return nil, err
	}
	pairs, err := a.repo.ListMatchPairs(ctx, since)
	if err != nil {
		return nil, err
	}

	var scoreSum float64
	for _, p := range pairs {
		scoreSum += p.MatchScore
	}
	avgScore := 0.0
	if len(pairs) > 0 {
		avgScore = scoreSum / float64(len(pairs))
	}

	oldest, err := a.oldestPendingAge(ctx, now)
	if err != nil {
		return nil, err
	}

	st := &QueueStats{
		PendingWithdrawals: wCounts[model.StatusPending],
		PendingDeposits:    dCounts[model.StatusPending],
		MatchedPairs:       len(pairs),
		WindowStart:        since,
		OldestPendingAgeMs: oldest.Milliseconds(),
		WithdrawalStatuses: wCounts,
		DepositStatuses:    dCounts,
		AverageMatchScore:  avgScore,
		GeneratedAt:        now,
	}
	for _, op := range a.recorder.Operations() {
		if m, ok := a.recorder.Snapshot(op); ok {
			st.Operations = append(st.Operations, m)
		}
	}
	return st, nil
}

// PatternSystemMetrics reports the instrumentation view of the engine.
func (a *Aggregator) PatternSystemMetrics() *PatternMetrics {
	pm := &PatternMetrics{Adapter: a.adapterName, GeneratedAt: time.Now()}
	for _, op := range a.recorder.Operations() {
		if m, ok := a.recorder.Snapshot(op); ok {
			pm.Operations = append(pm.Operations, m)
		}
	}
	return pm
}

func (a *Aggregator) oldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var oldest time.Time
	for _, side := range []model.Side{model.SideWithdrawal, model.SideDeposit} {
		items, err := a.repo.QueryPending(ctx, model.PendingQuery{Side: side})
		if err != nil {
			return 0, err
		}
		for _, it := range items {
			if oldest.IsZero() || it.CreatedAt.Before(oldest) {
				oldest = it.CreatedAt
			}
		}
	}
	if oldest.IsZero() {
		return 0, nil
	}
	return now.Sub(oldest), nil
}
