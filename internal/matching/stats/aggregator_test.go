package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerflow/p2pmatch/internal/matching/model"
	"github.com/peerflow/p2pmatch/internal/matching/repository"
)

func seedItem(t *testing.T, repo *repository.MemoryRepository, side model.Side, age time.Duration) *model.QueueItem {
	t.Helper()
	now := time.Now()
	item := &model.QueueItem{
		ID:          uuid.New(),
		Side:        side,
		CustomerID:  "c",
		Amount:      decimal.NewFromInt(100),
		PaymentType: model.PaymentBankTransfer,
		Criteria: model.MatchingCriteria{
			TimePreference: model.TimeFlexible,
			RiskProfile:    model.RiskMedium,
		},
		Status:    model.StatusPending,
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age),
	}
	require.NoError(t, repo.Insert(context.Background(), item))
	return item
}

func TestEnhancedQueueStats(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	recorder := NewRecorder(0)
	recorder.Record("add_item", 3*time.Millisecond, true)

	seedItem(t, repo, model.SideWithdrawal, 90*time.Second)
	seedItem(t, repo, model.SideWithdrawal, time.Second)
	seedItem(t, repo, model.SideDeposit, time.Second)

	w := seedItem(t, repo, model.SideWithdrawal, time.Minute)
	d := seedItem(t, repo, model.SideDeposit, time.Minute)
	pair := &model.MatchPair{
		ID:           uuid.New(),
		WithdrawalID: w.ID,
		DepositID:    d.ID,
		MatchScore:   90,
		MatchedAt:    time.Now(),
		StrategyUsed: model.DefaultOptimizationConfig(),
	}
	ok, err := repo.CommitMatch(ctx, pair)
	require.NoError(t, err)
	require.True(t, ok)

	a := NewAggregator(repo, recorder, "noop")
	st, err := a.EnhancedQueueStats(ctx, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, st.PendingWithdrawals)
	assert.Equal(t, 1, st.PendingDeposits)
	assert.Equal(t, 1, st.MatchedPairs)
	assert.Equal(t, 90.0, st.AverageMatchScore)
	assert.Equal(t, 1, st.WithdrawalStatuses[model.StatusMatched])
	assert.Equal(t, 1, st.DepositStatuses[model.StatusMatched])
	assert.GreaterOrEqual(t, st.OldestPendingAgeMs, (89 * time.Second).Milliseconds())
	require.Len(t, st.Operations, 1)
	assert.Equal(t, "add_item", st.Operations[0].Operation)
}

func TestEnhancedQueueStatsWindowFiltersPairs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	w := seedItem(t, repo, model.SideWithdrawal, 48*time.Hour)
	d := seedItem(t, repo, model.SideDeposit, 48*time.Hour)
	pair := &model.MatchPair{
		ID:           uuid.New(),
		WithdrawalID: w.ID,
		DepositID:    d.ID,
		MatchScore:   85,
		MatchedAt:    time.Now().Add(-36 * time.Hour),
		StrategyUsed: model.DefaultOptimizationConfig(),
	}
	ok, err := repo.CommitMatch(ctx, pair)
	require.NoError(t, err)
	require.True(t, ok)

	a := NewAggregator(repo, NewRecorder(0), "noop")

	st, err := a.EnhancedQueueStats(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, st.MatchedPairs, "default 24h window excludes the old pair")
	assert.Zero(t, st.AverageMatchScore)

	st, err = a.EnhancedQueueStats(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, st.MatchedPairs)
}

func TestPatternSystemMetrics(t *testing.T) {
	recorder := NewRecorder(0)
	recorder.Record("match_attempt", 2*time.Millisecond, true)
	recorder.Record("match_attempt", 4*time.Millisecond, false)

	a := NewAggregator(repository.NewMemoryRepository(), recorder, "noop")
	pm := a.PatternSystemMetrics()

	assert.Equal(t, "noop", pm.Adapter)
	require.Len(t, pm.Operations, 1)
	assert.Equal(t, 2, pm.Operations[0].Count)
	assert.InDelta(t, 0.5, pm.Operations[0].SuccessRate, 1e-9)
	assert.False(t, pm.GeneratedAt.IsZero())
}
