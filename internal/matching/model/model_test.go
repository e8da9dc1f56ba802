package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMachine(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending: {StatusMatched, StatusCancelled, StatusExpired},
		StatusMatched: {StatusSettled},
	}
	all := []Status{StatusPending, StatusMatched, StatusSettled, StatusCancelled, StatusExpired}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if to == ok {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	for _, s := range []Status{StatusSettled, StatusCancelled, StatusExpired} {
		assert.True(t, s.Terminal())
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusMatched.Terminal())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideDeposit, SideWithdrawal.Opposite())
	assert.Equal(t, SideWithdrawal, SideDeposit.Opposite())
	assert.True(t, SideWithdrawal.Valid())
	assert.False(t, Side("transfer").Valid())
}

func TestEnumValidity(t *testing.T) {
	for _, p := range KnownPaymentTypes() {
		assert.True(t, p.Valid(), string(p))
	}
	assert.False(t, PaymentType("iou").Valid())

	assert.True(t, TimeImmediate.Valid())
	assert.False(t, TimePreference("someday").Valid())

	assert.True(t, RiskHigh.Valid())
	assert.False(t, RiskProfile("none").Valid())
	assert.Equal(t, 2, RiskHigh.Rank()-RiskLow.Rank())
}

func TestCriteriaEffectivePaymentTypes(t *testing.T) {
	c := MatchingCriteria{}
	assert.Equal(t, []PaymentType{PaymentCard}, c.EffectivePaymentTypes(PaymentCard))

	c.PreferredPaymentTypes = []PaymentType{PaymentSEPA, PaymentBankTransfer}
	assert.Equal(t, c.PreferredPaymentTypes, c.EffectivePaymentTypes(PaymentCard))
}

func TestQueueItemCloneIsDeep(t *testing.T) {
	it := &QueueItem{
		Criteria: MatchingCriteria{
			PreferredPaymentTypes: []PaymentType{PaymentCrypto, PaymentWallet},
		},
	}
	cp := it.Clone()
	cp.Criteria.PreferredPaymentTypes[0] = PaymentCard
	assert.Equal(t, PaymentCrypto, it.Criteria.PreferredPaymentTypes[0])
}

func TestDefaultOptimizationConfig(t *testing.T) {
	cfg := DefaultOptimizationConfig()
	assert.True(t, cfg.Strategies.MatchOptimization.Valid())
	assert.True(t, cfg.Strategies.QueueOptimization.Valid())
	assert.True(t, cfg.Strategies.RiskOptimization.Valid())
	assert.Positive(t, cfg.Thresholds.MaxProcessingTimeMs)
	assert.GreaterOrEqual(t, cfg.Thresholds.MinMatchScore, 0.0)
	assert.LessOrEqual(t, cfg.Thresholds.MinMatchScore, 100.0)
}
