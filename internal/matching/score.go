package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// Composite score weights. The three weighted terms sum to 1.0; the time
// preference is an additive bonus on top, clamped at 100.
const (
	weightPayment = 0.45
	weightAmount  = 0.25
	weightRisk    = 0.30
	timeBonus     = 5.0
)

// Risk mismatch penalty per rank step, by risk strategy.
func riskPenaltyPerStep(strategy model.RiskStrategy) float64 {
	switch strategy {
	case model.RiskConservative:
		return 0.45
	case model.RiskAggressive:
		return 0.05
	default:
		return 0.25
	}
}

// hardConstraintsOK applies the disqualifying checks that skip a candidate
// before any scoring: still pending, payment rails overlap, amount gap
// inside the stricter declared tolerance.
func hardConstraintsOK(item, cand *model.QueueItem) bool {
	if cand.Status != model.StatusPending {
		return false
	}
	if paymentOverlap(item, cand) == 0 {
		return false
	}
	return amountWithinTolerance(item, cand)
}

// paymentOverlap counts the common members of both effective preference
// sets.
func paymentOverlap(a, b *model.QueueItem) int {
	pa := a.Criteria.EffectivePaymentTypes(a.PaymentType)
	pb := b.Criteria.EffectivePaymentTypes(b.PaymentType)
	seen := make(map[model.PaymentType]bool, len(pa))
	for _, t := range pa {
		seen[t] = true
	}
	n := 0
	for _, t := range pb {
		if seen[t] {
			n++
		}
	}
	return n
}

// stricterTolerance picks the smaller of the two declared tolerances. A
// zero tolerance counts as undeclared; when neither side declares one the
// amounts must match exactly.
func stricterTolerance(a, b *model.QueueItem) (decimal.Decimal, bool) {
	ta, tb := a.Criteria.AmountTolerance, b.Criteria.AmountTolerance
	declaredA, declaredB := ta.IsPositive(), tb.IsPositive()
	switch {
	case declaredA && declaredB:
		if ta.LessThan(tb) {
			return ta, true
		}
		return tb, true
	case declaredA:
		return ta, true
	case declaredB:
		return tb, true
	default:
		return decimal.Zero, false
	}
}

func amountWithinTolerance(a, b *model.QueueItem) bool {
	diff := a.Amount.Sub(b.Amount).Abs()
	tol, declared := stricterTolerance(a, b)
	if !declared {
		return diff.IsZero()
	}
	return diff.LessThanOrEqual(tol)
}

// matchScore computes the composite 0-100 score for a surviving candidate.
func matchScore(item, cand *model.QueueItem, cfg model.OptimizationConfig) float64 {
	p := paymentTerm(item, cand)
	amt := amountTerm(item, cand)
	risk := riskTerm(item, cand, cfg.Strategies.RiskOptimization)

	score := (weightPayment*p + weightAmount*amt + weightRisk*risk) * 100
	if item.Criteria.TimePreference == model.TimeImmediate && cand.Criteria.TimePreference == model.TimeImmediate {
		score += timeBonus
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// paymentTerm is 1.0 on an exact mutual top-preference match, otherwise
// credit proportional to the preference overlap.
func paymentTerm(a, b *model.QueueItem) float64 {
	pa := a.Criteria.EffectivePaymentTypes(a.PaymentType)
	pb := b.Criteria.EffectivePaymentTypes(b.PaymentType)
	if pa[0] == b.PaymentType && pb[0] == a.PaymentType {
		return 1.0
	}
	denom := len(pa)
	if len(pb) > denom {
		denom = len(pb)
	}
	return float64(paymentOverlap(a, b)) / float64(denom)
}

// amountTerm is 1.0 at zero difference and decays linearly to 0 at the
// tolerance boundary.
func amountTerm(a, b *model.QueueItem) float64 {
	diff := a.Amount.Sub(b.Amount).Abs()
	if diff.IsZero() {
		return 1.0
	}
	tol, declared := stricterTolerance(a, b)
	if !declared || tol.IsZero() {
		return 0
	}
	term := 1.0 - diff.Div(tol).InexactFloat64()
	if term < 0 {
		return 0
	}
	return term
}

// riskTerm is 1.0 on identical profiles, degraded per rank step by the
// strategy's penalty.
func riskTerm(a, b *model.QueueItem, strategy model.RiskStrategy) float64 {
	steps := a.Criteria.RiskProfile.Rank() - b.Criteria.RiskProfile.Rank()
	if steps < 0 {
		steps = -steps
	}
	term := 1.0 - float64(steps)*riskPenaltyPerStep(strategy)
	if term < 0 {
		return 0
	}
	return term
}

// reorderByAmountCloseness is the "smart" queue ordering: a stable re-sort
// of the priority snapshot by absolute amount difference to the incoming
// item, so near-exact counterparts are scored first.
func reorderByAmountCloseness(item *model.QueueItem, candidates []*model.QueueItem) {
	sort.SliceStable(candidates, func(i, j int) bool {
		di := candidates[i].Amount.Sub(item.Amount).Abs()
		dj := candidates[j].Amount.Sub(item.Amount).Abs()
		return di.LessThan(dj)
	})
}
