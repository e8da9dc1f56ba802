// Package model defines the queue domain types shared by the matching
// engine, the repositories and the API layer.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side identifies which queue an item belongs to.
type Side string

const (
	SideWithdrawal Side = "withdrawal"
	SideDeposit    Side = "deposit"
)

// Valid reports whether s is a known queue side.
func (s Side) Valid() bool {
	return s == SideWithdrawal || s == SideDeposit
}

// Opposite returns the counterparty side.
func (s Side) Opposite() Side {
	if s == SideWithdrawal {
		return SideDeposit
	}
	return SideWithdrawal
}

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSettled, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo enforces the monotonic status machine:
// pending -> matched|cancelled|expired, matched -> settled.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusMatched || next == StatusCancelled || next == StatusExpired
	case StatusMatched:
		return next == StatusSettled
	}
	return false
}

// PaymentType is a settlement rail token.
type PaymentType string

const (
	PaymentBankTransfer PaymentType = "bank_transfer"
	PaymentCrypto       PaymentType = "crypto"
	PaymentCard         PaymentType = "card"
	PaymentWallet       PaymentType = "wallet"
	PaymentSEPA         PaymentType = "sepa"
)

// KnownPaymentTypes returns the closed set of accepted payment rails.
func KnownPaymentTypes() []PaymentType {
	return []PaymentType{PaymentBankTransfer, PaymentCrypto, PaymentCard, PaymentWallet, PaymentSEPA}
}

// Valid reports whether p is a member of the known payment-type set.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentBankTransfer, PaymentCrypto, PaymentCard, PaymentWallet, PaymentSEPA:
		return true
	}
	return false
}

// TimePreference expresses how urgently a party wants to settle.
type TimePreference string

const (
	TimeImmediate TimePreference = "immediate"
	TimeFlexible  TimePreference = "flexible"
)

func (t TimePreference) Valid() bool {
	return t == TimeImmediate || t == TimeFlexible
}

// RiskProfile is the declared risk appetite of a party.
type RiskProfile string

const (
	RiskLow    RiskProfile = "low"
	RiskMedium RiskProfile = "medium"
	RiskHigh   RiskProfile = "high"
)

func (r RiskProfile) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Rank orders risk profiles so mismatch distance can be penalized.
func (r RiskProfile) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// Priority bounds accepted on insert. Lower value means served first.
const (
	MinPriority = 0
	MaxPriority = 1000
)

// MatchingCriteria constrains which counterparties an item accepts.
type MatchingCriteria struct {
	PreferredPaymentTypes []PaymentType   `json:"preferred_payment_types"`
	AmountTolerance       decimal.Decimal `json:"amount_tolerance"`
	TimePreference        TimePreference  `json:"time_preference"`
	RiskProfile           RiskProfile     `json:"risk_profile"`
}

// EffectivePaymentTypes is the preference list used for overlap checks:
// the declared preferences, or the item's own rail when none were declared.
func (c MatchingCriteria) EffectivePaymentTypes(own PaymentType) []PaymentType {
	if len(c.PreferredPaymentTypes) > 0 {
		return c.PreferredPaymentTypes
	}
	return []PaymentType{own}
}

// QueueItem is a pending withdrawal or deposit awaiting a counterpart.
// Items are never deleted; terminal states are retained for audit.
type QueueItem struct {
	ID          uuid.UUID        `json:"id"`
	Side        Side             `json:"side"`
	CustomerID  string           `json:"customer_id"`
	Amount      decimal.Decimal  `json:"amount"`
	PaymentType PaymentType      `json:"payment_type"`
	Priority    int              `json:"priority"`
	Criteria    MatchingCriteria `json:"matching_criteria"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so repository snapshots cannot be mutated
// behind the engine's back.
func (q *QueueItem) Clone() *QueueItem {
	cp := *q
	if len(q.Criteria.PreferredPaymentTypes) > 0 {
		cp.Criteria.PreferredPaymentTypes = append([]PaymentType(nil), q.Criteria.PreferredPaymentTypes...)
	}
	return &cp
}

// MatchPair records a committed withdrawal/deposit pairing.
type MatchPair struct {
	ID           uuid.UUID          `json:"id"`
	WithdrawalID uuid.UUID          `json:"withdrawal_id"`
	DepositID    uuid.UUID          `json:"deposit_id"`
	MatchScore   float64            `json:"match_score"`
	MatchedAt    time.Time          `json:"matched_at"`
	StrategyUsed OptimizationConfig `json:"strategy_used"`
}
