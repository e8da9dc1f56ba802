// Package matching implements the peer-to-peer payment queue matching
// engine: it pairs pending withdrawals against pending deposits so two
// counterparties can settle directly.
package matching

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/peerflow/p2pmatch/internal/matching/model"
	"github.com/peerflow/p2pmatch/internal/matching/optimization"
	"github.com/peerflow/p2pmatch/internal/matching/pattern"
	"github.com/peerflow/p2pmatch/internal/matching/stats"
	"github.com/peerflow/p2pmatch/internal/notification"
	"github.com/peerflow/p2pmatch/pkg/metrics"
)

// balancedWindow bounds the candidate prefix scanned under the balanced
// strategy.
const balancedWindow = 16

// notifyTimeout bounds the fire-and-forget sink call.
const notifyTimeout = 5 * time.Second

// Engine is the matching core. It owns no background goroutines; callers
// invoke it concurrently and the repository compare-and-set guarantees
// each item commits into at most one pair.
type Engine struct {
	repo       model.QueueRepository
	controller *optimization.Controller
	recorder   *stats.Recorder
	adapter    pattern.Adapter
	sink       notification.Sink
	logger     *zap.Logger
}

// NewEngine wires the engine. adapter and sink may be nil: the adapter
// falls back to the no-op null object and notifications are skipped.
func NewEngine(
	repo model.QueueRepository,
	controller *optimization.Controller,
	recorder *stats.Recorder,
	adapter pattern.Adapter,
	sink notification.Sink,
	logger *zap.Logger,
) *Engine {
	if adapter == nil {
		adapter = pattern.NoopAdapter{}
	}
	if recorder == nil {
		recorder = stats.NewRecorder(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:       repo,
		controller: controller,
		recorder:   recorder,
		adapter:    adapter,
		sink:       sink,
		logger:     logger,
	}
}

// AddItemRequest carries caller-supplied fields for a new queue item.
type AddItemRequest struct {
	CustomerID  string
	Amount      decimal.Decimal
	PaymentType model.PaymentType
	Priority    int
	Criteria    model.MatchingCriteria
}

// AddWithdrawal enqueues a withdrawal and immediately attempts a match.
func (e *Engine) AddWithdrawal(ctx context.Context, req AddItemRequest) (*model.QueueItem, *model.MatchPair, error) {
	return e.AddItem(ctx, model.SideWithdrawal, req)
}

// AddDeposit enqueues a deposit and immediately attempts a match.
func (e *Engine) AddDeposit(ctx context.Context, req AddItemRequest) (*model.QueueItem, *model.MatchPair, error) {
	return e.AddItem(ctx, model.SideDeposit, req)
}

// AddItem validates and persists a new item, then runs insertion-triggered
// matching: the new arrival may complete a pair waiting on the opposite
// side. A nil returned pair is the normal no-match outcome.
func (e *Engine) AddItem(ctx context.Context, side model.Side, req AddItemRequest) (*model.QueueItem, *model.MatchPair, error) {
	start := time.Now()

	item, err := buildItem(side, req)
	if err != nil {
		e.recorder.Record("add_item", time.Since(start), false)
		return nil, nil, err
	}

	e.applyPattern(ctx, pattern.PatternValidation, map[string]any{
		"item_id": item.ID.String(),
		"side":    string(side),
	})

	if err := e.repo.Insert(ctx, item); err != nil {
		e.recorder.Record("add_item", time.Since(start), false)
		return nil, nil, err
	}
	metrics.ItemsQueued.WithLabelValues(string(side)).Inc()

	pair, _, err := e.attemptMatch(ctx, item)
	if err != nil {
		// The item is queued; a failed scan is a missed opportunity, not
		// a failed insert. It stays pending for the next sweep.
		e.logger.Warn("match attempt failed after insert",
			zap.String("item_id", item.ID.String()), zap.Error(err))
	}

	e.recorder.Record("add_item", time.Since(start), true)
	return item, pair, nil
}

// attemptMatch scans the opposite queue for item and tries to commit the
// best candidate per the current strategy. It returns the committed pair
// (nil when none), the number of candidates scanned, and an error only for
// repository or context failures; exhausting the time budget is a silent
// no-match.
func (e *Engine) attemptMatch(ctx context.Context, item *model.QueueItem) (*model.MatchPair, int, error) {
	start := time.Now()
	cfg := e.controller.Config()
	deadline := start.Add(time.Duration(cfg.Thresholds.MaxProcessingTimeMs) * time.Millisecond)

	e.applyPattern(ctx, pattern.PatternTiming, map[string]any{
		"item_id":  item.ID.String(),
		"strategy": string(cfg.Strategies.MatchOptimization),
	})

	candidates, err := e.repo.QueryPending(ctx, model.PendingQuery{Side: item.Side.Opposite()})
	if err != nil {
		e.finishAttempt(start, "error", false)
		return nil, 0, err
	}
	e.applyPattern(ctx, pattern.PatternCaching, map[string]any{
		"item_id":    item.ID.String(),
		"side":       string(item.Side.Opposite()),
		"candidates": len(candidates),
	})
	if cfg.Strategies.QueueOptimization == model.QueueSmart {
		reorderByAmountCloseness(item, candidates)
	}

	limit := len(candidates)
	if cfg.Strategies.MatchOptimization == model.MatchBalanced && limit > balancedWindow {
		limit = balancedWindow
	}

	type scored struct {
		cand  *model.QueueItem
		score float64
	}
	var survivors []scored
	scanned := 0
	timedOut := false

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			e.finishAttempt(start, "error", false)
			return nil, scanned, err
		}
		if time.Now().After(deadline) {
			timedOut = true
			break
		}
		cand := candidates[i]
		scanned++

		if !hardConstraintsOK(item, cand) {
			continue
		}
		score := matchScore(item, cand, cfg)
		if score < cfg.Thresholds.MinMatchScore {
			continue
		}

		if cfg.Strategies.MatchOptimization == model.MatchSpeed {
			if pair := e.commit(ctx, item, cand, score, cfg); pair != nil {
				e.finishAttempt(start, "matched", true)
				return pair, scanned, nil
			}
			// Lost the compare-and-set race; keep scanning.
			continue
		}
		survivors = append(survivors, scored{cand: cand, score: score})
	}

	// accuracy/balanced: best score first, earliest arrival on ties; a
	// lost commit race falls through to the next-best candidate.
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].cand.CreatedAt.Before(survivors[j].cand.CreatedAt)
	})
	for _, sc := range survivors {
		if time.Now().After(deadline) {
			timedOut = true
			break
		}
		if pair := e.commit(ctx, item, sc.cand, sc.score, cfg); pair != nil {
			e.finishAttempt(start, "matched", true)
			return pair, scanned, nil
		}
	}

	if timedOut {
		e.logger.Debug("match scan exceeded processing budget",
			zap.String("item_id", item.ID.String()),
			zap.Int64("budget_ms", cfg.Thresholds.MaxProcessingTimeMs))
		e.finishAttempt(start, "timeout", false)
	} else {
		e.finishAttempt(start, "no_match", false)
	}
	return nil, scanned, nil
}

func (e *Engine) finishAttempt(start time.Time, outcome string, matched bool) {
	metrics.MatchAttempts.WithLabelValues(outcome).Inc()
	e.recorder.Record("attempt_match", time.Since(start), matched)
}

// commit orients the pair by side and asks the repository for the atomic
// pending->matched transition of both members plus the pair insert. A nil
// return means the compare-and-set was lost to a concurrent match.
func (e *Engine) commit(ctx context.Context, a, b *model.QueueItem, score float64, cfg model.OptimizationConfig) *model.MatchPair {
	w, d := a, b
	if a.Side == model.SideDeposit {
		w, d = b, a
	}
	pair := &model.MatchPair{
		ID:           uuid.New(),
		WithdrawalID: w.ID,
		DepositID:    d.ID,
		MatchScore:   score,
		MatchedAt:    time.Now(),
		StrategyUsed: cfg,
	}

	ok, err := e.repo.CommitMatch(ctx, pair)
	if err != nil {
		e.logger.Error("match commit failed",
			zap.String("withdrawal_id", w.ID.String()),
			zap.String("deposit_id", d.ID.String()),
			zap.Error(err))
		return nil
	}
	if !ok {
		e.logger.Debug("match commit lost compare-and-set race",
			zap.String("withdrawal_id", w.ID.String()),
			zap.String("deposit_id", d.ID.String()))
		return nil
	}

	metrics.PairsCommitted.Inc()
	metrics.MatchScore.Observe(score)
	e.notifyAsync(pair)
	return pair
}

// notifyAsync fires the sink off the matching path. Sink failures are
// logged and never propagated.
func (e *Engine) notifyAsync(pair *model.MatchPair) {
	if e.sink == nil {
		return
	}
	ev := notification.MatchEvent{
		Type:       notification.EventMatchCommitted,
		Pair:       *pair,
		OccurredAt: time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.sink.Notify(ctx, ev); err != nil {
			e.logger.Warn("notification sink failed",
				zap.String("pair_id", pair.ID.String()), zap.Error(err))
		}
	}()
}

// Cancel transitions a pending item to cancelled. A non-pending item
// yields *model.ConflictError; cancellation never touches an existing pair.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	item, err := e.repo.FindByID(ctx, id)
	if err != nil {
		e.recorder.Record("cancel", time.Since(start), false)
		return err
	}
	if item.Status != model.StatusPending {
		e.recorder.Record("cancel", time.Since(start), false)
		return &model.ConflictError{ID: id, Status: item.Status, Op: "cancel"}
	}

	ok, err := e.repo.UpdateStatusIfEqual(ctx, id, model.StatusPending, model.StatusCancelled)
	if err != nil {
		e.recorder.Record("cancel", time.Since(start), false)
		return err
	}
	if !ok {
		// Raced with a concurrent match or expiry; report the status that won.
		current, ferr := e.repo.FindByID(ctx, id)
		e.recorder.Record("cancel", time.Since(start), false)
		if ferr != nil {
			return ferr
		}
		return &model.ConflictError{ID: id, Status: current.Status, Op: "cancel"}
	}
	e.recorder.Record("cancel", time.Since(start), true)
	return nil
}

// Sweep re-attempts matching for all pending items, oldest first. It is
// invoked by an external scheduler and returns the pairs committed.
func (e *Engine) Sweep(ctx context.Context) ([]*model.MatchPair, error) {
	start := time.Now()
	var all []*model.QueueItem
	for _, side := range []model.Side{model.SideWithdrawal, model.SideDeposit} {
		items, err := e.repo.QueryPending(ctx, model.PendingQuery{Side: side})
		if err != nil {
			e.recorder.Record("sweep", time.Since(start), false)
			return nil, err
		}
		all = append(all, items...)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return strings.Compare(all[i].ID.String(), all[j].ID.String()) < 0
	})

	var pairs []*model.MatchPair
	for _, item := range all {
		if err := ctx.Err(); err != nil {
			e.recorder.Record("sweep", time.Since(start), false)
			return pairs, err
		}
		// Items matched earlier in this sweep are skipped via a fresh read.
		current, err := e.repo.FindByID(ctx, item.ID)
		if err != nil || current.Status != model.StatusPending {
			continue
		}
		pair, _, err := e.attemptMatch(ctx, current)
		if err != nil {
			e.logger.Warn("sweep match attempt failed",
				zap.String("item_id", item.ID.String()), zap.Error(err))
			continue
		}
		if pair != nil {
			pairs = append(pairs, pair)
		}
	}
	e.recorder.Record("sweep", time.Since(start), true)
	return pairs, nil
}

// ExpireOlderThan transitions pending items created before cutoff to
// expired and returns how many it moved. Items that race into another
// state are left alone.
func (e *Engine) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	start := time.Now()
	expired := 0
	for _, side := range []model.Side{model.SideWithdrawal, model.SideDeposit} {
		items, err := e.repo.QueryPending(ctx, model.PendingQuery{Side: side})
		if err != nil {
			e.recorder.Record("expire_sweep", time.Since(start), false)
			return expired, err
		}
		for _, item := range items {
			if !item.CreatedAt.Before(cutoff) {
				continue
			}
			ok, err := e.repo.UpdateStatusIfEqual(ctx, item.ID, model.StatusPending, model.StatusExpired)
			if err != nil {
				e.logger.Warn("expire failed", zap.String("item_id", item.ID.String()), zap.Error(err))
				continue
			}
			if ok {
				expired++
			}
		}
	}
	e.recorder.Record("expire_sweep", time.Since(start), true)
	return expired, nil
}

// Items lists queue items for the API surface.
func (e *Engine) Items(ctx context.Context, f model.ListFilter) ([]*model.QueueItem, error) {
	return e.repo.List(ctx, f)
}

// applyPattern runs one instrumentation hook fail-open: a broken adapter
// degrades instrumentation, never the matching path.
func (e *Engine) applyPattern(ctx context.Context, name string, payload map[string]any) {
	if _, err := e.adapter.Apply(ctx, name, payload); err != nil {
		e.logger.Warn("instrumentation degraded",
			zap.String("pattern", name),
			zap.String("adapter", e.adapter.Name()),
			zap.Error(err))
	}
}

// buildItem validates the request and materializes a pending QueueItem.
func buildItem(side model.Side, req AddItemRequest) (*model.QueueItem, error) {
	if !side.Valid() {
		return nil, model.NewValidationError("side", "must be withdrawal or deposit")
	}
	if req.CustomerID == "" {
		return nil, model.NewValidationError("customer_id", "must not be empty")
	}
	if !req.Amount.IsPositive() {
		return nil, model.NewValidationError("amount", "must be positive")
	}
	if req.PaymentType == "" {
		return nil, model.NewValidationError("payment_type", "must not be empty")
	}
	if !req.PaymentType.Valid() {
		return nil, model.NewValidationError("payment_type", "unknown payment type "+string(req.PaymentType))
	}
	if req.Priority < model.MinPriority || req.Priority > model.MaxPriority {
		return nil, model.NewValidationError("priority", "must be within the allowed range")
	}
	if req.Criteria.AmountTolerance.IsNegative() {
		return nil, model.NewValidationError("matching_criteria.amount_tolerance", "must not be negative")
	}
	for _, t := range req.Criteria.PreferredPaymentTypes {
		if !t.Valid() {
			return nil, model.NewValidationError("matching_criteria.preferred_payment_types", "unknown payment type "+string(t))
		}
	}

	criteria := req.Criteria
	if criteria.TimePreference == "" {
		criteria.TimePreference = model.TimeFlexible
	} else if !criteria.TimePreference.Valid() {
		return nil, model.NewValidationError("matching_criteria.time_preference", "must be immediate or flexible")
	}
	if criteria.RiskProfile == "" {
		criteria.RiskProfile = model.RiskMedium
	} else if !criteria.RiskProfile.Valid() {
		return nil, model.NewValidationError("matching_criteria.risk_profile", "must be low, medium or high")
	}

	now := time.Now()
	return &model.QueueItem{
		ID:          uuid.New(),
		Side:        side,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		Priority:    req.Priority,
		Criteria:    criteria,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
