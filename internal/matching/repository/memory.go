// Package repository ships the QueueRepository implementations: an
// in-memory store for tests and single-node runs, and a GORM/Postgres
// store with an optional redis read cache.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// MemoryRepository keeps all state in process. The pending index per side
// is a btree keyed by (priority, createdAt, id) so QueryPending returns a
// deterministic snapshot without sorting on every scan. All compare-and-set
// paths run under one lock, which also makes CommitMatch a single atomic
// step.
type MemoryRepository struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]*model.QueueItem
	pending map[model.Side]*btree.Map[string, uuid.UUID]
	pairs   []*model.MatchPair
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[uuid.UUID]*model.QueueItem),
		pending: map[model.Side]*btree.Map[string, uuid.UUID]{
			model.SideWithdrawal: btree.NewMap[string, uuid.UUID](32),
			model.SideDeposit:    btree.NewMap[string, uuid.UUID](32),
		},
	}
}

// pendingKey encodes (priority, createdAt, id) into a lexically sortable
// string, the same trick the btree index uses for price levels elsewhere.
func pendingKey(it *model.QueueItem) string {
	return fmt.Sprintf("%06d|%020d|%s", it.Priority, it.CreatedAt.UnixNano(), it.ID)
}

func (r *MemoryRepository) Insert(_ context.Context, item *model.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.ID]; exists {
		return fmt.Errorf("duplicate queue item id %s", item.ID)
	}
	cp := item.Clone()
	r.items[item.ID] = cp
	if cp.Status == model.StatusPending {
		r.pending[cp.Side].Set(pendingKey(cp), cp.ID)
	}
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*model.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, &model.NotFoundError{ID: id}
	}
	return it.Clone(), nil
}

func (r *MemoryRepository) QueryPending(_ context.Context, q model.PendingQuery) ([]*model.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.pending[q.Side]
	if !ok {
		return nil, fmt.Errorf("unknown queue side %q", q.Side)
	}
	var out []*model.QueueItem
	idx.Scan(func(_ string, id uuid.UUID) bool {
		if q.Limit > 0 && len(out) >= q.Limit {
			return false
		}
		if it, found := r.items[id]; found && it.Status == model.StatusPending {
			out = append(out, it.Clone())
		}
		return true
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatusIfEqual(_ context.Context, id uuid.UUID, expected, next model.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.casLocked(id, expected, next)
}

// casLocked is the compare-and-set core; the caller must hold the lock.
func (r *MemoryRepository) casLocked(id uuid.UUID, expected, next model.Status) (bool, error) {
	it, ok := r.items[id]
	if !ok {
		return false, &model.NotFoundError{ID: id}
	}
	if it.Status != expected {
		return false, nil
	}
	if !expected.CanTransitionTo(next) {
		return false, fmt.Errorf("illegal status transition %s -> %s", expected, next)
	}
	if expected == model.StatusPending {
		r.pending[it.Side].Delete(pendingKey(it))
	}
	it.Status = next
	it.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepository) CommitMatch(_ context.Context, pair *model.MatchPair) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.items[pair.WithdrawalID]
	if !ok {
		return false, &model.NotFoundError{ID: pair.WithdrawalID}
	}
	d, ok := r.items[pair.DepositID]
	if !ok {
		return false, &model.NotFoundError{ID: pair.DepositID}
	}
	if w.Status != model.StatusPending || d.Status != model.StatusPending {
		return false, nil
	}

	if _, err := r.casLocked(w.ID, model.StatusPending, model.StatusMatched); err != nil {
		return false, err
	}
	if _, err := r.casLocked(d.ID, model.StatusPending, model.StatusMatched); err != nil {
		return false, err
	}
	cp := *pair
	r.pairs = append(r.pairs, &cp)
	return true, nil
}

func (r *MemoryRepository) RecordMatchPair(_ context.Context, pair *model.MatchPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pair
	r.pairs = append(r.pairs, &cp)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, f model.ListFilter) ([]*model.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.QueueItem
	for _, it := range r.items {
		if f.Side != nil && it.Side != *f.Side {
			continue
		}
		if f.Status != nil && it.Status != *f.Status {
			continue
		}
		if f.CustomerID != "" && it.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) CountByStatus(_ context.Context, side model.Side) (map[model.Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[model.Status]int)
	for _, it := range r.items {
		if it.Side == side {
			counts[it.Status]++
		}
	}
	return counts, nil
}

func (r *MemoryRepository) ListMatchPairs(_ context.Context, since time.Time) ([]*model.MatchPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.MatchPair
	for _, p := range r.pairs {
		if !p.MatchedAt.Before(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ model.QueueRepository = (*MemoryRepository)(nil)
