package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PendingQuery carries filter hints for a pending-queue scan. Results are
// always ordered by priority ascending, then created-at, then id.
type PendingQuery struct {
	Side  Side
	Limit int // 0 means no limit
}

// ListFilter narrows a general item listing.
type ListFilter struct {
	Side       *Side
	Status     *Status
	CustomerID string
	Limit      int
}

// QueueRepository is the persistence boundary for queue items and match
// pairs. Implementations must make UpdateStatusIfEqual and CommitMatch
// atomic; everything else may serve slightly stale snapshots.
type QueueRepository interface {
	// Insert persists a new item. The caller assigns id and timestamps.
	Insert(ctx context.Context, item *QueueItem) error

	// FindByID returns a copy of the item or *NotFoundError.
	FindByID(ctx context.Context, id uuid.UUID) (*QueueItem, error)

	// QueryPending returns a consistent ordered snapshot of one side's
	// pending items.
	QueryPending(ctx context.Context, q PendingQuery) ([]*QueueItem, error)

	// UpdateStatusIfEqual performs a compare-and-set on the item status.
	// It returns false without error when the current status differs from
	// expected; the transition must also be legal for the status machine.
	UpdateStatusIfEqual(ctx context.Context, id uuid.UUID, expected, next Status) (bool, error)

	// CommitMatch atomically transitions both pair members from pending to
	// matched and records the pair. It returns false and writes nothing
	// when either compare-and-set fails.
	CommitMatch(ctx context.Context, pair *MatchPair) (bool, error)

	// RecordMatchPair persists a pair record outside the commit path
	// (recovery/import). Normal matching goes through CommitMatch.
	RecordMatchPair(ctx context.Context, pair *MatchPair) error

	// List returns items matching the filter, priority order.
	List(ctx context.Context, f ListFilter) ([]*QueueItem, error)

	// CountByStatus returns per-status counts for one side.
	CountByStatus(ctx context.Context, side Side) (map[Status]int, error)

	// ListMatchPairs returns pairs committed at or after since.
	ListMatchPairs(ctx context.Context, since time.Time) ([]*MatchPair, error)
}
