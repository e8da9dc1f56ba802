package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

const itemCacheTTL = 30 * time.Second

// queueItemRow is the database shape of a queue item.
type queueItemRow struct {
	ID                    uuid.UUID       `gorm:"primaryKey;type:uuid"`
	Side                  string          `gorm:"index:idx_pending_scan,priority:1"`
	CustomerID            string          `gorm:"index"`
	Amount                decimal.Decimal `gorm:"type:numeric(20,8)"`
	PaymentType           string
	Priority              int             `gorm:"index:idx_pending_scan,priority:3"`
	PreferredPaymentTypes string          `gorm:"type:text"`
	AmountTolerance       decimal.Decimal `gorm:"type:numeric(20,8)"`
	TimePreference        string
	RiskProfile           string
	Status                string `gorm:"index:idx_pending_scan,priority:2"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (queueItemRow) TableName() string { return "queue_items" }

// matchPairRow is the database shape of a committed pair.
type matchPairRow struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid"`
	WithdrawalID uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	DepositID    uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	MatchScore   float64
	MatchedAt    time.Time `gorm:"index"`
	StrategyUsed string    `gorm:"type:text"`
}

func (matchPairRow) TableName() string { return "match_pairs" }

// GormRepository implements model.QueueRepository on Postgres via GORM.
// The compare-and-set paths are conditional UPDATEs guarded on the current
// status; CommitMatch wraps both transitions and the pair insert in one
// transaction so a failed guard rolls everything back. A redis client, when
// reachable, acts as a read-through cache for FindByID.
type GormRepository struct {
	db     *gorm.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewGormRepository creates the repository. redisAddr may be empty; if the
// ping fails the repository degrades to DB-only and logs once.
func NewGormRepository(db *gorm.DB, redisAddr string, logger *zap.Logger) *GormRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cache *redis.Client
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, proceeding without cache", zap.Error(err))
		} else {
			cache = rdb
			logger.Info("redis item cache initialized")
		}
	}
	return &GormRepository{db: db, cache: cache, logger: logger}
}

// Migrate creates or updates the backing tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&queueItemRow{}, &matchPairRow{})
}

func (r *GormRepository) Insert(ctx context.Context, item *model.QueueItem) error {
	row, err := toRow(item)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	r.cacheSet(ctx, item)
	return nil
}

func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.QueueItem, error) {
	if it := r.cacheGet(ctx, id); it != nil {
		return it, nil
	}
	var row queueItemRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("find queue item: %w", err)
	}
	it, err := fromRow(&row)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, it)
	return it, nil
}

func (r *GormRepository) QueryPending(ctx context.Context, q model.PendingQuery) ([]*model.QueueItem, error) {
	tx := r.db.WithContext(ctx).
		Where("side = ? AND status = ?", string(q.Side), string(model.StatusPending)).
		Order("priority asc, created_at asc, id asc")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []queueItemRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	return fromRows(rows)
}

func (r *GormRepository) UpdateStatusIfEqual(ctx context.Context, id uuid.UUID, expected, next model.Status) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, fmt.Errorf("illegal status transition %s -> %s", expected, next)
	}
	res := r.db.WithContext(ctx).Model(&queueItemRow{}).
		Where("id = ? AND status = ?", id, string(expected)).
		Updates(map[string]any{"status": string(next), "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a lost race from an unknown id.
		var count int64
		if err := r.db.WithContext(ctx).Model(&queueItemRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, &model.NotFoundError{ID: id}
		}
		return false, nil
	}
	r.cacheInvalidate(ctx, id)
	return true, nil
}

var errCommitAborted = errors.New("commit aborted: status guard failed")

func (r *GormRepository) CommitMatch(ctx context.Context, pair *model.MatchPair) (bool, error) {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []uuid.UUID{pair.WithdrawalID, pair.DepositID} {
			res := tx.Model(&queueItemRow{}).
				Where("id = ? AND status = ?", id, string(model.StatusPending)).
				Updates(map[string]any{"status": string(model.StatusMatched), "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errCommitAborted
			}
		}
		row, err := pairToRow(pair)
		if err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if errors.Is(err, errCommitAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("commit match: %w", err)
	}
	r.cacheInvalidate(ctx, pair.WithdrawalID)
	r.cacheInvalidate(ctx, pair.DepositID)
	return true, nil
}

func (r *GormRepository) RecordMatchPair(ctx context.Context, pair *model.MatchPair) error {
	row, err := pairToRow(pair)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("record match pair: %w", err)
	}
	return nil
}

func (r *GormRepository) List(ctx context.Context, f model.ListFilter) ([]*model.QueueItem, error) {
	tx := r.db.WithContext(ctx).Model(&queueItemRow{})
	if f.Side != nil {
		tx = tx.Where("side = ?", string(*f.Side))
	}
	if f.Status != nil {
		tx = tx.Where("status = ?", string(*f.Status))
	}
	if f.CustomerID != "" {
		tx = tx.Where("customer_id = ?", f.CustomerID)
	}
	tx = tx.Order("priority asc, created_at asc, id asc")
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	var rows []queueItemRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return fromRows(rows)
}

func (r *GormRepository) CountByStatus(ctx context.Context, side model.Side) (map[model.Status]int, error) {
	type statusCount struct {
		Status string
		N      int
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&queueItemRow{}).
		Select("status, count(*) as n").
		Where("side = ?", string(side)).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	counts := make(map[model.Status]int, len(rows))
	for _, row := range rows {
		counts[model.Status(row.Status)] = row.N
	}
	return counts, nil
}

func (r *GormRepository) ListMatchPairs(ctx context.Context, since time.Time) ([]*model.MatchPair, error) {
	var rows []matchPairRow
	err := r.db.WithContext(ctx).
		Where("matched_at >= ?", since).
		Order("matched_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list match pairs: %w", err)
	}
	out := make([]*model.MatchPair, 0, len(rows))
	for i := range rows {
		p, err := pairFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// cache helpers; all failures are best-effort and logged at debug.

func cacheKey(id uuid.UUID) string { return "p2pmatch:item:" + id.String() }

func (r *GormRepository) cacheGet(ctx context.Context, id uuid.UUID) *model.QueueItem {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var it model.QueueItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return nil
	}
	return &it
}

func (r *GormRepository) cacheSet(ctx context.Context, it *model.QueueItem) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(it)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(it.ID), raw, itemCacheTTL).Err(); err != nil {
		r.logger.Debug("item cache set failed", zap.Error(err))
	}
}

func (r *GormRepository) cacheInvalidate(ctx context.Context, id uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Debug("item cache invalidate failed", zap.Error(err))
	}
}

// row conversions

func toRow(it *model.QueueItem) (*queueItemRow, error) {
	prefs, err := json.Marshal(it.Criteria.PreferredPaymentTypes)
	if err != nil {
		return nil, err
	}
	return &queueItemRow{
		ID:                    it.ID,
		Side:                  string(it.Side),
		CustomerID:            it.CustomerID,
		Amount:                it.Amount,
		PaymentType:           string(it.PaymentType),
		Priority:              it.Priority,
		PreferredPaymentTypes: string(prefs),
		AmountTolerance:       it.Criteria.AmountTolerance,
		TimePreference:        string(it.Criteria.TimePreference),
		RiskProfile:           string(it.Criteria.RiskProfile),
		Status:                string(it.Status),
		CreatedAt:             it.CreatedAt,
		UpdatedAt:             it.UpdatedAt,
	}, nil
}

func fromRow(row *queueItemRow) (*model.QueueItem, error) {
	var prefs []model.PaymentType
	if row.PreferredPaymentTypes != "" {
		if err := json.Unmarshal([]byte(row.PreferredPaymentTypes), &prefs); err != nil {
			return nil, fmt.Errorf("decode preferred payment types: %w", err)
		}
	}
	return &model.QueueItem{
		ID:          row.ID,
		Side:        model.Side(row.Side),
		CustomerID:  row.CustomerID,
		Amount:      row.Amount,
		PaymentType: model.PaymentType(row.PaymentType),
		Priority:    row.Priority,
		Criteria: model.MatchingCriteria{
			PreferredPaymentTypes: prefs,
			AmountTolerance:       row.AmountTolerance,
			TimePreference:        model.TimePreference(row.TimePreference),
			RiskProfile:           model.RiskProfile(row.RiskProfile),
		},
		Status:    model.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func fromRows(rows []queueItemRow) ([]*model.QueueItem, error) {
	out := make([]*model.QueueItem, 0, len(rows))
	for i := range rows {
		it, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func pairToRow(p *model.MatchPair) (*matchPairRow, error) {
	strategy, err := json.Marshal(p.StrategyUsed)
	if err != nil {
		return nil, err
	}
	return &matchPairRow{
		ID:           p.ID,
		WithdrawalID: p.WithdrawalID,
		DepositID:    p.DepositID,
		MatchScore:   p.MatchScore,
		MatchedAt:    p.MatchedAt,
		StrategyUsed: string(strategy),
	}, nil
}

func pairFromRow(row *matchPairRow) (*model.MatchPair, error) {
	var strategy model.OptimizationConfig
	if row.StrategyUsed != "" {
		if err := json.Unmarshal([]byte(row.StrategyUsed), &strategy); err != nil {
			return nil, fmt.Errorf("decode strategy snapshot: %w", err)
		}
	}
	return &model.MatchPair{
		ID:           row.ID,
		WithdrawalID: row.WithdrawalID,
		DepositID:    row.DepositID,
		MatchScore:   row.MatchScore,
		MatchedAt:    row.MatchedAt,
		StrategyUsed: strategy,
	}, nil
}

var _ model.QueueRepository = (*GormRepository)(nil)
