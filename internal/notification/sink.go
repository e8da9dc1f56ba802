// Package notification delivers fire-and-forget match events. Sink errors
// are for the caller to log; they must never reach the matching path.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

// MatchEvent is the payload emitted after a successful commit.
type MatchEvent struct {
	Type       string          `json:"type"`
	Pair       model.MatchPair `json:"pair"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventMatchCommitted is the only event type the engine emits today.
const EventMatchCommitted = "match_committed"

// Sink receives match events. Implementations should bound their own
// delivery time; the engine calls Notify off the request path.
type Sink interface {
	Notify(ctx context.Context, ev MatchEvent) error
	Close() error
}

// LogSink writes events to the structured log. It is the default sink.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs each event at info.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, ev MatchEvent) error {
	s.logger.Info("match committed",
		zap.String("pair_id", ev.Pair.ID.String()),
		zap.String("withdrawal_id", ev.Pair.WithdrawalID.String()),
		zap.String("deposit_id", ev.Pair.DepositID.String()),
		zap.Float64("match_score", ev.Pair.MatchScore))
	return nil
}

func (s *LogSink) Close() error { return nil }
