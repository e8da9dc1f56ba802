package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

func TestLogSinkNotify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	defer sink.Close()

	ev := MatchEvent{
		Type: EventMatchCommitted,
		Pair: model.MatchPair{
			ID:           uuid.New(),
			WithdrawalID: uuid.New(),
			DepositID:    uuid.New(),
			MatchScore:   88.5,
		},
		OccurredAt: time.Now(),
	}
	require.NoError(t, sink.Notify(context.Background(), ev))

	entries := logs.FilterMessage("match committed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, ev.Pair.ID.String(), fields["pair_id"])
	assert.Equal(t, 88.5, fields["match_score"])
}

func TestLogSinkNilLogger(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.Notify(context.Background(), MatchEvent{}))
	assert.NoError(t, sink.Close())
}

func TestDefaultKafkaSinkConfig(t *testing.T) {
	cfg := DefaultKafkaSinkConfig()
	assert.Positive(t, cfg.BatchSize)
	assert.Positive(t, cfg.BatchTimeout)
	assert.Positive(t, cfg.WriteTimeout)
	assert.Equal(t, 1, cfg.RequiredAcks)
}
