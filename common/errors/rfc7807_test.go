package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

func TestFromErrorTaxonomy(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantField  string
	}{
		{
			name:       "validation",
			err:        model.NewValidationError("amount", "must be positive"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidationError,
			wantField:  "amount",
		},
		{
			name:       "wrapped validation",
			err:        fmt.Errorf("enqueue: %w", model.NewValidationError("priority", "out of range")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidationError,
			wantField:  "priority",
		},
		{
			name:       "not found",
			err:        &model.NotFoundError{ID: id},
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "conflict",
			err:        &model.ConflictError{ID: id, Status: model.StatusMatched, Op: "cancel"},
			wantStatus: http.StatusConflict,
			wantType:   TypeConflict,
		},
		{
			name:       "optimization config",
			err:        &model.OptimizationConfigError{Field: "thresholds.min_match_score", Reason: "must be within [0,100]"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeConfigError,
			wantField:  "thresholds.min_match_score",
		},
		{
			name:       "unknown error stays opaque",
			err:        stderrors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := FromError(tt.err, "/v1/queue/items")
			assert.Equal(t, tt.wantStatus, pd.Status)
			assert.Equal(t, tt.wantType, pd.Type)
			assert.Equal(t, tt.wantField, pd.Field)
			assert.Equal(t, "/v1/queue/items", pd.Instance)
			assert.False(t, pd.Timestamp.IsZero())
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", pd.Detail, "internal details must not leak")
			}
		})
	}
}

func TestProblemDetailsPassThrough(t *testing.T) {
	original := NewConflictProblem("already matched", "/v1/queue/items/x")
	pd := FromError(fmt.Errorf("handler: %w", original), "/elsewhere")
	assert.Same(t, original, pd, "an existing problem is reused untouched")
}

func TestWithTraceID(t *testing.T) {
	pd := NewValidationProblem("bad", "/x").WithTraceID("trace-123")
	assert.Equal(t, "trace-123", pd.TraceID)
	assert.Contains(t, pd.Error(), "Validation Error")
}
