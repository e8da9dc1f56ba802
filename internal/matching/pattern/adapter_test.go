package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopAdapter(t *testing.T) {
	a := NoopAdapter{}
	assert.Equal(t, "noop", a.Name())

	payload := map[string]any{"item_id": "abc"}
	got, err := a.Apply(context.Background(), PatternValidation, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = a.Apply(context.Background(), "unregistered", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
