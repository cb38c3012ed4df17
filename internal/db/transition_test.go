package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionToProcessing(t *testing.T) {
	now := time.Now().UTC()
	tr, err := transitionTo(StatusProcessing, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tr.from)
	assert.Equal(t, map[string]any{"status": StatusProcessing, "started_at": now}, tr.columns)
}

func TestTransitionToCompletedWritesAnswer(t *testing.T) {
	now := time.Now().UTC()
	tr, err := transitionTo(StatusCompleted, "the answer", "ignored", now)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, tr.from)
	assert.Equal(t, "the answer", tr.columns["answer"])
	assert.Equal(t, now, tr.columns["completed_at"])
	assert.NotContains(t, tr.columns, "error")
	assert.NotContains(t, tr.columns, "started_at")
}

func TestTransitionToFailedWritesError(t *testing.T) {
	now := time.Now().UTC()
	tr, err := transitionTo(StatusFailed, "", "boom", now)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, tr.from)
	assert.Equal(t, "boom", tr.columns["error"])
	assert.NotContains(t, tr.columns, "answer")
}

func TestTransitionToPendingRejected(t *testing.T) {
	_, err := transitionTo(StatusPending, "", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
