package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionIsMonotonic(t *testing.T) {
	assert.True(t, CanTransition(StateUploading, StateProcessing))
	assert.True(t, CanTransition(StateUploading, StateReady))
	assert.True(t, CanTransition(StateProcessing, StateReady))
	assert.True(t, CanTransition(StateProcessing, StateFailed))

	assert.False(t, CanTransition(StateProcessing, StateUploading))
	assert.False(t, CanTransition(StateReady, StateProcessing))
	assert.False(t, CanTransition(StateReady, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateReady))
	assert.False(t, CanTransition(StateReady, StateReady))

	assert.True(t, StateReady.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateProcessing.Terminal())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("video")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, k)

	_, err = ParseKind("audio")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "events/ev1/m1.jpg", OriginalKey("ev1", "m1", ".jpg"))
	assert.Equal(t, "events/ev1/m1", OriginalKey("ev1", "m1", ""))
	assert.Equal(t, "events/ev1/preview_m1.mp4", PreviewKey("ev1", "m1"))
}
