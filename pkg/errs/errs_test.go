package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	err := NotFound("guarantee not found")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)

	_, ok = KindOf(errors.New("plain error"))
	assert.False(t, ok)

	_, ok = KindOf(nil)
	assert.False(t, ok)
}

// TestKindOf_SurvivesWrapping checks that the kind is recovered through
// fmt.Errorf %w chains, the way services wrap storage failures.
func TestKindOf_SurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("failed to claim guarantee: %w", AlreadyUsed("the guarantee has already been claimed"))
	assert.True(t, Is(err, KindAlreadyUsed))
	assert.False(t, Is(err, KindValidation))
}

func TestWrap_HidesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Upstream("pricing provider unavailable", cause)

	assert.Equal(t, "pricing provider unavailable", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INSUFFICIENT_BALANCE", KindInsufficientBalance.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
