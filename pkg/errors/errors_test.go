package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := ErrStartup.WithError(cause)

	assert.True(t, Is(err, ErrStartup))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrTransport))
	assert.Equal(t, "listener failed to start: dial tcp: refused", err.Error())
}

func TestWithMessageDoesNotMutateShared(t *testing.T) {
	custom := ErrValidation.WithMessage("empty array")

	assert.Equal(t, "empty array", custom.Message)
	assert.Equal(t, "invalid message format", ErrValidation.Message)
	assert.Equal(t, "INVALID_FORMAT", custom.Code)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", ErrCapacityExceeded)

	assert.Equal(t, KindCapacity, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
}
