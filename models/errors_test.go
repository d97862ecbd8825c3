package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorKindAndRetryable(t *testing.T) {
	err := NewFieldError(ErrValidation, "siteName is required", "siteName")

	assert.Equal(t, ErrValidation, KindOf(err))
	assert.True(t, IsKind(err, ErrValidation))
	assert.False(t, IsRetryable(err))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "siteName", appErr.Field)
}

func TestTimeoutIsRetryable(t *testing.T) {
	err := NewAppError(ErrTimeout, "storage deadline exceeded")

	assert.True(t, IsRetryable(err))
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("throughput exceeded")
	err := WrapError(ErrAuditWriteFailed, "entity was updated but its audit record could not be written", cause)

	assert.Equal(t, ErrAuditWriteFailed, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "audit record")
}

func TestKindOfWrappedDeep(t *testing.T) {
	inner := NewAppError(ErrConflict, "support was already requested")
	outer := fmt.Errorf("request support: %w", inner)

	assert.Equal(t, ErrConflict, KindOf(outer))
	assert.True(t, IsKind(outer, ErrConflict))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.False(t, IsRetryable(errors.New("boom")))
}
