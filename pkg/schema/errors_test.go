package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisError_Format(t *testing.T) {
	err := NewError(ErrCodeConnection, "dial tcp: refused")
	assert.Equal(t, "[CONNECTION_ERROR] dial tcp: refused", err.Error())

	err = err.WithStep("install-docker")
	assert.Equal(t, "[CONNECTION_ERROR] step install-docker: dial tcp: refused", err.Error())
}

func TestProvisError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := NewErrorf(ErrCodeConnection, "exec failed: %s", cause.Error()).WithCause(cause)
	require.ErrorIs(t, err, cause)
}

func TestProvisError_Retryable(t *testing.T) {
	retryable := []string{ErrCodeConnection, ErrCodePoolExhausted, ErrCodeTimeout}
	for _, code := range retryable {
		assert.True(t, NewError(code, "x").IsRetryable(), "expected %s retryable", code)
	}

	nonRetryable := []string{
		ErrCodeCircuitOpen,
		ErrCodeValidation,
		ErrCodeDependencyUnmet,
		ErrCodeUnitExecution,
		ErrCodeInteractionTimeout,
		ErrCodeUnitNotFound,
		ErrCodeConversion,
		ErrCodeCancelled,
	}
	for _, code := range nonRetryable {
		assert.False(t, NewError(code, "x").IsRetryable(), "expected %s non-retryable", code)
	}
}

func TestValidationResult_ToError(t *testing.T) {
	var r ValidationResult
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())

	r.AddError("steps[0].unit_id", ErrCodeUnitNotFound, "unit \"nope\" not registered")
	r.AddWarning("steps[1]", ErrCodeValidation, "empty condition")
	assert.False(t, r.Valid())

	err := r.ToError()
	require.Error(t, err)
	var pErr *ProvisError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrCodeValidation, pErr.Code)
	assert.Equal(t, 1, pErr.Details["error_count"])
}
