package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeConnection         = "CONNECTION_ERROR"
	ErrCodePoolExhausted      = "POOL_EXHAUSTED"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDependencyUnmet    = "DEPENDENCY_UNMET"
	ErrCodeUnitExecution      = "UNIT_EXECUTION_ERROR"
	ErrCodeInteractionTimeout = "INTERACTION_TIMEOUT"
	ErrCodeUnitNotFound       = "UNIT_NOT_FOUND"
	ErrCodeConversion         = "CONVERSION_ERROR"
	ErrCodeTimeout            = "TIMEOUT_ERROR"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeQueueFull          = "QUEUE_FULL"
)

// ProvisError is the structured error type for all engine operations.
type ProvisError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ProvisError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ProvisError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the error class is transient. Circuit-open
// is not retryable: the breaker already judged the target unhealthy.
func (e *ProvisError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeConnection, ErrCodePoolExhausted, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// NewError creates a new ProvisError.
func NewError(code, message string) *ProvisError {
	return &ProvisError{Code: code, Message: message}
}

// NewErrorf creates a new ProvisError with a formatted message.
func NewErrorf(code, format string, args ...any) *ProvisError {
	return &ProvisError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *ProvisError) WithStep(stepID string) *ProvisError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *ProvisError) WithCause(err error) *ProvisError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ProvisError) WithDetails(details map[string]any) *ProvisError {
	e.Details = details
	return e
}
