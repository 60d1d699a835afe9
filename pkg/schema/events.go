package schema

// Event kind constants for the session event stream.
const (
	EventSessionStarted   = "session_started"
	EventSessionCompleted = "session_completed"
	EventSessionFailed    = "session_failed"
	EventSessionCancelled = "session_cancelled"
	EventSessionPaused    = "session_paused"
	EventSessionResumed   = "session_resumed"
	EventSessionWaiting   = "session_waiting"

	EventStepStarted   = "step_started"
	EventStepCompleted = "step_completed"
	EventStepFailed    = "step_failed"
	EventStepSkipped   = "step_skipped"
	EventStepRetrying  = "step_retrying"

	EventInteractionRequested = "interaction_requested"
	EventInteractionResolved  = "interaction_resolved"
	EventConfirmationProposed = "confirmation_proposed"
	EventVariableSet          = "variable_set"

	EventCircuitOpen     = "circuit_open"
	EventCircuitHalfOpen = "circuit_half_open"
	EventCircuitClosed   = "circuit_closed"

	EventInfo     = "info"
	EventProgress = "progress"
	EventError    = "error"
)

// SessionStatus represents the lifecycle state of an execution session.
type SessionStatus string

const (
	SessionStatusPreparing      SessionStatus = "preparing"
	SessionStatusExecuting      SessionStatus = "executing"
	SessionStatusWaitingInput   SessionStatus = "waiting_input"
	SessionStatusWaitingConfirm SessionStatus = "waiting_confirm"
	SessionStatusPaused         SessionStatus = "paused"
	SessionStatusCompleted      SessionStatus = "completed"
	SessionStatusFailed         SessionStatus = "failed"
	SessionStatusCancelled      SessionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal session state.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusCancelled
}

// StepStatus represents the lifecycle state of a single workflow step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusWaiting   StepStatus = "waiting"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)
