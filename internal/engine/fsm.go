package engine

import (
	"context"

	"github.com/provis-io/provis/internal/streaming"
	"github.com/provis-io/provis/pkg/schema"
)

// ValidSessionTransitions defines the allowed lifecycle transitions for
// execution sessions.
var ValidSessionTransitions = map[schema.SessionStatus][]schema.SessionStatus{
	schema.SessionStatusPreparing: {
		schema.SessionStatusExecuting, schema.SessionStatusCancelled, schema.SessionStatusFailed,
	},
	schema.SessionStatusExecuting: {
		schema.SessionStatusWaitingInput, schema.SessionStatusWaitingConfirm,
		schema.SessionStatusPaused, schema.SessionStatusCompleted,
		schema.SessionStatusFailed, schema.SessionStatusCancelled,
	},
	schema.SessionStatusWaitingInput: {
		schema.SessionStatusExecuting, schema.SessionStatusFailed, schema.SessionStatusCancelled,
	},
	schema.SessionStatusWaitingConfirm: {
		schema.SessionStatusExecuting, schema.SessionStatusFailed, schema.SessionStatusCancelled,
	},
	schema.SessionStatusPaused: {
		schema.SessionStatusExecuting, schema.SessionStatusCancelled, schema.SessionStatusFailed,
	},
	schema.SessionStatusCompleted: {},
	schema.SessionStatusFailed:    {},
	schema.SessionStatusCancelled: {},
}

// ValidStepTransitions defines the allowed lifecycle transitions for steps.
var ValidStepTransitions = map[schema.StepStatus][]schema.StepStatus{
	schema.StepStatusPending: {schema.StepStatusRunning, schema.StepStatusSkipped},
	schema.StepStatusRunning: {
		schema.StepStatusWaiting, schema.StepStatusCompleted, schema.StepStatusFailed,
	},
	schema.StepStatusWaiting: {
		schema.StepStatusRunning, schema.StepStatusCompleted, schema.StepStatusFailed,
	},
	schema.StepStatusCompleted: {},
	schema.StepStatusFailed:    {},
	schema.StepStatusSkipped:   {},
}

// SessionFSM validates session transitions and emits the matching lifecycle
// event to the hub.
type SessionFSM struct {
	hub streaming.Hub
}

// NewSessionFSM creates a SessionFSM emitting through hub.
func NewSessionFSM(hub streaming.Hub) *SessionFSM {
	return &SessionFSM{hub: hub}
}

// Transition moves the session from its current status to the target,
// rejecting moves the table does not allow.
func (f *SessionFSM) Transition(ctx context.Context, s *ExecutionSession, to schema.SessionStatus, payload any) error {
	from := s.Status()
	if !allowed(ValidSessionTransitions[from], to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid session transition: %s -> %s", from, to).
			WithDetails(map[string]any{"session_id": s.ID})
	}

	s.setStatus(to)

	if kind := sessionEventKind(from, to); kind != "" {
		_ = f.hub.Publish(ctx, streaming.Event{
			SessionID: s.ID,
			Kind:      kind,
			Payload:   payload,
		})
	}
	return nil
}

func sessionEventKind(from, to schema.SessionStatus) string {
	switch to {
	case schema.SessionStatusExecuting:
		if from == schema.SessionStatusPreparing {
			return schema.EventSessionStarted
		}
		return schema.EventSessionResumed
	case schema.SessionStatusWaitingInput, schema.SessionStatusWaitingConfirm:
		return schema.EventSessionWaiting
	case schema.SessionStatusPaused:
		return schema.EventSessionPaused
	case schema.SessionStatusCompleted:
		return schema.EventSessionCompleted
	case schema.SessionStatusFailed:
		return schema.EventSessionFailed
	case schema.SessionStatusCancelled:
		return schema.EventSessionCancelled
	default:
		return ""
	}
}

// StepFSM validates step transitions and emits the matching lifecycle event.
type StepFSM struct {
	hub streaming.Hub
}

// NewStepFSM creates a StepFSM emitting through hub.
func NewStepFSM(hub streaming.Hub) *StepFSM {
	return &StepFSM{hub: hub}
}

// Transition validates a step state move and emits its event.
func (f *StepFSM) Transition(ctx context.Context, sessionID, stepID string, from, to schema.StepStatus, payload any) error {
	if !allowed(ValidStepTransitions[from], to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid step transition: %s -> %s", from, to).
			WithStep(stepID).
			WithDetails(map[string]any{"session_id": sessionID})
	}

	if kind := stepEventKind(to); kind != "" {
		_ = f.hub.Publish(ctx, streaming.Event{
			SessionID: sessionID,
			StepID:    stepID,
			Kind:      kind,
			Payload:   payload,
		})
	}
	return nil
}

func stepEventKind(to schema.StepStatus) string {
	switch to {
	case schema.StepStatusRunning:
		return schema.EventStepStarted
	case schema.StepStatusCompleted:
		return schema.EventStepCompleted
	case schema.StepStatusFailed:
		return schema.EventStepFailed
	case schema.StepStatusSkipped:
		return schema.EventStepSkipped
	case schema.StepStatusWaiting:
		return schema.EventInteractionRequested
	default:
		return ""
	}
}

func allowed[T comparable](list []T, v T) bool {
	for _, a := range list {
		if a == v {
			return true
		}
	}
	return false
}
