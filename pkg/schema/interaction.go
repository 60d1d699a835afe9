package schema

import "time"

// InteractionType enumerates the kinds of human input a step can request.
type InteractionType string

const (
	InteractionConfirmation InteractionType = "confirmation"
	InteractionYesNo        InteractionType = "yesno"
	InteractionText         InteractionType = "text"
	InteractionPassword     InteractionType = "password"
	InteractionForm         InteractionType = "form"
	InteractionSelect       InteractionType = "select"
	InteractionMultiSelect  InteractionType = "multiselect"
	InteractionFileUpload   InteractionType = "upload"
)

// InteractionOption is one selectable choice of a select/multiselect request.
type InteractionOption struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// InteractionField is one input field of a form request.
type InteractionField struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// InteractionRequest suspends an in-flight workflow step until a correlated
// response arrives or the timeout elapses.
type InteractionRequest struct {
	CorrelationID string              `json:"correlation_id"`
	SessionID     string              `json:"session_id"`
	StepID        string              `json:"step_id,omitempty"`
	Type          InteractionType     `json:"type"`
	Prompt        string              `json:"prompt"`
	Options       []InteractionOption `json:"options,omitempty"`
	Fields        []InteractionField  `json:"fields,omitempty"`
	Required      bool                `json:"required,omitempty"`
	Timeout       time.Duration       `json:"timeout,omitempty"`
}

// InteractionResponse resumes the step that issued the matching request.
// A response with no matching pending request is rejected.
type InteractionResponse struct {
	CorrelationID string         `json:"correlation_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
}

// WaitingStatus maps an interaction type to the session status it induces.
// Confirmation-style requests park the session in waiting_confirm; everything
// else is free-form input.
func (t InteractionType) WaitingStatus() SessionStatus {
	switch t {
	case InteractionConfirmation, InteractionYesNo:
		return SessionStatusWaitingConfirm
	default:
		return SessionStatusWaitingInput
	}
}
