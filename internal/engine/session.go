package engine

import (
	"context"
	"sync"
	"time"

	"github.com/provis-io/provis/internal/remote"
	"github.com/provis-io/provis/internal/vars"
	"github.com/provis-io/provis/pkg/schema"
)

// StepResult records the terminal state of one step within a session.
type StepResult struct {
	StepID   string            `json:"step_id"`
	UnitID   string            `json:"unit_id"`
	Status   schema.StepStatus `json:"status"`
	ExitCode int               `json:"exit_code,omitempty"`
	Output   string            `json:"output,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
}

// ExecutionSession is one in-flight or completed run of a workflow. Variable
// and result mutation is confined to the goroutine running the session; the
// snapshot accessors are safe from any goroutine.
type ExecutionSession struct {
	ID         string
	Definition *schema.WorkflowDefinition
	Vars       *vars.Context

	targets map[string]remote.Target

	mu              sync.Mutex
	status          schema.SessionStatus
	results         []StepResult
	cancel          context.CancelFunc
	cancelRequested bool
	paused          bool
	resume          chan struct{}
}

func newSession(id string, def *schema.WorkflowDefinition, targets map[string]remote.Target) *ExecutionSession {
	return &ExecutionSession{
		ID:         id,
		Definition: def,
		Vars:       vars.New(),
		targets:    targets,
		status:     schema.SessionStatusPreparing,
	}
}

// Status returns the session's current lifecycle state.
func (s *ExecutionSession) Status() schema.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ExecutionSession) setStatus(st schema.SessionStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Results returns a copy of the recorded step results.
func (s *ExecutionSession) Results() []StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *ExecutionSession) record(r StepResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// target resolves a step's target name against the submission's target set.
func (s *ExecutionSession) target(name string) (remote.Target, bool) {
	t, ok := s.targets[name]
	return t, ok
}

// requestPause asks the session to hold before its next step.
func (s *ExecutionSession) requestPause() {
	s.mu.Lock()
	if !s.paused && !s.status.Terminal() {
		s.paused = true
		s.resume = make(chan struct{})
	}
	s.mu.Unlock()
}

// requestResume releases a held session.
func (s *ExecutionSession) requestResume() {
	s.mu.Lock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
	s.mu.Unlock()
}

// pauseGate returns the channel to wait on if a pause was requested, or nil.
func (s *ExecutionSession) pauseGate() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return nil
	}
	return s.resume
}
