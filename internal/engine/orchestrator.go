package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/internal/expressions"
	"github.com/provis-io/provis/internal/interaction"
	"github.com/provis-io/provis/internal/logging"
	"github.com/provis-io/provis/internal/remote"
	"github.com/provis-io/provis/internal/resilience"
	"github.com/provis-io/provis/internal/streaming"
	"github.com/provis-io/provis/internal/units"
	"github.com/provis-io/provis/internal/vars"
	"github.com/provis-io/provis/pkg/schema"
)

// DefaultTarget is the key of the submission target used by steps that do
// not name one.
const DefaultTarget = ""

// Deps are the explicitly constructed collaborators an Orchestrator owns a
// reference to. No process-wide singletons.
type Deps struct {
	Pool       *remote.Pool
	Caller     *resilience.Caller
	Registry   *units.Registry
	Hub        streaming.Hub
	Controller *interaction.Controller
	CEL        *expressions.CELEngine
	Mapper     *expressions.Mapper
	Logger     *slog.Logger
}

// Orchestrator drives workflow sessions through their step sequence on a
// bounded worker pool.
type Orchestrator struct {
	cfg        config.EngineConfig
	pool       *remote.Pool
	caller     *resilience.Caller
	registry   *units.Registry
	hub        streaming.Hub
	controller *interaction.Controller
	cel        *expressions.CELEngine
	mapper     *expressions.Mapper
	sessionFSM *SessionFSM
	stepFSM    *StepFSM
	workers    *WorkerPool
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*ExecutionSession
}

// New creates an Orchestrator and starts its worker pool.
func New(cfg config.EngineConfig, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		pool:       deps.Pool,
		caller:     deps.Caller,
		registry:   deps.Registry,
		hub:        deps.Hub,
		controller: deps.Controller,
		cel:        deps.CEL,
		mapper:     deps.Mapper,
		sessionFSM: NewSessionFSM(deps.Hub),
		stepFSM:    NewStepFSM(deps.Hub),
		workers:    NewWorkerPool(cfg.Workers, cfg.QueueSize),
		logger:     logger,
		sessions:   make(map[string]*ExecutionSession),
	}
}

// Shutdown stops accepting submissions and waits for running sessions.
func (o *Orchestrator) Shutdown() {
	o.workers.Shutdown()
}

// StartWorkflow validates the definition, creates a session and submits it
// for execution. It fails fast on unknown unit ids, malformed conditions,
// unresolvable targets and a full admission queue; no session starts in any
// of those cases.
func (o *Orchestrator) StartWorkflow(def *schema.WorkflowDefinition, initialVars map[string]any, targets map[string]remote.Target) (string, error) {
	if def == nil || len(def.Steps) == 0 {
		return "", schema.NewError(schema.ErrCodeValidation, "workflow has no steps")
	}
	if _, err := parseTimeout(def.Timeout); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q has invalid timeout %q", def.Name, def.Timeout)
	}

	seen := make(map[string]struct{}, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.ID == "" {
			step.ID = stepID(i)
		}
		if _, dup := seen[step.ID]; dup {
			return "", schema.NewErrorf(schema.ErrCodeValidation, "duplicate step id %q", step.ID)
		}
		seen[step.ID] = struct{}{}

		unit, err := o.registry.Lookup(step.UnitID)
		if err != nil {
			return "", err
		}
		if step.Condition != "" {
			if err := o.cel.Check(step.Condition); err != nil {
				return "", err
			}
		}
		if _, err := parseTimeout(step.Timeout); err != nil {
			return "", schema.NewErrorf(schema.ErrCodeValidation,
				"step %q has invalid timeout %q", step.ID, step.Timeout).WithStep(step.ID)
		}
		if unit.Kind != units.KindInteractive {
			target, ok := targets[step.Target]
			if !ok {
				return "", schema.NewErrorf(schema.ErrCodeValidation,
					"step %q names unknown target %q", step.ID, step.Target).WithStep(step.ID)
			}
			if err := target.Validate(); err != nil {
				return "", err
			}
		}
	}

	s := newSession(uuid.NewString(), def, targets)
	if len(initialVars) > 0 {
		s.Vars.SetAll(initialVars, vars.TierConfig)
	}

	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()

	if err := o.workers.Submit(func(ctx context.Context) { o.run(ctx, s) }); err != nil {
		o.mu.Lock()
		delete(o.sessions, s.ID)
		o.mu.Unlock()
		return "", err
	}

	return s.ID, nil
}

// Session returns a running or finished session by id.
func (o *Orchestrator) Session(id string) (*ExecutionSession, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s, ok := o.sessions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown session %q", id)
	}
	return s, nil
}

// Evict drops a finished session from the registry so long-running
// processes do not accumulate terminal sessions. Evicting a session that is
// still running is a conflict.
func (o *Orchestrator) Evict(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown session %q", id)
	}
	if !s.Status().Terminal() {
		return schema.NewErrorf(schema.ErrCodeConflict, "session %q is still %s", id, s.Status())
	}
	delete(o.sessions, id)
	return nil
}

// Cancel requests a best-effort interruptible cancellation of a session.
// A parked or mid-execute step unwinds, releases its lease and the session
// transitions to CANCELLED.
func (o *Orchestrator) Cancel(id string) error {
	s, err := o.Session(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cancelRequested = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// A paused session is parked on its resume gate, not the context.
	s.requestResume()
	return nil
}

// Pause holds a session before its next step. In-flight step work finishes
// first.
func (o *Orchestrator) Pause(id string) error {
	s, err := o.Session(id)
	if err != nil {
		return err
	}
	s.requestPause()
	return nil
}

// Resume releases a paused session.
func (o *Orchestrator) Resume(id string) error {
	s, err := o.Session(id)
	if err != nil {
		return err
	}
	s.requestResume()
	return nil
}

// SubmitInteractionResponse routes a human response to the step parked on
// the correlation id.
func (o *Orchestrator) SubmitInteractionResponse(correlationID string, payload map[string]any) error {
	return o.controller.Respond(correlationID, payload)
}

// run executes a session start to finish on a worker goroutine.
func (o *Orchestrator) run(ctx context.Context, s *ExecutionSession) {
	sessionTimeout := o.cfg.SessionTimeout
	if d, err := parseTimeout(s.Definition.Timeout); err == nil && d > 0 {
		sessionTimeout = d
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if sessionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, sessionTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	alreadyCancelled := s.cancelRequested
	s.mu.Unlock()

	runCtx = logging.WithSessionID(runCtx, s.ID)
	log := o.logger.With("session_id", s.ID, "workflow", s.Definition.Name)

	if alreadyCancelled {
		_ = o.sessionFSM.Transition(runCtx, s, schema.SessionStatusCancelled, nil)
		return
	}

	if err := o.sessionFSM.Transition(runCtx, s, schema.SessionStatusExecuting,
		map[string]any{"workflow": s.Definition.Name, "steps": len(s.Definition.Steps)}); err != nil {
		log.Error("session start rejected", "error", err)
		return
	}
	log.Info("session started", "steps", len(s.Definition.Steps))

	for i := range s.Definition.Steps {
		step := &s.Definition.Steps[i]

		if halted := o.waitIfPaused(runCtx, s); halted {
			return
		}
		if err := runCtx.Err(); err != nil {
			o.finishInterrupted(runCtx, s, err)
			return
		}

		outcome := o.executeStep(runCtx, s, step)

		switch outcome.Kind {
		case OutcomeSkipped:
			s.record(StepResult{StepID: step.ID, UnitID: step.UnitID, Status: schema.StepStatusSkipped})

		case OutcomeSuccess:
			r := StepResult{StepID: step.ID, UnitID: step.UnitID, Status: schema.StepStatusCompleted}
			if outcome.Result != nil {
				r.ExitCode = outcome.Result.ExitCode
				r.Output = outcome.Result.Stdout
				r.Duration = outcome.Result.Duration
			}
			s.record(r)
			o.mergeVars(runCtx, s, step, outcome)

		case OutcomeFailed:
			r := StepResult{StepID: step.ID, UnitID: step.UnitID, Status: schema.StepStatusFailed}
			if outcome.Err != nil {
				r.Error = outcome.Err.Error()
			}
			if outcome.Result != nil {
				r.ExitCode = outcome.Result.ExitCode
				r.Output = outcome.Result.Stdout
			}
			s.record(r)

			if errors.Is(outcome.Err, context.Canceled) || isCode(outcome.Err, schema.ErrCodeCancelled) {
				o.finishInterrupted(runCtx, s, context.Canceled)
				return
			}

			if step.Policy() == schema.FailurePolicyRequired {
				log.Warn("required step failed, stopping session", "step_id", step.ID, "error", outcome.Err)
				_ = o.sessionFSM.Transition(runCtx, s, schema.SessionStatusFailed, o.summary(s))
				return
			}
			log.Info("optional step failed, continuing", "step_id", step.ID, "error", outcome.Err)
		}
	}

	_ = o.sessionFSM.Transition(runCtx, s, schema.SessionStatusCompleted, o.summary(s))
	log.Info("session completed")
}

// waitIfPaused parks the session between steps while a pause is requested.
// Returns true if the session was cancelled while held.
func (o *Orchestrator) waitIfPaused(ctx context.Context, s *ExecutionSession) bool {
	gate := s.pauseGate()
	if gate == nil {
		return false
	}

	_ = o.sessionFSM.Transition(ctx, s, schema.SessionStatusPaused, nil)
	select {
	case <-gate:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		o.finishInterrupted(ctx, s, err)
		return true
	}
	s.mu.Lock()
	cancelled := s.cancelRequested
	s.mu.Unlock()
	if cancelled {
		o.finishInterrupted(ctx, s, context.Canceled)
		return true
	}
	_ = o.sessionFSM.Transition(ctx, s, schema.SessionStatusExecuting, nil)
	return false
}

// finishInterrupted transitions the session to its interrupted terminal
// state: FAILED on session-timeout, CANCELLED otherwise.
func (o *Orchestrator) finishInterrupted(ctx context.Context, s *ExecutionSession, cause error) {
	// Transitions still need a live context for event publication.
	base := context.WithoutCancel(ctx)
	if errors.Is(cause, context.DeadlineExceeded) {
		_ = o.sessionFSM.Transition(base, s, schema.SessionStatusFailed, o.summary(s))
		return
	}
	_ = o.sessionFSM.Transition(base, s, schema.SessionStatusCancelled, o.summary(s))
}

// mergeVars applies a successful step's produced variables and emits
// variable_set events.
func (o *Orchestrator) mergeVars(ctx context.Context, s *ExecutionSession, step *schema.WorkflowStep, outcome StepOutcome) {
	if len(outcome.Vars) == 0 {
		return
	}
	s.Vars.SetAll(outcome.Vars, outcome.Tier)
	for name := range outcome.Vars {
		_ = o.hub.Publish(ctx, streaming.Event{
			SessionID: s.ID,
			StepID:    step.ID,
			Kind:      schema.EventVariableSet,
			Payload:   map[string]any{"name": name, "tier": outcome.Tier.String()},
		})
	}
}

// summary builds the final session event payload: overall result plus the
// skipped and failed step lists. Partial failure is never silent.
func (o *Orchestrator) summary(s *ExecutionSession) map[string]any {
	var skippedSteps, failedSteps []string
	for _, r := range s.Results() {
		switch r.Status {
		case schema.StepStatusSkipped:
			skippedSteps = append(skippedSteps, r.StepID)
		case schema.StepStatusFailed:
			failedSteps = append(failedSteps, r.StepID)
		}
	}
	return map[string]any{
		"steps_total":   len(s.Definition.Steps),
		"steps_skipped": skippedSteps,
		"steps_failed":  failedSteps,
	}
}

// executeStep runs the per-step algorithm and returns its tagged outcome.
func (o *Orchestrator) executeStep(ctx context.Context, s *ExecutionSession, step *schema.WorkflowStep) StepOutcome {
	ctx = logging.WithStepID(ctx, step.ID)

	// 1. Condition gate. A false or unevaluable condition skips the step
	// before any resource is touched.
	if !expressions.EvaluateCondition(ctx, o.cel, step.Condition, s.Vars.Snapshot()) {
		_ = o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusPending, schema.StepStatusSkipped,
			map[string]any{"condition": step.Condition})
		return skipped()
	}

	unit, err := o.registry.Lookup(step.UnitID)
	if err != nil {
		return o.failStep(ctx, s, step, schema.StepStatusPending, err)
	}

	if err := o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusPending, schema.StepStatusRunning,
		map[string]any{"unit": unit.ID}); err != nil {
		return failed(err)
	}

	// 2. Required variables.
	for _, name := range unit.RequiredVariables {
		if _, ok := s.Vars.Resolve(name); !ok {
			return o.failStep(ctx, s, step, schema.StepStatusRunning,
				schema.NewErrorf(schema.ErrCodeDependencyUnmet,
					"unit %q requires variable %q, which is undefined", unit.ID, name).WithStep(step.ID))
		}
	}

	// 3. Parameter contract.
	params, err := o.stepParams(s, step, unit)
	if err != nil {
		return o.failStep(ctx, s, step, schema.StepStatusRunning, err)
	}

	// 4–5. Dispatch by source kind.
	if unit.Kind == units.KindInteractive {
		return o.runInteractive(ctx, s, step, unit)
	}
	return o.runRemote(ctx, s, step, unit, params)
}

// stepParams assembles a step's effective unit parameters: explicit step
// values (with ${name} interpolation) first, then variable-context values by
// parameter name, then declared defaults via validation.
func (o *Orchestrator) stepParams(s *ExecutionSession, step *schema.WorkflowStep, unit *units.ScriptUnit) (map[string]any, error) {
	raw := make(map[string]any, len(step.Parameters))
	for k, v := range step.Parameters {
		raw[k] = v
	}
	raw = vars.InterpolateMap(raw, s.Vars)

	for _, p := range unit.Parameters {
		if _, ok := raw[p.Name]; ok {
			continue
		}
		if v, ok := s.Vars.Resolve(p.Name); ok {
			raw[p.Name] = v
		}
	}

	params, err := units.ValidateParams(unit, raw)
	if err != nil {
		return nil, err
	}
	return params, nil
}

// runRemote executes a static/configurable/user unit's command on the
// step's target under the resilience caller.
func (o *Orchestrator) runRemote(ctx context.Context, s *ExecutionSession, step *schema.WorkflowStep, unit *units.ScriptUnit, params map[string]any) StepOutcome {
	target, ok := s.target(step.Target)
	if !ok {
		return o.failStep(ctx, s, step, schema.StepStatusRunning,
			schema.NewErrorf(schema.ErrCodeValidation, "unknown target %q", step.Target).WithStep(step.ID))
	}
	ctx = logging.WithTarget(ctx, target.Key())

	command := vars.Interpolate(unit.RenderCommand(params), s.Vars)

	execTimeout := target.DefaultExecTimeout()
	if d, err := parseTimeout(step.Timeout); err == nil && d > 0 {
		execTimeout = d
	}

	attempt := 0
	result, err := resilience.Call(ctx, o.caller, target.Key(), func(ctx context.Context) (*remote.ExecResult, error) {
		if attempt > 0 {
			_ = o.hub.Publish(ctx, streaming.Event{
				SessionID: s.ID,
				StepID:    step.ID,
				Kind:      schema.EventStepRetrying,
				Payload:   map[string]any{"attempt": attempt + 1},
			})
		}
		attempt++

		lease, err := o.pool.Acquire(ctx, target)
		if err != nil {
			return nil, err
		}

		execCtx, cancel := context.WithTimeout(ctx, execTimeout)
		defer cancel()

		res, err := lease.Session().Run(execCtx, command)
		if err != nil {
			// A connection-class failure poisons the session; anything
			// else leaves it reusable.
			if isCode(err, schema.ErrCodeConnection) || isCode(err, schema.ErrCodeTimeout) {
				lease.Invalidate()
			} else {
				lease.Release()
			}
			return nil, err
		}
		lease.Release()
		return res, nil
	})
	if err != nil {
		return o.failStep(ctx, s, step, schema.StepStatusRunning, err)
	}

	if !result.Ok() {
		execErr := schema.NewErrorf(schema.ErrCodeUnitExecution,
			"unit %q exited %d: %s", unit.ID, result.ExitCode, strings.TrimSpace(result.Stderr)).
			WithStep(step.ID).
			WithDetails(map[string]any{"exit_code": result.ExitCode})
		out := o.failStep(ctx, s, step, schema.StepStatusRunning, execErr)
		out.Result = result
		return out
	}

	produced := parseProduced(unit, result)

	if len(step.VariableMapping) > 0 {
		doc := resultDocument(result, produced)
		mapped, err := o.mapper.ResolveAll(ctx, step.VariableMapping, doc)
		if err != nil {
			return o.failStep(ctx, s, step, schema.StepStatusRunning, err)
		}
		for k, v := range mapped {
			produced = ensureMap(produced)
			produced[k] = v
		}
	}

	_ = o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusRunning, schema.StepStatusCompleted,
		map[string]any{"exit_code": result.ExitCode, "duration_ms": result.Duration.Milliseconds()})
	return succeeded(produced, vars.TierRuntime, result)
}

// runInteractive parks the step on the interaction controller until a human
// responds or the timeout fires. The response payload supplies new variable
// values; an explicit accepted=false is a declined step.
func (o *Orchestrator) runInteractive(ctx context.Context, s *ExecutionSession, step *schema.WorkflowStep, unit *units.ScriptUnit) StepOutcome {
	timeout := o.cfg.InteractionTimeout
	if d, err := parseTimeout(step.Timeout); err == nil && d > 0 {
		timeout = d
	}

	req := &schema.InteractionRequest{
		CorrelationID: uuid.NewString(),
		SessionID:     s.ID,
		StepID:        step.ID,
		Type:          unit.InteractionType,
		Prompt:        vars.Interpolate(unit.Prompt, s.Vars),
		Options:       interactionOptions(unit.Options),
		Required:      step.Policy() == schema.FailurePolicyRequired,
		Timeout:       timeout,
	}

	confirmVar := ""
	if unit.Suggested != nil && len(unit.ProducedVariables) == 1 {
		confirmVar = unit.ProducedVariables[0]
		s.Vars.ProposeConfirmation(confirmVar, unit.Suggested, req.Prompt, step.Condition)
		_ = o.hub.Publish(ctx, streaming.Event{
			SessionID: s.ID,
			StepID:    step.ID,
			Kind:      schema.EventConfirmationProposed,
			Payload:   map[string]any{"variable": confirmVar, "suggested": unit.Suggested},
		})
	}

	_ = o.sessionFSM.Transition(ctx, s, unit.InteractionType.WaitingStatus(), req)
	_ = o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusRunning, schema.StepStatusWaiting, req)

	resp, err := o.controller.Request(ctx, req)

	if !s.Status().Terminal() {
		_ = o.sessionFSM.Transition(ctx, s, schema.SessionStatusExecuting, nil)
	}

	if err != nil {
		return o.failStep(ctx, s, step, schema.StepStatusWaiting, err)
	}

	_ = o.hub.Publish(ctx, streaming.Event{
		SessionID: s.ID,
		StepID:    step.ID,
		Kind:      schema.EventInteractionResolved,
		Payload:   map[string]any{"correlation_id": req.CorrelationID},
	})

	// Loosely typed transports deliver accepted as a string; decode it the
	// same way unit parameters are decoded.
	var reply struct {
		Accepted *bool `json:"accepted"`
	}
	if err := units.DecodeParams(resp.Payload, &reply); err != nil {
		return o.failStep(ctx, s, step, schema.StepStatusWaiting, err)
	}
	if reply.Accepted != nil && !*reply.Accepted {
		return o.failStep(ctx, s, step, schema.StepStatusWaiting,
			schema.NewErrorf(schema.ErrCodeUnitExecution, "unit %q declined by responder", unit.ID).WithStep(step.ID))
	}

	produced := make(map[string]any)
	for k, v := range resp.Payload {
		if k == "accepted" {
			continue
		}
		produced[k] = v
	}
	if len(produced) == 0 && len(unit.ProducedVariables) == 1 && reply.Accepted != nil {
		produced[unit.ProducedVariables[0]] = *reply.Accepted
	}

	if confirmVar != "" {
		if v, ok := produced[confirmVar]; ok {
			_ = s.Vars.Confirm(confirmVar, v)
			delete(produced, confirmVar)
		}
	}

	_ = o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusWaiting, schema.StepStatusCompleted,
		map[string]any{"correlation_id": req.CorrelationID})
	return succeeded(produced, vars.TierInteractive, nil)
}

// failStep transitions the step to FAILED, emits the failure event and
// wraps the error into a failed outcome.
func (o *Orchestrator) failStep(ctx context.Context, s *ExecutionSession, step *schema.WorkflowStep, from schema.StepStatus, err error) StepOutcome {
	payload := map[string]any{"error": err.Error()}
	var pe *schema.ProvisError
	if errors.As(err, &pe) {
		payload["code"] = pe.Code
	}

	if from == schema.StepStatusPending {
		// Record RUNNING first so the failure leaves a coherent trail.
		_ = o.stepFSM.Transition(ctx, s.ID, step.ID, schema.StepStatusPending, schema.StepStatusRunning, nil)
		from = schema.StepStatusRunning
	}
	_ = o.stepFSM.Transition(ctx, s.ID, step.ID, from, schema.StepStatusFailed, payload)
	return failed(err)
}

func parseProduced(u *units.ScriptUnit, res *remote.ExecResult) map[string]any {
	if len(u.ProducedVariables) == 0 {
		return nil
	}

	kv := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
			kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	out := make(map[string]any)
	for _, name := range u.ProducedVariables {
		if v, ok := kv[name]; ok {
			out[name] = v
		}
	}
	// A single declared output with no key=value lines takes the whole
	// trimmed stdout.
	if len(out) == 0 && len(u.ProducedVariables) == 1 {
		out[u.ProducedVariables[0]] = strings.TrimSpace(res.Stdout)
	}
	return out
}

// resultDocument is the step result as seen by variable-mapping
// expressions.
func resultDocument(res *remote.ExecResult, produced map[string]any) map[string]any {
	doc := map[string]any{
		"stdout":      res.Stdout,
		"stderr":      res.Stderr,
		"exitCode":    res.ExitCode,
		"duration_ms": res.Duration.Milliseconds(),
	}
	for k, v := range produced {
		doc[k] = v
	}
	return doc
}

func interactionOptions(opts []string) []schema.InteractionOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]schema.InteractionOption, len(opts))
	for i, o := range opts {
		out[i] = schema.InteractionOption{ID: o, Label: o}
	}
	return out
}

func ensureMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return m
}

func isCode(err error, code string) bool {
	var pe *schema.ProvisError
	return errors.As(err, &pe) && pe.Code == code
}

func stepID(i int) string {
	return fmt.Sprintf("step-%d", i+1)
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
