package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/provis-io/provis/internal/remote"
	"github.com/provis-io/provis/pkg/schema"
)

// WorkflowRunner is the interface the scheduler submits through. Satisfied
// by the engine orchestrator.
type WorkflowRunner interface {
	StartWorkflow(def *schema.WorkflowDefinition, initialVars map[string]any, targets map[string]remote.Target) (string, error)
}

// Job is one recurring workflow submission.
type Job struct {
	ID             string
	CronExpression string
	Definition     *schema.WorkflowDefinition
	InitialVars    map[string]any
	Targets        map[string]remote.Target
	Enabled        bool

	LastRunAt     *time.Time
	NextRunAt     *time.Time // nil means due immediately
	LastRunStatus string
	LastSessionID string
}

// Scheduler ticks over an in-memory job table and submits due jobs.
type Scheduler struct {
	runner       WorkflowRunner
	parser       cron.Parser
	logger       *slog.Logger
	tickInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	jobsMu sync.Mutex
	jobs   map[string]*Job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently submitting (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner WorkflowRunner, tickInterval time.Duration, logger *slog.Logger) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:       runner,
		parser:       cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:       logger,
		tickInterval: tickInterval,
		jobs:         make(map[string]*Job),
		inflight:     make(map[string]struct{}),
	}
}

// Add registers a job. A job with no NextRunAt runs on the first tick.
func (s *Scheduler) Add(job *Job) error {
	if job == nil || job.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "scheduled job has no id")
	}
	if job.Definition == nil || len(job.Definition.Steps) == 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "scheduled job %q has no workflow steps", job.ID)
	}
	if _, err := s.parser.Parse(job.CronExpression); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"scheduled job %q has invalid cron expression %q", job.ID, job.CronExpression).WithCause(err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled job %q already registered", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Remove deletes a job from the table.
func (s *Scheduler) Remove(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown scheduled job %q", id)
	}
	delete(s.jobs, id)
	return nil
}

// SetEnabled toggles a job without losing its schedule position.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown scheduled job %q", id)
	}
	job.Enabled = enabled
	return nil
}

// Jobs returns a snapshot of the job table.
func (s *Scheduler) Jobs() []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", "tick_interval", s.tickInterval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick submits every enabled job that is due.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.due(now) {
		if !s.tryAcquire(job.ID) {
			continue // already submitting (dedup)
		}
		if err := s.runJob(job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseJob(job.ID)

		if err := ctx.Err(); err != nil {
			return
		}
	}
}

// due returns the enabled jobs whose next run is unset or not in the future.
func (s *Scheduler) due(now time.Time) []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	var out []*Job
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if job.NextRunAt == nil || !job.NextRunAt.After(now) {
			out = append(out, job)
		}
	}
	return out
}

// runJob submits a job's workflow and advances its schedule. The workflow
// itself runs asynchronously; the recorded status reflects the submission.
func (s *Scheduler) runJob(job *Job, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow", job.Definition.Name),
	)

	sessionID, err := s.runner.StartWorkflow(job.Definition, job.InitialVars, job.Targets)
	status := "submitted"
	if err != nil {
		status = "error"
		s.logger.Error("scheduled job submission failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.updateJobStatus(job, now, status, sessionID)
}

func (s *Scheduler) updateJobStatus(job *Job, now time.Time, status, sessionID string) error {
	nextRun, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job.LastRunAt = &now
	job.NextRunAt = &nextRun
	job.LastRunStatus = status
	job.LastSessionID = sessionID
	return nil
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
