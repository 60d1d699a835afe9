package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/internal/engine"
	"github.com/provis-io/provis/internal/expressions"
	"github.com/provis-io/provis/internal/interaction"
	"github.com/provis-io/provis/internal/logging"
	"github.com/provis-io/provis/internal/remote"
	"github.com/provis-io/provis/internal/resilience"
	"github.com/provis-io/provis/internal/scheduler"
	"github.com/provis-io/provis/internal/streaming"
	"github.com/provis-io/provis/internal/units"
	"github.com/provis-io/provis/pkg/schema"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (defaults apply when empty)")
	workflowPath := flag.String("workflow", "", "workflow definition to run once; without it the engine idles for the scheduler")
	targetsPath := flag.String("targets", "", "YAML map of named connection targets")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if err := run(*configPath, *workflowPath, *targetsPath); err != nil {
		fmt.Fprintf(os.Stderr, "provis: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, workflowPath, targetsPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	pool := remote.NewPool(&remote.SSHFactory{}, cfg.Pool, logger)
	defer pool.Close()

	caller := resilience.NewCaller(
		resilience.NewBreakerRegistry(cfg.Breaker),
		resilience.PolicyFromConfig(cfg.Retry),
	)
	caller.OnRetry = func(key string, attempt int, err error) {
		logger.Warn("retrying remote call", "target", key, "attempt", attempt, "error", err)
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return fmt.Errorf("initialize condition engine: %w", err)
	}

	registry := units.NewRegistry()
	if err := registry.RegisterAll(units.Builtins()); err != nil {
		return fmt.Errorf("register built-in units: %w", err)
	}

	hub := streaming.NewMemoryHub()
	controller := interaction.NewController(cfg.Engine.InteractionTimeout)

	orch := engine.New(cfg.Engine, engine.Deps{
		Pool:       pool,
		Caller:     caller,
		Registry:   registry,
		Hub:        hub,
		Controller: controller,
		CEL:        cel,
		Mapper:     expressions.NewMapper(expressions.NewExprEngine(), expressions.NewGoJQEngine()),
		Logger:     logger,
	})
	defer orch.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(orch, cfg.Scheduler.TickInterval, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	}

	if workflowPath != "" {
		return runOnce(ctx, orch, registry, hub, workflowPath, targetsPath)
	}

	logger.Info("engine ready", "workers", cfg.Engine.Workers, "units", registry.Count())
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// runOnce submits one workflow definition, streams its events to stdout and
// exits with the session's final status.
func runOnce(ctx context.Context, orch *engine.Orchestrator, registry *units.Registry, hub streaming.Hub, workflowPath, targetsPath string) error {
	def, err := loadWorkflow(workflowPath)
	if err != nil {
		return err
	}
	targets, err := loadTargets(targetsPath)
	if err != nil {
		return err
	}

	lint := registry.LintWorkflow(def)
	for _, w := range lint.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Path, w.Message)
	}
	if err := lint.ToError(); err != nil {
		return err
	}

	events, unsubscribe, err := hub.Subscribe(ctx, streaming.Filter{})
	if err != nil {
		return err
	}
	defer unsubscribe()

	id, err := orch.StartWorkflow(def, nil, targets)
	if err != nil {
		return err
	}
	fmt.Printf("session %s started\n", id)
	defer func() { _ = orch.Evict(id) }()

	for {
		select {
		case <-ctx.Done():
			_ = orch.Cancel(id)
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed before session %s finished", id)
			}
			if e.SessionID != id {
				continue
			}
			printEvent(e)
			switch e.Kind {
			case schema.EventSessionCompleted:
				return nil
			case schema.EventSessionFailed, schema.EventSessionCancelled:
				return fmt.Errorf("session %s ended %s", id, strings.TrimPrefix(e.Kind, "session_"))
			}
		}
	}
}

func printEvent(e streaming.Event) {
	if e.StepID != "" {
		fmt.Printf("%s  %-24s step=%s\n", e.Timestamp.Format("15:04:05"), e.Kind, e.StepID)
		return
	}
	fmt.Printf("%s  %s\n", e.Timestamp.Format("15:04:05"), e.Kind)
}

func loadWorkflow(path string) (*schema.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	var def schema.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return &def, nil
}

// loadTargets reads the named target map. A "default" entry doubles as the
// target of steps that name none.
func loadTargets(path string) (map[string]remote.Target, error) {
	if path == "" {
		return nil, fmt.Errorf("a workflow run needs -targets")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets %s: %w", path, err)
	}
	targets := make(map[string]remote.Target)
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parse targets %s: %w", path, err)
	}
	if d, ok := targets["default"]; ok {
		targets[engine.DefaultTarget] = d
	}
	return targets, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(logging.NewCorrelationHandler(inner))
}
