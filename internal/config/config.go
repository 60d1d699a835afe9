package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine-wide configuration, loaded once at startup.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Pool      PoolConfig      `yaml:"pool"`
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// EngineConfig bounds the orchestrator's concurrency and run-level timeouts.
type EngineConfig struct {
	// Workers is the fixed number of session-execution goroutines.
	Workers int `yaml:"workers"`
	// QueueSize is the admission queue capacity. Submissions beyond it are
	// rejected immediately.
	QueueSize int `yaml:"queue_size"`
	// SessionTimeout is the optional ceiling on total run time. Zero
	// disables it.
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// InteractionTimeout is the default wait for a human response when the
	// request itself does not carry one.
	InteractionTimeout time.Duration `yaml:"interaction_timeout"`
}

// PoolConfig bounds each per-target session pool.
type PoolConfig struct {
	MaxSize       int           `yaml:"max_size"`
	MaxIdle       int           `yaml:"max_idle"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	BorrowTimeout time.Duration `yaml:"borrow_timeout"`
	EvictInterval time.Duration `yaml:"evict_interval"`
	TestOnBorrow  bool          `yaml:"test_on_borrow"`
}

// RetryConfig shapes the retry-with-backoff policy around remote operations.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// BreakerConfig shapes the per-target circuit breaker.
type BreakerConfig struct {
	WindowSize           int           `yaml:"window_size"`
	MinimumCalls         int           `yaml:"minimum_calls"`
	FailureRateThreshold float64       `yaml:"failure_rate_threshold"`
	SlowRateThreshold    float64       `yaml:"slow_rate_threshold"`
	SlowCallThreshold    time.Duration `yaml:"slow_call_threshold"`
	WaitDuration         time.Duration `yaml:"wait_duration"`
	HalfOpenMaxCalls     int           `yaml:"half_open_max_calls"`
}

// SchedulerConfig controls recurring workflow submission.
type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Workers:            10,
			QueueSize:          50,
			InteractionTimeout: 5 * time.Minute,
		},
		Pool: PoolConfig{
			MaxSize:       4,
			MaxIdle:       2,
			IdleTimeout:   10 * time.Minute,
			BorrowTimeout: 30 * time.Second,
			EvictInterval: time.Minute,
			TestOnBorrow:  true,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerConfig{
			WindowSize:           10,
			MinimumCalls:         5,
			FailureRateThreshold: 0.5,
			SlowRateThreshold:    0.8,
			SlowCallThreshold:    20 * time.Second,
			WaitDuration:         30 * time.Second,
			HalfOpenMaxCalls:     2,
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			TickInterval: time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.QueueSize < 0 {
		return fmt.Errorf("engine.queue_size must not be negative, got %d", c.Engine.QueueSize)
	}
	if c.Pool.MaxSize <= 0 {
		return fmt.Errorf("pool.max_size must be positive, got %d", c.Pool.MaxSize)
	}
	if c.Pool.MaxIdle > c.Pool.MaxSize {
		return fmt.Errorf("pool.max_idle %d exceeds pool.max_size %d", c.Pool.MaxIdle, c.Pool.MaxSize)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Breaker.WindowSize <= 0 {
		return fmt.Errorf("breaker.window_size must be positive, got %d", c.Breaker.WindowSize)
	}
	if c.Breaker.MinimumCalls > c.Breaker.WindowSize {
		return fmt.Errorf("breaker.minimum_calls %d exceeds breaker.window_size %d",
			c.Breaker.MinimumCalls, c.Breaker.WindowSize)
	}
	if c.Breaker.FailureRateThreshold <= 0 || c.Breaker.FailureRateThreshold > 1 {
		return fmt.Errorf("breaker.failure_rate_threshold must be in (0,1], got %v", c.Breaker.FailureRateThreshold)
	}
	if c.Breaker.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("breaker.half_open_max_calls must be positive, got %d", c.Breaker.HalfOpenMaxCalls)
	}
	return nil
}
