package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/pkg/schema"
)

// Lease is a borrowed reference to a pooled session. The pool keeps
// exclusive ownership; a holder must Release or Invalidate exactly once,
// though doing either again is a harmless no-op.
type Lease struct {
	key string

	mu   sync.Mutex
	res  *puddle.Resource[Session]
	done bool
}

// Session returns the live session. Calling it after Release or Invalidate
// returns nil.
func (l *Lease) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return nil
	}
	return l.res.Value()
}

// TargetKey returns the pool key this lease was borrowed under.
func (l *Lease) TargetKey() string { return l.key }

// Release returns the session to the idle set.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.done = true
	l.res.Release()
}

// Invalidate destroys the session instead of returning it. Used when a
// failure indicates the underlying transport is broken.
func (l *Lease) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.done = true
	l.res.Destroy()
}

// Pool is the process-wide session pool, keyed by target identity. Each key
// owns an independent bounded puddle pool; all workflows touching the same
// target share it.
type Pool struct {
	factory Factory
	cfg     config.PoolConfig
	logger  *slog.Logger

	mu     sync.Mutex
	pools  map[string]*puddle.Pool[Session]
	closed bool
	done   chan struct{}
	reapWg sync.WaitGroup
}

// NewPool creates a Pool and starts its idle-eviction loop.
func NewPool(factory Factory, cfg config.PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		factory: factory,
		cfg:     cfg,
		logger:  logger,
		pools:   make(map[string]*puddle.Pool[Session]),
		done:    make(chan struct{}),
	}
	if cfg.EvictInterval > 0 {
		p.reapWg.Add(1)
		go p.reapLoop()
	}
	return p
}

// Acquire borrows a session for the target, creating one if the pool is
// under its maximum. At capacity it blocks up to the borrow timeout, then
// fails with a pool-exhausted error. With test-on-borrow enabled, an idle
// session that fails validation is destroyed and the acquire fails with a
// transient connection error so the resilience layer can retry with a
// fresh create.
func (p *Pool) Acquire(ctx context.Context, target Target) (*Lease, error) {
	tp, err := p.poolFor(target)
	if err != nil {
		return nil, err
	}

	borrowCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.BorrowTimeout > 0 {
		borrowCtx, cancel = context.WithTimeout(ctx, p.cfg.BorrowTimeout)
		defer cancel()
	}

	res, err := tp.Acquire(borrowCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, schema.NewErrorf(schema.ErrCodePoolExhausted,
				"pool for %s exhausted after %s", target.Key(), p.cfg.BorrowTimeout).WithCause(err)
		}
		if errors.Is(err, puddle.ErrClosedPool) {
			return nil, schema.NewErrorf(schema.ErrCodeConnection,
				"pool for %s is closed", target.Key())
		}
		var pErr *schema.ProvisError
		if errors.As(err, &pErr) {
			return nil, pErr
		}
		return nil, schema.NewErrorf(schema.ErrCodeConnection,
			"acquire session for %s: %s", target.Key(), err.Error()).WithCause(err)
	}

	if p.cfg.TestOnBorrow {
		if verr := res.Value().Validate(ctx); verr != nil {
			res.Destroy()
			return nil, schema.NewErrorf(schema.ErrCodeConnection,
				"idle session for %s failed validation: %s", target.Key(), verr.Error()).WithCause(verr)
		}
	}

	return &Lease{key: target.Key(), res: res}, nil
}

// Release returns a lease to its pool. Idempotent.
func (p *Pool) Release(l *Lease) {
	if l != nil {
		l.Release()
	}
}

// Invalidate destroys a leased session. Idempotent, also after Release.
func (p *Pool) Invalidate(l *Lease) {
	if l != nil {
		l.Invalidate()
	}
}

// Stat describes one per-target pool for diagnostics.
type Stat struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
}

// Stats returns a snapshot of all per-target pools.
func (p *Pool) Stats() map[string]Stat {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Stat, len(p.pools))
	for key, tp := range p.pools {
		s := tp.Stat()
		out[key] = Stat{
			Total:    s.TotalResources(),
			Idle:     s.IdleResources(),
			Acquired: s.AcquiredResources(),
		}
	}
	return out
}

// Close stops eviction and destroys all pooled sessions.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pools := make([]*puddle.Pool[Session], 0, len(p.pools))
	for _, tp := range p.pools {
		pools = append(pools, tp)
	}
	p.mu.Unlock()

	close(p.done)
	p.reapWg.Wait()
	for _, tp := range pools {
		tp.Close()
	}
}

func (p *Pool) poolFor(target Target) (*puddle.Pool[Session], error) {
	key := target.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, schema.NewError(schema.ErrCodeConnection, "session pool is closed")
	}
	if tp, ok := p.pools[key]; ok {
		return tp, nil
	}

	tp, err := puddle.NewPool(&puddle.Config[Session]{
		Constructor: func(ctx context.Context) (Session, error) {
			return p.factory.Open(ctx, target)
		},
		Destructor: func(s Session) {
			// Best effort: the transport may already be broken.
			_ = s.Close()
		},
		MaxSize: int32(p.cfg.MaxSize),
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"create pool for %s: %s", key, err.Error()).WithCause(err)
	}
	p.pools[key] = tp
	return tp, nil
}

// reapLoop periodically destroys sessions idle beyond the idle timeout and
// trims the idle set down to max idle per target.
func (p *Pool) reapLoop() {
	defer p.reapWg.Done()

	ticker := time.NewTicker(p.cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	p.mu.Lock()
	pools := make(map[string]*puddle.Pool[Session], len(p.pools))
	for key, tp := range p.pools {
		pools[key] = tp
	}
	p.mu.Unlock()

	for key, tp := range pools {
		idle := tp.AcquireAllIdle()
		kept := 0
		destroyed := 0
		for _, res := range idle {
			expired := p.cfg.IdleTimeout > 0 && res.IdleDuration() > p.cfg.IdleTimeout
			overflow := p.cfg.MaxIdle > 0 && kept >= p.cfg.MaxIdle
			if expired || overflow {
				res.Destroy()
				destroyed++
				continue
			}
			res.Release()
			kept++
		}
		if destroyed > 0 {
			p.logger.Debug("evicted idle sessions", "target", key, "destroyed", destroyed, "kept", kept)
		}
	}
}
