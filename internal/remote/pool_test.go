package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/internal/config"
	"github.com/provis-io/provis/pkg/schema"
)

// fakeSession is a scriptable in-memory Session.
type fakeSession struct {
	mu          sync.Mutex
	validateErr error
	closed      int
	runs        []string
}

func (s *fakeSession) Run(ctx context.Context, command string) (*ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, command)
	return &ExecResult{ExitCode: 0, Stdout: "ok"}, nil
}

func (s *fakeSession) Validate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeFactory counts opens and can fail on demand.
type fakeFactory struct {
	mu       sync.Mutex
	opened   int32
	openErr  error
	sessions []*fakeSession
}

func (f *fakeFactory) Open(ctx context.Context, target Target) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	atomic.AddInt32(&f.opened, 1)
	s := &fakeSession{}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func testTarget() Target {
	return Target{Host: "10.0.0.1", Port: 22, User: "root", Password: "hunter2"}
}

func poolConfig() config.PoolConfig {
	return config.PoolConfig{
		MaxSize:       2,
		MaxIdle:       2,
		BorrowTimeout: 100 * time.Millisecond,
		TestOnBorrow:  true,
	}
}

func TestPool_AcquireReleaseReuse(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, poolConfig(), nil)
	defer pool.Close()

	lease, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	require.NotNil(t, lease.Session())
	lease.Release()

	// Second acquire reuses the idle session instead of creating.
	lease2, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	lease2.Release()

	assert.Equal(t, int32(1), atomic.LoadInt32(&factory.opened))
}

func TestPool_ExhaustedAfterBorrowTimeout(t *testing.T) {
	factory := &fakeFactory{}
	cfg := poolConfig()
	cfg.MaxSize = 1
	pool := NewPool(factory, cfg, nil)
	defer pool.Close()

	lease, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	defer lease.Release()

	_, err = pool.Acquire(context.Background(), testTarget())
	require.Error(t, err)
	var pErr *schema.ProvisError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, schema.ErrCodePoolExhausted, pErr.Code)
	assert.True(t, pErr.IsRetryable())
}

func TestPool_ReleaseIdempotent(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, poolConfig(), nil)
	defer pool.Close()

	lease, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)

	lease.Release()
	lease.Release()
	lease.Invalidate() // after release: no-op

	stats := pool.Stats()[testTarget().Key()]
	assert.Equal(t, int32(0), stats.Acquired)
	assert.Equal(t, int32(1), stats.Idle)
}

func TestPool_InvalidateDestroysSession(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, poolConfig(), nil)
	defer pool.Close()

	lease, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	lease.Invalidate()
	lease.Invalidate()

	stats := pool.Stats()[testTarget().Key()]
	assert.Equal(t, int32(0), stats.Total)
	assert.Equal(t, 1, factory.sessions[0].closed)

	// A new acquire creates a fresh session.
	lease2, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	lease2.Release()
	assert.Equal(t, int32(2), atomic.LoadInt32(&factory.opened))
}

func TestPool_TestOnBorrowDestroysInvalid(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, poolConfig(), nil)
	defer pool.Close()

	lease, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	lease.Release()

	// Break the idle session; the next borrow must destroy it and surface
	// a transient connection error for the resilience layer to retry.
	factory.sessions[0].validateErr = schema.NewError(schema.ErrCodeConnection, "broken pipe")

	_, err = pool.Acquire(context.Background(), testTarget())
	require.Error(t, err)
	var pErr *schema.ProvisError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, schema.ErrCodeConnection, pErr.Code)
	assert.Equal(t, 1, factory.sessions[0].closed)
}

func TestPool_SeparatePoolsPerTarget(t *testing.T) {
	factory := &fakeFactory{}
	cfg := poolConfig()
	cfg.MaxSize = 1
	pool := NewPool(factory, cfg, nil)
	defer pool.Close()

	a, err := pool.Acquire(context.Background(), testTarget())
	require.NoError(t, err)
	defer a.Release()

	other := testTarget()
	other.Host = "10.0.0.2"
	b, err := pool.Acquire(context.Background(), other)
	require.NoError(t, err)
	defer b.Release()

	assert.Len(t, pool.Stats(), 2)
}

func TestPool_CloseRejectsAcquire(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, poolConfig(), nil)
	pool.Close()
	pool.Close() // idempotent

	_, err := pool.Acquire(context.Background(), testTarget())
	require.Error(t, err)
}

func TestTarget_KeyAndValidate(t *testing.T) {
	tgt := testTarget()
	assert.Equal(t, "root@10.0.0.1:22", tgt.Key())
	assert.Equal(t, "10.0.0.1:22", tgt.Addr())
	assert.NoError(t, tgt.Validate())

	// Default port applies when unset.
	tgt.Port = 0
	assert.Equal(t, "root@10.0.0.1:22", tgt.Key())

	assert.Error(t, Target{User: "root", Password: "x"}.Validate())
	assert.Error(t, Target{Host: "h", Password: "x"}.Validate())
	assert.Error(t, Target{Host: "h", User: "root"}.Validate())
}
