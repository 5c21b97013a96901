package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const handshakeKey = "handshake"

// Observer receives handshake outcomes, e.g. for metrics.
type Observer interface {
	ObserveHandshake(result string, duration time.Duration)
}

// Tracer wraps a handshake in a trace span.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}

type noopObserver struct{}

func (noopObserver) ObserveHandshake(string, time.Duration) {}

type noopTracer struct{}

func (noopTracer) TraceFunction(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetryPolicy replaces the default Immediate policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithObserver reports handshake outcomes to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithTracer traces handshakes with t.
func WithTracer(t Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// Manager owns the process's single database connection slot. It hands
// out the cached connection while it is healthy, lets concurrent callers
// share one in-flight handshake, and degrades to "no connection" instead
// of failing when the database is absent or unreachable.
type Manager struct {
	dialer   Dialer
	opts     Options
	policy   RetryPolicy
	observer Observer
	tracer   Tracer
	logger   *zap.Logger

	mu   sync.RWMutex
	conn Connection
	// gen is bumped by Close; a handshake started under an older
	// generation must not fill the slot.
	gen uint64

	group    singleflight.Group
	dialing  atomic.Bool
	closing  atomic.Bool
	attempts atomic.Int64

	warnOnce sync.Once
}

// NewManager creates a manager. No I/O happens until the first Acquire.
func NewManager(dialer Dialer, opts Options, logger *zap.Logger, options ...Option) *Manager {
	m := &Manager{
		dialer:   dialer,
		opts:     opts,
		policy:   Immediate{},
		observer: noopObserver{},
		tracer:   noopTracer{},
		logger:   logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Configured reports whether a database URI is present.
func (m *Manager) Configured() bool {
	return m.opts.URI != ""
}

// Attempts returns the number of handshakes performed so far.
func (m *Manager) Attempts() int64 {
	return m.attempts.Load()
}

// Current returns the cached connection if it is healthy. It never
// performs I/O.
func (m *Manager) Current() (Connection, bool) {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn != nil && conn.State().Usable() {
		return conn, true
	}
	return nil, false
}

// State reports the health of the slot.
func (m *Manager) State() State {
	if m.closing.Load() {
		return Disconnecting
	}

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn != nil {
		if state := conn.State(); state.Usable() || !m.dialing.Load() {
			return state
		}
	}
	if m.dialing.Load() {
		return Connecting
	}
	return Disconnected
}

// Acquire returns a healthy connection, joining an in-flight handshake or
// starting one when needed. It returns ErrNotConfigured without dialing
// when no URI is set, and the handshake error when the attempt fails; the
// slot is then left empty so the next call retries.
//
// ctx only bounds how long this caller waits. The handshake itself runs
// detached from it, bounded by the configured timeouts, so one caller
// giving up does not fail the others waiting on the same attempt.
func (m *Manager) Acquire(ctx context.Context) (Connection, error) {
	if conn, ok := m.Current(); ok {
		return conn, nil
	}

	if !m.Configured() {
		m.warnOnce.Do(func() {
			m.logger.Warn("Database URI is not set; skipping database connection")
		})
		return nil, ErrNotConfigured
	}

	parent := context.WithoutCancel(ctx)
	ch := m.group.DoChan(handshakeKey, func() (interface{}, error) {
		return m.handshake(parent)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Warm starts a handshake in the background, so the first request of a
// long-running server does not pay for it.
func (m *Manager) Warm(ctx context.Context) {
	go func() {
		if _, err := m.Acquire(ctx); err != nil && !errors.Is(err, ErrNotConfigured) {
			m.logger.Warn("Database connection failed or skipped at startup", zap.Error(err))
			return
		}
		if _, ok := m.Current(); ok {
			m.logger.Info("Database connection established")
		}
	}()
}

// handshake runs inside the singleflight group, so at most one is active.
func (m *Manager) handshake(parent context.Context) (Connection, error) {
	// A previous attempt may have finished between the caller's fast-path
	// check and joining the group.
	if conn, ok := m.Current(); ok {
		return conn, nil
	}

	m.mu.RLock()
	gen := m.gen
	m.mu.RUnlock()

	m.dialing.Store(true)
	defer m.dialing.Store(false)

	ctx, cancel := context.WithTimeout(parent, m.opts.HandshakeTimeout())
	defer cancel()

	m.logger.Info("Connecting to database", zap.String("uri", RedactURI(m.opts.URI)))

	start := time.Now()
	var conn Connection
	err := m.policy.Execute(func() error {
		return m.tracer.TraceFunction(ctx, "database.handshake", func(ctx context.Context) error {
			m.attempts.Add(1)
			c, err := m.dialer.Dial(ctx, m.opts)
			if err != nil {
				return err
			}
			conn = c
			return nil
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, ErrBackoff) {
			m.observer.ObserveHandshake("suppressed", elapsed)
			m.logger.Debug("Database handshake suppressed", zap.Error(err))
			return nil, err
		}
		m.observer.ObserveHandshake("failure", elapsed)
		m.logFailure(err, elapsed)
		return nil, err
	}

	if err := m.replace(conn, gen); err != nil {
		m.logger.Warn("Discarding database connection opened during shutdown")
		return nil, err
	}

	m.observer.ObserveHandshake("success", elapsed)
	info := conn.Info()
	m.logger.Info("Database connected",
		zap.String("driver", info.Driver),
		zap.String("host", info.Host),
		zap.String("database", info.Database),
		zap.Duration("elapsed", elapsed),
	)
	return conn, nil
}

func (m *Manager) logFailure(err error, elapsed time.Duration) {
	kind := Classify(err)
	m.logger.Error("Database connection failed",
		zap.Error(err),
		zap.String("failure", kind.String()),
		zap.Duration("elapsed", elapsed),
	)
	if hint := kind.Hint(); hint != "" {
		m.logger.Warn(hint, zap.String("failure", kind.String()))
	}
	m.logger.Warn("Server will continue running without an active database connection")
}

// replace installs conn in the slot and closes the stale connection it
// supersedes. If Close ran since the handshake started, conn is closed
// instead and ErrClosed returned.
func (m *Manager) replace(conn Connection, gen uint64) error {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout())
		defer cancel()
		if err := conn.Close(ctx); err != nil {
			m.logger.Warn("Failed to close database connection", zap.Error(err))
		}
		return ErrClosed
	}
	old := m.conn
	m.conn = conn
	m.mu.Unlock()

	if old == nil || old == conn {
		return nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout())
		defer cancel()
		if err := old.Close(ctx); err != nil {
			m.logger.Warn("Failed to close stale database connection", zap.Error(err))
		}
	}()
	return nil
}

// Close disconnects and empties the slot. It is used on graceful shutdown
// of long-running servers; host-managed processes simply abandon the slot.
func (m *Manager) Close(ctx context.Context) error {
	m.closing.Store(true)
	defer m.closing.Store(false)

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.gen++
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(ctx)
}
