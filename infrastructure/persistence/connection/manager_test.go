package connection_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"internship-backend/application/ports"
	"internship-backend/infrastructure/persistence/connection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	state  atomic.Int32
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.state.Store(int32(connection.Connected))
	return c
}

func (c *fakeConn) State() connection.State        { return connection.State(c.state.Load()) }
func (c *fakeConn) Documents() ports.DocumentStore { return nil }
func (c *fakeConn) Info() connection.Info          { return connection.Info{Driver: "fake", Host: "fake:1"} }
func (c *fakeConn) Close(context.Context) error {
	c.closed.Store(true)
	c.state.Store(int32(connection.Disconnected))
	return nil
}

// countingDialer counts handshakes and can be told to block or fail.
type countingDialer struct {
	calls   atomic.Int64
	release chan struct{}
	entered chan struct{}
	failN   atomic.Int64
	last    atomic.Pointer[fakeConn]
}

func (d *countingDialer) Dial(ctx context.Context, _ connection.Options) (connection.Connection, error) {
	d.calls.Add(1)
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.failN.Load() > 0 {
		d.failN.Add(-1)
		return nil, errors.New("server selection error: authentication failed")
	}
	conn := newFakeConn()
	d.last.Store(conn)
	return conn, nil
}

func testOptions() connection.Options {
	return connection.Options{
		URI:                    "mongodb://db.internal:27017/portal",
		Database:               "portal",
		ConnectTimeout:         time.Second,
		ServerSelectionTimeout: time.Second,
		SocketTimeout:          time.Second,
	}
}

func TestManagerAcquire(t *testing.T) {
	t.Run("concurrent first requests share one handshake", func(t *testing.T) {
		for _, n := range []int{1, 2, 25, 200} {
			dialer := &countingDialer{release: make(chan struct{}), entered: make(chan struct{}, 1)}
			m := connection.NewManager(dialer, testOptions(), zap.NewNop())

			var wg sync.WaitGroup
			conns := make([]connection.Connection, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					conns[i], errs[i] = m.Acquire(context.Background())
				}(i)
			}

			<-dialer.entered
			assert.Equal(t, connection.Connecting, m.State())
			time.Sleep(20 * time.Millisecond)
			close(dialer.release)
			wg.Wait()

			assert.Equal(t, int64(1), dialer.calls.Load(), "n=%d", n)
			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				assert.Same(t, dialer.last.Load(), conns[i])
			}
			assert.Equal(t, connection.Connected, m.State())
		}
	})

	t.Run("failed handshake is retried by the next call", func(t *testing.T) {
		dialer := &countingDialer{}
		dialer.failN.Store(1)
		m := connection.NewManager(dialer, testOptions(), zap.NewNop())

		conn, err := m.Acquire(context.Background())
		assert.Error(t, err)
		assert.Nil(t, conn)
		assert.Equal(t, connection.FailureAuthentication, connection.Classify(err))
		assert.Equal(t, connection.Disconnected, m.State())

		conn, err = m.Acquire(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, conn)
		assert.Equal(t, int64(2), dialer.calls.Load())
		assert.Equal(t, int64(2), m.Attempts())
	})

	t.Run("missing URI never dials", func(t *testing.T) {
		dialer := &countingDialer{}
		opts := testOptions()
		opts.URI = ""
		m := connection.NewManager(dialer, opts, zap.NewNop())

		for i := 0; i < 3; i++ {
			conn, err := m.Acquire(context.Background())
			assert.ErrorIs(t, err, connection.ErrNotConfigured)
			assert.Nil(t, conn)
		}
		assert.False(t, m.Configured())
		assert.Equal(t, int64(0), dialer.calls.Load())
		assert.Equal(t, connection.Disconnected, m.State())
	})

	t.Run("healthy connection is reused without handshakes", func(t *testing.T) {
		dialer := &countingDialer{}
		m := connection.NewManager(dialer, testOptions(), zap.NewNop())

		first, err := m.Acquire(context.Background())
		require.NoError(t, err)

		for i := 0; i < 1000; i++ {
			conn, ok := m.Current()
			require.True(t, ok)
			assert.Same(t, first, conn)

			conn, err = m.Acquire(context.Background())
			require.NoError(t, err)
			assert.Same(t, first, conn)
		}
		assert.Equal(t, int64(1), dialer.calls.Load())
	})

	t.Run("stale connection is replaced and closed", func(t *testing.T) {
		dialer := &countingDialer{}
		m := connection.NewManager(dialer, testOptions(), zap.NewNop())

		_, err := m.Acquire(context.Background())
		require.NoError(t, err)
		stale := dialer.last.Load()
		stale.state.Store(int32(connection.Disconnected))

		_, ok := m.Current()
		assert.False(t, ok)
		assert.Equal(t, connection.Disconnected, m.State())

		fresh, err := m.Acquire(context.Background())
		require.NoError(t, err)
		assert.NotSame(t, stale, fresh)
		assert.Equal(t, int64(2), dialer.calls.Load())
		assert.Eventually(t, stale.closed.Load, time.Second, 5*time.Millisecond)
	})

	t.Run("waiter giving up does not cancel the shared handshake", func(t *testing.T) {
		dialer := &countingDialer{release: make(chan struct{}), entered: make(chan struct{}, 1)}
		m := connection.NewManager(dialer, testOptions(), zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		impatient := make(chan error, 1)
		go func() {
			_, err := m.Acquire(ctx)
			impatient <- err
		}()
		<-dialer.entered

		patient := make(chan error, 1)
		go func() {
			_, err := m.Acquire(context.Background())
			patient <- err
		}()

		cancel()
		assert.ErrorIs(t, <-impatient, context.Canceled)

		close(dialer.release)
		assert.NoError(t, <-patient)
		assert.Equal(t, int64(1), dialer.calls.Load())
	})

	t.Run("handshake is bounded by the configured timeouts", func(t *testing.T) {
		dialer := &countingDialer{release: make(chan struct{})}
		opts := testOptions()
		opts.ConnectTimeout = 10 * time.Millisecond
		opts.ServerSelectionTimeout = 10 * time.Millisecond
		m := connection.NewManager(dialer, opts, zap.NewNop())

		_, err := m.Acquire(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, connection.FailureTimeout, connection.Classify(err))
		assert.Equal(t, connection.Disconnected, m.State())
	})
}

func TestManagerClose(t *testing.T) {
	dialer := &countingDialer{}
	m := connection.NewManager(dialer, testOptions(), zap.NewNop())

	require.NoError(t, m.Close(context.Background()))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background()))

	assert.True(t, dialer.last.Load().closed.Load())
	assert.Equal(t, connection.Disconnected, m.State())
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManagerCloseDuringHandshake(t *testing.T) {
	dialer := &countingDialer{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := connection.NewManager(dialer, testOptions(), zap.NewNop())

	errs := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background())
		errs <- err
	}()

	<-dialer.entered
	require.NoError(t, m.Close(context.Background()))
	close(dialer.release)

	assert.ErrorIs(t, <-errs, connection.ErrClosed)
	assert.True(t, dialer.last.Load().closed.Load(), "a connection finished after Close is disconnected")
	_, ok := m.Current()
	assert.False(t, ok)

	conn, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, connection.Connected, conn.State())
	assert.Equal(t, int64(2), m.Attempts())
	require.NoError(t, m.Close(context.Background()))
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveHandshake(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func TestManagerWithBreaker(t *testing.T) {
	dialer := &countingDialer{}
	dialer.failN.Store(100)
	observer := &recordingObserver{}
	breaker := connection.NewBreaker(connection.BreakerConfig{
		Name:     "test",
		Failures: 2,
		Cooldown: time.Hour,
	}, zap.NewNop())
	m := connection.NewManager(dialer, testOptions(), zap.NewNop(),
		connection.WithRetryPolicy(breaker),
		connection.WithObserver(observer),
	)

	for i := 0; i < 2; i++ {
		_, err := m.Acquire(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, connection.ErrBackoff)
	}

	for i := 0; i < 5; i++ {
		_, err := m.Acquire(context.Background())
		assert.ErrorIs(t, err, connection.ErrBackoff)
	}

	assert.Equal(t, int64(2), dialer.calls.Load())
	assert.Equal(t, []string{"failure", "failure", "suppressed", "suppressed", "suppressed", "suppressed", "suppressed"}, observer.results)
}
