package hosting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memoryRecorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *memoryRecorder) ObserveMemory(rss, heap uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{RSS: rss, Heap: heap})
}

func (r *memoryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestMemoryMonitorThresholds(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	recorder := &memoryRecorder{}
	m, err := NewMemoryMonitor(MemoryConfig{
		Every:        time.Second,
		WarnBytes:    200 << 20,
		ReclaimBytes: 500 << 20,
	}, recorder, zap.New(core))
	require.NoError(t, err)

	reclaims := 0
	m.reclaim = func() { reclaims++ }

	tests := []struct {
		name        string
		heap        uint64
		wantWarns   int
		wantReclaim int
	}{
		{name: "below warn", heap: 100 << 20, wantWarns: 0, wantReclaim: 0},
		{name: "above warn", heap: 300 << 20, wantWarns: 1, wantReclaim: 0},
		{name: "above reclaim", heap: 600 << 20, wantWarns: 2, wantReclaim: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.readHeap = func() uint64 { return tt.heap }
			s := m.Sample()
			assert.Equal(t, tt.heap, s.Heap)
			assert.Greater(t, s.RSS, uint64(0))
			assert.Equal(t, tt.wantWarns, logs.Len())
			assert.Equal(t, tt.wantReclaim, reclaims)
		})
	}
	assert.Equal(t, 3, recorder.count())
}

func TestMemoryMonitorSchedule(t *testing.T) {
	recorder := &memoryRecorder{}
	m, err := NewMemoryMonitor(MemoryConfig{Every: time.Second}, recorder, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Start())
	assert.Eventually(t, func() bool { return recorder.count() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
}

func TestMemoryMonitorRejectsZeroInterval(t *testing.T) {
	_, err := NewMemoryMonitor(MemoryConfig{}, &memoryRecorder{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSupervisor(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := NewSupervisor(zap.New(core))
	exitCode := -1
	s.exit = func(code int) { exitCode = code }

	s.Run("ok", func() {})
	assert.Equal(t, -1, exitCode)

	s.Run("sampler", func() { panic("boom") })
	assert.Equal(t, 1, exitCode)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sampler", logs.All()[0].ContextMap()["task"])

	done := make(chan struct{})
	s.exit = func(code int) { close(done) }
	s.Go("background", func() { panic("later") })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervised goroutine panic was not reported")
	}
}

func TestShutdownContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := ShutdownContext(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown context did not follow its parent")
	}
}
