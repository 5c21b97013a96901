package hosting

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// MemoryObserver receives every sample, e.g. for metrics.
type MemoryObserver interface {
	ObserveMemory(rss, heap uint64)
}

// MemoryConfig sets the sampling interval and heap thresholds.
type MemoryConfig struct {
	Every        time.Duration
	WarnBytes    uint64
	ReclaimBytes uint64
}

// Sample is one memory reading.
type Sample struct {
	RSS  uint64
	Heap uint64
}

// MemoryMonitor samples process memory on a schedule. Above WarnBytes of
// heap it logs a warning; above ReclaimBytes it forces a collection and
// returns freed memory to the OS.
type MemoryMonitor struct {
	cfg      MemoryConfig
	cron     *cron.Cron
	proc     *process.Process
	observer MemoryObserver
	logger   *zap.Logger

	readHeap func() uint64
	reclaim  func()
}

// NewMemoryMonitor creates a monitor for the current process.
func NewMemoryMonitor(cfg MemoryConfig, observer MemoryObserver, logger *zap.Logger) (*MemoryMonitor, error) {
	if cfg.Every <= 0 {
		return nil, fmt.Errorf("memory sample interval must be positive, got %s", cfg.Every)
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open process handle: %w", err)
	}

	cronLog := cronLogger{logger: logger.Named("memory-monitor")}
	return &MemoryMonitor{
		cfg:      cfg,
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		proc:     proc,
		observer: observer,
		logger:   logger,
		readHeap: heapInUse,
		reclaim:  debug.FreeOSMemory,
	}, nil
}

// Start schedules sampling. It returns immediately.
func (m *MemoryMonitor) Start() error {
	if _, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.cfg.Every), func() { m.Sample() }); err != nil {
		return fmt.Errorf("failed to schedule memory sampling: %w", err)
	}
	m.cron.Start()
	m.logger.Info("Memory monitor started", zap.Duration("every", m.cfg.Every))
	return nil
}

// Stop halts sampling and waits for a running sample to finish or ctx to
// end.
func (m *MemoryMonitor) Stop(ctx context.Context) {
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sample takes one reading and applies the thresholds.
func (m *MemoryMonitor) Sample() Sample {
	s := Sample{Heap: m.readHeap()}
	if info, err := m.proc.MemoryInfo(); err == nil {
		s.RSS = info.RSS
	} else {
		m.logger.Debug("Failed to read RSS", zap.Error(err))
	}
	m.observer.ObserveMemory(s.RSS, s.Heap)

	switch {
	case m.cfg.ReclaimBytes > 0 && s.Heap > m.cfg.ReclaimBytes:
		m.logger.Warn("Heap above reclaim threshold; forcing garbage collection",
			zap.Uint64("heap_mb", s.Heap>>20),
			zap.Uint64("rss_mb", s.RSS>>20),
		)
		m.reclaim()
	case m.cfg.WarnBytes > 0 && s.Heap > m.cfg.WarnBytes:
		m.logger.Warn("High memory usage",
			zap.Uint64("heap_mb", s.Heap>>20),
			zap.Uint64("rss_mb", s.RSS>>20),
		)
	}
	return s
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
