package hosting

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	apperrors "internship-backend/pkg/errors"

	"go.uber.org/zap"
)

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Supervisor runs background work in a long-running process. A panic in
// supervised work is logged with its stack and terminates the process,
// so the service manager restarts it instead of it running half-broken.
type Supervisor struct {
	logger *zap.Logger
	exit   func(int)
}

// NewSupervisor creates a supervisor that exits the process on panic.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{logger: logger, exit: os.Exit}
}

// Go runs fn on a new goroutine under the supervisor.
func (s *Supervisor) Go(name string, fn func()) {
	go s.Run(name, fn)
}

// Run runs fn on the calling goroutine under the supervisor.
func (s *Supervisor) Run(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Uncaught panic in background work",
				zap.String("task", name),
				zap.Error(apperrors.PanicError(rec)),
				zap.ByteString("stack", debug.Stack()),
			)
			_ = s.logger.Sync()
			s.exit(1)
		}
	}()
	fn()
}
