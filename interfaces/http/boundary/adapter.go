package boundary

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"internship-backend/interfaces/http/rest/middleware"
	apperrors "internship-backend/pkg/errors"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoHandler = errors.New("application build returned no handler")

// State is the adapter lifecycle. Failed is terminal for the process.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// BuildFunc constructs the application handler.
type BuildFunc func() (http.Handler, error)

// Adapter is the serverless entry point. It builds the application once,
// guarded against errors and panics, and keeps any failure from reaching
// the host transport: a failed build serves a fallback for the rest of the
// process lifetime, and a panic escaping the application becomes a 500.
type Adapter struct {
	build  BuildFunc
	logger *zap.Logger
	debug  bool

	once     sync.Once
	state    atomic.Int32
	handler  http.Handler
	buildErr *apperrors.AppError
}

// New creates an adapter. Error responses carry stack traces only when
// debug is set.
func New(build BuildFunc, logger *zap.Logger, debug bool) *Adapter {
	return &Adapter{
		build:  build,
		logger: logger,
		debug:  debug,
	}
}

// State reports the lifecycle state.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

// Init builds the application if that has not happened yet and returns the
// build error, if any. Concurrent callers wait for the single build.
func (a *Adapter) Init() error {
	a.once.Do(a.initialize)
	if a.buildErr != nil {
		return a.buildErr
	}
	return nil
}

func (a *Adapter) initialize() {
	a.state.Store(int32(Initializing))

	handler, err := a.guardedBuild()
	if err == nil && handler == nil {
		err = errNoHandler
	}
	if err != nil {
		a.buildErr = apperrors.NewStartupError(err)
		a.state.Store(int32(Failed))
		a.logger.Error("Application initialization failed; serving fallback handler", zap.Error(err))
		return
	}

	a.handler = handler
	a.state.Store(int32(Ready))
	a.logger.Info("Application initialized")
}

func (a *Adapter) guardedBuild() (handler http.Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			handler = nil
			err = apperrors.PanicError(rec)
		}
	}()
	return a.build()
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(chimiddleware.RequestIDHeader) == "" {
		r.Header.Set(chimiddleware.RequestIDHeader, uuid.New().String())
	}

	if err := a.Init(); err != nil {
		a.fallback(w, r)
		return
	}
	a.forward(w, r)
}

// fallback answers every request after a failed build.
func (a *Adapter) fallback(w http.ResponseWriter, r *http.Request) {
	middleware.ApplyPermissive(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := apperrors.WriteEnvelope(w, a.buildErr, a.debug); err != nil {
		a.logger.Error("Failed to encode fallback response", zap.Error(err))
	}
}

func (a *Adapter) forward(w http.ResponseWriter, r *http.Request) {
	ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		err := apperrors.PanicError(rec)
		a.logger.Error("Unhandled panic escaped the application",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		if ww.Status() != 0 {
			return
		}
		middleware.ApplyPermissive(ww, r)
		status, env := apperrors.NewEnvelope(err, a.debug)
		env.Message = "Internal server error"
		if encErr := apperrors.WriteJSON(ww, status, env); encErr != nil {
			a.logger.Error("Failed to encode panic response", zap.Error(encErr))
		}
	}()

	a.handler.ServeHTTP(ww, r)
}
