package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Envelope is the JSON body of every failed response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// NewEnvelope builds the envelope for err. The stack is kept only when
// withStack is set.
func NewEnvelope(err error, withStack bool) (int, Envelope) {
	if appErr := GetAppError(err); appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		env := Envelope{Message: appErr.Message, Error: appErr.Detail()}
		if withStack {
			env.Stack = appErr.StackTrace
		}
		return status, env
	}

	env := Envelope{Message: "Internal server error"}
	if err != nil {
		env.Error = err.Error()
	}
	if withStack {
		env.Stack = string(debug.Stack())
	}
	return http.StatusInternalServerError, env
}

// WriteJSON sends a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorHandler handles errors and sends appropriate HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler. Stack traces are only
// exposed when debug is set.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	status, env := NewEnvelope(err, h.debug)

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", r.Header.Get("X-Request-ID")),
	}
	switch {
	case status >= 500:
		h.logger.Error(env.Message, fields...)
	case status >= 400:
		h.logger.Warn(env.Message, fields...)
	default:
		h.logger.Info(env.Message, fields...)
	}

	if encErr := WriteJSON(w, status, env); encErr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(encErr))
	}
}

// Middleware returns an HTTP middleware that turns panics into the error
// envelope. Headers already set by outer middleware survive.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, PanicError(rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// WriteEnvelope writes the error envelope for err with its status.
func WriteEnvelope(w http.ResponseWriter, err error, withStack bool) error {
	status, env := NewEnvelope(err, withStack)
	return WriteJSON(w, status, env)
}
