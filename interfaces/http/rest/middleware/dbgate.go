package middleware

import (
	"context"
	"errors"
	"net/http"

	"internship-backend/infrastructure/persistence/connection"
	apperrors "internship-backend/pkg/errors"

	"go.uber.org/zap"
)

// ConnectionSource is the part of connection.Manager the gate needs.
type ConnectionSource interface {
	Current() (connection.Connection, bool)
	Acquire(ctx context.Context) (connection.Connection, error)
	Configured() bool
	State() connection.State
}

// GateObserver counts rejected requests by reason.
type GateObserver interface {
	ObserveGateRejection(reason string)
}

// GateRejection is the 503 body sent when no database connection is
// available.
type GateRejection struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Error       string `json:"error"`
	MongoURISet bool   `json:"mongoUriSet"`
	ReadyState  int    `json:"readyState"`
}

// DatabaseGate holds every request until the shared connection is usable
// or confirmed unavailable. A usable connection is put on the request
// context; otherwise the request is answered with 503 and not forwarded.
func DatabaseGate(source ConnectionSource, observer GateObserver, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, ok := source.Current()
			if !ok {
				var err error
				conn, err = source.Acquire(r.Context())
				if err != nil {
					reason := rejectionReason(r.Context(), err)
					observer.ObserveGateRejection(reason)
					logger.Warn("Rejecting request without database connection",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("reason", reason),
						zap.Error(err),
					)
					reject(w, source, logger)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(connection.WithConnection(r.Context(), conn)))
		})
	}
}

func reject(w http.ResponseWriter, source ConnectionSource, logger *zap.Logger) {
	body := GateRejection{
		Success:     false,
		Message:     "Database connection failed",
		Error:       "Could not establish MongoDB connection. Please check your MONGO_URI environment variable.",
		MongoURISet: source.Configured(),
		ReadyState:  int(source.State()),
	}
	if err := apperrors.WriteJSON(w, http.StatusServiceUnavailable, body); err != nil {
		logger.Error("Failed to encode gate response", zap.Error(err))
	}
}

func rejectionReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, connection.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, connection.ErrBackoff):
		return "backoff"
	case ctx.Err() != nil:
		return "cancelled"
	case connection.Classify(err) == connection.FailureTimeout:
		return "timeout"
	default:
		return "failed"
	}
}
