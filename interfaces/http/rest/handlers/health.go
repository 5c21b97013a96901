package handlers

import (
	"net/http"
	"time"

	"internship-backend/infrastructure/persistence/connection"
	apperrors "internship-backend/pkg/errors"

	"go.uber.org/zap"
)

// HealthSource is the read-only view of the connection manager used by the
// health endpoints. None of its methods perform I/O.
type HealthSource interface {
	Configured() bool
	State() connection.State
}

// HealthHandler serves the root and health endpoints. Both always answer
// 200; database trouble is reported in the body, not the status.
type HealthHandler struct {
	source       HealthSource
	environment  string
	isServerless bool
	started      time.Time
	logger       *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(source HealthSource, environment string, isServerless bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		source:       source,
		environment:  environment,
		isServerless: isServerless,
		started:      time.Now(),
		logger:       logger,
	}
}

// RootResponse is the body of GET /.
type RootResponse struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	Uptime         float64 `json:"uptime"`
	Timestamp      string  `json:"timestamp"`
	Environment    string  `json:"environment"`
	IsServerless   bool    `json:"isServerless"`
	HealthEndpoint string  `json:"healthEndpoint"`
}

// DatabaseHealth describes the shared connection.
type DatabaseHealth struct {
	Connected     bool `json:"connected"`
	ReadyState    int  `json:"readyState"`
	ConfigPresent bool `json:"configPresent"`
	MongoURISet   bool `json:"mongoUriSet"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Timestamp   string         `json:"timestamp"`
	Environment string         `json:"environment"`
	Database    DatabaseHealth `json:"database"`
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.respond(w, RootResponse{
		Status:         "OK",
		Message:        "Backend is running",
		Uptime:         time.Since(h.started).Seconds(),
		Timestamp:      timestamp(time.Now()),
		Environment:    h.environment,
		IsServerless:   h.isServerless,
		HealthEndpoint: "/health",
	})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.source.State()
	configured := h.source.Configured()
	h.respond(w, HealthResponse{
		Status:      "OK",
		Message:     "Server is running",
		Timestamp:   timestamp(time.Now()),
		Environment: h.environment,
		Database: DatabaseHealth{
			Connected:     state == connection.Connected,
			ReadyState:    int(state),
			ConfigPresent: configured,
			MongoURISet:   configured,
		},
	})
}

func (h *HealthHandler) respond(w http.ResponseWriter, body interface{}) {
	if err := apperrors.WriteJSON(w, http.StatusOK, body); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
