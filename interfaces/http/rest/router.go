package rest

import (
	"net/http"

	"internship-backend/interfaces/http/rest/handlers"
	"internship-backend/interfaces/http/rest/middleware"
	"internship-backend/interfaces/http/rest/modules"
	apperrors "internship-backend/pkg/errors"
	"internship-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	source        middleware.ConnectionSource
	routes        *modules.RouteTable
	cors          *middleware.CORSPolicy
	errors        *apperrors.ErrorHandler
	health        *handlers.HealthHandler
	metrics       *observability.Collector
	exposeMetrics bool
	logger        *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	source middleware.ConnectionSource,
	routes *modules.RouteTable,
	cors *middleware.CORSPolicy,
	errs *apperrors.ErrorHandler,
	health *handlers.HealthHandler,
	metrics *observability.Collector,
	exposeMetrics bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		source:        source,
		routes:        routes,
		cors:          cors,
		errors:        errs,
		health:        health,
		metrics:       metrics,
		exposeMetrics: exposeMetrics,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// CORS runs before the recoverer so panics still carry its headers.
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Telemetry(rt.logger, rt.metrics))
	router.Use(middleware.CORS(rt.cors))
	router.Use(rt.errors.Middleware)

	router.NotFound(rt.notFound)
	router.MethodNotAllowed(rt.methodNotAllowed)

	router.Get("/", rt.health.Root)
	router.Get("/health", rt.health.Health)
	if rt.exposeMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.DatabaseGate(rt.source, rt.metrics, rt.logger))
		rt.routes.Mount(r)
		r.NotFound(rt.notFound)
	})

	return router
}

func (rt *Router) notFound(w http.ResponseWriter, r *http.Request) {
	rt.errors.Handle(w, r, apperrors.NewNotFoundError("Route "+r.URL.Path))
}

func (rt *Router) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rt.errors.Handle(w, r, apperrors.NewValidationError("Method "+r.Method+" not allowed").WithStatus(http.StatusMethodNotAllowed))
}
