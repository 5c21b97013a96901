package di

import (
	"fmt"
	"net/http"

	"internship-backend/infrastructure/config"
	"internship-backend/infrastructure/persistence/connection"
	"internship-backend/infrastructure/persistence/dynamodb"
	"internship-backend/infrastructure/persistence/memory"
	"internship-backend/infrastructure/persistence/mongodb"
	"internship-backend/interfaces/http/rest"
	"internship-backend/interfaces/http/rest/handlers"
	"internship-backend/interfaces/http/rest/middleware"
	"internship-backend/interfaces/http/rest/modules"
	apperrors "internship-backend/pkg/errors"
	"internship-backend/pkg/observability"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	serviceName      = "internship-backend"
	metricsNamespace = "internship_backend"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", serviceName),
		zap.String("hosting_mode", string(cfg.HostingMode)),
	), nil
}

// ProvideValidator creates the shared validator
func ProvideValidator() *validator.Validate {
	return validator.New()
}

// ProvideErrorHandler creates the error handler. Stack traces are exposed
// outside production only.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, !cfg.IsProduction())
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideDialer routes each URI scheme to its driver.
func ProvideDialer(tracer *observability.Tracer) connection.Dialer {
	mongo := mongodb.NewDialer(serviceName)
	return connection.SchemeDialer{
		"mongodb":     mongo,
		"mongodb+srv": mongo,
		"dynamodb":    dynamodb.NewDialer(tracer.Enabled()),
		"memory":      memory.NewDialer(),
	}
}

// ProvideConnectionOptions maps configuration onto handshake options
func ProvideConnectionOptions(cfg *config.Config) connection.Options {
	return connection.Options{
		URI:                    cfg.DatabaseURI,
		Database:               cfg.DatabaseName,
		ConnectTimeout:         cfg.ConnectTimeout,
		ServerSelectionTimeout: cfg.ServerSelectionTimeout,
		SocketTimeout:          cfg.SocketTimeout,
		MaxPoolSize:            cfg.MaxPoolSize,
	}
}

// ProvideRetryPolicy lets managed processes retry on every call and puts a
// circuit breaker in front of handshakes in long-running servers.
func ProvideRetryPolicy(cfg *config.Config, logger *zap.Logger) connection.RetryPolicy {
	if cfg.IsManaged() {
		return connection.Immediate{}
	}
	breaker := connection.DefaultBreakerConfig()
	if cfg.BreakerFailures > 0 {
		breaker.Failures = cfg.BreakerFailures
	}
	if cfg.BreakerCooldown > 0 {
		breaker.Cooldown = cfg.BreakerCooldown
	}
	return connection.NewBreaker(breaker, logger)
}

// ProvideConnectionManager creates the process's connection manager and
// exports its state as a gauge.
func ProvideConnectionManager(
	dialer connection.Dialer,
	opts connection.Options,
	policy connection.RetryPolicy,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *connection.Manager {
	manager := connection.NewManager(dialer, opts, logger.Named("database"),
		connection.WithRetryPolicy(policy),
		connection.WithObserver(metrics),
		connection.WithTracer(tracer),
	)
	metrics.RegisterStateGauge(metricsNamespace, func() float64 {
		return float64(manager.State())
	})
	return manager
}

// ProvideRouteTable builds every resource module once.
func ProvideRouteTable(
	cfg *config.Config,
	validate *validator.Validate,
	errs *apperrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *modules.RouteTable {
	loader := modules.NewLoader(validate, metrics, logger, !cfg.IsProduction())
	return loader.Load(modules.ResourceModules(validate, errs, logger))
}

// ProvideCORSPolicy creates the CORS policy
func ProvideCORSPolicy(cfg *config.Config) *middleware.CORSPolicy {
	return middleware.NewCORSPolicy(cfg.CORSOrigins)
}

// ProvideHealthHandler creates the root and health handler
func ProvideHealthHandler(cfg *config.Config, manager *connection.Manager, logger *zap.Logger) *handlers.HealthHandler {
	return handlers.NewHealthHandler(manager, cfg.Environment, cfg.IsManaged(), logger)
}

// ProvideRouter creates the router
func ProvideRouter(
	cfg *config.Config,
	manager *connection.Manager,
	routes *modules.RouteTable,
	cors *middleware.CORSPolicy,
	errs *apperrors.ErrorHandler,
	health *handlers.HealthHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(manager, routes, cors, errs, health, metrics, cfg.EnableMetrics, logger)
}

// ProvideHTTPHandler composes the application handler
func ProvideHTTPHandler(router *rest.Router) http.Handler {
	return router.Setup()
}
