//go:build wireinject
// +build wireinject

package di

import (
	"net/http"

	"internship-backend/infrastructure/config"
	"internship-backend/infrastructure/persistence/connection"
	"internship-backend/interfaces/http/rest/middleware"
	"internship-backend/interfaces/http/rest/modules"
	"internship-backend/pkg/observability"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Manager *connection.Manager
	Metrics *observability.Collector
	Routes  *modules.RouteTable
	CORS    *middleware.CORSPolicy
	Handler http.Handler
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideValidator,
	ProvideErrorHandler,
	ProvideMetrics,
	ProvideTracer,
	ProvideDialer,
	ProvideConnectionOptions,
	ProvideRetryPolicy,
	ProvideConnectionManager,
	ProvideRouteTable,
	ProvideCORSPolicy,
	ProvideHealthHandler,
	ProvideRouter,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
