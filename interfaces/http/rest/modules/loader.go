package modules

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "internship-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Module is a named group of routes mounted under one or more prefixes.
// Build runs once at startup.
type Module struct {
	Name     string                       `validate:"required"`
	Prefixes []string                     `validate:"required,min=1,dive,startswith=/"`
	Build    func() (http.Handler, error) `validate:"required"`
}

// Route is one mounted prefix. Err is set when the module failed to load
// and Handler is its fallback.
type Route struct {
	Module  string
	Prefix  string
	Handler http.Handler
	Err     error
}

// RouteTable is the immutable result of loading modules.
type RouteTable struct {
	routes []Route
	failed []string
}

// Routes returns a copy of the table in load order.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Failed returns the names of modules that were replaced by a fallback.
func (t *RouteTable) Failed() []string {
	out := make([]string, len(t.failed))
	copy(out, t.failed)
	return out
}

// Mount registers every route on r.
func (t *RouteTable) Mount(r chi.Router) {
	for _, route := range t.routes {
		r.Mount(route.Prefix, route.Handler)
	}
}

// FailureObserver counts modules that failed to load.
type FailureObserver interface {
	ObserveModuleFailure(module string)
}

// Loader builds modules in isolation: a module whose definition is invalid,
// whose Build returns an error, or whose Build panics is replaced by a
// handler answering 500 for its own prefixes only.
type Loader struct {
	validate *validator.Validate
	observer FailureObserver
	logger   *zap.Logger
	debug    bool
}

// NewLoader creates a loader. Fallback responses carry a stack trace only
// when debug is set.
func NewLoader(validate *validator.Validate, observer FailureObserver, logger *zap.Logger, debug bool) *Loader {
	return &Loader{
		validate: validate,
		observer: observer,
		logger:   logger,
		debug:    debug,
	}
}

// Load builds every module and returns the route table.
func (l *Loader) Load(modules []Module) *RouteTable {
	table := &RouteTable{}
	mounted := make(map[string]string)

	for _, m := range modules {
		handler, err := l.build(m)
		if err == nil {
			err = checkPrefixes(m, mounted)
		}
		if err != nil {
			appErr := apperrors.NewModuleLoadError(m.Name, err)
			handler = l.fallback(appErr)
			table.failed = append(table.failed, m.Name)
			l.observer.ObserveModuleFailure(m.Name)
			l.logger.Error("Failed to load route module",
				zap.String("module", m.Name),
				zap.Strings("prefixes", m.Prefixes),
				zap.Error(err),
			)
		}

		for _, prefix := range m.Prefixes {
			if !strings.HasPrefix(prefix, "/") {
				continue
			}
			if _, taken := mounted[prefix]; taken {
				continue
			}
			mounted[prefix] = m.Name
			table.routes = append(table.routes, Route{
				Module:  m.Name,
				Prefix:  prefix,
				Handler: handler,
				Err:     err,
			})
		}
	}

	l.logger.Info("Route modules loaded",
		zap.Int("routes", len(table.routes)),
		zap.Strings("failed", table.Failed()),
	)
	return table
}

func (l *Loader) build(m Module) (handler http.Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			handler = nil
			err = apperrors.PanicError(rec)
		}
	}()

	if err := l.validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid module definition: %w", err)
	}

	handler, err = m.Build()
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("module %s built no handler", m.Name)
	}
	return handler, nil
}

func checkPrefixes(m Module, mounted map[string]string) error {
	for _, prefix := range m.Prefixes {
		if owner, taken := mounted[prefix]; taken {
			return fmt.Errorf("prefix %s is already mounted by %s", prefix, owner)
		}
	}
	return nil
}

func (l *Loader) fallback(appErr *apperrors.AppError) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := apperrors.WriteEnvelope(w, appErr, l.debug); err != nil {
			l.logger.Error("Failed to encode fallback response", zap.Error(err))
		}
	})
}
