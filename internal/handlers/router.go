package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
)

// API groups mounted under the versioned prefix.
const (
	GroupCheckout = "/checkout"
	GroupCart     = "/cart"
	GroupOrders   = "/orders"
	GroupAdmin    = "/admin"
	GroupWebhooks = "/webhooks"
	GroupInternal = "/internal"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

var apiGroups = []string{GroupCheckout, GroupCart, GroupOrders, GroupAdmin, GroupWebhooks, GroupInternal}

// RouteRegistrar adds a group's routes to r.
type RouteRegistrar func(r chi.Router)

type group struct {
	routes      RouteRegistrar
	middlewares chi.Middlewares
}

type routerConfig struct {
	middlewares chi.Middlewares
	health      *HealthHandlers
	groups      map[string]*group
}

func (c *routerConfig) group(path string) *group {
	g, ok := c.groups[path]
	if !ok {
		g = &group{}
		c.groups[path] = g
	}
	return g
}

// Option customises NewRouter.
type Option func(*routerConfig)

// WithMiddlewares appends middleware run for every request, after request id, real ip and timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(c *routerConfig) { c.middlewares = append(c.middlewares, mw...) }
}

// WithHealthHandlers serves /healthz and /readyz from h.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(c *routerConfig) { c.health = h }
}

// WithGroup mounts routes at path under /api/v1. Known groups left without routes answer 501.
func WithGroup(path string, routes RouteRegistrar) Option {
	return func(c *routerConfig) { c.group(path).routes = routes }
}

// WithGroupMiddleware runs mw only for requests inside the group at path.
func WithGroupMiddleware(path string, mw ...func(http.Handler) http.Handler) Option {
	return func(c *routerConfig) {
		g := c.group(path)
		g.middlewares = append(g.middlewares, mw...)
	}
}

// NewRouter builds the API router.
func NewRouter(opts ...Option) chi.Router {
	cfg := &routerConfig{
		middlewares: chi.Middlewares{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
		groups:      make(map[string]*group),
	}
	for _, path := range apiGroups {
		cfg.group(path)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", req.Method+" is not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		for path, g := range cfg.groups {
			api.Route(path, func(sub chi.Router) {
				for _, mw := range g.middlewares {
					if mw != nil {
						sub.Use(mw)
					}
				}
				if g.routes == nil {
					notImplemented(sub, path)
					return
				}
				g.routes(sub)
			})
		}
	})
	return r
}

func notImplemented(r chi.Router, path string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", path[1:]+" routes are not enabled", http.StatusNotImplemented))
	}
	r.HandleFunc("/", handler)
	r.HandleFunc("/*", handler)
}
