package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"inkwell/internal/domain/apperr"
)

// RouterConfig bundles handler dependencies. Nil handlers are not mounted.
type RouterConfig struct {
	PostHandler    *PostHandler
	CommentHandler *CommentHandler
	LikeHandler    *LikeHandler
	SearchHandler  *SearchHandler
	HealthHandler  *HealthHandler

	APIBasePath       string
	Middlewares       []func(http.Handler) http.Handler
	PrometheusHandler http.Handler
}

type routeRegistrar interface {
	RegisterRoutes(r chiRouter)
}

// NewRouter builds the API. Routes live under APIBasePath; /metrics stays at
// the root so scrapers do not depend on the base path.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Compress(5))
	for _, mw := range cfg.Middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(routeError(http.StatusNotFound, "route not found", apperr.KindNotFound))
	r.MethodNotAllowed(routeError(http.StatusMethodNotAllowed, "method not allowed", apperr.KindValidation))

	if cfg.PrometheusHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.PrometheusHandler)
	}

	var registrars []routeRegistrar
	if cfg.SearchHandler != nil {
		registrars = append(registrars, cfg.SearchHandler)
	}
	if cfg.PostHandler != nil {
		registrars = append(registrars, cfg.PostHandler)
	}
	if cfg.LikeHandler != nil {
		registrars = append(registrars, cfg.LikeHandler)
	}
	if cfg.CommentHandler != nil {
		registrars = append(registrars, cfg.CommentHandler)
	}

	r.Route(apiMountPath(cfg.APIBasePath), func(api chi.Router) {
		for _, reg := range registrars {
			reg.RegisterRoutes(api)
		}
		if cfg.HealthHandler != nil {
			api.Method(http.MethodGet, "/health", cfg.HealthHandler)
		}
	})
	return r
}

// apiMountPath turns a configured base path such as "api/v1/" into the chi
// mount point "/api/v1". Blank mounts at the root.
func apiMountPath(base string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		return "/"
	}
	return "/" + base
}

func routeError(status int, message string, kind apperr.Kind) http.HandlerFunc {
	body := envelope{Status: status, Message: message, Error: string(kind)}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	}
}
