package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dynquery/internal/middleware"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Validator   middleware.JWTValidator
	RateLimit   middleware.RateLimitConfig
	CORSOrigins []string
	// DocumentsDir enables `/document/*` for the local export store.
	DocumentsDir string
}

// NewRouter builds the HTTP router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", tenantHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.Health)

	authed := func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Validator))
		if opts.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(opts.RateLimit))
		}
	}

	r.Route("/v1", func(r chi.Router) {
		authed(r)
		r.Post("/objects", h.GetObject)
		r.Post("/objects/count", h.CountObjects)
		r.Post("/sql", h.RawSQL)
		r.Post("/queries/{id}/kill", h.KillQuery)
		r.Get("/queries/active", h.ActiveQuery)
		r.Get("/models/{model}/fields", h.ListFields)
		r.Post("/catalog/reload", h.ReloadCatalog)
		r.Get("/exports/{id}", h.GetExport)
	})

	if opts.DocumentsDir != "" {
		r.Group(func(r chi.Router) {
			authed(r)
			r.Handle("/document/*", NewDocumentServer(opts.DocumentsDir))
		})
	}
	return r
}
