// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/doclens/doclens/internal/api/middleware"
	"github.com/doclens/doclens/internal/api/response"
	"github.com/doclens/doclens/internal/ratelimit"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth         *mw.Auth
	RateLimit    *mw.RateLimit
	InternalAuth func(http.Handler) http.Handler

	UploadPolicy  ratelimit.Policy
	TriggerPolicy ratelimit.Policy

	HealthHandler  http.HandlerFunc
	UploadHandler  http.HandlerFunc
	StatusHandler  http.HandlerFunc
	RetryHandler   http.HandlerFunc
	DeleteHandler  http.HandlerFunc
	ProcessHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Client routes: API-key auth, upload rate limited separately from reads.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.With(deps.RateLimit.Limit("upload", deps.UploadPolicy)).
			Post("/api/v1/jobs", orNotImplemented(deps.UploadHandler))

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.StatusHandler))
		r.Post("/api/v1/jobs/{jobID}/retry", orNotImplemented(deps.RetryHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.DeleteHandler))
	})

	// Internal routes: shared-secret auth, independent trigger limit.
	r.Group(func(r chi.Router) {
		r.Use(deps.InternalAuth)
		r.Use(deps.RateLimit.Limit("trigger", deps.TriggerPolicy))

		r.Post("/internal/v1/process", orNotImplemented(deps.ProcessHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
