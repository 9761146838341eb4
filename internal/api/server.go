/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table of
  the reconciliation service. This is the wiring layer between URLs and
  handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in the request log
  2. Logger:     zerolog request logging (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Origins from the allowed_origins setting

ROUTE GROUPS:
  /health                         Volume and database probe
  /api/runs/*                     Run lifecycle, uploads, execution
  /api/runs/{id}/exceptions/*     Review queue
  /api/runs/{id}/files/{fileID}   Downloads

SECURITY NOTE:
  No authentication middleware. The service is meant to run behind an
  authenticating proxy on an internal network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/serve.go: Server startup and shutdown
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRun)
				r.Delete("/", h.DeleteRun)

				r.Post("/upload", h.Upload)
				r.Post("/preflight", h.Preflight)
				r.Post("/execute", h.Execute)
				r.Post("/complete", h.Complete)

				r.Get("/exceptions", h.ListExceptions)
				r.Patch("/exceptions", h.BulkResolve)
				r.Patch("/exceptions/{exceptionID}", h.ResolveException)

				r.Get("/files/{fileID}", h.DownloadFile)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
