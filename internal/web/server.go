// Package web provides the JSON HTTP API for import sessions.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/fieldmap/internal/config"
	"github.com/JonMunkholm/fieldmap/internal/importer"
	mw "github.com/JonMunkholm/fieldmap/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	imports     *importer.Service
	cfg         *config.Config
	maxFileSize int64
	router      *chi.Mux
	server      *http.Server
	limiters    []*rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(imports *importer.Service, cfg *config.Config) *Server {
	s := &Server{
		imports:     imports,
		cfg:         cfg,
		maxFileSize: cfg.Import.MaxFileSize,
		router:      chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Requests that touch the sink run under the commit timeout
		// inside the importer; everything else gets the request timeout.
		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			// Schemas and templates
			r.Get("/schemas", s.handleListSchemas)
			r.Get("/schemas/{entity}", s.handleGetSchema)
			r.Get("/template/{entity}", s.handleDownloadTemplate)

			// Saved mappings
			r.Get("/schemas/{entity}/presets", s.handleListPresets)
			r.Post("/schemas/{entity}/presets", s.handleCreatePreset)
			r.Get("/presets/{presetID}", s.handleGetPreset)
			r.Put("/presets/{presetID}", s.handleUpdatePreset)
			r.Delete("/presets/{presetID}", s.handleDeletePreset)

			// Session lifecycle
			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Put("/sessions/{id}/mapping", s.handleSetMapping)
			r.Put("/sessions/{id}/options", s.handleSetOptions)
			r.Post("/sessions/{id}/validate", s.handleValidate)
			r.Post("/sessions/{id}/back", s.handleBackToMapping)
			r.Get("/sessions/{id}/preview", s.handlePreview)
			r.Post("/sessions/{id}/presets", s.handleSavePreset)
			r.Post("/sessions/{id}/presets/{presetID}/apply", s.handleApplyPreset)
			r.Delete("/sessions/{id}", s.handleCancel)
		})

		// Heavy endpoints get the stricter upload limit
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(s.newLimiter(s.cfg.Rate.UploadLimit).middleware)
			}
			r.Post("/sessions/{id}/file", s.handleUploadFile)
			r.Post("/sessions/{id}/commit", s.handleCommit)
		})
	})
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// healthResponse reports liveness and commit slot usage.
type healthResponse struct {
	Status  string                 `json:"status"`
	Commits importer.LimiterStatus `json:"commits"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Commits: s.imports.Limiter().Status()})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON and file downloads only; nothing should load from a response
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
