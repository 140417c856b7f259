// Package server provides the HTTP API of the Compilatio connector.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/config"
	"github.com/hyperjump/compilatio/internal/privacy"
	"github.com/hyperjump/compilatio/internal/storage"
	"github.com/hyperjump/compilatio/internal/submission"
)

// Server is the HTTP server for the connector API.
type Server struct {
	client      compilatio.Service
	submissions *submission.Service
	privacy     *privacy.Provider
	storage     storage.Storage
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	client compilatio.Service,
	subs *submission.Service,
	priv *privacy.Provider,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		client:      client,
		submissions: subs,
		privacy:     priv,
		storage:     store,
		config:      cfg,
		logger:      logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP handler serving every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/", s.handleListSubmissions)
			r.Post("/sync", s.handleSync)
			r.Get("/{id}", s.handleGetSubmission)
			r.Post("/{id}/refresh", s.handleRefreshSubmission)
			r.Post("/{id}/analysis", s.handleStartSubmissionAnalysis)
		})
		r.Route("/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Get("/report", s.handleReportURL)
			r.Post("/analysis", s.handleStartAnalysis)
			r.Get("/indexing", s.handleGetIndexing)
			r.Put("/indexing", s.handleSetIndexing)
		})
		r.Route("/account", func(r chi.Router) {
			r.Get("/quotas", s.handleQuotas)
			r.Get("/expiration", s.handleExpiration)
			r.Get("/news", s.handleNews)
			r.Get("/max-size", s.handleMaxSize)
			r.Get("/file-types", s.handleFileTypes)
			r.Post("/configuration", s.handleConfiguration)
		})
		r.Route("/privacy", func(r chi.Router) {
			r.Get("/metadata", s.handlePrivacyMetadata)
			r.Get("/users/{userID}/contexts", s.handleContextsForUser)
			r.Route("/contexts/{level}/{instanceID}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteForContext)
				r.Get("/users", s.handleUsersInContext)
				r.Post("/users/delete", s.handleDeleteForUsers)
				r.Get("/users/{userID}/export", s.handleExportUserData)
				r.Delete("/users/{userID}", s.handleDeleteForUser)
			})
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops. It returns
// http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
