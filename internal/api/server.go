// Package api serves the crash report inbox over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
)

// ReportStore is the slice of the inbox the server needs.
type ReportStore interface {
	Ingest(ctx context.Context, dir string) ([]inbox.Entry, error)
	List(ctx context.Context, filter inbox.ListFilter) ([]inbox.Entry, error)
	Get(ctx context.Context, id string) (inbox.Entry, error)
	Ack(ctx context.Context, id string) (inbox.Entry, error)
	Counts(ctx context.Context) (total, unacked int, err error)
}

// Server provides HTTP endpoints for browsing and acknowledging crash reports.
type Server struct {
	router      chi.Router
	store       ReportStore
	dir         string
	logger      *slog.Logger
	corsOrigins []string
	timeout     time.Duration
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCORSOrigins enables CORS for the given origins. Without it no CORS
// headers are sent.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer creates a server over store. dir is the report directory that is
// ingested before listing.
func NewServer(store ReportStore, dir string, opts ...ServerOption) *Server {
	s := &Server{
		store:   store,
		dir:     dir,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.loggingMiddleware)

	if len(s.corsOrigins) > 0 {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Get("/", s.handleListReports)
		r.Get("/latest", s.handleLatestReport)
		r.Get("/{id}", s.handleGetReport)
		r.Post("/{id}/ack", s.handleAckReport)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if total, unacked, err := s.store.Counts(r.Context()); err == nil {
		resp["reports"] = map[string]int{"total": total, "unacked": unacked}
	} else {
		s.logger.Warn("counting reports", "error", err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting report server", "addr", addr, "dir", s.dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
