// Package server exposes classified rosters over HTTP: JSON views, CSV and
// XLSX downloads, and Prometheus metrics. Every request builds a fresh report.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dhis2dupes/internal/export"
	"dhis2dupes/internal/history"
	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/metrics"
	"dhis2dupes/internal/report"
)

// RunRecorder stores run metadata. *history.Store satisfies it.
type RunRecorder interface {
	Record(ctx context.Context, run history.Run) (history.Run, error)
}

// Options wires a Server.
type Options struct {
	Bind     string
	Token    string
	BaseURL  string
	Fetcher  report.Fetcher
	Report   report.Options
	Export   export.Options
	Basename string
	Metrics  *metrics.Recorder
	History  RunRecorder
	Logger   *slog.Logger
}

// Server is the HTTP download server.
type Server struct {
	opts   Options
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New builds a Server. Fetcher is required.
func New(opts Options) (*Server, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("server: fetcher required")
	}
	if strings.TrimSpace(opts.Basename) == "" {
		opts.Basename = "dhis2_users_with_duplicates"
	}
	s := &Server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "server"),
	}
	s.server = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Report builds wait on DHIS2, which can be slow for large rosters.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.opts.Token))
		r.Route("/api", func(r chi.Router) {
			r.Get("/users", s.handleUsers)
			r.Get("/summary", s.handleSummary)
			r.Get("/groups", s.handleGroups)
		})
		r.Route("/export", func(r chi.Router) {
			r.Get("/users.csv", s.handleUsersCSV)
			r.Get("/duplicates.csv", s.handleDuplicatesCSV)
			r.Get("/users.xlsx", s.handleXLSX)
		})
	})
	return r
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("server: bind address required")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("token_required", s.opts.Token != ""),
	)
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// authMiddleware validates bearer tokens. An empty token disables the check.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
