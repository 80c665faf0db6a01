// Package api provides the run-dispatch HTTP surface
// Runs execute synchronously per request; no catalog content is served here
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gpu-catalog/pipeline"
	"gpu-catalog/pkg/platform"
	"gpu-catalog/publish"
	"gpu-catalog/validate"
)

// RunFunc executes one catalog run against a channel with the given provider
// set. An empty provider list means the full configured set.
type RunFunc func(ctx context.Context, channel string, providerIDs []string) (*pipeline.Report, error)

// Config holds server configuration
type Config struct {
	Port           int
	DefaultChannel string
	// APIKey guards the dispatch endpoint when set; health stays open
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		DefaultChannel: "staging",
		ReadTimeout:    30 * time.Second,
		// Runs collect from live provider sites synchronously
		WriteTimeout: 15 * time.Minute,
	}
}

// Server is the run-dispatch HTTP server
type Server struct {
	run        RunFunc
	config     *Config
	log        zerolog.Logger
	httpServer *http.Server
}

// NewServer creates a new dispatch server
func NewServer(run RunFunc, config *Config, log zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{run: run, config: config, log: log}
}

// Handler builds the router. Exposed separately from Start for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware(s.config.APIKey))
		r.Post("/runs", s.handleRun)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Int("port", s.config.Port).Msg("starting run dispatch server")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains it on SIGINT/SIGTERM
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down run dispatch server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// RunRequest is the dispatch request body. Both fields are optional.
type RunRequest struct {
	Channel   string   `json:"channel,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// RunResponse wraps a successful run report
type RunResponse struct {
	Success bool             `json:"success"`
	Report  *pipeline.Report `json:"report"`
}

type errorResponse struct {
	Success    bool                 `json:"success"`
	Error      string               `json:"error"`
	Message    string               `json:"message"`
	Providers  []string             `json:"providers,omitempty"`
	Violations []validate.Violation `json:"violations,omitempty"`
	Version    string               `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "gpu-catalog",
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.jsonResponse(w, http.StatusBadRequest, errorResponse{
			Error:   "bad_request",
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	channel := req.Channel
	if channel == "" {
		channel = s.config.DefaultChannel
	}

	report, err := s.run(r.Context(), channel, req.Providers)
	if err != nil {
		s.runError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, RunResponse{Success: true, Report: report})
}

// runError maps the run error taxonomy onto HTTP statuses. Collection and
// archive failures are upstream problems, a denied catalog is unprocessable,
// and an alias failure carries the version so the caller can retry the alias.
func (s *Server) runError(w http.ResponseWriter, err error) {
	var completeness *pipeline.CompletenessError
	if errors.As(err, &completeness) {
		s.jsonResponse(w, http.StatusBadGateway, errorResponse{
			Error:     "collection_incomplete",
			Message:   err.Error(),
			Providers: completeness.Providers(),
		})
		return
	}

	var validation *validate.ValidationError
	if errors.As(err, &validation) {
		s.jsonResponse(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      "validation_failed",
			Message:    err.Error(),
			Violations: validation.Violations,
		})
		return
	}

	var archive *publish.ArchiveError
	if errors.As(err, &archive) {
		s.jsonResponse(w, http.StatusBadGateway, errorResponse{
			Error:   "archive_failed",
			Message: err.Error(),
			Version: archive.Version,
		})
		return
	}

	var alias *publish.AliasError
	if errors.As(err, &alias) {
		s.jsonResponse(w, http.StatusBadGateway, errorResponse{
			Error:   "alias_failed",
			Message: err.Error(),
			Version: alias.Version,
		})
		return
	}

	s.jsonResponse(w, http.StatusInternalServerError, errorResponse{
		Error:   "run_failed",
		Message: err.Error(),
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
