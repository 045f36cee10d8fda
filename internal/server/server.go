// Package server exposes build generation and FPS estimation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pcbuild-service/internal/catalog"
	errs "pcbuild-service/internal/common/errors"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/fps"
	"pcbuild-service/internal/negotiator"
)

const maxBodyBytes = 1 << 20

type Generator interface {
	Generate(ctx context.Context, budget int64) (*negotiator.Result, error)
}

type Estimator interface {
	Estimate(ctx context.Context, componentNames, gameNames []string) (map[string]string, error)
}

// Check is one readiness probe, e.g. a database ping.
type Check func(ctx context.Context) error

type Options struct {
	// Timeout bounds one negotiation or estimation. Zero means the request
	// context alone decides.
	Timeout      time.Duration
	CheckTimeout time.Duration
	Stats        func() catalog.Stats
	Checks       map[string]Check
	Version      string
}

type Server struct {
	generator Generator
	estimator Estimator
	opts      Options
	logger    logger.Logger
}

func New(generator Generator, estimator Estimator, opts Options, log logger.Logger) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 3 * time.Second
	}
	return &Server{
		generator: generator,
		estimator: estimator,
		opts:      opts,
		logger:    log.With(map[string]interface{}{"component": "http"}),
	}
}

// Routes builds the API mux wrapped in logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/build", instrument("/api/build", http.HandlerFunc(s.handleBuild)))
	mux.Handle("POST /api/fps", instrument("/api/fps", http.HandlerFunc(s.handleFPS)))
	mux.Handle("GET /api/catalog/stats", instrument("/api/catalog/stats", http.HandlerFunc(s.handleStats)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return logMiddleware(s.logger, mux)
}

type buildRequest struct {
	Budget *float64 `json:"budget"`
}

type fpsRequest struct {
	ComponentNames []string `json:"componentNames"`
	GameNames      []string `json:"gameNames"`
}

type fpsResponse struct {
	FPS map[string]string `json:"fps"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, errs.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Budget == nil {
		s.writeError(w, errs.NewInvalidBudgetError("budget is required"))
		return
	}
	budget, err := negotiator.CheckBudget(*req.Budget)
	if err != nil {
		s.writeError(w, errs.NewInvalidBudgetError(err.Error()))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.generator.Generate(ctx, budget)
	if err != nil {
		s.writeError(w, negotiator.StandardErrorFrom(err))
		return
	}

	s.logger.Info("Build generated", map[string]interface{}{
		"buildId":  result.BuildID,
		"attempts": result.Attempts,
		"total":    result.TotalPrice,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFPS(w http.ResponseWriter, r *http.Request) {
	var req fpsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, errs.NewInvalidRequestError(err.Error()))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	estimates, err := s.estimator.Estimate(ctx, req.ComponentNames, req.GameNames)
	if err != nil {
		s.writeError(w, fps.StandardErrorFrom(err))
		return
	}
	writeJSON(w, http.StatusOK, fpsResponse{FPS: estimates})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		s.writeError(w, errs.NewCatalogUnavailableError(fmt.Errorf("catalog not loaded")))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.opts.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// handleReady runs every check concurrently and reports each result.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckTimeout)
	defer cancel()

	results := make(map[string]string, len(s.opts.Checks))
	failures := make([]error, len(s.opts.Checks))
	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		check := s.opts.Checks[name]
		g.Go(func() error {
			failures[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	for i, name := range names {
		if failures[i] != nil {
			results[name] = failures[i].Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
		s.logger.Warn("Readiness check failed", map[string]interface{}{"checks": results})
	}
	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(r.Context(), s.opts.Timeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) writeError(w http.ResponseWriter, stdErr *errs.StandardError) {
	status := errs.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"code":    stdErr.Code,
			"details": stdErr.Details,
		})
	}
	writeJSON(w, status, stdErr)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
