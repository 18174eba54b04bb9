// Package server exposes ranked workflows and the ingestion trigger over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/elonfeng/flowrank/internal/store"
	"github.com/elonfeng/flowrank/pkg/ingest"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Triggerer runs an ingestion pass.
type Triggerer interface {
	Trigger(ctx context.Context) ingest.Result
}

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	runner   Triggerer
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	port     int
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a new HTTP server. A nil runner disables the ingestion
// endpoint.
func New(s store.Store, runner Triggerer, port int, opts ...Option) *Server {
	if port == 0 {
		port = 8080
	}
	srv := &Server{
		store:  s,
		runner: runner,
		logger: zap.NewNop(),
		port:   port,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/workflows", s.handleWorkflows)
	mux.HandleFunc("/api/v1/workflows", s.handleWorkflows)
	mux.HandleFunc("/api/v1/workflow", s.handleWorkflow)
	mux.HandleFunc("/api/v1/platforms", s.handlePlatforms)
	mux.HandleFunc("/api/v1/ingest", s.handleIngest)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("flowrank server listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list workflows", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []workflow.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"count": len(records),
	})
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	platform, ok := workflow.ParsePlatform(q.Get("platform"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown platform %q", q.Get("platform")))
		return
	}
	key := workflow.Key{
		Name:     q.Get("name"),
		Platform: platform,
		Country:  strings.ToUpper(q.Get("country")),
	}
	if key.Name == "" || key.Country == "" {
		writeError(w, http.StatusBadRequest, "name and country are required")
		return
	}

	rec, err := s.store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("get workflow", zap.Stringer("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.store.CountByPlatform(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type platformInfo struct {
		Name      string `json:"name"`
		Workflows int    `json:"workflows"`
	}

	infos := make([]platformInfo, 0, len(workflow.AllPlatforms()))
	for _, p := range workflow.AllPlatforms() {
		infos = append(infos, platformInfo{Name: string(p), Workflows: counts[p]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	res := s.runner.Trigger(r.Context())
	s.logger.Info("ingestion triggered over http", zap.String("status", res.Status), zap.String("message", res.Message))

	status := http.StatusOK
	if res.Status != ingest.StatusSuccess {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func parseListOpts(r *http.Request) (store.ListOpts, error) {
	q := r.URL.Query()
	opts := store.ListOpts{Limit: defaultLimit}

	if v := q.Get("platform"); v != "" {
		p, ok := workflow.ParsePlatform(v)
		if !ok {
			return opts, fmt.Errorf("unknown platform %q", v)
		}
		opts.Platform = p
	}
	if v := q.Get("country"); v != "" {
		opts.Country = strings.ToUpper(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = min(n, maxLimit)
	}
	return opts, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
