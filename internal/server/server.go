// Package server provides the HTTP server for the mepd daemon.
//
// # SOAP Endpoint
//
// POST {basePath}/soap - Receives inbound SOAP 1.2 envelopes and dispatches
// them to the engine. Synchronous replies are written on the response.
//
// # Inspection API
//
//   - GET /api/exchanges              - Live exchanges (filter by operation, state)
//   - GET /api/exchanges/{id}         - A live or archived exchange
//   - GET /api/archive                - Archived exchanges, newest first
//   - GET /api/operations             - Operation descriptors and phase lists
//   - PUT /api/operations/{name}/phases/{flow} - Replace a flow's phase list
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe (engine running, archive reachable)
//   - GET /metrics - Prometheus metrics (if enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-soapmep/internal/config"
	"github.com/sirosfoundation/go-soapmep/internal/metrics"
	"github.com/sirosfoundation/go-soapmep/internal/storage"
	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/transport"
)

// Dependencies are the components the server exposes
type Dependencies struct {
	Engine     *engine.Engine
	Operations *operation.Registry
	Store      storage.Store
	Metrics    *metrics.Collector
}

// Server is the mepd HTTP server
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	httpSrv    *http.Server
	engine     *engine.Engine
	operations *operation.Registry
	store      storage.Store
	metrics    *metrics.Collector
}

// New creates a new server
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if deps.Operations == nil {
		return nil, errors.New("server: operation registry is required")
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:     cfg,
		logger:     logger.With("component", "server"),
		engine:     deps.Engine,
		operations: deps.Operations,
		store:      deps.Store,
		metrics:    deps.Metrics,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	basePath := strings.TrimSuffix(s.config.Server.BasePath, "/")

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.Handle("POST "+basePath+"/soap", transport.NewHandler(s.engine, s.logger))

	mux.HandleFunc("GET /api/exchanges", s.handleListExchanges)
	mux.HandleFunc("GET /api/exchanges/{id}", s.handleGetExchange)
	mux.HandleFunc("GET /api/archive", s.handleListArchive)
	mux.HandleFunc("GET /api/operations", s.handleListOperations)
	mux.HandleFunc("PUT /api/operations/{name}/phases/{flow}", s.handleSetPhases)

	if s.config.Metrics.Metrics.Enabled && s.metrics != nil {
		metricsHandler := promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})
		mux.Handle("GET "+s.config.Metrics.Metrics.Path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.metrics.UpdateUptime()
			metricsHandler.ServeHTTP(w, r)
		}))
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Running() {
		s.jsonError(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonError(w, "archive not ready", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// Exchange handlers

func filterFromQuery(r *http.Request) *storage.ExchangeFilter {
	q := r.URL.Query()
	filter := &storage.ExchangeFilter{
		Operation: q.Get("operation"),
		State:     q.Get("state"),
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}
	return filter
}

func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	records := []exchange.Record{}
	for _, rec := range s.engine.Exchanges() {
		if filter.Matches(&rec) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	s.jsonResponse(w, map[string]interface{}{
		"exchanges": records,
		"total":     len(records),
	}, http.StatusOK)
}

func (s *Server) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if c, err := s.engine.Exchange(id); err == nil {
		s.jsonResponse(w, c.Snapshot(), http.StatusOK)
		return
	}

	rec, err := s.store.GetExchange(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.jsonError(w, "exchange not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to get exchange", "exchange_id", id, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, rec, http.StatusOK)
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	records, err := s.store.ListExchanges(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list exchanges", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*exchange.Record{}
	}

	total, _ := s.store.CountExchanges(r.Context(), filter)

	s.jsonResponse(w, map[string]interface{}{
		"exchanges": records,
		"total":     total,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	}, http.StatusOK)
}

// Operation handlers

type operationView struct {
	Name     string              `json:"name"`
	MEP      string              `json:"mep"`
	Actions  []string            `json:"actions,omitempty"`
	Endpoint string              `json:"endpoint,omitempty"`
	Phases   map[string][]string `json:"phases"`
	InUse    int                 `json:"inUse"`
}

func viewOf(d *operation.Descriptor) operationView {
	v := operationView{
		Name:     d.Name(),
		MEP:      d.Variant().URI(),
		Actions:  d.Actions(),
		Endpoint: d.Endpoint(),
		Phases:   make(map[string][]string),
		InUse:    d.InUse(),
	}
	for _, flow := range d.Flows() {
		if ids := d.PhaseList(flow); len(ids) > 0 {
			v.Phases[flow.String()] = ids
		}
	}
	return v
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	views := []operationView{}
	for _, d := range s.operations.List() {
		views = append(views, viewOf(d))
	}
	s.jsonResponse(w, map[string]interface{}{"operations": views}, http.StatusOK)
}

func (s *Server) handleSetPhases(w http.ResponseWriter, r *http.Request) {
	d, err := s.operations.Get(r.PathValue("name"))
	if err != nil {
		s.jsonError(w, "operation not found", http.StatusNotFound)
		return
	}
	flow, ok := message.ParseDirection(r.PathValue("flow"))
	if !ok {
		s.jsonError(w, "unknown flow", http.StatusBadRequest)
		return
	}

	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := d.SetPhaseList(flow, ids); err != nil {
		switch {
		case errors.Is(err, operation.ErrDescriptorInUse):
			s.jsonError(w, err.Error(), http.StatusConflict)
		default:
			s.jsonError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	s.logger.Info("phase list replaced", "operation", d.Name(), "flow", flow.String(), "phases", ids)
	s.jsonResponse(w, viewOf(d), http.StatusOK)
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, msg string, status int) {
	s.jsonResponse(w, map[string]string{"error": msg}, status)
}
