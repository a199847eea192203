// Package httpapi is the ingress HTTP surface: POST /query, GET
// /healthz, GET /metrics. It implements lifecycle.Job so the
// composition root can start and stop it alongside the health monitor
// under one Runner.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tangerg/ragorchestrator/internal/health"
	"github.com/Tangerg/ragorchestrator/internal/metrics"
	"github.com/Tangerg/ragorchestrator/internal/model"
)

// Processor is the subset of the pipeline the server needs.
type Processor interface {
	ProcessQuery(ctx context.Context, req model.QueryRequest) model.QueryResult
}

// Targets carries the performance-grade thresholds used by GET
// /metrics.
type Targets = metrics.Targets

// Server is the ingress HTTP API.
type Server struct {
	addr      string
	pipeline  Processor
	metrics   *metrics.Metrics
	health    *health.Monitor
	targets   Targets
	cacheHits func() (hits, misses uint64)

	httpServer *http.Server
}

// New builds a Server. cacheHits supplies the cache's cumulative
// hit/miss counters for the /metrics snapshot.
func New(addr string, pipeline Processor, m *metrics.Metrics, h *health.Monitor, targets Targets, cacheHits func() (uint64, uint64)) *Server {
	return &Server{
		addr:      addr,
		pipeline:  pipeline,
		metrics:   m,
		health:    h,
		targets:   targets,
		cacheHits: cacheHits,
	}
}

// Start implements lifecycle.Job: it binds the listener in the
// background and returns immediately, logging a fatal error if the
// server exits unexpectedly.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ingress server exited", slog.String("error", err.Error()))
		}
	}()

	slog.Info("ingress server listening", slog.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down, giving in-flight requests up
// to five seconds to finish.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type queryPayload struct {
	Question   string `json:"question"`
	Collection string `json:"collection,omitempty"`
	K          int    `json:"k,omitempty"`
	Streaming  bool   `json:"streaming,omitempty"`
	TaskHint   string `json:"task_hint,omitempty"`
}

type passagePayload struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type queryResponsePayload struct {
	Question        string           `json:"question"`
	Answer          string           `json:"answer"`
	Passages        []passagePayload `json:"passages"`
	LatencySeconds  float64          `json:"latency_seconds"`
	ModelUsed       string           `json:"model_used,omitempty"`
	Confidence      float64          `json:"confidence,omitempty"`
	Success         bool             `json:"success"`
	ErrorKind       string           `json:"error_kind,omitempty"`
	CacheHit        bool             `json:"cache_hit"`
	Streaming       bool             `json:"streaming"`
	TokensPerSecond float64          `json:"tokens_per_second,omitempty"`
}

func toPassagePayloads(passages []model.ContextPassage) []passagePayload {
	out := make([]passagePayload, len(passages))
	for i, p := range passages {
		out[i] = passagePayload{Text: p.Text, Metadata: p.Metadata}
	}
	return out
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var payload queryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, queryResponsePayload{
			Success:   false,
			ErrorKind: string(model.ErrorInvalidInput),
		})
		return
	}

	req := model.QueryRequest{
		Question:   payload.Question,
		Collection: payload.Collection,
		K:          payload.K,
		Streaming:  payload.Streaming,
		TaskHint:   model.ComplexityBucket(payload.TaskHint),
	}

	result := s.pipeline.ProcessQuery(r.Context(), req)

	// Clients inspect "success", not the HTTP status; the status stays
	// 200 for any well-formed request, including a failed generation or
	// an empty question.
	writeJSON(w, http.StatusOK, queryResponsePayload{
		Question:        result.Question,
		Answer:          result.Answer,
		Passages:        toPassagePayloads(result.Passages),
		LatencySeconds:  result.LatencySeconds,
		ModelUsed:       result.ModelUsed,
		Confidence:      result.Confidence,
		Success:         result.Success,
		ErrorKind:       string(result.ErrorKind),
		CacheHit:        result.CacheHit,
		Streaming:       result.Streaming,
		TokensPerSecond: result.TokensPerSecond,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snapshot := s.health.Snapshot()
	allHealthy := true
	for _, status := range snapshot {
		if !status.Healthy {
			allHealthy = false
			break
		}
	}

	code := http.StatusOK
	if !allHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"healthy":  allHealthy,
		"services": snapshot,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.cacheHits()
	writeJSON(w, http.StatusOK, s.metrics.Snapshot(s.targets, hits, misses))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
