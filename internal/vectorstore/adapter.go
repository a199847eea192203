// Package vectorstore wraps the "query top-k passages for question"
// call to the external vector store. It never blocks indefinitely and
// never fails the request as a whole: retrieval failure degrades to
// the fallback table, not to an error response.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tangerg/ragorchestrator/internal/fallback"
	"github.com/Tangerg/ragorchestrator/internal/model"
)

// Doer is the subset of the shared HTTP client pool this adapter
// needs. Narrow interface so tests can substitute a stub without
// constructing a real Pool.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HealthStatus is the subset of health.Monitor this adapter needs to
// honor shorter timeouts once a service has been observed unhealthy.
type HealthStatus interface {
	Status(name string) (model.ServiceStatus, bool)
}

// Adapter retrieves grounding passages for a question.
type Adapter struct {
	baseURL string
	pool    Doer

	health           HealthStatus
	serviceName      string
	unhealthyTimeout time.Duration
}

// New builds an Adapter against baseURL (e.g. "http://localhost:8000").
func New(baseURL string, pool Doer) *Adapter {
	return &Adapter{baseURL: baseURL, pool: pool}
}

// WithHealth makes the adapter consult health for serviceName's last-
// observed status and, once it has been reported unhealthy, bound each
// retrieval call to unhealthyTimeout instead of whatever deadline the
// caller's context already carries. Returns the adapter for chaining.
func (a *Adapter) WithHealth(health HealthStatus, serviceName string, unhealthyTimeout time.Duration) *Adapter {
	a.health = health
	a.serviceName = serviceName
	a.unhealthyTimeout = unhealthyTimeout
	return a
}

// unhealthyDeadline shortens ctx to a.unhealthyTimeout when the
// configured service has been observed unhealthy by the health
// monitor. Callers must invoke the returned cancel func.
func (a *Adapter) unhealthyDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.health == nil {
		return ctx, func() {}
	}
	status, ok := a.health.Status(a.serviceName)
	if !ok || status.Healthy {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.unhealthyTimeout)
}

type queryRequest struct {
	QueryTexts []string `json:"query_texts"`
	NResults   int      `json:"n_results"`
}

type queryResponse struct {
	Documents [][]string `json:"documents"`
}

// Retrieve fetches up to k passages for question from collection. On
// any non-200 response, transport error, or context cancellation it
// falls back to the keyword table rather than returning an error; a
// missing collection behaves the same as any other non-200 status.
func (a *Adapter) Retrieve(ctx context.Context, question, collection string, k int) ([]model.ContextPassage, model.RetrievalSource) {
	ctx, cancel := a.unhealthyDeadline(ctx)
	defer cancel()

	passages, err := a.query(ctx, question, collection, k)
	if err != nil {
		slog.Warn("vector store retrieval failed, using fallback",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		return toPassages(fallback.Lookup(question)), model.SourceFallback
	}
	return toPassages(passages), model.SourceVectorStore
}

func (a *Adapter) query(ctx context.Context, question, collection string, k int) ([]string, error) {
	body, err := json.Marshal(queryRequest{
		QueryTexts: []string{question},
		NResults:   k,
	})
	if err != nil {
		return nil, fmt.Errorf("encode vector store request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/query", a.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build vector store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.pool.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector store transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector store returned HTTP %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode vector store response: %w", err)
	}
	if len(decoded.Documents) == 0 {
		return nil, nil
	}
	return decoded.Documents[0], nil
}

func toPassages(texts []string) []model.ContextPassage {
	passages := make([]model.ContextPassage, len(texts))
	for i, t := range texts {
		passages[i] = model.ContextPassage{Text: t}
	}
	return passages
}
