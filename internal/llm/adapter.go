// Package llm wraps the "generate(model, prompt)" call to the local
// LLM runtime, in blocking and streaming modes. The streaming reader
// is a single context-aware Read method that returns io.EOF once the
// underlying transport closes.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Tangerg/ragorchestrator/internal/model"
)

// Doer is the subset of the shared HTTP client pool this adapter needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HealthStatus is the subset of health.Monitor this adapter needs to
// honor shorter timeouts once the LLM runtime has been observed
// unhealthy.
type HealthStatus interface {
	Status(name string) (model.ServiceStatus, bool)
}

// Options are the generation options sent to the runtime: a fixed
// temperature/top_p and a num_predict/stop set that differs between
// the blocking and streaming paths.
type Options struct {
	Temperature float64
	TopP        float64
	NumPredict  int
	Stop        []string
}

// BlockingOptions is the default option set for GenerateBlocking.
func BlockingOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.9,
		NumPredict:  50,
		Stop:        []string{"\n\n", "Question:", "Context:"},
	}
}

// StreamingOptions is the default option set for GenerateStreaming.
func StreamingOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.9,
		NumPredict:  100,
		Stop:        []string{"\n\n", "Question:", "Context:"},
	}
}

// Adapter issues generation requests against the LLM runtime.
type Adapter struct {
	baseURL string
	pool    Doer

	health           HealthStatus
	serviceName      string
	unhealthyTimeout time.Duration
}

// New builds an Adapter against baseURL (e.g. "http://localhost:11434").
func New(baseURL string, pool Doer) *Adapter {
	return &Adapter{baseURL: baseURL, pool: pool}
}

// WithHealth makes the adapter consult health for serviceName's last-
// observed status and, once it has been reported unhealthy, bound each
// generation call to unhealthyTimeout instead of whatever deadline the
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

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop"`
}

type generateChunk struct {
	Response     string `json:"response"`
	EvalCount    int64  `json:"eval_count"`
	EvalDuration int64  `json:"eval_duration"` // nanoseconds
}

func toWireOptions(o Options) generateOptions {
	return generateOptions{
		Temperature: o.Temperature,
		TopP:        o.TopP,
		NumPredict:  o.NumPredict,
		Stop:        o.Stop,
	}
}

// GenerateBlocking issues a non-streaming generation call and returns
// the response text plus the measured tokens-per-second (0 if the
// runtime omitted eval_count/eval_duration). On any HTTP non-200 or
// transport error it returns an "Error generating response: ..."
// string with 0 tokens/sec; the orchestrator treats that prefix as a
// generation failure.
func (a *Adapter) GenerateBlocking(ctx context.Context, modelName, prompt string, opts Options) (string, float64) {
	ctx, cancel := a.unhealthyDeadline(ctx)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:   modelName,
		Prompt:  prompt,
		Stream:  false,
		Options: toWireOptions(opts),
	})
	if err != nil {
		return fmt.Sprintf("Error generating response: %v", err), 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Error generating response: %v", err), 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.pool.Do(req)
	if err != nil {
		return fmt.Sprintf("Error generating response: %v", err), 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error generating response: HTTP %d", resp.StatusCode), 0
	}

	var chunk generateChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return fmt.Sprintf("Error generating response: %v", err), 0
	}

	tps := 0.0
	if chunk.EvalCount > 0 && chunk.EvalDuration > 0 {
		tps = float64(chunk.EvalCount) / (float64(chunk.EvalDuration) / 1e9)
	}
	return chunk.Response, tps
}

// ErrGenerateFailed is wrapped into the error GenerateStreaming returns
// when the runtime answers with a non-200 status. Transport errors are
// returned wrapped on their own, without it.
var ErrGenerateFailed = errors.New("llm generate request failed")

// ChunkReader yields successive text fragments from a streaming
// generation call. Read blocks until the next fragment is available,
// the context is cancelled, or the stream ends, returning io.EOF in
// the last case. It is a lazy, finite, non-restartable sequence; the
// caller may stop consuming early, at which point Close cancels the
// upstream request promptly.
type ChunkReader struct {
	body   io.ReadCloser
	scan   *bufio.Scanner
	cancel context.CancelFunc
}

// Read returns the next text fragment, or io.EOF once the runtime has
// closed the stream.
func (r *ChunkReader) Read(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if !r.scan.Scan() {
			if err := r.scan.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}

		line := bytes.TrimSpace(r.scan.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Response == "" {
			continue
		}
		return chunk.Response, nil
	}
}

// Close cancels the upstream request and releases the response body.
// Safe to call after the stream has already been fully consumed.
func (r *ChunkReader) Close() error {
	r.cancel()
	return r.body.Close()
}

// GenerateStreaming issues a streaming generation call and returns a
// ChunkReader over the response fragments. The caller must Close the
// reader once done, whether or not it was fully consumed.
func (a *Adapter) GenerateStreaming(ctx context.Context, modelName, prompt string, opts Options) (*ChunkReader, error) {
	ctx, healthCancel := a.unhealthyDeadline(ctx)
	reqCtx, cancel := context.WithCancel(ctx)
	cancelAll := func() {
		cancel()
		healthCancel()
	}

	body, err := json.Marshal(generateRequest{
		Model:   modelName,
		Prompt:  prompt,
		Stream:  true,
		Options: toWireOptions(opts),
	})
	if err != nil {
		cancelAll()
		return nil, fmt.Errorf("encode llm streaming request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		cancelAll()
		return nil, fmt.Errorf("build llm streaming request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.pool.Do(req)
	if err != nil {
		cancelAll()
		return nil, fmt.Errorf("llm streaming transport error: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancelAll()
		return nil, fmt.Errorf("%w: HTTP %d", ErrGenerateFailed, resp.StatusCode)
	}

	return &ChunkReader{
		body:   resp.Body,
		scan:   bufio.NewScanner(resp.Body),
		cancel: cancelAll,
	}, nil
}

// ConsumeAll drains a ChunkReader into a single string, respecting
// ctx cancellation.
func ConsumeAll(ctx context.Context, reader *ChunkReader) (string, error) {
	defer reader.Close()

	var buf bytes.Buffer
	for {
		frag, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}
		buf.WriteString(frag)
	}
}
