// Package pipeline implements the end-to-end request path: classify,
// route, retrieve, cache-lookup, generate, cache-store, respond. Every
// path ends in a well-formed QueryResult; no stage lets an error
// escape the request.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tangerg/ragorchestrator/internal/cache"
	"github.com/Tangerg/ragorchestrator/internal/classifier"
	"github.com/Tangerg/ragorchestrator/internal/config"
	"github.com/Tangerg/ragorchestrator/internal/llm"
	"github.com/Tangerg/ragorchestrator/internal/metrics"
	"github.com/Tangerg/ragorchestrator/internal/model"
	"github.com/Tangerg/ragorchestrator/internal/tokencount"
)

// VectorStore is the subset of the vector-store adapter the pipeline
// needs.
type VectorStore interface {
	Retrieve(ctx context.Context, question, collection string, k int) ([]model.ContextPassage, model.RetrievalSource)
}

// LLM is the subset of the LLM adapter the pipeline needs.
type LLM interface {
	GenerateBlocking(ctx context.Context, modelName, prompt string, opts llm.Options) (string, float64)
	GenerateStreaming(ctx context.Context, modelName, prompt string, opts llm.Options) (*llm.ChunkReader, error)
}

// Router is the subset of the model registry the pipeline needs.
type Router interface {
	Select(bucket model.ComplexityBucket) string
	EnsureLoaded(ctx context.Context, modelName string) error
}

// Pipeline wires the cache, retriever, router, and LLM adapter behind
// ProcessQuery.
type Pipeline struct {
	cfg         *config.Config
	cache       *cache.Cache
	vectorStore VectorStore
	llmAdapter  LLM
	router      Router
	metrics     *metrics.Metrics
	tokens      *tokencount.Estimator // optional, nil-safe
}

// New builds a Pipeline. tokens may be nil; token estimation is
// telemetry-only and its absence does not change result semantics.
func New(cfg *config.Config, c *cache.Cache, vs VectorStore, gen LLM, router Router, m *metrics.Metrics, tokens *tokencount.Estimator) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		cache:       c,
		vectorStore: vs,
		llmAdapter:  gen,
		router:      router,
		metrics:     m,
		tokens:      tokens,
	}
}

// ProcessQuery runs the full orchestration pipeline for req.
func (p *Pipeline) ProcessQuery(ctx context.Context, req model.QueryRequest) model.QueryResult {
	requestID := uuid.NewString()

	// An invalid request never reaches the clock, the counters,
	// retrieval, or generation.
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return model.QueryResult{
			Question:  req.Question,
			Success:   false,
			ErrorKind: model.ErrorInvalidInput,
		}
	}

	start := time.Now()
	p.metrics.RecordQueryStart()

	log := slog.With(slog.String("request_id", requestID))

	collection := req.Collection
	if collection == "" {
		collection = p.cfg.DefaultCollection
	}
	k := req.K
	if k <= 0 {
		k = p.cfg.DefaultTopK
	}
	if k > p.cfg.HardCapTopK {
		k = p.cfg.HardCapTopK
	}

	bucket := req.TaskHint
	if bucket == "" {
		bucket = classifier.Classify(question)
	}
	modelName := p.router.Select(bucket)

	// Retrieval gets its own deadline, not the pool's blanket
	// per-request timeout.
	retrieveCtx, cancelRetrieve := context.WithTimeout(ctx, p.cfg.VectorStoreTimeout)
	passages, source := p.vectorStore.Retrieve(retrieveCtx, question, collection, k)
	cancelRetrieve()
	if source == model.SourceFallback {
		log.Info("retrieval degraded to fallback", slog.String("collection", collection))
	}
	passageTexts := model.PassageTexts(passages)

	// Cache lookup happens even when passages are empty: identical
	// empty-context questions still hit on their empty-passage key.
	key := cache.Fingerprint(question, passageTexts)
	if cached, hit := p.cache.Lookup(key); hit {
		latency := time.Since(start).Seconds()
		p.metrics.RecordSuccess()
		p.metrics.RecordCacheHit()
		p.metrics.RecordLatency(latency)
		return model.QueryResult{
			Question:       req.Question,
			Answer:         cached,
			Passages:       passages,
			LatencySeconds: latency,
			ModelUsed:      modelName,
			Confidence:     0.95,
			Success:        true,
			CacheHit:       true,
			Streaming:      req.Streaming,
		}
	}

	// Generation and warm-up both talk to the LLM runtime, so both are
	// bounded by the same generation deadline.
	genCtx, cancelGen := context.WithTimeout(ctx, p.cfg.LLMGenerateTimeout)
	defer cancelGen()

	// Best-effort warm-up; failures never abort the request.
	if err := p.router.EnsureLoaded(genCtx, modelName); err != nil {
		log.Warn("model warm-up failed, continuing", slog.String("model", modelName), slog.String("error", err.Error()))
	}

	contextText := "No relevant context found."
	if len(passageTexts) > 0 {
		contextText = strings.Join(passageTexts, "\n")
	}
	prompt := "Context: " + contextText + "\n\nQuestion: " + question + "\nAnswer:"

	if p.tokens != nil {
		log.Info("prompt assembled", slog.Int("prompt_tokens_estimate", p.tokens.EstimateText(prompt)))
	}

	var answer string
	var tokensPerSecond float64
	if req.Streaming {
		p.metrics.RecordStreaming()
		answer, tokensPerSecond = p.generateStreaming(genCtx, modelName, prompt, log)
	} else {
		answer, tokensPerSecond = p.llmAdapter.GenerateBlocking(genCtx, modelName, prompt, llm.BlockingOptions())
	}

	latency := time.Since(start).Seconds()
	p.metrics.RecordLatency(latency)

	if answer == "" || strings.HasPrefix(answer, "Error") {
		// A caller that went away is not a generation failure and does
		// not count against failed_queries.
		kind := model.ErrorGeneration
		if ctx.Err() != nil {
			kind = model.ErrorCancelled
		} else {
			p.metrics.RecordFailure()
		}
		return model.QueryResult{
			Question:       req.Question,
			Passages:       passages,
			LatencySeconds: latency,
			ModelUsed:      modelName,
			Success:        false,
			ErrorKind:      kind,
			Streaming:      req.Streaming,
		}
	}

	p.cache.Store(key, answer)
	p.metrics.RecordSuccess()

	confidence := float64(len(answer)) / 100
	if confidence > 0.9 {
		confidence = 0.9
	}

	return model.QueryResult{
		Question:        req.Question,
		Answer:          answer,
		Passages:        passages,
		LatencySeconds:  latency,
		ModelUsed:       modelName,
		Confidence:      confidence,
		Success:         true,
		Streaming:       req.Streaming,
		TokensPerSecond: tokensPerSecond,
	}
}

// generateStreaming concatenates the streamed fragments in order,
// cancelling the upstream request if the caller's context ends early.
// Tokens-per-second is always 0 on the streaming path.
func (p *Pipeline) generateStreaming(ctx context.Context, modelName, prompt string, log *slog.Logger) (string, float64) {
	reader, err := p.llmAdapter.GenerateStreaming(ctx, modelName, prompt, llm.StreamingOptions())
	if err != nil {
		return fmt.Sprintf("Error generating response: %v", err), 0
	}

	text, err := llm.ConsumeAll(ctx, reader)
	if err != nil {
		log.Warn("streaming generation ended early", slog.String("error", err.Error()))
		if text == "" {
			return fmt.Sprintf("Error generating response: %v", err), 0
		}
	}
	return text, 0
}
