package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tangerg/ragorchestrator/internal/cache"
	"github.com/Tangerg/ragorchestrator/internal/config"
	"github.com/Tangerg/ragorchestrator/internal/llm"
	"github.com/Tangerg/ragorchestrator/internal/metrics"
	"github.com/Tangerg/ragorchestrator/internal/model"
)

type fakeVectorStore struct {
	passages []model.ContextPassage
	source   model.RetrievalSource
	calls    int
}

func (f *fakeVectorStore) Retrieve(ctx context.Context, question, collection string, k int) ([]model.ContextPassage, model.RetrievalSource) {
	f.calls++
	return f.passages, f.source
}

type fakeLLM struct {
	blockingAnswer string
	blockingTPS    float64
	streamFrags    []string
	streamErr      error
	blockingCalls  int
	lastPrompt     string
}

func (f *fakeLLM) GenerateBlocking(ctx context.Context, modelName, prompt string, opts llm.Options) (string, float64) {
	f.blockingCalls++
	f.lastPrompt = prompt
	return f.blockingAnswer, f.blockingTPS
}

func (f *fakeLLM) GenerateStreaming(ctx context.Context, modelName, prompt string, opts llm.Options) (*llm.ChunkReader, error) {
	return nil, f.streamErr
}

type fakeRouter struct {
	model           string
	ensureLoadedErr error
	ensureCalls     int
	lastBucket      model.ComplexityBucket
}

func (f *fakeRouter) Select(bucket model.ComplexityBucket) string {
	f.lastBucket = bucket
	return f.model
}

func (f *fakeRouter) EnsureLoaded(ctx context.Context, modelName string) error {
	f.ensureCalls++
	return f.ensureLoadedErr
}

func newTestPipeline(vs VectorStore, gen LLM, router Router) (*Pipeline, *cache.Cache, *metrics.Metrics) {
	cfg := config.Default()
	c := cache.New(10)
	m := metrics.New()
	p := New(cfg, c, vs, gen, router, m, nil)
	return p, c, m
}

func TestProcessQueryInvalidInputShortCircuits(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{}
	router := &fakeRouter{model: "phi3"}
	p, _, m := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "   "})

	require.False(t, result.Success)
	require.Equal(t, model.ErrorInvalidInput, result.ErrorKind)
	require.Equal(t, 0, vs.calls)
	require.Equal(t, 0, gen.blockingCalls)

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(0), snap.QueriesProcessed, "invalid input must not increment queries_processed")
}

func TestProcessQueryColdMissHappyPath(t *testing.T) {
	vs := &fakeVectorStore{
		passages: []model.ContextPassage{{Text: "RAG combines retrieval and generation."}},
		source:   model.SourceVectorStore,
	}
	gen := &fakeLLM{blockingAnswer: "RAG stands for retrieval augmented generation.", blockingTPS: 12.5}
	router := &fakeRouter{model: "phi3"}
	p, c, m := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?"})

	require.True(t, result.Success)
	require.Equal(t, gen.blockingAnswer, result.Answer)
	require.Equal(t, "phi3", result.ModelUsed)
	require.False(t, result.CacheHit)
	require.Equal(t, 1, router.ensureCalls)
	require.Contains(t, gen.lastPrompt, "Context: RAG combines retrieval and generation.")
	require.True(t, strings.HasSuffix(gen.lastPrompt, "\nAnswer:"))
	require.Equal(t, 1, c.Len(), "successful generation should be cached")

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(1), snap.QueriesProcessed)
	require.Equal(t, int64(1), snap.SuccessfulQueries)
}

func TestProcessQueryWarmCacheHit(t *testing.T) {
	vs := &fakeVectorStore{
		passages: []model.ContextPassage{{Text: "p1"}},
		source:   model.SourceVectorStore,
	}
	gen := &fakeLLM{blockingAnswer: "first answer"}
	router := &fakeRouter{model: "phi3"}
	p, _, m := newTestPipeline(vs, gen, router)

	first := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?"})
	require.True(t, first.Success)
	require.False(t, first.CacheHit)

	second := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?"})
	require.True(t, second.Success)
	require.True(t, second.CacheHit)
	require.Equal(t, "first answer", second.Answer)
	require.Equal(t, 0.95, second.Confidence)
	require.Equal(t, 1, gen.blockingCalls, "cache hit must not call the generator again")

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(1), snap.CacheHits)
}

func TestProcessQueryNoPassagesUsesNoContextPlaceholder(t *testing.T) {
	vs := &fakeVectorStore{passages: nil, source: model.SourceFallback}
	gen := &fakeLLM{blockingAnswer: "an answer"}
	router := &fakeRouter{model: "phi3"}
	p, _, _ := newTestPipeline(vs, gen, router)

	_ = p.ProcessQuery(context.Background(), model.QueryRequest{Question: "anything"})
	require.Contains(t, gen.lastPrompt, "Context: No relevant context found.")
}

func TestProcessQueryGenerationFailureReportsGenerationError(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{blockingAnswer: "Error generating response: upstream down"}
	router := &fakeRouter{model: "phi3"}
	p, c, m := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?"})

	require.False(t, result.Success)
	require.Equal(t, model.ErrorGeneration, result.ErrorKind)
	require.Equal(t, 0, c.Len(), "a failed generation must not be cached")

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(1), snap.FailedQueries)
}

func TestProcessQueryWarmupFailureStillGenerates(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{blockingAnswer: "answer despite cold model"}
	router := &fakeRouter{model: "phi3", ensureLoadedErr: errBoom()}
	p, _, _ := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?"})
	require.True(t, result.Success)
	require.Equal(t, "answer despite cold model", result.Answer)
}

func TestProcessQueryStreamingUsesStreamingPath(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{streamErr: errBoom()}
	router := &fakeRouter{model: "phi3"}
	p, _, m := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{Question: "What is RAG?", Streaming: true})

	require.True(t, result.Streaming)
	require.False(t, result.Success, "streaming adapter error should surface as a generation failure")

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(1), snap.StreamingQueries)
}

func TestProcessQueryCancelledCallerIsNotAGenerationFailure(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{blockingAnswer: "Error generating response: context canceled"}
	router := &fakeRouter{model: "phi3"}
	p, _, m := newTestPipeline(vs, gen, router)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := p.ProcessQuery(ctx, model.QueryRequest{Question: "What is RAG?"})

	require.False(t, result.Success)
	require.Equal(t, model.ErrorCancelled, result.ErrorKind)

	snap := m.Snapshot(metrics.Targets{}, 0, 0)
	require.Equal(t, int64(0), snap.FailedQueries, "a cancelled caller must not count against failed_queries")
}

func TestProcessQueryTaskHintOverridesClassifier(t *testing.T) {
	vs := &fakeVectorStore{}
	gen := &fakeLLM{blockingAnswer: "answer"}
	router := &fakeRouter{model: "ultra-quality-model"}
	p, _, _ := newTestPipeline(vs, gen, router)

	result := p.ProcessQuery(context.Background(), model.QueryRequest{
		Question: "What is RAG?",
		TaskHint: model.BucketComplex,
	})
	require.True(t, result.Success)
	require.Equal(t, model.BucketComplex, router.lastBucket, "the hint, not the classifier's simple bucket, reaches the router")
	require.Equal(t, "ultra-quality-model", result.ModelUsed)
}

func errBoom() error {
	return &boomError{}
}

type boomError struct{}

func (e *boomError) Error() string { return "boom" }
