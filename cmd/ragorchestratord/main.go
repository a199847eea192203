// Command ragorchestratord is the composition root: it wires every
// component built under internal/ and runs the ingress server and
// health monitor until a termination signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Tangerg/ragorchestrator/internal/cache"
	"github.com/Tangerg/ragorchestrator/internal/config"
	"github.com/Tangerg/ragorchestrator/internal/health"
	"github.com/Tangerg/ragorchestrator/internal/httpapi"
	"github.com/Tangerg/ragorchestrator/internal/httpclient"
	"github.com/Tangerg/ragorchestrator/internal/lifecycle"
	"github.com/Tangerg/ragorchestrator/internal/llm"
	"github.com/Tangerg/ragorchestrator/internal/metrics"
	"github.com/Tangerg/ragorchestrator/internal/model"
	"github.com/Tangerg/ragorchestrator/internal/pipeline"
	"github.com/Tangerg/ragorchestrator/internal/registry"
	"github.com/Tangerg/ragorchestrator/internal/tokencount"
	"github.com/Tangerg/ragorchestrator/internal/vectorstore"
)

// Exit codes: 0 clean shutdown, 1 fatal startup error, 2 unrecoverable
// runtime panic.
const (
	exitOK             = 0
	exitStartupFailure = 1
	exitRuntimePanic   = 2
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fatal panic", slog.Any("recover", r))
			code = exitRuntimePanic
		}
	}()

	cfg := config.FromEnv()

	pool := httpclient.New(httpclient.Options{
		MaxConnsTotal:   cfg.PoolMaxConnsTotal,
		MaxConnsPerHost: cfg.PoolMaxConnsPerHost,
		DNSCacheTTL:     cfg.PoolDNSCacheTTL,
		RequestTimeout:  cfg.PoolRequestTimeout,
	})

	vsAdapter := vectorstore.New(cfg.VectorStoreBaseURL, pool)
	llmAdapter := llm.New(cfg.LLMBaseURL, pool)
	responseCache := cache.New(cfg.CacheCapacity)
	m := metrics.New()

	const (
		serviceVectorStore = "vector_store"
		serviceLLM         = "llm"
	)
	healthTargets := []health.Target{
		{Name: serviceVectorStore, URL: cfg.VectorStoreBaseURL + "/heartbeat"},
		{Name: serviceLLM, URL: cfg.LLMBaseURL + "/api/tags"},
	}
	monitor := health.New(pool, healthTargets, cfg.HealthInterval, cfg.HealthProbeTimeout, func() {
		m.RecordHealthCheck(time.Now())
	})

	// Adapters honor a shorter deadline once the monitor has observed
	// their service as unhealthy, rather than waiting out the caller's
	// full per-call timeout.
	vsAdapter.WithHealth(monitor, serviceVectorStore, cfg.VectorStoreUnhealthyTimeout)
	llmAdapter.WithHealth(monitor, serviceLLM, cfg.LLMUnhealthyTimeout)

	modelNames := map[model.QualityTier]string{
		model.TierUltraFast:    "tinyllama",
		model.TierFast:         "phi3:mini",
		model.TierQuality:      "llama3:8b",
		model.TierUltraQuality: "llama3:70b",
	}
	modelRegistry := registry.New(llmAdapter, modelNames)

	estimator, err := tokencount.NewCL100KBase()
	if err != nil {
		slog.Warn("token estimator unavailable, telemetry will omit prompt token counts", slog.String("error", err.Error()))
		estimator = nil
	}

	pipe := pipeline.New(cfg, responseCache, vsAdapter, llmAdapter, modelRegistry, m, estimator)

	perfTargets := metrics.Targets{
		AvgLatencySeconds:   cfg.AvgLatencyTargetSeconds,
		CacheHitRatePercent: cfg.CacheHitRateTarget,
		SuccessRatePercent:  cfg.SuccessRateTarget,
	}
	server := httpapi.New(cfg.HTTPListenAddr, pipe, m, monitor, perfTargets, responseCache.Stats)

	runner := lifecycle.New(monitor, server)

	// The server's graceful Shutdown drains in-flight requests before
	// Run returns, so closing the pool here closes idle sockets only.
	err = runner.Run(context.Background())
	pool.Close()
	if err != nil {
		slog.Error("orchestrator exited with errors", slog.String("error", err.Error()))
		return exitStartupFailure
	}

	fmt.Println("ragorchestratord stopped cleanly")
	return exitOK
}
