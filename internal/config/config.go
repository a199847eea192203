// Package config reads orchestrator configuration from the
// environment. Nothing here is required: every field has a working
// default, and env vars only override.
package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Config holds every tunable the orchestrator recognizes. It is read
// once at process start and handed to each component's constructor.
type Config struct {
	VectorStoreBaseURL string
	LLMBaseURL         string

	DefaultCollection string
	DefaultTopK       int
	HardCapTopK       int

	PoolMaxConnsTotal   int
	PoolMaxConnsPerHost int
	PoolDNSCacheTTL     time.Duration
	PoolRequestTimeout  time.Duration

	VectorStoreTimeout time.Duration
	LLMGenerateTimeout time.Duration
	HealthProbeTimeout time.Duration
	HealthInterval     time.Duration

	// Shorter deadlines adapters fall back to once the health monitor
	// has observed the corresponding downstream service as unhealthy.
	VectorStoreUnhealthyTimeout time.Duration
	LLMUnhealthyTimeout         time.Duration

	CacheCapacity int

	HTTPListenAddr string

	AvgLatencyTargetSeconds float64
	MaxLatencyTargetSeconds float64
	CacheHitRateTarget      float64
	SuccessRateTarget       float64
}

// Default returns the built-in configuration before any environment
// override is applied.
func Default() *Config {
	return &Config{
		VectorStoreBaseURL: "http://localhost:8000",
		LLMBaseURL:         "http://localhost:11434",

		DefaultCollection: "rag_documents_collection",
		DefaultTopK:       3,
		HardCapTopK:       10,

		PoolMaxConnsTotal:   200,
		PoolMaxConnsPerHost: 50,
		PoolDNSCacheTTL:     300 * time.Second,
		PoolRequestTimeout:  5 * time.Second,

		VectorStoreTimeout: 3 * time.Second,
		LLMGenerateTimeout: 30 * time.Second,
		HealthProbeTimeout: 2 * time.Second,
		HealthInterval:     30 * time.Second,

		VectorStoreUnhealthyTimeout: 1 * time.Second,
		LLMUnhealthyTimeout:         10 * time.Second,

		CacheCapacity: 2000,

		HTTPListenAddr: ":8080",

		AvgLatencyTargetSeconds: 0.02,
		MaxLatencyTargetSeconds: 0.05,
		CacheHitRateTarget:      80.0,
		SuccessRateTarget:       99.0,
	}
}

// FromEnv returns Default() with every recognized environment
// variable applied as an override. Malformed values are ignored and
// fall back to the default, since no configuration is required to
// start the process.
func FromEnv() *Config {
	c := Default()

	overrideString(&c.VectorStoreBaseURL, "RAG_VECTOR_STORE_URL")
	overrideString(&c.LLMBaseURL, "RAG_LLM_URL")
	overrideString(&c.DefaultCollection, "RAG_DEFAULT_COLLECTION")
	overrideString(&c.HTTPListenAddr, "RAG_HTTP_LISTEN_ADDR")

	overrideInt(&c.DefaultTopK, "RAG_DEFAULT_TOP_K")
	overrideInt(&c.HardCapTopK, "RAG_HARD_CAP_TOP_K")
	overrideInt(&c.PoolMaxConnsTotal, "RAG_POOL_MAX_CONNS")
	overrideInt(&c.PoolMaxConnsPerHost, "RAG_POOL_MAX_CONNS_PER_HOST")
	overrideInt(&c.CacheCapacity, "RAG_CACHE_CAPACITY")

	overrideDuration(&c.PoolDNSCacheTTL, "RAG_POOL_DNS_CACHE_TTL")
	overrideDuration(&c.PoolRequestTimeout, "RAG_POOL_REQUEST_TIMEOUT")
	overrideDuration(&c.VectorStoreTimeout, "RAG_VECTOR_STORE_TIMEOUT")
	overrideDuration(&c.LLMGenerateTimeout, "RAG_LLM_GENERATE_TIMEOUT")
	overrideDuration(&c.HealthProbeTimeout, "RAG_HEALTH_PROBE_TIMEOUT")
	overrideDuration(&c.HealthInterval, "RAG_HEALTH_INTERVAL")
	overrideDuration(&c.VectorStoreUnhealthyTimeout, "RAG_VECTOR_STORE_UNHEALTHY_TIMEOUT")
	overrideDuration(&c.LLMUnhealthyTimeout, "RAG_LLM_UNHEALTHY_TIMEOUT")

	return c
}

func overrideString(dst *string, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	*dst = v
}

func overrideInt(dst *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return
	}
	*dst = i
}

func overrideDuration(dst *time.Duration, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return
	}
	*dst = d
}
