// Package metrics maintains the orchestrator's lifetime counters and
// derives the performance-grade snapshot. Counters are a struct of
// atomic integers behind no lock, exposed through a read-only
// Snapshot.
package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// Metrics accumulates counters for the lifetime of the process.
type Metrics struct {
	startedAt time.Time

	queriesProcessed  atomic.Int64
	successfulQueries atomic.Int64
	failedQueries     atomic.Int64
	cacheHits         atomic.Int64
	streamingQueries  atomic.Int64

	totalLatencySeconds atomic.Uint64 // bits of a float64, see addLatency
	maxLatencySeconds   atomic.Uint64

	lastHealthCheck atomic.Int64 // unix nano; 0 if never run
}

// New returns a fresh Metrics with process_start set to now.
func New() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordQueryStart increments queries_processed.
func (m *Metrics) RecordQueryStart() {
	m.queriesProcessed.Add(1)
}

// RecordSuccess increments successful_queries.
func (m *Metrics) RecordSuccess() {
	m.successfulQueries.Add(1)
}

// RecordFailure increments failed_queries.
func (m *Metrics) RecordFailure() {
	m.failedQueries.Add(1)
}

// RecordCacheHit increments cache_hits.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordStreaming increments streaming_queries.
func (m *Metrics) RecordStreaming() {
	m.streamingQueries.Add(1)
}

// RecordLatency accumulates latencySeconds into the running sum and
// tracks the maximum observed latency.
func (m *Metrics) RecordLatency(latencySeconds float64) {
	for {
		old := m.totalLatencySeconds.Load()
		next := math.Float64frombits(old) + latencySeconds
		if m.totalLatencySeconds.CompareAndSwap(old, math.Float64bits(next)) {
			break
		}
	}
	for {
		old := m.maxLatencySeconds.Load()
		oldV := math.Float64frombits(old)
		if latencySeconds <= oldV {
			break
		}
		if m.maxLatencySeconds.CompareAndSwap(old, math.Float64bits(latencySeconds)) {
			break
		}
	}
}

// RecordHealthCheck records at as last_health_check.
func (m *Metrics) RecordHealthCheck(at time.Time) {
	m.lastHealthCheck.Store(at.UnixNano())
}

// Grade is the derived performance tier reported in the snapshot.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeD     Grade = "D"
)

// Targets are the three thresholds the grade is computed against.
type Targets struct {
	AvgLatencySeconds   float64
	CacheHitRatePercent float64
	SuccessRatePercent  float64
}

// Snapshot is the derived, point-in-time metrics view.
type Snapshot struct {
	UptimeSeconds       float64 `json:"uptime_seconds"`
	QueriesProcessed    int64   `json:"queries_processed"`
	SuccessfulQueries   int64   `json:"successful_queries"`
	FailedQueries       int64   `json:"failed_queries"`
	CacheHits           int64   `json:"cache_hits"`
	StreamingQueries    int64   `json:"streaming_queries"`
	SuccessRatePercent  float64 `json:"success_rate_percent"`
	CacheHitRatePercent float64 `json:"cache_hit_rate_percent"`
	AvgResponseTimeS    float64 `json:"avg_response_time_s"`
	MaxResponseTimeS    float64 `json:"max_response_time_s"`
	LastHealthCheckUnix int64   `json:"last_health_check_unix"`
	PerformanceGrade    Grade   `json:"performance_grade"`
}

// Snapshot computes the derived view used by the /metrics endpoint.
// The CacheHits field reports the counter fed by RecordCacheHit.
// cacheHits/cacheMisses come from the cache's own hit/miss counters
// and feed only the hit rate, so that rate is computed against total
// cache lookups rather than total queries.
func (m *Metrics) Snapshot(targets Targets, cacheHits, cacheMisses uint64) Snapshot {
	processed := m.queriesProcessed.Load()
	successful := m.successfulQueries.Load()
	failed := m.failedQueries.Load()
	streaming := m.streamingQueries.Load()

	successRate := 0.0
	if processed > 0 {
		successRate = float64(successful) / float64(processed) * 100
	}

	totalLookups := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if totalLookups > 0 {
		cacheHitRate = float64(cacheHits) / float64(totalLookups) * 100
	}

	avgLatency := 0.0
	if processed > 0 {
		avgLatency = math.Float64frombits(m.totalLatencySeconds.Load()) / float64(processed)
	}

	snap := Snapshot{
		UptimeSeconds:       time.Since(m.startedAt).Seconds(),
		QueriesProcessed:    processed,
		SuccessfulQueries:   successful,
		FailedQueries:       failed,
		CacheHits:           m.cacheHits.Load(),
		StreamingQueries:    streaming,
		SuccessRatePercent:  successRate,
		CacheHitRatePercent: cacheHitRate,
		AvgResponseTimeS:    avgLatency,
		MaxResponseTimeS:    math.Float64frombits(m.maxLatencySeconds.Load()),
		LastHealthCheckUnix: m.lastHealthCheck.Load(),
	}
	snap.PerformanceGrade = grade(snap, targets)
	return snap
}

// grade counts how many of the three targets are met and maps that
// count to a letter grade: A+ for all three, A for two, B for one, D
// otherwise.
func grade(snap Snapshot, targets Targets) Grade {
	met := 0
	if snap.AvgResponseTimeS <= targets.AvgLatencySeconds {
		met++
	}
	if snap.SuccessRatePercent >= targets.SuccessRatePercent {
		met++
	}
	if snap.CacheHitRatePercent >= targets.CacheHitRatePercent {
		met++
	}

	switch met {
	case 3:
		return GradeAPlus
	case 2:
		return GradeA
	case 1:
		return GradeB
	default:
		return GradeD
	}
}
