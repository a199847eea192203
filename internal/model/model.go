// Package model holds the request/response types shared across the
// orchestrator. None of these types carry behavior beyond small,
// side-effect-free helpers; most exist only for the duration of a
// single request.
package model

import "time"

// QualityTier is a closed enumeration of the four LLM quality/latency
// tiers the model registry keeps one descriptor for.
type QualityTier string

const (
	TierUltraFast    QualityTier = "ultra_fast"
	TierFast         QualityTier = "fast"
	TierQuality      QualityTier = "quality"
	TierUltraQuality QualityTier = "ultra_quality"
)

// ComplexityBucket is the output of the Query Classifier.
type ComplexityBucket string

const (
	BucketSimple   ComplexityBucket = "simple"
	BucketFast     ComplexityBucket = "fast"
	BucketBalanced ComplexityBucket = "balanced"
	BucketComplex  ComplexityBucket = "complex"
)

// RetrievalSource reports where ContextPassages came from.
type RetrievalSource string

const (
	SourceVectorStore RetrievalSource = "vector_store"
	SourceFallback    RetrievalSource = "fallback"
)

// ErrorKind classifies why a query failed.
type ErrorKind string

const (
	ErrorNone                 ErrorKind = ""
	ErrorInvalidInput         ErrorKind = "invalid_input"
	ErrorRetrievalUnavailable ErrorKind = "retrieval_unavailable"
	ErrorGeneration           ErrorKind = "generation_error"
	ErrorCancelled            ErrorKind = "cancelled"
	ErrorInternal             ErrorKind = "internal"
)

// ContextPassage is an opaque text passage retrieved from the vector
// store. Metadata is carried but never interpreted by the orchestrator.
type ContextPassage struct {
	Text     string
	Metadata map[string]any
}

// QueryRequest is the inbound request to ProcessQuery.
type QueryRequest struct {
	Question   string
	Collection string
	K          int
	Streaming  bool
	TaskHint   ComplexityBucket
}

// QueryResult is the outbound result of ProcessQuery.
type QueryResult struct {
	Question        string
	Answer          string
	Passages        []ContextPassage
	LatencySeconds  float64
	ModelUsed       string
	Confidence      float64
	Success         bool
	ErrorKind       ErrorKind
	CacheHit        bool
	Streaming       bool
	TokensPerSecond float64
}

// ModelDescriptor describes one configured LLM variant.
type ModelDescriptor struct {
	Name        string
	QualityTier QualityTier
	Loaded      bool
	LastUse     time.Time
}

// ServiceStatus is the health-monitor's view of one downstream service.
type ServiceStatus struct {
	Healthy             bool
	LastProbe           time.Time
	ConsecutiveFailures int
}

// PassageTexts extracts the plain text of a passage slice, in order.
// Used for cache-key fingerprinting and prompt assembly.
func PassageTexts(passages []ContextPassage) []string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return texts
}
