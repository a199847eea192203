// Package registry holds the fixed set of LLM variants and the pure
// bucket->model routing table.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tangerg/ragorchestrator/internal/llm"
	"github.com/Tangerg/ragorchestrator/internal/model"
)

// Generator is the subset of the LLM adapter EnsureLoaded needs.
type Generator interface {
	GenerateBlocking(ctx context.Context, modelName, prompt string, opts llm.Options) (string, float64)
}

// Registry enumerates the four configured model variants and routes a
// complexity bucket to one of them. EnsureLoaded is guarded by a
// single process-wide mutex, not a per-model one, so two cold models
// never warm up concurrently.
type Registry struct {
	mu          sync.Mutex
	descriptors map[model.QualityTier]*model.ModelDescriptor
	generator   Generator
}

// New builds a Registry with one descriptor per tier, named by the
// given model names. Any tier left unset in names falls back to a
// tier-named placeholder model.
func New(generator Generator, names map[model.QualityTier]string) *Registry {
	descriptors := make(map[model.QualityTier]*model.ModelDescriptor, 4)
	for _, tier := range []model.QualityTier{
		model.TierUltraFast, model.TierFast, model.TierQuality, model.TierUltraQuality,
	} {
		name, ok := names[tier]
		if !ok || name == "" {
			name = string(tier)
		}
		descriptors[tier] = &model.ModelDescriptor{
			Name:        name,
			QualityTier: tier,
		}
	}
	return &Registry{
		descriptors: descriptors,
		generator:   generator,
	}
}

// Select maps a complexity bucket to the model name configured for
// the corresponding tier. Unknown buckets route to the fast tier.
func (r *Registry) Select(bucket model.ComplexityBucket) string {
	tier := model.TierFast
	switch bucket {
	case model.BucketSimple:
		tier = model.TierUltraFast
	case model.BucketFast:
		tier = model.TierFast
	case model.BucketBalanced:
		tier = model.TierQuality
	case model.BucketComplex:
		tier = model.TierUltraQuality
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.descriptors[tier].Name
}

// EnsureLoaded warms modelName if it has not already been loaded. It
// is idempotent and best-effort: failure leaves Loaded false and is
// surfaced to the caller as an error, but callers are expected to
// continue the request regardless.
func (r *Registry) EnsureLoaded(ctx context.Context, modelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := r.descriptorForNameLocked(modelName)
	if desc == nil || desc.Loaded {
		return nil
	}

	warmupOpts := llm.Options{
		Temperature: 0.1,
		NumPredict:  10,
	}
	text, _ := r.generator.GenerateBlocking(ctx, modelName, "Hello", warmupOpts)
	if strings.HasPrefix(text, "Error") {
		return errWarmupFailed(modelName)
	}

	desc.Loaded = true
	desc.LastUse = time.Now()
	return nil
}

func (r *Registry) descriptorForNameLocked(name string) *model.ModelDescriptor {
	for _, desc := range r.descriptors {
		if desc.Name == name {
			return desc
		}
	}
	return nil
}

// Descriptors returns a snapshot of all four configured descriptors.
func (r *Registry) Descriptors() []model.ModelDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Map(lo.Values(r.descriptors), func(d *model.ModelDescriptor, _ int) model.ModelDescriptor {
		return *d
	})
}

type warmupError struct {
	model string
}

func (e *warmupError) Error() string {
	return "model warm-up failed: " + e.model
}

func errWarmupFailed(modelName string) error {
	return &warmupError{model: modelName}
}
