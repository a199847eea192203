// Package classifier implements the cheap, pure question->bucket
// heuristic. Classify has no side effects and is deterministic for a
// given input.
package classifier

import (
	"strings"

	"github.com/samber/lo"

	"github.com/Tangerg/ragorchestrator/internal/model"
)

var simpleIndicators = []string{"what is", "define", "explain briefly", "yes/no", "true/false"}

var complexIndicators = []string{"analyze", "compare", "detailed", "comprehensive", "step by step"}

// Classify maps a question to a complexity bucket. Short questions
// carrying a definitional indicator are simple; long questions or ones
// carrying an analytical indicator are complex; everything else is
// fast. The simple-bucket boundary is inclusive: a 10-token question
// with an indicator is still simple, an 11-token one is not.
func Classify(question string) model.ComplexityBucket {
	lowered := strings.ToLower(question)
	tokenCount := len(strings.Fields(question))

	if tokenCount <= 10 && lo.SomeBy(simpleIndicators, func(kw string) bool {
		return strings.Contains(lowered, kw)
	}) {
		return model.BucketSimple
	}

	if tokenCount > 20 || lo.SomeBy(complexIndicators, func(kw string) bool {
		return strings.Contains(lowered, kw)
	}) {
		return model.BucketComplex
	}

	return model.BucketFast
}
