package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tangerg/ragorchestrator/internal/model"
)

func TestClassifySimpleShortIndicatorQuestion(t *testing.T) {
	require.Equal(t, model.BucketSimple, Classify("What is RAG?"))
}

func TestClassifyComplexIndicatorOverridesLength(t *testing.T) {
	require.Equal(t, model.BucketComplex, Classify("Compare A and B"))
}

func TestClassifyLongQuestionIsComplex(t *testing.T) {
	words := make([]string, 21)
	for i := range words {
		words[i] = "word"
	}
	require.Equal(t, model.BucketComplex, Classify(strings.Join(words, " ")))
}

func TestClassifyDefaultsToFast(t *testing.T) {
	require.Equal(t, model.BucketFast, Classify("Tell me something about the weather today"))
}

func TestClassifyTenTokenBoundaryRoutesSimple(t *testing.T) {
	// exactly 10 tokens, carries a simple indicator.
	q := "what is the best way to learn Python today now"
	require.Equal(t, 10, len(strings.Fields(q)))
	require.Equal(t, model.BucketSimple, Classify(q))
}

func TestClassifyElevenTokenBoundaryRoutesFast(t *testing.T) {
	// 11 tokens, same simple indicator prefix as the boundary case above.
	q := "what is the best way to learn Python today right now"
	require.Equal(t, 11, len(strings.Fields(q)))
	require.Equal(t, model.BucketFast, Classify(q))
}
