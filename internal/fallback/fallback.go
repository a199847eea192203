// Package fallback holds the compile-time keyword->snippet table used
// when the vector store is unreachable. It is read-only after
// initialization and entirely side-effect free.
package fallback

import "strings"

// orderedKeywords preserves lookup precedence: the first keyword found
// in the lowercased question wins.
var orderedKeywords = []string{
	"machine learning",
	"docker",
	"python",
	"vector database",
	"rag",
}

var table = map[string][]string{
	"machine learning": {"ML enables computers to learn from data without explicit programming."},
	"docker":           {"Docker containers package applications with dependencies for consistent deployment."},
	"python":           {"Python is a high-level programming language known for simplicity and readability."},
	"vector database":  {"Vector databases store high-dimensional vectors for similarity search."},
	"rag":              {"RAG combines retrieval and generation for accurate AI responses."},
}

var generic = []string{"General knowledge context for query processing."}

// Lookup returns the snippets grounding question, falling back to a
// generic single-element list when no keyword matches.
func Lookup(question string) []string {
	lowered := strings.ToLower(question)
	for _, keyword := range orderedKeywords {
		if strings.Contains(lowered, keyword) {
			return table[keyword]
		}
	}
	return generic
}
