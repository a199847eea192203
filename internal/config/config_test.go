package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasNoMissingFields(t *testing.T) {
	c := Default()
	require.Equal(t, "http://localhost:8000", c.VectorStoreBaseURL)
	require.Equal(t, "http://localhost:11434", c.LLMBaseURL)
	require.Equal(t, 3, c.DefaultTopK)
	require.Equal(t, 10, c.HardCapTopK)
	require.Equal(t, 2000, c.CacheCapacity)
}

func TestFromEnvOverridesRecognizedVars(t *testing.T) {
	t.Setenv("RAG_DEFAULT_COLLECTION", "custom_collection")
	t.Setenv("RAG_DEFAULT_TOP_K", "7")
	t.Setenv("RAG_POOL_REQUEST_TIMEOUT", "2500ms")

	c := FromEnv()
	require.Equal(t, "custom_collection", c.DefaultCollection)
	require.Equal(t, 7, c.DefaultTopK)
	require.Equal(t, 2500*time.Millisecond, c.PoolRequestTimeout)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RAG_DEFAULT_TOP_K", "not-a-number")

	c := FromEnv()
	require.Equal(t, Default().DefaultTopK, c.DefaultTopK)
}

func TestFromEnvLeavesUnsetFieldsAtDefault(t *testing.T) {
	c := FromEnv()
	require.Equal(t, Default().HardCapTopK, c.HardCapTopK)
	require.Equal(t, Default().HTTPListenAddr, c.HTTPListenAddr)
}
