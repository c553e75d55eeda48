package dedupe

import (
	"testing"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	byHash        map[string]string
	byFingerprint map[string]string
	hashCalls     int
	fpCalls       int
}

func (g *fakeGraph) FindDocumentByContentHash(groupID, contentHash string) (string, error) {
	g.hashCalls++
	return g.byHash[groupID+"|"+contentHash], nil
}

func (g *fakeGraph) FindDocumentByFingerprint(groupID, fingerprint string) (string, error) {
	g.fpCalls++
	return g.byFingerprint[groupID+"|"+fingerprint], nil
}

type fakeEmbeddings struct {
	matches []EmbeddingMatch
	calls   int
}

func (e *fakeEmbeddings) SearchSimilar(groupID string, queryEmbedding []float32, nResults int) ([]EmbeddingMatch, error) {
	e.calls++
	return e.matches, nil
}

func TestCheck_ExactHashMatchShortCircuits(t *testing.T) {
	createdAt := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	hash := hashFor(t, "Apple Q1 Earnings", "Apple reported strong earnings.")
	graph := &fakeGraph{byHash: map[string]string{"g1|" + hash: "doc-original"}}

	result, err := Check("Apple Q1 Earnings", "Apple reported strong earnings.", "g1", graph, createdAt, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "doc-original", result.DuplicateOf)
	assert.Equal(t, MethodHash, result.Method)
	assert.Equal(t, 1.0, result.Score)
}

func TestCheck_FingerprintMatchWhenHashMisses(t *testing.T) {
	createdAt := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	fp := fingerprintFor(t, []string{"AAPL"}, "EARNINGS", createdAt)
	graph := &fakeGraph{
		byHash:        map[string]string{},
		byFingerprint: map[string]string{"g1|" + fp: "doc-original"},
	}
	extraction := &ExtractionHint{Tickers: []string{"aapl"}, EventType: "earnings"}

	result, err := Check("Apple beats estimates", "Different wording entirely.", "g1", graph, createdAt, extraction, nil)
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "doc-original", result.DuplicateOf)
	assert.Equal(t, MethodFingerprint, result.Method)
	assert.Equal(t, 1, graph.hashCalls)
	assert.Equal(t, 1, graph.fpCalls)
}

func TestCheck_CrossQuarterFingerprintDoesNotMatch(t *testing.T) {
	firstQuarter := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	muchLater := firstQuarter.AddDate(0, 0, 95) // ~95 days later, different quarter

	fpFirst := fingerprintFor(t, []string{"AAPL"}, "EARNINGS", firstQuarter)
	graph := &fakeGraph{
		byHash:        map[string]string{},
		byFingerprint: map[string]string{"g1|" + fpFirst: "doc-original"},
	}
	extraction := &ExtractionHint{Tickers: []string{"AAPL"}, EventType: "EARNINGS"}

	result, err := Check("Apple Q3 Earnings", "Unrelated content.", "g1", graph, muchLater, extraction, nil)
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, MethodNone, result.Method)
}

func TestCheck_EmbeddingMatchAboveThreshold(t *testing.T) {
	createdAt := time.Now()
	graph := &fakeGraph{}
	embeddings := &fakeEmbeddings{matches: []EmbeddingMatch{{DocID: "doc-semantic", Score: 0.91}}}
	opts := &Options{Embeddings: embeddings, QueryEmbedding: []float32{0.1, 0.2, 0.3}}

	result, err := Check("New title", "New content", "g1", graph, createdAt, nil, opts)
	require.NoError(t, err)
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "doc-semantic", result.DuplicateOf)
	assert.Equal(t, MethodEmbedding, result.Method)
	assert.Equal(t, 0.91, result.Score)
}

func TestCheck_EmbeddingMatchBelowThresholdIsNotDuplicate(t *testing.T) {
	createdAt := time.Now()
	graph := &fakeGraph{}
	embeddings := &fakeEmbeddings{matches: []EmbeddingMatch{{DocID: "doc-semantic", Score: 0.5}}}
	opts := &Options{Embeddings: embeddings, QueryEmbedding: []float32{0.1, 0.2, 0.3}}

	result, err := Check("New title", "New content", "g1", graph, createdAt, nil, opts)
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, MethodNone, result.Method)
}

func TestCheck_NoGraphOrEmbeddingsReturnsNone(t *testing.T) {
	result, err := Check("x", "y", "g1", nil, time.Now(), nil, nil)
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, MethodNone, result.Method)
}

func TestCheck_SkipsFingerprintStepWithoutExtractionHint(t *testing.T) {
	createdAt := time.Now()
	graph := &fakeGraph{byFingerprint: map[string]string{"anything": "doc-x"}}
	result, err := Check("x", "y", "g1", graph, createdAt, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.IsDuplicate)
	assert.Equal(t, 0, graph.fpCalls)
}

func hashFor(t *testing.T, title, content string) string {
	t.Helper()
	return domain.ComputeContentHash(title, content)
}

func fingerprintFor(t *testing.T, tickers []string, eventType string, createdAt time.Time) string {
	t.Helper()
	return domain.ComputeStoryFingerprint(tickers, eventType, createdAt)
}
