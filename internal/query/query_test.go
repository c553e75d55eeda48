package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text) % 7), 1, 0}, nil
}

func newTestService(t *testing.T) (*Service, *docstore.Store, *vectorindex.Index, *graphindex.Index, *sourceregistry.Registry) {
	t.Helper()
	dir := t.TempDir()

	store := docstore.New(dir)
	graph, err := graphindex.Open(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })

	vector, err := vectorindex.Open(filepath.Join(dir, "vector.db"), vectorindex.ChunkParams{ChunkSize: 200, ChunkOverlap: 20, MinChunkSize: 10})
	require.NoError(t, err)
	t.Cleanup(func() { vector.Close() })

	sources := sourceregistry.New(dir, graph)
	src, err := domain.NewSource("Reuters", domain.SourceNewsAgency, "group-1", "US", []string{"en"}, domain.TrustHigh)
	require.NoError(t, err)
	_, err = sources.Create(src, "group-1")
	require.NoError(t, err)

	svc := New(vector, graph, store, sources, fakeEmbedder{})
	return svc, store, vector, graph, sources
}

func embedFn(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t) % 7), 1, 0}
	}
	return out, nil
}

func makeDoc(t *testing.T, store *docstore.Store, vector *vectorindex.Index, title, content, sourceID, groupID string, impactScore float64) *domain.Document {
	t.Helper()
	doc, err := domain.NewDocument(title, content, sourceID, groupID, "en", false, map[string]any{})
	require.NoError(t, err)
	doc.ImpactScore = &impactScore
	tier := domain.ImpactTierForScore(impactScore)
	doc.ImpactTier = &tier
	require.NoError(t, store.Save(doc))
	require.NoError(t, vector.EmbedDocument(doc.ID, doc.Content, doc.GroupID, doc.SourceID, doc.Language, map[string]any{"title": doc.Title}, embedFn))
	return doc
}

func TestQuery_EmptyGroupIDsReturnsEmptyResult(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	resp, err := svc.Query(context.Background(), "anything", nil, 10, Filters{}, DefaultWeights, 0, true, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestQuery_ReturnsSemanticHitsWithScoreBreakdown(t *testing.T) {
	svc, store, vector, _, sources := newTestService(t)
	srcs, err := sources.ListSources("group-1", "", "", false)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	doc := makeDoc(t, store, vector, "Quarterly results", "A detailed report on the company's quarterly performance.", srcs[0].ID, "group-1", 70)

	resp, err := svc.Query(context.Background(), "quarterly performance report", []string{"group-1"}, 10, Filters{}, DefaultWeights, 0, false, false)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, doc.ID, resp.Results[0].DocID)
	assert.Equal(t, DiscoveredSemantic, resp.Results[0].DiscoveredVia)
	assert.Greater(t, resp.Results[0].Score, 0.0)
	assert.Equal(t, domain.TrustHigh.BoostFactor(), resp.Results[0].Breakdown.SourceBoost)
}

func TestQuery_FiltersByMinImpactScore(t *testing.T) {
	svc, store, vector, _, _ := newTestService(t)
	makeDoc(t, store, vector, "Low impact filing", "A routine administrative filing with minimal significance.", "src-1", "group-1", 10)

	min := 50.0
	resp, err := svc.Query(context.Background(), "routine filing", []string{"group-1"}, 10, Filters{MinImpactScore: &min}, DefaultWeights, 0, false, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestQuery_ExcludesDuplicatesByDefault(t *testing.T) {
	svc, store, vector, _, _ := newTestService(t)
	doc, err := domain.NewDocument("Dup title", "Duplicate article content long enough for indexing purposes.", "src-1", "group-1", "en", false, nil)
	require.NoError(t, err)
	marked, err := doc.MarkDuplicate("some-other-doc-id", 0.95)
	require.NoError(t, err)
	require.NoError(t, store.Save(marked))
	require.NoError(t, vector.EmbedDocument(marked.ID, marked.Content, marked.GroupID, marked.SourceID, marked.Language, map[string]any{"title": marked.Title}, embedFn))

	resp, err := svc.Query(context.Background(), "duplicate article content", []string{"group-1"}, 10, Filters{}, DefaultWeights, 0, false, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	resp2, err := svc.Query(context.Background(), "duplicate article content", []string{"group-1"}, 10, Filters{}, DefaultWeights, 0, false, true)
	require.NoError(t, err)
	assert.Len(t, resp2.Results, 1)
}

func TestQuery_BadWeightsFallBackToDefault(t *testing.T) {
	bad := Weights{Semantic: 5, Trust: 0, Recency: 0, Graph: 0}
	assert.Equal(t, DefaultWeights, bad.normalizedOrDefault())
}

func TestRecencyDecay_HalvesAtHalfLife(t *testing.T) {
	createdAt := time.Now().UTC().Add(-60 * time.Minute)
	assert.InDelta(t, 0.5, recencyDecay(createdAt, 60), 0.01)
}
