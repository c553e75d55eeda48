package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "vector.db"), ChunkParams{ChunkSize: 50, ChunkOverlap: 10, MinChunkSize: 1})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// fakeEmbed returns vectors[i] for chunk i when given and {1, 0, 0}
// otherwise, deterministic by chunk index so similarity ordering in tests
// is predictable.
func fakeEmbed(vectors map[int][]float32) func([]string) ([][]float32, error) {
	return func(chunks []string) ([][]float32, error) {
		out := make([][]float32, len(chunks))
		for i := range chunks {
			if v, ok := vectors[i]; ok {
				out[i] = v
				continue
			}
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}
}

func TestEmbedDocumentThenSearch_ReturnsMostSimilarFirst(t *testing.T) {
	idx := openTestIndex(t)

	err := idx.EmbedDocument("doc-1", "short content", "group-a", "src-1", "en", nil, fakeEmbed(map[int][]float32{0: {1, 0, 0}}))
	require.NoError(t, err)
	err = idx.EmbedDocument("doc-2", "other content", "group-a", "src-1", "en", nil, fakeEmbed(map[int][]float32{0: {0, 1, 0}}))
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0, 0}, 10, SearchFilters{}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSearch_FiltersByGroup(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.EmbedDocument("doc-1", "alpha", "group-a", "src-1", "en", nil, fakeEmbed(nil)))
	require.NoError(t, idx.EmbedDocument("doc-2", "beta", "group-b", "src-1", "en", nil, fakeEmbed(nil)))

	results, err := idx.Search([]float32{1, 0, 0}, 10, SearchFilters{GroupIDs: []string{"group-a"}}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].DocID)
	assert.Empty(t, results[0].Content)
}

func TestEmbedDocument_ReembedUpsertsChunks(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.EmbedDocument("doc-1", "first version", "group-a", "src-1", "en", nil, fakeEmbed(nil)))
	require.NoError(t, idx.EmbedDocument("doc-1", "second version", "group-a", "src-1", "en", nil, fakeEmbed(nil)))

	chunks, err := idx.GetDocumentChunks("doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "second version", chunks[0].Content)
}

func TestDeleteDocument_RemovesAllChunks(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.EmbedDocument("doc-1", "content to delete", "group-a", "src-1", "en", nil, fakeEmbed(nil)))

	require.NoError(t, idx.DeleteDocument("doc-1"))

	chunks, err := idx.GetDocumentChunks("doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCount_ScopesToGroup(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.EmbedDocument("doc-1", "content a", "group-a", "src-1", "en", nil, fakeEmbed(nil)))
	require.NoError(t, idx.EmbedDocument("doc-2", "content b", "group-b", "src-1", "en", nil, fakeEmbed(nil)))

	n, err := idx.Count("group-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := idx.Count("")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestClear_RemovesEverything(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.EmbedDocument("doc-1", "content", "group-a", "src-1", "en", nil, fakeEmbed(nil)))

	require.NoError(t, idx.Clear())

	n, err := idx.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEmbedDocument_FlattensListAndMapMetadata(t *testing.T) {
	idx := openTestIndex(t)
	meta := map[string]any{
		"tickers": []any{"AAPL", "MSFT"},
		"nested":  map[string]any{"k": "v"},
		"scalar":  "ok",
	}
	require.NoError(t, idx.EmbedDocument("doc-1", "content", "group-a", "src-1", "en", meta, fakeEmbed(nil)))

	chunks, err := idx.GetDocumentChunks("doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ok", chunks[0].Metadata["scalar"])
	assert.IsType(t, "", chunks[0].Metadata["tickers"])
	assert.IsType(t, "", chunks[0].Metadata["nested"])
}

func TestCosineDistance_IdenticalVectorsZero(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
}

func TestCosineDistance_OrthogonalVectorsOne(t *testing.T) {
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
}
