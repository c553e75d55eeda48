package dedupe

import "github.com/gofr-iq/gofr-iq/internal/vectorindex"

// VectorIndexAdapter wraps a *vectorindex.Index to satisfy EmbeddingLookup,
// converting its document-level matches to this package's EmbeddingMatch
// shape. Kept in its own file so dedupe.go itself stays free of any
// direct VectorIndex import, matching the cyclic-import-avoidance
// convention used between internal/sourceregistry and internal/graphindex.
type VectorIndexAdapter struct {
	Index *vectorindex.Index
}

func (a VectorIndexAdapter) SearchSimilar(groupID string, queryEmbedding []float32, nResults int) ([]EmbeddingMatch, error) {
	matches, err := a.Index.SearchSimilar(groupID, queryEmbedding, nResults)
	if err != nil {
		return nil, err
	}
	out := make([]EmbeddingMatch, len(matches))
	for i, m := range matches {
		out[i] = EmbeddingMatch{DocID: m.DocID, Score: m.Score}
	}
	return out, nil
}
