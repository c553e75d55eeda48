// Package dedupe implements DuplicateDetector (spec.md §4.4): a
// short-circuit hash → fingerprint → embedding-similarity check run
// ahead of persisting a new document. Check depends on the GraphLookup
// and EmbeddingLookup interfaces rather than on internal/graphindex
// directly, mirroring the cyclic-import avoidance pattern used between
// internal/sourceregistry and internal/graphindex (GraphMirror) and
// internal/alias (GraphLookup). VectorIndexAdapter (vectoradapter.go) is
// the one place that imports internal/vectorindex, adapting its results
// to EmbeddingLookup.
package dedupe

import (
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
)

// DefaultSimilarityThreshold is the minimum cosine similarity an
// embedding match needs to count as a duplicate (spec.md §4.4 step 3).
const DefaultSimilarityThreshold = 0.85

// Method names the duplicate-detection step that produced a match.
type Method string

const (
	MethodHash        Method = "hash"
	MethodFingerprint Method = "fingerprint"
	MethodEmbedding   Method = "embedding"
	MethodNone        Method = "none"
)

// GraphLookup is the subset of GraphIndex DuplicateDetector needs.
// graphindex.Index satisfies this structurally.
type GraphLookup interface {
	FindDocumentByContentHash(groupID, contentHash string) (string, error)
	FindDocumentByFingerprint(groupID, fingerprint string) (string, error)
}

// EmbeddingMatch is one semantic-search hit against group-scoped history.
type EmbeddingMatch struct {
	DocID string
	Score float64
}

// EmbeddingLookup is the subset of VectorIndex DuplicateDetector needs.
// vectorindex.Index satisfies it through VectorIndexAdapter, which
// converts its DocumentMatch results, given a precomputed query
// embedding (VectorIndex is embedding-provider agnostic; see
// internal/vectorindex's package doc).
type EmbeddingLookup interface {
	SearchSimilar(groupID string, queryEmbedding []float32, nResults int) ([]EmbeddingMatch, error)
}

// ExtractionHint supplies the fields DuplicateDetector needs from an
// in-flight extraction to compute the story fingerprint (spec.md §4.4
// step 2). A nil hint (or empty Tickers/EventType) skips that step.
type ExtractionHint struct {
	Tickers   []string
	EventType string
}

// Result is DuplicateDetector's check outcome (spec.md §4.4).
type Result struct {
	IsDuplicate bool
	DuplicateOf string
	Score       float64
	Method      Method
}

// Options configures an optional embedding similarity pass. QueryEmbedding
// is the precomputed embedding for title+content; a nil or empty vector
// disables step 3 even if Embeddings is configured.
type Options struct {
	Embeddings          EmbeddingLookup
	QueryEmbedding      []float32
	SimilarityThreshold float64
}

// Check runs the four-step short-circuit algorithm: exact content_hash
// match, then story_fingerprint match, then embedding similarity above
// threshold, then no match. graph may be nil (skips steps 1-2); opts may
// be nil or have a nil Embeddings (skips step 3).
func Check(title, content, groupID string, graph GraphLookup, createdAt time.Time, extraction *ExtractionHint, opts *Options) (Result, error) {
	contentHash := domain.ComputeContentHash(title, content)

	if graph != nil {
		docID, err := graph.FindDocumentByContentHash(groupID, contentHash)
		if err != nil {
			return Result{}, err
		}
		if docID != "" {
			return Result{IsDuplicate: true, DuplicateOf: docID, Score: 1.0, Method: MethodHash}, nil
		}
	}

	if graph != nil && extraction != nil && len(extraction.Tickers) > 0 && extraction.EventType != "" {
		fingerprint := domain.ComputeStoryFingerprint(extraction.Tickers, extraction.EventType, createdAt)
		docID, err := graph.FindDocumentByFingerprint(groupID, fingerprint)
		if err != nil {
			return Result{}, err
		}
		if docID != "" {
			return Result{IsDuplicate: true, DuplicateOf: docID, Score: 1.0, Method: MethodFingerprint}, nil
		}
	}

	if opts != nil && opts.Embeddings != nil && len(opts.QueryEmbedding) > 0 {
		threshold := opts.SimilarityThreshold
		if threshold <= 0 {
			threshold = DefaultSimilarityThreshold
		}
		matches, err := opts.Embeddings.SearchSimilar(groupID, opts.QueryEmbedding, 1)
		if err != nil {
			return Result{}, err
		}
		if len(matches) > 0 && matches[0].Score >= threshold {
			return Result{IsDuplicate: true, DuplicateOf: matches[0].DocID, Score: matches[0].Score, Method: MethodEmbedding}, nil
		}
	}

	return Result{IsDuplicate: false, Method: MethodNone}, nil
}
