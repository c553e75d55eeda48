// Package vectorindex implements VectorIndex (spec.md §4.6): chunked
// embedding storage with cosine similarity search and metadata filters.
// Grounded on the teacher's internal/store/vector_store.go (chunk/embed/
// store flow) and its dual-path backend split in init_vec.go/vec_compat.go
// — this file is the pure-Go default path (modernc.org/sqlite, cosine
// computed in Go); accel_sqlite_vec.go is the optional cgo-accelerated
// ANN path behind the same sqlite_vec,cgo build tag the teacher uses.
package vectorindex

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/errs"
	_ "modernc.org/sqlite"
)

// Index is the SQLite-backed VectorIndex.
type Index struct {
	db     *sql.DB
	params ChunkParams
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes the chunk schema idempotently.
func Open(path string, params ChunkParams) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.VectorFailed(fmt.Errorf("open vector db: %w", err))
	}
	idx := &Index{db: db, params: params}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB,
	group_id TEXT NOT NULL,
	source_id TEXT,
	language TEXT,
	metadata TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_group_id ON chunks(group_id);
`
	if _, err := idx.db.Exec(schema); err != nil {
		return errs.VectorFailed(fmt.Errorf("migrate vector schema: %w", err))
	}
	return nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// EmbedDocument chunks content, embeds each chunk via embed, and upserts
// the resulting rows. Chunk ids are deterministic (<doc_id>_<index>) so
// re-embedding the same document overwrites its prior chunks (spec.md
// §4.6 "Upsert on re-embed").
func (idx *Index) EmbedDocument(docID, content, groupID, sourceID, language string, metadata map[string]any, embed func([]string) ([][]float32, error)) error {
	chunks := Chunk(content, idx.params)
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := embed(chunks)
	if err != nil {
		return errs.VectorFailed(fmt.Errorf("embed chunks for %s: %w", docID, err))
	}
	if len(vectors) != len(chunks) {
		return errs.VectorFailed(fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	metaJSON, err := flattenMetadata(metadata)
	if err != nil {
		return errs.Internal(err)
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return errs.VectorFailed(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
INSERT INTO chunks(chunk_id, doc_id, chunk_index, content, embedding, group_id, source_id, language, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
	content=excluded.content, embedding=excluded.embedding, group_id=excluded.group_id,
	source_id=excluded.source_id, language=excluded.language, metadata=excluded.metadata, created_at=excluded.created_at`)
	if err != nil {
		return errs.VectorFailed(fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s_%d", docID, i)
		if _, err := stmt.Exec(chunkID, docID, i, chunk, encodeEmbedding(vectors[i]), groupID, sourceID, language, metaJSON, now); err != nil {
			return errs.VectorFailed(fmt.Errorf("upsert chunk %s: %w", chunkID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.VectorFailed(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// SearchFilters restricts candidate chunks before scoring (spec.md §4.6
// "filtered by the intersection of provided filter sets").
type SearchFilters struct {
	GroupIDs  []string
	SourceIDs []string
	Languages []string
}

// SearchResult is one scored chunk (spec.md §4.6).
type SearchResult struct {
	DocID    string
	ChunkID  string
	Content  string
	Score    float64
	Metadata map[string]any
}

// Search scores every chunk matching filters against queryEmbedding by
// cosine similarity, returning the top nResults descending.
//
// VectorIndex takes a precomputed embedding rather than raw query text:
// embedding is an external-LLM-provider concern (internal/llmclient), and
// keeping VectorIndex provider-agnostic matches the teacher's own
// separation between internal/store (storage) and internal/embedding
// (provider calls) — QueryService embeds the query text once and passes
// the vector through.
func (idx *Index) Search(queryEmbedding []float32, nResults int, filters SearchFilters, includeContent bool) ([]SearchResult, error) {
	query := `SELECT chunk_id, doc_id, content, embedding, metadata FROM chunks WHERE 1=1`
	var args []any
	query, args = appendInFilter(query, args, "group_id", filters.GroupIDs)
	query, args = appendInFilter(query, args, "source_id", filters.SourceIDs)
	query, args = appendInFilter(query, args, "language", filters.Languages)

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, errs.VectorFailed(fmt.Errorf("search query: %w", err))
	}
	defer rows.Close()

	var scored []SearchResult
	for rows.Next() {
		var chunkID, docID, content, metaJSON string
		var embBlob []byte
		if err := rows.Scan(&chunkID, &docID, &content, &embBlob, &metaJSON); err != nil {
			return nil, errs.VectorFailed(fmt.Errorf("scan chunk row: %w", err))
		}
		vec := decodeEmbedding(embBlob)
		score := 1 - cosineDistance(queryEmbedding, vec)
		meta, _ := unflattenMetadata(metaJSON)
		res := SearchResult{DocID: docID, ChunkID: chunkID, Score: score, Metadata: meta}
		if includeContent {
			res.Content = content
		}
		scored = append(scored, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorFailed(fmt.Errorf("iterate chunk rows: %w", err))
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if nResults > 0 && len(scored) > nResults {
		scored = scored[:nResults]
	}
	return scored, nil
}

// DocumentMatch is one document-level semantic search hit: the best
// chunk score per document, collapsing the chunk-level Search results
// DuplicateDetector's embedding step doesn't need (spec.md §4.4 step 3).
type DocumentMatch struct {
	DocID string
	Score float64
}

// SearchSimilar scores documents in groupID against queryEmbedding and
// returns the top nResults by each document's best-scoring chunk. It
// adapts chunk-level Search to the document-level match DuplicateDetector
// needs for its embedding similarity pass.
func (idx *Index) SearchSimilar(groupID string, queryEmbedding []float32, nResults int) ([]DocumentMatch, error) {
	chunks, err := idx.Search(queryEmbedding, 0, SearchFilters{GroupIDs: []string{groupID}}, false)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64, len(chunks))
	for _, c := range chunks {
		if c.Score > best[c.DocID] {
			best[c.DocID] = c.Score
		}
	}
	matches := make([]DocumentMatch, 0, len(best))
	for docID, score := range best {
		matches = append(matches, DocumentMatch{DocID: docID, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if nResults > 0 && len(matches) > nResults {
		matches = matches[:nResults]
	}
	return matches, nil
}

// DeleteDocument removes all chunks for docID (used directly and for
// ingest rollback, spec.md §4.9 step 7c).
func (idx *Index) DeleteDocument(docID string) error {
	if _, err := idx.db.Exec(`DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return errs.VectorFailed(fmt.Errorf("delete document %s: %w", docID, err))
	}
	return nil
}

// GetDocumentChunks returns every chunk for docID ordered by chunk_index.
func (idx *Index) GetDocumentChunks(docID string) ([]SearchResult, error) {
	rows, err := idx.db.Query(`SELECT chunk_id, doc_id, content, metadata FROM chunks WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, errs.VectorFailed(fmt.Errorf("get document chunks: %w", err))
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var chunkID, dID, content, metaJSON string
		if err := rows.Scan(&chunkID, &dID, &content, &metaJSON); err != nil {
			return nil, errs.VectorFailed(fmt.Errorf("scan chunk row: %w", err))
		}
		meta, _ := unflattenMetadata(metaJSON)
		out = append(out, SearchResult{DocID: dID, ChunkID: chunkID, Content: content, Metadata: meta})
	}
	return out, rows.Err()
}

// Count returns the number of distinct documents indexed, optionally
// scoped to groupID.
func (idx *Index) Count(groupID string) (int, error) {
	var n int
	var err error
	if groupID != "" {
		err = idx.db.QueryRow(`SELECT COUNT(DISTINCT doc_id) FROM chunks WHERE group_id = ?`, groupID).Scan(&n)
	} else {
		err = idx.db.QueryRow(`SELECT COUNT(DISTINCT doc_id) FROM chunks`).Scan(&n)
	}
	if err != nil {
		return 0, errs.VectorFailed(fmt.Errorf("count documents: %w", err))
	}
	return n, nil
}

// Clear deletes every chunk. Used by test setup and administrative resets.
func (idx *Index) Clear() error {
	if _, err := idx.db.Exec(`DELETE FROM chunks`); err != nil {
		return errs.VectorFailed(fmt.Errorf("clear chunks: %w", err))
	}
	return nil
}

func appendInFilter(query string, args []any, column string, values []string) (string, []any) {
	if len(values) == 0 {
		return query, args
	}
	query += " AND " + column + " IN ("
	for i, v := range values {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, v)
	}
	query += ")"
	return query, args
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineDistance returns 1 - cosine_similarity, in [0,2], matching the
// teacher's vector_distance_cos SQL function semantics.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - sim
}

// flattenMetadata JSON-encodes metadata following spec.md §4.6: list/map
// values become JSON-encoded strings, scalars pass through.
func flattenMetadata(metadata map[string]any) (string, error) {
	flat := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch v.(type) {
		case []any, map[string]any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("flatten metadata key %q: %w", k, err)
			}
			flat[k] = string(encoded)
		default:
			flat[k] = v
		}
	}
	data, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("marshal flattened metadata: %w", err)
	}
	return string(data), nil
}

func unflattenMetadata(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
