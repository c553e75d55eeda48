package ingest

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gofr-iq/gofr-iq/internal/alias"
	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/obslog"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

type fakeChatEmbedder struct {
	chatResponse string
	chatErr      error
}

func (f *fakeChatEmbedder) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	return f.chatResponse, f.chatErr
}

func (f *fakeChatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return fakeEmbedding(text), nil
}

func (f *fakeChatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fakeEmbedding(t)
	}
	return out, nil
}

// fakeEmbedding derives a deterministic vector from a hash of text, so
// identical texts embed identically and distinct texts get unrelated
// vectors instead of near-parallel ones.
func fakeEmbedding(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, 4)
	for i := range v {
		v[i] = float32(int8(sum >> (8 * i)))
	}
	return v
}

const wellFormedExtraction = `{
	"impact_score": 80,
	"impact_tier": "GOLD",
	"events": [{"event_type": "EARNINGS", "confidence": 0.9}],
	"instruments": [{"ticker": "AAPL", "direction": "positive", "magnitude": 0.7}],
	"companies": ["Apple Inc"],
	"themes": ["ai"],
	"regions": ["US"],
	"sectors": ["TECH"],
	"summary": "Apple reports strong quarterly results."
}`

type testHarness struct {
	store   *docstore.Store
	sources *sourceregistry.Registry
	graph   *graphindex.Index
	vector  *vectorindex.Index
	aliases *alias.Resolver
	audit   *obslog.AuditService
	svc     *Service
	src     *domain.Source
}

func newHarness(t *testing.T, chat *fakeChatEmbedder) *testHarness {
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
	resolver := alias.New(graph, 0)
	audit, err := obslog.NewAuditService(dir)
	require.NoError(t, err)

	src, err := domain.NewSource("Reuters", domain.SourceNewsAgency, "group-1", "US", []string{"en"}, domain.TrustHigh)
	require.NoError(t, err)
	created, err := sources.Create(src, "group-1")
	require.NoError(t, err)

	var chatEmbedder ChatEmbedder
	if chat != nil {
		chatEmbedder = chat
	}

	svc := New(store, sources, graph, vector, resolver, chatEmbedder, audit, zap.NewNop().Sugar(), 0)
	return &testHarness{store: store, sources: sources, graph: graph, vector: vector, aliases: resolver, audit: audit, svc: svc, src: created}
}

func (h *testHarness) registerInstrument(t *testing.T, ticker, guid string) {
	t.Helper()
	require.NoError(t, h.graph.UpsertNode(guid, graphindex.LabelInstrument, ticker, map[string]any{"ticker": ticker}))
	normValue, normScheme := domain.NormalizeAliasKey(ticker, domain.SchemeTicker)
	require.NoError(t, h.graph.RegisterAlias("alias-"+guid, normValue, normScheme, guid))
}

func (h *testHarness) registerCompany(t *testing.T, name, guid string) {
	t.Helper()
	require.NoError(t, h.graph.UpsertNode(guid, graphindex.LabelCompany, strings.ToUpper(name), map[string]any{"name": name}))
	normValue, normScheme := domain.NormalizeAliasKey(name, domain.SchemeNameVariant)
	require.NoError(t, h.graph.RegisterAlias("alias-"+guid, normValue, normScheme, guid))
}

func (h *testHarness) registerEventType(t *testing.T, code, guid string) {
	t.Helper()
	require.NoError(t, h.graph.UpsertNode(guid, graphindex.LabelEventType, code, map[string]any{"code": code}))
}

func TestIngest_SuccessPathPersistsExtractsIndexesAndAudits(t *testing.T) {
	h := newHarness(t, &fakeChatEmbedder{chatResponse: wellFormedExtraction})
	h.registerInstrument(t, "AAPL", "inst-aapl")
	h.registerCompany(t, "Apple Inc", "comp-apple")
	h.registerEventType(t, "EARNINGS", "evt-earnings")

	result, err := h.svc.Ingest(context.Background(), "Apple beats estimates", "Apple reported quarterly earnings well above expectations today.", h.src.ID, "group-1", "", nil, []string{"group-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "en", result.Language)
	assert.NotEmpty(t, result.DocID)

	doc, err := h.store.Load(result.DocID, "group-1", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, doc.ImpactScore)
	assert.Equal(t, 80.0, *doc.ImpactScore)
	assert.Equal(t, []string{"ai"}, doc.Themes)

	count, err := h.vector.Count("group-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	related, err := h.graph.GetDocumentsMentioning("AAPL", 10)
	require.NoError(t, err)
	assert.Contains(t, related, result.DocID)

	logs, err := h.audit.GetAuditLog("documents", result.DocID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, obslog.EventDocumentIngest, logs[0].EventType)
}

func TestIngest_DuplicateByContentHashShortCircuits(t *testing.T) {
	h := newHarness(t, &fakeChatEmbedder{chatResponse: wellFormedExtraction})

	title := "Same headline every time"
	content := "Identical article body used to trigger an exact content hash match on re-ingest."

	first, err := h.svc.Ingest(context.Background(), title, content, h.src.ID, "group-1", "en", nil, []string{"group-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)

	second, err := h.svc.Ingest(context.Background(), title, content, h.src.ID, "group-1", "en", nil, []string{"group-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.Equal(t, first.DocID, second.DuplicateOf)

	dupeDoc, err := h.store.Load(second.DocID, "group-1", time.Time{})
	require.NoError(t, err)
	assert.True(t, dupeDoc.IsDuplicate())
}

func TestIngest_WordCountExceededFails(t *testing.T) {
	h := newHarness(t, nil)
	huge := strings.Repeat("word ", domain.MaxWordCount+10)

	result, err := h.svc.Ingest(context.Background(), "Too long", huge, h.src.ID, "group-1", "en", nil, []string{"group-1"})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	svcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, string(errs.CodeWordCountExceeded), svcErr.Code())
}

func TestIngest_ExtractionParseFailureDegradesButIngestSucceeds(t *testing.T) {
	h := newHarness(t, &fakeChatEmbedder{chatResponse: "not json"})

	result, err := h.svc.Ingest(context.Background(), "Headline", "Some unrelated article content that is long enough to detect language from reliably.", h.src.ID, "group-1", "en", nil, []string{"group-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)

	doc, err := h.store.Load(result.DocID, "group-1", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, doc.ImpactScore)
}

func TestIngest_RollsBackPersistedDocumentOnVectorFailure(t *testing.T) {
	h := newHarness(t, &fakeChatEmbedder{chatResponse: wellFormedExtraction})
	h.vector.Close() // force the vector indexing step to fail cleanly

	result, err := h.svc.Ingest(context.Background(), "Will fail at the vector step", "This article should be rolled back entirely once vector indexing fails.", h.src.ID, "group-1", "en", nil, []string{"group-1"})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)

	_, loadErr := h.store.Load(result.DocID, "group-1", time.Time{})
	assert.Error(t, loadErr, "rollback should have deleted the persisted document")

	exists, existsErr := h.graph.NodeExists(result.DocID)
	require.NoError(t, existsErr)
	assert.False(t, exists, "graph indexing should never have run after the earlier vector failure")
}

func TestValidate_ReportsWithoutPersisting(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.svc.Validate(context.Background(), "Headline", "Short but valid content for validation only, nothing gets written to disk.", h.src.ID, "group-1", "", []string{"group-1"})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.SourceValid)
	assert.True(t, result.WordCountValid)
	assert.False(t, result.IsDuplicate)

	docs, err := h.store.ListByGroup("group-1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, docs, "validate must not persist a document")
}

func TestBatchIngest_ProcessesAllItemsIndependently(t *testing.T) {
	h := newHarness(t, &fakeChatEmbedder{chatResponse: wellFormedExtraction})

	items := []BatchItem{
		{Title: "Batch one", Content: "First article body long enough for language detection to work.", SourceID: h.src.ID, GroupID: "group-1", Language: "en", AccessGroups: []string{"group-1"}},
		{Title: "Batch two", Content: "Second article body, distinct from the first one entirely.", SourceID: h.src.ID, GroupID: "group-1", Language: "en", AccessGroups: []string{"group-1"}},
		{Title: "Batch three: bad source", Content: "Third article references a source id that does not exist.", SourceID: "no-such-source", GroupID: "group-1", Language: "en", AccessGroups: []string{"group-1"}},
	}

	results := h.svc.BatchIngest(context.Background(), items, 2)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, StatusSuccess, results[0].Result.Status)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, StatusSuccess, results[1].Result.Status)
	assert.Error(t, results[2].Err, "unknown source should fail its own item without affecting the others")
	assert.Equal(t, StatusFailed, results[2].Result.Status)

	docs, err := h.store.ListByGroup("group-1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "only the two successful items should have persisted documents")
}

func TestValidate_FlagsInactiveSource(t *testing.T) {
	h := newHarness(t, nil)
	inactive, err := h.sources.Update(h.src.ID, "group-1", func(s *domain.Source) { s.Active = false })
	require.NoError(t, err)

	result, err := h.svc.Validate(context.Background(), "Headline", "Body text long enough for validation checks to run cleanly.", inactive.ID, "group-1", "en", []string{"group-1"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.SourceValid)
}
