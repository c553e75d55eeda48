package graphindex

import (
	"path/filepath"
	"testing"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestUpsertNode_EnforcesNaturalKeyForTypedLabels(t *testing.T) {
	idx := openTestIndex(t)
	err := idx.UpsertNode("guid-1", LabelInstrument, "", map[string]any{"ticker": "AAPL"})
	require.Error(t, err)

	err = idx.UpsertNode("guid-1", LabelInstrument, "AAPL", map[string]any{"ticker": "AAPL"})
	require.NoError(t, err)
}

func TestUpsertNode_NaturalKeyUniquenessConflictsOnSecondInsert(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("guid-1", LabelInstrument, "AAPL", nil))
	require.NoError(t, idx.UpsertNode("guid-1", LabelInstrument, "AAPL", map[string]any{"name": "Apple"}))

	exists, err := idx.NodeExists("guid-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateDocumentNode_SkipsMissingPeripheralEdges(t *testing.T) {
	idx := openTestIndex(t)
	doc, err := domain.NewDocument("Title", "Some body text here.", "src-missing", "group-missing", "en", false, nil)
	require.NoError(t, err)

	require.NoError(t, idx.CreateDocumentNode(doc))

	exists, err := idx.NodeExists(doc.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateMentionEdge_RejectsPhantomEntity(t *testing.T) {
	idx := openTestIndex(t)
	doc, err := domain.NewDocument("Title", "Some body text here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(doc))

	err = idx.CreateMentionEdge(doc.ID, RelMentions, "ghost-instrument-guid", 1.0)
	require.Error(t, err)
}

func TestCreateMentionEdge_SucceedsForResolvedEntity(t *testing.T) {
	idx := openTestIndex(t)
	doc, err := domain.NewDocument("Title", "Some body text here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(doc))
	require.NoError(t, idx.UpsertNode("instrument-aapl", LabelInstrument, "AAPL", nil))

	require.NoError(t, idx.CreateMentionEdge(doc.ID, RelMentions, "instrument-aapl", 1.0))

	docs, err := idx.GetDocumentsMentioning("AAPL", 0)
	require.NoError(t, err)
	assert.Contains(t, docs, doc.ID)
}

func TestGetDocumentsBySource_ReturnsProducedDocuments(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("src-1", LabelSource, "", nil))
	doc, err := domain.NewDocument("Title", "Some body text here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(doc))

	docs, err := idx.GetDocumentsBySource("src-1", 0)
	require.NoError(t, err)
	assert.Contains(t, docs, doc.ID)
}

func TestGetRelatedDocuments_FindsSharedCompanyAndSharedSource(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("src-1", LabelSource, "", nil))
	require.NoError(t, idx.UpsertNode("instrument-aapl", LabelInstrument, "AAPL", nil))

	docA, err := domain.NewDocument("A", "Body text for doc A here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(docA))
	require.NoError(t, idx.CreateMentionEdge(docA.ID, RelMentions, "instrument-aapl", 1.0))

	docB, err := domain.NewDocument("B", "Body text for doc B here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(docB))
	require.NoError(t, idx.CreateMentionEdge(docB.ID, RelMentions, "instrument-aapl", 1.0))

	related, err := idx.GetRelatedDocuments(docA.ID, 2, 10)
	require.NoError(t, err)
	found := false
	for _, r := range related {
		if r.DocID == docB.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDeleteDocumentNode_RemovesNodeAndEdges(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("instrument-aapl", LabelInstrument, "AAPL", nil))
	doc, err := domain.NewDocument("Title", "Some body text here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(doc))
	require.NoError(t, idx.CreateMentionEdge(doc.ID, RelMentions, "instrument-aapl", 1.0))

	require.NoError(t, idx.DeleteDocumentNode(doc.ID))

	exists, err := idx.NodeExists(doc.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	docs, err := idx.GetDocumentsMentioning("AAPL", 0)
	require.NoError(t, err)
	assert.NotContains(t, docs, doc.ID)
}

func TestRegisterAliasThenResolveAlias_RoundTrip(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("instrument-aapl", LabelInstrument, "AAPL", nil))
	require.NoError(t, idx.RegisterAlias("alias-1", "AAPL", domain.SchemeTicker, "instrument-aapl"))

	guid, err := idx.ResolveAlias("AAPL", domain.SchemeTicker)
	require.NoError(t, err)
	assert.Equal(t, "instrument-aapl", guid)

	missing, err := idx.ResolveAlias("NOPE", domain.SchemeTicker)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUpsertSource_SatisfiesGraphMirrorInterface(t *testing.T) {
	idx := openTestIndex(t)
	src, err := domain.NewSource("Reuters", domain.SourceNewsAgency, "group-a", "US", []string{"en"}, domain.TrustHigh)
	require.NoError(t, err)

	require.NoError(t, idx.UpsertSource(src))

	exists, err := idx.NodeExists(src.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRuleEngine_SharedCompanyDocuments(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.UpsertNode("instrument-aapl", LabelInstrument, "AAPL", nil))

	docA, err := domain.NewDocument("A", "Body text for doc A here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(docA))
	require.NoError(t, idx.CreateMentionEdge(docA.ID, RelMentions, "instrument-aapl", 1.0))

	docB, err := domain.NewDocument("B", "Body text for doc B here.", "src-1", "group-a", "en", false, nil)
	require.NoError(t, err)
	require.NoError(t, idx.CreateDocumentNode(docB))
	require.NoError(t, idx.CreateMentionEdge(docB.ID, RelMentions, "instrument-aapl", 1.0))

	re, err := NewRuleEngine()
	require.NoError(t, err)
	require.NoError(t, re.Hydrate(idx))

	peers, err := re.SharedCompanyDocuments(docA.ID)
	require.NoError(t, err)
	assert.Contains(t, peers, docB.ID)
}
