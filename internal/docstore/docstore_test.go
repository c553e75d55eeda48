package docstore

import (
	"testing"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDoc(t *testing.T, groupID string) *domain.Document {
	t.Helper()
	doc, err := domain.NewDocument("Heavy Truck Strike", "Workers at the plant walked out today.", "src-1", groupID, "en", false, map[string]any{"k": "v"})
	require.NoError(t, err)
	return doc
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	store := New(t.TempDir())
	doc := newTestDoc(t, "group-a")

	require.NoError(t, store.Save(doc))

	loaded, err := store.Load(doc.ID, doc.GroupID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, loaded.ID)
	assert.Equal(t, doc.Title, loaded.Title)
	assert.Equal(t, doc.Content, loaded.Content)
	assert.Equal(t, doc.Metadata, loaded.Metadata)
}

func TestLoad_MissingDocumentReturnsNotFound(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Load("missing-id", "group-a", time.Time{})
	require.Error(t, err)
	svcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, string(errs.CodeDocumentNotFound), svcErr.Code())
}

func TestLoadWithAccessCheck_CrossGroupDeniesAccess(t *testing.T) {
	store := New(t.TempDir())
	doc := newTestDoc(t, "group-alpha")
	require.NoError(t, store.Save(doc))

	_, err := store.LoadWithAccessCheck(doc.ID, []string{"group-beta"}, time.Time{})
	require.Error(t, err)
	svcErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, string(errs.CodeAccessDenied), svcErr.Code())
}

func TestLoadWithAccessCheck_PermittedGroupSucceeds(t *testing.T) {
	store := New(t.TempDir())
	doc := newTestDoc(t, "group-alpha")
	require.NoError(t, store.Save(doc))

	loaded, err := store.LoadWithAccessCheck(doc.ID, []string{"group-beta", "group-alpha"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, loaded.ID)
}

func TestGetVersionChain_OldestFirst(t *testing.T) {
	store := New(t.TempDir())
	v1 := newTestDoc(t, "group-a")
	require.NoError(t, store.Save(v1))

	v2, err := v1.NewVersion("Heavy Truck Strike (Updated)", "", nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(v2))

	chain, err := store.GetVersionChain(v2.ID, "group-a")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, v1.ID, chain[0].ID)
	assert.Equal(t, v2.ID, chain[1].ID)
}

func TestDelete_RemovesDocument(t *testing.T) {
	store := New(t.TempDir())
	doc := newTestDoc(t, "group-a")
	require.NoError(t, store.Save(doc))

	require.NoError(t, store.Delete(doc.ID, doc.GroupID))

	exists, err := store.Exists(doc.ID, doc.GroupID, time.Time{})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListByGroup_NewestFirst(t *testing.T) {
	store := New(t.TempDir())
	older := newTestDoc(t, "group-a")
	older.CreatedAt = time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, store.Save(older))

	newer := newTestDoc(t, "group-a")
	require.NoError(t, store.Save(newer))

	docs, err := store.ListByGroup("group-a", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0].CreatedAt.After(docs[1].CreatedAt) || docs[0].CreatedAt.Equal(docs[1].CreatedAt))
}
