package sourceregistry

import (
	"testing"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, groupID string) *domain.Source {
	t.Helper()
	src, err := domain.NewSource("Reuters", domain.SourceNewsAgency, groupID, "US", []string{"en"}, domain.TrustHigh)
	require.NoError(t, err)
	return src
}

func TestCreateThenGet_RoundTrip(t *testing.T) {
	reg := New(t.TempDir(), nil)
	src := newTestSource(t, "group-a")

	_, err := reg.Create(src, "group-a")
	require.NoError(t, err)

	got, err := reg.Get(src.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, src.Name, got.Name)
}

func TestGet_AccessDeniedOutsideGroups(t *testing.T) {
	reg := New(t.TempDir(), nil)
	src := newTestSource(t, "group-alpha")
	_, err := reg.Create(src, "group-alpha")
	require.NoError(t, err)

	_, err = reg.Get(src.ID, []string{"group-beta"})
	require.Error(t, err)
}

func TestUpdate_RecordsFieldDiffNewestFirst(t *testing.T) {
	reg := New(t.TempDir(), nil)
	src := newTestSource(t, "group-a")
	_, err := reg.Create(src, "group-a")
	require.NoError(t, err)

	_, err = reg.Update(src.ID, "group-a", func(s *domain.Source) { s.TrustLevel = domain.TrustMedium })
	require.NoError(t, err)
	_, err = reg.Update(src.ID, "group-a", func(s *domain.Source) { s.Region = "EU" })
	require.NoError(t, err)

	log, err := reg.GetAuditLog(src.ID)
	require.NoError(t, err)
	require.Len(t, log, 3) // create + 2 updates
	assert.Equal(t, "update", log[0].Action)
	assert.Contains(t, log[0].Diff, "Region")
	assert.Equal(t, "update", log[1].Action)
	assert.Contains(t, log[1].Diff, "TrustLevel")
	assert.Equal(t, "create", log[2].Action)
}

func TestSoftDelete_PreservesHistoryAndFlipsActive(t *testing.T) {
	reg := New(t.TempDir(), nil)
	src := newTestSource(t, "group-a")
	_, err := reg.Create(src, "group-a")
	require.NoError(t, err)

	deleted, err := reg.SoftDelete(src.ID, []string{"group-a"})
	require.NoError(t, err)
	assert.False(t, deleted.Active)

	got, err := reg.Get(src.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestListSources_ExcludesInactiveByDefault(t *testing.T) {
	reg := New(t.TempDir(), nil)
	src := newTestSource(t, "group-a")
	_, err := reg.Create(src, "group-a")
	require.NoError(t, err)
	_, err = reg.SoftDelete(src.ID, []string{"group-a"})
	require.NoError(t, err)

	active, err := reg.ListSources("group-a", "", "", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := reg.ListSources("group-a", "", "", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

type fakeGraphMirror struct {
	upserts []*domain.Source
}

func (f *fakeGraphMirror) UpsertSource(src *domain.Source) error {
	f.upserts = append(f.upserts, src)
	return nil
}

func TestCreate_MirrorsIntoAttachedGraph(t *testing.T) {
	mirror := &fakeGraphMirror{}
	reg := New(t.TempDir(), mirror)
	src := newTestSource(t, "group-a")

	_, err := reg.Create(src, "group-a")
	require.NoError(t, err)
	require.Len(t, mirror.upserts, 1)
	assert.Equal(t, src.ID, mirror.upserts[0].ID)
}
