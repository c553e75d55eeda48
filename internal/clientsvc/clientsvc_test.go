package clientsvc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	graph, err := graphindex.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { graph.Close() })
	require.NoError(t, graph.UpsertNode("inst-aapl", graphindex.LabelInstrument, "AAPL", map[string]any{"name": "Apple Inc"}))
	return New(graph)
}

func TestCreateClient_OwnsEmptyPortfolioWatchlistProfile(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)
	require.NotEmpty(t, c.GUID)

	profile, err := svc.GetProfile(c.GUID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, c.GUID, profile.ClientGUID)

	portfolio, err := svc.GetPortfolio(c.GUID)
	require.NoError(t, err)
	assert.Empty(t, portfolio.Holdings)

	watchlist, err := svc.GetWatchlist(c.GUID)
	require.NoError(t, err)
	assert.Empty(t, watchlist.Entries)
}

func TestAddHolding_RejectsUnknownInstrument(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)

	err = svc.AddHolding(c.GUID, domain.Holding{Ticker: "NOPE", Weight: 0.5})
	assert.Error(t, err)
}

func TestAddHolding_PersistsAndRoundTrips(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientInstitutional, "group-1")
	require.NoError(t, err)

	shares := 100.0
	require.NoError(t, svc.AddHolding(c.GUID, domain.Holding{Ticker: "aapl", Weight: 0.6, Shares: &shares, Sentiment: domain.SentimentLong}))

	portfolio, err := svc.GetPortfolio(c.GUID)
	require.NoError(t, err)
	require.Len(t, portfolio.Holdings, 1)
	assert.Equal(t, "AAPL", portfolio.Holdings[0].Ticker)
	assert.Equal(t, 0.6, portfolio.Holdings[0].Weight)
	require.NotNil(t, portfolio.Holdings[0].Shares)
	assert.Equal(t, 100.0, *portfolio.Holdings[0].Shares)
	assert.Equal(t, domain.SentimentLong, portfolio.Holdings[0].Sentiment)
}

func TestAddWatch_PersistsAndRoundTrips(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)

	threshold := 5.0
	require.NoError(t, svc.AddWatch(c.GUID, domain.WatchEntry{Ticker: "AAPL", AlertThreshold: &threshold}))

	watchlist, err := svc.GetWatchlist(c.GUID)
	require.NoError(t, err)
	require.Len(t, watchlist.Entries, 1)
	assert.Equal(t, "AAPL", watchlist.Entries[0].Ticker)
	require.NotNil(t, watchlist.Entries[0].AlertThreshold)
	assert.Equal(t, 5.0, *watchlist.Entries[0].AlertThreshold)
}

func TestUpdateProfile_RejectsOversizedMandateText(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)

	profile, err := svc.GetProfile(c.GUID)
	require.NoError(t, err)
	profile.MandateText = string(make([]byte, 5001))

	err = svc.UpdateProfile(profile)
	assert.Error(t, err)
}

func TestCalculateProfileCompleteness_EmptyProfileScoresZero(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)

	result, err := svc.CalculateProfileCompleteness(c.GUID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Score)
	assert.Len(t, result.MissingFields, 6)
}

func TestCalculateProfileCompleteness_FullProfileScoresOne(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientHedgeFund, "group-1")
	require.NoError(t, err)

	require.NoError(t, svc.AddHolding(c.GUID, domain.Holding{Ticker: "AAPL", Weight: 1.0}))

	profile, err := svc.GetProfile(c.GUID)
	require.NoError(t, err)
	profile.MandateType = "growth"
	profile.MandateText = "Focus on long-term capital appreciation across core holdings."
	profile.ESGConstrained = domain.TriFalse
	profile.PrimaryContact = "jane@example.com"
	profile.AlertFrequency = "weekly"
	require.NoError(t, svc.UpdateProfile(profile))

	result, err := svc.CalculateProfileCompleteness(c.GUID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.MissingFields)
	assert.Equal(t, 0.35, result.Breakdown["holdings"].Value)
	assert.Equal(t, 0.35, result.Breakdown["mandate"].Value)
}

func TestListClients_ReturnsOnlyGroupMembers(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)
	_, err = svc.CreateClient("John Roe", domain.ClientRetail, "group-1")
	require.NoError(t, err)
	_, err = svc.CreateClient("Other Group", domain.ClientRetail, "group-2")
	require.NoError(t, err)

	clients, err := svc.ListClients("group-1")
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestCalculateProfileCompleteness_PartialProfile(t *testing.T) {
	svc := newTestService(t)
	c, err := svc.CreateClient("Jane Doe", domain.ClientRetail, "group-1")
	require.NoError(t, err)

	profile, err := svc.GetProfile(c.GUID)
	require.NoError(t, err)
	profile.MandateType = "income"
	require.NoError(t, svc.UpdateProfile(profile))

	result, err := svc.CalculateProfileCompleteness(c.GUID)
	require.NoError(t, err)
	assert.Equal(t, 0.18, result.Score)
}
