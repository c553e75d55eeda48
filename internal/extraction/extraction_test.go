package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	response string
	err      error
	lastSys  string
	lastUser string
	lastTemp float64
}

func (f *fakeChatClient) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	f.lastSys = systemPrompt
	f.lastUser = userPrompt
	f.lastTemp = temperature
	return f.response, f.err
}

func TestExtract_ParsesWellFormedJSON(t *testing.T) {
	client := &fakeChatClient{response: `{
		"impact_score": 82,
		"impact_tier": "GOLD",
		"events": [{"event_type": "EARNINGS", "confidence": 0.9}],
		"instruments": [{"ticker": "aapl", "direction": "positive", "magnitude": 0.6}],
		"companies": ["Apple Inc"],
		"themes": ["ai", "not_a_real_theme"],
		"regions": ["US"],
		"sectors": ["TECH"],
		"summary": "Apple beats earnings estimates."
	}`}

	result, err := Extract(context.Background(), client, "Apple Earnings", "Apple reported strong results.", "Reuters", "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 82.0, result.ImpactScore)
	assert.EqualValues(t, "GOLD", result.ImpactTier)
	assert.Equal(t, "AAPL", result.Instruments[0].Ticker)
	assert.Equal(t, []string{"ai"}, result.Themes)
	assert.Equal(t, 0.1, client.lastTemp)
	assert.Contains(t, client.lastUser, "Apple Earnings")
}

func TestExtract_StripsMarkdownCodeFences(t *testing.T) {
	client := &fakeChatClient{response: "```json\n{\"impact_score\": 50, \"impact_tier\": \"SILVER\", \"summary\": \"x\"}\n```"}
	result, err := Extract(context.Background(), client, "T", "C", "", "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.ImpactScore)
}

func TestExtract_InvalidShapeReturnsExtractionParseError(t *testing.T) {
	client := &fakeChatClient{response: `not json at all`}
	_, err := Extract(context.Background(), client, "T", "C", "", "")
	require.Error(t, err)
	assert.Equal(t, "EXTRACTION_PARSE_ERROR", errorCode(t, err))
}

func TestExtract_RejectsImpactScoreOutOfRange(t *testing.T) {
	client := &fakeChatClient{response: `{"impact_score": 150, "summary": "x"}`}
	_, err := Extract(context.Background(), client, "T", "C", "", "")
	assert.Error(t, err)
}

func TestExtract_RejectsMissingInstrumentTicker(t *testing.T) {
	client := &fakeChatClient{response: `{"impact_score": 10, "summary": "x", "instruments": [{"name": "no ticker"}]}`}
	_, err := Extract(context.Background(), client, "T", "C", "", "")
	assert.Error(t, err)
}

func TestExtract_DerivesTierFromScoreWhenTierMissing(t *testing.T) {
	client := &fakeChatClient{response: `{"impact_score": 95, "summary": "x"}`}
	result, err := Extract(context.Background(), client, "T", "C", "", "")
	require.NoError(t, err)
	assert.EqualValues(t, "PLATINUM", result.ImpactTier)
}

func TestResult_TickersDeduplicates(t *testing.T) {
	result := Result{Instruments: []InstrumentMention{{Ticker: "AAPL"}, {Ticker: "AAPL"}, {Ticker: "MSFT"}}}
	assert.Equal(t, []string{"AAPL", "MSFT"}, result.Tickers())
}

func TestResult_PrimaryEventTypePicksHighestConfidence(t *testing.T) {
	result := Result{Events: []Event{
		{EventType: "GUIDANCE", Confidence: 0.4},
		{EventType: "EARNINGS", Confidence: 0.9},
	}}
	assert.Equal(t, "EARNINGS", result.PrimaryEventType())
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	type coder interface{ Code() string }
	c, ok := err.(coder)
	require.True(t, ok, "expected a typed error with Code()")
	return c.Code()
}
