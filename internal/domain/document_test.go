package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_SetsVersionOneAndContentHash(t *testing.T) {
	doc, err := NewDocument("Apple Q1 Earnings", "Apple reported strong earnings.", "src-1", "group-1", "", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Empty(t, doc.PreviousVersionID)
	assert.Equal(t, "en", doc.Language)
	assert.NotEmpty(t, doc.ContentHash)
	assert.Equal(t, ComputeContentHash("Apple Q1 Earnings", "Apple reported strong earnings."), doc.ContentHash)
}

func TestNewDocument_RejectsEmptyContent(t *testing.T) {
	_, err := NewDocument("Title", "   ", "src-1", "group-1", "en", false, nil)
	assert.Error(t, err)
}

func TestNewDocument_RejectsOversizedTitle(t *testing.T) {
	huge := make([]byte, 501)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := NewDocument(string(huge), "content", "src-1", "group-1", "en", false, nil)
	assert.Error(t, err)
}

func TestNewVersion_ChainsPreviousVersionID(t *testing.T) {
	doc, err := NewDocument("Title", "Original content.", "src-1", "group-1", "en", false, nil)
	require.NoError(t, err)
	next, err := doc.NewVersion("Title", "Updated content.", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, doc.ID, next.PreviousVersionID)
	assert.NotEqual(t, doc.ContentHash, next.ContentHash)
}

func TestMarkDuplicate_SetsDuplicateFieldsAndValidates(t *testing.T) {
	doc, err := NewDocument("Title", "Content.", "src-1", "group-1", "en", false, nil)
	require.NoError(t, err)
	dup, err := doc.MarkDuplicate("other-doc", 0.93)
	require.NoError(t, err)
	assert.True(t, dup.IsDuplicate())
	assert.NoError(t, dup.Validate())
}

func TestMarkDuplicate_RejectsOutOfRangeScore(t *testing.T) {
	doc, _ := NewDocument("Title", "Content.", "src-1", "group-1", "en", false, nil)
	_, err := doc.MarkDuplicate("other-doc", 1.5)
	assert.Error(t, err)
	_, err = doc.MarkDuplicate("other-doc", 0)
	assert.Error(t, err)
}

func TestValidate_RejectsDuplicateScoreWithoutDuplicateOf(t *testing.T) {
	doc, _ := NewDocument("Title", "Content.", "src-1", "group-1", "en", false, nil)
	doc.DuplicateScore = 0.9
	assert.Error(t, doc.Validate())
}

func TestComputeContentHash_IsStableAndCaseInsensitive(t *testing.T) {
	a := ComputeContentHash("Apple Earnings", "Strong quarter results.")
	b := ComputeContentHash("apple earnings", "strong   quarter  results.")
	assert.Equal(t, a, b)
}

func TestComputeStoryFingerprint_IgnoresTickerOrderAndCase(t *testing.T) {
	when := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := ComputeStoryFingerprint([]string{"AAPL", "MSFT"}, "EARNINGS", when)
	b := ComputeStoryFingerprint([]string{"msft", "aapl"}, "earnings", when)
	assert.Equal(t, a, b)
}

func TestComputeStoryFingerprint_DiffersAcrossQuarters(t *testing.T) {
	q1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	q2 := q1.AddDate(0, 0, 95)
	a := ComputeStoryFingerprint([]string{"AAPL"}, "EARNINGS", q1)
	b := ComputeStoryFingerprint([]string{"AAPL"}, "EARNINGS", q2)
	assert.NotEqual(t, a, b)
}

func TestComputeStoryFingerprint_SameQuarterMatches(t *testing.T) {
	early := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	a := ComputeStoryFingerprint([]string{"AAPL"}, "EARNINGS", early)
	b := ComputeStoryFingerprint([]string{"AAPL"}, "EARNINGS", late)
	assert.Equal(t, a, b)
}

func TestCountWords_CountsWhitespaceDelimitedTokens(t *testing.T) {
	assert.Equal(t, 3, CountWords("one two three"))
	assert.Equal(t, 0, CountWords("   "))
}
