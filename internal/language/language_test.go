package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_ShortTextReturnsDefaultAtZeroConfidence(t *testing.T) {
	result := Detect("too short")
	assert.Equal(t, DefaultLanguage, result.Language)
	assert.Zero(t, result.Confidence)
}

func TestDetect_EnglishStopwordsScoreHighest(t *testing.T) {
	result := Detect("The company announced that it was acquiring a rival for the market in a major deal with investors.")
	assert.Equal(t, "en", result.Language)
	assert.True(t, result.Confidence > 0)
}

func TestDetect_SpanishStopwordsScoreHighest(t *testing.T) {
	result := Detect("La empresa anuncio que la adquisicion de un rival para el mercado se realizara con los inversores.")
	assert.Equal(t, "es", result.Language)
}

func TestDetect_JapaneseScriptDetected(t *testing.T) {
	result := Detect("これは日本語の金融ニュースの文章です。会社は発表しました。")
	assert.Equal(t, "ja", result.Language)
	assert.True(t, result.IsAPAC)
}

func TestDetect_ChineseScriptCanonicalizesToZh(t *testing.T) {
	result := Detect("该公司今天宣布了一项重大的收购交易涉及多家投资者和市场参与者。")
	assert.Equal(t, "zh", result.Language)
}

func TestIsCJK_DetectsHanCharacters(t *testing.T) {
	assert.True(t, IsCJK("公司"))
	assert.False(t, IsCJK("company"))
}

func TestDetectFromTitleAndContent_PrefersHighConfidenceContent(t *testing.T) {
	content := "The company announced that it was acquiring a rival for the market in a major deal with investors."
	result := DetectFromTitleAndContent("Breaking News", content)
	assert.Equal(t, "en", result.Language)
}

func TestDetectFromTitleAndContent_FallsBackToTitleWhenContentWeak(t *testing.T) {
	result := DetectFromTitleAndContent("The rival market deal with investors and the company", "x")
	assert.Equal(t, "en", result.Language)
}
