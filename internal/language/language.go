// Package language implements LanguageDetector (spec.md §4.5): best-
// effort detection of a document's ISO 639-1 language code plus a
// confidence score and an APAC-focus flag. Grounded on
// original_source/app/services/language_detector.py's public shape
// (Result fields, MIN_TEXT_LENGTH short-circuit, code canonicalization
// map, detect_from_title_and_content fusion rule, is_cjk script check);
// the detection algorithm itself is reimplemented over Unicode script
// ranges plus stopword scoring rather than ported from langdetect, since
// no n-gram/statistical language-identification library is vendored
// anywhere in the example pack — this is stdlib (unicode, strings) by
// necessity, not by choice.
package language

import (
	"strings"
	"unicode"
)

// MinTextLength is the minimum trimmed text length detection attempts
// before falling back to the default language at zero confidence.
const MinTextLength = 20

// DefaultLanguage is returned when detection fails or text is too short.
const DefaultLanguage = "en"

// apacLanguages is the APAC focus set (spec.md §4.5).
var apacLanguages = map[string]bool{
	"en": true, "zh": true, "ja": true, "ko": true,
	"id": true, "ms": true, "th": true, "vi": true,
}

// languageCodeMap canonicalizes detector-internal codes to the
// standardized codes spec.md §4.5 names (zh-cn/zh-tw both fold to zh).
var languageCodeMap = map[string]string{
	"zh-cn": "zh",
	"zh-tw": "zh",
}

// Result is the outcome of a language detection call (spec.md §4.5).
type Result struct {
	Language     string
	Confidence   float64
	DetectedCode string
	IsAPAC       bool
}

func defaultResult() Result {
	return Result{
		Language:     DefaultLanguage,
		Confidence:   0,
		DetectedCode: DefaultLanguage,
		IsAPAC:       apacLanguages[DefaultLanguage],
	}
}

func canonicalize(code string) string {
	if mapped, ok := languageCodeMap[code]; ok {
		return mapped
	}
	return code
}

// Detect identifies text's language. Text shorter than MinTextLength
// (after trimming) returns DefaultLanguage at zero confidence rather than
// guessing from an unreliable sample.
func Detect(text string) Result {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < MinTextLength {
		return defaultResult()
	}

	if code, ok := detectByScript(trimmed); ok {
		return Result{Language: code, Confidence: 0.9, DetectedCode: code, IsAPAC: apacLanguages[code]}
	}

	code, confidence := detectByStopwords(trimmed)
	code = canonicalize(code)
	return Result{Language: code, Confidence: confidence, DetectedCode: code, IsAPAC: apacLanguages[code]}
}

// DetectFromTitleAndContent detects from content first; if content's
// confidence is below 0.8 it also detects from title and returns
// whichever result has the higher confidence (spec.md §4.5
// "detect_from_title_and_content").
func DetectFromTitleAndContent(title, content string) Result {
	contentResult := Detect(content)
	if contentResult.Confidence >= 0.8 {
		return contentResult
	}
	titleResult := Detect(title)
	if titleResult.Confidence > contentResult.Confidence {
		return titleResult
	}
	return contentResult
}

// IsCJK reports whether text contains any CJK Unified Ideograph,
// Hiragana, Katakana, or Hangul codepoint — a quick heuristic check
// independent of full detection (spec.md §4.5 "is_cjk").
func IsCJK(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
			return true
		case r >= 0x3040 && r <= 0x309F: // Hiragana
			return true
		case r >= 0x30A0 && r <= 0x30FF: // Katakana
			return true
		case r >= 0xAC00 && r <= 0xD7AF: // Hangul
			return true
		}
	}
	return false
}

// detectByScript identifies a language purely from its Unicode script
// when that script is exclusive to one language in our supported set
// (CJK scripts, Thai). Latin-script text falls through to stopword
// scoring since the same script covers English/Spanish/French/German.
func detectByScript(text string) (string, bool) {
	var hiragana, katakana, hangul, han, thai, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		total++
		switch {
		case r >= 0x3040 && r <= 0x309F:
			hiragana++
		case r >= 0x30A0 && r <= 0x30FF:
			katakana++
		case r >= 0xAC00 && r <= 0xD7AF:
			hangul++
		case r >= 0x4E00 && r <= 0x9FFF:
			han++
		case r >= 0x0E00 && r <= 0x0E7F:
			thai++
		}
	}
	if total == 0 {
		return "", false
	}
	switch {
	case hiragana+katakana > total/10:
		return "ja", true
	case hangul > total/10:
		return "ko", true
	case thai > total/10:
		return "th", true
	case han > total/2:
		return "zh", true
	}
	return "", false
}

// stopwords are the highest-frequency function words per language,
// lowercase, used to score Latin-script text.
var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "a", "is", "that", "for", "on", "with", "as", "it", "was", "be"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "las", "un", "una", "por", "con", "para", "es", "su"},
	"fr": {"le", "la", "de", "et", "les", "des", "un", "une", "en", "du", "que", "pour", "dans", "est", "au"},
	"de": {"der", "die", "das", "und", "ist", "in", "den", "von", "zu", "mit", "auf", "für", "ein", "eine", "des"},
	"pt": {"o", "a", "de", "que", "e", "do", "da", "em", "um", "uma", "para", "com", "os", "as", "no"},
}

// detectByStopwords scores text by the fraction of its words that are
// stopwords of each candidate language, returning the best match and
// its score as a confidence proxy. DefaultLanguage wins ties and any
// all-zero case.
func detectByStopwords(text string) (string, float64) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return DefaultLanguage, 0
	}

	bestLang := DefaultLanguage
	bestScore := 0.0
	for lang, stops := range stopwords {
		set := make(map[string]bool, len(stops))
		for _, s := range stops {
			set[s] = true
		}
		hits := 0
		for _, w := range words {
			if set[trimPunct(w)] {
				hits++
			}
		}
		score := float64(hits) / float64(len(words))
		if score > bestScore {
			bestScore = score
			bestLang = lang
		}
	}
	if bestScore == 0 {
		return DefaultLanguage, 0
	}
	confidence := bestScore * 3
	if confidence > 1 {
		confidence = 1
	}
	return bestLang, confidence
}

func trimPunct(w string) string {
	return strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) })
}
