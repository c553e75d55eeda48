package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ImpactTier is a discrete classification of a Document's impact_score.
type ImpactTier string

const (
	TierPlatinum ImpactTier = "PLATINUM"
	TierGold     ImpactTier = "GOLD"
	TierSilver   ImpactTier = "SILVER"
	TierBronze   ImpactTier = "BRONZE"
	TierStandard ImpactTier = "STANDARD"
)

// ImpactTierForScore maps an impact score in [0,100] to its tier.
func ImpactTierForScore(score float64) ImpactTier {
	switch {
	case score >= 90:
		return TierPlatinum
	case score >= 75:
		return TierGold
	case score >= 55:
		return TierSilver
	case score >= 35:
		return TierBronze
	default:
		return TierStandard
	}
}

// MaxWordCount is the maximum allowed word count for a Document's content
// (spec.md §3, §4.9 step 2).
const MaxWordCount = 20000

// Document is an immutable, append-only news document. Updates create new
// versions linking back via PreviousVersionID (spec.md §3).
type Document struct {
	ID                    string
	Version               int
	PreviousVersionID     string // empty iff Version == 1
	SourceID              string
	GroupID               string
	CreatedAt             time.Time
	Language              string
	LanguageAutoDetected  bool
	Title                 string
	Content               string
	WordCount             int
	ContentHash           string
	StoryFingerprint      string
	DuplicateOf           string // empty unless flagged a duplicate
	DuplicateScore        float64
	ImpactScore           *float64
	ImpactTier            *ImpactTier
	Themes                []string
	Metadata              map[string]interface{}
}

// NewDocument constructs and validates a version-1 Document.
func NewDocument(title, content, sourceID, groupID, language string, autoDetected bool, metadata map[string]interface{}) (*Document, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if sourceID == "" {
		return nil, fmt.Errorf("source_id is required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if language == "" {
		language = "en"
	}

	doc := &Document{
		ID:                   uuid.NewString(),
		Version:              1,
		SourceID:             sourceID,
		GroupID:              groupID,
		CreatedAt:            time.Now().UTC(),
		Language:             normalizeLanguageCode(language),
		LanguageAutoDetected: autoDetected,
		Title:                title,
		Content:              content,
		WordCount:            CountWords(content),
		Metadata:             metadata,
	}
	doc.ContentHash = ComputeContentHash(title, content)
	return doc, nil
}

// NewVersion creates a new version of the document linked to prev by
// PreviousVersionID, preserving the version-chain invariant in spec.md §3.
func (d *Document) NewVersion(title, content string, metadata map[string]interface{}) (*Document, error) {
	if title == "" {
		title = d.Title
	}
	if content == "" {
		content = d.Content
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	merged := make(map[string]interface{}, len(d.Metadata)+len(metadata))
	for k, v := range d.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	next := &Document{
		ID:                   uuid.NewString(),
		Version:              d.Version + 1,
		PreviousVersionID:    d.ID,
		SourceID:             d.SourceID,
		GroupID:              d.GroupID,
		CreatedAt:            time.Now().UTC(),
		Language:             d.Language,
		LanguageAutoDetected: d.LanguageAutoDetected,
		Title:                title,
		Content:              content,
		WordCount:            CountWords(content),
		Metadata:             merged,
	}
	next.ContentHash = ComputeContentHash(title, content)
	return next, nil
}

// MarkDuplicate returns a copy of d flagged as a duplicate of originalID
// with the given similarity score. Duplicate documents are still persisted
// (spec.md §4.4, §4.9 step 4) — marking never discards the document.
func (d *Document) MarkDuplicate(originalID string, score float64) (*Document, error) {
	if score <= 0 || score > 1 {
		return nil, fmt.Errorf("duplicate score must be in (0,1], got %f", score)
	}
	if originalID == "" {
		return nil, fmt.Errorf("original document id is required")
	}
	clone := *d
	clone.DuplicateOf = originalID
	clone.DuplicateScore = score
	return &clone, nil
}

// IsDuplicate reports whether this document version was flagged a duplicate.
func (d *Document) IsDuplicate() bool { return d.DuplicateOf != "" }

// Validate checks the invariants spec.md §3 and §8 require of any Document.
func (d *Document) Validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if err := validateContent(d.Content); err != nil {
		return err
	}
	if d.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if d.Version == 1 && d.PreviousVersionID != "" {
		return fmt.Errorf("version 1 documents cannot have previous_version_id")
	}
	if d.Version > 1 && d.PreviousVersionID == "" {
		return fmt.Errorf("version > 1 documents must have previous_version_id")
	}
	if d.DuplicateOf != "" && (d.DuplicateScore <= 0 || d.DuplicateScore > 1) {
		return fmt.Errorf("duplicate_score must be in (0,1] when duplicate_of is set")
	}
	if d.DuplicateOf == "" && d.DuplicateScore > 0 {
		return fmt.Errorf("duplicate_of must be set when duplicate_score > 0")
	}
	if d.ImpactScore != nil && (*d.ImpactScore < 0 || *d.ImpactScore > 100) {
		return fmt.Errorf("impact_score must be in [0,100]")
	}
	for _, t := range d.Themes {
		if !IsValidTheme(t) {
			return fmt.Errorf("theme %q is not in the controlled vocabulary", t)
		}
	}
	return nil
}

func validateTitle(title string) error {
	if len(title) < 1 || len(title) > 500 {
		return fmt.Errorf("title must be 1..500 characters, got %d", len(title))
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	if wc := CountWords(content); wc > MaxWordCount {
		return fmt.Errorf("content exceeds max word count: %d > %d", wc, MaxWordCount)
	}
	return nil
}

// CountWords counts whitespace-delimited words, matching spec.md's word_count
// field semantics.
func CountWords(content string) int {
	return len(strings.FieldsFunc(content, func(r rune) bool {
		return unicode.IsSpace(r)
	}))
}

// ComputeContentHash hashes normalized "title content" — spec.md §4.4 step 1.
func ComputeContentHash(title, content string) string {
	normalized := strings.ToLower(strings.TrimSpace(title)) + " " + strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ComputeStoryFingerprint hashes sorted tickers, event type, and a
// quarter-granularity date bucket — a near-duplicate key for
// republications of the same story (spec.md §4.4 step 2). Date bucket
// granularity is one quarter so same-event republications within a
// quarter cluster together but reuse of the same tickers/event_type in
// a later quarter does not collide.
func ComputeStoryFingerprint(tickers []string, eventType string, createdAt time.Time) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	quarter := (int(createdAt.Month()) - 1) / 3
	bucket := fmt.Sprintf("%04d-Q%d", createdAt.Year(), quarter+1)
	normalized := strings.ToUpper(strings.Join(sorted, ",")) + "|" + strings.ToUpper(strings.TrimSpace(eventType)) + "|" + bucket
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeLanguageCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) > 2 {
		code = code[:2]
	}
	if code == "" {
		return "en"
	}
	return code
}
