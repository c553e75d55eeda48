// Package extraction implements ExtractionService (spec.md §4.5):
// prompt construction, LLM invocation, and shape validation that turns
// a document's title/content into a structured ExtractionResult used to
// populate GraphIndex edges and to build DuplicateDetector's fingerprint
// hint. Grounded on original_source/app/prompts/graph_extraction.py
// (ExtractionParseError, controlled-theme filtering) and
// original_source/app/services/llm_service.py's
// ChatCompletionResult.as_json markdown-fence-stripping behavior, ported
// to internal/llmclient's Go client.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
)

// ExtractionTemperature is the sampling temperature ExtractionService
// uses for its JSON-mode chat completion (spec.md §4.5 "temperature ≈0.1").
const ExtractionTemperature = 0.1

// Direction is an instrument's implied price-impact direction.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

func validDirection(d Direction) bool {
	switch d {
	case DirectionPositive, DirectionNegative, DirectionNeutral, "":
		return true
	default:
		return false
	}
}

// Event is one detected event with its confidence and free-form details.
type Event struct {
	EventType  string         `json:"event_type"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// InstrumentMention is one instrument the document discusses.
type InstrumentMention struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Magnitude float64   `json:"magnitude,omitempty"`
}

// Result is ExtractionService's output (spec.md §4.5).
type Result struct {
	ImpactScore float64              `json:"impact_score"`
	ImpactTier  domain.ImpactTier    `json:"impact_tier"`
	Events      []Event              `json:"events"`
	Instruments []InstrumentMention  `json:"instruments"`
	Companies   []string             `json:"companies"`
	Themes      []string             `json:"themes"`
	Regions     []string             `json:"regions"`
	Sectors     []string             `json:"sectors"`
	Summary     string               `json:"summary"`
	RawResponse string               `json:"-"`
}

// rawResult mirrors Result's wire shape before vocabulary filtering and
// validation — kept separate so Result's Go-side fields (ImpactTier as
// domain.ImpactTier, RawResponse excluded from JSON) don't leak back
// into what json.Unmarshal expects from the LLM.
type rawResult struct {
	ImpactScore float64             `json:"impact_score"`
	ImpactTier  string              `json:"impact_tier"`
	Events      []Event             `json:"events"`
	Instruments []InstrumentMention `json:"instruments"`
	Companies   []string            `json:"companies"`
	Themes      []string            `json:"themes"`
	Regions     []string            `json:"regions"`
	Sectors     []string            `json:"sectors"`
	Summary     string              `json:"summary"`
}

// ChatClient is the subset of llmclient.Client ExtractionService needs.
// Defined locally so this package doesn't import internal/llmclient
// directly — llmclient.Client satisfies it structurally.
type ChatClient interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

func extract(ctx context.Context, client ChatClient, title, content, sourceName, publishedAt string) (Result, error) {
	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(title, content, sourceName, publishedAt)

	raw, err := client.ChatJSON(ctx, systemPrompt, userPrompt, ExtractionTemperature)
	if err != nil {
		return Result{}, err
	}

	result, err := parse(raw)
	if err != nil {
		return Result{}, errs.ExtractionParseFailed(err)
	}
	return result, nil
}

// Extract calls the LLM in JSON mode with a system+user prompt pair and
// validates/normalizes the response into a Result. Parse or shape
// failures return an ExtractionParseError-coded error; spec.md §4.9
// step 6 tells IngestService to keep the document and skip graph edges
// rather than fail the ingest.
func Extract(ctx context.Context, client ChatClient, title, content, sourceName, publishedAt string) (Result, error) {
	return extract(ctx, client, title, content, sourceName, publishedAt)
}

func buildSystemPrompt() string {
	themes := make([]string, 0, len(domain.ControlledThemes))
	for t := range domain.ControlledThemes {
		themes = append(themes, t)
	}
	return "You are a financial news analyst extracting structured data for a brokerage intelligence platform. " +
		"Analyze the supplied article and respond with ONLY a JSON object (no markdown, no commentary) with this shape:\n" +
		`{"impact_score": 0-100, "impact_tier": "PLATINUM|GOLD|SILVER|BRONZE|STANDARD", ` +
		`"events": [{"event_type": "CODE", "confidence": 0-1, "details": {}}], ` +
		`"instruments": [{"ticker": "TICK", "name": "optional", "direction": "positive|negative|neutral", "magnitude": 0-1}], ` +
		`"companies": ["Company Name"], "themes": ["one of the controlled vocabulary"], ` +
		`"regions": ["code"], "sectors": ["code"], "summary": "one sentence"}\n` +
		"Controlled theme vocabulary: " + strings.Join(themes, ", ") + ". " +
		"Use only themes from that list; omit any that don't fit exactly. " +
		"Tickers must be the exchange ticker symbol, uppercase."
}

func buildUserPrompt(title, content, sourceName, publishedAt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if sourceName != "" {
		fmt.Fprintf(&b, "Source: %s\n", sourceName)
	}
	if publishedAt != "" {
		fmt.Fprintf(&b, "Published: %s\n", publishedAt)
	}
	b.WriteString("\nContent:\n")
	b.WriteString(content)
	return b.String()
}

// parse strips optional markdown code fences, decodes the JSON payload,
// validates its shape, filters themes to the controlled vocabulary, and
// uppercases tickers (spec.md §4.5).
func parse(raw string) (Result, error) {
	stripped := stripMarkdownFences(raw)

	var rr rawResult
	if err := json.Unmarshal([]byte(stripped), &rr); err != nil {
		return Result{}, fmt.Errorf("decode extraction JSON: %w", err)
	}

	if rr.ImpactScore < 0 || rr.ImpactScore > 100 {
		return Result{}, fmt.Errorf("impact_score %v out of [0,100]", rr.ImpactScore)
	}
	if rr.Summary == "" {
		return Result{}, fmt.Errorf("summary is required")
	}

	for i, inst := range rr.Instruments {
		if inst.Ticker == "" {
			return Result{}, fmt.Errorf("instrument %d missing ticker", i)
		}
		if !validDirection(inst.Direction) {
			return Result{}, fmt.Errorf("instrument %d has invalid direction %q", i, inst.Direction)
		}
		rr.Instruments[i].Ticker = domain.NormalizeTicker(inst.Ticker)
	}

	tier := domain.ImpactTier(strings.ToUpper(strings.TrimSpace(rr.ImpactTier)))
	if !validTier(tier) {
		tier = domain.ImpactTierForScore(rr.ImpactScore)
	}

	return Result{
		ImpactScore: rr.ImpactScore,
		ImpactTier:  tier,
		Events:      rr.Events,
		Instruments: rr.Instruments,
		Companies:   rr.Companies,
		Themes:      domain.FilterThemes(rr.Themes),
		Regions:     rr.Regions,
		Sectors:     rr.Sectors,
		Summary:     rr.Summary,
		RawResponse: raw,
	}, nil
}

func validTier(t domain.ImpactTier) bool {
	switch t {
	case domain.TierPlatinum, domain.TierGold, domain.TierSilver, domain.TierBronze, domain.TierStandard:
		return true
	default:
		return false
	}
}

// stripMarkdownFences removes a leading ```json / ``` line and a
// trailing ``` line if present, mirroring
// ChatCompletionResult.as_json's fence-stripping in the original service.
func stripMarkdownFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Tickers returns the distinct normalized tickers this result mentions,
// used by IngestService/DuplicateDetector to build an ExtractionHint.
func (r Result) Tickers() []string {
	seen := make(map[string]struct{}, len(r.Instruments))
	out := make([]string, 0, len(r.Instruments))
	for _, inst := range r.Instruments {
		if _, ok := seen[inst.Ticker]; ok {
			continue
		}
		seen[inst.Ticker] = struct{}{}
		out = append(out, inst.Ticker)
	}
	return out
}

// PrimaryEventType returns the highest-confidence event's code, or "" if
// no events were extracted.
func (r Result) PrimaryEventType() string {
	var best Event
	for _, e := range r.Events {
		if e.Confidence > best.Confidence {
			best = e
		}
	}
	return best.EventType
}
