package domain

import (
	"fmt"
	"strings"
)

// Sentiment is the directional stance of a Portfolio HOLDS edge.
type Sentiment string

const (
	SentimentLong  Sentiment = "LONG"
	SentimentShort Sentiment = "SHORT"
)

func (s Sentiment) valid() bool {
	return s == SentimentLong || s == SentimentShort
}

// Holding is a Portfolio HOLDS edge: a weighted position in an Instrument,
// optionally carrying share count, average cost, and directional sentiment
// (spec.md §3 "Portfolio / Watchlist").
type Holding struct {
	Ticker    string
	Weight    float64 // in [0,1]
	Shares    *float64
	AvgCost   *float64
	Sentiment Sentiment
}

// Validate enforces the weight bound and sentiment enum.
func (h Holding) Validate() error {
	if h.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if h.Weight < 0 || h.Weight > 1 {
		return fmt.Errorf("holding weight must be in [0,1], got %f", h.Weight)
	}
	if h.Sentiment != "" && !h.Sentiment.valid() {
		return fmt.Errorf("invalid sentiment: %q", h.Sentiment)
	}
	return nil
}

// Portfolio is the set of a Client's Holdings, owned 1:1 by a Client.
type Portfolio struct {
	ClientGUID string
	Holdings   []Holding
}

// Tickers returns the distinct tickers held, in insertion order.
func (p *Portfolio) Tickers() []string {
	seen := make(map[string]struct{}, len(p.Holdings))
	out := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		if _, ok := seen[h.Ticker]; ok {
			continue
		}
		seen[h.Ticker] = struct{}{}
		out = append(out, h.Ticker)
	}
	return out
}

// WatchEntry is a Watchlist WATCHES edge, optionally carrying an
// alert_threshold (spec.md §3).
type WatchEntry struct {
	Ticker         string
	AlertThreshold *float64
}

// Watchlist is the set of a Client's WatchEntries, owned 1:1 by a Client.
type Watchlist struct {
	ClientGUID string
	Entries    []WatchEntry
}

// Tickers returns the distinct watched tickers, in insertion order.
func (w *Watchlist) Tickers() []string {
	seen := make(map[string]struct{}, len(w.Entries))
	out := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		if _, ok := seen[e.Ticker]; ok {
			continue
		}
		seen[e.Ticker] = struct{}{}
		out = append(out, e.Ticker)
	}
	return out
}

// Instrument is a tradeable security, ISSUED_BY exactly one Company
// (spec.md §3). Ticker is the singleton natural key.
type Instrument struct {
	Ticker         string
	Name           string
	InstrumentType string
	Exchange       string
	Currency       string
	Country        string
	CompanyTicker  string // ISSUED_BY target
}

// NewInstrument constructs and validates an Instrument.
func NewInstrument(ticker, name, instrumentType, exchange, currency, country, companyTicker string) (*Instrument, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if name == "" {
		return nil, fmt.Errorf("instrument name is required")
	}
	return &Instrument{
		Ticker:         NormalizeTicker(ticker),
		Name:           name,
		InstrumentType: instrumentType,
		Exchange:       exchange,
		Currency:       currency,
		Country:        country,
		CompanyTicker:  NormalizeTicker(companyTicker),
	}, nil
}

// NormalizeTicker uppercases and trims a ticker symbol, matching the
// extraction-time normalization spec.md §4.5 requires before graph lookup.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Company is the issuer of one or more Instruments (spec.md §3). Ticker is
// the singleton natural key, distinct from any single Instrument's ticker
// when a company has multiple listings.
type Company struct {
	Ticker  string
	Name    string
	Sector  string
	Aliases []string
	Persona string
}

// NewCompany constructs and validates a Company.
func NewCompany(ticker, name, sector string, aliases []string, persona string) (*Company, error) {
	if ticker == "" {
		return nil, fmt.Errorf("company ticker is required")
	}
	if name == "" {
		return nil, fmt.Errorf("company name is required")
	}
	return &Company{
		Ticker:  NormalizeTicker(ticker),
		Name:    name,
		Sector:  sector,
		Aliases: aliases,
		Persona: persona,
	}, nil
}

// Factor is a risk/thematic exposure dimension; Instruments are EXPOSED_TO
// factors with a signed beta (spec.md §3).
type Factor struct {
	FactorID    string
	Name        string
	Category    string
	Description string
}

// Exposure is an Instrument EXPOSED_TO Factor edge.
type Exposure struct {
	Ticker   string
	FactorID string
	Beta     float64 // signed
}

// EventType classifies the kind of event a Document describes (spec.md §3),
// carrying a base impact score and a default tier used when extraction
// supplies an event_type code without its own calibration.
type EventType struct {
	Code        string
	Name        string
	Category    string
	BaseImpact  float64
	DefaultTier ImpactTier
}

// Region and Sector are taxonomy nodes with stable codes (spec.md §3).
type Region struct {
	Code string
	Name string
}

type Sector struct {
	Code string
	Name string
}

// AliasScheme identifies the namespace an Alias value is drawn from
// (spec.md §3, §4.8).
type AliasScheme string

const (
	SchemeTicker      AliasScheme = "TICKER"
	SchemeISIN        AliasScheme = "ISIN"
	SchemeNameVariant AliasScheme = "NAME_VARIANT"
)

// Alias maps an external identifier value under a scheme to a canonical
// node guid, resolved by AliasResolver (spec.md §3, §4.8).
type Alias struct {
	Value         string
	Scheme        AliasScheme
	CanonicalGUID string
}

// NormalizeAliasKey returns the (value, scheme) cache key AliasResolver
// uses: value trimmed and lowercased, scheme uppercased (spec.md §4.8).
func NormalizeAliasKey(value string, scheme AliasScheme) (string, AliasScheme) {
	return strings.ToLower(strings.TrimSpace(value)), AliasScheme(strings.ToUpper(strings.TrimSpace(string(scheme))))
}
