package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrustLevel is a source's credibility classification, used as a ranking
// boost factor (spec.md §3).
type TrustLevel string

const (
	TrustHigh       TrustLevel = "high"
	TrustMedium     TrustLevel = "medium"
	TrustLow        TrustLevel = "low"
	TrustUnverified TrustLevel = "unverified"
)

// BoostFactor returns the multiplicative ranking boost for this trust level.
func (t TrustLevel) BoostFactor() float64 {
	switch t {
	case TrustHigh:
		return 1.2
	case TrustMedium:
		return 1.0
	case TrustLow:
		return 0.8
	case TrustUnverified:
		return 0.6
	default:
		return 1.0
	}
}

func (t TrustLevel) valid() bool {
	switch t {
	case TrustHigh, TrustMedium, TrustLow, TrustUnverified:
		return true
	}
	return false
}

// SourceType classifies the origin of a news Source.
type SourceType string

const (
	SourceNewsAgency SourceType = "news_agency"
	SourceInternal   SourceType = "internal"
	SourceResearch   SourceType = "research"
	SourceGovernment SourceType = "government"
	SourceCorporate  SourceType = "corporate"
	SourceSocial     SourceType = "social"
	SourceOther      SourceType = "other"
)

func (t SourceType) valid() bool {
	switch t {
	case SourceNewsAgency, SourceInternal, SourceResearch, SourceGovernment, SourceCorporate, SourceSocial, SourceOther:
		return true
	}
	return false
}

// Source is a news provider scoped to exactly one Group (spec.md §3).
type Source struct {
	ID         string
	GroupID    string
	Name       string
	Type       SourceType
	Region     string
	Languages  []string
	TrustLevel TrustLevel
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Metadata   map[string]interface{}
}

// NewSource constructs and validates a Source belonging to groupID.
func NewSource(name string, sourceType SourceType, groupID, region string, languages []string, trust TrustLevel) (*Source, error) {
	if name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}
	if sourceType == "" {
		sourceType = SourceOther
	}
	if !sourceType.valid() {
		return nil, fmt.Errorf("invalid source type: %q", sourceType)
	}
	if trust == "" {
		trust = TrustUnverified
	}
	if !trust.valid() {
		return nil, fmt.Errorf("invalid trust level: %q", trust)
	}
	now := time.Now().UTC()
	return &Source{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		Name:       name,
		Type:       sourceType,
		Region:     region,
		Languages:  languages,
		TrustLevel: trust,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]interface{}{},
	}, nil
}
