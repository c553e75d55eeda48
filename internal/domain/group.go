package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reserved group identifiers (spec.md §3).
const (
	GroupPublic = "public"
	GroupAdmin  = "admin"
)

// Group is a content-scoping boundary that owns sources, documents, and
// clients — the unit of access control (spec.md §3, §GLOSSARY).
type Group struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Metadata    map[string]interface{}
}

// NewGroup constructs and validates a Group.
func NewGroup(name, description string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	return &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Active:      true,
		Metadata:    map[string]interface{}{},
	}, nil
}

// ClientType is the broad category of client a brokerage serves.
type ClientType string

const (
	ClientRetail        ClientType = "retail"
	ClientInstitutional ClientType = "institutional"
	ClientFamilyOffice  ClientType = "family_office"
	ClientHedgeFund     ClientType = "hedge_fund"
)

// Horizon is a client's investment time horizon.
type Horizon string

const (
	HorizonShort  Horizon = "short"
	HorizonMedium Horizon = "medium"
	HorizonLong   Horizon = "long"
)

// TriState models an explicitly-set true/false value distinct from unset,
// used for ClientProfile.ESGConstrained (spec.md §3).
type TriState int

const (
	TriUnset TriState = iota
	TriTrue
	TriFalse
)

// IsSet reports whether the tri-state has an explicit value.
func (t TriState) IsSet() bool { return t != TriUnset }

// Client owns exactly one Portfolio and one Watchlist and has one
// ClientProfile (spec.md §3).
type Client struct {
	GUID       string
	Name       string
	ClientType ClientType
	GroupID    string
	CreatedAt  time.Time
}

// NewClient constructs and validates a Client.
func NewClient(name string, clientType ClientType, groupID string) (*Client, error) {
	if name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}
	return &Client{
		GUID:       uuid.NewString(),
		Name:       name,
		ClientType: clientType,
		GroupID:    groupID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// EthicalSector is negative screening: excluded industries and a
// faith-based investing rule (original_source/app/models/restrictions.py).
type EthicalSector struct {
	ExcludedIndustries []string
	FaithBased         string // "none", "shariah", "catholic", "other"
}

// ImpactSustainability is positive screening: impact themes and stewardship.
type ImpactSustainability struct {
	ImpactMandate          bool
	ImpactThemes           []string
	StewardshipObligations bool
}

// LegalRegulatory models jurisdictional and eligibility constraints.
type LegalRegulatory struct {
	Jurisdictions       []string
	InvestorEligibility string // "retail", "accredited", "institutional"
	SanctionsRestricted bool
}

// OperationalRisk models quantitative portfolio construction limits.
type OperationalRisk struct {
	MaxIssuerConcentrationPct *float64
	LeverageLimitNAVPct       *float64
	IlliquidAssetLimitNAVPct  *float64
}

// TaxAccounting models fund structure and reporting attributes.
type TaxAccounting struct {
	Structure         string
	ReportingStandard string
	TaxConstraints    []string
}

// Restrictions is the full structured restrictions schema carried on a
// ClientProfile (spec.md §3 "structured JSON"; shape recovered from
// original_source/app/models/restrictions.py). Only
// EthicalSector.ExcludedIndustries is consulted by AvatarFeedService; the
// rest are carried typed for forward compatibility, matching the original's
// "future use" docstrings.
type Restrictions struct {
	EthicalSector        EthicalSector
	ImpactSustainability ImpactSustainability
	LegalRegulatory      LegalRegulatory
	OperationalRisk      OperationalRisk
	TaxAccounting        TaxAccounting
}

// HasExclusions reports whether any negative-screening rule is active.
func (r Restrictions) HasExclusions() bool {
	return len(r.EthicalSector.ExcludedIndustries) > 0 || r.EthicalSector.FaithBased != "" && r.EthicalSector.FaithBased != "none"
}

// ClientProfile captures a client's mandate, constraints, and engagement
// state used for profile-completeness scoring and feed personalization.
type ClientProfile struct {
	GUID             string
	ClientGUID       string
	MandateType      string
	MandateText      string
	MandateThemes    []string
	MandateEmbedding []float32
	Horizon          Horizon
	ESGConstrained   TriState
	Restrictions     Restrictions
	ImpactThreshold  float64
	Benchmark        string
	AlertFrequency   string
	PrimaryContact   string
}

// NewClientProfile constructs and validates a ClientProfile for clientGUID.
func NewClientProfile(clientGUID string) (*ClientProfile, error) {
	if clientGUID == "" {
		return nil, fmt.Errorf("client_guid is required")
	}
	return &ClientProfile{
		GUID:       uuid.NewString(),
		ClientGUID: clientGUID,
	}, nil
}

// Validate enforces the mandate_text length limit (spec.md §3).
func (p *ClientProfile) Validate() error {
	if len(p.MandateText) > 5000 {
		return fmt.Errorf("mandate_text exceeds 5000 characters")
	}
	for _, t := range p.MandateThemes {
		if !IsValidTheme(t) {
			return fmt.Errorf("mandate theme %q is not in the controlled vocabulary", t)
		}
	}
	return nil
}
