// Package clientsvc implements ClientService (spec.md §4.12): Client,
// Portfolio, Watchlist, and ClientProfile persistence over GraphIndex,
// plus calculate_profile_completeness's weighted CPCS formula recovered
// from original_source/app/services/client_service.py. Grounded on the
// teacher's sourceregistry-style thin wrapper over a single backing
// store, generalized from natural-key singleton nodes (Instrument,
// Company) to the deterministic-guid singleton convention Portfolio,
// Watchlist, and ClientProfile need instead: Client has no bespoke
// traversal of its own, so "owns exactly one" is enforced by deriving
// a fixed guid from the client guid rather than by a graph constraint.
package clientsvc

import (
	"fmt"
	"strings"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
)

// Service is the GraphIndex-backed ClientService.
type Service struct {
	graph *graphindex.Index
}

// New constructs a Service.
func New(graph *graphindex.Index) *Service {
	return &Service{graph: graph}
}

func profileGUID(clientGUID string) string   { return "profile-" + clientGUID }
func portfolioGUID(clientGUID string) string { return "portfolio-" + clientGUID }
func watchlistGUID(clientGUID string) string { return "watchlist-" + clientGUID }

// CreateClient persists a new Client and its empty Portfolio, Watchlist,
// and ClientProfile, so the "owns exactly one of each" invariant holds
// from the moment the client exists.
func (s *Service) CreateClient(name string, clientType domain.ClientType, groupID string) (*domain.Client, error) {
	c, err := domain.NewClient(name, clientType, groupID)
	if err != nil {
		return nil, errs.ValidationError(err)
	}
	if err := s.graph.UpsertNode(c.GUID, graphindex.LabelClient, "", map[string]any{
		"name":        c.Name,
		"client_type": string(c.ClientType),
		"group_id":    c.GroupID,
		"created_at":  c.CreatedAt.Format(timeLayout),
	}); err != nil {
		return nil, err
	}
	if err := s.graph.UpsertEdge(c.GUID, graphindex.RelInGroup, groupID, 1.0, nil); err != nil {
		return nil, err
	}
	if err := s.graph.UpsertNode(portfolioGUID(c.GUID), graphindex.LabelPortfolio, "", map[string]any{"client_guid": c.GUID}); err != nil {
		return nil, err
	}
	if err := s.graph.UpsertNode(watchlistGUID(c.GUID), graphindex.LabelWatchlist, "", map[string]any{"client_guid": c.GUID}); err != nil {
		return nil, err
	}
	profile, err := domain.NewClientProfile(c.GUID)
	if err != nil {
		return nil, errs.ValidationError(err)
	}
	if err := s.saveProfile(profile); err != nil {
		return nil, err
	}
	return c, nil
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// GetClient loads a Client by guid, or (nil, nil) if it doesn't exist.
func (s *Service) GetClient(guid string) (*domain.Client, error) {
	node, err := s.graph.GetNode(guid)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Label != graphindex.LabelClient {
		return nil, nil
	}
	c := &domain.Client{GUID: guid}
	if v, ok := node.Properties["name"].(string); ok {
		c.Name = v
	}
	if v, ok := node.Properties["client_type"].(string); ok {
		c.ClientType = domain.ClientType(v)
	}
	if v, ok := node.Properties["group_id"].(string); ok {
		c.GroupID = v
	}
	return c, nil
}

// ListClients returns every Client in groupID (spec.md §6 list_clients).
func (s *Service) ListClients(groupID string) ([]*domain.Client, error) {
	guids, err := s.graph.FindNodesByProperty(graphindex.LabelClient, "group_id", groupID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Client, 0, len(guids))
	for _, guid := range guids {
		c, err := s.GetClient(guid)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetProfile loads the ClientProfile owned by clientGUID, or (nil, nil)
// if the client doesn't exist.
func (s *Service) GetProfile(clientGUID string) (*domain.ClientProfile, error) {
	node, err := s.graph.GetNode(profileGUID(clientGUID))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return profileFromProperties(clientGUID, node.Properties), nil
}

// UpdateProfile validates and persists profile, which must already
// belong to an existing Client (created by CreateClient).
func (s *Service) UpdateProfile(profile *domain.ClientProfile) error {
	if err := profile.Validate(); err != nil {
		return errs.ValidationError(err)
	}
	existing, err := s.graph.GetNode(profileGUID(profile.ClientGUID))
	if err != nil {
		return err
	}
	if existing == nil {
		return errs.New(errs.CodeValidationError, "create the client before updating its profile", "unknown client: %s", profile.ClientGUID)
	}
	return s.saveProfile(profile)
}

func (s *Service) saveProfile(p *domain.ClientProfile) error {
	props := map[string]any{
		"mandate_type":     p.MandateType,
		"mandate_text":     p.MandateText,
		"mandate_themes":   p.MandateThemes,
		"horizon":          string(p.Horizon),
		"impact_threshold": p.ImpactThreshold,
		"benchmark":        p.Benchmark,
		"alert_frequency":  p.AlertFrequency,
		"primary_contact":  p.PrimaryContact,
		"restrictions":     restrictionsToProperties(p.Restrictions),
	}
	if p.ESGConstrained.IsSet() {
		props["esg_constrained"] = p.ESGConstrained == domain.TriTrue
	}
	return s.graph.UpsertNode(profileGUID(p.ClientGUID), graphindex.LabelClientProfile, "", props)
}

func profileFromProperties(clientGUID string, props map[string]any) *domain.ClientProfile {
	p := &domain.ClientProfile{GUID: profileGUID(clientGUID), ClientGUID: clientGUID}
	if v, ok := props["mandate_type"].(string); ok {
		p.MandateType = v
	}
	if v, ok := props["mandate_text"].(string); ok {
		p.MandateText = v
	}
	p.MandateThemes = stringSlice(props["mandate_themes"])
	if v, ok := props["horizon"].(string); ok {
		p.Horizon = domain.Horizon(v)
	}
	if v, ok := props["impact_threshold"].(float64); ok {
		p.ImpactThreshold = v
	}
	if v, ok := props["benchmark"].(string); ok {
		p.Benchmark = v
	}
	if v, ok := props["alert_frequency"].(string); ok {
		p.AlertFrequency = v
	}
	if v, ok := props["primary_contact"].(string); ok {
		p.PrimaryContact = v
	}
	if v, ok := props["esg_constrained"].(bool); ok {
		if v {
			p.ESGConstrained = domain.TriTrue
		} else {
			p.ESGConstrained = domain.TriFalse
		}
	} else {
		p.ESGConstrained = domain.TriUnset
	}
	if raw, ok := props["restrictions"].(map[string]any); ok {
		p.Restrictions = restrictionsFromProperties(raw)
	}
	return p
}

func restrictionsToProperties(r domain.Restrictions) map[string]any {
	return map[string]any{
		"ethical_sector": map[string]any{
			"excluded_industries": r.EthicalSector.ExcludedIndustries,
			"faith_based":         r.EthicalSector.FaithBased,
		},
		"impact_sustainability": map[string]any{
			"impact_mandate":          r.ImpactSustainability.ImpactMandate,
			"impact_themes":           r.ImpactSustainability.ImpactThemes,
			"stewardship_obligations": r.ImpactSustainability.StewardshipObligations,
		},
		"legal_regulatory": map[string]any{
			"jurisdictions":        r.LegalRegulatory.Jurisdictions,
			"investor_eligibility": r.LegalRegulatory.InvestorEligibility,
			"sanctions_restricted": r.LegalRegulatory.SanctionsRestricted,
		},
		"tax_accounting": map[string]any{
			"structure":          r.TaxAccounting.Structure,
			"reporting_standard": r.TaxAccounting.ReportingStandard,
			"tax_constraints":    r.TaxAccounting.TaxConstraints,
		},
	}
}

func restrictionsFromProperties(raw map[string]any) domain.Restrictions {
	var r domain.Restrictions
	if m, ok := raw["ethical_sector"].(map[string]any); ok {
		r.EthicalSector.ExcludedIndustries = stringSlice(m["excluded_industries"])
		if v, ok := m["faith_based"].(string); ok {
			r.EthicalSector.FaithBased = v
		}
	}
	if m, ok := raw["impact_sustainability"].(map[string]any); ok {
		if v, ok := m["impact_mandate"].(bool); ok {
			r.ImpactSustainability.ImpactMandate = v
		}
		r.ImpactSustainability.ImpactThemes = stringSlice(m["impact_themes"])
		if v, ok := m["stewardship_obligations"].(bool); ok {
			r.ImpactSustainability.StewardshipObligations = v
		}
	}
	if m, ok := raw["legal_regulatory"].(map[string]any); ok {
		r.LegalRegulatory.Jurisdictions = stringSlice(m["jurisdictions"])
		if v, ok := m["investor_eligibility"].(string); ok {
			r.LegalRegulatory.InvestorEligibility = v
		}
		if v, ok := m["sanctions_restricted"].(bool); ok {
			r.LegalRegulatory.SanctionsRestricted = v
		}
	}
	if m, ok := raw["tax_accounting"].(map[string]any); ok {
		if v, ok := m["structure"].(string); ok {
			r.TaxAccounting.Structure = v
		}
		if v, ok := m["reporting_standard"].(string); ok {
			r.TaxAccounting.ReportingStandard = v
		}
		r.TaxAccounting.TaxConstraints = stringSlice(m["tax_constraints"])
	}
	return r
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AddHolding adds or updates a Holding in clientGUID's Portfolio. The
// instrument must already exist in the graph (spec.md §4.7's
// phantom-node ban applies here the same as at ingest time).
func (s *Service) AddHolding(clientGUID string, h domain.Holding) error {
	if err := h.Validate(); err != nil {
		return errs.ValidationError(err)
	}
	instGUID, err := s.resolveInstrument(h.Ticker)
	if err != nil {
		return err
	}
	props := map[string]any{}
	if h.Shares != nil {
		props["shares"] = *h.Shares
	}
	if h.AvgCost != nil {
		props["avg_cost"] = *h.AvgCost
	}
	if h.Sentiment != "" {
		props["sentiment"] = string(h.Sentiment)
	}
	return s.graph.UpsertEdge(portfolioGUID(clientGUID), graphindex.RelHolds, instGUID, h.Weight, props)
}

// GetPortfolio loads clientGUID's Portfolio from its HOLDS edges.
func (s *Service) GetPortfolio(clientGUID string) (*domain.Portfolio, error) {
	edges, err := s.graph.GetEdgesFrom(portfolioGUID(clientGUID), graphindex.RelHolds)
	if err != nil {
		return nil, err
	}
	p := &domain.Portfolio{ClientGUID: clientGUID}
	for _, e := range edges {
		ticker, err := s.tickerForInstrumentGUID(e.ToGUID)
		if err != nil {
			return nil, err
		}
		h := domain.Holding{Ticker: ticker, Weight: e.Weight}
		if v, ok := e.Properties["shares"].(float64); ok {
			h.Shares = &v
		}
		if v, ok := e.Properties["avg_cost"].(float64); ok {
			h.AvgCost = &v
		}
		if v, ok := e.Properties["sentiment"].(string); ok {
			h.Sentiment = domain.Sentiment(v)
		}
		p.Holdings = append(p.Holdings, h)
	}
	return p, nil
}

// AddWatch adds or updates a WatchEntry in clientGUID's Watchlist.
func (s *Service) AddWatch(clientGUID string, entry domain.WatchEntry) error {
	if entry.Ticker == "" {
		return errs.ValidationError(fmt.Errorf("ticker is required"))
	}
	instGUID, err := s.resolveInstrument(entry.Ticker)
	if err != nil {
		return err
	}
	props := map[string]any{}
	if entry.AlertThreshold != nil {
		props["alert_threshold"] = *entry.AlertThreshold
	}
	return s.graph.UpsertEdge(watchlistGUID(clientGUID), graphindex.RelWatches, instGUID, 0, props)
}

// GetWatchlist loads clientGUID's Watchlist from its WATCHES edges.
func (s *Service) GetWatchlist(clientGUID string) (*domain.Watchlist, error) {
	edges, err := s.graph.GetEdgesFrom(watchlistGUID(clientGUID), graphindex.RelWatches)
	if err != nil {
		return nil, err
	}
	w := &domain.Watchlist{ClientGUID: clientGUID}
	for _, e := range edges {
		ticker, err := s.tickerForInstrumentGUID(e.ToGUID)
		if err != nil {
			return nil, err
		}
		entry := domain.WatchEntry{Ticker: ticker}
		if v, ok := e.Properties["alert_threshold"].(float64); ok {
			entry.AlertThreshold = &v
		}
		w.Entries = append(w.Entries, entry)
	}
	return w, nil
}

func (s *Service) resolveInstrument(ticker string) (string, error) {
	normalized := domain.NormalizeTicker(ticker)
	guid, err := s.graph.FindNodeByNaturalKey(graphindex.LabelInstrument, normalized)
	if err != nil {
		return "", err
	}
	if guid == "" {
		return "", errs.New(errs.CodeValidationError, "register the instrument before referencing it", "unknown instrument: %s", normalized)
	}
	return guid, nil
}

func (s *Service) tickerForInstrumentGUID(guid string) (string, error) {
	node, err := s.graph.GetNode(guid)
	if err != nil {
		return "", err
	}
	if node == nil {
		return guid, nil
	}
	return node.NaturalKey, nil
}

// SectionBreakdown is one CPCS section's weighted contribution.
type SectionBreakdown struct {
	Score   float64
	Weight  float64
	Value   float64
	Details map[string]any
}

// CompletenessResult is calculate_profile_completeness's return shape
// (spec.md §4.12).
type CompletenessResult struct {
	Score         float64
	Breakdown     map[string]SectionBreakdown
	MissingFields []string
}

// CalculateProfileCompleteness scores clientGUID's profile completeness
// (CPCS): Holdings 0.35, Mandate 0.35 (mandate_type 0.5 + non-empty
// mandate_text 0.5), Constraints 0.20, Engagement 0.10, each section
// rounded to 2 decimals (spec.md §4.12).
func (s *Service) CalculateProfileCompleteness(clientGUID string) (CompletenessResult, error) {
	client, err := s.GetClient(clientGUID)
	if err != nil {
		return CompletenessResult{}, err
	}
	if client == nil {
		return CompletenessResult{}, errs.New(errs.CodeValidationError, "check the client_guid", "client not found: %s", clientGUID)
	}
	profile, err := s.GetProfile(clientGUID)
	if err != nil {
		return CompletenessResult{}, err
	}
	if profile == nil {
		profile = &domain.ClientProfile{ClientGUID: clientGUID}
	}
	portfolio, err := s.GetPortfolio(clientGUID)
	if err != nil {
		return CompletenessResult{}, err
	}
	watchlist, err := s.GetWatchlist(clientGUID)
	if err != nil {
		return CompletenessResult{}, err
	}

	hasHoldings := len(portfolio.Holdings) > 0 || len(watchlist.Entries) > 0
	scoreHoldings := round2(boolScore(hasHoldings))

	hasMandateText := strings.TrimSpace(profile.MandateText) != ""
	scoreMandateType := 0.0
	if profile.MandateType != "" {
		scoreMandateType = 0.5
	}
	scoreMandateText := 0.0
	if hasMandateText {
		scoreMandateText = 0.5
	}
	scoreMandate := round2(scoreMandateType + scoreMandateText)

	scoreConstraints := round2(boolScore(profile.ESGConstrained.IsSet()))

	hasContact := profile.PrimaryContact != ""
	hasAlertFreq := profile.AlertFrequency != ""
	scoreEngagement := round2(boolScore(hasContact && hasAlertFreq))

	total := round2(scoreHoldings*0.35 + scoreMandate*0.35 + scoreConstraints*0.20 + scoreEngagement*0.10)

	var missing []string
	if !hasHoldings {
		missing = append(missing, "Holdings/Watchlist (no positions or watchlist items found)")
	}
	if profile.MandateType == "" {
		missing = append(missing, "Mandate Type (client_profile.mandate_type)")
	}
	if !hasMandateText {
		missing = append(missing, "Mandate Description (client_profile.mandate_text)")
	}
	if !profile.ESGConstrained.IsSet() {
		missing = append(missing, "ESG Constraints (client_profile.esg_constrained is unset)")
	}
	if !hasContact {
		missing = append(missing, "Primary Contact (client_profile.primary_contact)")
	}
	if !hasAlertFreq {
		missing = append(missing, "Alert Frequency (client_profile.alert_frequency)")
	}

	return CompletenessResult{
		Score: total,
		Breakdown: map[string]SectionBreakdown{
			"holdings": {
				Score: scoreHoldings, Weight: 0.35, Value: round2(scoreHoldings * 0.35),
				Details: map[string]any{"positions": len(portfolio.Holdings), "watchlist_items": len(watchlist.Entries)},
			},
			"mandate": {
				Score: scoreMandate, Weight: 0.35, Value: round2(scoreMandate * 0.35),
				Details: map[string]any{"mandate_type": profile.MandateType != "", "mandate_text": hasMandateText},
			},
			"constraints": {
				Score: scoreConstraints, Weight: 0.20, Value: round2(scoreConstraints * 0.20),
				Details: map[string]any{"esg_constrained_set": profile.ESGConstrained.IsSet()},
			},
			"engagement": {
				Score: scoreEngagement, Weight: 0.10, Value: round2(scoreEngagement * 0.10),
				Details: map[string]any{"primary_contact_set": hasContact, "alert_frequency_set": hasAlertFreq},
			},
		},
		MissingFields: missing,
	}, nil
}

func boolScore(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
