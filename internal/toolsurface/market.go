package toolsurface

import (
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
)

// peerInstrument is one related instrument surfaced by get_market_context.
type peerInstrument struct {
	Ticker   string                  `json:"ticker"`
	Name     string                  `json:"name"`
	Relation graphindex.EdgeRelation `json:"relation"`
}

// marketContextResponse is get_market_context's consolidated output
// (spec.md §6 "consolidated context").
type marketContextResponse struct {
	Ticker  string             `json:"ticker"`
	Name    string             `json:"name,omitempty"`
	Peers   []peerInstrument   `json:"peers,omitempty"`
	Events  []marketEventDoc   `json:"events,omitempty"`
	Regions []string           `json:"regions,omitempty"`
	Sectors []string           `json:"sectors,omitempty"`
}

// marketEventDoc is one document surfaced in get_market_context's
// events section — a pared-down projection of domain.Document, not the
// full body query_documents/get_document return.
type marketEventDoc struct {
	DocGUID     string             `json:"doc_guid"`
	Title       string             `json:"title"`
	CreatedAt   time.Time          `json:"created_at"`
	ImpactScore *float64           `json:"impact_score,omitempty"`
	ImpactTier  *domain.ImpactTier `json:"impact_tier,omitempty"`
}

const defaultMarketContextLimit = 20

// stringSliceValue tolerates both a native []string (set before a
// save/load round trip) and the []interface{} json.Unmarshal produces
// for a map[string]interface{} field read back from a persisted
// document, so region/sector aggregation works regardless of whether
// the document metadata came straight from Extract or off disk.
func stringSliceValue(v any) []string {
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

// GetMarketContext implements the get_market_context tool: a ticker's
// instrument/company identity, optionally its PEER_OF/COMPETES_WITH/
// SUPPLIES_TO neighbors (include_peers) and recent AFFECTS documents
// within days_back (include_events). include_indices broadens the
// events window into the region/sector tags extraction already stamped
// onto each document's metadata (doc.Metadata["regions"/"sectors"])
// rather than a dedicated index time series, which GraphIndex doesn't
// model — the closest consolidated signal the stored data actually
// carries.
func (s *Surface) GetMarketContext(tokens []string, ticker string, includePeers, includeEvents, includeIndices bool, daysBack int) Envelope {
	ticker = domain.NormalizeTicker(ticker)
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}

	instGUID, err := s.graph.FindNodeByNaturalKey(graphindex.LabelInstrument, ticker)
	if err != nil {
		return errEnvelope(err)
	}
	if instGUID == "" {
		return errEnvelope(errs.New(errs.CodeValidationError, "check the ticker", "instrument not found: %s", ticker))
	}
	node, err := s.graph.GetNode(instGUID)
	if err != nil {
		return errEnvelope(err)
	}

	resp := marketContextResponse{Ticker: ticker}
	if node != nil {
		if name, ok := node.Properties["name"].(string); ok {
			resp.Name = name
		}
	}

	if includePeers {
		edges, err := s.graph.GetAdjacentEdges(instGUID, []graphindex.EdgeRelation{
			graphindex.RelPeerOf, graphindex.RelCompetesWith, graphindex.RelSuppliesTo,
		})
		if err != nil {
			return errEnvelope(err)
		}
		for _, e := range edges {
			peerNode, err := s.graph.GetNode(e.OtherGUID)
			if err != nil || peerNode == nil {
				continue
			}
			name, _ := peerNode.Properties["name"].(string)
			resp.Peers = append(resp.Peers, peerInstrument{Ticker: peerNode.NaturalKey, Name: name, Relation: e.Relation})
		}
	}

	if includeEvents || includeIndices {
		if daysBack <= 0 {
			daysBack = 30
		}
		since := time.Now().UTC().AddDate(0, 0, -daysBack)
		docGUIDs, err := s.graph.GetDocumentsAffecting(ticker, defaultMarketContextLimit)
		if err != nil {
			return errEnvelope(err)
		}
		regionSet := map[string]bool{}
		sectorSet := map[string]bool{}
		for _, guid := range docGUIDs {
			doc, loadErr := s.store.LoadWithAccessCheck(guid, access, time.Time{})
			if loadErr != nil || doc == nil || doc.CreatedAt.Before(since) {
				continue
			}
			if includeEvents {
				resp.Events = append(resp.Events, marketEventDoc{
					DocGUID: guid, Title: doc.Title, CreatedAt: doc.CreatedAt,
					ImpactScore: doc.ImpactScore, ImpactTier: doc.ImpactTier,
				})
			}
			if includeIndices {
				for _, r := range stringSliceValue(doc.Metadata["regions"]) {
					regionSet[r] = true
				}
				for _, sec := range stringSliceValue(doc.Metadata["sectors"]) {
					sectorSet[sec] = true
				}
			}
		}
		for r := range regionSet {
			resp.Regions = append(resp.Regions, r)
		}
		for sec := range sectorSet {
			resp.Sectors = append(resp.Sectors, sec)
		}
	}

	return ok(resp)
}
