// Package feed implements AvatarFeedService (spec.md §4.11): a
// two-channel MAINTENANCE/OPPORTUNITY personalized document feed built
// from one graph-and-store traversal batch per call. Grounded on
// internal/query's scoring-and-merge shape (compute a score per
// candidate, sort desc, truncate) and on the λ-parameterized
// ScoringConfig recovered from
// original_source/simulation/measure_bias_sensitivity.py's bias-sweep
// harness, generalized from that harness's "vary λ, recompute scores"
// loop into the production formula it was built to validate.
package feed

import (
	"context"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/clientsvc"
	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

// Channel is a feed item's discovery channel.
type Channel string

const (
	ChannelMaintenance Channel = "MAINTENANCE"
	ChannelOpportunity Channel = "OPPORTUNITY"
)

// ScoringConfig is the λ-dependent discovery-channel weight vector
// (spec.md §4.11 "Scoring config").
type ScoringConfig struct {
	DirectHoldingBase      float64
	WatchlistBase          float64
	ThematicBase           float64
	VectorBase             float64
	CompetitorBase         float64
	SupplierBase           float64
	PeerBase               float64
	RecencyHalfLifeMinutes float64
}

// DefaultScoringConfig derives the scoring config from opportunity_bias
// λ ∈ [0,1] per spec.md §4.11's literal formulas.
func DefaultScoringConfig(lambda float64) ScoringConfig {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return ScoringConfig{
		DirectHoldingBase:      1.0 - 0.4*lambda,
		WatchlistBase:          0.8,
		ThematicBase:           0.5 + 0.5*lambda,
		VectorBase:             0.4 + 0.4*lambda,
		CompetitorBase:         0.4 + 0.3*lambda,
		SupplierBase:           0.6 - 0.2*lambda,
		PeerBase:               0.4 + 0.2*lambda,
		RecencyHalfLifeMinutes: 60 + 120*lambda,
	}
}

// withEnvOverrides reads GOFR_IQ_FEED_WEIGHT_{DIRECT_HOLDING,WATCHLIST,
// THEMATIC,VECTOR,COMPETITOR,SUPPLIER,PEER}; when any is set, the seven
// discovery-channel weights (not the recency half-life, which has its
// own λ formula) are renormalized to sum to 1, fail-closed to the
// λ-derived defaults if the overridden sum is non-positive (spec.md
// §4.11 "env overrides on individual weights renormalize to sum-1"),
// mirroring internal/config's applyWeightOverrides.
func (c ScoringConfig) withEnvOverrides() ScoringConfig {
	w := [7]float64{c.DirectHoldingBase, c.WatchlistBase, c.ThematicBase, c.VectorBase, c.CompetitorBase, c.SupplierBase, c.PeerBase}
	keys := [7]string{
		"GOFR_IQ_FEED_WEIGHT_DIRECT_HOLDING",
		"GOFR_IQ_FEED_WEIGHT_WATCHLIST",
		"GOFR_IQ_FEED_WEIGHT_THEMATIC",
		"GOFR_IQ_FEED_WEIGHT_VECTOR",
		"GOFR_IQ_FEED_WEIGHT_COMPETITOR",
		"GOFR_IQ_FEED_WEIGHT_SUPPLIER",
		"GOFR_IQ_FEED_WEIGHT_PEER",
	}
	changed := false
	for i, k := range keys {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				w[i] = f
				changed = true
			}
		}
	}
	if !changed {
		return c
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return c
	}
	c.DirectHoldingBase = w[0] / sum
	c.WatchlistBase = w[1] / sum
	c.ThematicBase = w[2] / sum
	c.VectorBase = w[3] / sum
	c.CompetitorBase = w[4] / sum
	c.SupplierBase = w[5] / sum
	c.PeerBase = w[6] / sum
	return c
}

// Item is one entry in a feed channel (spec.md §4.11's required fields).
type Item struct {
	Channel             Channel
	DocumentGUID        string
	Title               string
	ImpactTier          *domain.ImpactTier
	RelevanceScore      float64
	AffectedInstruments []string
	Themes              []string
	Reason              string
}

// Feed is get_client_avatar_feed's return shape.
type Feed struct {
	Maintenance []Item
	Opportunity []Item
	Combined    []Item
}

// Service is the GraphIndex/DocumentStore/VectorIndex-backed
// AvatarFeedService.
type Service struct {
	graph   *graphindex.Index
	store   *docstore.Store
	vector  *vectorindex.Index
	clients *clientsvc.Service
}

// New constructs a Service. vector may be nil to skip vector-similarity
// opportunity discovery.
func New(graph *graphindex.Index, store *docstore.Store, vector *vectorindex.Index, clients *clientsvc.Service) *Service {
	return &Service{graph: graph, store: store, vector: vector, clients: clients}
}

const defaultLimit = 20

// GetClientAvatarFeed builds clientGUID's personalized MAINTENANCE and
// OPPORTUNITY feeds (spec.md §4.11).
func (s *Service) GetClientAvatarFeed(ctx context.Context, clientGUID string, limit, timeWindowHours int, opportunityBias float64) (Feed, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if timeWindowHours <= 0 {
		timeWindowHours = 168
	}
	client, err := s.clients.GetClient(clientGUID)
	if err != nil {
		return Feed{}, err
	}
	if client == nil {
		return Feed{}, errs.New(errs.CodeValidationError, "check the client_guid", "client not found: %s", clientGUID)
	}
	profile, err := s.clients.GetProfile(clientGUID)
	if err != nil {
		return Feed{}, err
	}
	portfolio, err := s.clients.GetPortfolio(clientGUID)
	if err != nil {
		return Feed{}, err
	}
	watchlist, err := s.clients.GetWatchlist(clientGUID)
	if err != nil {
		return Feed{}, err
	}

	cfg := DefaultScoringConfig(opportunityBias).withEnvOverrides()
	since := time.Now().UTC().Add(-time.Duration(timeWindowHours) * time.Hour)

	positionWeight := make(map[string]float64, len(portfolio.Holdings)+len(watchlist.Entries))
	for _, h := range portfolio.Holdings {
		positionWeight[h.Ticker] = cfg.DirectHoldingBase
	}
	for _, w := range watchlist.Entries {
		if _, held := positionWeight[w.Ticker]; !held {
			positionWeight[w.Ticker] = cfg.WatchlistBase
		}
	}
	positionTickers := make(map[string]bool, len(positionWeight))
	for t := range positionWeight {
		positionTickers[t] = true
	}

	seen := map[string]bool{}
	var maintenance []Item
	for ticker, weight := range positionWeight {
		docGUIDs, err := s.graph.GetDocumentsAffecting(ticker, 0)
		if err != nil {
			return Feed{}, err
		}
		for _, docGUID := range docGUIDs {
			if seen[docGUID] {
				continue
			}
			doc, err := s.loadDocument(docGUID, client.GroupID)
			if err != nil || doc == nil {
				continue
			}
			if doc.CreatedAt.Before(since) {
				continue
			}
			if doc.ImpactScore == nil {
				continue
			}
			if profile != nil && *doc.ImpactScore < profile.ImpactThreshold {
				continue
			}
			affected, err := s.affectedTickers(docGUID)
			if err != nil {
				return Feed{}, err
			}
			seen[docGUID] = true
			impactNorm := *doc.ImpactScore / 100
			recency := recencyDecay(doc.CreatedAt, cfg.RecencyHalfLifeMinutes)
			score := impactNorm * recency * weight
			maintenance = append(maintenance, Item{
				Channel:             ChannelMaintenance,
				DocumentGUID:        docGUID,
				Title:               doc.Title,
				ImpactTier:          doc.ImpactTier,
				RelevanceScore:      score,
				AffectedInstruments: affected,
				Themes:              doc.Themes,
				Reason:              "affects held position " + ticker,
			})
		}
	}

	var opportunity []Item
	if profile != nil && len(profile.MandateThemes) > 0 {
		candidates, err := s.store.ListByDateRange(client.GroupID, since, time.Now().UTC(), 0)
		if err != nil {
			return Feed{}, err
		}
		for _, doc := range candidates {
			if seen[doc.ID] {
				continue
			}
			matched := intersect(profile.MandateThemes, doc.Themes)
			if len(matched) == 0 {
				continue
			}
			affected, err := s.affectedTickers(doc.ID)
			if err != nil {
				return Feed{}, err
			}
			if anyTickerHeld(affected, positionTickers) {
				continue
			}
			if doc.ImpactScore == nil || violatesRestrictions(affected, profile.Restrictions, s) {
				continue
			}
			seen[doc.ID] = true
			themeFit := float64(len(matched)) / float64(len(profile.MandateThemes))
			impactNorm := *doc.ImpactScore / 100
			recency := recencyDecay(doc.CreatedAt, cfg.RecencyHalfLifeMinutes)
			score := themeFit * impactNorm * recency * cfg.ThematicBase
			opportunity = append(opportunity, Item{
				Channel:             ChannelOpportunity,
				DocumentGUID:        doc.ID,
				Title:               doc.Title,
				ImpactTier:          doc.ImpactTier,
				RelevanceScore:      score,
				AffectedInstruments: affected,
				Themes:              doc.Themes,
				Reason:              "matches mandate theme " + matched[0],
			})
		}
	}

	relationOpportunities, err := s.graphRelationOpportunities(client.GroupID, positionTickers, seen, cfg, since, profile)
	if err != nil {
		return Feed{}, err
	}
	opportunity = append(opportunity, relationOpportunities...)

	if s.vector != nil && profile != nil && len(profile.MandateEmbedding) > 0 {
		vectorOpportunities, err := s.vectorOpportunities(client.GroupID, profile, positionTickers, seen, cfg, since)
		if err != nil {
			return Feed{}, err
		}
		opportunity = append(opportunity, vectorOpportunities...)
	}

	sortByScoreDesc(maintenance)
	sortByScoreDesc(opportunity)
	if len(maintenance) > limit {
		maintenance = maintenance[:limit]
	}
	if len(opportunity) > limit {
		opportunity = opportunity[:limit]
	}
	combined := append(append([]Item{}, maintenance...), opportunity...)
	sortByScoreDesc(combined)
	if len(combined) > limit {
		combined = combined[:limit]
	}

	return Feed{Maintenance: maintenance, Opportunity: opportunity, Combined: combined}, nil
}

// graphRelationOpportunities discovers OPPORTUNITY candidates whose
// affected instruments compete with, supply, or are peers of a held
// position — novel relative to the client's own holdings, but adjacent
// enough to be actionable (spec.md §4.11's competitor/supplier/peer
// scoring-config entries).
func (s *Service) graphRelationOpportunities(groupID string, positionTickers map[string]bool, seen map[string]bool, cfg ScoringConfig, since time.Time, profile *domain.ClientProfile) ([]Item, error) {
	relations := []struct {
		rel    graphindex.EdgeRelation
		base   float64
		reason string
	}{
		{graphindex.RelCompetesWith, cfg.CompetitorBase, "competes with a held position"},
		{graphindex.RelSuppliesTo, cfg.SupplierBase, "supplies a held position"},
		{graphindex.RelPeerOf, cfg.PeerBase, "is a peer of a held position"},
	}
	var out []Item
	for ticker := range positionTickers {
		instGUID, err := s.graph.FindNodeByNaturalKey(graphindex.LabelInstrument, ticker)
		if err != nil {
			return nil, err
		}
		if instGUID == "" {
			continue
		}
		for _, r := range relations {
			edges, err := s.graph.GetEdgesFrom(instGUID, r.rel)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				relatedNode, err := s.graph.GetNode(e.ToGUID)
				if err != nil || relatedNode == nil {
					continue
				}
				relatedTicker := relatedNode.NaturalKey
				if positionTickers[relatedTicker] {
					continue
				}
				docGUIDs, err := s.graph.GetDocumentsAffecting(relatedTicker, 0)
				if err != nil {
					return nil, err
				}
				for _, docGUID := range docGUIDs {
					if seen[docGUID] {
						continue
					}
					doc, err := s.loadDocument(docGUID, groupID)
					if err != nil || doc == nil || doc.ImpactScore == nil {
						continue
					}
					if doc.CreatedAt.Before(since) {
						continue
					}
					affected, err := s.affectedTickers(docGUID)
					if err != nil {
						return nil, err
					}
					if anyTickerHeld(affected, positionTickers) {
						continue
					}
					if profile != nil && violatesRestrictions(affected, profile.Restrictions, s) {
						continue
					}
					seen[docGUID] = true
					impactNorm := *doc.ImpactScore / 100
					recency := recencyDecay(doc.CreatedAt, cfg.RecencyHalfLifeMinutes)
					out = append(out, Item{
						Channel:             ChannelOpportunity,
						DocumentGUID:        docGUID,
						Title:               doc.Title,
						ImpactTier:          doc.ImpactTier,
						RelevanceScore:      impactNorm * recency * r.base,
						AffectedInstruments: affected,
						Themes:              doc.Themes,
						Reason:              relatedTicker + " " + r.reason + " " + ticker,
					})
				}
			}
		}
	}
	return out, nil
}

// vectorOpportunities discovers candidates by semantic similarity to
// the client's stored mandate embedding, for clients whose mandate
// doesn't use controlled-vocabulary themes but whose free-text mandate
// still has a meaningful embedding (spec.md §4.11's vector_base entry).
func (s *Service) vectorOpportunities(groupID string, profile *domain.ClientProfile, positionTickers map[string]bool, seen map[string]bool, cfg ScoringConfig, since time.Time) ([]Item, error) {
	matches, err := s.vector.SearchSimilar(groupID, profile.MandateEmbedding, defaultLimit*2)
	if err != nil {
		return nil, err
	}
	var out []Item
	for _, m := range matches {
		if seen[m.DocID] {
			continue
		}
		doc, err := s.loadDocument(m.DocID, groupID)
		if err != nil || doc == nil || doc.ImpactScore == nil {
			continue
		}
		if doc.CreatedAt.Before(since) {
			continue
		}
		affected, err := s.affectedTickers(doc.ID)
		if err != nil {
			return nil, err
		}
		if anyTickerHeld(affected, positionTickers) {
			continue
		}
		if violatesRestrictions(affected, profile.Restrictions, s) {
			continue
		}
		seen[m.DocID] = true
		impactNorm := *doc.ImpactScore / 100
		recency := recencyDecay(doc.CreatedAt, cfg.RecencyHalfLifeMinutes)
		out = append(out, Item{
			Channel:             ChannelOpportunity,
			DocumentGUID:        doc.ID,
			Title:               doc.Title,
			ImpactTier:          doc.ImpactTier,
			RelevanceScore:      m.Score * impactNorm * recency * cfg.VectorBase,
			AffectedInstruments: affected,
			Themes:              doc.Themes,
			Reason:              "semantically matches client mandate",
		})
	}
	return out, nil
}

func (s *Service) loadDocument(docGUID, groupID string) (*domain.Document, error) {
	doc, err := s.store.Load(docGUID, groupID, time.Time{})
	if err != nil {
		return nil, nil
	}
	return doc, nil
}

func (s *Service) affectedTickers(docGUID string) ([]string, error) {
	edges, err := s.graph.GetEdgesFrom(docGUID, graphindex.RelAffects)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		node, err := s.graph.GetNode(e.ToGUID)
		if err != nil || node == nil {
			continue
		}
		out = append(out, node.NaturalKey)
	}
	return out, nil
}

// violatesRestrictions reports whether any affected instrument's sector
// is in the client's excluded industries (spec.md §4.11's restrictions
// screen; only EthicalSector is consulted, per domain.Restrictions'
// doc comment).
func violatesRestrictions(affectedTickers []string, r domain.Restrictions, s *Service) bool {
	if len(r.EthicalSector.ExcludedIndustries) == 0 {
		return false
	}
	for _, ticker := range affectedTickers {
		guid, err := s.graph.FindNodeByNaturalKey(graphindex.LabelInstrument, ticker)
		if err != nil || guid == "" {
			continue
		}
		node, err := s.graph.GetNode(guid)
		if err != nil || node == nil {
			continue
		}
		companyTicker, _ := node.Properties["company_ticker"].(string)
		if companyTicker == "" {
			continue
		}
		companyGUID, err := s.graph.FindNodeByNaturalKey(graphindex.LabelCompany, companyTicker)
		if err != nil || companyGUID == "" {
			continue
		}
		companyNode, err := s.graph.GetNode(companyGUID)
		if err != nil || companyNode == nil {
			continue
		}
		sector, _ := companyNode.Properties["sector"].(string)
		for _, excluded := range r.EthicalSector.ExcludedIndustries {
			if strings.EqualFold(sector, excluded) {
				return true
			}
		}
	}
	return false
}

func anyTickerHeld(tickers []string, positionTickers map[string]bool) bool {
	for _, t := range tickers {
		if positionTickers[t] {
			return true
		}
	}
	return false
}

func intersect(mandateThemes, docThemes []string) []string {
	docSet := make(map[string]bool, len(docThemes))
	for _, t := range docThemes {
		docSet[t] = true
	}
	var out []string
	for _, t := range mandateThemes {
		if docSet[t] {
			out = append(out, t)
		}
	}
	return out
}

func recencyDecay(createdAt time.Time, halfLifeMinutes float64) float64 {
	if halfLifeMinutes <= 0 {
		halfLifeMinutes = 60
	}
	ageMinutes := time.Since(createdAt).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	return math.Pow(0.5, ageMinutes/halfLifeMinutes)
}

func sortByScoreDesc(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].RelevanceScore > items[j].RelevanceScore })
}
