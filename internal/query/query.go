// Package query implements QueryService (spec.md §4.10): hybrid
// vector+graph retrieval with source-trust and recency scoring.
// Grounded on the teacher's internal/embedding/engine.go cosine
// similarity + top-k pattern (here delegated to vectorindex, which
// already implements it) composed with internal/graphindex's
// shared-company/shared-source expansion, plus the teacher's
// internal/campaign/intelligence_gatherer.go errgroup pattern for
// parallel per-hit graph expansion.
package query

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

// DiscoveredVia classifies how a result entered the result set
// (spec.md §4.10 step 3).
type DiscoveredVia string

const (
	DiscoveredSemantic DiscoveredVia = "semantic"
	DiscoveredGraph    DiscoveredVia = "graph"
	DiscoveredBoth     DiscoveredVia = "both"
)

// Weights are QueryService's four scoring factors (spec.md §4.10
// "final = w_sem*similarity + w_trust*source_boost + w_rec*recency +
// w_graph*graph_bonus"). Must sum to 1 ± 0.01; DefaultWeights is used
// whenever a caller-supplied set doesn't.
type Weights struct {
	Semantic float64
	Trust    float64
	Recency  float64
	Graph    float64
}

// DefaultWeights matches spec.md §4.10's default {0.6, 0.2, 0.1, 0.1}.
var DefaultWeights = Weights{Semantic: 0.6, Trust: 0.2, Recency: 0.1, Graph: 0.1}

func (w Weights) normalizedOrDefault() Weights {
	sum := w.Semantic + w.Trust + w.Recency + w.Graph
	if sum < 0.99 || sum > 1.01 {
		return DefaultWeights
	}
	return w
}

// Filters restricts candidates before scoring (spec.md §4.10 step 2).
// Every non-empty/non-zero field narrows the result set further
// (intersection, not union).
type Filters struct {
	DateFrom       time.Time
	DateTo         time.Time
	Regions        []string
	Sectors        []string
	Companies      []string
	SourceIDs      []string
	Languages      []string
	MinImpactScore *float64
	ImpactTiers    []domain.ImpactTier
	EventTypes     []string
}

// ScoreBreakdown is the per-factor contribution to a Result's score
// (spec.md §4.10 step 6 "per-result score breakdown").
type ScoreBreakdown struct {
	Similarity  float64
	SourceBoost float64 // source_boost
	Recency     float64
	GraphBonus  float64
}

// Result is one ranked document (spec.md §4.10).
type Result struct {
	DocID         string
	Title         string
	Language      string
	CreatedAt     time.Time
	ImpactScore   *float64
	ImpactTier    *domain.ImpactTier
	Score         float64
	Breakdown     ScoreBreakdown
	DiscoveredVia DiscoveredVia
}

// Response is QueryService's return value.
type Response struct {
	Results []Result
}

// Embedder is the single method QueryService needs from llmclient.Client
// to turn query_text into a vector, defined locally so this package
// doesn't import internal/llmclient directly (same structural-typing
// convention as ingest.ChatEmbedder).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service is the QueryService implementation.
type Service struct {
	vector  *vectorindex.Index
	graph   *graphindex.Index
	store   *docstore.Store
	sources *sourceregistry.Registry
	embed   Embedder

	graphExpansionConcurrency int
}

// New returns a Service. graph may be nil: graph expansion and the
// graph_bonus score factor both degrade to zero rather than failing the
// query when GraphIndex isn't configured. vector or embed may be nil:
// Query then finds no semantic hits and returns an empty result.
func New(vector *vectorindex.Index, graph *graphindex.Index, store *docstore.Store, sources *sourceregistry.Registry, embed Embedder) *Service {
	return &Service{vector: vector, graph: graph, store: store, sources: sources, embed: embed, graphExpansionConcurrency: 4}
}

// Query runs the spec.md §4.10 pipeline in six steps:
//  1. empty group_ids ⇒ empty result, no error,
//  2. vector search per group, merged,
//  3. optional graph expansion of the top semantic hits (one errgroup
//     goroutine per hit, bounded concurrency, mirroring the teacher's
//     parallel-gatherer pattern — each hit's expansion is independent so a
//     single failure there only means no documents are graph-discovered
//     from that hit, rather than failing the whole query),
//  4. score,
//  5. filter duplicates (unless includeDuplicates),
//  6. sort desc, truncate to nResults.
func (s *Service) Query(ctx context.Context, queryText string, groupIDs []string, nResults int, filters Filters, weights Weights, recencyHalfLifeMinutes float64, enableGraphExpansion, includeDuplicates bool) (Response, error) {
	if len(groupIDs) == 0 {
		return Response{}, nil
	}
	weights = weights.normalizedOrDefault()
	if nResults <= 0 {
		nResults = 10
	}
	if recencyHalfLifeMinutes <= 0 {
		recencyHalfLifeMinutes = 60
	}
	if s.embed == nil || s.vector == nil {
		return Response{}, nil
	}

	emb, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return Response{}, err
	}

	type hit struct {
		docID string
		score float64
	}
	var hits []hit
	for _, g := range groupIDs {
		matches, err := s.vector.SearchSimilar(g, emb, nResults*3)
		if err != nil {
			return Response{}, err
		}
		for _, m := range matches {
			hits = append(hits, hit{docID: m.DocID, score: m.Score})
		}
	}

	discoveredVia := make(map[string]DiscoveredVia, len(hits))
	semanticScore := make(map[string]float64, len(hits))
	for _, h := range hits {
		discoveredVia[h.docID] = DiscoveredSemantic
		if h.score > semanticScore[h.docID] {
			semanticScore[h.docID] = h.score
		}
	}

	if enableGraphExpansion && s.graph != nil && len(hits) > 0 {
		expanded, err := s.expandGraph(ctx, hits)
		if err != nil {
			return Response{}, err
		}
		for docID, via := range expanded {
			if _, isSemantic := semanticScore[docID]; isSemantic {
				discoveredVia[docID] = DiscoveredBoth
			} else if discoveredVia[docID] == "" {
				discoveredVia[docID] = via
			}
		}
	}

	var results []Result
	for docID, via := range discoveredVia {
		doc, err := s.loadFromAnyGroup(docID, groupIDs)
		if err != nil {
			continue
		}
		if !matchesFilters(doc, filters) {
			continue
		}
		if doc.IsDuplicate() && !includeDuplicates {
			continue
		}

		graphBonus := 0.0
		if via == DiscoveredGraph || via == DiscoveredBoth {
			graphBonus = 1.0
		}
		sourceBoost := s.sourceBoost(doc)
		recency := recencyDecay(doc.CreatedAt, recencyHalfLifeMinutes)

		breakdown := ScoreBreakdown{
			Similarity: semanticScore[docID],
			SourceBoost:  sourceBoost,
			Recency:    recency,
			GraphBonus: graphBonus,
		}
		score := weights.Semantic*breakdown.Similarity + weights.Trust*breakdown.SourceBoost + weights.Recency*breakdown.Recency + weights.Graph*breakdown.GraphBonus

		results = append(results, Result{
			DocID:         doc.ID,
			Title:         doc.Title,
			Language:      doc.Language,
			CreatedAt:     doc.CreatedAt,
			ImpactScore:   doc.ImpactScore,
			ImpactTier:    doc.ImpactTier,
			Score:         score,
			Breakdown:     breakdown,
			DiscoveredVia: via,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > nResults {
		results = results[:nResults]
	}
	return Response{Results: results}, nil
}

// loadFromAnyGroup tries each permitted group until one resolves docID.
// A hit discovered only via graph expansion doesn't carry its own
// group_id, so the caller's group_ids (already permission-checked by
// GroupService) double as the search set.
func (s *Service) loadFromAnyGroup(docID string, groupIDs []string) (*domain.Document, error) {
	var lastErr error
	for _, g := range groupIDs {
		doc, err := s.store.Load(docID, g, time.Time{})
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// expandGraph runs GetRelatedDocuments for each hit concurrently
// (bounded), mirroring the teacher's errgroup-gathered-sections pattern.
// A single hit's expansion failure is swallowed (degrades that hit's
// graph_bonus to zero) rather than failing the whole query, the same
// independent-outcome reasoning as ingest.BatchIngest.
func (s *Service) expandGraph(ctx context.Context, hits []struct {
	docID string
	score float64
}) (map[string]DiscoveredVia, error) {
	type found struct {
		docID string
	}
	results := make([][]found, len(hits))

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.graphExpansionConcurrency)
	for i, h := range hits {
		i, h := i, h
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return nil
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			related, err := s.graph.GetRelatedDocuments(h.docID, 2, 20)
			if err != nil {
				return nil
			}
			out := make([]found, 0, len(related))
			for _, r := range related {
				out = append(out, found{docID: r.DocID})
			}
			results[i] = out
			return nil
		})
	}
	_ = eg.Wait()

	out := make(map[string]DiscoveredVia)
	for _, fs := range results {
		for _, f := range fs {
			out[f.docID] = DiscoveredGraph
		}
	}
	return out, nil
}

func (s *Service) sourceBoost(doc *domain.Document) float64 {
	if s.sources == nil {
		return 0
	}
	src, err := s.sources.Get(doc.SourceID, []string{doc.GroupID})
	if err != nil {
		return 0
	}
	return src.TrustLevel.BoostFactor()
}

// recencyDecay is an exponential half-life decay: 1.0 at age zero, 0.5 at
// one half-life, approaching 0 as age grows (spec.md §4.10 step 4).
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

func matchesFilters(doc *domain.Document, f Filters) bool {
	if !f.DateFrom.IsZero() && doc.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && doc.CreatedAt.After(f.DateTo) {
		return false
	}
	if len(f.Languages) > 0 && !containsFold(f.Languages, doc.Language) {
		return false
	}
	if f.MinImpactScore != nil {
		if doc.ImpactScore == nil || *doc.ImpactScore < *f.MinImpactScore {
			return false
		}
	}
	if len(f.ImpactTiers) > 0 {
		if doc.ImpactTier == nil {
			return false
		}
		match := false
		for _, t := range f.ImpactTiers {
			if *doc.ImpactTier == t {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if len(f.SourceIDs) > 0 && !containsFold(f.SourceIDs, doc.SourceID) {
		return false
	}
	if len(f.Regions) > 0 && !anyIntersect(f.Regions, metadataStrings(doc, "regions")) {
		return false
	}
	if len(f.Sectors) > 0 && !anyIntersect(f.Sectors, metadataStrings(doc, "sectors")) {
		return false
	}
	if len(f.Companies) > 0 && !anyIntersect(f.Companies, metadataStrings(doc, "companies")) {
		return false
	}
	if len(f.EventTypes) > 0 && !anyIntersect(f.EventTypes, metadataStrings(doc, "event_types")) {
		return false
	}
	return true
}

// metadataStrings reads a []string metadata field that may have
// round-tripped through JSON as []interface{}.
func metadataStrings(doc *domain.Document, key string) []string {
	raw, ok := doc.Metadata[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func anyIntersect(filter, candidate []string) bool {
	for _, f := range filter {
		for _, c := range candidate {
			if strings.EqualFold(f, c) {
				return true
			}
		}
	}
	return false
}
