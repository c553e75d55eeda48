// Package ingest implements IngestService (spec.md §4.9): the eight-step
// pipeline that turns a raw (title, content, source_id) triple into a
// persisted, extracted, and indexed Document. Grounded on the teacher's
// internal/store ingest-then-index ordering (write the authoritative
// record before any derived index, roll back derived writes on failure)
// and on original_source/app/services/ingest_service.py's step ordering
// and degrade-on-extraction-failure policy.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gofr-iq/gofr-iq/internal/alias"
	"github.com/gofr-iq/gofr-iq/internal/dedupe"
	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/extraction"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/language"
	"github.com/gofr-iq/gofr-iq/internal/obslog"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

// DefaultBatchConcurrency bounds how many documents BatchIngest processes
// at once when a caller doesn't specify a concurrency.
const DefaultBatchConcurrency = 4

// BatchItem is one document in a BatchIngest call.
type BatchItem struct {
	Title        string
	Content      string
	SourceID     string
	GroupID      string
	Language     string
	Metadata     map[string]any
	AccessGroups []string
}

// BatchResult pairs a BatchItem's position with its outcome. Err is set
// when the item's Ingest call returned an error; Result is still the
// best-effort StatusFailed result in that case.
type BatchResult struct {
	Index  int
	Result Result
	Err    error
}

// Status is the outcome of a single Ingest call (spec.md §4.9).
type Status string

const (
	StatusSuccess   Status = "success"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Result is IngestService's return value.
type Result struct {
	DocID       string
	Status      Status
	Language    string
	WordCount   int
	DuplicateOf string
	Error       string
}

// ValidationResult is the dry-run outcome of Validate (spec.md §6
// validate_document tool: steps 1-4 only, nothing persisted).
type ValidationResult struct {
	Valid          bool
	SourceValid    bool
	WordCountValid bool
	Language       string
	IsDuplicate    bool
	DuplicateOf    string
	Issues         []string
}

// ChatEmbedder is the subset of llmclient.Client IngestService needs:
// extraction's chat call plus a single-text embedding call for the
// duplicate-detection embedding pass. Defined locally, mirroring
// extraction.ChatClient and dedupe.EmbeddingLookup, so this package
// doesn't import internal/llmclient directly; llmclient.Client
// satisfies it structurally.
type ChatEmbedder interface {
	extraction.ChatClient
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service is the filesystem/SQLite-backed IngestService.
type Service struct {
	store               *docstore.Store
	sources             *sourceregistry.Registry
	graph               *graphindex.Index
	vector              *vectorindex.Index
	aliases             *alias.Resolver
	llm                 ChatEmbedder
	audit               *obslog.AuditService
	log                 *zap.SugaredLogger
	similarityThreshold float64
}

// New returns a Service. vector, graph's alias resolver, and llm may be
// nil: vector indexing, alias-based edge creation, and extraction/
// embedding all degrade gracefully rather than failing ingest when their
// backing dependency isn't configured (spec.md §4.9 "non-fatal
// conditions degrade rather than fail").
func New(store *docstore.Store, sources *sourceregistry.Registry, graph *graphindex.Index, vector *vectorindex.Index, aliases *alias.Resolver, llm ChatEmbedder, audit *obslog.AuditService, log *zap.SugaredLogger, similarityThreshold float64) *Service {
	if similarityThreshold <= 0 {
		similarityThreshold = dedupe.DefaultSimilarityThreshold
	}
	return &Service{
		store:               store,
		sources:             sources,
		graph:               graph,
		vector:              vector,
		aliases:             aliases,
		llm:                 llm,
		audit:               audit,
		log:                 log,
		similarityThreshold: similarityThreshold,
	}
}

// Validate runs steps 1-4 of the ingest pipeline (source, word count,
// language, duplicate check) without persisting anything, for the
// validate_document tool (spec.md §6).
func (s *Service) Validate(ctx context.Context, title, content, sourceID, groupID, lang string, accessGroups []string) (ValidationResult, error) {
	result := ValidationResult{Valid: true, SourceValid: true, WordCountValid: true}

	src, err := s.sources.Get(sourceID, accessGroups)
	if err != nil || !src.Active {
		result.Valid = false
		result.SourceValid = false
		result.Issues = append(result.Issues, "source is missing, inactive, or not accessible")
	}

	wordCount := domain.CountWords(content)
	if wordCount > domain.MaxWordCount {
		result.Valid = false
		result.WordCountValid = false
		result.Issues = append(result.Issues, fmt.Sprintf("word count %d exceeds max %d", wordCount, domain.MaxWordCount))
	}

	detectedLang := lang
	if detectedLang == "" {
		detectedLang = language.DetectFromTitleAndContent(title, content).Language
	}
	result.Language = detectedLang

	if s.graph != nil {
		dupe, err := dedupe.Check(title, content, groupID, s.graph, time.Now().UTC(), nil, nil)
		if err != nil {
			result.Issues = append(result.Issues, "duplicate check failed: "+err.Error())
		} else if dupe.IsDuplicate {
			result.IsDuplicate = true
			result.DuplicateOf = dupe.DuplicateOf
		}
	}

	return result, nil
}

// Ingest runs the full eight-step pipeline (spec.md §4.9):
//  1. validate source (active, accessible)
//  2. word count
//  3. language (detect if not supplied)
//  4. duplicate check (content_hash -> story_fingerprint -> embedding)
//  5. persist file — the commit point; failure here fails the ingest
//     with nothing to roll back
//  6. extract (LLM) — a parse failure degrades: the document is kept,
//     graph edges derived from extraction are simply not created
//  7. index: vector embed, then graph node + edges, in that order, with
//     a compensating rollback (vector delete, graph delete, then the
//     persisted file last) if either fails
//  8. audit
//
// Open question (spec.md §9): step 4's DuplicateDetector accepts an
// optional extraction hint for its story_fingerprint step, but
// extraction (step 6) runs after duplicate-check (step 4). Standard
// ingest therefore always runs the dedupe check with extraction=nil —
// fingerprint-based dedup only fires when a caller already knows its
// tickers/event_type up front, which a first-pass live ingest never
// does. This is a deliberate resolution, not an oversight: re-running
// dedupe after extraction would make the persist-then-extract ordering
// meaningless (a second duplicate-found result after the file is
// already committed has nowhere useful to go except marking the
// already-persisted document, which NewVersion/MarkDuplicate supports
// but which step 5-7's "one persist" contract doesn't call for).
func (s *Service) Ingest(ctx context.Context, title, content, sourceID, groupID, lang string, metadata map[string]any, accessGroups []string) (Result, error) {
	// Step 1: validate source.
	src, err := s.sources.Get(sourceID, accessGroups)
	if err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}
	if !src.Active {
		ierr := errs.InvalidSource(fmt.Sprintf("source %s is not active", sourceID))
		return Result{Status: StatusFailed, Error: ierr.Error()}, ierr
	}

	// Step 2: word count.
	wordCount := domain.CountWords(content)
	if wordCount > domain.MaxWordCount {
		ierr := errs.WordCountExceeded(wordCount, domain.MaxWordCount)
		return Result{Status: StatusFailed, WordCount: wordCount, Error: ierr.Error()}, ierr
	}

	// Step 3: language.
	autoDetected := false
	if lang == "" {
		detected := language.DetectFromTitleAndContent(title, content)
		lang = detected.Language
		autoDetected = true
	}

	// Step 4: duplicate check. Embedding similarity only runs when both
	// an LLM and a vector index are configured; a failed embedding call
	// or similarity search degrades to hash/fingerprint-only checking
	// rather than failing the ingest.
	createdAt := time.Now().UTC()
	var dedupeOpts *dedupe.Options
	if s.llm != nil && s.vector != nil {
		if emb, embErr := s.llm.Embed(ctx, title+" "+content); embErr != nil {
			s.log.Warnw("dedupe embedding failed, falling back to hash/fingerprint check", "error", embErr)
		} else if len(emb) > 0 {
			dedupeOpts = &dedupe.Options{
				Embeddings:          dedupe.VectorIndexAdapter{Index: s.vector},
				QueryEmbedding:      emb,
				SimilarityThreshold: s.similarityThreshold,
			}
		}
	}
	var graphLookup dedupe.GraphLookup
	if s.graph != nil {
		graphLookup = s.graph
	}
	dupe, err := dedupe.Check(title, content, groupID, graphLookup, createdAt, nil, dedupeOpts)
	if err != nil && dedupeOpts != nil {
		s.log.Warnw("dedupe similarity search failed, falling back to hash/fingerprint check", "error", err)
		dupe, err = dedupe.Check(title, content, groupID, graphLookup, createdAt, nil, nil)
	}
	if err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}

	// Step 5: persist file — the commit point.
	doc, err := domain.NewDocument(title, content, sourceID, groupID, lang, autoDetected, metadata)
	if err != nil {
		ierr := errs.ValidationError(err)
		return Result{Status: StatusFailed, Error: ierr.Error()}, ierr
	}
	doc.CreatedAt = createdAt
	if dupe.IsDuplicate {
		marked, markErr := doc.MarkDuplicate(dupe.DuplicateOf, dupe.Score)
		if markErr != nil {
			ierr := errs.ValidationError(markErr)
			return Result{Status: StatusFailed, Error: ierr.Error()}, ierr
		}
		doc = marked
	}
	if err := s.store.Save(doc); err != nil {
		return Result{Status: StatusFailed, Error: err.Error()}, err
	}

	// Step 6: extract. A parse/shape failure degrades: keep the
	// document, skip extraction-derived edges (spec.md §4.9 step 6).
	var extractResult *extraction.Result
	if s.llm != nil {
		res, extErr := extraction.Extract(ctx, s.llm, title, content, src.Name, createdAt.Format(time.RFC3339))
		if extErr != nil {
			s.log.Warnw("extraction failed, ingesting without extraction-derived fields", "doc_id", doc.ID, "error", extErr)
		} else {
			extractResult = &res
			score := res.ImpactScore
			tier := res.ImpactTier
			doc.ImpactScore = &score
			doc.ImpactTier = &tier
			doc.Themes = res.Themes
			if doc.Metadata == nil {
				doc.Metadata = map[string]any{}
			}
			doc.Metadata["regions"] = res.Regions
			doc.Metadata["sectors"] = res.Sectors
			doc.Metadata["companies"] = res.Companies
			eventCodes := make([]string, 0, len(res.Events))
			for _, ev := range res.Events {
				eventCodes = append(eventCodes, ev.EventType)
			}
			doc.Metadata["event_types"] = eventCodes
			if saveErr := s.store.Save(doc); saveErr != nil {
				s.log.Errorw("failed to persist extraction-enriched document, indexing with base fields", "doc_id", doc.ID, "error", saveErr)
			}
		}
	}

	// Step 7: index vector then graph, with rollback on failure.
	var undos []func() error
	rollback := func(cause error) (Result, error) {
		for _, undo := range undos {
			if uerr := undo(); uerr != nil {
				s.log.Errorw("ingest rollback step failed", "doc_id", doc.ID, "error", uerr)
			}
		}
		if derr := s.store.Delete(doc.ID, doc.GroupID); derr != nil {
			s.log.Errorw("ingest rollback: failed to delete persisted document", "doc_id", doc.ID, "error", derr)
		}
		ierr := errs.IngestFailed(cause)
		return Result{DocID: doc.ID, Status: StatusFailed, Language: lang, WordCount: wordCount, Error: ierr.Error()}, ierr
	}

	if s.vector != nil && s.llm != nil {
		embedFn := func(texts []string) ([][]float32, error) { return s.llm.EmbedBatch(ctx, texts) }
		if err := s.vector.EmbedDocument(doc.ID, doc.Content, doc.GroupID, doc.SourceID, doc.Language, flattenDocMetadata(doc), embedFn); err != nil {
			return rollback(err)
		}
		undos = append(undos, func() error { return s.vector.DeleteDocument(doc.ID) })
	}

	if s.graph != nil {
		if err := s.graph.CreateDocumentNode(doc); err != nil {
			return rollback(err)
		}
		undos = append(undos, func() error { return s.graph.DeleteDocumentNode(doc.ID) })

		if extractResult != nil {
			s.createExtractionEdges(doc, extractResult)
		}
	}

	// Step 8: audit.
	status := StatusSuccess
	if dupe.IsDuplicate {
		status = StatusDuplicate
	}
	if s.audit != nil {
		payload := map[string]any{
			"status":     string(status),
			"language":   doc.Language,
			"word_count": doc.WordCount,
			"source_id":  doc.SourceID,
		}
		if dupe.IsDuplicate {
			payload["duplicate_of"] = dupe.DuplicateOf
			payload["duplicate_method"] = string(dupe.Method)
		}
		if err := s.audit.LogDocumentIngest(doc.ID, accessGroups, payload); err != nil {
			s.log.Errorw("failed to write ingest audit record", "doc_id", doc.ID, "error", err)
		}
	}

	return Result{
		DocID:       doc.ID,
		Status:      status,
		Language:    doc.Language,
		WordCount:   doc.WordCount,
		DuplicateOf: dupe.DuplicateOf,
	}, nil
}

// BatchIngest runs Ingest for each item with bounded concurrency, grounded
// on the teacher's intelligence-gathering errgroup pattern (parallel
// independent units of work, each failure captured rather than aborting
// the group). A single item's failure never cancels the others — this
// differs from the teacher's report-gathering errgroup, which is fine
// letting one gatherer's error propagate because the report is discarded
// on any failure; a batch ingest has no such all-or-nothing contract,
// each document's outcome is independent and must be reported on its own.
// concurrency <= 0 falls back to DefaultBatchConcurrency.
func (s *Service) BatchIngest(ctx context.Context, items []BatchItem, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	results := make([]BatchResult, len(items))

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.Ingest(egCtx, item.Title, item.Content, item.SourceID, item.GroupID, item.Language, item.Metadata, item.AccessGroups)
			results[i] = BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

// createExtractionEdges links the document to its resolved instruments,
// companies, and primary event type. Entities that don't resolve to an
// existing graph node are skipped rather than failing ingest — the
// phantom-instrument ban means only already-known entities get edges
// (spec.md §4.9 step 6, §4.7).
//
// On a duplicate-flagged document, AFFECTS and TRIGGERED_BY edges are
// skipped (spec.md §4.9's duplicate note names these two relations
// explicitly); MENTIONS edges for companies are still created since the
// spec's skip-list doesn't name MENTIONS and a duplicate republication
// still genuinely mentions those companies.
func (s *Service) createExtractionEdges(doc *domain.Document, result *extraction.Result) {
	if s.aliases == nil {
		return
	}

	if !doc.IsDuplicate() {
		for _, inst := range result.Instruments {
			guid, err := s.aliases.Resolve(inst.Ticker, domain.SchemeTicker)
			if err != nil {
				s.log.Warnw("instrument alias resolution failed", "doc_id", doc.ID, "ticker", inst.Ticker, "error", err)
				continue
			}
			if guid == "" {
				continue
			}
			weight := inst.Magnitude
			if weight <= 0 {
				weight = 1.0
			}
			if err := s.graph.CreateMentionEdge(doc.ID, graphindex.RelAffects, guid, weight); err != nil {
				s.log.Warnw("failed to create AFFECTS edge", "doc_id", doc.ID, "ticker", inst.Ticker, "error", err)
			}
		}
	}

	for _, company := range result.Companies {
		guid, err := s.aliases.Resolve(company, domain.SchemeNameVariant)
		if err != nil {
			s.log.Warnw("company alias resolution failed", "doc_id", doc.ID, "company", company, "error", err)
			continue
		}
		if guid == "" {
			continue
		}
		if err := s.graph.CreateMentionEdge(doc.ID, graphindex.RelMentions, guid, 1.0); err != nil {
			s.log.Warnw("failed to create MENTIONS edge", "doc_id", doc.ID, "company", company, "error", err)
		}
	}

	if !doc.IsDuplicate() {
		if code := result.PrimaryEventType(); code != "" {
			guid, err := s.graph.FindNodeByNaturalKey(graphindex.LabelEventType, code)
			if err != nil {
				s.log.Warnw("event type lookup failed", "doc_id", doc.ID, "event_type", code, "error", err)
			} else if guid != "" {
				if err := s.graph.CreateMentionEdge(doc.ID, graphindex.RelTriggeredBy, guid, 1.0); err != nil {
					s.log.Warnw("failed to create TRIGGERED_BY edge", "doc_id", doc.ID, "event_type", code, "error", err)
				}
			}
		}
	}
}

func flattenDocMetadata(doc *domain.Document) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["title"] = doc.Title
	return meta
}
