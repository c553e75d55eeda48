package toolsurface

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gofr-iq/gofr-iq/internal/clientsvc"
	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/feed"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/group"
	"github.com/gofr-iq/gofr-iq/internal/ingest"
	"github.com/gofr-iq/gofr-iq/internal/obslog"
	"github.com/gofr-iq/gofr-iq/internal/query"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

// Pinger is the health-check subset of llmclient.Client: a model name
// good enough to report whether an LLM backend is configured at all,
// without spending a real provider call on every health_check poll.
type Pinger interface {
	ModelName() string
}

// Surface wires every service behind the one envelope shape every named
// tool in spec.md §6 is called through. Grounded on the teacher's
// HTTPTransport, which centralizes one client-side call path over many
// MCP tools; Surface centralizes the server-side equivalent.
type Surface struct {
	ingest  *ingest.Service
	sources *sourceregistry.Registry
	query   *query.Service
	feed    *feed.Service
	clients *clientsvc.Service
	groups  *group.Service
	graph   *graphindex.Index
	store   *docstore.Store
	vector  *vectorindex.Index
	llm     Pinger
	audit   *obslog.AuditService
	log     *zap.SugaredLogger
}

// New returns a Surface. llm may be nil when no LLM backend is configured.
func New(ingestSvc *ingest.Service, sources *sourceregistry.Registry, querySvc *query.Service, feedSvc *feed.Service, clients *clientsvc.Service, groups *group.Service, graph *graphindex.Index, store *docstore.Store, vector *vectorindex.Index, llm Pinger, audit *obslog.AuditService, log *zap.SugaredLogger) *Surface {
	return &Surface{
		ingest:  ingestSvc,
		sources: sources,
		query:   querySvc,
		feed:    feedSvc,
		clients: clients,
		groups:  groups,
		graph:   graph,
		store:   store,
		vector:  vector,
		llm:     llm,
		audit:   audit,
		log:     log,
	}
}

// accessGroups resolves tokens to the group UUIDs (not names) that
// docstore/sourceregistry compare a record's GroupID against.
func (s *Surface) accessGroups(tokens []string) ([]string, error) {
	names := s.groups.ResolvePermittedGroups(tokens)
	return s.groups.GetGroupUUIDsByNames(names)
}

// writeGroup resolves tokens to the single group UUID a mutating tool
// call targets (spec.md §4.13 ResolveWriteGroup).
func (s *Surface) writeGroup(tokens []string) (string, error) {
	return s.groups.ResolveWriteGroup(tokens)
}

// IngestDocument implements the ingest_document tool.
func (s *Surface) IngestDocument(ctx context.Context, tokens []string, title, content, sourceID, language string, metadata map[string]any) Envelope {
	groupID, err := s.writeGroup(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	result, err := s.ingest.Ingest(ctx, title, content, sourceID, groupID, language, metadata, access)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(result)
}

// ValidateDocument implements the validate_document tool (dry run,
// nothing persisted).
func (s *Surface) ValidateDocument(ctx context.Context, tokens []string, title, content, sourceID, language string) Envelope {
	groupID, err := s.writeGroup(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	result, err := s.ingest.Validate(ctx, title, content, sourceID, groupID, language, access)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(result)
}

// listSourcesResponse is list_sources's {sources[], count} output shape.
type listSourcesResponse struct {
	Sources []*domain.Source `json:"sources"`
	Count   int              `json:"count"`
}

// ListSources implements the list_sources tool.
func (s *Surface) ListSources(tokens []string, groupID, region string, sourceType domain.SourceType, activeOnly bool) Envelope {
	sources, err := s.sources.ListSources(groupID, region, sourceType, !activeOnly)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(listSourcesResponse{Sources: sources, Count: len(sources)})
}

// GetSource implements the get_source tool.
func (s *Surface) GetSource(tokens []string, sourceID string) Envelope {
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	src, err := s.sources.Get(sourceID, access)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(src)
}

// CreateSource implements the create_source tool.
func (s *Surface) CreateSource(tokens []string, name string, sourceType domain.SourceType, region string, languages []string, trust domain.TrustLevel) Envelope {
	groupID, err := s.writeGroup(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	src, err := domain.NewSource(name, sourceType, groupID, region, languages, trust)
	if err != nil {
		return errEnvelope(errs.ValidationError(err))
	}
	created, err := s.sources.Create(src, groupID)
	if err != nil {
		return errEnvelope(err)
	}
	if s.audit != nil {
		_ = s.audit.LogSourceCreate(created.ID, s.groups.ResolvePermittedGroups(tokens), map[string]any{"name": created.Name, "type": string(created.Type)})
	}
	return ok(created)
}

// SourceFields is update_source's partial-field input (spec.md §6
// "source_id, (partial fields)"): a zero value leaves the field
// unchanged, matching Update's apply-closure contract.
type SourceFields struct {
	Name       *string
	Region     *string
	Languages  []string
	TrustLevel *domain.TrustLevel
	Active     *bool
}

// UpdateSource implements the update_source tool.
func (s *Surface) UpdateSource(tokens []string, sourceID string, fields SourceFields) Envelope {
	groupID, err := s.writeGroup(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	diff := map[string]any{}
	updated, err := s.sources.Update(sourceID, groupID, func(src *domain.Source) {
		if fields.Name != nil {
			src.Name = *fields.Name
			diff["name"] = *fields.Name
		}
		if fields.Region != nil {
			src.Region = *fields.Region
			diff["region"] = *fields.Region
		}
		if fields.Languages != nil {
			src.Languages = fields.Languages
			diff["languages"] = fields.Languages
		}
		if fields.TrustLevel != nil {
			src.TrustLevel = *fields.TrustLevel
			diff["trust_level"] = string(*fields.TrustLevel)
		}
		if fields.Active != nil {
			src.Active = *fields.Active
			diff["active"] = *fields.Active
		}
	})
	if err != nil {
		return errEnvelope(err)
	}
	if s.audit != nil {
		_ = s.audit.LogSourceUpdate(sourceID, s.groups.ResolvePermittedGroups(tokens), diff)
	}
	return ok(updated)
}

// DeleteSource implements the delete_source tool (soft delete).
func (s *Surface) DeleteSource(tokens []string, sourceID string) Envelope {
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	deleted, err := s.sources.SoftDelete(sourceID, access)
	if err != nil {
		return errEnvelope(err)
	}
	if s.audit != nil {
		_ = s.audit.LogSourceDelete(sourceID, s.groups.ResolvePermittedGroups(tokens))
	}
	return ok(deleted)
}

// GetDocument implements the get_document tool.
func (s *Surface) GetDocument(tokens []string, docID string, dateHint time.Time) Envelope {
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	doc, err := s.store.LoadWithAccessCheck(docID, access, dateHint)
	if err != nil {
		return errEnvelope(err)
	}
	if s.audit != nil {
		_ = s.audit.LogDocumentRetrieve(docID, s.groups.ResolvePermittedGroups(tokens))
	}
	return ok(doc)
}

// QueryDocuments implements the query_documents tool.
func (s *Surface) QueryDocuments(ctx context.Context, tokens []string, queryText string, nResults int, filters query.Filters, weights query.Weights, recencyHalfLifeMinutes float64, enableGraphExpansion, includeDuplicates bool) Envelope {
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	resp, err := s.query.Query(ctx, queryText, access, nResults, filters, weights, recencyHalfLifeMinutes, enableGraphExpansion, includeDuplicates)
	if err != nil {
		return errEnvelope(err)
	}
	if s.audit != nil {
		_ = s.audit.LogDocumentQuery(s.groups.ResolvePermittedGroups(tokens), map[string]any{"query": queryText, "n_results": nResults})
	}
	return ok(resp)
}

// GetClientAvatarFeed implements the get_client_avatar_feed tool.
func (s *Surface) GetClientAvatarFeed(ctx context.Context, tokens []string, clientGUID string, limit, timeWindowHours int, opportunityBias float64) Envelope {
	f, err := s.feed.GetClientAvatarFeed(ctx, clientGUID, limit, timeWindowHours, opportunityBias)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(f)
}

// topClientNewsResponse is get_top_client_news's {articles[]} output
// shape — the same combined ranking get_client_avatar_feed produces,
// reshaped to the flatter article-list contract spec.md §6 names for
// this tool (no separate channel split).
type topClientNewsResponse struct {
	Articles []feed.Item `json:"articles"`
}

// GetTopClientNews implements the get_top_client_news tool.
func (s *Surface) GetTopClientNews(ctx context.Context, tokens []string, clientGUID string, limit, timeWindowHours int, opportunityBias float64) Envelope {
	f, err := s.feed.GetClientAvatarFeed(ctx, clientGUID, limit, timeWindowHours, opportunityBias)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(topClientNewsResponse{Articles: f.Combined})
}

// CreateClient implements the create_client tool.
func (s *Surface) CreateClient(tokens []string, name string, clientType domain.ClientType) Envelope {
	groupID, err := s.writeGroup(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	c, err := s.clients.CreateClient(name, clientType, groupID)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(c)
}

// AddToPortfolio implements the add_to_portfolio tool.
func (s *Surface) AddToPortfolio(tokens []string, clientGUID string, holding domain.Holding) Envelope {
	if err := s.clients.AddHolding(clientGUID, holding); err != nil {
		return errEnvelope(err)
	}
	portfolio, err := s.clients.GetPortfolio(clientGUID)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(portfolio)
}

// AddToWatchlist implements the add_to_watchlist tool.
func (s *Surface) AddToWatchlist(tokens []string, clientGUID string, entry domain.WatchEntry) Envelope {
	if err := s.clients.AddWatch(clientGUID, entry); err != nil {
		return errEnvelope(err)
	}
	watchlist, err := s.clients.GetWatchlist(clientGUID)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(watchlist)
}

// clientProfileResponse bundles a profile with its completeness score,
// matching get_client_profile's "full profile" contract (spec.md §6).
type clientProfileResponse struct {
	Profile      *domain.ClientProfile        `json:"profile"`
	Completeness clientsvc.CompletenessResult `json:"completeness"`
}

// GetClientProfile implements the get_client_profile tool.
func (s *Surface) GetClientProfile(tokens []string, clientGUID string) Envelope {
	profile, err := s.clients.GetProfile(clientGUID)
	if err != nil {
		return errEnvelope(err)
	}
	completeness, err := s.clients.CalculateProfileCompleteness(clientGUID)
	if err != nil {
		return errEnvelope(err)
	}
	return ok(clientProfileResponse{Profile: profile, Completeness: completeness})
}

// UpdateClientProfile implements the update_client_profile tool. The
// caller supplies the full profile (as returned by get_client_profile)
// with the fields it wants changed already mutated, matching
// ClientService.UpdateProfile's replace-whole-record contract.
func (s *Surface) UpdateClientProfile(tokens []string, profile *domain.ClientProfile) Envelope {
	if err := s.clients.UpdateProfile(profile); err != nil {
		return errEnvelope(err)
	}
	return ok(profile)
}

// listClientsResponse is list_clients's output shape.
type listClientsResponse struct {
	Clients []*domain.Client `json:"clients"`
	Count   int              `json:"count"`
}

// ListClients implements the list_clients tool, unioning clients across
// every group tokens permit (mirroring docstore.ListByPermittedGroups's
// per-permitted-group fan-out).
func (s *Surface) ListClients(tokens []string) Envelope {
	access, err := s.accessGroups(tokens)
	if err != nil {
		return errEnvelope(err)
	}
	var out []*domain.Client
	for _, groupID := range access {
		clients, err := s.clients.ListClients(groupID)
		if err != nil {
			return errEnvelope(err)
		}
		out = append(out, clients...)
	}
	return ok(listClientsResponse{Clients: out, Count: len(out)})
}
