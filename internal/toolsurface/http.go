package toolsurface

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/query"
)

// toolRequest is the HTTP envelope every tool call arrives in: a tool
// name, the auth_tokens spec.md §4.15 requires on every call, and a
// tool-specific params blob decoded per dispatch entry. Shaped after
// the teacher's mcpRequest{method, params} skeleton, minus the
// JSON-RPC id/jsonrpc framing this spec's envelope doesn't use.
type toolRequest struct {
	Tool       string          `json:"tool"`
	AuthTokens []string        `json:"auth_tokens"`
	Params     json.RawMessage `json:"params"`
}

// Handler returns an http.Handler that dispatches POST requests
// carrying a toolRequest body to the matching Surface method and writes
// back its Envelope as the response body.
func (s *Surface) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/invoke", s.handleInvoke)
	return mux
}

func (s *Surface) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, errEnvelope(err))
		return
	}
	writeEnvelope(w, s.dispatch(r.Context(), req))
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if env.Status == StatusError {
		w.WriteHeader(http.StatusOK) // errors are a successful transport-level call carrying a failed envelope
	}
	_ = json.NewEncoder(w).Encode(env)
}

// dispatch decodes req.Params into the shape each tool expects and
// calls the matching Surface handler. Unknown tool names return a
// VALIDATION_ERROR envelope rather than a transport 404, since the tool
// surface's contract is "one endpoint, many named operations."
func (s *Surface) dispatch(ctx context.Context, req toolRequest) Envelope {
	switch req.Tool {
	case "ingest_document":
		var p struct {
			Title, Content, SourceID, Language string
			Metadata                           map[string]any
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.IngestDocument(ctx, req.AuthTokens, p.Title, p.Content, p.SourceID, p.Language, p.Metadata)

	case "validate_document":
		var p struct{ Title, Content, SourceID, Language string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.ValidateDocument(ctx, req.AuthTokens, p.Title, p.Content, p.SourceID, p.Language)

	case "list_sources":
		var p struct {
			GroupID, Region string
			SourceType      domain.SourceType
			ActiveOnly      bool
		}
		p.ActiveOnly = true
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.ListSources(req.AuthTokens, p.GroupID, p.Region, p.SourceType, p.ActiveOnly)

	case "get_source":
		var p struct{ SourceID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.GetSource(req.AuthTokens, p.SourceID)

	case "create_source":
		var p struct {
			Name       string
			SourceType domain.SourceType
			Region     string
			Languages  []string
			TrustLevel domain.TrustLevel
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.CreateSource(req.AuthTokens, p.Name, p.SourceType, p.Region, p.Languages, p.TrustLevel)

	case "update_source":
		var p struct {
			SourceID string
			Fields   SourceFields
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.UpdateSource(req.AuthTokens, p.SourceID, p.Fields)

	case "delete_source":
		var p struct{ SourceID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.DeleteSource(req.AuthTokens, p.SourceID)

	case "get_document":
		var p struct {
			DocID    string
			DateHint *time.Time
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		hint := time.Time{}
		if p.DateHint != nil {
			hint = *p.DateHint
		}
		return s.GetDocument(req.AuthTokens, p.DocID, hint)

	case "query_documents":
		var p struct {
			Query                  string
			NResults               int
			Filters                query.Filters
			Weights                query.Weights
			RecencyHalfLifeMinutes float64
			EnableGraphExpansion   bool
			IncludeDuplicates      bool
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.QueryDocuments(ctx, req.AuthTokens, p.Query, p.NResults, p.Filters, p.Weights, p.RecencyHalfLifeMinutes, p.EnableGraphExpansion, p.IncludeDuplicates)

	case "get_client_avatar_feed":
		var p struct {
			ClientID        string
			Limit           int
			TimeWindowHours int
			OpportunityBias float64
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.GetClientAvatarFeed(ctx, req.AuthTokens, p.ClientID, p.Limit, p.TimeWindowHours, p.OpportunityBias)

	case "get_top_client_news":
		var p struct {
			ClientID        string
			Limit           int
			TimeWindowHours int
			OpportunityBias float64
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.GetTopClientNews(ctx, req.AuthTokens, p.ClientID, p.Limit, p.TimeWindowHours, p.OpportunityBias)

	case "create_client":
		var p struct {
			Name       string
			ClientType domain.ClientType
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.CreateClient(req.AuthTokens, p.Name, p.ClientType)

	case "add_to_portfolio":
		var p struct {
			ClientID string
			Holding  domain.Holding
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.AddToPortfolio(req.AuthTokens, p.ClientID, p.Holding)

	case "add_to_watchlist":
		var p struct {
			ClientID string
			Entry    domain.WatchEntry
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.AddToWatchlist(req.AuthTokens, p.ClientID, p.Entry)

	case "get_client_profile":
		var p struct{ ClientID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.GetClientProfile(req.AuthTokens, p.ClientID)

	case "update_client_profile":
		var p struct{ Profile *domain.ClientProfile }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.UpdateClientProfile(req.AuthTokens, p.Profile)

	case "list_clients":
		return s.ListClients(req.AuthTokens)

	case "explore_graph":
		var p struct {
			NodeType          graphindex.NodeLabel
			NodeID            string
			RelationshipTypes []graphindex.EdgeRelation
			MaxDepth          int
			Limit             int
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.ExploreGraph(req.AuthTokens, p.NodeType, p.NodeID, p.RelationshipTypes, p.MaxDepth, p.Limit)

	case "get_market_context":
		var p struct {
			Ticker         string
			IncludePeers   bool
			IncludeEvents  bool
			IncludeIndices bool
			DaysBack       int
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return errEnvelope(err)
		}
		return s.GetMarketContext(req.AuthTokens, p.Ticker, p.IncludePeers, p.IncludeEvents, p.IncludeIndices, p.DaysBack)

	case "health_check":
		return s.HealthCheck()

	default:
		return errEnvelope(errs.New(errs.CodeValidationError, "check the tool name", "unknown tool: %s", req.Tool))
	}
}
