// Package graphindex implements GraphIndex (spec.md §4.7): a typed
// property graph over documents, instruments, companies, clients and the
// rest of the domain vocabulary, backed by SQLite. Grounded on the
// teacher's internal/store/local_graph.go generic entity/relation/weight
// triple store, generalized here into typed node and edge tables with
// uniqueness constraints and BFS traversal (the teacher's TraversePath),
// plus Mangle-projected declarative relationship queries in mangle.go
// (the teacher's HydrateKnowledgeGraph idea).
package graphindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	_ "modernc.org/sqlite"
)

// NodeLabel is a typed graph node kind (spec.md §4.7).
type NodeLabel string

const (
	LabelDocument     NodeLabel = "Document"
	LabelInstrument   NodeLabel = "Instrument"
	LabelCompany      NodeLabel = "Company"
	LabelClient       NodeLabel = "Client"
	LabelPortfolio    NodeLabel = "Portfolio"
	LabelWatchlist    NodeLabel = "Watchlist"
	LabelFactor       NodeLabel = "Factor"
	LabelEventType    NodeLabel = "EventType"
	LabelSector       NodeLabel = "Sector"
	LabelRegion       NodeLabel = "Region"
	LabelGroup        NodeLabel = "Group"
	LabelAlias        NodeLabel = "Alias"
	LabelSource       NodeLabel = "Source"
	LabelClientProfile NodeLabel = "ClientProfile"
)

// EdgeRelation is a typed graph edge kind (spec.md §4.7).
type EdgeRelation string

const (
	RelAffects       EdgeRelation = "AFFECTS"
	RelIssuedBy      EdgeRelation = "ISSUED_BY"
	RelHolds         EdgeRelation = "HOLDS"
	RelWatches       EdgeRelation = "WATCHES"
	RelExposedTo     EdgeRelation = "EXPOSED_TO"
	RelPeerOf        EdgeRelation = "PEER_OF"
	RelSuppliesTo    EdgeRelation = "SUPPLIES_TO"
	RelCompetesWith  EdgeRelation = "COMPETES_WITH"
	RelInGroup       EdgeRelation = "IN_GROUP"
	RelHasProfile    EdgeRelation = "HAS_PROFILE"
	RelMentions      EdgeRelation = "MENTIONS"
	RelTriggeredBy   EdgeRelation = "TRIGGERED_BY"
	RelHasAlias      EdgeRelation = "HAS_ALIAS"
	RelProducedBy    EdgeRelation = "PRODUCED_BY"
)

// naturalKeyLabels lists the labels with a singleton natural-key
// constraint in addition to guid uniqueness (spec.md §4.7).
var naturalKeyLabels = map[NodeLabel]bool{
	LabelInstrument: true,
	LabelCompany:    true,
	LabelFactor:     true,
	LabelSector:     true,
	LabelRegion:     true,
	LabelEventType:  true,
}

// Index is the SQLite-backed GraphIndex.
type Index struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes the node/edge schema idempotently.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("open graph db: %w", err))
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	guid TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	natural_key TEXT,
	properties TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_natural_key ON nodes(label, natural_key) WHERE natural_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);

CREATE TABLE IF NOT EXISTS edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_guid TEXT NOT NULL,
	relation TEXT NOT NULL,
	to_guid TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 1.0,
	properties TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(from_guid, relation, to_guid)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_guid, relation);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_guid, relation);

CREATE TABLE IF NOT EXISTS document_props (
	guid TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	language TEXT,
	impact_tier TEXT,
	impact_score REAL,
	content_hash TEXT,
	story_fingerprint TEXT
);
CREATE INDEX IF NOT EXISTS idx_document_props_created ON document_props(created_at);
CREATE INDEX IF NOT EXISTS idx_document_props_tier ON document_props(impact_tier, impact_score);
CREATE INDEX IF NOT EXISTS idx_document_props_hash ON document_props(group_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_document_props_fingerprint ON document_props(group_id, story_fingerprint);
`
	if _, err := idx.db.Exec(schema); err != nil {
		return errs.GraphFailed(fmt.Errorf("migrate graph schema: %w", err))
	}
	return nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// UpsertNode creates or replaces a node by guid. naturalKey is empty for
// labels without a singleton natural-key constraint.
func (idx *Index) UpsertNode(guid string, label NodeLabel, naturalKey string, properties map[string]any) error {
	if naturalKeyLabels[label] && naturalKey == "" {
		return errs.New(errs.CodeValidationError, "supply the natural key for this label", "label %s requires a natural key", label)
	}
	propJSON, err := json.Marshal(properties)
	if err != nil {
		return errs.Internal(fmt.Errorf("marshal node properties: %w", err))
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var nk any
	if naturalKey != "" {
		nk = naturalKey
	}
	_, err = idx.db.Exec(`
INSERT INTO nodes(guid, label, natural_key, properties, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(guid) DO UPDATE SET
	label=excluded.label, natural_key=excluded.natural_key, properties=excluded.properties, updated_at=excluded.updated_at`,
		guid, string(label), nk, string(propJSON), now, now)
	if err != nil {
		return errs.GraphFailed(fmt.Errorf("upsert node %s: %w", guid, err))
	}
	return nil
}

// UpsertEdge creates or replaces an edge, idempotent on (from, relation, to).
func (idx *Index) UpsertEdge(from string, relation EdgeRelation, to string, weight float64, properties map[string]any) error {
	var propJSON []byte
	if properties != nil {
		var err error
		propJSON, err = json.Marshal(properties)
		if err != nil {
			return errs.Internal(fmt.Errorf("marshal edge properties: %w", err))
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := idx.db.Exec(`
INSERT INTO edges(from_guid, relation, to_guid, weight, properties, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(from_guid, relation, to_guid) DO UPDATE SET weight=excluded.weight, properties=excluded.properties`,
		from, string(relation), to, weight, string(propJSON), now)
	if err != nil {
		return errs.GraphFailed(fmt.Errorf("upsert edge %s-%s->%s: %w", from, relation, to, err))
	}
	return nil
}

// NodeExists reports whether guid is present, used to enforce the
// phantom-instrument ban: MENTIONS/AFFECTS/TRIGGERED_BY edges are only
// created to guids that already exist (MENTIONS/AFFECTS targets resolved
// via an Alias, TRIGGERED_BY targets found by natural key) (spec.md §4.9
// step 6 "never create edges to entities that don't already exist").
func (idx *Index) NodeExists(guid string) (bool, error) {
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(1) FROM nodes WHERE guid = ?`, guid).Scan(&n); err != nil {
		return false, errs.GraphFailed(fmt.Errorf("check node existence: %w", err))
	}
	return n > 0, nil
}

// FindNodeByNaturalKey looks up a singleton node's guid by its label and
// natural key directly (e.g. an EventType code from extraction, already
// normalized — no alias indirection needed since these codes come from
// a closed taxonomy rather than free-text variants). Returns ("", nil)
// on a clean miss.
func (idx *Index) FindNodeByNaturalKey(label NodeLabel, naturalKey string) (string, error) {
	var guid string
	err := idx.db.QueryRow(`SELECT guid FROM nodes WHERE label = ? AND natural_key = ?`, string(label), naturalKey).Scan(&guid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.GraphFailed(fmt.Errorf("find node by natural key %s/%s: %w", label, naturalKey, err))
	}
	return guid, nil
}

// ResolveAlias looks up the canonical guid for a normalized alias value
// within scheme. Returns ("", nil) on a clean miss.
func (idx *Index) ResolveAlias(normalizedValue string, scheme domain.AliasScheme) (string, error) {
	var guid string
	err := idx.db.QueryRow(`
SELECT n.guid FROM nodes n
JOIN edges e ON e.to_guid = n.guid AND e.relation = ?
JOIN nodes a ON a.guid = e.from_guid AND a.label = ?
WHERE json_extract(a.properties, '$.value') = ? AND json_extract(a.properties, '$.scheme') = ?`,
		string(RelHasAlias), string(LabelAlias), normalizedValue, string(scheme)).Scan(&guid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.GraphFailed(fmt.Errorf("resolve alias %s: %w", normalizedValue, err))
	}
	return guid, nil
}

// RegisterAlias creates an Alias node and a HAS_ALIAS edge from it to the
// resolved canonical entity.
func (idx *Index) RegisterAlias(aliasGUID, normalizedValue string, scheme domain.AliasScheme, canonicalGUID string) error {
	if err := idx.UpsertNode(aliasGUID, LabelAlias, "", map[string]any{
		"value":  normalizedValue,
		"scheme": string(scheme),
	}); err != nil {
		return err
	}
	return idx.UpsertEdge(aliasGUID, RelHasAlias, canonicalGUID, 1.0, nil)
}

// CreateDocumentNode creates a Document node plus its PRODUCED_BY and
// IN_GROUP edges, silently skipping either edge if its target node is
// missing (spec.md §4.7 "never block document creation on a missing
// peripheral node").
func (idx *Index) CreateDocumentNode(doc *domain.Document) error {
	if err := idx.UpsertNode(doc.ID, LabelDocument, "", map[string]any{
		"title":        doc.Title,
		"word_count":   doc.WordCount,
		"content_hash": doc.ContentHash,
	}); err != nil {
		return err
	}
	if _, err := idx.db.Exec(`
INSERT INTO document_props(guid, group_id, created_at, language, impact_tier, impact_score, content_hash, story_fingerprint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(guid) DO UPDATE SET created_at=excluded.created_at, language=excluded.language,
	impact_tier=excluded.impact_tier, impact_score=excluded.impact_score,
	content_hash=excluded.content_hash, story_fingerprint=excluded.story_fingerprint`,
		doc.ID, doc.GroupID, doc.CreatedAt.UTC().Format(time.RFC3339), doc.Language, impactTierString(doc), impactScoreValue(doc), doc.ContentHash, doc.StoryFingerprint); err != nil {
		return errs.GraphFailed(fmt.Errorf("upsert document_props for %s: %w", doc.ID, err))
	}

	if exists, err := idx.NodeExists(doc.SourceID); err == nil && exists {
		if err := idx.UpsertEdge(doc.ID, RelProducedBy, doc.SourceID, 1.0, nil); err != nil {
			return err
		}
	}
	if exists, err := idx.NodeExists(doc.GroupID); err == nil && exists {
		if err := idx.UpsertEdge(doc.ID, RelInGroup, doc.GroupID, 1.0, nil); err != nil {
			return err
		}
	}
	return nil
}

func impactTierString(doc *domain.Document) any {
	if doc.ImpactTier == nil {
		return nil
	}
	return string(*doc.ImpactTier)
}

func impactScoreValue(doc *domain.Document) any {
	if doc.ImpactScore == nil {
		return nil
	}
	return *doc.ImpactScore
}

// UpsertSource satisfies sourceregistry.GraphMirror.
func (idx *Index) UpsertSource(src *domain.Source) error {
	if err := idx.UpsertNode(src.ID, LabelSource, "", map[string]any{
		"name":        src.Name,
		"type":        string(src.Type),
		"region":      src.Region,
		"trust_level": string(src.TrustLevel),
		"active":      src.Active,
	}); err != nil {
		return err
	}
	if exists, err := idx.NodeExists(src.GroupID); err == nil && exists {
		return idx.UpsertEdge(src.ID, RelInGroup, src.GroupID, 1.0, nil)
	}
	return nil
}

// CreateMentionEdge creates a MENTIONS/AFFECTS/TRIGGERED_BY-style edge
// from a document to an already-resolved entity guid, honoring the
// phantom-instrument ban by refusing to create edges to guids that are
// not already present as nodes.
func (idx *Index) CreateMentionEdge(docID string, relation EdgeRelation, entityGUID string, weight float64) error {
	exists, err := idx.NodeExists(entityGUID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.New(errs.CodeValidationError, "resolve the entity via an Alias before linking", "phantom entity %s rejected for %s edge", entityGUID, relation)
	}
	return idx.UpsertEdge(docID, relation, entityGUID, weight, nil)
}

// GetDocumentsBySource returns document guids PRODUCED_BY sourceID.
func (idx *Index) GetDocumentsBySource(sourceID string, limit int) ([]string, error) {
	return idx.queryEdgeTargets(`SELECT from_guid FROM edges WHERE relation = ? AND to_guid = ? ORDER BY created_at DESC`, string(RelProducedBy), sourceID, limit)
}

// GetDocumentsAffecting returns document guids with an AFFECTS edge
// (not MENTIONS) to the instrument node with the given ticker — the
// narrower relation AvatarFeedService's MAINTENANCE channel requires
// (spec.md §4.11: "documents that AFFECT at least one position_ticker").
func (idx *Index) GetDocumentsAffecting(ticker string, limit int) ([]string, error) {
	query := `
SELECT e.from_guid FROM edges e
JOIN nodes n ON n.guid = e.to_guid
WHERE n.label = ? AND n.natural_key = ? AND e.relation = ?
ORDER BY e.created_at DESC`
	args := []any{string(LabelInstrument), ticker, string(RelAffects)}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("documents affecting %s: %w", ticker, err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan affects row: %w", err))
		}
		out = append(out, guid)
	}
	return out, rows.Err()
}

// GetDocumentsMentioning returns document guids with a MENTIONS or
// AFFECTS edge to the instrument node with the given ticker.
func (idx *Index) GetDocumentsMentioning(ticker string, limit int) ([]string, error) {
	query := `
SELECT e.from_guid FROM edges e
JOIN nodes n ON n.guid = e.to_guid
WHERE n.label = ? AND n.natural_key = ? AND e.relation IN (?, ?)
ORDER BY e.created_at DESC`
	args := []any{string(LabelInstrument), ticker, string(RelMentions), string(RelAffects)}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("documents mentioning %s: %w", ticker, err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan mention row: %w", err))
		}
		out = append(out, guid)
	}
	return out, rows.Err()
}

func (idx *Index) queryEdgeTargets(query string, relation, guid string, limit int) ([]string, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := idx.db.Query(query, relation, guid)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("query edge targets: %w", err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan edge target: %w", err))
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RelatedDocument is one result of GetRelatedDocuments, tagged with the
// relationship path that discovered it (spec.md §4.10 discovered_via).
type RelatedDocument struct {
	DocID         string
	DiscoveredVia string
}

// GetRelatedDocuments does a bounded-depth BFS over shared-company and
// shared-source paths starting from docID, deduplicating by guid, in
// the style of the teacher's TraversePath cameFrom-map BFS.
func (idx *Index) GetRelatedDocuments(docID string, depth, limit int) ([]RelatedDocument, error) {
	if depth <= 0 {
		depth = 2
	}
	if limit <= 0 {
		limit = 20
	}

	type frontierItem struct {
		guid string
		via  string
	}
	visited := map[string]bool{docID: true}
	var results []RelatedDocument
	frontier := []frontierItem{{guid: docID}}

	for d := 0; d < depth && len(results) < limit; d++ {
		var next []frontierItem
		for _, item := range frontier {
			instruments, err := idx.neighborsByRelation(item.guid, []EdgeRelation{RelMentions, RelAffects}, true)
			if err != nil {
				return nil, err
			}
			for _, inst := range instruments {
				mentioners, err := idx.neighborsByRelation(inst, []EdgeRelation{RelMentions, RelAffects}, false)
				if err != nil {
					return nil, err
				}
				for _, m := range mentioners {
					if visited[m] {
						continue
					}
					visited[m] = true
					results = append(results, RelatedDocument{DocID: m, DiscoveredVia: "shared_company"})
					next = append(next, frontierItem{guid: m, via: "shared_company"})
					if len(results) >= limit {
						break
					}
				}
				if len(results) >= limit {
					break
				}
			}

			sources, err := idx.neighborsByRelation(item.guid, []EdgeRelation{RelProducedBy}, true)
			if err != nil {
				return nil, err
			}
			for _, src := range sources {
				peers, err := idx.neighborsByRelation(src, []EdgeRelation{RelProducedBy}, false)
				if err != nil {
					return nil, err
				}
				for _, p := range peers {
					if visited[p] {
						continue
					}
					visited[p] = true
					results = append(results, RelatedDocument{DocID: p, DiscoveredVia: "shared_source"})
					next = append(next, frontierItem{guid: p, via: "shared_source"})
					if len(results) >= limit {
						break
					}
				}
				if len(results) >= limit {
					break
				}
			}
		}
		frontier = next
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// neighborsByRelation returns nodes reachable via any of relations, either
// outgoing (guid is from_guid) or incoming (guid is to_guid).
func (idx *Index) neighborsByRelation(guid string, relations []EdgeRelation, outgoing bool) ([]string, error) {
	col, other := "from_guid", "to_guid"
	if !outgoing {
		col, other = "to_guid", "from_guid"
	}
	placeholders := ""
	args := []any{guid}
	for i, r := range relations {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, string(r))
	}
	query := fmt.Sprintf(`SELECT %s FROM edges WHERE %s = ? AND relation IN (%s)`, other, col, placeholders)
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("neighbors by relation: %w", err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan neighbor: %w", err))
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FindDocumentByContentHash returns the guid of a Document in groupID
// with an exact content_hash match, or ("", nil) on a clean miss
// (spec.md §4.4 step 1).
func (idx *Index) FindDocumentByContentHash(groupID, contentHash string) (string, error) {
	return idx.findDocumentProp("content_hash", groupID, contentHash)
}

// FindDocumentByFingerprint returns the guid of a Document in groupID
// with a matching story_fingerprint, or ("", nil) on a clean miss
// (spec.md §4.4 step 2).
func (idx *Index) FindDocumentByFingerprint(groupID, fingerprint string) (string, error) {
	return idx.findDocumentProp("story_fingerprint", groupID, fingerprint)
}

func (idx *Index) findDocumentProp(column, groupID, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	var guid string
	query := fmt.Sprintf(`SELECT guid FROM document_props WHERE group_id = ? AND %s = ? ORDER BY created_at ASC LIMIT 1`, column)
	err := idx.db.QueryRow(query, groupID, value).Scan(&guid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.GraphFailed(fmt.Errorf("find document by %s: %w", column, err))
	}
	return guid, nil
}

// NodeProperties is one node's label, natural key, and decoded property
// bag, returned by GetNode/FindNodesByProperty for callers (clientsvc,
// group) that need more than a bare guid back.
type NodeProperties struct {
	GUID       string
	Label      NodeLabel
	NaturalKey string
	Properties map[string]any
}

// GetNode loads a single node by guid, or (nil, nil) on a clean miss.
func (idx *Index) GetNode(guid string) (*NodeProperties, error) {
	var label, propJSON string
	var naturalKey sql.NullString
	err := idx.db.QueryRow(`SELECT label, natural_key, properties FROM nodes WHERE guid = ?`, guid).Scan(&label, &naturalKey, &propJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("get node %s: %w", guid, err))
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(propJSON), &props); err != nil {
		return nil, errs.Internal(fmt.Errorf("unmarshal node properties: %w", err))
	}
	return &NodeProperties{GUID: guid, Label: NodeLabel(label), NaturalKey: naturalKey.String, Properties: props}, nil
}

// FindNodesByProperty returns every node of label whose JSON properties
// has propKey == propValue — used for lookups with no natural-key
// constraint (e.g. Group by name), where an exact scan over a typically
// small table is simpler than adding a dedicated index per lookup field.
func (idx *Index) FindNodesByProperty(label NodeLabel, propKey, propValue string) ([]string, error) {
	rows, err := idx.db.Query(`SELECT guid FROM nodes WHERE label = ? AND json_extract(properties, '$.' || ?) = ?`, string(label), propKey, propValue)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("find nodes by property %s: %w", propKey, err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan node guid: %w", err))
		}
		out = append(out, guid)
	}
	return out, rows.Err()
}

// EdgeInfo is one edge's target, weight, and decoded property bag,
// returned by GetEdgesFrom for callers that need more than a bare guid.
type EdgeInfo struct {
	ToGUID     string
	Weight     float64
	Properties map[string]any
}

// GetEdgesFrom returns every outgoing edge of relation from fromGUID.
func (idx *Index) GetEdgesFrom(fromGUID string, relation EdgeRelation) ([]EdgeInfo, error) {
	rows, err := idx.db.Query(`SELECT to_guid, weight, properties FROM edges WHERE from_guid = ? AND relation = ?`, fromGUID, string(relation))
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("get edges from %s: %w", fromGUID, err))
	}
	defer rows.Close()
	var out []EdgeInfo
	for rows.Next() {
		var toGUID string
		var weight float64
		var propJSON sql.NullString
		if err := rows.Scan(&toGUID, &weight, &propJSON); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan edge: %w", err))
		}
		var props map[string]any
		if propJSON.Valid && propJSON.String != "" {
			if err := json.Unmarshal([]byte(propJSON.String), &props); err != nil {
				return nil, errs.Internal(fmt.Errorf("unmarshal edge properties: %w", err))
			}
		}
		out = append(out, EdgeInfo{ToGUID: toGUID, Weight: weight, Properties: props})
	}
	return out, rows.Err()
}

// AdjacentEdge is one edge touching a node, in either direction, with
// enough detail for ToolSurface's explore_graph tool to render it.
type AdjacentEdge struct {
	OtherGUID string
	Relation  EdgeRelation
	Direction string // "outgoing" or "incoming"
	Weight    float64
}

// GetAdjacentEdges returns every edge touching guid in either direction,
// optionally restricted to relationTypes (empty means all relations) —
// the one-hop primitive explore_graph's bounded-depth walk calls
// repeatedly, in the style of neighborsByRelation but carrying the
// relation name and direction the tool surface needs to render.
func (idx *Index) GetAdjacentEdges(guid string, relationTypes []EdgeRelation) ([]AdjacentEdge, error) {
	var relFilter string
	var relArgs []any
	if len(relationTypes) > 0 {
		placeholders := make([]string, len(relationTypes))
		for i, r := range relationTypes {
			placeholders[i] = "?"
			relArgs = append(relArgs, string(r))
		}
		relFilter = " AND relation IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query := fmt.Sprintf(`
SELECT to_guid, relation, weight, 'outgoing' FROM edges WHERE from_guid = ?%s
UNION ALL
SELECT from_guid, relation, weight, 'incoming' FROM edges WHERE to_guid = ?%s`, relFilter, relFilter)

	args := append([]any{guid}, relArgs...)
	args = append(args, guid)
	args = append(args, relArgs...)

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, errs.GraphFailed(fmt.Errorf("get adjacent edges for %s: %w", guid, err))
	}
	defer rows.Close()
	var out []AdjacentEdge
	for rows.Next() {
		var e AdjacentEdge
		var relation string
		if err := rows.Scan(&e.OtherGUID, &relation, &e.Weight, &e.Direction); err != nil {
			return nil, errs.GraphFailed(fmt.Errorf("scan adjacent edge: %w", err))
		}
		e.Relation = EdgeRelation(relation)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteDocumentNode removes a Document node and every edge touching it,
// used for ingest rollback (spec.md §4.9 step 7b).
func (idx *Index) DeleteDocumentNode(docID string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return errs.GraphFailed(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM edges WHERE from_guid = ? OR to_guid = ?`, docID, docID); err != nil {
		return errs.GraphFailed(fmt.Errorf("delete document edges: %w", err))
	}
	if _, err := tx.Exec(`DELETE FROM document_props WHERE guid = ?`, docID); err != nil {
		return errs.GraphFailed(fmt.Errorf("delete document_props: %w", err))
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE guid = ?`, docID); err != nil {
		return errs.GraphFailed(fmt.Errorf("delete document node: %w", err))
	}
	return tx.Commit()
}
