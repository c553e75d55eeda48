// Package group implements GroupService (spec.md §4.13): it turns the
// caller-supplied auth_tokens into the set of group identifiers that
// caller may read from or write to, and backs Group CRUD. Grounded on
// the teacher's group-scoping convention for campaign data (every
// campaign artifact is stamped with an owning identifier checked before
// access) generalized here into JWT-encoded group membership, using
// github.com/golang-jwt/jwt/v5 the way the retrieval pack's
// r3e-network-service_layer/infrastructure/serviceauth package signs and
// parses HMAC service tokens.
package group

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
)

// Claims is the JWT payload minted for a caller: the group names (not
// ids — names are stable across a graph rebuild) the token grants.
type Claims struct {
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

// Service is the SQLite-graph-backed GroupService.
type Service struct {
	graph     *graphindex.Index
	jwtSecret []byte
}

// New constructs a Service. jwtSecret signs and verifies auth_tokens.
func New(graph *graphindex.Index, jwtSecret string) *Service {
	return &Service{graph: graph, jwtSecret: []byte(jwtSecret)}
}

// IssueToken mints an auth_tokens entry granting groups for ttl.
func (s *Service) IssueToken(groups []string, ttl time.Duration) (string, error) {
	claims := Claims{
		Groups: groups,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errs.Internal(fmt.Errorf("sign group token: %w", err))
	}
	return signed, nil
}

// parseToken recovers the groups a single auth_tokens entry grants.
// A malformed or expired token contributes no groups rather than
// failing the call outright, mirroring spec.md §4.13's "anonymous
// callers resolve to the public group only" default.
func (s *Service) parseToken(tok string) []string {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil
	}
	return claims.Groups
}

// ResolvePermittedGroups unions the group names granted by tokens.
// Zero tokens, or tokens that all fail to parse, resolve to the public
// group only (spec.md §4.13).
func (s *Service) ResolvePermittedGroups(tokens []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, tok := range tokens {
		for _, g := range s.parseToken(tok) {
			add(g)
		}
	}
	if len(out) == 0 {
		add(domain.GroupPublic)
	}
	return out
}

// IsAdmin reports whether tokens grant the reserved admin group.
func (s *Service) IsAdmin(tokens []string) bool {
	for _, name := range s.ResolvePermittedGroups(tokens) {
		if name == domain.GroupAdmin {
			return true
		}
	}
	return false
}

// RequireAdmin raises AdminRequired unless tokens grant the admin group.
func (s *Service) RequireAdmin(tokens []string) error {
	if !s.IsAdmin(tokens) {
		return errs.AdminRequired("caller is not a member of the admin group")
	}
	return nil
}

// ResolveWriteGroup picks the group a write operation targets: the
// first permitted group that is not public. A caller permitted only
// public must be admin, matching spec.md §4.13's "if none, the caller
// must be admin or the call is rejected."
func (s *Service) ResolveWriteGroup(tokens []string) (string, error) {
	permitted := s.ResolvePermittedGroups(tokens)
	var writeName string
	for _, name := range permitted {
		if name != domain.GroupPublic {
			writeName = name
			break
		}
	}
	if writeName == "" {
		if s.IsAdmin(tokens) {
			writeName = domain.GroupPublic
		} else {
			return "", errs.AccessDenied("no non-public write group permitted; admin required to write to public")
		}
	}
	ids, err := s.GetGroupUUIDsByNames([]string{writeName})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errs.New(errs.CodeValidationError, "create the group before writing to it", "unknown group: %s", writeName)
	}
	return ids[0], nil
}

// GetGroupUUIDsByNames maps group names to their graph node guids,
// skipping any name with no matching Group node.
func (s *Service) GetGroupUUIDsByNames(names []string) ([]string, error) {
	var ids []string
	for _, name := range names {
		guids, err := s.graph.FindNodesByProperty(graphindex.LabelGroup, "name", name)
		if err != nil {
			return nil, err
		}
		if len(guids) > 0 {
			ids = append(ids, guids[0])
		}
	}
	return ids, nil
}

// CreateGroup persists a new Group node.
func (s *Service) CreateGroup(name, description string) (*domain.Group, error) {
	existing, err := s.graph.FindNodesByProperty(graphindex.LabelGroup, "name", name)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, errs.New(errs.CodeValidationError, "choose a unique group name", "group %q already exists", name)
	}
	g, err := domain.NewGroup(name, description)
	if err != nil {
		return nil, errs.ValidationError(err)
	}
	if err := s.upsertGroupNode(g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup loads a Group by id, or (nil, nil) if it doesn't exist.
func (s *Service) GetGroup(id string) (*domain.Group, error) {
	node, err := s.graph.GetNode(id)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Label != graphindex.LabelGroup {
		return nil, nil
	}
	return groupFromProperties(id, node.Properties), nil
}

// GetGroupByName loads a Group by its unique name, or (nil, nil) if
// none exists.
func (s *Service) GetGroupByName(name string) (*domain.Group, error) {
	guids, err := s.graph.FindNodesByProperty(graphindex.LabelGroup, "name", name)
	if err != nil {
		return nil, err
	}
	if len(guids) == 0 {
		return nil, nil
	}
	return s.GetGroup(guids[0])
}

// SetActive flips a Group's active flag, used to retire a group
// without deleting the documents and clients it owns.
func (s *Service) SetActive(id string, active bool) error {
	g, err := s.GetGroup(id)
	if err != nil {
		return err
	}
	if g == nil {
		return errs.New(errs.CodeValidationError, "check the group id", "group not found: %s", id)
	}
	g.Active = active
	return s.upsertGroupNode(g)
}

func (s *Service) upsertGroupNode(g *domain.Group) error {
	props := map[string]any{
		"name":        g.Name,
		"description": g.Description,
		"active":      g.Active,
		"metadata":    g.Metadata,
	}
	return s.graph.UpsertNode(g.ID, graphindex.LabelGroup, "", props)
}

func groupFromProperties(id string, props map[string]any) *domain.Group {
	g := &domain.Group{ID: id, Metadata: map[string]any{}}
	if v, ok := props["name"].(string); ok {
		g.Name = v
	}
	if v, ok := props["description"].(string); ok {
		g.Description = v
	}
	if v, ok := props["active"].(bool); ok {
		g.Active = v
	}
	if v, ok := props["metadata"].(map[string]any); ok {
		g.Metadata = v
	}
	return g
}
