// Package sourceregistry implements SourceRegistry (spec.md §4.2): CRUD
// plus per-source JSONL audit trail over news sources, with optional
// graph mirroring. Grounded on the same filesystem-write idiom as
// internal/docstore, plus the teacher's audit-diff idea in
// internal/logging/audit.go.
package sourceregistry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
)

// GraphMirror is the subset of GraphIndex SourceRegistry mirrors writes
// into (spec.md §4.2 "every mutation mirrors the source... into the
// graph in the same call"). Defined here rather than imported from
// internal/graphindex to avoid a cyclic dependency; graphindex.Index
// satisfies it.
type GraphMirror interface {
	UpsertSource(src *domain.Source) error
}

// Registry is the filesystem-backed SourceRegistry.
type Registry struct {
	baseDir string
	graph   GraphMirror
}

// New returns a Registry rooted at baseDir. graph may be nil: mirroring
// is best-effort and only attempted when a GraphIndex is attached.
func New(baseDir string, graph GraphMirror) *Registry {
	return &Registry{baseDir: baseDir, graph: graph}
}

func (r *Registry) sourcePath(groupID, sourceID string) string {
	return filepath.Join(r.baseDir, "sources", groupID, sourceID+".json")
}

func (r *Registry) auditPath(sourceID string) string {
	return filepath.Join(r.baseDir, "audit", "sources", sourceID+".jsonl")
}

// Create persists a new Source and appends a "create" audit record.
func (r *Registry) Create(src *domain.Source, actorGroup string) (*domain.Source, error) {
	path := r.sourcePath(src.GroupID, src.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "create source dir")
	}
	if err := r.write(path, src); err != nil {
		return nil, err
	}
	if err := r.appendAudit(src.ID, "create", actorGroup, nil); err != nil {
		return nil, err
	}
	r.mirrorBestEffort(src)
	return src, nil
}

// Get loads a source by id. If accessGroups is non-empty, the source
// must belong to one of them or AccessDenied is returned.
func (r *Registry) Get(id string, accessGroups []string) (*domain.Source, error) {
	src, err := r.find(id)
	if err != nil {
		return nil, err
	}
	if len(accessGroups) > 0 && !contains(accessGroups, src.GroupID) {
		return nil, errs.AccessDenied(id)
	}
	return src, nil
}

// ListSources lists sources, optionally filtered by group/region/type,
// excluding inactive sources unless includeInactive is set.
func (r *Registry) ListSources(group, region string, sourceType domain.SourceType, includeInactive bool) ([]*domain.Source, error) {
	groups := []string{group}
	if group == "" {
		var err error
		groups, err = r.listGroups()
		if err != nil {
			return nil, err
		}
	}

	var out []*domain.Source
	for _, g := range groups {
		dir := filepath.Join(r.baseDir, "sources", g)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "list sources dir")
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			src, err := r.readFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			if !includeInactive && !src.Active {
				continue
			}
			if region != "" && src.Region != region {
				continue
			}
			if sourceType != "" && src.Type != sourceType {
				continue
			}
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update applies a partial field update, records a field-level diff, and
// mirrors into the graph.
func (r *Registry) Update(id string, actorGroup string, apply func(*domain.Source)) (*domain.Source, error) {
	src, err := r.find(id)
	if err != nil {
		return nil, err
	}
	before := *src
	apply(src)
	src.UpdatedAt = time.Now().UTC()

	if err := r.write(r.sourcePath(src.GroupID, src.ID), src); err != nil {
		return nil, err
	}
	diff := fieldDiff(&before, src)
	if err := r.appendAudit(src.ID, "update", actorGroup, diff); err != nil {
		return nil, err
	}
	r.mirrorBestEffort(src)
	return src, nil
}

// SoftDelete flips active=false, preserving history, and records the
// actor performing the delete.
func (r *Registry) SoftDelete(id string, accessGroups []string) (*domain.Source, error) {
	src, err := r.Get(id, accessGroups)
	if err != nil {
		return nil, err
	}
	actorGroup := src.GroupID
	if len(accessGroups) > 0 {
		actorGroup = accessGroups[0]
	}
	return r.Update(id, actorGroup, func(s *domain.Source) { s.Active = false })
}

// AuditEntry is one JSONL record in a source's audit trail.
type AuditEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	ActorGroup string         `json:"actor_group"`
	Diff       map[string]any `json:"diff,omitempty"`
}

// GetAuditLog returns id's audit trail, newest-first (spec.md §8).
func (r *Registry) GetAuditLog(id string) ([]AuditEntry, error) {
	path := r.auditPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "read audit file")
	}
	var entries []AuditEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, errs.Internal(fmt.Errorf("decode audit line: %w", err))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "scan audit file")
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (r *Registry) appendAudit(sourceID, action, actorGroup string, diff map[string]any) error {
	path := r.auditPath(sourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "create audit dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "open audit file")
	}
	defer f.Close()

	line, err := json.Marshal(AuditEntry{
		Timestamp:  time.Now().UTC(),
		Action:     action,
		ActorGroup: actorGroup,
		Diff:       diff,
	})
	if err != nil {
		return errs.Internal(fmt.Errorf("marshal audit entry: %w", err))
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check disk space", err, "write audit entry")
	}
	return nil
}

func (r *Registry) mirrorBestEffort(src *domain.Source) {
	if r.graph == nil {
		return
	}
	_ = r.graph.UpsertSource(src)
}

func (r *Registry) find(id string) (*domain.Source, error) {
	groups, err := r.listGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		path := r.sourcePath(g, id)
		if _, statErr := os.Stat(path); statErr == nil {
			return r.readFile(path)
		}
	}
	return nil, errs.SourceNotFound(id)
}

func (r *Registry) listGroups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.baseDir, "sources"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "list sources dir")
	}
	var groups []string
	for _, e := range entries {
		if e.IsDir() {
			groups = append(groups, e.Name())
		}
	}
	return groups, nil
}

func (r *Registry) write(path string, src *domain.Source) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "create source dir")
	}
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return errs.Internal(fmt.Errorf("marshal source: %w", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check disk space and permissions", err, "write source file")
	}
	return nil
}

func (r *Registry) readFile(path string) (*domain.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "read source file")
	}
	var src domain.Source
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, errs.Internal(fmt.Errorf("decode source file %s: %w", path, err))
	}
	return &src, nil
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// fieldDiff compares exported fields of two *domain.Source values and
// returns a map of field name -> {from, to} for every changed field.
func fieldDiff(before, after *domain.Source) map[string]any {
	diff := make(map[string]any)
	bv := reflect.ValueOf(*before)
	av := reflect.ValueOf(*after)
	t := bv.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		if name == "UpdatedAt" {
			continue
		}
		bf := bv.Field(i).Interface()
		af := av.Field(i).Interface()
		if !reflect.DeepEqual(bf, af) {
			diff[name] = map[string]any{"from": bf, "to": af}
		}
	}
	return diff
}
