// Package docstore implements DocumentStore (spec.md §4.1): the
// canonical, immutable, append-only JSON document file tree partitioned
// by group and date. Grounded on the teacher's filesystem-write
// conventions (mkdir-p then marshal-then-os.WriteFile) generalized from
// SQLite-row storage to one-JSON-file-per-document storage — no example
// repo keeps a canonical per-entity JSON file store of this shape, so the
// write/read path itself is standard library (encoding/json + os) by
// necessity.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofr-iq/gofr-iq/internal/domain"
	"github.com/gofr-iq/gofr-iq/internal/errs"
)

const dateLayout = "2006-01-02"

// Store is the filesystem-backed DocumentStore.
type Store struct {
	baseDir string
}

// New returns a Store rooted at baseDir (spec.md §4.1 layout:
// <base>/documents/<group_id>/<YYYY-MM-DD>/<doc_id>.json).
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) groupDir(groupID string) string {
	return filepath.Join(s.baseDir, "documents", groupID)
}

func (s *Store) datedDir(groupID string, createdAt time.Time) string {
	return filepath.Join(s.groupDir(groupID), createdAt.UTC().Format(dateLayout))
}

func (s *Store) docPath(groupID string, createdAt time.Time, docID string) string {
	return filepath.Join(s.datedDir(groupID, createdAt), docID+".json")
}

// Save writes doc as the authoritative, append-only JSON file for its
// (group_id, created_at, id). It is the commit point for ingest
// (spec.md §5 "Ordering guarantees").
func (s *Store) Save(doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return errs.ValidationError(err)
	}
	dir := s.datedDir(doc.GroupID, doc.CreatedAt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "create document dir")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Internal(fmt.Errorf("marshal document: %w", err))
	}
	path := s.docPath(doc.GroupID, doc.CreatedAt, doc.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.CodeInternalError, "check disk space and permissions", err, "write document file")
	}
	return nil
}

// Load reads the document with id in groupID. dateHint, if non-zero,
// goes directly to the dated directory; otherwise every dated
// subdirectory under the group is scanned newest-first (spec.md §4.1).
func (s *Store) Load(id, groupID string, dateHint time.Time) (*domain.Document, error) {
	if !dateHint.IsZero() {
		doc, err := s.readFile(s.docPath(groupID, dateHint, id))
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	dates, err := s.listDatesDescending(groupID)
	if err != nil {
		return nil, err
	}
	for _, d := range dates {
		path := filepath.Join(s.groupDir(groupID), d, id+".json")
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		return s.readFile(path)
	}
	return nil, errs.DocumentNotFound(id)
}

// LoadWithAccessCheck iterates permittedGroups looking for id. If the
// document exists in a group outside permittedGroups, it surfaces
// AccessDenied rather than a silent NotFound (spec.md §4.1).
func (s *Store) LoadWithAccessCheck(id string, permittedGroups []string, dateHint time.Time) (*domain.Document, error) {
	for _, g := range permittedGroups {
		doc, err := s.Load(id, g, dateHint)
		if err == nil {
			return doc, nil
		}
	}
	// Not found among permitted groups; check whether it exists elsewhere
	// at all so we can report ACCESS_DENIED instead of NOT_FOUND.
	groups, err := s.listGroups()
	if err != nil {
		return nil, err
	}
	permitted := make(map[string]struct{}, len(permittedGroups))
	for _, g := range permittedGroups {
		permitted[g] = struct{}{}
	}
	for _, g := range groups {
		if _, ok := permitted[g]; ok {
			continue
		}
		if doc, loadErr := s.Load(id, g, dateHint); loadErr == nil {
			_ = doc
			return nil, errs.AccessDenied(id)
		}
	}
	return nil, errs.DocumentNotFound(id)
}

// ListByGroup returns documents in groupID, optionally restricted to a
// single date, newest-first, truncated to limit (0 = unlimited).
func (s *Store) ListByGroup(groupID string, date time.Time, limit int) ([]*domain.Document, error) {
	var dates []string
	var err error
	if !date.IsZero() {
		dates = []string{date.UTC().Format(dateLayout)}
	} else {
		dates, err = s.listDatesDescending(groupID)
		if err != nil {
			return nil, err
		}
	}
	return s.collect(groupID, dates, limit)
}

// ListByDateRange returns documents in groupID whose created_at UTC day
// falls between the UTC days of from and to inclusive, newest-first,
// truncated to limit. Only whole days are compared; the time of day in
// from and to is ignored.
func (s *Store) ListByDateRange(groupID string, from, to time.Time, limit int) ([]*domain.Document, error) {
	dates, err := s.listDatesDescending(groupID)
	if err != nil {
		return nil, err
	}
	var filtered []string
	fromDay := from.UTC().Format(dateLayout)
	toDay := to.UTC().Format(dateLayout)
	for _, d := range dates {
		if d >= fromDay && d <= toDay {
			filtered = append(filtered, d)
		}
	}
	return s.collect(groupID, filtered, limit)
}

// ListByPermittedGroups unions ListByGroup across groups, newest-first,
// truncated to limit.
func (s *Store) ListByPermittedGroups(groups []string, date time.Time, limit int) ([]*domain.Document, error) {
	var all []*domain.Document
	for _, g := range groups {
		docs, err := s.ListByGroup(g, date, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetVersionChain walks previous_version_id backward from id and returns
// the chain oldest-first (spec.md §4.1).
func (s *Store) GetVersionChain(id, groupID string) ([]*domain.Document, error) {
	var chain []*domain.Document
	currentID := id
	visited := make(map[string]struct{})
	for currentID != "" {
		if _, seen := visited[currentID]; seen {
			return nil, errs.Internal(fmt.Errorf("version chain cycle detected at %s", currentID))
		}
		visited[currentID] = struct{}{}

		doc, err := s.Load(currentID, groupID, time.Time{})
		if err != nil {
			return nil, err
		}
		chain = append(chain, doc)
		currentID = doc.PreviousVersionID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Delete removes the document file for id in groupID. Used both for
// direct deletion and ingest rollback (spec.md §4.9 step 7c).
func (s *Store) Delete(id, groupID string) error {
	dates, err := s.listDatesDescending(groupID)
	if err != nil {
		return err
	}
	for _, d := range dates {
		path := filepath.Join(s.groupDir(groupID), d, id+".json")
		if _, statErr := os.Stat(path); statErr == nil {
			if rmErr := os.Remove(path); rmErr != nil {
				return errs.Wrap(errs.CodeInternalError, "check file permissions", rmErr, "delete document file")
			}
			return nil
		}
	}
	return errs.DocumentNotFound(id)
}

// Exists reports whether id exists in groupID, optionally at dateHint.
func (s *Store) Exists(id, groupID string, dateHint time.Time) (bool, error) {
	_, err := s.Load(id, groupID, dateHint)
	if err == nil {
		return true, nil
	}
	if svcErr, ok := err.(*errs.Error); ok && svcErr.Code() == string(errs.CodeDocumentNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) readFile(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.DocumentNotFound(filepath.Base(strings.TrimSuffix(path, ".json")))
		}
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "read document file")
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Internal(fmt.Errorf("decode document file %s: %w", path, err))
	}
	return &doc, nil
}

func (s *Store) listDatesDescending(groupID string) ([]string, error) {
	entries, err := os.ReadDir(s.groupDir(groupID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "list group directory")
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			dates = append(dates, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (s *Store) listGroups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "documents"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "list documents directory")
	}
	var groups []string
	for _, e := range entries {
		if e.IsDir() {
			groups = append(groups, e.Name())
		}
	}
	return groups, nil
}

func (s *Store) collect(groupID string, dates []string, limit int) ([]*domain.Document, error) {
	var docs []*domain.Document
	for _, d := range dates {
		dir := filepath.Join(s.groupDir(groupID), d)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errs.Wrap(errs.CodeInternalError, "check storage_dir permissions", err, "list dated directory")
		}
		var dayDocs []*domain.Document
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			doc, err := s.readFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			dayDocs = append(dayDocs, doc)
		}
		sort.Slice(dayDocs, func(i, j int) bool { return dayDocs[i].CreatedAt.After(dayDocs[j].CreatedAt) })
		docs = append(docs, dayDocs...)
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// GetLatestVersion returns the document for id, unchanged, as documented.
//
// Open question (spec.md §9): a true "latest version for this lineage"
// lookup would need a forward index from version-1 id to current head,
// which this version-chain model (backward-only previous_version_id)
// does not maintain. Until such an index exists, callers that hold an
// old version id will get that old version back, not the head of its
// chain; GetVersionChain combined with taking the last element is the
// current way to reach the head from any id in the chain.
func (s *Store) GetLatestVersion(id, groupID string) (*domain.Document, error) {
	return s.Load(id, groupID, time.Time{})
}
