package graphindex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/gofr-iq/gofr-iq/internal/errs"
)

// ruleSchema declares the two "discovered via" relationships spec.md
// §4.10 names (shared_company, shared_source) as Datalog rules over the
// MENTIONS/AFFECTS and PRODUCED_BY edges hydrated from SQLite. Mirrors
// the teacher's own declarative rule style in internal/mangle (parent/
// ancestor), generalized to our mention/produced-by facts.
const ruleSchema = `
Decl instrument_mention(Doc, Entity).
Decl produced_by(Doc, Source).

shared_company(D1, D2) :- instrument_mention(D1, C), instrument_mention(D2, C), D1 != D2.
shared_source(D1, D2) :- produced_by(D1, S), produced_by(D2, S), D1 != D2.
`

// RuleEngine evaluates shared_company/shared_source over a snapshot of
// GraphIndex's mention and produced-by edges. Grounded on the teacher's
// internal/mangle Engine (parse.Unit -> analysis.AnalyzeOneUnit ->
// engine.EvalProgramWithStats -> store.GetFacts), trimmed to the
// synchronous, single-shot evaluation this traversal needs rather than
// the teacher's long-lived incremental-fact engine.
type RuleEngine struct {
	mu          sync.Mutex
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
}

// NewRuleEngine parses and analyzes ruleSchema, returning a ready-to-
// hydrate engine with an empty fact store.
func NewRuleEngine() (*RuleEngine, error) {
	unit, err := parse.Unit(strings.NewReader(ruleSchema))
	if err != nil {
		return nil, fmt.Errorf("parse mangle schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze mangle schema: %w", err)
	}
	return &RuleEngine{
		store:       factstore.NewSimpleInMemoryStore(),
		programInfo: programInfo,
	}, nil
}

// Hydrate loads every MENTIONS/AFFECTS edge as an instrument_mention fact
// and every PRODUCED_BY edge as a produced_by fact, then evaluates the
// ruleset to a fixed point. Call this before SharedCompanyDocuments or
// SharedSourceDocuments to reflect the current graph state.
func (re *RuleEngine) Hydrate(idx *Index) error {
	re.mu.Lock()
	defer re.mu.Unlock()

	re.store = factstore.NewSimpleInMemoryStore()

	rows, err := idx.db.Query(`SELECT from_guid, to_guid FROM edges WHERE relation IN (?, ?)`, string(RelMentions), string(RelAffects))
	if err != nil {
		return wrapGraphErr("hydrate instrument_mention facts", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc, entity string
		if err := rows.Scan(&doc, &entity); err != nil {
			return wrapGraphErr("scan instrument_mention row", err)
		}
		re.store.Add(ast.NewAtom("instrument_mention", ast.String(doc), ast.String(entity)))
	}
	if err := rows.Err(); err != nil {
		return wrapGraphErr("iterate instrument_mention rows", err)
	}

	srcRows, err := idx.db.Query(`SELECT from_guid, to_guid FROM edges WHERE relation = ?`, string(RelProducedBy))
	if err != nil {
		return wrapGraphErr("hydrate produced_by facts", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var doc, source string
		if err := srcRows.Scan(&doc, &source); err != nil {
			return wrapGraphErr("scan produced_by row", err)
		}
		re.store.Add(ast.NewAtom("produced_by", ast.String(doc), ast.String(source)))
	}
	if err := srcRows.Err(); err != nil {
		return wrapGraphErr("iterate produced_by rows", err)
	}

	if _, err := mengine.EvalProgramWithStats(re.programInfo, re.store); err != nil {
		return wrapGraphErr("evaluate mangle ruleset", err)
	}
	return nil
}

// SharedCompanyDocuments returns every docID' such that docID and docID'
// both mention a common instrument/company, per the shared_company rule.
func (re *RuleEngine) SharedCompanyDocuments(docID string) ([]string, error) {
	return re.queryPairs("shared_company", docID)
}

// SharedSourceDocuments returns every docID' produced by the same source
// as docID, per the shared_source rule.
func (re *RuleEngine) SharedSourceDocuments(docID string) ([]string, error) {
	return re.queryPairs("shared_source", docID)
}

func (re *RuleEngine) queryPairs(predicate, docID string) ([]string, error) {
	re.mu.Lock()
	defer re.mu.Unlock()

	query := ast.NewQuery(ast.PredicateSym{Symbol: predicate, Arity: 2})
	var out []string
	err := re.store.GetFacts(query, func(atom ast.Atom) error {
		left, leftOK := termToString(atom.Args[0])
		right, rightOK := termToString(atom.Args[1])
		if !leftOK || !rightOK {
			return nil
		}
		if left == docID {
			out = append(out, right)
		}
		return nil
	})
	if err != nil {
		return nil, wrapGraphErr(fmt.Sprintf("query %s", predicate), err)
	}
	return out, nil
}

func termToString(term ast.BaseTerm) (string, bool) {
	c, ok := term.(ast.Constant)
	if !ok {
		return "", false
	}
	return c.Symbol, true
}

func wrapGraphErr(what string, cause error) error {
	return errs.GraphFailed(fmt.Errorf("%s: %w", what, cause))
}
