// Package alias implements AliasResolver (spec.md §4.8): normalize,
// check a bounded cache, else fall back to a GraphIndex alias lookup.
// Grounded on the teacher's general cache-then-query idiom; no LRU
// library is vendored anywhere in the pack, so the bounded map plus
// doubly-linked list here is hand-rolled stdlib, matching the teacher's
// own practice of writing small in-package caches rather than reaching
// for a cache library (DESIGN.md justifies this as the one place the
// corpus offers no third-party alternative).
package alias

import (
	"container/list"
	"sync"

	"github.com/gofr-iq/gofr-iq/internal/domain"
)

// DefaultCapacity is the LRU capacity spec.md §4.8 suggests (~2048
// entries); both positive and negative lookups count against it.
const DefaultCapacity = 2048

// GraphLookup is the subset of GraphIndex AliasResolver falls back to on
// a cache miss. Defined locally, mirroring sourceregistry.GraphMirror, to
// avoid a cyclic dependency on internal/graphindex; graphindex.Index
// satisfies it structurally.
type GraphLookup interface {
	ResolveAlias(normalizedValue string, scheme domain.AliasScheme) (string, error)
}

type cacheKey struct {
	value  string
	scheme domain.AliasScheme
}

type entry struct {
	key  cacheKey
	guid string // empty string is a cached negative ("no such alias")
}

// Resolver is a bounded-LRU-cached wrapper around a GraphLookup.
type Resolver struct {
	graph    GraphLookup
	capacity int

	mu    sync.Mutex
	items map[cacheKey]*list.Element
	order *list.List // front = most recently used
}

// New returns a Resolver backed by graph, caching up to capacity entries
// (DefaultCapacity if capacity <= 0).
func New(graph GraphLookup, capacity int) *Resolver {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Resolver{
		graph:    graph,
		capacity: capacity,
		items:    make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

// Resolve returns the canonical guid for value under scheme, or "" if no
// alias resolves (spec.md §4.8 "resolve(value, scheme?) -> canonical_guid
// | null"). Both hits and misses are cached.
func (r *Resolver) Resolve(value string, scheme domain.AliasScheme) (string, error) {
	normValue, normScheme := domain.NormalizeAliasKey(value, scheme)
	key := cacheKey{value: normValue, scheme: normScheme}

	r.mu.Lock()
	if el, ok := r.items[key]; ok {
		r.order.MoveToFront(el)
		guid := el.Value.(*entry).guid
		r.mu.Unlock()
		return guid, nil
	}
	r.mu.Unlock()

	guid, err := r.graph.ResolveAlias(normValue, normScheme)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.insertLocked(key, guid)
	r.mu.Unlock()
	return guid, nil
}

// Invalidate evicts a single cache entry, used when an alias is
// registered or its canonical target changes.
func (r *Resolver) Invalidate(value string, scheme domain.AliasScheme) {
	normValue, normScheme := domain.NormalizeAliasKey(value, scheme)
	key := cacheKey{value: normValue, scheme: normScheme}

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.items[key]; ok {
		r.order.Remove(el)
		delete(r.items, key)
	}
}

func (r *Resolver) insertLocked(key cacheKey, guid string) {
	if el, ok := r.items[key]; ok {
		el.Value.(*entry).guid = guid
		r.order.MoveToFront(el)
		return
	}
	el := r.order.PushFront(&entry{key: key, guid: guid})
	r.items[key] = el

	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.order.Remove(oldest)
		delete(r.items, oldest.Value.(*entry).key)
	}
}

// Len returns the current number of cached entries, for tests and metrics.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
