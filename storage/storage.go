// Package storage defines the backend contract every persistence
// engine (hashstore, sqlstore, virtuoso) implements, the optional
// capability interfaces backends may additionally satisfy, the
// Generic fallback decorator that synthesizes missing capabilities
// from the mandatory operations, and the process-wide backend
// registry. Generic composes an index-then-filter query out of
// Serialize/Find for any backend that lacks a dedicated index for a
// given lookup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/stream"
)

// ErrNotSupported is returned by an optional capability method when
// the backend instance cannot serve it (e.g. hashstore's context
// operations when its contexts index is disabled). Generic passes it
// through from the wrapped backend; its own fallbacks never return it.
var ErrNotSupported = errors.New("storage: capability not supported")

// Options carries backend-specific configuration, parsed by each
// backend's own Open from the mini key='value' option string.
type Options map[string]string

// Backend is the mandatory contract every storage engine satisfies.
type Backend interface {
	Open(ctx context.Context, opts Options) error
	Close(ctx context.Context) error
	Size(ctx context.Context) (int64, error) // -1 == unknown
	Add(ctx context.Context, q rdf.Quad) error
	Remove(ctx context.Context, q rdf.Quad) error
	Contains(ctx context.Context, t rdf.Triple) (bool, error)
	Serialize(ctx context.Context) (stream.Stream, error)
	Find(ctx context.Context, pattern rdf.Triple) (stream.Stream, error)
}

// BulkAdder is implemented by backends that can add many quads more
// efficiently than looping Add (e.g. inside a single transaction).
type BulkAdder interface {
	AddMany(ctx context.Context, s stream.Stream) error
}

// ContextStore is implemented by backends that track named graphs.
type ContextStore interface {
	ContextAdd(ctx context.Context, c rdf.Node, t rdf.Triple) error
	ContextRemove(ctx context.Context, c rdf.Node, t rdf.Triple) error
	ContextRemoveAll(ctx context.Context, c rdf.Node) error
	ContextSerialize(ctx context.Context, c rdf.Node) (stream.Stream, error)
	FindInContext(ctx context.Context, pattern rdf.Triple, c rdf.Node) (stream.Stream, error)
}

// ArcIndex is implemented by backends with dedicated indices for
// source/target/arc lookups.
type ArcIndex interface {
	FindSources(ctx context.Context, p, o rdf.Node) (stream.NodeIterator, error)
	FindTargets(ctx context.Context, s, p rdf.Node) (stream.NodeIterator, error)
	FindArcs(ctx context.Context, s, o rdf.Node) (stream.NodeIterator, error)
	HasArcIn(ctx context.Context, n, p rdf.Node) (bool, error)
	HasArcOut(ctx context.Context, n, p rdf.Node) (bool, error)
}

// ContextLister enumerates the distinct contexts known to a backend.
type ContextLister interface {
	GetContexts(ctx context.Context) (stream.NodeIterator, error)
}

// FeatureStore exposes backend-defined feature flags, addressed by
// feature IRI (e.g. whether contexts are meaningfully supported).
type FeatureStore interface {
	GetFeature(ctx context.Context, feature rdf.URI) (rdf.Node, error)
	SetFeature(ctx context.Context, feature rdf.URI, value rdf.Node) error
}

// Syncer is implemented by backends that buffer writes and can be
// asked to flush them to stable storage.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Cloner is implemented by backends that can spin up a fresh,
// empty instance sharing their configuration.
type Cloner interface {
	Clone(ctx context.Context, other Backend) error
}

// Transactional is implemented by backends with native transaction
// support.
type Transactional interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Query is an opaque, backend-specific query (e.g. a SPARQL string
// for storage/virtuoso).
type Query struct {
	Language string // e.g. "sparql"
	Text     string
}

// QueryResults is the opaque result of a Queryable.QueryExecute call;
// backends populate Rows/Bindings in their own representation.
type QueryResults struct {
	Bindings []string
	Rows     [][]rdf.Node
}

// Queryable is implemented by backends that can execute a query
// language of their own (storage/virtuoso's SPARQL-over-ODBC).
type Queryable interface {
	SupportsQuery(q Query) bool
	QueryExecute(ctx context.Context, q Query) (QueryResults, error)
}

// Generic wraps any Backend and supplies every optional capability
// via the fallback composition rules, for use by backends (and by the
// Model façade, probing through a type assertion) that would
// otherwise have to hand-write the same projection-from-Find logic
// for each capability they lack a dedicated index for.
type Generic struct {
	Backend
}

// NewGeneric wraps b so that every optional capability is available,
// using b's own implementation where b already provides it.
func NewGeneric(b Backend) *Generic { return &Generic{Backend: b} }

// AddMany loops Add unless the wrapped backend implements BulkAdder.
func (g *Generic) AddMany(ctx context.Context, s stream.Stream) error {
	if ba, ok := g.Backend.(BulkAdder); ok {
		return ba.AddMany(ctx, s)
	}
	for s.Next(ctx) {
		if err := g.Add(ctx, rdf.Quad{Triple: s.Triple(), Context: s.Context()}); err != nil {
			return err
		}
	}
	return s.Err()
}

// ContextSerialize delegates to the wrapped backend if it implements
// ContextStore, else filters Serialize by context equality.
func (g *Generic) ContextSerialize(ctx context.Context, c rdf.Node) (stream.Stream, error) {
	if cs, ok := g.Backend.(ContextStore); ok {
		return cs.ContextSerialize(ctx, c)
	}
	s, err := g.Serialize(ctx)
	if err != nil {
		return nil, err
	}
	return stream.NewMapStream(s, func(t rdf.Triple) (rdf.Triple, bool) {
		return t, rdf.MatchContext(c, s.Context())
	}), nil
}

// ContextRemoveAll drains ContextSerialize through ContextRemove when
// the wrapped backend has no native bulk-remove.
func (g *Generic) ContextRemoveAll(ctx context.Context, c rdf.Node) error {
	if cs, ok := g.Backend.(ContextStore); ok {
		return cs.ContextRemoveAll(ctx, c)
	}
	s, err := g.ContextSerialize(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()
	for s.Next(ctx) {
		if err := g.Remove(ctx, rdf.Quad{Triple: s.Triple(), Context: c}); err != nil {
			return err
		}
	}
	return s.Err()
}

// FindInContext wraps ContextSerialize in a MapStream applying Match
// when the wrapped backend has no native indexed version.
func (g *Generic) FindInContext(ctx context.Context, pattern rdf.Triple, c rdf.Node) (stream.Stream, error) {
	if cs, ok := g.Backend.(ContextStore); ok {
		return cs.FindInContext(ctx, pattern, c)
	}
	s, err := g.ContextSerialize(ctx, c)
	if err != nil {
		return nil, err
	}
	return stream.NewMapStream(s, func(t rdf.Triple) (rdf.Triple, bool) {
		return t, rdf.Match(pattern, t)
	}), nil
}

// FindSources falls back to Find((nil, p, o)) projected to subjects.
func (g *Generic) FindSources(ctx context.Context, p, o rdf.Node) (stream.NodeIterator, error) {
	if ai, ok := g.Backend.(ArcIndex); ok {
		return ai.FindSources(ctx, p, o)
	}
	return g.projectFind(ctx, rdf.Triple{Pred: p, Obj: o}, func(t rdf.Triple) rdf.Node { return t.Subj })
}

// FindTargets falls back to Find((s, p, nil)) projected to objects.
func (g *Generic) FindTargets(ctx context.Context, s, p rdf.Node) (stream.NodeIterator, error) {
	if ai, ok := g.Backend.(ArcIndex); ok {
		return ai.FindTargets(ctx, s, p)
	}
	return g.projectFind(ctx, rdf.Triple{Subj: s, Pred: p}, func(t rdf.Triple) rdf.Node { return t.Obj })
}

// FindArcs falls back to Find((s, nil, o)) projected to predicates.
func (g *Generic) FindArcs(ctx context.Context, s, o rdf.Node) (stream.NodeIterator, error) {
	if ai, ok := g.Backend.(ArcIndex); ok {
		return ai.FindArcs(ctx, s, o)
	}
	return g.projectFind(ctx, rdf.Triple{Subj: s, Obj: o}, func(t rdf.Triple) rdf.Node { return t.Pred })
}

func (g *Generic) projectFind(ctx context.Context, pattern rdf.Triple, project func(rdf.Triple) rdf.Node) (stream.NodeIterator, error) {
	s, err := g.Find(ctx, pattern)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	var nodes []rdf.Node
	for s.Next(ctx) {
		nodes = append(nodes, project(s.Triple()))
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return stream.NewNodeSliceIterator(nodes), nil
}

// HasArcIn reports whether any source has an arc labeled p into n,
// peeking the first element of FindSources.
func (g *Generic) HasArcIn(ctx context.Context, n, p rdf.Node) (bool, error) {
	if ai, ok := g.Backend.(ArcIndex); ok {
		return ai.HasArcIn(ctx, n, p)
	}
	it, err := g.FindSources(ctx, p, n)
	if err != nil {
		return false, err
	}
	defer it.Close()
	has := it.Next(ctx)
	return has, it.Err()
}

// HasArcOut reports whether n has an arc labeled p out to some target,
// peeking the first element of FindTargets.
func (g *Generic) HasArcOut(ctx context.Context, n, p rdf.Node) (bool, error) {
	if ai, ok := g.Backend.(ArcIndex); ok {
		return ai.HasArcOut(ctx, n, p)
	}
	it, err := g.FindTargets(ctx, n, p)
	if err != nil {
		return false, err
	}
	defer it.Close()
	has := it.Next(ctx)
	return has, it.Err()
}

// Registry is a process-wide map of backend factory name to
// constructor, written only from backend package init() functions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Backend
	order     []string
}

var defaultRegistry = &Registry{factories: make(map[string]func() Backend)}

// Register adds factory under name to the default Registry.
// Re-registering an existing name is a no-op: the first factory is
// kept and nothing is reported to the caller.
func Register(name string, factory func() Backend) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, exists := defaultRegistry.factories[name]; exists {
		return
	}
	defaultRegistry.factories[name] = factory
	defaultRegistry.order = append(defaultRegistry.order, name)
}

// New constructs a fresh Backend instance from the named factory.
func New(name string) (Backend, error) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	f, ok := defaultRegistry.factories[name]
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered under name %q", name)
	}
	return f(), nil
}

// Registered returns the names of all registered backend factories,
// in registration order.
func Registered() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make([]string, len(defaultRegistry.order))
	copy(out, defaultRegistry.order)
	return out
}
