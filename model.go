// Package sopp is an embeddable RDF graph library: build, mutate,
// query, serialize and persist directed labelled graphs of
// (subject, predicate, object) triples optionally tagged by a context
// (named graph), over a pluggable storage.Backend.
package sopp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	slog "github.com/boutros/sopp/internal/log"
	"github.com/boutros/sopp/parser"
	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/stream"
)

// ErrClosed is returned by any Model method called after its
// reference count has dropped to zero.
var ErrClosed = errors.New("sopp: model closed")

// ErrCycle is returned by AddSubModel when adding sub would create a
// cycle in the sub-model tree.
var ErrCycle = errors.New("sopp: adding sub-model would create a cycle")

// featureContexts is the feature IRI Model probes on construction to
// decide whether context operations are meaningfully backed, rather
// than silently degrading to the default graph.
var featureContexts = rdf.NewURI("http://github.com/boutros/sopp/features#contexts")

// ModelOptions configures a Model at construction.
type ModelOptions struct {
	// Name identifies the model in logs; purely cosmetic.
	Name string
}

// Model is the façade over a storage.Backend: a refcounted handle that
// fans writes out to any attached sub-models and degrades context
// operations gracefully when the backend doesn't track named graphs.
type Model struct {
	mu   sync.Mutex
	name string

	backend storage.Backend
	generic *storage.Generic

	refs int32
	subs []*Model

	supportsContexts bool
	features         map[string]rdf.Node // local fallback when backend has no FeatureStore

	closed bool
}

// New wraps backend in a Model, probing its FeatureStore capability
// (if any) for the contexts feature.
func New(backend storage.Backend, opts ModelOptions) (*Model, error) {
	if backend == nil {
		return nil, fmt.Errorf("sopp: New called with nil backend")
	}
	m := &Model{
		name:     opts.Name,
		backend:  backend,
		generic:  storage.NewGeneric(backend),
		refs:     1,
		features: make(map[string]rdf.Node),
	}

	if fs, ok := backend.(storage.FeatureStore); ok {
		v, err := fs.GetFeature(context.Background(), featureContexts)
		if err != nil {
			slog.Warn("model", "feature probe for contexts failed: "+err.Error())
		} else if lit, ok := v.(rdf.Literal); ok && lit.Value() == true {
			m.supportsContexts = true
		}
	} else {
		slog.Warn("model", "backend does not implement storage.FeatureStore; context operations will forward but may be silently ignored by the backend")
	}

	return m, nil
}

// AddReference increments the model's reference count.
func (m *Model) AddReference() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs++
}

// RemoveReference decrements the reference count, destroying the model
// (releasing sub-models first, then closing the backend) when it
// reaches zero.
func (m *Model) RemoveReference() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	for _, sub := range m.subs {
		if err := sub.RemoveReference(); err != nil {
			slog.Error("model", err, "error releasing sub-model")
		}
	}
	m.closed = true
	return m.backend.Close(context.Background())
}

func (m *Model) checkOpen() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

// AddSubModel attaches sub as a write-fan-out target: every AddTriple/
// Remove call on m is replayed on sub as well. Refuses to create a
// cycle (m already reachable from sub, or sub == m).
func (m *Model) AddSubModel(sub *Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if sub == m || sub.reaches(m) {
		return ErrCycle
	}
	m.subs = append(m.subs, sub)
	return nil
}

// reaches reports whether target is m itself or reachable through m's
// sub-model tree.
func (m *Model) reaches(target *Model) bool {
	if m == target {
		return true
	}
	for _, sub := range m.subs {
		if sub.reaches(target) {
			return true
		}
	}
	return false
}

// AddTriple inserts (s, p, o) into the backend and every sub-model.
func (m *Model) AddTriple(s, p, o rdf.Node) error {
	t, err := rdf.NewTriple(s, p, o)
	if err != nil {
		return err
	}
	return m.add(rdf.Quad{Triple: t})
}

// AddTypedLiteral inserts (s, p, literal(lex, lang, dt)) into the
// backend and every sub-model.
func (m *Model) AddTypedLiteral(s, p rdf.Node, lex, lang string, dt rdf.URI) error {
	var lit rdf.Literal
	var err error
	if lang != "" {
		lit, err = rdf.NewLiteral(lex, lang, false)
	} else {
		lit, err = rdf.NewTypedLiteral(lex, dt)
	}
	if err != nil {
		return err
	}
	return m.AddTriple(s, p, lit)
}

func (m *Model) add(q rdf.Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	ctx := context.Background()
	if err := m.backend.Add(ctx, q); err != nil {
		return err
	}
	for _, sub := range m.subs {
		if err := sub.add(q); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes t from the backend and every sub-model.
func (m *Model) Remove(t rdf.Triple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	ctx := context.Background()
	if err := m.backend.Remove(ctx, rdf.Quad{Triple: t}); err != nil {
		return err
	}
	for _, sub := range m.subs {
		if err := sub.Remove(t); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether t is present.
func (m *Model) Contains(t rdf.Triple) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	return m.backend.Contains(context.Background(), t)
}

// Find returns a Stream over every statement matching pattern.
func (m *Model) Find(pattern rdf.Triple) (stream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.backend.Find(context.Background(), pattern)
}

// Size returns the number of statements in the backend.
func (m *Model) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	return m.backend.Size(context.Background())
}

// Sync flushes any buffered writes, if the backend supports it.
func (m *Model) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if s, ok := m.backend.(storage.Syncer); ok {
		return s.Sync(context.Background())
	}
	return nil
}

// Contexts enumerates the distinct named graphs known to the backend.
// Logs a warning if the backend does not report contexts support, and
// still forwards to the backend's ContextLister (whose own result or
// error is returned); an empty iterator is returned only when the
// backend has no ContextLister.
func (m *Model) Contexts() (stream.NodeIterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.supportsContexts {
		slog.Warn("model", "Contexts called on a backend without contexts support")
	}
	if cl, ok := m.backend.(storage.ContextLister); ok {
		return cl.GetContexts(context.Background())
	}
	return stream.NewNodeSliceIterator(nil), nil
}

// ContextAdd inserts t into named graph c.
func (m *Model) ContextAdd(c rdf.Node, t rdf.Triple) error {
	if !m.supportsContexts {
		slog.Warn("model", "ContextAdd called on a backend without contexts support")
	}
	return m.add(rdf.Quad{Triple: t, Context: c})
}

// Describe returns every statement with node as subject, and, when
// asObject is true, every statement with node as object too.
func (m *Model) Describe(node rdf.Node, asObject bool) (*rdf.Graph, error) {
	m.mu.Lock()
	backend := m.backend
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	ctx := context.Background()
	g := rdf.NewGraph()

	s, err := backend.Find(ctx, rdf.Triple{Subj: node})
	if err != nil {
		return nil, err
	}
	defer s.Close()
	for s.Next(ctx) {
		g.Insert(s.Triple())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if asObject {
		s, err = backend.Find(ctx, rdf.Triple{Obj: node})
		if err != nil {
			return nil, err
		}
		defer s.Close()
		for s.Next(ctx) {
			g.Insert(s.Triple())
		}
		if err := s.Err(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// GetFeature returns the value of feature. A value held in the
// façade's own in-memory feature map (façade-tracked features like
// parser-error-count that no backend needs to know about) is returned
// first; otherwise the call is delegated to the backend's own
// FeatureStore when it has one, else the façade's map is read.
func (m *Model) GetFeature(feature rdf.URI) (rdf.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if v, ok := m.features[feature.String()]; ok {
		return v, nil
	}
	if fs, ok := m.backend.(storage.FeatureStore); ok {
		return fs.GetFeature(context.Background(), feature)
	}
	return m.features[feature.String()], nil
}

// SetFeature sets the value of feature, delegating to the backend's
// FeatureStore when available, else to the façade's own map.
func (m *Model) SetFeature(feature rdf.URI, value rdf.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if fs, ok := m.backend.(storage.FeatureStore); ok {
		return fs.SetFeature(context.Background(), feature, value)
	}
	m.features[feature.String()] = value
	return nil
}

var (
	featureParserErrors   = rdf.NewURI("http://github.com/boutros/sopp/features#parser-error-count")
	featureParserWarnings = rdf.NewURI("http://github.com/boutros/sopp/features#parser-warning-count")
)

func (m *Model) bumpFeatureCounter(feature rdf.URI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(0)
	if lit, ok := m.features[feature.String()].(rdf.Literal); ok {
		n = lit.Value().(int64)
	}
	m.features[feature.String()] = rdf.NewLiteralValue(n + 1)
}

// Load parses src with the parser resolved per opts (by name, MIME, or
// source suffix) and routes each triple into AddTriple, or ContextAdd
// when opts.Context is non-nil. Namespace declarations observed while
// parsing are returned. A triple that cannot be added increments the
// parser-error-count feature and ends the load with that error, unless
// opts.ContinueOnError is set, in which case it is logged and skipped.
// An error returned by the parser itself increments the
// parser-warning-count feature and is returned.
func (m *Model) Load(ctx context.Context, src parser.Source, opts LoadOptions) ([]parser.Namespace, error) {
	p, err := parser.Select(opts.ParserName, opts.MIME, src.IRI)
	if err != nil {
		return nil, err
	}

	var namespaces []parser.Namespace
	onTriple := func(t rdf.Triple) error {
		var addErr error
		if opts.Context != nil {
			addErr = m.ContextAdd(opts.Context, t)
		} else {
			addErr = m.AddTriple(t.Subj, t.Pred, t.Obj)
		}
		if addErr != nil {
			m.bumpFeatureCounter(featureParserErrors)
			if !opts.ContinueOnError {
				return addErr
			}
			slog.Warn("model", "error adding triple during Load: "+addErr.Error())
		}
		return nil
	}
	onNamespace := func(prefix string, uri rdf.URI) {
		namespaces = append(namespaces, parser.Namespace{Prefix: prefix, URI: uri})
	}

	if err := p.Parse(ctx, src, opts.Base, onTriple, onNamespace); err != nil {
		m.bumpFeatureCounter(featureParserWarnings)
		return namespaces, err
	}
	return namespaces, nil
}

// LoadOptions configures Model.Load.
type LoadOptions struct {
	ParserName      string  // exact registry name, takes precedence
	MIME            string  // MIME type, used if ParserName is empty
	Base            rdf.URI // handed to the parser; the in-tree Turtle parser does not resolve against it
	Context         rdf.Node // non-nil routes triples through ContextAdd
	ContinueOnError bool     // log and continue instead of aborting Load
}
