// Package stream defines the lazy, forward-only cursor abstraction
// every storage backend returns from Serialize/Find: a Stream yields
// rdf.Triple (optionally tagged with a context), a NodeIterator yields
// bare rdf.Node. Both follow the same cursor idiom regardless of which
// backend produced them, so callers can range over results without
// materializing them up front.
package stream

import (
	"context"

	"github.com/boutros/sopp/rdf"
)

// Stream is a forward-only cursor over quads. Next must be called
// before the first Triple/Context access; it returns false once
// exhausted or on error (check Err to distinguish the two). Close is
// idempotent and releases any reference the Stream holds on its
// backing storage.
type Stream interface {
	Next(ctx context.Context) bool
	Triple() rdf.Triple
	Context() rdf.Node
	Err() error
	Close() error
}

// NodeIterator is the Node-yielding twin of Stream, used by
// FindSources/FindTargets/FindArcs/GetContexts.
type NodeIterator interface {
	Next(ctx context.Context) bool
	Node() rdf.Node
	Err() error
	Close() error
}

// Filter inspects or rewrites a triple before it is yielded. Returning
// ok=false causes the owning MapStream to skip past it.
type Filter func(rdf.Triple) (t rdf.Triple, ok bool)

// sliceStream is the simplest Stream: a fixed, in-memory quad list.
// Backends without a native cursor (e.g. ones built purely atop
// Storage.Serialize's fallback) can return one of these.
type sliceStream struct {
	quads []rdf.Quad
	pos   int
	err   error
}

// NewSliceStream returns a Stream over an in-memory slice of quads.
func NewSliceStream(quads []rdf.Quad) Stream {
	return &sliceStream{quads: quads, pos: -1}
}

func (s *sliceStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.pos++
	return s.pos < len(s.quads)
}

func (s *sliceStream) Triple() rdf.Triple {
	if s.pos < 0 || s.pos >= len(s.quads) {
		return rdf.Triple{}
	}
	return s.quads[s.pos].Triple
}

func (s *sliceStream) Context() rdf.Node {
	if s.pos < 0 || s.pos >= len(s.quads) {
		return nil
	}
	return s.quads[s.pos].Context
}

func (s *sliceStream) Err() error   { return s.err }
func (s *sliceStream) Close() error { s.quads = nil; return nil }

// MapStream wraps a Stream with a chain of Filters applied in order;
// a Filter that rejects a triple causes Next to advance past it.
type MapStream struct {
	src     Stream
	filters []Filter
	cleanup []func()
	cur     rdf.Triple
}

// NewMapStream returns a MapStream applying filters, in order, to src.
func NewMapStream(src Stream, filters ...Filter) *MapStream {
	return &MapStream{src: src, filters: filters}
}

// OnClose registers a cleanup function invoked once, from Close,
// after the underlying Stream is closed.
func (m *MapStream) OnClose(f func()) { m.cleanup = append(m.cleanup, f) }

func (m *MapStream) Next(ctx context.Context) bool {
outer:
	for m.src.Next(ctx) {
		t := m.src.Triple()
		for _, f := range m.filters {
			var ok bool
			t, ok = f(t)
			if !ok {
				continue outer
			}
		}
		m.cur = t
		return true
	}
	return false
}

func (m *MapStream) Triple() rdf.Triple  { return m.cur }
func (m *MapStream) Context() rdf.Node   { return m.src.Context() }
func (m *MapStream) Err() error          { return m.src.Err() }

func (m *MapStream) Close() error {
	err := m.src.Close()
	for _, f := range m.cleanup {
		f()
	}
	m.cleanup = nil
	return err
}

// nodeSliceIterator is the NodeIterator counterpart of sliceStream.
type nodeSliceIterator struct {
	nodes []rdf.Node
	pos   int
	err   error
}

// NewNodeSliceIterator returns a NodeIterator over an in-memory node slice.
func NewNodeSliceIterator(nodes []rdf.Node) NodeIterator {
	return &nodeSliceIterator{nodes: nodes, pos: -1}
}

func (it *nodeSliceIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	it.pos++
	return it.pos < len(it.nodes)
}

func (it *nodeSliceIterator) Node() rdf.Node {
	if it.pos < 0 || it.pos >= len(it.nodes) {
		return nil
	}
	return it.nodes[it.pos]
}

func (it *nodeSliceIterator) Err() error   { return it.err }
func (it *nodeSliceIterator) Close() error { it.nodes = nil; return nil }

// Collect drains a Stream into a slice of quads. Mainly useful in
// tests and for backends implementing Serialize/Find atop an
// in-memory Graph.
func Collect(ctx context.Context, s Stream) ([]rdf.Quad, error) {
	var out []rdf.Quad
	for s.Next(ctx) {
		out = append(out, rdf.Quad{Triple: s.Triple(), Context: s.Context()})
	}
	if err := s.Err(); err != nil {
		return out, err
	}
	return out, nil
}
