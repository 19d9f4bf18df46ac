// Package hashstore is a storage.Backend built out of hash-indexed
// multimaps: three mandatory indices (sp2o, po2s, so2p) covering every
// two-component lookup, plus two optional indices (p2so for
// predicate-only lookups, contexts for named-graph membership) enabled
// per instance through Options.
package hashstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/rdf/codec"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/stream"
)

// Backend implements storage.Backend, storage.ContextStore,
// storage.ArcIndex, storage.ContextLister, storage.Cloner and
// storage.FeatureStore over a set of Multimaps.
type Backend struct {
	mu   sync.RWMutex
	opts Options
	db   *bolt.DB // nil for hash-type=mem

	in interner

	sp2o     Multimap
	po2s     Multimap
	so2p     Multimap
	p2so     Multimap // nil unless opts.IndexPredicates
	contexts Multimap // nil unless opts.Contexts

	features map[string]rdf.Node
}

func init() {
	storage.Register("hashstore", func() storage.Backend { return &Backend{} })
}

// New returns an unopened hashstore Backend.
func New() *Backend { return &Backend{} }

// Open configures and opens the backend's index files (or in-memory
// maps, for hash-type=mem).
func (b *Backend) Open(ctx context.Context, raw storage.Options) error {
	opts, err := parseOptions(raw)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts = opts
	b.features = make(map[string]rdf.Node)

	switch opts.HashType {
	case "mem":
		b.in = newMemInterner()
		b.sp2o = NewMemMultimap(true)
		b.po2s = NewMemMultimap(true)
		b.so2p = NewMemMultimap(true)
		if opts.IndexPredicates {
			b.p2so = NewMemMultimap(false)
		}
		if opts.Contexts {
			b.contexts = NewMemMultimap(true)
		}
		return nil
	case "bdb":
		path := filepath.Join(opts.Dir, opts.Name+".db")
		if opts.New {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		db, err := bolt.Open(path, os.FileMode(opts.Mode), nil)
		if err != nil {
			return err
		}
		b.db = db

		in, err := newBoltInterner(db)
		if err != nil {
			return err
		}
		b.in = in

		if b.sp2o, err = OpenBoltMultimap(db, "sp2o", true); err != nil {
			return err
		}
		if b.po2s, err = OpenBoltMultimap(db, "po2s", true); err != nil {
			return err
		}
		if b.so2p, err = OpenBoltMultimap(db, "so2p", true); err != nil {
			return err
		}
		if opts.IndexPredicates {
			if b.p2so, err = OpenBoltMultimap(db, "p2so", false); err != nil {
				return err
			}
		}
		if opts.Contexts {
			if b.contexts, err = OpenBoltMultimap(db, "contexts", true); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("hashstore: unknown hash-type %q", opts.HashType)
	}
}

// Close releases the backend's underlying resources.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// ---- term helpers ----

func (b *Backend) termID(n rdf.Node) (uint32, error) {
	enc, err := codec.EncodeNode(n)
	if err != nil {
		return 0, err
	}
	return b.in.intern(enc)
}

func (b *Backend) idForTerm(n rdf.Node) (uint32, bool, error) {
	enc, err := codec.EncodeNode(n)
	if err != nil {
		return 0, false, err
	}
	id, err := b.in.idFor(enc)
	if err == ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (b *Backend) nodeFor(id uint32) (rdf.Node, error) {
	enc, err := b.in.term(id)
	if err != nil {
		return nil, err
	}
	n, _, err := codec.DecodeNode(enc)
	return n, err
}

func key2(a, c uint32) []byte {
	k := make([]byte, 8)
	putU32(k[0:4], a)
	putU32(k[4:8], c)
	return k
}

func key3(a, c, d uint32) []byte {
	k := make([]byte, 12)
	putU32(k[0:4], a)
	putU32(k[4:8], c)
	putU32(k[8:12], d)
	return k
}

func putU32(b []byte, v uint32) { copy(b, u32tob(v)) }

// ---- mandatory Backend operations ----

func (b *Backend) Size(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	err := b.sp2o.ForEach(func(_ []byte, vals Values) error {
		for vals.HasNext() {
			vals.Next()
			n++
		}
		return nil
	})
	return n, err
}

func (b *Backend) Add(ctx context.Context, q rdf.Quad) error {
	if !q.Complete() {
		return rdf.ErrInvalidTriple
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	sid, err := b.termID(q.Subj)
	if err != nil {
		return err
	}
	pid, err := b.termID(q.Pred)
	if err != nil {
		return err
	}
	oid, err := b.termID(q.Obj)
	if err != nil {
		return err
	}

	if err := b.sp2o.Put(key2(sid, pid), u32tob(oid)); err != nil {
		return err
	}
	if err := b.po2s.Put(key2(pid, oid), u32tob(sid)); err != nil {
		return err
	}
	if err := b.so2p.Put(key2(sid, oid), u32tob(pid)); err != nil {
		return err
	}
	if b.p2so != nil {
		if err := b.p2so.Put(u32tob(pid), append(u32tob(sid), u32tob(oid)...)); err != nil {
			return err
		}
	}
	if b.contexts != nil && q.Context != nil {
		cid, err := b.termID(q.Context)
		if err != nil {
			return err
		}
		if err := b.contexts.Put(key3(sid, pid, oid), u32tob(cid)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, q rdf.Quad) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sid, ok, err := b.idForTerm(q.Subj)
	if err != nil || !ok {
		return err
	}
	pid, ok, err := b.idForTerm(q.Pred)
	if err != nil || !ok {
		return err
	}
	oid, ok, err := b.idForTerm(q.Obj)
	if err != nil || !ok {
		return err
	}

	if err := b.sp2o.Delete(key2(sid, pid), u32tob(oid)); err != nil {
		return err
	}
	if err := b.po2s.Delete(key2(pid, oid), u32tob(sid)); err != nil {
		return err
	}
	if err := b.so2p.Delete(key2(sid, oid), u32tob(pid)); err != nil {
		return err
	}
	if b.p2so != nil {
		if err := b.p2so.Delete(u32tob(pid), append(u32tob(sid), u32tob(oid)...)); err != nil {
			return err
		}
	}
	if b.contexts != nil && q.Context != nil {
		cid, ok, err := b.idForTerm(q.Context)
		if err != nil {
			return err
		}
		if ok {
			if err := b.contexts.Delete(key3(sid, pid, oid), u32tob(cid)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) Contains(ctx context.Context, t rdf.Triple) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sid, ok, err := b.idForTerm(t.Subj)
	if err != nil || !ok {
		return false, err
	}
	pid, ok, err := b.idForTerm(t.Pred)
	if err != nil || !ok {
		return false, err
	}
	oid, ok, err := b.idForTerm(t.Obj)
	if err != nil || !ok {
		return false, err
	}

	vals, err := b.sp2o.Get(key2(sid, pid))
	if err != nil {
		return false, err
	}
	for vals.HasNext() {
		if btou32(vals.Next()) == oid {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) Serialize(ctx context.Context) (stream.Stream, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []rdf.Quad
	err := b.sp2o.ForEach(func(k []byte, vals Values) error {
		sid, pid := btou32(k[0:4]), btou32(k[4:8])
		s, err := b.nodeFor(sid)
		if err != nil {
			return err
		}
		p, err := b.nodeFor(pid)
		if err != nil {
			return err
		}
		for vals.HasNext() {
			o, err := b.nodeFor(btou32(vals.Next()))
			if err != nil {
				return err
			}
			out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: p, Obj: o}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream.NewSliceStream(out), nil
}

// Find resolves pattern against whichever of sp2o/po2s/so2p/p2so
// covers the given components directly, falling back to a full scan
// of sp2o filtered by rdf.Match for patterns none of the indices
// cover on their own (subject-only, object-only).
func (b *Backend) Find(ctx context.Context, pattern rdf.Triple) (stream.Stream, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, p, o := pattern.Subj, pattern.Pred, pattern.Obj

	switch {
	case s != nil && p != nil:
		sid, ok, err := b.idForTerm(s)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		pid, ok, err := b.idForTerm(p)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		vals, err := b.sp2o.Get(key2(sid, pid))
		if err != nil {
			return nil, err
		}
		var out []rdf.Quad
		for vals.HasNext() {
			obj, err := b.nodeFor(btou32(vals.Next()))
			if err != nil {
				return nil, err
			}
			if o != nil && !rdf.Equal(o, obj) {
				continue
			}
			out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: p, Obj: obj}})
		}
		return stream.NewSliceStream(out), nil

	case p != nil && o != nil:
		pid, ok, err := b.idForTerm(p)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		oid, ok, err := b.idForTerm(o)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		vals, err := b.po2s.Get(key2(pid, oid))
		if err != nil {
			return nil, err
		}
		var out []rdf.Quad
		for vals.HasNext() {
			subj, err := b.nodeFor(btou32(vals.Next()))
			if err != nil {
				return nil, err
			}
			out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: subj, Pred: p, Obj: o}})
		}
		return stream.NewSliceStream(out), nil

	case s != nil && o != nil:
		sid, ok, err := b.idForTerm(s)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		oid, ok, err := b.idForTerm(o)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		vals, err := b.so2p.Get(key2(sid, oid))
		if err != nil {
			return nil, err
		}
		var out []rdf.Quad
		for vals.HasNext() {
			pred, err := b.nodeFor(btou32(vals.Next()))
			if err != nil {
				return nil, err
			}
			out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: pred, Obj: o}})
		}
		return stream.NewSliceStream(out), nil

	case p != nil && b.p2so != nil:
		pid, ok, err := b.idForTerm(p)
		if err != nil || !ok {
			return stream.NewSliceStream(nil), err
		}
		vals, err := b.p2so.Get(u32tob(pid))
		if err != nil {
			return nil, err
		}
		var out []rdf.Quad
		for vals.HasNext() {
			pair := vals.Next()
			subj, err := b.nodeFor(btou32(pair[0:4]))
			if err != nil {
				return nil, err
			}
			obj, err := b.nodeFor(btou32(pair[4:8]))
			if err != nil {
				return nil, err
			}
			out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: subj, Pred: p, Obj: obj}})
		}
		return stream.NewSliceStream(out), nil

	default:
		all, err := b.Serialize(ctx)
		if err != nil {
			return nil, err
		}
		return stream.NewMapStream(all, func(t rdf.Triple) (rdf.Triple, bool) {
			return t, rdf.Match(pattern, t)
		}), nil
	}
}

// ---- storage.ArcIndex ----

func (b *Backend) FindSources(ctx context.Context, p, o rdf.Node) (stream.NodeIterator, error) {
	return b.nodesFromIndex(b.po2s, p, o)
}

func (b *Backend) FindTargets(ctx context.Context, s, p rdf.Node) (stream.NodeIterator, error) {
	return b.nodesFromIndex(b.sp2o, s, p)
}

func (b *Backend) FindArcs(ctx context.Context, s, o rdf.Node) (stream.NodeIterator, error) {
	return b.nodesFromIndex(b.so2p, s, o)
}

func (b *Backend) nodesFromIndex(mm Multimap, a, c rdf.Node) (stream.NodeIterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	aid, ok, err := b.idForTerm(a)
	if err != nil || !ok {
		return stream.NewNodeSliceIterator(nil), err
	}
	cid, ok, err := b.idForTerm(c)
	if err != nil || !ok {
		return stream.NewNodeSliceIterator(nil), err
	}
	vals, err := mm.Get(key2(aid, cid))
	if err != nil {
		return nil, err
	}
	var nodes []rdf.Node
	for vals.HasNext() {
		n, err := b.nodeFor(btou32(vals.Next()))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return stream.NewNodeSliceIterator(nodes), nil
}

func (b *Backend) HasArcIn(ctx context.Context, n, p rdf.Node) (bool, error) {
	it, err := b.FindSources(ctx, p, n)
	if err != nil {
		return false, err
	}
	defer it.Close()
	has := it.Next(ctx)
	return has, it.Err()
}

func (b *Backend) HasArcOut(ctx context.Context, n, p rdf.Node) (bool, error) {
	it, err := b.FindTargets(ctx, n, p)
	if err != nil {
		return false, err
	}
	defer it.Close()
	has := it.Next(ctx)
	return has, it.Err()
}

// ---- storage.ContextStore ----

func (b *Backend) ContextAdd(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	if b.contexts == nil {
		return storage.ErrNotSupported
	}
	return b.Add(ctx, rdf.Quad{Triple: t, Context: c})
}

func (b *Backend) ContextRemove(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	if b.contexts == nil {
		return storage.ErrNotSupported
	}
	return b.Remove(ctx, rdf.Quad{Triple: t, Context: c})
}

func (b *Backend) ContextRemoveAll(ctx context.Context, c rdf.Node) error {
	if b.contexts == nil {
		return storage.ErrNotSupported
	}
	s, err := b.ContextSerialize(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()
	for s.Next(ctx) {
		if err := b.Remove(ctx, rdf.Quad{Triple: s.Triple(), Context: c}); err != nil {
			return err
		}
	}
	return s.Err()
}

func (b *Backend) ContextSerialize(ctx context.Context, c rdf.Node) (stream.Stream, error) {
	if b.contexts == nil {
		return nil, storage.ErrNotSupported
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	cid, ok, err := b.idForTerm(c)
	if err != nil || !ok {
		return stream.NewSliceStream(nil), err
	}

	var out []rdf.Quad
	err = b.contexts.ForEach(func(k []byte, vals Values) error {
		match := false
		for vals.HasNext() {
			if btou32(vals.Next()) == cid {
				match = true
			}
		}
		if !match {
			return nil
		}
		sid, pid, oid := btou32(k[0:4]), btou32(k[4:8]), btou32(k[8:12])
		s, err := b.nodeFor(sid)
		if err != nil {
			return err
		}
		p, err := b.nodeFor(pid)
		if err != nil {
			return err
		}
		o, err := b.nodeFor(oid)
		if err != nil {
			return err
		}
		out = append(out, rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: p, Obj: o}, Context: c})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream.NewSliceStream(out), nil
}

func (b *Backend) FindInContext(ctx context.Context, pattern rdf.Triple, c rdf.Node) (stream.Stream, error) {
	if b.contexts == nil {
		return nil, storage.ErrNotSupported
	}
	s, err := b.ContextSerialize(ctx, c)
	if err != nil {
		return nil, err
	}
	return stream.NewMapStream(s, func(t rdf.Triple) (rdf.Triple, bool) {
		return t, rdf.Match(pattern, t)
	}), nil
}

// ---- storage.ContextLister ----

func (b *Backend) GetContexts(ctx context.Context) (stream.NodeIterator, error) {
	if b.contexts == nil {
		return nil, storage.ErrNotSupported
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[uint32]bool)
	var nodes []rdf.Node
	err := b.contexts.ForEach(func(_ []byte, vals Values) error {
		for vals.HasNext() {
			cid := btou32(vals.Next())
			if seen[cid] {
				continue
			}
			seen[cid] = true
			n, err := b.nodeFor(cid)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream.NewNodeSliceIterator(nodes), nil
}

// ---- storage.FeatureStore ----

func (b *Backend) GetFeature(ctx context.Context, feature rdf.URI) (rdf.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.features[feature.String()], nil
}

func (b *Backend) SetFeature(ctx context.Context, feature rdf.URI, value rdf.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.features[feature.String()] = value
	return nil
}

// ---- storage.Cloner ----

// Clone opens other as a fresh, empty sibling of b: same hash-type and
// directory, a new UUID-suffixed name so the two never collide on
// disk. No data is copied.
func (b *Backend) Clone(ctx context.Context, other storage.Backend) error {
	b.mu.RLock()
	opts := b.opts
	b.mu.RUnlock()

	opts.Name = opts.Name + "-" + uuid.New().String()[:8]
	opts.New = true

	raw := storage.Options{
		"hash-type": opts.HashType,
		"dir":       opts.Dir,
		"name":      opts.Name,
	}
	if opts.Contexts {
		raw["contexts"] = "true"
	}
	if opts.IndexPredicates {
		raw["index-predicates"] = "true"
	}
	return other.Open(ctx, raw)
}
