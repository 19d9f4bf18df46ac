package hashstore

import (
	"bytes"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	bolt "github.com/boltdb/bolt"
	"github.com/spaolacci/murmur3"
)

// Values iterates the set of values stored under one key.
type Values interface {
	HasNext() bool
	Next() []byte
}

// Cursor iterates key/value pairs in key order starting at a seek
// point, generalizing bolt.Cursor's Seek/Next idiom so MemMultimap can
// offer the same scan shape BoltMultimap gets for free from BoltDB.
type Cursor interface {
	Next() (key, value []byte, ok bool)
}

// Multimap is a bytes -> set-of-bytes key-value service, the
// pluggable index-layer abstraction behind each of the hashstore's
// named indices. A composite key (e.g. subject+predicate) maps to a
// set of values (e.g. the matching objects), packed either as a
// roaring bitmap of interned term ids or as raw length-prefixed blobs
// depending on whether the value fits in one id.
type Multimap interface {
	// Put adds value to the set stored under key.
	Put(key, value []byte) error
	// Delete removes one value from the set stored under key. It is a
	// no-op if the pair is absent.
	Delete(key, value []byte) error
	// Get returns an iterator over every value stored under key.
	Get(key []byte) (Values, error)
	// Seek returns a Cursor positioned at the first key >= key.
	Seek(key []byte) (Cursor, error)
	// ForEach visits every key/value-set pair in key order.
	ForEach(fn func(key []byte, values Values) error) error
	// Close releases any resources held by the Multimap.
	Close() error
}

// newBitmapValues adapts a roaring.Bitmap's iterator to Values, used
// by both Multimap implementations when the index's value component
// is a single interned term id.
func newBitmapValues(bm *roaring.Bitmap) Values {
	return &rawBitmapValues{it: bm.Iterator()}
}

// uint32Iterator is the subset of roaring's iterator interface this
// package relies on.
type uint32Iterator interface {
	HasNext() bool
	Next() uint32
}

type rawBitmapValues struct {
	it uint32Iterator
}

func (v *rawBitmapValues) HasNext() bool { return v.it.HasNext() }
func (v *rawBitmapValues) Next() []byte  { return u32tob(v.it.Next()) }

// blobValues iterates a fixed slice of raw value encodings, used for
// indices whose value spans more than one node component (p2so) and
// therefore cannot be packed into a bitmap of ids.
type blobValues struct {
	vals [][]byte
	pos  int
}

func (v *blobValues) HasNext() bool { return v.pos < len(v.vals) }
func (v *blobValues) Next() []byte {
	b := v.vals[v.pos]
	v.pos++
	return b
}

// ---- BoltMultimap ----

// BoltMultimap is a Multimap backed by a single BoltDB bucket. When
// bitmapValued is true, values under a key are packed as a
// github.com/RoaringBitmap/roaring bitmap of uint32 ids; otherwise
// each Put appends a length-prefixed raw value and Delete removes the
// matching entry by byte comparison.
type BoltMultimap struct {
	db           *bolt.DB
	bucket       []byte
	bitmapValued bool
}

// OpenBoltMultimap returns a Multimap over the named bucket of db.
func OpenBoltMultimap(db *bolt.DB, bucket string, bitmapValued bool) (*BoltMultimap, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BoltMultimap{db: db, bucket: []byte(bucket), bitmapValued: bitmapValued}, nil
}

func (m *BoltMultimap) Put(key, value []byte) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(m.bucket)
		if m.bitmapValued {
			return putBitmapValue(bkt, key, btou32(value))
		}
		return putBlobValue(bkt, key, value)
	})
}

func putBitmapValue(bkt *bolt.Bucket, key []byte, id uint32) error {
	bm := roaring.NewBitmap()
	if cur := bkt.Get(key); cur != nil {
		if _, err := bm.ReadFrom(bytes.NewReader(cur)); err != nil {
			return err
		}
	}
	if !bm.CheckedAdd(id) {
		return nil
	}
	var buf bytes.Buffer
	if _, err := bm.WriteTo(&buf); err != nil {
		return err
	}
	return bkt.Put(key, buf.Bytes())
}

func putBlobValue(bkt *bolt.Bucket, key, value []byte) error {
	cur := bkt.Get(key)
	for _, v := range splitBlobs(cur) {
		if bytes.Equal(v, value) {
			return nil // already present
		}
	}
	return bkt.Put(key, appendBlob(cur, value))
}

func (m *BoltMultimap) Delete(key, value []byte) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(m.bucket)
		if m.bitmapValued {
			return deleteBitmapValue(bkt, key, btou32(value))
		}
		return deleteBlobValue(bkt, key, value)
	})
}

func deleteBitmapValue(bkt *bolt.Bucket, key []byte, id uint32) error {
	cur := bkt.Get(key)
	if cur == nil {
		return nil
	}
	bm := roaring.NewBitmap()
	if _, err := bm.ReadFrom(bytes.NewReader(cur)); err != nil {
		return err
	}
	if !bm.CheckedRemove(id) {
		return nil
	}
	if bm.GetCardinality() == 0 {
		return bkt.Delete(key)
	}
	var buf bytes.Buffer
	if _, err := bm.WriteTo(&buf); err != nil {
		return err
	}
	return bkt.Put(key, buf.Bytes())
}

func deleteBlobValue(bkt *bolt.Bucket, key, value []byte) error {
	cur := bkt.Get(key)
	if cur == nil {
		return nil
	}
	blobs := splitBlobs(cur)
	out := blobs[:0]
	for _, v := range blobs {
		if !bytes.Equal(v, value) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return bkt.Delete(key)
	}
	return bkt.Put(key, joinBlobs(out))
}

func (m *BoltMultimap) Get(key []byte) (Values, error) {
	var vals Values
	err := m.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(m.bucket)
		cur := bkt.Get(key)
		if cur == nil {
			vals = &blobValues{}
			return nil
		}
		if m.bitmapValued {
			bm := roaring.NewBitmap()
			if _, err := bm.ReadFrom(bytes.NewReader(cur)); err != nil {
				return err
			}
			vals = newBitmapValues(bm)
			return nil
		}
		vals = &blobValues{vals: splitBlobs(cur)}
		return nil
	})
	return vals, err
}

// boltCursor materializes bolt's live cursor into a snapshot slice so
// it can be consumed outside the view transaction that produced it.
type boltCursor struct {
	entries []struct{ k, v []byte }
	pos     int
}

func (c *boltCursor) Next() ([]byte, []byte, bool) {
	if c.pos >= len(c.entries) {
		return nil, nil, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e.k, e.v, true
}

func (m *BoltMultimap) Seek(key []byte) (Cursor, error) {
	bc := &boltCursor{}
	err := m.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(m.bucket).Cursor()
		for k, v := cur.Seek(key); k != nil; k, v = cur.Next() {
			kk := append([]byte(nil), k...)
			vv := append([]byte(nil), v...)
			bc.entries = append(bc.entries, struct{ k, v []byte }{kk, vv})
		}
		return nil
	})
	return bc, err
}

func (m *BoltMultimap) ForEach(fn func(key []byte, values Values) error) error {
	return m.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(m.bucket)
		return bkt.ForEach(func(k, v []byte) error {
			var vals Values
			if m.bitmapValued {
				bm := roaring.NewBitmap()
				if _, err := bm.ReadFrom(bytes.NewReader(v)); err != nil {
					return err
				}
				vals = newBitmapValues(bm)
			} else {
				vals = &blobValues{vals: splitBlobs(v)}
			}
			return fn(k, vals)
		})
	})
}

func (m *BoltMultimap) Close() error { return nil } // shared *bolt.DB closed by the owning Backend

// ---- MemMultimap ----

const memShards = 16

// MemMultimap is an in-process Multimap used for hash-type=mem
// databases, sharded across memShards buckets hashed with
// github.com/spaolacci/murmur3 to reduce lock contention under
// concurrent writers.
type MemMultimap struct {
	bitmapValued bool
	shards       [memShards]memShard
}

type memShard struct {
	mu   sync.RWMutex
	bmap map[string]*roaring.Bitmap   // used when bitmapValued
	blob map[string][][]byte          // used otherwise
}

// NewMemMultimap returns an empty, in-memory Multimap.
func NewMemMultimap(bitmapValued bool) *MemMultimap {
	mm := &MemMultimap{bitmapValued: bitmapValued}
	for i := range mm.shards {
		mm.shards[i].bmap = make(map[string]*roaring.Bitmap)
		mm.shards[i].blob = make(map[string][][]byte)
	}
	return mm
}

func (m *MemMultimap) shardFor(key []byte) *memShard {
	h := murmur3.Sum32(key)
	return &m.shards[h%memShards]
}

func (m *MemMultimap) Put(key, value []byte) error {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k := string(key)
	if m.bitmapValued {
		bm, ok := sh.bmap[k]
		if !ok {
			bm = roaring.NewBitmap()
			sh.bmap[k] = bm
		}
		bm.Add(btou32(value))
		return nil
	}
	for _, v := range sh.blob[k] {
		if bytes.Equal(v, value) {
			return nil
		}
	}
	sh.blob[k] = append(sh.blob[k], append([]byte(nil), value...))
	return nil
}

func (m *MemMultimap) Delete(key, value []byte) error {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k := string(key)
	if m.bitmapValued {
		if bm, ok := sh.bmap[k]; ok {
			bm.Remove(btou32(value))
			if bm.GetCardinality() == 0 {
				delete(sh.bmap, k)
			}
		}
		return nil
	}
	vals := sh.blob[k]
	for i, v := range vals {
		if bytes.Equal(v, value) {
			sh.blob[k] = append(vals[:i], vals[i+1:]...)
			if len(sh.blob[k]) == 0 {
				delete(sh.blob, k)
			}
			return nil
		}
	}
	return nil
}

func (m *MemMultimap) Get(key []byte) (Values, error) {
	sh := m.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	k := string(key)
	if m.bitmapValued {
		bm, ok := sh.bmap[k]
		if !ok {
			return &blobValues{}, nil
		}
		return newBitmapValues(bm.Clone()), nil
	}
	return &blobValues{vals: append([][]byte(nil), sh.blob[k]...)}, nil
}

func (m *MemMultimap) Seek(key []byte) (Cursor, error) {
	type entry struct{ k, v []byte }
	var all []entry
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		if m.bitmapValued {
			for k, bm := range sh.bmap {
				var buf bytes.Buffer
				if _, err := bm.WriteTo(&buf); err != nil {
					sh.mu.RUnlock()
					return nil, err
				}
				all = append(all, entry{[]byte(k), buf.Bytes()})
			}
		} else {
			for k, vs := range sh.blob {
				all = append(all, entry{[]byte(k), joinBlobs(vs)})
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool { return bytes.Compare(all[i].k, all[j].k) < 0 })

	start := sort.Search(len(all), func(i int) bool { return bytes.Compare(all[i].k, key) >= 0 })
	bc := &boltCursor{}
	for _, e := range all[start:] {
		bc.entries = append(bc.entries, struct{ k, v []byte }{e.k, e.v})
	}
	return bc, nil
}

func (m *MemMultimap) ForEach(fn func(key []byte, values Values) error) error {
	cur, err := m.Seek(nil)
	if err != nil {
		return err
	}
	for {
		k, v, ok := cur.Next()
		if !ok {
			return nil
		}
		var vals Values
		if m.bitmapValued {
			bm := roaring.NewBitmap()
			if _, err := bm.ReadFrom(bytes.NewReader(v)); err != nil {
				return err
			}
			vals = newBitmapValues(bm)
		} else {
			vals = &blobValues{vals: splitBlobs(v)}
		}
		if err := fn(k, vals); err != nil {
			return err
		}
	}
}

func (m *MemMultimap) Close() error { return nil }

// ---- shared byte helpers ----

func u32tob(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func btou32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// splitBlobs decodes a length-prefixed concatenation of values, the
// blob encoding used for multi-component-valued indices (p2so) where
// a roaring bitmap of single ids doesn't apply.
func splitBlobs(b []byte) [][]byte {
	var out [][]byte
	for len(b) >= 4 {
		n := btou32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			break
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}

func appendBlob(existing []byte, value []byte) []byte {
	out := append([]byte(nil), existing...)
	out = append(out, u32tob(uint32(len(value)))...)
	out = append(out, value...)
	return out
}

func joinBlobs(vs [][]byte) []byte {
	var out []byte
	for _, v := range vs {
		out = append(out, u32tob(uint32(len(v)))...)
		out = append(out, v...)
	}
	return out
}
