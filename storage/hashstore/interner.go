package hashstore

import (
	"errors"
	"sync"

	bolt "github.com/boltdb/bolt"
)

// MaxTerms is the maximum number of unique RDF terms a hashstore
// instance can hold; ids are the domain of the roaring bitmaps used
// as index values, which is bounded to uint32.
const MaxTerms = 4294967295

// ErrNotFound signals that a term or id has no entry in the interner.
var ErrNotFound = errors.New("hashstore: not found")

// ErrDBFull is returned when MaxTerms unique terms are already interned.
var ErrDBFull = errors.New("hashstore: database full: term limit reached")

var (
	bucketTerms    = []byte("terms")  // uint32 id -> encoded term
	bucketIdxTerms = []byte("iterms") // encoded term -> uint32 id
)

// interner maps encoded rdf.Node byte strings to dense uint32 ids and
// back, so every index can store the compact id instead of repeating
// the full node encoding in every key and value it appears in.
type interner interface {
	intern(encoded []byte) (id uint32, err error)
	idFor(encoded []byte) (id uint32, err error) // ErrNotFound if absent
	term(id uint32) (encoded []byte, err error)
	remove(id uint32) error
	numTerms() int
	close() error
}

// boltInterner interns terms in the same bolt.DB the index buckets
// live in, using BoltDB's NextSequence for id allocation.
type boltInterner struct {
	db *bolt.DB
}

func newBoltInterner(db *bolt.DB) (*boltInterner, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketTerms, bucketIdxTerms} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &boltInterner{db: db}, nil
}

func (in *boltInterner) idFor(encoded []byte) (uint32, error) {
	var id uint32
	err := in.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdxTerms).Get(encoded)
		if b == nil {
			return ErrNotFound
		}
		id = btou32(b)
		return nil
	})
	return id, err
}

func (in *boltInterner) intern(encoded []byte) (uint32, error) {
	if id, err := in.idFor(encoded); err == nil {
		return id, nil
	} else if err != ErrNotFound {
		return 0, err
	}

	var id uint32
	err := in.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketTerms)
		n, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		if n > MaxTerms {
			return ErrDBFull
		}
		id = uint32(n)
		idb := u32tob(id)
		if err := bkt.Put(idb, encoded); err != nil {
			return err
		}
		return tx.Bucket(bucketIdxTerms).Put(encoded, idb)
	})
	return id, err
}

func (in *boltInterner) term(id uint32) ([]byte, error) {
	var b []byte
	err := in.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTerms).Get(u32tob(id))
		if v == nil {
			return ErrNotFound
		}
		b = append([]byte(nil), v...)
		return nil
	})
	return b, err
}

func (in *boltInterner) remove(id uint32) error {
	return in.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketTerms)
		term := bkt.Get(u32tob(id))
		if term == nil {
			return ErrNotFound
		}
		if err := bkt.Delete(u32tob(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketIdxTerms).Delete(term)
	})
}

func (in *boltInterner) numTerms() int {
	n := 0
	in.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketTerms).Stats().KeyN
		return nil
	})
	return n
}

func (in *boltInterner) close() error { return nil } // shared *bolt.DB closed by the owning Backend

// memInterner is the hash-type=mem counterpart, guarded by a mutex
// since MemMultimap callers may intern concurrently.
type memInterner struct {
	mu      sync.RWMutex
	next    uint32
	byID    map[uint32][]byte
	byTerm  map[string]uint32
}

func newMemInterner() *memInterner {
	return &memInterner{byID: make(map[uint32][]byte), byTerm: make(map[string]uint32)}
}

func (in *memInterner) idFor(encoded []byte) (uint32, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byTerm[string(encoded)]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (in *memInterner) intern(encoded []byte) (uint32, error) {
	if id, err := in.idFor(encoded); err == nil {
		return id, nil
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byTerm[string(encoded)]; ok {
		return id, nil
	}
	if in.next == MaxTerms {
		return 0, ErrDBFull
	}
	id := in.next
	in.next++
	cp := append([]byte(nil), encoded...)
	in.byID[id] = cp
	in.byTerm[string(cp)] = id
	return id, nil
}

func (in *memInterner) term(id uint32) ([]byte, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	b, ok := in.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (in *memInterner) remove(id uint32) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	b, ok := in.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(in.byID, id)
	delete(in.byTerm, string(b))
	return nil
}

func (in *memInterner) numTerms() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.byID)
}

func (in *memInterner) close() error { return nil }
