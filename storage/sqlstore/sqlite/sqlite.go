// Package sqlite registers the "sqlite" storage backend: sqlstore's
// generic interned-node engine wired to mattn/go-sqlite3, with the
// two extra indices and the deferred-write queue spec.md calls for
// under concurrent readers.
package sqlite

import (
	"container/list"
	"context"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/storage/sqlstore"
	"github.com/boutros/sopp/storage/sqlstore/schema"
	"github.com/boutros/sopp/stream"
)

func init() {
	storage.Register("sqlite", func() storage.Backend { return New() })
}

type dialect struct{}

func (dialect) Name() string       { return "sqlite" }
func (dialect) DriverName() string { return "sqlite3" }
func (dialect) Placeholder(i int) string {
	return "?"
}
func (dialect) Schema() string { return schema.SQLite }

func (dialect) IsUniqueViolation(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isLocked(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	return ok && sqliteErr.Code == sqlite3.ErrLocked
}

// Backend is sqlstore.Backend plus the extra indices and deferred
// write queue SQLite needs under concurrent streaming readers:
// writes that hit SQLITE_LOCKED while a Stream is open are queued and
// drained once the last open Stream closes.
type Backend struct {
	*sqlstore.Backend

	inStream int32
	queue    *deferredQueue
}

// New returns an unopened SQLite backend.
func New() *Backend {
	return &Backend{Backend: sqlstore.New(dialect{}), queue: newDeferredQueue(1024)}
}

// Open opens the database and applies the SQLite-specific indices on
// top of the shared schema, and PRAGMA synchronous per opts.
func (b *Backend) Open(ctx context.Context, opts storage.Options) error {
	if err := b.Backend.Open(ctx, opts); err != nil {
		return err
	}
	if err := b.ensureIndices(ctx); err != nil {
		return err
	}
	return b.applySynchronous(ctx, opts["synchronous"])
}

func (b *Backend) ensureIndices(ctx context.Context) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS uriindex ON Resources(uri)",
		"CREATE INDEX IF NOT EXISTS spindex ON " + b.StatementsTable() + "(subject, predicate)",
	}
	for _, s := range stmts {
		if _, err := b.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) applySynchronous(ctx context.Context, mode string) error {
	switch mode {
	case "", "normal":
		mode = "NORMAL"
	case "off":
		mode = "OFF"
	case "full":
		mode = "FULL"
	default:
		mode = "NORMAL"
	}
	_, err := b.Exec(ctx, "PRAGMA synchronous="+mode)
	return err
}

// Add queues the write if the database is locked by a concurrent
// Stream and retries it once that Stream closes, instead of failing
// the caller's Add outright.
func (b *Backend) Add(ctx context.Context, q rdf.Quad) error {
	if atomic.LoadInt32(&b.inStream) > 0 {
		if err := b.Backend.Add(ctx, q); err != nil {
			if isLocked(err) {
				b.queue.push(func() error { return b.Backend.Add(ctx, q) })
				return nil
			}
			return err
		}
		return nil
	}
	return b.Backend.Add(ctx, q)
}

func (b *Backend) trackStream(s stream.Stream) stream.Stream {
	atomic.AddInt32(&b.inStream, 1)
	return &trackedStream{Stream: s, b: b}
}

type trackedStream struct {
	stream.Stream
	b *Backend
}

func (t *trackedStream) Close() error {
	if t.b == nil {
		return nil
	}
	err := t.Stream.Close()
	if atomic.AddInt32(&t.b.inStream, -1) == 0 {
		t.b.queue.drain()
	}
	t.b = nil
	return err
}

// Serialize wraps the embedded Backend's cursor so its Close drains
// any writes the deferred queue accumulated while it was open.
func (b *Backend) Serialize(ctx context.Context) (stream.Stream, error) {
	s, err := b.Backend.Serialize(ctx)
	if err != nil {
		return nil, err
	}
	return b.trackStream(s), nil
}

// Find wraps the embedded Backend's cursor the same way Serialize does.
func (b *Backend) Find(ctx context.Context, pattern rdf.Triple) (stream.Stream, error) {
	s, err := b.Backend.Find(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return b.trackStream(s), nil
}

// deferredQueue is a bounded FIFO of writes deferred because the
// database was locked by a concurrent reader Stream; it panics on
// overflow, matching spec.md's documented behavior for this case
// rather than silently dropping writes.
type deferredQueue struct {
	max int
	l   *list.List
}

func newDeferredQueue(max int) *deferredQueue {
	return &deferredQueue{max: max, l: list.New()}
}

func (q *deferredQueue) push(fn func() error) {
	if q.l.Len() >= q.max {
		panic("sqlstore/sqlite: deferred write queue overflow")
	}
	q.l.PushBack(fn)
}

func (q *deferredQueue) drain() {
	for e := q.l.Front(); e != nil; e = q.l.Front() {
		q.l.Remove(e)
		fn := e.Value.(func() error)
		fn() // best-effort: a write that fails again is dropped, matching SQLite's own WAL-retry semantics
	}
}
