// Package sqlstore is a storage.Backend over database/sql: terms are
// interned by content-addressed id (NodeID) into Resources/Bnodes/
// Literals tables, and one Statements_<model> table per open graph
// holds (subject, predicate, object, context) id rows. SQLite,
// PostgreSQL and MySQL each plug in as a Dialect from their own
// subpackage; this package holds everything dialect-independent.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/stream"
)

// Backend implements storage.Backend (plus Transactional and
// ContextStore) against any Dialect.
type Backend struct {
	dialect Dialect

	mu    sync.Mutex
	db    *sql.DB
	pool  *pool
	tx    *sql.Tx
	model string
	table string
}

// New returns a Backend bound to dialect. Dialect subpackages call
// this from the factory they register with storage.Register.
func New(dialect Dialect) *Backend {
	return &Backend{dialect: dialect}
}

// StatementsTable returns the name of this instance's
// Statements_<model> table, for dialect subpackages that need to
// apply extra per-table indices after Open.
func (b *Backend) StatementsTable() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table
}

// Open parses opts["dsn"] and opts["model"] (default "default"),
// opens a database/sql.DB via the dialect's driver, and ensures the
// shared schema plus this model's Statements_<model> table exist.
func (b *Backend) Open(ctx context.Context, opts storage.Options) error {
	dsn := opts["dsn"]
	if dsn == "" {
		return fmt.Errorf("sqlstore: missing required option \"dsn\"")
	}
	model := opts["model"]
	if model == "" {
		model = "default"
	}

	db, err := sql.Open(b.dialect.DriverName(), dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	b.mu.Lock()
	b.db = db
	b.pool = newPool(db)
	b.model = model
	b.table = "Statements_" + sanitizeIdent(model)
	b.mu.Unlock()

	if err := b.ensureSchema(ctx); err != nil {
		db.Close()
		return err
	}
	return nil
}

// sanitizeIdent keeps a model name usable as a bare SQL identifier
// suffix: anything but letters, digits and underscore is dropped.
func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(b.dialect.Schema()) {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: applying shared schema: %w", err)
		}
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + b.table + `(
  subject BIGINT NOT NULL,
  predicate BIGINT NOT NULL,
  object BIGINT NOT NULL,
  context BIGINT
)`
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: creating %s: %w", b.table, err)
	}
	if _, err := b.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO Models (name) VALUES (%s)", b.dialect.Placeholder(1)), b.model); err != nil {
		if !b.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("sqlstore: registering model %q: %w", b.model, err)
		}
	}
	return nil
}

// Exec runs a raw statement against the database, for dialect
// subpackages that need to apply extra indices or PRAGMAs on top of
// the shared schema.
func (b *Backend) Exec(ctx context.Context, stmt string, args ...interface{}) (sql.Result, error) {
	h, release, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return h.ExecContext(ctx, stmt, args...)
}

func splitStatements(schema string) []string {
	var out []string
	for _, s := range strings.Split(schema, ";") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Close rolls back any open transaction and releases the pool and
// underlying *sql.DB.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		b.tx.Rollback()
		b.tx = nil
	}
	if b.pool != nil {
		b.pool.close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// execer is whatever can run a query: a pooled *sql.Conn or the
// pinned transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (b *Backend) handle(ctx context.Context) (execer, func(), error) {
	b.mu.Lock()
	tx := b.tx
	b.mu.Unlock()
	if tx != nil {
		return tx, func() {}, nil
	}
	conn, release, err := b.pool.getHandle(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, release, nil
}

// termTable returns the table name a node of n's kind interns into.
func termTable(n rdf.Node) string {
	switch n.(type) {
	case rdf.URI:
		return "Resources"
	case rdf.Blank:
		return "Bnodes"
	case rdf.Literal:
		return "Literals"
	default:
		return "Resources"
	}
}

// internNode assigns n its content-addressed NodeID, inserting it
// into its term table if not already present (tolerating the
// dialect's own unique-violation error on a concurrent duplicate
// insert).
func (b *Backend) internNode(ctx context.Context, n rdf.Node) (NodeID, error) {
	id := IDFor(n)
	h, release, err := b.handle(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var q string
	var args []interface{}
	switch v := n.(type) {
	case rdf.URI:
		q = fmt.Sprintf("INSERT INTO Resources (id, uri) VALUES (%s, %s)",
			b.dialect.Placeholder(1), b.dialect.Placeholder(2))
		args = []interface{}{int64(id), string(v)}
	case rdf.Blank:
		q = fmt.Sprintf("INSERT INTO Bnodes (id, name) VALUES (%s, %s)",
			b.dialect.Placeholder(1), b.dialect.Placeholder(2))
		args = []interface{}{int64(id), string(v)}
	case rdf.Literal:
		q = fmt.Sprintf("INSERT INTO Literals (id, value, language, datatype) VALUES (%s, %s, %s, %s)",
			b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3), b.dialect.Placeholder(4))
		args = []interface{}{int64(id), v.String(), nullableString(v.Lang()), string(v.DataType())}
	default:
		return 0, fmt.Errorf("sqlstore: unsupported node type %T", n)
	}

	if _, err := h.ExecContext(ctx, q, args...); err != nil {
		if b.dialect.IsUniqueViolation(err) {
			return id, nil
		}
		return 0, err
	}
	return id, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// findNodeID reports whether n is already interned, without
// inserting it. A miss lets Find/Contains short-circuit to an empty
// result instead of running a join that would return zero rows.
func (b *Backend) findNodeID(ctx context.Context, n rdf.Node) (NodeID, bool, error) {
	id := IDFor(n)
	h, release, err := b.handle(ctx)
	if err != nil {
		return 0, false, err
	}
	defer release()

	table := termTable(n)
	row := h.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE id = %s", table, b.dialect.Placeholder(1)), int64(id))
	var got int64
	if err := row.Scan(&got); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// Add interns s, p, o (and context, if any) and inserts one row into
// the model's statement table.
func (b *Backend) Add(ctx context.Context, q rdf.Quad) error {
	if !q.Complete() {
		return rdf.ErrInvalidTriple
	}
	sid, err := b.internNode(ctx, q.Subj)
	if err != nil {
		return err
	}
	pid, err := b.internNode(ctx, q.Pred)
	if err != nil {
		return err
	}
	oid, err := b.internNode(ctx, q.Obj)
	if err != nil {
		return err
	}
	var cid interface{}
	if q.Context != nil {
		id, err := b.internNode(ctx, q.Context)
		if err != nil {
			return err
		}
		cid = int64(id)
	}

	h, release, err := b.handle(ctx)
	if err != nil {
		return err
	}
	defer release()

	ins := fmt.Sprintf("INSERT INTO %s (subject, predicate, object, context) VALUES (%s, %s, %s, %s)",
		b.table, b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3), b.dialect.Placeholder(4))
	_, err = h.ExecContext(ctx, ins, int64(sid), int64(pid), int64(oid), cid)
	return err
}

// Remove deletes the row matching q's interned ids exactly. A no-op
// (not an error) if any of q's components was never interned.
func (b *Backend) Remove(ctx context.Context, q rdf.Quad) error {
	if !q.Complete() {
		return rdf.ErrInvalidTriple
	}
	sid, ok, err := b.findNodeID(ctx, q.Subj)
	if err != nil || !ok {
		return err
	}
	pid, ok, err := b.findNodeID(ctx, q.Pred)
	if err != nil || !ok {
		return err
	}
	oid, ok, err := b.findNodeID(ctx, q.Obj)
	if err != nil || !ok {
		return err
	}

	h, release, err := b.handle(ctx)
	if err != nil {
		return err
	}
	defer release()

	where := fmt.Sprintf("subject = %s AND predicate = %s AND object = %s",
		b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3))
	args := []interface{}{int64(sid), int64(pid), int64(oid)}
	if q.Context != nil {
		cid, ok, err := b.findNodeID(ctx, q.Context)
		if err != nil || !ok {
			return err
		}
		where += fmt.Sprintf(" AND context = %s", b.dialect.Placeholder(4))
		args = append(args, int64(cid))
	}
	_, err = h.ExecContext(ctx, "DELETE FROM "+b.table+" WHERE "+where, args...)
	return err
}

// Contains reports whether t exists in the model under any context
// (the context column is not filtered, matching
// storage.Backend.Contains's triple-only contract).
func (b *Backend) Contains(ctx context.Context, t rdf.Triple) (bool, error) {
	if !t.Complete() {
		return false, rdf.ErrInvalidTriple
	}
	sid, ok, err := b.findNodeID(ctx, t.Subj)
	if err != nil || !ok {
		return false, err
	}
	pid, ok, err := b.findNodeID(ctx, t.Pred)
	if err != nil || !ok {
		return false, err
	}
	oid, ok, err := b.findNodeID(ctx, t.Obj)
	if err != nil || !ok {
		return false, err
	}

	h, release, err := b.handle(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	q := fmt.Sprintf("SELECT 1 FROM %s WHERE subject = %s AND predicate = %s AND object = %s",
		b.table, b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3))
	row := h.QueryRowContext(ctx, q, int64(sid), int64(pid), int64(oid))
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Size returns the row count of the model's statement table.
func (b *Backend) Size(ctx context.Context) (int64, error) {
	h, release, err := b.handle(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	row := h.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+b.table)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// nodeCols is the set of statement columns decoded back into
// rdf.Node values by joinedSelect.
var nodeCols = []string{"subject", "predicate", "object", "context"}

// joinedSelect builds a SELECT over the model's statement table, left
// joined against Resources/Bnodes/Literals once per nodeCols entry so
// every component can be recovered as a string in one round trip.
// where is an optional filter clause (already built by the caller).
func (b *Backend) joinedSelect(where string) string {
	var sel, from strings.Builder
	from.WriteString(b.table + " t")
	for _, c := range nodeCols {
		sel.WriteString(fmt.Sprintf("t.%s, r_%s.uri, b_%s.name, l_%s.value, l_%s.language, l_%s.datatype, ",
			c, c, c, c, c, c))
		from.WriteString(fmt.Sprintf(
			" LEFT JOIN Resources r_%s ON r_%s.id = t.%s"+
				" LEFT JOIN Bnodes b_%s ON b_%s.id = t.%s"+
				" LEFT JOIN Literals l_%s ON l_%s.id = t.%s",
			c, c, c, c, c, c, c, c, c))
	}
	cols := strings.TrimSuffix(sel.String(), ", ")
	q := "SELECT " + cols + " FROM " + from.String()
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

// Serialize streams every statement in the model.
func (b *Backend) Serialize(ctx context.Context) (stream.Stream, error) {
	return b.query(ctx, "", nil)
}

// Find streams every statement matching pattern.
func (b *Backend) Find(ctx context.Context, pattern rdf.Triple) (stream.Stream, error) {
	bound := []struct {
		col  string
		node rdf.Node
	}{
		{"subject", pattern.Subj},
		{"predicate", pattern.Pred},
		{"object", pattern.Obj},
	}

	var conds []string
	var args []interface{}
	n := 1
	for _, c := range bound {
		if c.node == nil {
			continue
		}
		id, ok, err := b.findNodeID(ctx, c.node)
		if err != nil {
			return nil, err
		}
		if !ok {
			return stream.NewSliceStream(nil), nil
		}
		conds = append(conds, fmt.Sprintf("t.%s = %s", c.col, b.dialect.Placeholder(n)))
		args = append(args, int64(id))
		n++
	}
	return b.query(ctx, strings.Join(conds, " AND "), args)
}

func (b *Backend) query(ctx context.Context, where string, args []interface{}) (stream.Stream, error) {
	h, release, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	q := b.joinedSelect(where)
	rows, err := h.QueryContext(ctx, q, args...)
	if err != nil {
		release()
		return nil, err
	}
	return newRowsStream(rows, release), nil
}
