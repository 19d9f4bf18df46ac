// Package virtuoso is a storage.Backend that speaks SPARQL over ODBC
// to an OpenLink Virtuoso server, via alexbrainman/odbc's
// database/sql driver. Every mutation binds its node components as
// parameters rather than concatenating SPARQL text.
package virtuoso

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/alexbrainman/odbc"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/stream"
)

func init() {
	storage.Register("virtuoso", func() storage.Backend { return New() })
}

// Backend implements storage.Backend, storage.ContextStore and
// storage.Queryable against a Virtuoso server reached through ODBC.
type Backend struct {
	mu sync.RWMutex
	db *sql.DB

	// hLang/hType cache Virtuoso's row-descriptor integer codes for
	// language tags and datatype IRIs, so repeated Find calls don't
	// re-resolve the same code through the server every time.
	hLang map[int]string
	hType map[int]string
}

// New returns an unopened Backend.
func New() *Backend {
	return &Backend{hLang: make(map[int]string), hType: make(map[int]string)}
}

// Open connects via sql.Open("odbc", opts["dsn"]).
func (b *Backend) Open(ctx context.Context, opts storage.Options) error {
	dsn := opts["dsn"]
	if dsn == "" {
		return fmt.Errorf("virtuoso: missing required option \"dsn\"")
	}
	db, err := sql.Open("odbc", dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	b.mu.Lock()
	b.db = db
	b.mu.Unlock()
	return nil
}

// Close closes the ODBC connection.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// typedParams returns the (typecode, lexical, lang-or-datatype-or-nil)
// triple bound for n in an INSERT/DELETE GRAPH statement.
func typedParams(n rdf.Node) (typecode int, lexical string, extra interface{}) {
	switch v := n.(type) {
	case rdf.URI:
		return typeURI, string(v), nil
	case rdf.Blank:
		return typeBlank, string(v), nil
	case rdf.Literal:
		if v.Lang() != "" {
			return typeLiteral, v.String(), v.Lang()
		}
		return typeLiteral, v.String(), string(v.DataType())
	default:
		return typeURI, n.String(), nil
	}
}

const (
	typeURI = iota
	typeBlank
	typeLiteral
)

// Add inserts (s, p, o) into the default graph.
func (b *Backend) Add(ctx context.Context, q rdf.Quad) error {
	return b.add(ctx, q)
}

// ContextAdd inserts t into named graph c.
func (b *Backend) ContextAdd(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	return b.add(ctx, rdf.Quad{Triple: t, Context: c})
}

func (b *Backend) add(ctx context.Context, q rdf.Quad) error {
	if !q.Complete() {
		return rdf.ErrInvalidTriple
	}
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("virtuoso: backend not open")
	}

	graph := defaultGraphIRI
	if q.Context != nil {
		graph = q.Context.String()
	}

	st, sl, se := typedParams(q.Subj)
	pt, pl, pe := typedParams(q.Pred)
	ot, ol, oe := typedParams(q.Obj)

	const stmt = `SPARQL INSERT INTO GRAPH iri(?) { rdf_box(?,?,?) rdf_box(?,?,?) rdf_box(?,?,?) }`
	_, err := db.ExecContext(ctx, stmt, graph, st, sl, se, pt, pl, pe, ot, ol, oe)
	return err
}

// defaultGraphIRI names the default (unnamed) graph when no context
// is given, since Virtuoso's GRAPH clause always takes an IRI.
const defaultGraphIRI = "http://github.com/boutros/sopp/default-graph"

// Remove deletes t from the default graph.
func (b *Backend) Remove(ctx context.Context, q rdf.Quad) error {
	return b.remove(ctx, q)
}

// ContextRemove deletes t from named graph c.
func (b *Backend) ContextRemove(ctx context.Context, c rdf.Node, t rdf.Triple) error {
	return b.remove(ctx, rdf.Quad{Triple: t, Context: c})
}

func (b *Backend) remove(ctx context.Context, q rdf.Quad) error {
	if !q.Complete() {
		return rdf.ErrInvalidTriple
	}
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("virtuoso: backend not open")
	}

	graph := defaultGraphIRI
	if q.Context != nil {
		graph = q.Context.String()
	}
	st, sl, se := typedParams(q.Subj)
	pt, pl, pe := typedParams(q.Pred)
	ot, ol, oe := typedParams(q.Obj)

	const stmt = `SPARQL DELETE FROM GRAPH iri(?) { rdf_box(?,?,?) rdf_box(?,?,?) rdf_box(?,?,?) }`
	_, err := db.ExecContext(ctx, stmt, graph, st, sl, se, pt, pl, pe, ot, ol, oe)
	return err
}

// ContextRemoveAll clears named graph c in one statement.
func (b *Backend) ContextRemoveAll(ctx context.Context, c rdf.Node) error {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("virtuoso: backend not open")
	}
	_, err := db.ExecContext(ctx, "SPARQL CLEAR GRAPH iri(?)", c.String())
	return err
}

// Contains, Size, Serialize, Find, ContextSerialize and FindInContext
// are all expressed in terms of query, which runs a SELECT and
// decodes Virtuoso's typed row descriptor back into rdf.Node values.

// Contains reports whether t exists in the default graph.
func (b *Backend) Contains(ctx context.Context, t rdf.Triple) (bool, error) {
	s, err := b.Find(ctx, t)
	if err != nil {
		return false, err
	}
	defer s.Close()
	has := s.Next(ctx)
	return has, s.Err()
}

// Size returns -1: Virtuoso exposes no cheap triple count over plain
// ODBC without a full COUNT(*) scan, which this backend does not
// attempt implicitly.
func (b *Backend) Size(ctx context.Context) (int64, error) {
	return -1, nil
}

// Serialize streams every statement in the default graph.
func (b *Backend) Serialize(ctx context.Context) (stream.Stream, error) {
	return b.find(ctx, rdf.Triple{}, "")
}

// Find streams every statement matching pattern in the default graph.
func (b *Backend) Find(ctx context.Context, pattern rdf.Triple) (stream.Stream, error) {
	return b.find(ctx, pattern, "")
}

// ContextSerialize streams every statement in named graph c.
func (b *Backend) ContextSerialize(ctx context.Context, c rdf.Node) (stream.Stream, error) {
	return b.find(ctx, rdf.Triple{}, c.String())
}

// FindInContext streams every statement matching pattern in named
// graph c.
func (b *Backend) FindInContext(ctx context.Context, pattern rdf.Triple, c rdf.Node) (stream.Stream, error) {
	return b.find(ctx, pattern, c.String())
}

func (b *Backend) find(ctx context.Context, pattern rdf.Triple, graph string) (stream.Stream, error) {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return nil, fmt.Errorf("virtuoso: backend not open")
	}

	where := "?g"
	args := []interface{}{}
	if graph != "" {
		where = "iri(?)"
		args = append(args, graph)
	}

	sBind, sArgs := bindVar("s", pattern.Subj)
	pBind, pArgs := bindVar("p", pattern.Pred)
	oBind, oArgs := bindVar("o", pattern.Obj)
	args = append(args, sArgs...)
	args = append(args, pArgs...)
	args = append(args, oArgs...)

	q := fmt.Sprintf(`SPARQL SELECT ?s ?slexical ?stype ?slang ?p ?plexical ?ptype ?plang ?o ?olexical ?otype ?olang`+
		` FROM GRAPH %s WHERE { %s %s %s }`, where, sBind, pBind, oBind)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return newTypedRowsStream(rows, b), nil
}

// bindVar returns the SPARQL triple-pattern fragment for one
// component: a bound IRI literal if n is non-nil, else a fresh
// variable name.
func bindVar(name string, n rdf.Node) (string, []interface{}) {
	if n == nil {
		return "?" + name, nil
	}
	return "iri(?)", []interface{}{n.String()}
}

// SupportsQuery reports whether q is a vsparql query this backend can
// execute directly.
func (b *Backend) SupportsQuery(q storage.Query) bool {
	return q.Language == "vsparql"
}

// QueryExecute runs q.Text as a raw SPARQL query and returns its
// result bindings.
func (b *Backend) QueryExecute(ctx context.Context, q storage.Query) (storage.QueryResults, error) {
	b.mu.RLock()
	db := b.db
	b.mu.RUnlock()
	if db == nil {
		return storage.QueryResults{}, fmt.Errorf("virtuoso: backend not open")
	}
	rows, err := db.QueryContext(ctx, "SPARQL "+q.Text)
	if err != nil {
		return storage.QueryResults{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return storage.QueryResults{}, err
	}
	res := storage.QueryResults{Bindings: cols}
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return storage.QueryResults{}, err
		}
		row := make([]rdf.Node, len(cols))
		for i, v := range raw {
			if v.Valid {
				row[i] = rdf.NewURI(v.String)
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
