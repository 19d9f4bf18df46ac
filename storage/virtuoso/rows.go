package virtuoso

import (
	"context"
	"database/sql"

	"github.com/boutros/sopp/rdf"
)

// typedRowsStream adapts the 12-column SELECT query builds (three
// node components, each as id/lexical/typecode/langOrDatatypeCode)
// into a stream.Stream, resolving language and datatype codes through
// the backend's hLang/hType caches.
type typedRowsStream struct {
	rows *sql.Rows
	b    *Backend
	cur  rdf.Triple
	err  error
}

func newTypedRowsStream(rows *sql.Rows, b *Backend) *typedRowsStream {
	return &typedRowsStream{rows: rows, b: b}
}

type typedCol struct {
	id      sql.NullString
	lexical sql.NullString
	kind    sql.NullInt64
	code    sql.NullInt64
}

func (s *typedRowsStream) decode(c typedCol) rdf.Node {
	if !c.id.Valid && !c.lexical.Valid {
		return nil
	}
	switch c.kind.Int64 {
	case typeBlank:
		return rdf.NewBlank(c.lexical.String)
	case typeLiteral:
		if c.code.Valid && c.code.Int64 != 0 {
			if lang, err := s.b.languageForCode(context.Background(), int(c.code.Int64)); err == nil && lang != "" {
				return rdf.NewLangLiteral(c.lexical.String, lang)
			}
			if dt, err := s.b.datatypeForCode(context.Background(), int(c.code.Int64)); err == nil && dt != "" {
				lit, err := rdf.NewTypedLiteral(c.lexical.String, rdf.NewURI(dt))
				if err == nil {
					return lit
				}
			}
		}
		return rdf.NewLiteralValue(c.lexical.String)
	default:
		return rdf.NewURI(c.lexical.String)
	}
}

func (s *typedRowsStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}

	var subj, pred, obj typedCol
	dest := []interface{}{
		&subj.id, &subj.lexical, &subj.kind, &subj.code,
		&pred.id, &pred.lexical, &pred.kind, &pred.code,
		&obj.id, &obj.lexical, &obj.kind, &obj.code,
	}
	if err := s.rows.Scan(dest...); err != nil {
		s.err = err
		return false
	}
	s.cur = rdf.Triple{Subj: s.decode(subj), Pred: s.decode(pred), Obj: s.decode(obj)}
	return true
}

func (s *typedRowsStream) Triple() rdf.Triple { return s.cur }
func (s *typedRowsStream) Context() rdf.Node  { return nil }
func (s *typedRowsStream) Err() error         { return s.err }
func (s *typedRowsStream) Close() error       { return s.rows.Close() }

// languageForCode resolves a Virtuoso RDF_LANGUAGE row id to its
// language tag, consulting hLang before querying the server.
func (b *Backend) languageForCode(ctx context.Context, code int) (string, error) {
	b.mu.RLock()
	lang, ok := b.hLang[code]
	db := b.db
	b.mu.RUnlock()
	if ok {
		return lang, nil
	}
	if db == nil {
		return "", nil
	}
	row := db.QueryRowContext(ctx, "SPARQL SELECT RL_TWOBYTE FROM DB.DBA.RDF_LANGUAGE WHERE RL_ID = ?", code)
	if err := row.Scan(&lang); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	b.mu.Lock()
	b.hLang[code] = lang
	b.mu.Unlock()
	return lang, nil
}

// datatypeForCode resolves a Virtuoso RDF_DATATYPE row id to its
// datatype IRI, consulting hType before querying the server.
func (b *Backend) datatypeForCode(ctx context.Context, code int) (string, error) {
	b.mu.RLock()
	dt, ok := b.hType[code]
	db := b.db
	b.mu.RUnlock()
	if ok {
		return dt, nil
	}
	if db == nil {
		return "", nil
	}
	row := db.QueryRowContext(ctx, "SPARQL SELECT RDT_QNAME FROM DB.DBA.RDF_DATATYPE WHERE RDT_TWOBYTE = ?", code)
	if err := row.Scan(&dt); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	b.mu.Lock()
	b.hType[code] = dt
	b.mu.Unlock()
	return dt, nil
}
