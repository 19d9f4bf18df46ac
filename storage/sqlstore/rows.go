package sqlstore

import (
	"context"
	"database/sql"

	"github.com/boutros/sopp/rdf"
)

// rowsStream adapts the wide joined *sql.Rows produced by
// Backend.query into a stream.Stream, decoding each of the four
// node-shaped column groups (id, uri, name, value, language,
// datatype) back into an rdf.Node.
type rowsStream struct {
	rows    *sql.Rows
	release func()
	cur     rdf.Quad
	err     error
}

func newRowsStream(rows *sql.Rows, release func()) *rowsStream {
	return &rowsStream{rows: rows, release: release}
}

// col holds one nodeCols group's scan destinations.
type col struct {
	id       sql.NullInt64
	uri      sql.NullString
	name     sql.NullString
	value    sql.NullString
	language sql.NullString
	datatype sql.NullString
}

func (c col) decode() rdf.Node {
	switch {
	case c.uri.Valid:
		return rdf.NewURI(c.uri.String)
	case c.name.Valid:
		return rdf.NewBlank(c.name.String)
	case c.value.Valid:
		dt := rdf.NewURI(c.datatype.String)
		if c.language.Valid {
			return rdf.NewLangLiteral(c.value.String, c.language.String)
		}
		lit, err := rdf.NewTypedLiteral(c.value.String, dt)
		if err != nil {
			return rdf.NewLiteralValue(c.value.String)
		}
		return lit
	default:
		return nil
	}
}

func (s *rowsStream) Next(ctx context.Context) bool {
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

	var subj, pred, obj, c4 col
	dest := make([]interface{}, 0, 24)
	for _, c := range []*col{&subj, &pred, &obj, &c4} {
		dest = append(dest, &c.id, &c.uri, &c.name, &c.value, &c.language, &c.datatype)
	}
	if err := s.rows.Scan(dest...); err != nil {
		s.err = err
		return false
	}

	t, err := rdf.NewTriple(subj.decode(), pred.decode(), obj.decode())
	if err != nil {
		s.err = err
		return false
	}
	s.cur = rdf.Quad{Triple: t, Context: c4.decode()}
	return true
}

func (s *rowsStream) Triple() rdf.Triple { return s.cur.Triple }
func (s *rowsStream) Context() rdf.Node  { return s.cur.Context }
func (s *rowsStream) Err() error         { return s.err }

func (s *rowsStream) Close() error {
	err := s.rows.Close()
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return err
}
