package ttl

import (
	"fmt"
	"io"

	"github.com/boutros/sopp/rdf"
)

// Decoder is a streaming decoder for Turtle/N-Triples, used by the
// parser adapter to feed a Model's Load one Triple at a time.
type Decoder struct {
	scanner *scanner

	// state
	base     string             // base URI
	ns       map[string]rdf.URI // prefixes
	tr       rdf.Triple         // parsed triple to be returned
	keepSubj bool               // keep subject in next call to Decode()
	keepPred bool               // keep predicate in next call to Decode()

	// Skolemize turns a blank node identifier into a URI, if set. When
	// nil, blank nodes decode as rdf.Blank values.
	Skolemize func(s string) rdf.URI

	// Base is stored for callers but not applied: URIs decode exactly
	// as written, and @base directives are not recognised.
	Base rdf.URI
}

// NewDecoder returns a new Decoder over the given stream.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{scanner: newScanner(r)}
}

// Decode returns the next Triple in the input stream, or an error. The
// error io.EOF signifies the end of the stream.
func (d *Decoder) Decode() (rdf.Triple, error) {
	if !d.keepSubj {
		if err := d.parseSubject(); err != nil {
			return d.tr, err
		}
	}

	if !d.keepPred {
		if err := d.parsePredicate(); err != nil {
			return d.tr, err
		}
	}

	if err := d.parseObject(); err != nil {
		return d.tr, err
	}

	return d.tr, nil
}

func (d *Decoder) parseSubject() error {
	tok := d.scanner.Scan()
	for tok.Type == tokenEOL {
		tok = d.scanner.Scan()
	}
	switch tok.Type {
	case tokenURI:
		d.tr.Subj = rdf.NewURI(tok.Text)
	case tokenBNode:
		d.tr.Subj = d.blankOrSkolem(tok.Text)
	case tokenEOF:
		return io.EOF
	default:
		return fmt.Errorf("%d:%d expected URI or blank node, got %q (%s)",
			d.scanner.Row, d.scanner.Col, tok.Text, tok.Type)
	}
	return nil
}

func (d *Decoder) parsePredicate() error {
	tok := d.scanner.Scan()
	switch tok.Type {
	case tokenURI:
		d.tr.Pred = rdf.NewURI(tok.Text)
	case tokenEOF:
		return io.EOF
	default:
		return fmt.Errorf("%d:%d expected predicate URI, got %q (%s)",
			d.scanner.Row, d.scanner.Col, tok.Text, tok.Type)
	}
	return nil
}

func (d *Decoder) blankOrSkolem(id string) rdf.Node {
	if d.Skolemize != nil {
		return d.Skolemize(id)
	}
	return rdf.NewBlank(id)
}

func (d *Decoder) parseObject() error {
	tok := d.scanner.Scan()
	switch tok.Type {
	case tokenURI:
		d.tr.Obj = rdf.NewURI(tok.Text)
	case tokenBNode:
		d.tr.Obj = d.blankOrSkolem(tok.Text)
	case tokenLiteral:
		return d.parseLiteralObject(tok.Text)
	case tokenEOF:
		return io.EOF
	default:
		return fmt.Errorf("%d:%d expected object, got %q (%s)",
			d.scanner.Row, d.scanner.Col, tok.Text, tok.Type)
	}

	return d.parseTerminator()
}

// parseLiteralObject parses everything that may follow a literal's
// lexical form: a language tag, a datatype marker, or none at all.
func (d *Decoder) parseLiteralObject(lexical string) error {
	next := d.scanner.Scan()
	switch next.Type {
	case tokenLangTag:
		lit, err := rdf.NewLiteral(lexical, next.Text, false)
		if err != nil {
			return err
		}
		d.tr.Obj = lit
		return d.parseTerminator()
	case tokenTypeMarker:
		dt := d.scanner.Scan()
		if dt.Type != tokenURI {
			if dt.Type == tokenEOF {
				return io.EOF
			}
			return fmt.Errorf("%d:%d expected datatype URI, got %q (%s)",
				d.scanner.Row, d.scanner.Col, dt.Text, dt.Type)
		}
		lit, err := rdf.NewTypedLiteral(lexical, rdf.NewURI(dt.Text))
		if err != nil {
			return err
		}
		d.tr.Obj = lit
		return d.parseTerminator()
	case tokenDot:
		lit, err := rdf.NewLiteral(lexical, "", false)
		if err != nil {
			return err
		}
		d.tr.Obj = lit
		d.keepSubj, d.keepPred = false, false
		return nil
	case tokenSemicolon:
		lit, err := rdf.NewLiteral(lexical, "", false)
		if err != nil {
			return err
		}
		d.tr.Obj = lit
		d.keepSubj, d.keepPred = true, false
		return nil
	case tokenComma:
		lit, err := rdf.NewLiteral(lexical, "", false)
		if err != nil {
			return err
		}
		d.tr.Obj = lit
		d.keepSubj, d.keepPred = true, true
		return nil
	case tokenEOF:
		return io.EOF
	default:
		return fmt.Errorf("%d:%d expected datatype, dot, semicolon or comma, got %q (%s)",
			d.scanner.Row, d.scanner.Col, next.Text, next.Type)
	}
}

// parseTerminator consumes the token ending a triple: a dot closes
// the statement, a semicolon keeps the subject for a new predicate, a
// comma keeps both subject and predicate for a new object.
func (d *Decoder) parseTerminator() error {
	tok := d.scanner.Scan()
	switch tok.Type {
	case tokenDot:
		d.keepSubj, d.keepPred = false, false
		return nil
	case tokenSemicolon:
		d.keepSubj, d.keepPred = true, false
		return nil
	case tokenComma:
		d.keepSubj, d.keepPred = true, true
		return nil
	case tokenEOF:
		return io.EOF
	default:
		return fmt.Errorf("%d:%d expected dot, semicolon or comma, got %q (%s)",
			d.scanner.Row, d.scanner.Col, tok.Text, tok.Type)
	}
}

// DecodeAll parses the entire stream and returns the triples as a Graph.
func (d *Decoder) DecodeAll() (*rdf.Graph, error) {
	g := rdf.NewGraph()
	for {
		tr, err := d.Decode()
		if err == io.EOF {
			return g, nil
		}
		if err != nil {
			return g, err
		}
		g.Insert(tr)
	}
}
