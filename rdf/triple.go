package rdf

import (
	"errors"
	"fmt"
)

// ErrInvalidTriple signals that a Triple's components violate the
// subject/predicate/object variant constraints (subject must be URI
// or Blank, predicate must be URI, object may be any Node).
var ErrInvalidTriple = errors.New("rdf: invalid triple")

// Triple represents a RDF statement: (subject, predicate, object). A
// Triple is complete iff all three components are present and
// satisfy the variant constraints; otherwise it is a pattern, valid
// only as query input, where a nil component matches anything.
type Triple struct {
	Subj Node
	Pred Node
	Obj  Node
}

// NewTriple validates and constructs a complete Triple.
func NewTriple(subj, pred, obj Node) (Triple, error) {
	t := Triple{Subj: subj, Pred: pred, Obj: obj}
	if !t.Complete() {
		return Triple{}, ErrInvalidTriple
	}
	return t, nil
}

// Complete reports whether t has all three components set and they
// satisfy the RDF variant constraints (subject: URI|Blank, predicate:
// URI, object: any Node).
func (t Triple) Complete() bool {
	if t.Subj == nil || t.Pred == nil || t.Obj == nil {
		return false
	}
	switch t.Subj.(type) {
	case URI, Blank:
	default:
		return false
	}
	if _, ok := t.Pred.(URI); !ok {
		return false
	}
	return true
}

// String returns an N-Triples serialization of the Triple.
func (t Triple) String() string {
	subj := termNTriples(t.Subj)
	pred := termNTriples(t.Pred)
	return fmt.Sprintf("%s %s %s .", subj, pred, literalOrNodeNTriples(t.Obj))
}

func termNTriples(n Node) string {
	switch v := n.(type) {
	case URI:
		return "<" + string(v) + ">"
	case Blank:
		return "_:" + string(v)
	default:
		return n.String()
	}
}

func literalOrNodeNTriples(n Node) string {
	switch v := n.(type) {
	case URI:
		return "<" + string(v) + ">"
	case Blank:
		return "_:" + string(v)
	case Literal:
		switch v.DataType() {
		case XSDstring:
			return fmt.Sprintf("%q", v.value)
		case RDFlangString:
			return fmt.Sprintf("%q@%s", v.value, v.language)
		case XSDboolean:
			return v.value
		default:
			return fmt.Sprintf("%q^^<%s>", v.value, v.datatype)
		}
	default:
		return n.String()
	}
}

// Match reports whether pattern matches candidate: every non-nil
// component of pattern must equal the corresponding component of
// candidate.
func Match(pattern, candidate Triple) bool {
	if pattern.Subj != nil && !Equal(pattern.Subj, candidate.Subj) {
		return false
	}
	if pattern.Pred != nil && !Equal(pattern.Pred, candidate.Pred) {
		return false
	}
	if pattern.Obj != nil && !Equal(pattern.Obj, candidate.Obj) {
		return false
	}
	return true
}

// Quad is a Triple extended with an optional context (named graph).
// Absent context (Context == nil) denotes the default/unnamed graph.
type Quad struct {
	Triple
	Context Node
}

// NewQuad constructs a Quad. ctx may be nil.
func NewQuad(t Triple, ctx Node) Quad {
	return Quad{Triple: t, Context: ctx}
}

// MatchContext reports whether ctxPattern matches ctx: a nil pattern
// matches any context (including an absent one); a non-nil pattern
// must be byte-equal to ctx.
func MatchContext(ctxPattern, ctx Node) bool {
	if ctxPattern == nil {
		return true
	}
	return Equal(ctxPattern, ctx)
}

// Statement is a mutable Triple builder, used by the parser adapter
// and backends that build a triple component-by-component instead of
// constructing it all at once.
type Statement struct {
	t Triple
}

// NewStatement returns an empty Statement builder.
func NewStatement() *Statement { return &Statement{} }

func (s *Statement) SetSubject(n Node)   { s.t.Subj = n }
func (s *Statement) SetPredicate(n Node) { s.t.Pred = n }
func (s *Statement) SetObject(n Node)    { s.t.Obj = n }
func (s *Statement) Subject() Node       { return s.t.Subj }
func (s *Statement) Predicate() Node     { return s.t.Pred }
func (s *Statement) Object() Node        { return s.t.Obj }
func (s *Statement) Clear()              { s.t = Triple{} }
func (s *Statement) Triple() Triple       { return s.t }

// Copy returns a new Statement with the same components.
func (s *Statement) Copy() *Statement {
	return &Statement{t: Triple{Subj: CopyNode(s.t.Subj), Pred: CopyNode(s.t.Pred), Obj: CopyNode(s.t.Obj)}}
}

// Equals reports whether s and other hold equal triples.
func (s *Statement) Equals(other *Statement) bool {
	return Equal(s.t.Subj, other.t.Subj) && Equal(s.t.Pred, other.t.Pred) && Equal(s.t.Obj, other.t.Obj)
}

// Match reports whether s, used as a pattern, matches candidate.
func (s *Statement) Match(candidate *Statement) bool {
	return Match(s.t, candidate.t)
}
