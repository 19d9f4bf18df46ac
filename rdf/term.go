// Package rdf defines the node, triple and quad model shared by every
// storage backend and by the model façade: the immutable RDF term
// types (IRI, Blank, Literal), the mutable Statement builder, and the
// in-memory Graph container used for batched loads and dumps.
package rdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Exported errors for node construction.
var (
	ErrEmptyURI           = errors.New("rdf: URI cannot be empty")
	ErrConflictingLiteral = errors.New("rdf: literal cannot have both a language tag and a datatype")
	ErrXMLLiteralLanguage = errors.New("rdf: XML literal cannot have a language tag")
)

// Commonly used datatype and vocabulary URIs.
var (
	RDFtype          = URI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	RDFlangString    = URI("http://www.w3.org/1999/02/22-rdf-syntax-ns#langString")
	RDFXMLLiteral    = URI("http://www.w3.org/1999/02/22-rdf-syntax-ns#XMLLiteral")
	XSDboolean       = URI("http://www.w3.org/2001/XMLSchema#boolean")
	XSDbyte          = URI("http://www.w3.org/2001/XMLSchema#byte")
	XSDint           = URI("http://www.w3.org/2001/XMLSchema#int")
	XSDshort         = URI("http://www.w3.org/2001/XMLSchema#short")
	XSDlong          = URI("http://www.w3.org/2001/XMLSchema#long")
	XSDinteger       = URI("http://www.w3.org/2001/XMLSchema#integer")
	XSDstring        = URI("http://www.w3.org/2001/XMLSchema#string")
	XSDunsignedShort = URI("http://www.w3.org/2001/XMLSchema#unsignedShort")
	XSDunsignedInt   = URI("http://www.w3.org/2001/XMLSchema#unsignedInt")
	XSDunsignedLong  = URI("http://www.w3.org/2001/XMLSchema#unsignedLong")
	XSDunsignedByte  = URI("http://www.w3.org/2001/XMLSchema#unsignedByte")
	XSDfloat         = URI("http://www.w3.org/2001/XMLSchema#float")
	XSDdouble        = URI("http://www.w3.org/2001/XMLSchema#double")
	XSDdateTimeStamp = URI("http://www.w3.org/2001/XMLSchema#dateTimeStamp")
)

// Node is the tagged union of the three RDF term variants: URI, Blank
// and Literal. It is implemented only by types in this package; the
// unexported validAsNode method hinders implementations elsewhere.
type Node interface {
	// String returns a string representation suitable for N-Triples
	// serialization.
	String() string

	validAsNode()
}

// URI represents an absolute IRI reference. Equality is structural:
// two URIs are equal iff byte-equal. No RFC-3986 normalization is
// performed.
type URI string

func (u URI) String() string { return string(u) }
func (u URI) validAsNode()   {}
func (u URI) validAsTerm()   {} // not required by Node or its Term alias (below)

// NewURI returns a new URI. The following characters are stripped:
// <>"{}|^`\ - as well as characters in the range 0x00-0x20. No other
// validation is performed.
func NewURI(s string) URI {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\':
		default:
			if ch > '\x20' {
				b.WriteRune(ch)
			}
		}
	}
	return URI(b.String())
}

// NewIRI is NewURI with a fallible signature: it rejects an empty
// string.
func NewIRI(s string) (URI, error) {
	if s == "" {
		return "", ErrEmptyURI
	}
	return NewURI(s), nil
}

// NewIRICounted is NewIRI over a byte slice, for callers that already
// hold a counted buffer.
func NewIRICounted(b []byte) (URI, error) {
	return NewIRI(string(b))
}

// Resolve resolves the URI against the given base URI, and returns
// the new, absolute URI. If the URI is already absolute, it is
// returned unmodified.
func (u URI) Resolve(base URI) URI {
	if strings.HasPrefix(string(u), "http://") || strings.HasPrefix(string(u), "https://") || base == "" {
		return u
	}
	r, _ := utf8.DecodeRuneInString(string(u))
	switch r {
	case '/':
		return URI(strings.TrimSuffix(string(base), "/") + string(u))
	case '#':
		return URI(strings.TrimSuffix(string(base), "#") + string(u))
	default:
		r, _ := utf8.DecodeLastRuneInString(string(base))
		switch r {
		case '/', '#':
			return URI(string(base) + string(u))
		default:
			return URI(string(base) + "/" + string(u))
		}
	}
}

// blankCounter generates a process-wide monotonic suffix for
// synthesized blank node identifiers.
var blankCounter uint64

// Blank is a blank node identifier, unique within the process. It
// carries no cross-graph semantics: two loads of the same syntactic
// source may, and by default do, produce disjoint blank identifiers.
type Blank string

func (b Blank) String() string { return "_:" + string(b) }
func (b Blank) validAsNode()   {}

// NewBlank returns a Blank with the given id, or, if id is empty, a
// freshly generated opaque id combining a monotonic counter with a
// random component so identifiers stay distinct across process
// restarts.
func NewBlank(id string) Blank {
	if id != "" {
		return Blank(id)
	}
	n := atomic.AddUint64(&blankCounter, 1)
	return Blank(fmt.Sprintf("b%d%s", n, uuid.New().String()[:8]))
}

// Literal represents a literal value node: a lexical form, an
// optional language tag and an optional datatype. language and
// datatype are mutually exclusive unless datatype is rdf:langString.
type Literal struct {
	value    string
	language string
	datatype URI
}

func (l Literal) validAsNode() {}
func (l Literal) validAsTerm() {}

// NewLiteralValue returns a new Literal with a datatype inferred from
// the type of the given value, according to the following table:
//
//	Go type       | Literal datatype
//	--------------|-----------------
//	bool          | xsd:boolean
//	int           | xsd:int/xsd:long
//	int8          | xsd:byte
//	int16         | xsd:short
//	int32/rune    | xsd:int
//	int64         | xsd:long
//	uint          | xsd:unsignedInt/xsd:unsignedLong
//	uint8/byte    | xsd:unsignedByte
//	uint16        | xsd:unsignedShort
//	uint32        | xsd:unsignedInt
//	uint64        | xsd:unsignedLong
//	float32       | xsd:float
//	float64       | xsd:double
//	string        | xsd:string
//	time.Time     | xsd:dateTimeStamp
//
// Any other type is given the type xsd:string and the value of
// fmt.Sprintf("%#v", v).
func NewLiteralValue(v interface{}) Literal {
	switch t := v.(type) {
	case bool:
		return Literal{value: canonicalizeBoolean(strconv.FormatBool(t)), datatype: XSDboolean}
	case int:
		if strconv.IntSize == 32 {
			return Literal{value: strconv.FormatInt(int64(t), 10), datatype: XSDint}
		}
		return Literal{value: strconv.FormatInt(int64(t), 10), datatype: XSDlong}
	case int8:
		return Literal{value: strconv.FormatInt(int64(t), 10), datatype: XSDbyte}
	case int16:
		return Literal{value: strconv.FormatInt(int64(t), 10), datatype: XSDshort}
	case int32:
		return Literal{value: strconv.FormatInt(int64(t), 10), datatype: XSDint}
	case int64:
		return Literal{value: strconv.FormatInt(t, 10), datatype: XSDlong}
	case uint:
		if strconv.IntSize == 32 {
			return Literal{value: strconv.FormatUint(uint64(t), 10), datatype: XSDunsignedInt}
		}
		return Literal{value: strconv.FormatUint(uint64(t), 10), datatype: XSDunsignedLong}
	case uint8:
		return Literal{value: strconv.FormatUint(uint64(t), 10), datatype: XSDunsignedByte}
	case uint16:
		return Literal{value: strconv.FormatUint(uint64(t), 10), datatype: XSDunsignedShort}
	case uint32:
		return Literal{value: strconv.FormatUint(uint64(t), 10), datatype: XSDunsignedInt}
	case uint64:
		return Literal{value: strconv.FormatUint(t, 10), datatype: XSDunsignedLong}
	case float32:
		return Literal{value: strconv.FormatFloat(float64(t), 'E', -1, 32), datatype: XSDfloat}
	case float64:
		return Literal{value: strconv.FormatFloat(t, 'E', -1, 64), datatype: XSDdouble}
	case string:
		return Literal{value: t, datatype: XSDstring}
	case time.Time:
		return Literal{value: t.UTC().Format(time.RFC3339Nano), datatype: XSDdateTimeStamp}
	default:
		return Literal{value: fmt.Sprintf("%#v", t), datatype: XSDstring}
	}
}

// canonicalizeBoolean implements the xsd:boolean canonicalization:
// lexical {"true","TRUE","1"} -> "true", everything else -> "false".
func canonicalizeBoolean(lexical string) string {
	switch lexical {
	case "true", "TRUE", "1":
		return "true"
	default:
		return "false"
	}
}

// NewLiteral constructs a plain or XML literal. If isXMLLiteral is
// true, the datatype is forced to rdf:XMLLiteral and language must be
// empty. An empty language string is normalized to absent.
func NewLiteral(lexical string, language string, isXMLLiteral bool) (Literal, error) {
	if isXMLLiteral {
		if language != "" {
			return Literal{}, ErrXMLLiteralLanguage
		}
		return Literal{value: lexical, datatype: RDFXMLLiteral}, nil
	}
	if language == "" {
		return Literal{value: lexical, datatype: XSDstring}, nil
	}
	return Literal{value: lexical, language: language, datatype: RDFlangString}, nil
}

// NewLangLiteral returns a new, language-tagged Literal.
func NewLangLiteral(v string, lang string) Literal {
	return Literal{value: v, language: lang, datatype: RDFlangString}
}

// NewTypedLiteral returns a new Literal with the given datatype (an
// empty datatype means xsd:string) and canonicalizes xsd:boolean
// lexicals. It takes no language tag, so it never returns
// ErrConflictingLiteral; language-tagged literals come from NewLiteral
// or NewLangLiteral.
func NewTypedLiteral(lexical string, dt URI) (Literal, error) {
	return newTypedLiteral(lexical, "", dt)
}

func newTypedLiteral(lexical, language string, datatype URI) (Literal, error) {
	if language != "" && datatype != "" && datatype != RDFlangString {
		return Literal{}, ErrConflictingLiteral
	}
	if language != "" {
		return Literal{value: lexical, language: language, datatype: RDFlangString}, nil
	}
	if datatype == "" {
		datatype = XSDstring
	}
	if datatype == XSDboolean {
		lexical = canonicalizeBoolean(lexical)
	}
	return Literal{value: lexical, datatype: datatype}, nil
}

// Value returns the Literal's typed value in the corresponding Go type.
func (l Literal) Value() interface{} {
	switch l.datatype {
	case XSDboolean:
		v, _ := strconv.ParseBool(l.value)
		return v
	case XSDstring:
		return l.value
	case XSDint:
		v, _ := strconv.ParseInt(l.value, 10, 32)
		return int32(v)
	case XSDlong:
		v, _ := strconv.ParseInt(l.value, 10, 64)
		return v
	case XSDbyte:
		v, _ := strconv.ParseInt(l.value, 10, 8)
		return int8(v)
	case XSDshort:
		v, _ := strconv.ParseInt(l.value, 10, 16)
		return int16(v)
	case XSDunsignedByte:
		v, _ := strconv.ParseUint(l.value, 10, 8)
		return byte(v)
	case XSDunsignedShort:
		v, _ := strconv.ParseUint(l.value, 10, 16)
		return uint16(v)
	case XSDunsignedInt:
		v, _ := strconv.ParseUint(l.value, 10, 32)
		return uint32(v)
	case XSDunsignedLong:
		v, _ := strconv.ParseUint(l.value, 10, 64)
		return v
	case XSDfloat:
		v, _ := strconv.ParseFloat(l.value, 32)
		return float32(v)
	case XSDdouble:
		v, _ := strconv.ParseFloat(l.value, 64)
		return v
	case XSDdateTimeStamp:
		v, _ := time.Parse(time.RFC3339Nano, l.value)
		return v.UTC()
	default:
		return l.value
	}
}

// String returns the Literal's lexical form.
func (l Literal) String() string { return l.value }

// DataType returns the datatype URI of the Literal.
func (l Literal) DataType() URI { return l.datatype }

// Lang returns the Literal's language tag, if present.
func (l Literal) Lang() string { return l.language }

// IsWellFormedXML reports whether the literal's datatype is rdf:XMLLiteral.
func (l Literal) IsWellFormedXML() bool { return l.datatype == RDFXMLLiteral }

// Term is kept as an alias of Node for code migrated from the
// package's N-Triples/Turtle roots, where only URI and Literal (no
// Blank) were legal object positions.
type Term = Node

// terms is a slice of Term, kept sortable for graph equality checks.
type terms []Term

func (t terms) Len() int           { return len(t) }
func (t terms) Swap(i, j int)      { t[i], t[j] = t[j], t[i] }
func (t terms) Less(i, j int) bool { return t[i].String() < t[j].String() }

// CopyNode returns a structural deep copy of n.
func CopyNode(n Node) Node {
	switch t := n.(type) {
	case URI:
		return URI(string(t))
	case Blank:
		return Blank(string(t))
	case Literal:
		return Literal{value: t.value, language: t.language, datatype: t.datatype}
	default:
		return nil
	}
}

// Equal reports whether a and b are the same Node: same variant with
// byte-equal components. A nil Node matches only a nil Node.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case URI:
		bv, ok := b.(URI)
		return ok && av == bv
	case Blank:
		bv, ok := b.(Blank)
		return ok && av == bv
	case Literal:
		bv, ok := b.(Literal)
		return ok && av.value == bv.value && av.language == bv.language && av.datatype == bv.datatype
	default:
		return false
	}
}
