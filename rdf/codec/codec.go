// Package codec implements the self-delimiting binary node and
// statement encoding used as keys and values by hash-indexed storage
// backends: a one-byte tag (IRI, blank node, short literal or long
// literal) followed by a length-prefixed body, so a node or a whole
// masked statement can be read back without any external framing. The
// legacy literal tag is never written, and DecodeNode rejects it with
// ErrLegacyNode rather than decoding it.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/boutros/sopp/rdf"
)

// Tag bytes identifying an encoded node's variant.
const (
	tagIRI    byte = 'R'
	tagBlank  byte = 'B'
	tagShort  byte = 'M'
	tagLong   byte = 'N'
	tagLegacy byte = 'L'
)

// Errors returned while decoding malformed node or statement buffers.
var (
	ErrShortBuffer  = errors.New("codec: buffer shorter than declared length")
	ErrUnknownTag   = errors.New("codec: unknown node tag")
	ErrLegacyNode   = errors.New("codec: legacy literal tag is not supported")
	ErrMaskMismatch = errors.New("codec: buffer does not hold enough components for mask")
)

// Mask selects which statement components a partial encoding carries,
// always written/read in Subject, Predicate, Object, Context order.
type Mask uint8

// Mask bits, combined with bitwise OR.
const (
	Subject Mask = 1 << iota
	Predicate
	Object
	Context
)

func (m Mask) has(bit Mask) bool { return m&bit != 0 }

// EncodeNode returns the self-delimiting encoding of n.
func EncodeNode(n rdf.Node) ([]byte, error) {
	switch v := n.(type) {
	case rdf.URI:
		return encodeTagged(tagIRI, []byte(v)), nil
	case rdf.Blank:
		return encodeTagged(tagBlank, []byte(v)), nil
	case rdf.Literal:
		return encodeLiteral(v), nil
	default:
		return nil, fmt.Errorf("codec: cannot encode node of type %T", n)
	}
}

func encodeTagged(tag byte, b []byte) []byte {
	buf := make([]byte, 1+2+len(b)+1)
	buf[0] = tag
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(b)))
	copy(buf[3:], b)
	buf[len(buf)-1] = 0
	return buf
}

func encodeLiteral(l rdf.Literal) []byte {
	value := []byte(l.String())
	dt := []byte(l.DataType().String())
	lang := []byte(l.Lang())

	long := len(value) > 0xFFFF
	tag := tagShort
	lenWidth := 2
	if long {
		tag = tagLong
		lenWidth = 4
	}

	size := 1 + lenWidth + 2 + 1 + len(value) + 1
	if len(dt) > 0 {
		size += len(dt) + 1
	}
	if len(lang) > 0 {
		size += len(lang) + 1
	}

	buf := make([]byte, size)
	buf[0] = tag
	off := 1
	if long {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(value)))
		off += 4
	} else {
		binary.BigEndian.PutUint16(buf[off:], uint16(len(value)))
		off += 2
	}
	binary.BigEndian.PutUint16(buf[off:], uint16(len(dt)))
	off += 2
	buf[off] = byte(len(lang))
	off++

	off += copy(buf[off:], value)
	buf[off] = 0
	off++

	if len(dt) > 0 {
		off += copy(buf[off:], dt)
		buf[off] = 0
		off++
	}
	if len(lang) > 0 {
		off += copy(buf[off:], lang)
		buf[off] = 0
		off++
	}
	return buf
}

// DecodeNode parses a single node encoding from the start of b. It
// returns the node, the number of bytes consumed, and an error.
func DecodeNode(b []byte) (rdf.Node, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrShortBuffer
	}
	switch b[0] {
	case tagIRI:
		s, n, err := decodeTagged(b)
		if err != nil {
			return nil, 0, err
		}
		return rdf.NewURI(s), n, nil
	case tagBlank:
		s, n, err := decodeTagged(b)
		if err != nil {
			return nil, 0, err
		}
		return rdf.NewBlank(s), n, nil
	case tagShort, tagLong:
		return decodeLiteral(b)
	case tagLegacy:
		return nil, 0, ErrLegacyNode
	default:
		return nil, 0, ErrUnknownTag
	}
}

func decodeTagged(b []byte) (string, int, error) {
	if len(b) < 3 {
		return "", 0, ErrShortBuffer
	}
	strLen := int(binary.BigEndian.Uint16(b[1:3]))
	end := 3 + strLen + 1
	if len(b) < end {
		return "", 0, ErrShortBuffer
	}
	return string(b[3 : 3+strLen]), end, nil
}

func decodeLiteral(b []byte) (rdf.Node, int, error) {
	long := b[0] == tagLong
	lenWidth := 2
	if long {
		lenWidth = 4
	}
	head := 1 + lenWidth + 2 + 1
	if len(b) < head {
		return nil, 0, ErrShortBuffer
	}

	off := 1
	var strLen int
	if long {
		strLen = int(binary.BigEndian.Uint32(b[off:]))
		off += 4
	} else {
		strLen = int(binary.BigEndian.Uint16(b[off:]))
		off += 2
	}
	dtLen := int(binary.BigEndian.Uint16(b[off:]))
	off += 2
	langLen := int(b[off])
	off++

	end := off + strLen + 1
	if len(b) < end {
		return nil, 0, ErrShortBuffer
	}
	value := string(b[off : off+strLen])
	off = end

	var dt rdf.URI
	if dtLen > 0 {
		end = off + dtLen + 1
		if len(b) < end {
			return nil, 0, ErrShortBuffer
		}
		dt = rdf.NewURI(string(b[off : off+dtLen]))
		off = end
	}

	var lang string
	if langLen > 0 {
		end = off + langLen + 1
		if len(b) < end {
			return nil, 0, ErrShortBuffer
		}
		lang = string(b[off : off+langLen])
		off = end
	}

	var lit rdf.Literal
	var err error
	if lang != "" {
		lit, err = rdf.NewLiteral(value, lang, false)
	} else if dt != "" {
		lit, err = rdf.NewTypedLiteral(value, dt)
	} else {
		lit, err = rdf.NewLiteral(value, "", false)
	}
	if err != nil {
		return nil, 0, err
	}
	return lit, off, nil
}

// EncodeStatement encodes the components selected by mask, in
// Subject, Predicate, Object, Context order.
func EncodeStatement(t rdf.Triple, ctx rdf.Node, mask Mask) ([]byte, error) {
	var out []byte
	parts := []struct {
		bit Mask
		n   rdf.Node
	}{
		{Subject, t.Subj},
		{Predicate, t.Pred},
		{Object, t.Obj},
		{Context, ctx},
	}
	for _, p := range parts {
		if !mask.has(p.bit) {
			continue
		}
		b, err := EncodeNode(p.n)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// DecodeStatement decodes the components selected by mask from b, in
// Subject, Predicate, Object, Context order, returning the triple
// (with unselected fields left nil) and the context node (nil unless
// Context is in mask).
func DecodeStatement(b []byte, mask Mask) (rdf.Triple, rdf.Node, error) {
	var t rdf.Triple
	var ctx rdf.Node
	off := 0

	decodeIf := func(bit Mask) (rdf.Node, error) {
		if !mask.has(bit) {
			return nil, nil
		}
		n, consumed, err := DecodeNode(b[off:])
		if err != nil {
			return nil, err
		}
		off += consumed
		return n, nil
	}

	var err error
	if t.Subj, err = decodeIf(Subject); err != nil {
		return t, nil, err
	}
	if t.Pred, err = decodeIf(Predicate); err != nil {
		return t, nil, err
	}
	if t.Obj, err = decodeIf(Object); err != nil {
		return t, nil, err
	}
	if ctx, err = decodeIf(Context); err != nil {
		return t, nil, err
	}
	return t, ctx, nil
}
