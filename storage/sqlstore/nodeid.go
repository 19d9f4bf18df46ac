package sqlstore

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/boutros/sopp/rdf"
)

// NodeID is the content-addressed row id every interned term is
// stored and joined under: the low 8 bytes (little-endian) of the
// MD5 digest of the node's canonical string form. Collisions are
// accepted as a calculated risk of the 64-bit truncation, same as the
// original C implementation this schema is ported from.
type NodeID uint64

// canonicalForm is the string MD5'd to produce a NodeID: "R"+uri for
// resources, "B"+name for blank nodes, "L"+value+"<"+lang+">"+datatype
// for literals.
func canonicalForm(n rdf.Node) string {
	switch v := n.(type) {
	case rdf.URI:
		return "R" + string(v)
	case rdf.Blank:
		return "B" + string(v)
	case rdf.Literal:
		return "L" + v.String() + "<" + v.Lang() + ">" + string(v.DataType())
	default:
		return "R" + n.String()
	}
}

// IDFor computes the NodeID of n without touching the database.
func IDFor(n rdf.Node) NodeID {
	sum := md5.Sum([]byte(canonicalForm(n)))
	return NodeID(binary.LittleEndian.Uint64(sum[:8]))
}
