package ttl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/boutros/sopp/rdf"
)

// PrefixMap tracks the @prefix/@base directives seen while decoding a
// Turtle stream and shrinks full URIs back to prefixed form on encode.
type PrefixMap struct {
	p2uri map[string]rdf.URI
	uri2p map[rdf.URI]string
	Base  rdf.URI
}

// NewPrefixMap returns an empty PrefixMap.
func NewPrefixMap() *PrefixMap {
	return &PrefixMap{
		p2uri: make(map[string]rdf.URI),
		uri2p: make(map[rdf.URI]string),
		Base:  rdf.URI(""),
	}
}

// Set registers prefix as shorthand for the namespace URI u.
func (p *PrefixMap) Set(prefix string, u rdf.URI) {
	p.p2uri[prefix] = u
	p.uri2p[u] = prefix
}

// Resolve expands a prefixed name (e.g. "foaf:name") into a full URI.
func (p *PrefixMap) Resolve(s string) (rdf.URI, error) {
	if i := strings.Index(s, ":"); i > 0 {
		prefix, path := s[:i], s[i+1:]
		if u, ok := p.p2uri[prefix]; ok {
			return rdf.NewURI(string(u) + path), nil
		}
	}

	return rdf.URI(""), fmt.Errorf("cannot resolve: %s", s)
}

// Shrink renders u using a registered prefix or the base URI, falling
// back to a bracketed absolute form.
func (p *PrefixMap) Shrink(u rdf.URI) string {
	if p.Base != "" && strings.HasPrefix(string(u), string(p.Base)) {
		return "<" + strings.TrimPrefix(string(u), string(p.Base)) + ">"
	}
	ns, path := split(string(u))
	if prefix, ok := p.uri2p[rdf.URI(ns)]; ok {
		return prefix + ":" + path
	}
	return "<" + string(u) + ">"
}

func split(uri string) (string, string) {
	i := len(uri)
	for i > 0 {
		r, w := utf8.DecodeLastRuneInString(uri[:i])
		if r == '/' || r == '#' {
			return uri[:i], uri[i:]
		}
		i -= w
	}
	return uri, uri
}

// resolveAgainstBase joins a relative reference s onto base. The
// decoder does not call it.
func resolveAgainstBase(base rdf.URI, s string) rdf.URI {
	r, _ := utf8.DecodeLastRuneInString(s)
	switch r {
	case '/':
		return rdf.NewURI(strings.TrimSuffix(string(base), "/") + s)
	case '#':
		return rdf.NewURI(strings.TrimSuffix(string(base), "#") + s)
	default:
		r2, _ := utf8.DecodeLastRuneInString(string(base))
		switch r2 {
		case '/', '#':
			return rdf.NewURI(string(base) + s)
		default:
			return rdf.NewURI(string(base) + "/" + s)
		}
	}
}
