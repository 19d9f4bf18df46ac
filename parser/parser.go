// Package parser adapts external and in-tree triple-syntax readers to
// a common callback protocol Model.Load drives, and keeps a
// process-wide registry so a parser can be selected by name, MIME type
// or source suffix.
package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/boutros/sopp/rdf"
)

// Source is what a Parser reads from: either an already-open Reader,
// or an IRI the parser (or its caller) resolves itself. Exactly one of
// the two is meaningful for a given call.
type Source struct {
	IRI    string
	Reader io.Reader
}

// Namespace is one prefix declaration observed while parsing.
type Namespace struct {
	Prefix string
	URI    rdf.URI
}

// Parser decodes a Source into a stream of triples and namespace
// declarations, delivered through callbacks so the caller controls
// where each triple lands (a Model, a Graph, a test collector) without
// the parser knowing about any of them.
type Parser interface {
	Parse(ctx context.Context, src Source, base rdf.URI,
		onTriple func(rdf.Triple) error,
		onNamespace func(prefix string, uri rdf.URI)) error
}

type registration struct {
	name string
	mime []string
	p    Parser
}

var (
	mu  sync.RWMutex
	reg []registration
)

// Register adds p to the registry under name, additionally indexed by
// each MIME type in mime. Re-registering an existing name replaces it
// (parsers, unlike storage backends, are expected to be reconfigured
// during development; silently keeping a stale registration would be
// more surprising than overwriting it).
func Register(name string, mime []string, p Parser) {
	mu.Lock()
	defer mu.Unlock()
	for i, r := range reg {
		if r.name == name {
			reg[i] = registration{name, mime, p}
			return
		}
	}
	reg = append(reg, registration{name, mime, p})
}

// ErrNoParser is returned by Select when no registered parser matches.
var ErrNoParser = fmt.Errorf("parser: no matching parser registered")

// Select resolves a Parser by name first, then by MIME type, then by
// sniffing the source IRI's file suffix. Any argument may be empty.
func Select(name, mime, sourceIRI string) (Parser, error) {
	mu.RLock()
	defer mu.RUnlock()

	if name != "" {
		for _, r := range reg {
			if r.name == name {
				return r.p, nil
			}
		}
		return nil, fmt.Errorf("%w: name %q", ErrNoParser, name)
	}

	if mime != "" {
		for _, r := range reg {
			for _, m := range r.mime {
				if m == mime {
					return r.p, nil
				}
			}
		}
	}

	if sourceIRI != "" {
		switch {
		case strings.HasSuffix(sourceIRI, ".ttl"):
			return Select("turtle", "", "")
		case strings.HasSuffix(sourceIRI, ".nt"):
			return Select("ntriples", "", "")
		}
	}

	return nil, ErrNoParser
}

// Registered returns the names of every registered parser.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, len(reg))
	for i, r := range reg {
		out[i] = r.name
	}
	return out
}
