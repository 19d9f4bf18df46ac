package parser

import (
	"bufio"
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/rdf/ttl"
)

// chunkSize is the read granularity the adapter buffers the underlying
// Source.Reader at before handing it to the decoder.
const chunkSize = 1024

// TurtleParser adapts rdf/ttl.Decoder (Turtle and N-Triples share one
// grammar here) to the Parser interface. It is registered in-tree
// under both "turtle"/"text/turtle" and "ntriples"/"application/n-triples".
type TurtleParser struct {
	// Skolemize, if set, is installed on the underlying ttl.Decoder so
	// blank nodes decode as URIs instead of rdf.Blank values.
	Skolemize func(string) rdf.URI
}

// Parse reads src, calling onTriple for every decoded triple. The
// underlying reader is chunked at 1024 bytes; triple decoding runs on
// its own goroutine so the caller's onTriple callback can block
// (e.g. on a storage write) without stalling the read loop's
// cancellation check.
//
// onNamespace is never invoked: the in-tree Turtle grammar this
// package ships does not parse @prefix directives, only absolute
// IRIs and blank nodes.
func (p *TurtleParser) Parse(ctx context.Context, src Source, base rdf.URI,
	onTriple func(rdf.Triple) error,
	onNamespace func(prefix string, uri rdf.URI)) error {

	r := src.Reader
	if r == nil {
		return io.ErrUnexpectedEOF
	}
	br := bufio.NewReaderSize(r, chunkSize)

	dec := ttl.NewDecoder(br)
	dec.Base = base
	dec.Skolemize = p.Skolemize

	g, ctx := errgroup.WithContext(ctx)
	triples := make(chan rdf.Triple)

	g.Go(func() error {
		defer close(triples)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := dec.Decode()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case triples <- tr:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for tr := range triples {
			if err := onTriple(tr); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func init() {
	p := &TurtleParser{}
	Register("turtle", []string{"text/turtle"}, p)
	Register("ntriples", []string{"application/n-triples"}, p)
}
