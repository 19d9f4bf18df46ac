package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/boutros/sopp/rdf"
)

func TestSelectByName(t *testing.T) {
	p, err := Select("turtle", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("Select(\"turtle\",...) => nil parser")
	}
}

func TestSelectByMIME(t *testing.T) {
	p, err := Select("", "text/turtle", "")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("Select by MIME => nil parser")
	}
}

func TestSelectBySuffix(t *testing.T) {
	if _, err := Select("", "", "http://example.org/data.ttl"); err != nil {
		t.Fatal(err)
	}
	if _, err := Select("", "", "http://example.org/data.nt"); err != nil {
		t.Fatal(err)
	}
}

func TestSelectNoMatch(t *testing.T) {
	if _, err := Select("no-such-parser", "", ""); err == nil {
		t.Error("Select(unregistered name) => nil error; want error")
	}
}

func TestTurtleParserParse(t *testing.T) {
	input := `<http://ex.org/a> <http://ex.org/p> <http://ex.org/b> .
<http://ex.org/a> <http://ex.org/p> "hello" .`

	p, err := Select("turtle", "", "")
	if err != nil {
		t.Fatal(err)
	}

	var got []rdf.Triple
	err = p.Parse(context.Background(), Source{Reader: strings.NewReader(input)}, rdf.URI(""),
		func(tr rdf.Triple) error {
			got = append(got, tr)
			return nil
		},
		func(prefix string, uri rdf.URI) {})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d triples; want 2", len(got))
	}
}
