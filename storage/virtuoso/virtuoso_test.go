package virtuoso

import (
	"testing"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
)

func TestTypedParamsURI(t *testing.T) {
	typ, lex, extra := typedParams(rdf.NewURI("http://ex.org/a"))
	if typ != typeURI {
		t.Errorf("typecode = %d; want typeURI", typ)
	}
	if lex != "http://ex.org/a" {
		t.Errorf("lexical = %q", lex)
	}
	if extra != nil {
		t.Errorf("extra = %v; want nil", extra)
	}
}

func TestTypedParamsLangLiteral(t *testing.T) {
	lit := rdf.NewLangLiteral("hello", "en")
	typ, lex, extra := typedParams(lit)
	if typ != typeLiteral {
		t.Errorf("typecode = %d; want typeLiteral", typ)
	}
	if lex != "hello" {
		t.Errorf("lexical = %q", lex)
	}
	if extra != "en" {
		t.Errorf("extra = %v; want \"en\"", extra)
	}
}

func TestBindVarUnbound(t *testing.T) {
	frag, args := bindVar("s", nil)
	if frag != "?s" {
		t.Errorf("frag = %q; want ?s", frag)
	}
	if len(args) != 0 {
		t.Errorf("args = %v; want empty", args)
	}
}

func TestBindVarBound(t *testing.T) {
	frag, args := bindVar("s", rdf.NewURI("http://ex.org/a"))
	if frag != "iri(?)" {
		t.Errorf("frag = %q; want iri(?)", frag)
	}
	if len(args) != 1 || args[0] != "http://ex.org/a" {
		t.Errorf("args = %v", args)
	}
}

func TestSupportsQuery(t *testing.T) {
	b := New()
	if !b.SupportsQuery(storage.Query{Language: "vsparql"}) {
		t.Error("SupportsQuery(vsparql) => false")
	}
	if b.SupportsQuery(storage.Query{Language: "sql"}) {
		t.Error("SupportsQuery(sql) => true")
	}
}
