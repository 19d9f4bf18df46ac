package sqlstore

import (
	"testing"

	"github.com/boutros/sopp/rdf"
)

func TestIDForDeterministic(t *testing.T) {
	u := rdf.NewURI("http://example.org/a")
	if IDFor(u) != IDFor(rdf.NewURI("http://example.org/a")) {
		t.Error("IDFor not deterministic for equal URIs")
	}
	if IDFor(u) == IDFor(rdf.NewURI("http://example.org/b")) {
		t.Error("IDFor collided for distinct URIs (astronomically unlikely, check canonicalForm)")
	}
}

func TestIDForDistinguishesKinds(t *testing.T) {
	uri := rdf.NewURI("x")
	blank := rdf.NewBlank("x")
	if IDFor(uri) == IDFor(blank) {
		t.Error("IDFor gave a URI and a Blank with the same lexical form the same id")
	}
}

func TestSanitizeIdent(t *testing.T) {
	cases := map[string]string{
		"default":    "default",
		"my-model 1": "mymodel1",
		"":           "default",
	}
	for in, want := range cases {
		if got := sanitizeIdent(in); got != want {
			t.Errorf("sanitizeIdent(%q) = %q; want %q", in, got, want)
		}
	}
}
