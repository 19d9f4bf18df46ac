package codec

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/boutros/sopp/rdf"
)

func TestEncodeNodeIRI(t *testing.T) {
	n := rdf.NewURI("http://purl.org/net/dajobe/")
	b, err := EncodeNode(n)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x52, 0x00, 0x1b}
	want = append(want, []byte("http://purl.org/net/dajobe/")...)
	want = append(want, 0x00)
	if !bytes.Equal(b, want) {
		t.Errorf("EncodeNode(%v) =>\n% x\nwant:\n% x", n, b, want)
	}
}

func TestEncodeDecodeNodeRoundtrip(t *testing.T) {
	lit, err := rdf.NewLiteral("hei", "", false)
	if err != nil {
		t.Fatal(err)
	}
	langLit := rdf.NewLangLiteral("hei", "no")
	typedLit, err := rdf.NewTypedLiteral("42", rdf.XSDint)
	if err != nil {
		t.Fatal(err)
	}

	nodes := []rdf.Node{
		rdf.NewURI("http://example.org/a"),
		rdf.NewBlank("b0"),
		lit,
		langLit,
		typedLit,
	}

	for _, n := range nodes {
		b, err := EncodeNode(n)
		if err != nil {
			t.Fatalf("EncodeNode(%v): %v", n, err)
		}
		got, consumed, err := DecodeNode(b)
		if err != nil {
			t.Fatalf("DecodeNode(%v): %v", b, err)
		}
		if consumed != len(b) {
			t.Errorf("DecodeNode consumed %d bytes; want %d", consumed, len(b))
		}
		if !rdf.Equal(got, n) {
			t.Errorf("roundtrip(%v) => %v", n, got)
		}
	}
}

func TestDecodeNodeShortBuffer(t *testing.T) {
	b, _ := EncodeNode(rdf.NewURI("http://example.org/a"))
	if _, _, err := DecodeNode(b[:len(b)-2]); err != ErrShortBuffer {
		t.Errorf("DecodeNode(truncated) => %v; want ErrShortBuffer", err)
	}
}

func TestDecodeNodeUnknownTag(t *testing.T) {
	if _, _, err := DecodeNode([]byte{0xFF, 0, 0}); err != ErrUnknownTag {
		t.Errorf("DecodeNode(bad tag) => %v; want ErrUnknownTag", err)
	}
}

func TestEncodeDecodeStatementPartial(t *testing.T) {
	tr := rdf.Triple{
		Subj: rdf.NewURI("http://example.org/s"),
		Pred: rdf.NewURI("http://example.org/p"),
		Obj:  rdf.NewLiteralValue("o"),
	}
	ctx := rdf.NewURI("http://example.org/g")

	b, err := EncodeStatement(tr, ctx, Subject|Object)
	if err != nil {
		t.Fatal(err)
	}
	got, gotCtx, err := DecodeStatement(b, Subject|Object)
	if err != nil {
		t.Fatal(err)
	}
	if !rdf.Equal(got.Subj, tr.Subj) || !rdf.Equal(got.Obj, tr.Obj) {
		t.Errorf("DecodeStatement => %v; want subj/obj of %v", got, tr)
	}
	if got.Pred != nil {
		t.Errorf("DecodeStatement with Predicate unset in mask => %v; want nil", got.Pred)
	}
	if gotCtx != nil {
		t.Errorf("DecodeStatement with Context unset in mask => %v; want nil", gotCtx)
	}
}

func TestEncodeNodeQuick(t *testing.T) {
	f := func(s string) bool {
		n := rdf.NewURI(s)
		b, err := EncodeNode(n)
		if err != nil {
			return false
		}
		got, _, err := DecodeNode(b)
		if err != nil {
			return false
		}
		return rdf.Equal(got, n)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
