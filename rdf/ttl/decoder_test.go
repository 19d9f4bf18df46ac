package ttl

import (
	"bytes"
	"io"
	"testing"

	"github.com/boutros/sopp/rdf"
)

func lit(v string) rdf.Literal {
	l, err := rdf.NewLiteral(v, "", false)
	if err != nil {
		panic(err)
	}
	return l
}

func typedLit(v string, dt rdf.URI) rdf.Literal {
	l, err := rdf.NewTypedLiteral(v, dt)
	if err != nil {
		panic(err)
	}
	return l
}

func TestDecode(t *testing.T) {
	tests := []struct {
		input string
		want  []rdf.Triple
	}{
		{"", nil},
		{"<s> <p> <o> .", []rdf.Triple{{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: rdf.NewURI("o")}}},
		{`<s> <p> "abc" .`, []rdf.Triple{{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: lit("abc")}}},
		{`<s> <p> "1"^^<int> .`, []rdf.Triple{{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: typedLit("1", rdf.NewURI("int"))}}},
		{`<s> <p> "x", "y" .`, []rdf.Triple{
			{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: lit("x")},
			{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: lit("y")}}},
		{`<s> <p> "a" ; <p2> "b" ; <p3>  "c" .`, []rdf.Triple{
			{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p"), Obj: lit("a")},
			{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p2"), Obj: lit("b")},
			{Subj: rdf.NewURI("s"), Pred: rdf.NewURI("p3"), Obj: lit("c")}}},
		{"_:b0 <p> <o> .", []rdf.Triple{{Subj: rdf.NewBlank("b0"), Pred: rdf.NewURI("p"), Obj: rdf.NewURI("o")}}},
	}

	for _, test := range tests {
		dec := NewDecoder(bytes.NewBufferString(test.input))
		got := rdf.NewGraph()
		for tr, err := dec.Decode(); err != io.EOF; tr, err = dec.Decode() {
			if err != nil {
				t.Fatal(err)
			}
			got.Insert(tr)
		}
		want := rdf.NewGraph()
		want.Insert(test.want...)

		if !got.Eq(want) {
			t.Errorf("decoding:\n%q\ngot:\n%v\nwant:\n%v",
				test.input, got.Serialize(rdf.Turtle, ""), want.Serialize(rdf.Turtle, ""))
		}
	}
}

func TestDecodeAll(t *testing.T) {
	input := `<s> <p> "a" ; <p2> "b" .`
	dec := NewDecoder(bytes.NewBufferString(input))
	g, err := dec.DecodeAll()
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 2 {
		t.Errorf("DecodeAll().Size() => %d; want 2", g.Size())
	}
}
