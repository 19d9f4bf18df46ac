package stream

import (
	"context"
	"testing"

	"github.com/boutros/sopp/rdf"
)

func quad(s, p, o string) rdf.Quad {
	return rdf.Quad{Triple: rdf.Triple{Subj: rdf.NewURI(s), Pred: rdf.NewURI(p), Obj: rdf.NewURI(o)}}
}

func TestSliceStream(t *testing.T) {
	quads := []rdf.Quad{quad("a", "p", "b"), quad("a", "p", "c")}
	s := NewSliceStream(quads)
	ctx := context.Background()

	got, err := Collect(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Collect() => %d quads; want 2", len(got))
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMapStreamFilter(t *testing.T) {
	quads := []rdf.Quad{quad("a", "p", "b"), quad("a", "p", "c")}
	src := NewSliceStream(quads)

	onlyB := func(t rdf.Triple) (rdf.Triple, bool) {
		return t, rdf.Equal(t.Obj, rdf.NewURI("b"))
	}
	m := NewMapStream(src, onlyB)

	closed := false
	m.OnClose(func() { closed = true })

	ctx := context.Background()
	n := 0
	for m.Next(ctx) {
		n++
		if !rdf.Equal(m.Triple().Obj, rdf.NewURI("b")) {
			t.Errorf("MapStream yielded filtered-out triple: %v", m.Triple())
		}
	}
	if n != 1 {
		t.Errorf("MapStream yielded %d triples; want 1", n)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Error("MapStream.Close() did not invoke registered cleanup")
	}
}

func TestNodeSliceIterator(t *testing.T) {
	nodes := []rdf.Node{rdf.NewURI("a"), rdf.NewURI("b")}
	it := NewNodeSliceIterator(nodes)
	ctx := context.Background()

	var got []rdf.Node
	for it.Next(ctx) {
		got = append(got, it.Node())
	}
	if len(got) != 2 {
		t.Fatalf("iterated %d nodes; want 2", len(got))
	}
}
