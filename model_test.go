package sopp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/boutros/sopp/parser"
	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/storage/hashstore"
)

func newTestModel(t *testing.T) *Model {
	b := hashstore.New()
	if err := b.Open(context.Background(), storage.Options{"hash-type": "mem"}); err != nil {
		t.Fatal(err)
	}
	m, err := New(b, ModelOptions{Name: "test"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.RemoveReference() })
	return m
}

func TestModelAddContainsRemove(t *testing.T) {
	m := newTestModel(t)
	s := rdf.NewURI("http://ex.org/s")
	p := rdf.NewURI("http://ex.org/p")
	o := rdf.NewURI("http://ex.org/o")

	if err := m.AddTriple(s, p, o); err != nil {
		t.Fatal(err)
	}

	has, err := m.Contains(rdf.Triple{Subj: s, Pred: p, Obj: o})
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("Contains => false after AddTriple")
	}

	n, err := m.Size()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Size() => %d; want 1", n)
	}

	if err := m.Remove(rdf.Triple{Subj: s, Pred: p, Obj: o}); err != nil {
		t.Fatal(err)
	}
	has, err = m.Contains(rdf.Triple{Subj: s, Pred: p, Obj: o})
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("Contains => true after Remove")
	}
}

func TestModelSubModelFanOut(t *testing.T) {
	parent := newTestModel(t)
	child := newTestModel(t)

	if err := parent.AddSubModel(child); err != nil {
		t.Fatal(err)
	}

	s, p, o := rdf.NewURI("http://ex.org/s"), rdf.NewURI("http://ex.org/p"), rdf.NewURI("http://ex.org/o")
	if err := parent.AddTriple(s, p, o); err != nil {
		t.Fatal(err)
	}

	has, err := child.Contains(rdf.Triple{Subj: s, Pred: p, Obj: o})
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("sub-model did not receive fanned-out triple")
	}
}

func TestModelAddSubModelRejectsCycle(t *testing.T) {
	parent := newTestModel(t)
	child := newTestModel(t)

	if err := parent.AddSubModel(child); err != nil {
		t.Fatal(err)
	}
	if err := child.AddSubModel(parent); err == nil {
		t.Error("AddSubModel creating a cycle => nil error; want ErrCycle")
	}
	if err := parent.AddSubModel(parent); err == nil {
		t.Error("AddSubModel(self) => nil error; want ErrCycle")
	}
}

func TestModelRemoveReferenceClosesAtZero(t *testing.T) {
	b := hashstore.New()
	if err := b.Open(context.Background(), storage.Options{"hash-type": "mem"}); err != nil {
		t.Fatal(err)
	}
	m, err := New(b, ModelOptions{})
	if err != nil {
		t.Fatal(err)
	}
	m.AddReference() // refs = 2

	if err := m.RemoveReference(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Size(); err != nil {
		t.Errorf("Size() after one of two RemoveReference calls => %v; want nil (still open)", err)
	}

	if err := m.RemoveReference(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Size(); err != ErrClosed {
		t.Errorf("Size() after model closed => %v; want ErrClosed", err)
	}
}

func TestModelDescribe(t *testing.T) {
	m := newTestModel(t)
	s, p, o := rdf.NewURI("http://ex.org/s"), rdf.NewURI("http://ex.org/p"), rdf.NewURI("http://ex.org/o")
	if err := m.AddTriple(s, p, o); err != nil {
		t.Fatal(err)
	}

	g, err := m.Describe(s, false)
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 1 {
		t.Errorf("Describe(s) => %d triples; want 1", g.Size())
	}
}

func TestModelLoad(t *testing.T) {
	m := newTestModel(t)
	ttl := `<http://ex.org/a> <http://ex.org/p> <http://ex.org/b> .`

	dir := t.TempDir()
	f := filepath.Join(dir, "data.ttl")
	if err := os.WriteFile(f, []byte(ttl), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := os.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	src := parser.Source{IRI: f, Reader: r}
	if _, err := m.Load(context.Background(), src, LoadOptions{ParserName: "turtle"}); err != nil {
		t.Fatal(err)
	}

	n, err := m.Size()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Size() after Load => %d; want 1", n)
	}
}

func TestModelGetSetFeature(t *testing.T) {
	m := newTestModel(t)
	f := rdf.NewURI("http://ex.org/features#custom")
	if err := m.SetFeature(f, rdf.NewLiteralValue(int64(42))); err != nil {
		t.Fatal(err)
	}
	v, err := m.GetFeature(f)
	if err != nil {
		t.Fatal(err)
	}
	lit, ok := v.(rdf.Literal)
	if !ok {
		t.Fatalf("GetFeature => %T; want rdf.Literal", v)
	}
	if lit.Value().(int64) != 42 {
		t.Errorf("GetFeature value => %v; want 42", lit.Value())
	}
}
