package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
)

func openTestBackend(t *testing.T) storage.Backend {
	dir := t.TempDir()
	b, err := storage.New("sqlite")
	if err != nil {
		t.Fatal(err)
	}
	dsn := filepath.Join(dir, "test.db")
	if err := b.Open(context.Background(), storage.Options{"dsn": dsn, "model": "test"}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close(context.Background()) })
	return b
}

func TestSQLiteAddContainsRemove(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	s := rdf.NewURI("http://ex.org/s")
	p := rdf.NewURI("http://ex.org/p")
	o := rdf.NewURI("http://ex.org/o")
	q := rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: p, Obj: o}}

	if err := b.Add(ctx, q); err != nil {
		t.Fatal(err)
	}
	has, err := b.Contains(ctx, q.Triple)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("Contains => false after Add")
	}

	n, err := b.Size(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Size() => %d; want 1", n)
	}

	if err := b.Remove(ctx, q); err != nil {
		t.Fatal(err)
	}
	has, err = b.Contains(ctx, q.Triple)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("Contains => true after Remove")
	}
}

func TestSQLiteFind(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	s := rdf.NewURI("http://ex.org/s")
	p := rdf.NewURI("http://ex.org/p")
	o := rdf.NewURI("http://ex.org/o")
	if err := b.Add(ctx, rdf.Quad{Triple: rdf.Triple{Subj: s, Pred: p, Obj: o}}); err != nil {
		t.Fatal(err)
	}

	st, err := b.Find(ctx, rdf.Triple{Subj: s})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	n := 0
	for st.Next(ctx) {
		n++
		if !rdf.Equal(st.Triple().Subj, s) {
			t.Errorf("Find returned wrong subject: %v", st.Triple().Subj)
		}
	}
	if err := st.Err(); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Find matched %d triples; want 1", n)
	}
}
