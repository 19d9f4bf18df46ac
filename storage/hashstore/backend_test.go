package hashstore

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "hashstore-")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func openBolt(t *testing.T, extra storage.Options) *Backend {
	b := New()
	opts := storage.Options{
		"hash-type":        "bdb",
		"dir":               tempDir(t),
		"name":              "test",
		"index-predicates":  "true",
		"contexts":          "true",
	}
	for k, v := range extra {
		opts[k] = v
	}
	if err := b.Open(context.Background(), opts); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { b.Close(context.Background()) })
	return b
}

func openMem(t *testing.T) *Backend {
	b := New()
	opts := storage.Options{"hash-type": "mem", "index-predicates": "true", "contexts": "true"}
	if err := b.Open(context.Background(), opts); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return b
}

func quad(s, p, o string) rdf.Quad {
	return rdf.Quad{Triple: rdf.Triple{Subj: rdf.NewURI(s), Pred: rdf.NewURI(p), Obj: rdf.NewURI(o)}}
}

func testBackends(t *testing.T) map[string]*Backend {
	return map[string]*Backend{
		"bdb": openBolt(t, nil),
		"mem": openMem(t),
	}
}

func TestBackendAddContainsRemove(t *testing.T) {
	for name, b := range testBackends(t) {
		name, b := name, b
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			q := quad("http://ex.org/s", "http://ex.org/p", "http://ex.org/o")

			has, err := b.Contains(ctx, q.Triple)
			if err != nil {
				t.Fatal(err)
			}
			if has {
				t.Fatal("Contains => true before Add")
			}

			if err := b.Add(ctx, q); err != nil {
				t.Fatal(err)
			}

			has, err = b.Contains(ctx, q.Triple)
			if err != nil {
				t.Fatal(err)
			}
			if !has {
				t.Fatal("Contains => false after Add")
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
				t.Fatal("Contains => true after Remove")
			}
		})
	}
}

func TestBackendFind(t *testing.T) {
	for name, b := range testBackends(t) {
		name, b := name, b
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			quads := []rdf.Quad{
				quad("http://ex.org/a", "http://ex.org/p", "http://ex.org/b"),
				quad("http://ex.org/a", "http://ex.org/p", "http://ex.org/c"),
				quad("http://ex.org/a", "http://ex.org/q", "http://ex.org/b"),
			}
			for _, q := range quads {
				if err := b.Add(ctx, q); err != nil {
					t.Fatal(err)
				}
			}

			a, p := rdf.NewURI("http://ex.org/a"), rdf.NewURI("http://ex.org/p")

			s, err := b.Find(ctx, rdf.Triple{Subj: a, Pred: p})
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			var got int
			for s.Next(ctx) {
				got++
			}
			if got != 2 {
				t.Errorf("Find(a,p,_) => %d results; want 2", got)
			}

			// predicate-only lookup exercises the p2so index.
			s2, err := b.Find(ctx, rdf.Triple{Pred: p})
			if err != nil {
				t.Fatal(err)
			}
			defer s2.Close()
			got = 0
			for s2.Next(ctx) {
				got++
			}
			if got != 2 {
				t.Errorf("Find(_,p,_) => %d results; want 2", got)
			}
		})
	}
}

func TestBackendArcIndex(t *testing.T) {
	for name, b := range testBackends(t) {
		name, b := name, b
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, p, o := rdf.NewURI("http://ex.org/a"), rdf.NewURI("http://ex.org/p"), rdf.NewURI("http://ex.org/o")
			if err := b.Add(ctx, rdf.Quad{Triple: rdf.Triple{Subj: a, Pred: p, Obj: o}}); err != nil {
				t.Fatal(err)
			}

			has, err := b.HasArcOut(ctx, a, p)
			if err != nil {
				t.Fatal(err)
			}
			if !has {
				t.Error("HasArcOut => false; want true")
			}

			it, err := b.FindTargets(ctx, a, p)
			if err != nil {
				t.Fatal(err)
			}
			defer it.Close()
			if !it.Next(ctx) {
				t.Fatal("FindTargets yielded nothing")
			}
			if !rdf.Equal(it.Node(), o) {
				t.Errorf("FindTargets => %v; want %v", it.Node(), o)
			}
		})
	}
}

func TestBackendContexts(t *testing.T) {
	b := openMem(t)
	ctx := context.Background()

	g1 := rdf.NewURI("http://ex.org/g1")
	q := rdf.Quad{Triple: rdf.Triple{Subj: rdf.NewURI("http://ex.org/s"), Pred: rdf.NewURI("http://ex.org/p"), Obj: rdf.NewURI("http://ex.org/o")}, Context: g1}

	if err := b.Add(ctx, q); err != nil {
		t.Fatal(err)
	}

	it, err := b.GetContexts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	if !it.Next(ctx) {
		t.Fatal("GetContexts yielded nothing")
	}
	if !rdf.Equal(it.Node(), g1) {
		t.Errorf("GetContexts => %v; want %v", it.Node(), g1)
	}

	s, err := b.ContextSerialize(ctx, g1)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if !s.Next(ctx) {
		t.Fatal("ContextSerialize yielded nothing")
	}
}

func TestBackendClone(t *testing.T) {
	dir := tempDir(t)
	b := New()
	if err := b.Open(context.Background(), storage.Options{"hash-type": "bdb", "dir": dir, "name": "orig"}); err != nil {
		t.Fatal(err)
	}
	defer b.Close(context.Background())

	other := New()
	if err := b.Clone(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	defer other.Close(context.Background())

	if other.opts.Name == b.opts.Name {
		t.Error("Clone did not assign a distinct name")
	}
	if _, err := os.Stat(filepath.Join(dir, other.opts.Name+".db")); err != nil {
		t.Errorf("clone database file missing: %v", err)
	}
}

func TestBackendRegistered(t *testing.T) {
	found := false
	for _, n := range storage.Registered() {
		if n == "hashstore" {
			found = true
		}
	}
	if !found {
		t.Error("hashstore backend not registered")
	}
}
