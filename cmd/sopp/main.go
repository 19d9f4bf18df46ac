package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/boutros/sopp"
	"github.com/boutros/sopp/parser"
	"github.com/boutros/sopp/rdf"
	"github.com/boutros/sopp/storage"
	_ "github.com/boutros/sopp/storage/hashstore"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("sopp: ")

	importF := flag.String("i", "", "import nt/ttl file into the database")
	baseURI := flag.String("base", "http://localhost/", "base URI handed to the parser on import and stripped from URIs on dump")
	dump := flag.Bool("d", false, "dump the database as turtle to standard out")
	backendName := flag.String("backend", "hashstore", "storage backend to open")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: sopp <flags> <database directory>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(flag.Args()) < 1 || *baseURI == "" {
		flag.Usage()
		os.Exit(1)
	}
	dir := flag.Args()[0]

	backend, err := storage.New(*backendName)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	opts := storage.Options{
		"hash-type": "bdb",
		"dir":       dir,
		"name":      "sopp",
		"write":     "true",
	}
	if _, statErr := os.Stat(dir + "/sopp.db"); os.IsNotExist(statErr) {
		opts["new"] = "true"
	}
	if err := backend.Open(ctx, opts); err != nil {
		log.Fatal(err)
	}

	m, err := sopp.New(backend, sopp.ModelOptions{Name: "cli"})
	if err != nil {
		log.Fatal(err)
	}
	defer m.RemoveReference()

	if *importF != "" {
		f, err := os.Open(*importF)
		if err != nil {
			log.Fatal(err)
		}
		_, err = m.Load(ctx, parser.Source{IRI: *importF, Reader: f}, sopp.LoadOptions{Base: rdf.NewURI(*baseURI)})
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
		n, err := m.Size()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("database now holds %d triples", n)
	}

	if *dump {
		s, err := backend.Serialize(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer s.Close()
		g := rdf.NewGraph()
		for s.Next(ctx) {
			g.Insert(s.Triple())
		}
		if err := s.Err(); err != nil {
			log.Fatal(err)
		}
		fmt.Print(g.Serialize(rdf.Turtle, *baseURI))
	}
}
