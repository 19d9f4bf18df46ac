package hashstore

import (
	"fmt"
	"strconv"

	"github.com/boutros/sopp/storage"
)

// Options configures a hashstore Backend, parsed from the
// storage.Options map Backend.Open receives (already split from the
// mini key='value' option string by the caller before it reaches the
// backend).
type Options struct {
	HashType        string // required: "bdb" (BoltMultimap) or "mem" (MemMultimap)
	Dir             string // directory holding the database file(s), "bdb" only
	Name            string // database file base name, "bdb" only
	Mode            uint32 // file mode, default 0644
	Write           bool   // default true
	New             bool   // truncate/create fresh
	Contexts        bool   // maintain the optional contexts index
	IndexPredicates bool   // maintain the optional p2so index
}

func defaultOptions() Options {
	return Options{Mode: 0644, Write: true, Name: "sopp"}
}

func truthy(s string) bool { return s == "yes" || s == "true" }

// parseOptions reads storage.Options into a hashstore Options,
// applying defaults and validating hash-type is present.
func parseOptions(raw storage.Options) (Options, error) {
	opts := defaultOptions()
	if v, ok := raw["hash-type"]; ok {
		opts.HashType = v
	}
	if v, ok := raw["dir"]; ok {
		opts.Dir = v
	}
	if v, ok := raw["name"]; ok {
		opts.Name = v
	}
	if v, ok := raw["mode"]; ok {
		m, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return opts, fmt.Errorf("hashstore: invalid mode %q: %w", v, err)
		}
		opts.Mode = uint32(m)
	}
	if v, ok := raw["write"]; ok {
		opts.Write = v != "no" && v != "false"
	}
	if v, ok := raw["new"]; ok {
		opts.New = truthy(v)
	}
	if v, ok := raw["contexts"]; ok {
		opts.Contexts = truthy(v)
	}
	if v, ok := raw["index-predicates"]; ok {
		opts.IndexPredicates = truthy(v)
	}
	if opts.HashType == "" {
		return opts, fmt.Errorf("hashstore: hash-type option is required")
	}
	return opts, nil
}
