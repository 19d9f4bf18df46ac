package sqlstore

// Dialect supplies the handful of places the three SQL backends
// differ: driver name, bind-parameter syntax, schema DDL and how to
// recognize a unique-constraint violation on interned-node insert.
type Dialect interface {
	Name() string
	DriverName() string
	// Placeholder returns the bind-parameter text for the i'th
	// parameter in a statement (1-indexed): "?" for SQLite/MySQL,
	// "$1".."$n" for Postgres.
	Placeholder(i int) string
	// Schema is the dialect's Resources/Bnodes/Literals/Models DDL.
	Schema() string
	// IsUniqueViolation reports whether err is the driver-specific
	// unique-constraint error raised by a duplicate interned-node
	// insert (and so safe to swallow).
	IsUniqueViolation(err error) bool
}
