// Package postgres registers the "postgresql" storage backend:
// sqlstore's generic interned-node engine wired to lib/pq.
package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/storage/sqlstore"
	"github.com/boutros/sopp/storage/sqlstore/schema"
)

func init() {
	storage.Register("postgresql", func() storage.Backend { return sqlstore.New(dialect{}) })
}

type dialect struct{}

func (dialect) Name() string             { return "postgresql" }
func (dialect) DriverName() string       { return "postgres" }
func (dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }
func (dialect) Schema() string           { return schema.Postgres }

// uniqueViolation is Postgres's SQLSTATE code for a unique-constraint
// violation (23505).
const uniqueViolation = "23505"

func (dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation
}
