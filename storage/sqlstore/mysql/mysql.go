// Package mysql registers the "mysql" storage backend: sqlstore's
// generic interned-node engine wired to go-sql-driver/mysql.
package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/boutros/sopp/storage"
	"github.com/boutros/sopp/storage/sqlstore"
	"github.com/boutros/sopp/storage/sqlstore/schema"
)

func init() {
	storage.Register("mysql", func() storage.Backend { return sqlstore.New(dialect{}) })
}

type dialect struct{}

func (dialect) Name() string             { return "mysql" }
func (dialect) DriverName() string       { return "mysql" }
func (dialect) Placeholder(i int) string { return "?" }
func (dialect) Schema() string           { return schema.MySQL }

// duplicateEntry is MySQL's error number for a unique-key violation
// (ER_DUP_ENTRY, 1062).
const duplicateEntry = 1062

func (dialect) IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == duplicateEntry
}
