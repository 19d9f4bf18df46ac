// Package schema embeds the per-dialect DDL for the interned-node
// triple store: Resources/Bnodes/Literals hold the distinct terms,
// Models names each open graph, and one Statements_<model> table per
// open model holds its (subject, predicate, object, context) rows.
package schema

import _ "embed"

//go:embed sqlite.sql
var SQLite string

//go:embed postgres.sql
var Postgres string

//go:embed mysql.sql
var MySQL string

// StatementsDDL returns the CREATE TABLE for a model's statement
// table, named Statements_<model>. The BIGINT column type works
// unmodified across all three dialects.
func StatementsDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + `(
  subject BIGINT NOT NULL,
  predicate BIGINT NOT NULL,
  object BIGINT NOT NULL,
  context BIGINT
)`
}
