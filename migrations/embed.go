// Package migrations embeds all SQL migration files so the binary is
// self-contained and starts from any working directory.
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS

// Schema file names per storage engine.
const (
	SQLiteSchema   = "001_initial_schema.sql"
	PostgresSchema = "001_initial_schema_postgres.sql"
)

// Schema reads the named migration file. It panics on a missing name, which
// can only happen through a build error.
func Schema(name string) string {
	b, err := FS.ReadFile(name)
	if err != nil {
		panic("migrations: " + err.Error())
	}
	return string(b)
}
