// Package migrations embeds SQL migration files and provides a function to apply them.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the embedded SQL migration files, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Supported dialects.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// Dir returns the embedded directory holding migrations for dialect.
func Dir(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported dialect %q", dialect)
}

// Setup points goose at the embedded files for dialect and returns the
// directory to pass to goose commands.
func Setup(dialect string) (string, error) {
	dir, err := Dir(dialect)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("set dialect: %w", err)
	}
	return dir, nil
}

// Run applies all pending migrations to the given database.
func Run(db *sql.DB, dialect string) error {
	dir, err := Setup(dialect)
	if err != nil {
		return err
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
