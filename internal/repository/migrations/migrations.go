// Package migrations embeds the schema migrations for each SQL dialect and
// applies them with goose.
//
// Each dialect has its own directory of numbered goose files
// (00001_init.sql, 00002_..., ...). The files are compiled into the binary,
// so a deployment never needs the source tree next to it.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Up applies every pending migration for dialect to db.
//
// goose.NewProvider is used instead of the package-level goose.Up so no
// global state (base FS, dialect) is shared between stores. Tests open many
// SQLite databases in parallel and rely on that.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	dir, err := dirFor(dialect)
	if err != nil {
		return err
	}

	fsys, err := fs.Sub(files, dir)
	if err != nil {
		return fmt.Errorf("migrations: opening %s: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: creating provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrations: applying %s migrations: %w", dir, err)
	}
	return nil
}

func dirFor(dialect goose.Dialect) (string, error) {
	switch dialect {
	case goose.DialectSQLite3:
		return "sqlite", nil
	case goose.DialectPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}
