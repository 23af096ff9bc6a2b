// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the binary and stores
// everything in a single file. No separate database server to run. It is the
// default backend; PostgreSQL (package postgres) is available for
// deployments that already run one.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite: no CGo, no C
// compiler, cross-compilation just works.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/sakif/acme-skills/internal/repository"
	"github.com/sakif/acme-skills/internal/repository/migrations"

	// Registers the "sqlite" driver with database/sql and exposes the
	// driver's error type for constraint detection.
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// connPragmas are applied by the driver to EVERY connection it opens.
//
// Running "PRAGMA foreign_keys=ON" once through db.Exec would only reach the
// one pooled connection that happened to run it; passing the pragmas in the
// DSN makes them part of connection setup.
//   - foreign_keys: SQLite ships with FK enforcement OFF
//   - busy_timeout: wait (ms) for a competing writer instead of failing with SQLITE_BUSY
//   - journal_mode=WAL: readers don't block the writer
var connPragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
}

// DB wraps a sql.DB connection pool and hands out the repositories that
// share it.
type DB struct {
	conn *sql.DB

	users     *UserDB
	skills    *SkillDB
	favorites *FavoriteDB
}

// compile-time check that *DB is a complete backend
var _ repository.Store = (*DB)(nil)

// New opens (creating if needed) the SQLite database at dbPath and runs the
// embedded migrations.
//
// dbPath examples:
//   - "data/acme.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database (lost on close)
func New(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows a single writer at a time. One pooled connection
	// serialises writers inside the process and also keeps ":memory:"
	// databases coherent (each connection would otherwise get its own).
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if err := migrations.Up(ctx, conn, goose.DialectSQLite3); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &DB{
		conn:      conn,
		users:     &UserDB{conn: conn},
		skills:    &SkillDB{conn: conn},
		favorites: &FavoriteDB{conn: conn},
	}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(connPragmas, "&")
}

func (db *DB) Users() repository.UserRepository         { return db.users }
func (db *DB) Skills() repository.SkillRepository       { return db.skills }
func (db *DB) Favorites() repository.FavoriteRepository { return db.favorites }

// Ping checks that the database file is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool. Call it exactly once, on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// isUniqueViolation reports whether err is SQLite refusing a row because of
// a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed") ||
		isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, "PRIMARY KEY constraint failed")
}

// isForeignKeyViolation reports whether err is a dangling REFERENCES value.
func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

// isConstraint matches the extended result code when the driver reports one,
// and falls back to the primary SQLITE_CONSTRAINT code plus SQLite's fixed
// message text when it does not.
func isConstraint(err error, extended int, text string) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == extended {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), text)
}
