// Package postgres implements the repository interfaces on PostgreSQL using
// a pgx connection pool.
//
// Row ids are UUIDs generated in Go with google/uuid and stored in UUID
// columns. Ids arriving from URLs are parsed first: a string that is not a
// UUID cannot name any row, so lookups report NotFound and deletes are
// no-ops instead of surfacing a driver cast error.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sakif/acme-skills/internal/repository"
	"github.com/sakif/acme-skills/internal/repository/migrations"
)

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintFavoriteUser = "favorites_user_id_fkey"
)

const applicationName = "acme-skills"

// DB owns the pgx pool and hands out the repositories that share it.
type DB struct {
	pool *pgxpool.Pool

	users     *UserDB
	skills    *SkillDB
	favorites *FavoriteDB
}

var _ repository.Store = (*DB)(nil)

// Options tunes the pool. Zero values keep pgx defaults.
type Options struct {
	MaxConns int32
}

// New connects to databaseURL, verifies the connection and applies the
// embedded migrations.
func New(ctx context.Context, databaseURL string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{
		pool:      pool,
		users:     &UserDB{pool: pool},
		skills:    &SkillDB{pool: pool},
		favorites: &FavoriteDB{pool: pool},
	}, nil
}

// migrate runs goose through a database/sql view of the pool. Closing that
// view does not close the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := migrations.Up(ctx, sqlDB, goose.DialectPostgres); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (db *DB) Users() repository.UserRepository         { return db.users }
func (db *DB) Skills() repository.SkillRepository       { return db.skills }
func (db *DB) Favorites() repository.FavoriteRepository { return db.favorites }

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func sqlState(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := sqlState(err)
	return code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _ := sqlState(err)
	return code == codeForeignKeyViolation
}

// parseID reports whether raw is a UUID, and returns it.
func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	return id, err == nil
}
