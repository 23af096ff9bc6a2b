package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

type UserDB struct {
	pool *pgxpool.Pool
}

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id::text, username, password_hash, github_id`

// Create inserts user and sets user.ID. users.username and users.github_id
// are UNIQUE; the constraint name tells the two conflicts apart.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	id := uuid.New()

	_, err := u.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, github_id) VALUES ($1, $2, $3, $4)`,
		id, user.Username, user.PasswordHash, user.GitHubID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if _, constraint := sqlState(err); constraint == "users_github_id_key" {
				return apperror.ConflictMsg("github account is already linked to a user")
			}
			return apperror.ConflictMsg(fmt.Sprintf("username %q already exists", user.Username))
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}

	user.ID = id.String()
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	row := u.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
	return scanUser(row, "id", id)
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row, "username", username)
}

func (u *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE github_id = $1`, githubID)
	return scanUser(row, "github_id", strconv.FormatInt(githubID, 10))
}

// List orders by byte value (COLLATE "C") so the order matches SQLite's.
func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.GitHubID); err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating user rows: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row, key, value string) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.GitHubID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("postgres: getting user by %s %s: %w", key, value, err)
	}
	return &user, nil
}
