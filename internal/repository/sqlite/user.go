package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

// UserDB is the SQLite UserRepository.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new user and sets user.ID.
//
// There is no "SELECT ... WHERE username = ?" beforehand: two concurrent
// registrations for the same name would both pass such a check. The UNIQUE
// constraint on users.username decides, and its violation becomes a Conflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	id := xid.New().String()

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, github_id)
		 VALUES (?, ?, ?, ?)`,
		id,
		user.Username,
		user.PasswordHash,
		user.GitHubID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "github_id") {
				return apperror.ConflictMsg("github account is already linked to a user")
			}
			return apperror.ConflictMsg(fmt.Sprintf("username %q already exists", user.Username))
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by internal id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, github_id FROM users WHERE id = ?`, id)
	return scanUser(row, "id", id)
}

// GetByUsername retrieves a user by username (exact, case-sensitive match).
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, github_id FROM users WHERE username = ?`, username)
	return scanUser(row, "username", username)
}

// GetByGitHubID retrieves the user linked to a GitHub account.
func (u *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, github_id FROM users WHERE github_id = ?`, githubID)
	return scanUser(row, "github_id", strconv.FormatInt(githubID, 10))
}

// List returns every user ordered by username.
func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT id, username, password_hash, github_id FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row, key, value string) (*model.User, error) {
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", key, value, err)
	}
	return user, nil
}

func scanUserRow(row rowScanner) (*model.User, error) {
	var (
		user     model.User
		githubID sql.NullInt64
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &githubID); err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		user.GitHubID = &id
	}
	return &user, nil
}
