package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
)

// newTestDB connects to ACME_TEST_DATABASE_URL and empties every table.
// Tests that need a live server are skipped when it is unset.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("ACME_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ACME_TEST_DATABASE_URL not set; skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	db, err := New(ctx, url, Options{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.pool.Exec(ctx, `TRUNCATE favorites, skills, users`)
	require.NoError(t, err)
	return db
}

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	fk := &pgconn.PgError{Code: "23503"}
	other := errors.New("connection reset")

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isForeignKeyViolation(unique))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isUniqueViolation(other))
	assert.False(t, isForeignKeyViolation(other))

	_, constraint := sqlState(&pgconn.PgError{Code: "23503", ConstraintName: constraintFavoriteUser})
	assert.Equal(t, "favorites_user_id_fkey", constraint)

	code, constraint := sqlState(unique)
	assert.Equal(t, "23505", code)
	assert.Equal(t, "users_username_key", constraint)
}

func TestParseID(t *testing.T) {
	_, ok := parseID("8f4c7a1e-2f0d-4b5e-9c1a-3d2b1a0f9e8d")
	assert.True(t, ok)

	_, ok = parseID("not-a-uuid")
	assert.False(t, ok)
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	moe := &model.User{Username: "moe", PasswordHash: "h"}
	require.NoError(t, db.Users().Create(ctx, moe))
	assert.NotEmpty(t, moe.ID)

	got, err := db.Users().GetByID(ctx, moe.ID)
	require.NoError(t, err)
	assert.Equal(t, "moe", got.Username)
	assert.Nil(t, got.GitHubID)

	err = db.Users().Create(ctx, &model.User{Username: "moe"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = db.Users().GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = db.Users().GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	ghID := int64(77)
	octo := &model.User{Username: "octocat", GitHubID: &ghID}
	require.NoError(t, db.Users().Create(ctx, octo))
	byGH, err := db.Users().GetByGitHubID(ctx, ghID)
	require.NoError(t, err)
	assert.Equal(t, octo.ID, byGH.ID)

	users, err := db.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "moe", users[0].Username)
	assert.Equal(t, "octocat", users[1].Username)
}

func TestFavorites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	moe := &model.User{Username: "moe"}
	lucy := &model.User{Username: "lucy"}
	require.NoError(t, db.Users().Create(ctx, moe))
	require.NoError(t, db.Users().Create(ctx, lucy))
	foo := &model.Skill{Name: "foo"}
	bar := &model.Skill{Name: "bar"}
	require.NoError(t, db.Skills().Create(ctx, foo))
	require.NoError(t, db.Skills().Create(ctx, bar))

	first := &model.Favorite{UserID: moe.ID, SkillID: foo.ID}
	require.NoError(t, db.Favorites().Create(ctx, first))
	require.NoError(t, db.Favorites().Create(ctx, &model.Favorite{UserID: moe.ID, SkillID: bar.ID}))

	err := db.Favorites().Create(ctx, &model.Favorite{UserID: moe.ID, SkillID: foo.ID})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	err = db.Favorites().Create(ctx, &model.Favorite{UserID: moe.ID, SkillID: "00000000-0000-0000-0000-000000000000"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// A token for a user that is gone is not a missing skill.
	err = db.Favorites().Create(ctx, &model.Favorite{UserID: "00000000-0000-0000-0000-000000000000", SkillID: foo.ID})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)

	favs, err := db.Favorites().ListByUser(ctx, moe.ID)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, foo.ID, favs[0].SkillID)
	assert.Equal(t, bar.ID, favs[1].SkillID)

	// Non-owner delete is a no-op.
	require.NoError(t, db.Favorites().Delete(ctx, lucy.ID, first.ID))
	favs, _ = db.Favorites().ListByUser(ctx, moe.ID)
	assert.Len(t, favs, 2)

	require.NoError(t, db.Favorites().Delete(ctx, moe.ID, first.ID))
	require.NoError(t, db.Favorites().Delete(ctx, moe.ID, "garbage"))
	favs, _ = db.Favorites().ListByUser(ctx, moe.ID)
	assert.Len(t, favs, 1)
}

func TestFavorites_ConcurrentDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	moe := &model.User{Username: "moe"}
	require.NoError(t, db.Users().Create(ctx, moe))
	foo := &model.Skill{Name: "foo"}
	require.NoError(t, db.Skills().Create(ctx, foo))

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.Favorites().Create(ctx, &model.Favorite{UserID: moe.ID, SkillID: foo.ID})
		}()
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, created)

	favs, err := db.Favorites().ListByUser(ctx, moe.ID)
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}
