package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

type FavoriteDB struct {
	pool *pgxpool.Pool
}

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

// Create inserts fav. The unique_user_id_and_skill_id constraint rejects a
// second (user, skill) pair even when both inserts race; the loser gets
// SQLSTATE 23505 and a Conflict.
func (f *FavoriteDB) Create(ctx context.Context, fav *model.Favorite) error {
	userID, ok := parseID(fav.UserID)
	if !ok {
		return apperror.Unauthorized("user account no longer exists")
	}
	skillID, ok := parseID(fav.SkillID)
	if !ok {
		return apperror.NotFound("skill", fav.SkillID)
	}

	id := uuid.New()
	_, err := f.pool.Exec(ctx,
		`INSERT INTO favorites (id, user_id, skill_id) VALUES ($1, $2, $3)`,
		id, userID, skillID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.ConflictMsg("skill is already a favorite")
		case isForeignKeyViolation(err):
			if _, constraint := sqlState(err); constraint == constraintFavoriteUser {
				return apperror.Unauthorized("user account no longer exists")
			}
			return apperror.NotFound("skill", fav.SkillID)
		}
		return fmt.Errorf("postgres: inserting favorite (user=%s, skill=%s): %w", fav.UserID, fav.SkillID, err)
	}

	fav.ID = id.String()
	return nil
}

func (f *FavoriteDB) ListByUser(ctx context.Context, userID string) ([]model.Favorite, error) {
	favs := make([]model.Favorite, 0)

	uid, ok := parseID(userID)
	if !ok {
		return favs, nil
	}

	rows, err := f.pool.Query(ctx,
		`SELECT id::text, user_id::text, skill_id::text
		 FROM favorites WHERE user_id = $1 ORDER BY created_at, id`, uid)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing favorites for %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var fav model.Favorite
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.SkillID); err != nil {
			return nil, fmt.Errorf("postgres: scanning favorite row: %w", err)
		}
		favs = append(favs, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating favorite rows: %w", err)
	}
	return favs, nil
}

// Delete is scoped to userID in the WHERE clause; a foreign or unknown id
// deletes nothing.
func (f *FavoriteDB) Delete(ctx context.Context, userID, favoriteID string) error {
	uid, ok := parseID(userID)
	if !ok {
		return nil
	}
	fid, ok := parseID(favoriteID)
	if !ok {
		return nil
	}

	if _, err := f.pool.Exec(ctx,
		`DELETE FROM favorites WHERE id = $1 AND user_id = $2`, fid, uid); err != nil {
		return fmt.Errorf("postgres: deleting favorite %s: %w", favoriteID, err)
	}
	return nil
}
