package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

// FavoriteDB is the SQLite FavoriteRepository.
type FavoriteDB struct {
	conn *sql.DB
}

var _ repository.FavoriteRepository = (*FavoriteDB)(nil)

// Create inserts a favorite and sets fav.ID.
//
// RACE HANDLING:
// Two simultaneous "favorite skill X" requests from the same user both reach
// this INSERT. The UNIQUE (user_id, skill_id) constraint lets exactly one of
// them through; the other gets SQLITE_CONSTRAINT_UNIQUE, which is returned
// as a Conflict. No check-then-insert happens in Go.
func (f *FavoriteDB) Create(ctx context.Context, fav *model.Favorite) error {
	id := xid.New().String()

	_, err := f.conn.ExecContext(ctx,
		`INSERT INTO favorites (id, user_id, skill_id) VALUES (?, ?, ?)`,
		id, fav.UserID, fav.SkillID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.ConflictMsg("skill is already a favorite")
		case isForeignKeyViolation(err):
			return f.missingReference(ctx, fav)
		}
		return fmt.Errorf("sqlite: inserting favorite (user=%s, skill=%s): %w", fav.UserID, fav.SkillID, err)
	}

	fav.ID = id
	return nil
}

// missingReference works out which side of a failed foreign key is gone.
// SQLite does not name the violated constraint, so the user row is looked
// up directly. A token whose user no longer exists is Unauthorized; any
// other case is the skill.
func (f *FavoriteDB) missingReference(ctx context.Context, fav *model.Favorite) error {
	var exists bool
	err := f.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, fav.UserID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking user %s: %w", fav.UserID, err)
	}
	if !exists {
		return apperror.Unauthorized("user account no longer exists")
	}
	return apperror.NotFound("skill", fav.SkillID)
}

// ListByUser returns the user's favorites in insertion order.
// rowid is SQLite's implicit, monotonically assigned row number.
func (f *FavoriteDB) ListByUser(ctx context.Context, userID string) ([]model.Favorite, error) {
	rows, err := f.conn.QueryContext(ctx,
		`SELECT id, user_id, skill_id FROM favorites WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites for %s: %w", userID, err)
	}
	defer rows.Close()

	favs := make([]model.Favorite, 0)
	for rows.Next() {
		var fav model.Favorite
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.SkillID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite row: %w", err)
		}
		favs = append(favs, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating favorite rows: %w", err)
	}

	return favs, nil
}

// Delete removes a favorite owned by userID. The user_id predicate is part
// of the statement, so a valid favorite id belonging to someone else matches
// zero rows and nothing happens.
func (f *FavoriteDB) Delete(ctx context.Context, userID, favoriteID string) error {
	_, err := f.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE id = ? AND user_id = ?`, favoriteID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting favorite %s: %w", favoriteID, err)
	}
	return nil
}
