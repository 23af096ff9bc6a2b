// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in the sqlite and postgres subpackages.
//
// Every implementation translates storage-specific failures into apperror
// values: a missing row becomes apperror.ErrNotFound and a UNIQUE constraint
// violation becomes apperror.ErrConflict. Services never see driver errors.
package repository

import (
	"context"

	"github.com/sakif/acme-skills/internal/model"
)

type UserRepository interface {
	// Create inserts user and sets user.ID. A taken username (or GitHub id)
	// is reported as apperror.ErrConflict by the UNIQUE constraint.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type SkillRepository interface {
	// Create inserts skill and sets skill.ID; a duplicate name is ErrConflict.
	Create(ctx context.Context, skill *model.Skill) error
	GetByID(ctx context.Context, id string) (*model.Skill, error)
	// List returns every skill ordered by name.
	List(ctx context.Context) ([]model.Skill, error)
}

type FavoriteRepository interface {
	// Create inserts fav and sets fav.ID. A duplicate (user_id, skill_id)
	// pair is ErrConflict; a dangling skill or user reference is ErrNotFound.
	Create(ctx context.Context, fav *model.Favorite) error
	// ListByUser returns the user's favorites in creation order.
	ListByUser(ctx context.Context, userID string) ([]model.Favorite, error)
	// Delete removes the favorite only if it belongs to userID. Deleting
	// something that does not exist (or is someone else's) is not an error.
	Delete(ctx context.Context, userID, favoriteID string) error
}

// Store bundles the repositories of one backend together with the pool
// that serves them.
type Store interface {
	Users() UserRepository
	Skills() SkillRepository
	Favorites() FavoriteRepository
	Ping(ctx context.Context) error
	Close() error
}
