// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never a concrete *sqlite.DB or
// *postgres.DB, so the same code runs against either backend and against
// the in-memory fakes used in tests. They return apperror values; the
// handler layer decides what those mean in HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

// FavoriteService manages the per-user favorites ledger.
//
// Every method takes the user id of the authenticated caller. Ownership of
// the /users/{id} path has already been enforced by the router; this layer
// only ever touches rows belonging to userID.
type FavoriteService struct {
	favorites repository.FavoriteRepository
	skills    repository.SkillRepository
	logger    *slog.Logger
}

func NewFavoriteService(
	favorites repository.FavoriteRepository,
	skills repository.SkillRepository,
	logger *slog.Logger,
) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		skills:    skills,
		logger:    logger,
	}
}

// ListForUser returns the user's favorites in creation order. A user
// without favorites gets an empty, non-nil slice.
func (s *FavoriteService) ListForUser(ctx context.Context, userID string) ([]model.Favorite, error) {
	favs, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/favorite: listing favorites for %s: %w", userID, err)
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	return favs, nil
}

// Add favorites skillID for userID.
//
//   - empty skill id            → apperror.ErrValidation
//   - skill does not exist      → apperror.ErrNotFound
//   - pair already favorited    → apperror.ErrConflict
//
// The duplicate check is NOT done here. Two concurrent Adds for the same
// pair would both pass a lookup; the storage constraint rejects the second
// insert and the repository reports it as a Conflict.
func (s *FavoriteService) Add(ctx context.Context, userID, skillID string) (*model.Favorite, error) {
	skillID = strings.TrimSpace(skillID)
	if skillID == "" {
		return nil, apperror.ValidationFailed("skill_id", "skill_id is required")
	}

	if _, err := s.skills.GetByID(ctx, skillID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/favorite: looking up skill %s: %w", skillID, err)
	}

	fav := &model.Favorite{UserID: userID, SkillID: skillID}
	if err := s.favorites.Create(ctx, fav); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/favorite: creating favorite: %w", err)
	}

	s.logger.Info("favorite added",
		slog.String("userID", userID),
		slog.String("skillID", skillID),
		slog.String("favoriteID", fav.ID),
	)

	return fav, nil
}

// Remove deletes favoriteID if it belongs to userID. Anything else
// (unknown id, someone else's favorite) is a silent no-op.
func (s *FavoriteService) Remove(ctx context.Context, userID, favoriteID string) error {
	if err := s.favorites.Delete(ctx, userID, strings.TrimSpace(favoriteID)); err != nil {
		return fmt.Errorf("service/favorite: removing favorite %s: %w", favoriteID, err)
	}

	s.logger.Debug("favorite removed",
		slog.String("userID", userID),
		slog.String("favoriteID", favoriteID),
	)
	return nil
}
