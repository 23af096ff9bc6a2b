package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/acme-skills/internal/apperror"
)

// SeedOptions controls what Seed writes on startup.
type SeedOptions struct {
	// Skills are provisioned into the catalog; existing names are kept.
	Skills []string
	// DemoUsers creates the demo accounts and their favorites.
	DemoUsers bool
}

type demoUser struct {
	username string
	password string
}

var demoUsers = []demoUser{
	{"moe", "m_pw"},
	{"lucy", "l_pw"},
	{"ethyl", "e_pw"},
	{"curly", "c_pw"},
}

// demoFavorites maps a demo username to the skill names it favorites.
var demoFavorites = map[string][]string{
	"moe": {"foo"},
}

// Seed provisions the catalog and, if asked, the demo accounts. It is safe
// to run on every start: anything that already exists is left alone.
func Seed(
	ctx context.Context,
	catalog *CatalogService,
	accounts *AuthService,
	favorites *FavoriteService,
	opts SeedOptions,
	logger *slog.Logger,
) error {
	if _, err := catalog.Provision(ctx, opts.Skills); err != nil {
		return fmt.Errorf("service/seed: %w", err)
	}

	if !opts.DemoUsers {
		return nil
	}

	skills, err := catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("service/seed: %w", err)
	}
	skillIDs := make(map[string]string, len(skills))
	for _, skill := range skills {
		skillIDs[skill.Name] = skill.ID
	}

	for _, du := range demoUsers {
		userID, err := ensureUser(ctx, accounts, du)
		if err != nil {
			return err
		}

		for _, name := range demoFavorites[du.username] {
			skillID, ok := skillIDs[name]
			if !ok {
				logger.Warn("demo favorite skipped: skill not in catalog",
					slog.String("username", du.username),
					slog.String("skill", name),
				)
				continue
			}
			if _, err := favorites.Add(ctx, userID, skillID); err != nil && !errors.Is(err, apperror.ErrConflict) {
				return fmt.Errorf("service/seed: favoriting %q for %q: %w", name, du.username, err)
			}
		}
	}

	logger.Info("demo users seeded", slog.Int("count", len(demoUsers)))
	return nil
}

func ensureUser(ctx context.Context, accounts *AuthService, du demoUser) (string, error) {
	res, err := accounts.Register(ctx, du.username, du.password)
	if err == nil {
		return res.User.ID, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return "", fmt.Errorf("service/seed: registering %q: %w", du.username, err)
	}

	existing, err := accounts.users.GetByUsername(ctx, du.username)
	if err != nil {
		return "", fmt.Errorf("service/seed: looking up %q: %w", du.username, err)
	}
	return existing.ID, nil
}
