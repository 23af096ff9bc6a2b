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

// CatalogService serves the read-only skill catalog.
type CatalogService struct {
	skills repository.SkillRepository
	logger *slog.Logger
}

func NewCatalogService(skills repository.SkillRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{skills: skills, logger: logger}
}

// List returns every skill ordered by name.
func (s *CatalogService) List(ctx context.Context) ([]model.Skill, error) {
	skills, err := s.skills.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing skills: %w", err)
	}
	return skills, nil
}

// Provision creates each named skill that does not exist yet and returns
// how many were created. Blank names are skipped. Running it twice with the
// same names creates nothing the second time.
func (s *CatalogService) Provision(ctx context.Context, names []string) (int, error) {
	created := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		err := s.skills.Create(ctx, &model.Skill{Name: name})
		switch {
		case err == nil:
			created++
		case errors.Is(err, apperror.ErrConflict):
			// already provisioned
		default:
			return created, fmt.Errorf("service/catalog: provisioning %q: %w", name, err)
		}
	}

	if created > 0 {
		s.logger.Info("skills provisioned", slog.Int("created", created))
	}
	return created, nil
}
