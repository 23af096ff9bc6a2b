package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

type SkillDB struct {
	pool *pgxpool.Pool
}

var _ repository.SkillRepository = (*SkillDB)(nil)

func (s *SkillDB) Create(ctx context.Context, skill *model.Skill) error {
	id := uuid.New()

	_, err := s.pool.Exec(ctx, `INSERT INTO skills (id, name) VALUES ($1, $2)`, id, skill.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg(fmt.Sprintf("skill %q already exists", skill.Name))
		}
		return fmt.Errorf("postgres: inserting skill %q: %w", skill.Name, err)
	}

	skill.ID = id.String()
	return nil
}

func (s *SkillDB) GetByID(ctx context.Context, id string) (*model.Skill, error) {
	sid, ok := parseID(id)
	if !ok {
		return nil, apperror.NotFound("skill", id)
	}

	var skill model.Skill
	err := s.pool.QueryRow(ctx, `SELECT id::text, name FROM skills WHERE id = $1`, sid).
		Scan(&skill.ID, &skill.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("skill", id)
		}
		return nil, fmt.Errorf("postgres: getting skill %s: %w", id, err)
	}
	return &skill, nil
}

func (s *SkillDB) List(ctx context.Context) ([]model.Skill, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name FROM skills ORDER BY name COLLATE "C", id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing skills: %w", err)
	}
	defer rows.Close()

	skills := make([]model.Skill, 0)
	for rows.Next() {
		var skill model.Skill
		if err := rows.Scan(&skill.ID, &skill.Name); err != nil {
			return nil, fmt.Errorf("postgres: scanning skill row: %w", err)
		}
		skills = append(skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating skill rows: %w", err)
	}
	return skills, nil
}
