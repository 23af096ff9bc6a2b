package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/model"
	"github.com/sakif/acme-skills/internal/repository"
)

// SkillDB is the SQLite SkillRepository.
type SkillDB struct {
	conn *sql.DB
}

var _ repository.SkillRepository = (*SkillDB)(nil)

// Create inserts a skill and sets skill.ID. Names are unique.
func (s *SkillDB) Create(ctx context.Context, skill *model.Skill) error {
	id := xid.New().String()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO skills (id, name) VALUES (?, ?)`, id, skill.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMsg(fmt.Sprintf("skill %q already exists", skill.Name))
		}
		return fmt.Errorf("sqlite: inserting skill %q: %w", skill.Name, err)
	}

	skill.ID = id
	return nil
}

func (s *SkillDB) GetByID(ctx context.Context, id string) (*model.Skill, error) {
	var skill model.Skill
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name FROM skills WHERE id = ?`, id,
	).Scan(&skill.ID, &skill.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("skill", id)
		}
		return nil, fmt.Errorf("sqlite: getting skill %s: %w", id, err)
	}
	return &skill, nil
}

// List returns the whole catalog ordered by name, so repeated calls return
// the same order.
func (s *SkillDB) List(ctx context.Context) ([]model.Skill, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name FROM skills ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing skills: %w", err)
	}
	defer rows.Close()

	skills := make([]model.Skill, 0)
	for rows.Next() {
		var skill model.Skill
		if err := rows.Scan(&skill.ID, &skill.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning skill row: %w", err)
		}
		skills = append(skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating skill rows: %w", err)
	}

	return skills, nil
}
