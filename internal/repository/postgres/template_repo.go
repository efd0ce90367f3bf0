package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/models/template"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type TemplateRepo struct {
	pool *pgxpool.Pool
}

func (s *Storage) Templates() *TemplateRepo {
	return &TemplateRepo{pool: s.pool}
}

const templateColumns = `uuid, owner_id, title, description, priority,
	estimate_minutes, rule, active, next_due, created_at, updated_at`

func scanTemplate(row pgx.Row) (*template.Template, error) {
	t := &template.Template{}
	err := row.Scan(&t.UUID, &t.OwnerID, &t.Title, &t.Description, &t.Priority,
		&t.EstimateMinutes, &t.Rule, &t.Active, &t.NextDue, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateRepo) Create(ctx context.Context, t *template.Template) error {
	start := time.Now()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO templates (uuid, owner_id, title, description, priority,
			estimate_minutes, rule, active, next_due, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.UUID, t.OwnerID, t.Title, t.Description, t.Priority,
		t.EstimateMinutes, t.Rule, t.Active, t.NextDue, t.CreatedAt,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить шаблон", err)
		return fmt.Errorf("добавление шаблона: %w", err)
	}

	slowQueryWarn("templates.create", start, 50*time.Millisecond)
	return nil
}

func (s *TemplateRepo) Update(ctx context.Context, t *template.Template) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE templates
		 SET title = $1, description = $2, priority = $3, estimate_minutes = $4,
			 rule = $5, active = $6, next_due = $7, updated_at = NOW()
		 WHERE uuid = $8`,
		t.Title, t.Description, t.Priority, t.EstimateMinutes,
		t.Rule, t.Active, t.NextDue, t.UUID,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить шаблон", err)
		return fmt.Errorf("обновление шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE uuid = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("получение шаблона: %w", err)
	}
	return t, nil
}

func (s *TemplateRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*template.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение шаблонов: %w", err)
	}
	defer rows.Close()

	res := []*template.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования шаблона", zap.Error(err))
			continue
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return res, nil
}

func (s *TemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
