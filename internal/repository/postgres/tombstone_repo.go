package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/models/task"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TombstoneRepo хранит снимок задачи в jsonb - состав полей задачи может
// меняться, схему tombstone это не трогает
type TombstoneRepo struct {
	pool *pgxpool.Pool
}

func (s *Storage) Tombstones() *TombstoneRepo {
	return &TombstoneRepo{pool: s.pool}
}

func (s *TombstoneRepo) Create(ctx context.Context, t *tombstone.Tombstone) error {
	snapshot, err := json.Marshal(t.Snapshot)
	if err != nil {
		return fmt.Errorf("сериализация снимка: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tombstones (uuid, task_id, owner_id, snapshot, recoverable_until, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		t.UUID, t.TaskID, t.OwnerID, snapshot, t.RecoverableUntil, t.CreatedAt,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить tombstone", err)
		return fmt.Errorf("добавление tombstone: %w", err)
	}
	return nil
}

func (s *TombstoneRepo) GetByID(ctx context.Context, id uuid.UUID) (*tombstone.Tombstone, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT uuid, task_id, owner_id, snapshot, recoverable_until, created_at
		 FROM tombstones WHERE uuid = $1`, id)

	t, err := scanTombstone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("получение tombstone: %w", err)
	}
	return t, nil
}

func (s *TombstoneRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tombstones WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление tombstone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TombstoneRepo) GetExpired(ctx context.Context, now time.Time, limit int) ([]*tombstone.Tombstone, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx,
		`SELECT uuid, task_id, owner_id, snapshot, recoverable_until, created_at
		 FROM tombstones WHERE recoverable_until <= $1
		 ORDER BY recoverable_until LIMIT $2`, now, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить истёкшие tombstone", err)
		return nil, fmt.Errorf("получение tombstone: %w", err)
	}
	defer rows.Close()

	res := []*tombstone.Tombstone{}
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования tombstone", zap.Error(err))
			continue
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	slowQueryWarn("tombstones.get_expired", start, 100*time.Millisecond)
	return res, nil
}

func scanTombstone(row pgx.Row) (*tombstone.Tombstone, error) {
	t := &tombstone.Tombstone{}
	var snapshot []byte
	if err := row.Scan(&t.UUID, &t.TaskID, &t.OwnerID, &snapshot, &t.RecoverableUntil, &t.CreatedAt); err != nil {
		return nil, err
	}

	var snap task.Task
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("десериализация снимка: %w", err)
	}
	t.Snapshot = snap
	return t, nil
}
