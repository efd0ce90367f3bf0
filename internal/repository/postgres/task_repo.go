package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/models/task"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TaskRepo реализует service.TaskRepository поверх общего пула
type TaskRepo struct {
	pool *pgxpool.Pool
}

func (s *Storage) Tasks() *TaskRepo {
	return &TaskRepo{pool: s.pool}
}

func (s *TaskRepo) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

const taskColumns = `uuid, owner_id, title, description, priority, due_time,
	estimate_minutes, focus_seconds, completed, completed_at, completed_by,
	hidden, archived, template_id, subtask_count, subtask_done, version,
	created_at, updated_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var completedBy *string
	err := row.Scan(
		&t.UUID, &t.OwnerID, &t.Title, &t.Description, &t.Priority, &t.DueTime,
		&t.EstimateMinutes, &t.FocusSeconds, &t.Completed, &t.CompletedAt, &completedBy,
		&t.Hidden, &t.Archived, &t.TemplateID, &t.SubtaskCount, &t.SubtaskDone, &t.Version,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedBy != nil {
		t.CompletedBy = task.Cause(*completedBy)
	}
	return t, nil
}

func (s *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
			(uuid, owner_id, title, description, priority, due_time,
			 estimate_minutes, focus_seconds, completed, completed_at, completed_by,
			 hidden, archived, template_id, subtask_count, subtask_done, version, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			RETURNING created_at`

	var completedBy *string
	if t.CompletedBy != "" {
		cb := string(t.CompletedBy)
		completedBy = &cb
	}

	err := s.pool.QueryRow(ctx, query,
		t.UUID, t.OwnerID, t.Title, t.Description, t.Priority, t.DueTime,
		t.EstimateMinutes, t.FocusSeconds, t.Completed, t.CompletedAt, completedBy,
		t.Hidden, t.Archived, t.TemplateID, t.SubtaskCount, t.SubtaskDone, t.Version,
		time.Now(),
	).Scan(&t.CreatedAt)

	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	slowQueryWarn("tasks.create", start, 50*time.Millisecond)
	return nil
}

// Update - единственная точка сериализации: условие version = $expected
// в одном UPDATE, попадание в ноль строк означает конфликт
func (s *TaskRepo) Update(ctx context.Context, t *task.Task) error {
	start := time.Now()

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				priority = $3,
				due_time = $4,
				estimate_minutes = $5,
				focus_seconds = $6,
				completed = $7,
				completed_at = $8,
				completed_by = $9,
				hidden = $10,
				archived = $11,
				subtask_count = $12,
				subtask_done = $13,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $14 AND version = $15
			RETURNING updated_at, version`

	var completedBy *string
	if t.CompletedBy != "" {
		cb := string(t.CompletedBy)
		completedBy = &cb
	}

	err := s.pool.QueryRow(ctx, query,
		t.Title, t.Description, t.Priority, t.DueTime, t.EstimateMinutes,
		t.FocusSeconds, t.Completed, t.CompletedAt, completedBy,
		t.Hidden, t.Archived, t.SubtaskCount, t.SubtaskDone,
		t.UUID, t.Version,
	).Scan(&t.UpdatedAt, &t.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Repository: Конфликт версий при обновлении задачи",
				zap.String("task_id", t.UUID.String()),
				zap.Int("expected_version", t.Version))
			return repository.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}

	slowQueryWarn("tasks.update", start, 100*time.Millisecond)
	return nil
}

func (s *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE uuid = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	slowQueryWarn("tasks.get_by_id", start, 100*time.Millisecond)
	return t, nil
}

func (s *TaskRepo) DeleteFull(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE uuid = $1`, id)
	if err != nil {
		logger.Error("Repository: Полное удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("полное удаление: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	slowQueryWarn("tasks.delete_full", start, 100*time.Millisecond)
	return nil
}

func (s *TaskRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, includeHidden bool, page, limit int) ([]*task.Task, error) {
	start := time.Now()

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE owner_id = $1 AND ($2 OR NOT hidden)
				ORDER BY created_at
				LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, ownerID, includeHidden, limit, offset)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	slowQueryWarn("tasks.get_by_owner", start, 50*time.Millisecond+10*time.Millisecond*time.Duration(limit))
	return tasks, nil
}

func (s *TaskRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND NOT hidden`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("подсчёт задач: %w", err)
	}
	return count, nil
}

// ---- подзадачи ----

func (s *TaskRepo) CreateSubtask(ctx context.Context, st *task.Subtask) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subtasks (uuid, task_id, title, completed, completed_at, order_index)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		st.UUID, st.TaskID, st.Title, st.Completed, st.CompletedAt, st.OrderIndex,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить подзадачу", err)
		return fmt.Errorf("добавление подзадачи: %w", err)
	}
	return nil
}

func (s *TaskRepo) UpdateSubtask(ctx context.Context, st *task.Subtask) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subtasks SET title = $1, completed = $2, completed_at = $3, order_index = $4
		 WHERE uuid = $5`,
		st.Title, st.Completed, st.CompletedAt, st.OrderIndex, st.UUID,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить подзадачу", err)
		return fmt.Errorf("обновление подзадачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TaskRepo) GetSubtasks(ctx context.Context, taskID uuid.UUID) ([]*task.Subtask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT uuid, task_id, title, completed, completed_at, order_index
		 FROM subtasks WHERE task_id = $1 ORDER BY order_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("получение подзадач: %w", err)
	}
	defer rows.Close()

	subtasks := []*task.Subtask{}
	for rows.Next() {
		st := &task.Subtask{}
		if err := rows.Scan(&st.UUID, &st.TaskID, &st.Title, &st.Completed, &st.CompletedAt, &st.OrderIndex); err != nil {
			logger.Warn("Repository: Ошибка сканирования подзадачи", zap.Error(err))
			continue
		}
		subtasks = append(subtasks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return subtasks, nil
}

func (s *TaskRepo) DeleteSubtask(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subtasks WHERE uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление подзадачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TaskRepo) DeleteSubtasksByTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subtasks WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("удаление подзадач: %w", err)
	}
	return nil
}
