package service

import (
	"context"
	"time"

	"taskcore/internal/models/achievement"
	"taskcore/internal/models/reminder"
	"taskcore/internal/models/task"
	"taskcore/internal/models/template"
	"taskcore/internal/models/tombstone"

	"github.com/google/uuid"
)

// TaskRepository - хранилище задач. Update обязан быть условной записью:
// строка меняется только при совпадении версии, иначе ErrVersionConflict.
// Это единственная точка сериализации конкурентных мутаций.
type TaskRepository interface {
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	DeleteFull(ctx context.Context, id uuid.UUID) error
	GetByOwner(ctx context.Context, ownerID uuid.UUID, includeHidden bool, page, limit int) ([]*task.Task, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)

	CreateSubtask(ctx context.Context, st *task.Subtask) error
	UpdateSubtask(ctx context.Context, st *task.Subtask) error
	GetSubtasks(ctx context.Context, taskID uuid.UUID) ([]*task.Subtask, error)
	DeleteSubtask(ctx context.Context, id uuid.UUID) error
	DeleteSubtasksByTask(ctx context.Context, taskID uuid.UUID) error

	HealthCheck(ctx context.Context) error
}

// ReminderRepository. MarkFired - атомарный переход Pending -> Fired:
// повторная пометка возвращает ErrAlreadyFired, назад пути нет.
type ReminderRepository interface {
	Create(ctx context.Context, r *reminder.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error)
	GetByTask(ctx context.Context, taskID uuid.UUID) ([]*reminder.Reminder, error)
	GetUnfired(ctx context.Context, limit int) ([]*reminder.Reminder, error)
	MarkFired(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByTask(ctx context.Context, taskID uuid.UUID) error
}

type TombstoneRepository interface {
	Create(ctx context.Context, t *tombstone.Tombstone) error
	GetByID(ctx context.Context, id uuid.UUID) (*tombstone.Tombstone, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*tombstone.Tombstone, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *template.Template) error
	Update(ctx context.Context, t *template.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*template.Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AchievementRepository. Update - тот же условный CAS по Version, что и у
// задач: агрегат одного пользователя пишется атомарно.
type AchievementRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*achievement.State, error)
	Update(ctx context.Context, s *achievement.State) error
}
