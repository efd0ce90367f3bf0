package handlers

import (
	"context"
	"time"

	"taskcore/internal/models/achievement"
	"taskcore/internal/models/reminder"
	"taskcore/internal/models/task"
	"taskcore/internal/models/template"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/service"

	"github.com/google/uuid"
)

type TaskService interface {
	CreateTask(ctx context.Context, ownerID uuid.UUID, opts ...task.TaskOption) (*task.Task, error)
	GetTask(ctx context.Context, id, ownerID uuid.UUID) (*task.Task, error)
	GetTasks(ctx context.Context, ownerID uuid.UUID, includeHidden bool, page, limit int) ([]*task.Task, error)
	UpdateTask(ctx context.Context, id, ownerID uuid.UUID, expectedVersion int, opts ...task.TaskOption) (*service.MutationResult, error)
	CompleteTask(ctx context.Context, id, ownerID uuid.UUID, expectedVersion int, cause task.Cause) (*service.MutationResult, error)
	DeleteTask(ctx context.Context, id, ownerID uuid.UUID) (*tombstone.Handle, error)
	RecoverTask(ctx context.Context, tombstoneID, ownerID uuid.UUID) (*task.Task, error)

	AddSubtask(ctx context.Context, taskID, ownerID uuid.UUID, title string) (*task.Subtask, error)
	ToggleSubtask(ctx context.Context, taskID, subtaskID, ownerID uuid.UUID, completed bool) (*task.Subtask, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID, ownerID uuid.UUID) error
	GetSubtasks(ctx context.Context, taskID, ownerID uuid.UUID) ([]*task.Subtask, error)

	HealthCheck(ctx context.Context) error
}

type TemplateService interface {
	CreateTemplate(ctx context.Context, ownerID uuid.UUID, title, description string, priority task.Priority, estimateMinutes *int, rule string) (*template.Template, error)
	UpdateTemplate(ctx context.Context, id, ownerID uuid.UUID, title, description *string, rule *string, active *bool) (*template.Template, error)
	PauseTemplate(ctx context.Context, id, ownerID uuid.UUID) (*template.Template, error)
	GetTemplates(ctx context.Context, ownerID uuid.UUID) ([]*template.Template, error)
}

type ReminderService interface {
	CreateReminder(ctx context.Context, taskID, ownerID uuid.UUID, kind reminder.Kind, offsetMinutes int, at *time.Time) (*reminder.Reminder, error)
	DeleteReminder(ctx context.Context, id, ownerID uuid.UUID) error
	GetReminders(ctx context.Context, taskID, ownerID uuid.UUID) ([]*reminder.Reminder, error)
}

type AchievementService interface {
	GetState(ctx context.Context, userID uuid.UUID) (*achievement.State, error)
	EffectiveLimits(ctx context.Context, userID uuid.UUID) (achievement.Limits, error)
	OnFocusSessionCompleted(ctx context.Context, userID uuid.UUID) ([]achievement.Unlock, *achievement.State, error)
	OnNoteConverted(ctx context.Context, userID uuid.UUID) ([]achievement.Unlock, *achievement.State, error)
}
