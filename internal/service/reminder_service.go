package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/reminder"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// потолок напоминаний на одну задачу
const maxRemindersPerTask = 5

// ReminderService - CRUD напоминаний на границе API; доставкой занимается
// фоновый воркер
type ReminderService struct {
	reminders ReminderRepository
	tasks     TaskRepository
	clock     clock.Clock
}

func NewReminderService(reminders ReminderRepository, tasks TaskRepository, clk clock.Clock) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		tasks:     tasks,
		clock:     clk,
	}
}

func (s *ReminderService) CreateReminder(ctx context.Context, taskID, ownerID uuid.UUID, kind reminder.Kind, offsetMinutes int, at *time.Time) (*reminder.Reminder, error) {
	if !reminder.ValidKind(kind) {
		return nil, NewValidationError("kind", "допустимы relative/absolute")
	}
	if kind == reminder.KindAbsolute && at == nil {
		return nil, NewValidationError("at", "absolute-напоминанию нужен момент срабатывания")
	}

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("задача", taskID.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if t.OwnerID != ownerID {
		return nil, NewForbidden("задача", taskID.String())
	}

	existing, err := s.reminders.GetByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт напоминаний: %w", err)
	}
	if len(existing) >= maxRemindersPerTask {
		return nil, NewLimitExceeded("reminders_per_task", maxRemindersPerTask)
	}

	r := &reminder.Reminder{
		UUID:          uuid.New(),
		TaskID:        taskID,
		OwnerID:       ownerID,
		Kind:          kind,
		OffsetMinutes: offsetMinutes,
		At:            at,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.reminders.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("создание напоминания: %w", err)
	}

	logger.Info("Service: Напоминание создано",
		zap.String("reminder_id", r.UUID.String()),
		zap.String("task_id", taskID.String()),
		zap.String("kind", string(kind)),
	)
	return r, nil
}

func (s *ReminderService) DeleteReminder(ctx context.Context, id, ownerID uuid.UUID) error {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFound("напоминание", id.String())
		}
		return fmt.Errorf("получение напоминания: %w", err)
	}
	if r.OwnerID != ownerID {
		return NewForbidden("напоминание", id.String())
	}

	if err := s.reminders.Delete(ctx, id); err != nil {
		return fmt.Errorf("удаление напоминания: %w", err)
	}
	return nil
}

func (s *ReminderService) GetReminders(ctx context.Context, taskID, ownerID uuid.UUID) ([]*reminder.Reminder, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("задача", taskID.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if t.OwnerID != ownerID {
		return nil, NewForbidden("задача", taskID.String())
	}

	return s.reminders.GetByTask(ctx, taskID)
}
