package service

import (
	"context"
	"errors"
	"fmt"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/achievement"
	"taskcore/internal/models/task"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// попытки внутренних мутаций (без версии от клиента) при гонке CAS
const internalRetries = 3

// TaskService - оркестратор жизненного цикла: версия -> запись -> побочные
// эффекты (tombstone / рекуррентность / ачивки)
type TaskService struct {
	tasks        TaskRepository
	tombstones   *TombstoneManager
	recurrence   *RecurrenceEngine
	achievements *AchievementTracker
	clock        clock.Clock
}

func NewTaskService(
	tasks TaskRepository,
	tombstones *TombstoneManager,
	recurrence *RecurrenceEngine,
	achievements *AchievementTracker,
	clk clock.Clock,
) *TaskService {
	return &TaskService{
		tasks:        tasks,
		tombstones:   tombstones,
		recurrence:   recurrence,
		achievements: achievements,
		clock:        clk,
	}
}

// MutationResult - итог успешной мутации вместе с её побочными эффектами
type MutationResult struct {
	Task         *task.Task
	Unlocks      []achievement.Unlock
	Streak       int
	NextInstance *task.Task
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.tasks.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, opts ...task.TaskOption) (*task.Task, error) {
	limits, err := s.achievements.EffectiveLimits(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	count, err := s.tasks.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт задач: %w", err)
	}
	if count >= limits.MaxTasks {
		return nil, NewLimitExceeded("max_tasks", limits.MaxTasks)
	}

	t := &task.Task{
		UUID:      uuid.New(),
		OwnerID:   ownerID,
		Priority:  task.PriorityMedium,
		Version:   1,
		CreatedAt: s.clock.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	if t.Title == "" {
		return nil, NewValidationError("title", "пустое название")
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", t.UUID.String()),
		zap.String("owner_id", ownerID.String()))
	return t, nil
}

func (s *TaskService) GetTask(ctx context.Context, id, ownerID uuid.UUID) (*task.Task, error) {
	return s.getOwned(ctx, id, ownerID)
}

func (s *TaskService) GetTasks(ctx context.Context, ownerID uuid.UUID, includeHidden bool, page, limit int) ([]*task.Task, error) {
	tasks, err := s.tasks.GetByOwner(ctx, ownerID, includeHidden, page, limit)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return tasks, nil
}

// UpdateTask - вход версионной защиты. Патч применяется только при совпадении
// версии; конфликт возвращается с актуальной задачей и без побочных эффектов.
// Если патч переводит задачу в completed, операция эквивалентна CompleteTask.
func (s *TaskService) UpdateTask(ctx context.Context, id, ownerID uuid.UUID, expectedVersion int, opts ...task.TaskOption) (*MutationResult, error) {
	current, err := s.getOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if current.Version != expectedVersion {
		return nil, NewVersionConflict(current, expectedVersion, current.Version)
	}

	mutated := current.Clone()
	for _, opt := range opts {
		if opt != nil {
			opt(mutated)
		}
	}

	completionTransition := !current.Completed && mutated.Completed

	if err := s.tasks.Update(ctx, mutated); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// гонка между нашим чтением и записью: отдаём авторитетное состояние
			authoritative, readErr := s.tasks.GetByID(ctx, id)
			if readErr != nil {
				return nil, fmt.Errorf("перечитывание после конфликта: %w", readErr)
			}
			return nil, NewVersionConflict(authoritative, expectedVersion, authoritative.Version)
		}
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}

	result := &MutationResult{Task: mutated}
	if completionTransition {
		s.runCompletionSideEffects(ctx, result)
	}
	return result, nil
}

// CompleteTask завершает задачу под версионной защитой и запускает побочные
// эффекты поверх уже записанного состояния
func (s *TaskService) CompleteTask(ctx context.Context, id, ownerID uuid.UUID, expectedVersion int, cause task.Cause) (*MutationResult, error) {
	if !task.ValidCause(cause) {
		return nil, NewValidationError("cause", "допустимы manual/auto/force")
	}

	current, err := s.getOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if current.Completed {
		return nil, NewValidationError("completed", "задача уже завершена")
	}

	return s.UpdateTask(ctx, id, ownerID, expectedVersion, task.WithCompleted(s.clock.Now(), cause))
}

// побочные эффекты завершения читают уже записанное состояние; конфликт
// версий сюда не доходит - он отрезает их раньше
func (s *TaskService) runCompletionSideEffects(ctx context.Context, result *MutationResult) {
	t := result.Task
	completedAt := *t.CompletedAt

	unlocks, state, err := s.achievements.OnTaskCompleted(ctx, t.OwnerID, completedAt)
	if err != nil {
		logger.Error("Service: Ошибка обновления ачивок", err,
			zap.String("task_id", t.UUID.String()))
	} else {
		result.Unlocks = unlocks
		result.Streak = state.CurrentStreak
	}

	next, err := s.recurrence.OnInstanceCompleted(ctx, t, completedAt)
	if err != nil {
		logger.Error("Service: Ошибка генерации следующего экземпляра", err,
			zap.String("task_id", t.UUID.String()))
		return
	}
	result.NextInstance = next
}

// DeleteTask - мягкое удаление без клиентской версии: внутренняя гонка
// решается перечитыванием
func (s *TaskService) DeleteTask(ctx context.Context, id, ownerID uuid.UUID) (*tombstone.Handle, error) {
	var lastErr error
	for attempt := 0; attempt < internalRetries; attempt++ {
		t, err := s.getOwned(ctx, id, ownerID)
		if err != nil {
			return nil, err
		}
		if t.Hidden {
			return nil, NewValidationError("hidden", "задача уже удалена")
		}

		handle, err := s.tombstones.SoftDelete(ctx, t)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return handle, nil
	}
	return nil, fmt.Errorf("мягкое удаление: %w", lastErr)
}

func (s *TaskService) RecoverTask(ctx context.Context, tombstoneID, ownerID uuid.UUID) (*task.Task, error) {
	return s.tombstones.Recover(ctx, tombstoneID, ownerID)
}

// ---- подзадачи ----

func (s *TaskService) AddSubtask(ctx context.Context, taskID, ownerID uuid.UUID, title string) (*task.Subtask, error) {
	if title == "" {
		return nil, NewValidationError("title", "пустое название")
	}

	parent, err := s.getOwned(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}
	if parent.SubtaskCount >= task.MaxSubtasks {
		return nil, NewLimitExceeded("max_subtasks", task.MaxSubtasks)
	}

	st := &task.Subtask{
		UUID:       uuid.New(),
		TaskID:     taskID,
		Title:      title,
		OrderIndex: parent.SubtaskCount,
	}
	if err := s.tasks.CreateSubtask(ctx, st); err != nil {
		return nil, fmt.Errorf("создание подзадачи: %w", err)
	}

	if err := s.refreshSubtaskCounts(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *TaskService) ToggleSubtask(ctx context.Context, taskID, subtaskID, ownerID uuid.UUID, completed bool) (*task.Subtask, error) {
	if _, err := s.getOwned(ctx, taskID, ownerID); err != nil {
		return nil, err
	}

	subtasks, err := s.tasks.GetSubtasks(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("получение подзадач: %w", err)
	}

	var target *task.Subtask
	for _, st := range subtasks {
		if st.UUID == subtaskID {
			target = st
			break
		}
	}
	if target == nil {
		return nil, NewNotFound("подзадача", subtaskID.String())
	}

	target.Completed = completed
	if completed {
		now := s.clock.Now()
		target.CompletedAt = &now
	} else {
		target.CompletedAt = nil
	}

	if err := s.tasks.UpdateSubtask(ctx, target); err != nil {
		return nil, fmt.Errorf("обновление подзадачи: %w", err)
	}

	if err := s.refreshSubtaskCounts(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *TaskService) DeleteSubtask(ctx context.Context, taskID, subtaskID, ownerID uuid.UUID) error {
	if _, err := s.getOwned(ctx, taskID, ownerID); err != nil {
		return err
	}

	if err := s.tasks.DeleteSubtask(ctx, subtaskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFound("подзадача", subtaskID.String())
		}
		return fmt.Errorf("удаление подзадачи: %w", err)
	}

	return s.refreshSubtaskCounts(ctx, taskID, ownerID)
}

func (s *TaskService) GetSubtasks(ctx context.Context, taskID, ownerID uuid.UUID) ([]*task.Subtask, error) {
	if _, err := s.getOwned(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return s.tasks.GetSubtasks(ctx, taskID)
}

// агрегатные счётчики пересчитываются из строк подзадач, а не
// инкрементируются - инвариант done <= count держится конструкцией
func (s *TaskService) refreshSubtaskCounts(ctx context.Context, taskID, ownerID uuid.UUID) error {
	subtasks, err := s.tasks.GetSubtasks(ctx, taskID)
	if err != nil {
		return fmt.Errorf("получение подзадач: %w", err)
	}

	done := 0
	for _, st := range subtasks {
		if st.Completed {
			done++
		}
	}

	var lastErr error
	for attempt := 0; attempt < internalRetries; attempt++ {
		t, err := s.getOwned(ctx, taskID, ownerID)
		if err != nil {
			return err
		}

		mutated := t.Clone()
		mutated.SubtaskCount = len(subtasks)
		mutated.SubtaskDone = done

		if err := s.tasks.Update(ctx, mutated); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return fmt.Errorf("обновление счётчиков: %w", err)
		}
		return nil
	}
	return fmt.Errorf("обновление счётчиков: %w", lastErr)
}

func (s *TaskService) getOwned(ctx context.Context, id, ownerID uuid.UUID) (*task.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound("задача", id.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	if t.OwnerID != ownerID {
		return nil, NewForbidden("задача", id.String())
	}
	return t, nil
}
