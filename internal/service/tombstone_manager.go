package service

import (
	"context"
	"errors"
	"fmt"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/task"
	"taskcore/internal/models/tombstone"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TombstoneManager делает удаление обратимым в пределах окна восстановления
type TombstoneManager struct {
	tasks      TaskRepository
	reminders  ReminderRepository
	tombstones TombstoneRepository
	clock      clock.Clock
}

func NewTombstoneManager(tasks TaskRepository, reminders ReminderRepository, tombstones TombstoneRepository, clk clock.Clock) *TombstoneManager {
	return &TombstoneManager{
		tasks:      tasks,
		reminders:  reminders,
		tombstones: tombstones,
		clock:      clk,
	}
}

// SoftDelete прячет задачу через тот же версионный путь, что и любая
// мутация, и заводит tombstone со снимком для восстановления
func (m *TombstoneManager) SoftDelete(ctx context.Context, t *task.Task) (*tombstone.Handle, error) {
	now := m.clock.Now()

	task.WithHidden(true)(t)
	if err := m.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	ts := &tombstone.Tombstone{
		UUID:             uuid.New(),
		TaskID:           t.UUID,
		OwnerID:          t.OwnerID,
		Snapshot:         *t.Clone(),
		RecoverableUntil: now.Add(tombstone.RecoveryWindow),
		CreatedAt:        now,
	}

	if err := m.tombstones.Create(ctx, ts); err != nil {
		return nil, fmt.Errorf("создание tombstone: %w", err)
	}

	logger.Info("Service: Задача мягко удалена",
		zap.String("task_id", t.UUID.String()),
		zap.String("tombstone_id", ts.UUID.String()),
		zap.Time("recoverable_until", ts.RecoverableUntil),
	)

	return &tombstone.Handle{
		TombstoneID:      ts.UUID,
		RecoverableUntil: ts.RecoverableUntil,
	}, nil
}

// Recover возвращает задачу из tombstone. Истёкшее окно неотличимо от
// отсутствующего tombstone - NOT_FOUND; а вот коллизия идентификатора
// с живой задачей - отдельная ошибка, не "не найдено".
func (m *TombstoneManager) Recover(ctx context.Context, tombstoneID, ownerID uuid.UUID) (*task.Task, error) {
	ts, err := m.tombstones.GetByID(ctx, tombstoneID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("tombstone", tombstoneID.String())
		}
		return nil, fmt.Errorf("получение tombstone: %w", err)
	}

	if ts.OwnerID != ownerID {
		return nil, NewForbidden("tombstone", tombstoneID.String())
	}

	if ts.Expired(m.clock.Now()) {
		return nil, NewNotFound("tombstone", tombstoneID.String())
	}

	t, err := m.tasks.GetByID(ctx, ts.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("задача", ts.TaskID.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	if !t.Hidden {
		// живая задача под тем же id - кто-то успел занять идентификатор
		return nil, NewIDConflict(ts.TaskID.String())
	}

	task.WithHidden(false)(t)
	if err := m.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	if err := m.tombstones.Delete(ctx, ts.UUID); err != nil {
		logger.Warn("Service: Не удалось удалить использованный tombstone",
			zap.String("tombstone_id", ts.UUID.String()), zap.Error(err))
	}

	logger.Info("Service: Задача восстановлена",
		zap.String("task_id", t.UUID.String()),
		zap.String("tombstone_id", ts.UUID.String()),
	)
	return t, nil
}

// Sweep выносит истёкшие tombstone вместе со скрытыми задачами.
// Идемпотентен: повторный запуск без новых истечений - no-op.
func (m *TombstoneManager) Sweep(ctx context.Context, limit int) (int, error) {
	now := m.clock.Now()

	expired, err := m.tombstones.GetExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("получение истёкших tombstone: %w", err)
	}

	purged := 0
	for _, ts := range expired {
		if err := m.tasks.DeleteFull(ctx, ts.TaskID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Service: Не удалось окончательно удалить задачу",
				zap.String("task_id", ts.TaskID.String()), zap.Error(err))
			continue
		}
		if err := m.tasks.DeleteSubtasksByTask(ctx, ts.TaskID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Service: Не удалось удалить подзадачи",
				zap.String("task_id", ts.TaskID.String()), zap.Error(err))
		}
		if err := m.reminders.DeleteByTask(ctx, ts.TaskID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Service: Не удалось удалить напоминания",
				zap.String("task_id", ts.TaskID.String()), zap.Error(err))
		}
		if err := m.tombstones.Delete(ctx, ts.UUID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Service: Не удалось удалить tombstone",
				zap.String("tombstone_id", ts.UUID.String()), zap.Error(err))
			continue
		}
		purged++
	}

	if purged > 0 {
		logger.Info("Service: Очистка tombstone завершена", zap.Int("purged", purged))
	}
	return purged, nil
}
