package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/models/achievement"
	"taskcore/internal/models/task"
	"taskcore/internal/repository/inmemory"
	"taskcore/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *service.TaskService
	tasks     *inmemory.TaskStorage
	reminders *inmemory.ReminderStorage
	clk       *clock.Fake
}

func newFixture(now time.Time) *fixture {
	clk := clock.NewFake(now)
	tasks := inmemory.NewTaskStorage()
	reminders := inmemory.NewReminderStorage()
	tombstones := inmemory.NewTombstoneStorage()
	templates := inmemory.NewTemplateStorage()
	achievements := inmemory.NewAchievementStorage()

	manager := service.NewTombstoneManager(tasks, reminders, tombstones, clk)
	engine := service.NewRecurrenceEngine(templates, tasks, clk)
	tracker := service.NewAchievementTracker(achievements, clk)

	return &fixture{
		svc:       service.NewTaskService(tasks, manager, engine, tracker, clk),
		tasks:     tasks,
		reminders: reminders,
		clk:       clk,
	}
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestTaskService_CreateTask(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("Купить хлеб"))
	require.NoError(t, err)

	assert.Equal(t, "Купить хлеб", created.Title)
	assert.Equal(t, task.PriorityMedium, created.Priority)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.Completed)
}

func TestTaskService_CreateTask_EmptyTitle(t *testing.T) {
	f := newFixture(testNow)

	_, err := f.svc.CreateTask(context.Background(), uuid.New())
	requireBusinessCode(t, err, service.CodeValidation)
}

// TestTaskService_CreateTask_LimitExceeded: лимит тарифа блокирует создание
func TestTaskService_CreateTask_LimitExceeded(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	limit := achievement.BaseLimits(achievement.TierFree).MaxTasks
	for i := 0; i < limit; i++ {
		_, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle(fmt.Sprintf("задача %d", i)))
		require.NoError(t, err)
	}

	_, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("лишняя"))
	requireBusinessCode(t, err, service.CodeLimitExceeded)
}

// TestTaskService_UpdateTask_VersionGuard - полный круг версионной защиты:
// устаревшая версия получает 409 с актуальным состоянием, запись не происходит
func TestTaskService_UpdateTask_VersionGuard(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("v1"))
	require.NoError(t, err)

	// первый клиент успевает
	result, err := f.svc.UpdateTask(context.Background(), created.UUID, ownerID, 1, task.WithTitle("v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Task.Version)

	// второй клиент несёт устаревшую версию
	_, err = f.svc.UpdateTask(context.Background(), created.UUID, ownerID, 1, task.WithTitle("у меня старьё"))
	requireBusinessCode(t, err, service.CodeVersionConflict)

	var businessErr *service.BusinessError
	require.True(t, errors.As(err, &businessErr))
	assert.Equal(t, 1, businessErr.Details["expected_version"])
	assert.Equal(t, 2, businessErr.Details["actual_version"])

	current, ok := businessErr.Details["current"].(*task.Task)
	require.True(t, ok, "конфликт несёт авторитетное состояние")
	assert.Equal(t, "v2", current.Title)

	// проигравшая запись не прошла
	fresh, err := f.svc.GetTask(context.Background(), created.UUID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "v2", fresh.Title)
	assert.Equal(t, 2, fresh.Version)
}

func TestTaskService_UpdateTask_WrongOwner(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("чужая"))
	require.NoError(t, err)

	_, err = f.svc.UpdateTask(context.Background(), created.UUID, uuid.New(), 1, task.WithTitle("взлом"))
	requireBusinessCode(t, err, service.CodeForbidden)
}

// TestTaskService_CompleteTask: завершение двигает стрик и открывает ачивку
func TestTaskService_CompleteTask_SideEffects(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("первая"))
	require.NoError(t, err)

	result, err := f.svc.CompleteTask(context.Background(), created.UUID, ownerID, 1, task.CauseManual)
	require.NoError(t, err)

	assert.True(t, result.Task.Completed)
	assert.Equal(t, task.CauseManual, result.Task.CompletedBy)
	require.NotNil(t, result.Task.CompletedAt)
	assert.Equal(t, 1, result.Streak)
	require.Len(t, result.Unlocks, 1)
	assert.Equal(t, "first_blood", result.Unlocks[0].AchievementID)
	assert.Nil(t, result.NextInstance, "обычная задача следующий экземпляр не порождает")
}

func TestTaskService_CompleteTask_AlreadyCompleted(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("x"))
	require.NoError(t, err)

	result, err := f.svc.CompleteTask(context.Background(), created.UUID, ownerID, 1, task.CauseManual)
	require.NoError(t, err)

	_, err = f.svc.CompleteTask(context.Background(), created.UUID, ownerID, result.Task.Version, task.CauseManual)
	requireBusinessCode(t, err, service.CodeValidation)
}

func TestTaskService_CompleteTask_VersionConflictCutsSideEffects(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("x"))
	require.NoError(t, err)

	// версия устарела - побочные эффекты не запускаются
	_, err = f.svc.CompleteTask(context.Background(), created.UUID, ownerID, 99, task.CauseManual)
	requireBusinessCode(t, err, service.CodeVersionConflict)

	fresh, err := f.svc.GetTask(context.Background(), created.UUID, ownerID)
	require.NoError(t, err)
	assert.False(t, fresh.Completed)
}

// TestTaskService_DeleteRecover - круг мягкого удаления
func TestTaskService_DeleteRecover(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("временная"))
	require.NoError(t, err)

	handle, err := f.svc.DeleteTask(context.Background(), created.UUID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*24*time.Hour), handle.RecoverableUntil)

	// из обычных выборок задача пропала
	visible, err := f.svc.GetTasks(context.Background(), ownerID, false, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// повторное удаление отклоняется
	_, err = f.svc.DeleteTask(context.Background(), created.UUID, ownerID)
	requireBusinessCode(t, err, service.CodeValidation)

	recovered, err := f.svc.RecoverTask(context.Background(), handle.TombstoneID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, created.UUID, recovered.UUID)
	assert.False(t, recovered.Hidden)

	visible, err = f.svc.GetTasks(context.Background(), ownerID, false, 1, 10)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	// квитанция одноразовая
	_, err = f.svc.RecoverTask(context.Background(), handle.TombstoneID, ownerID)
	requireBusinessCode(t, err, service.CodeNotFound)
}

func TestTaskService_RecoverExpired(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	created, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("x"))
	require.NoError(t, err)

	handle, err := f.svc.DeleteTask(context.Background(), created.UUID, ownerID)
	require.NoError(t, err)

	// окно восстановления истекло
	f.clk.Advance(30*24*time.Hour + time.Minute)

	_, err = f.svc.RecoverTask(context.Background(), handle.TombstoneID, ownerID)
	requireBusinessCode(t, err, service.CodeNotFound)
}

// ---- подзадачи ----

func TestTaskService_Subtasks(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	parent, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("родитель"))
	require.NoError(t, err)

	first, err := f.svc.AddSubtask(context.Background(), parent.UUID, ownerID, "шаг 1")
	require.NoError(t, err)
	_, err = f.svc.AddSubtask(context.Background(), parent.UUID, ownerID, "шаг 2")
	require.NoError(t, err)

	fresh, err := f.svc.GetTask(context.Background(), parent.UUID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.SubtaskCount)
	assert.Equal(t, 0, fresh.SubtaskDone)

	_, err = f.svc.ToggleSubtask(context.Background(), parent.UUID, first.UUID, ownerID, true)
	require.NoError(t, err)

	fresh, err = f.svc.GetTask(context.Background(), parent.UUID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.SubtaskCount)
	assert.Equal(t, 1, fresh.SubtaskDone)
	assert.LessOrEqual(t, fresh.SubtaskDone, fresh.SubtaskCount)

	err = f.svc.DeleteSubtask(context.Background(), parent.UUID, first.UUID, ownerID)
	require.NoError(t, err)

	fresh, err = f.svc.GetTask(context.Background(), parent.UUID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.SubtaskCount)
	assert.Equal(t, 0, fresh.SubtaskDone)
}

func TestTaskService_SubtaskLimit(t *testing.T) {
	f := newFixture(testNow)
	ownerID := uuid.New()

	parent, err := f.svc.CreateTask(context.Background(), ownerID, task.WithTitle("родитель"))
	require.NoError(t, err)

	for i := 0; i < task.MaxSubtasks; i++ {
		_, err := f.svc.AddSubtask(context.Background(), parent.UUID, ownerID, fmt.Sprintf("шаг %d", i))
		require.NoError(t, err)
	}

	_, err = f.svc.AddSubtask(context.Background(), parent.UUID, ownerID, "одиннадцатый")
	requireBusinessCode(t, err, service.CodeLimitExceeded)
}

func requireBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)

	var businessErr *service.BusinessError
	require.True(t, errors.As(err, &businessErr), "ожидалась бизнес-ошибка, получено: %v", err)
	assert.Equal(t, code, businessErr.Code)
}
