package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/models/reminder"
	"taskcore/internal/models/task"
	"taskcore/internal/notify"
	"taskcore/internal/repository"
	"taskcore/internal/repository/inmemory"
	"taskcore/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink считает доставки по обоим каналам; системный канал можно
// заставить падать
type recordingSink struct {
	mtx        sync.Mutex
	system     []string
	inApp      []notify.Message
	systemFail bool
}

func (s *recordingSink) ShowSystemNotification(ctx context.Context, userID uuid.UUID, title, body, clickURL string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.systemFail {
		return errors.New("push-шлюз недоступен")
	}
	s.system = append(s.system, body)
	return nil
}

func (s *recordingSink) PostInAppMessage(ctx context.Context, userID uuid.UUID, msg notify.Message) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.inApp = append(s.inApp, msg)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.system), len(s.inApp)
}

type workerFixture struct {
	worker    *worker.ReminderWorker
	tasks     *inmemory.TaskStorage
	reminders *inmemory.ReminderStorage
	sink      *recordingSink
	clk       *clock.Fake
}

func newWorkerFixture(now time.Time) *workerFixture {
	clk := clock.NewFake(now)
	tasks := inmemory.NewTaskStorage()
	reminders := inmemory.NewReminderStorage()
	sink := &recordingSink{}

	interval := time.Minute
	batch := 100
	return &workerFixture{
		worker:    worker.NewReminderWorker(reminders, tasks, sink, clk, &interval, &batch),
		tasks:     tasks,
		reminders: reminders,
		sink:      sink,
		clk:       clk,
	}
}

func (f *workerFixture) seedTask(t *testing.T, due *time.Time) *task.Task {
	t.Helper()
	created := &task.Task{
		UUID:    uuid.New(),
		OwnerID: uuid.New(),
		Title:   "встреча",
		DueTime: due,
		Version: 1,
	}
	require.NoError(t, f.tasks.Create(context.Background(), created))
	return created
}

func (f *workerFixture) seedReminder(t *testing.T, taskID, ownerID uuid.UUID, kind reminder.Kind, offset int, at *time.Time) *reminder.Reminder {
	t.Helper()
	r := &reminder.Reminder{
		UUID:          uuid.New(),
		TaskID:        taskID,
		OwnerID:       ownerID,
		Kind:          kind,
		OffsetMinutes: offset,
		At:            at,
	}
	require.NoError(t, f.reminders.Create(context.Background(), r))
	return r
}

var workerNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// TestReminderWorker_FireOnce: двойной прогон доставляет ровно один раз
func TestReminderWorker_FireOnce(t *testing.T) {
	f := newWorkerFixture(workerNow)
	at := workerNow.Add(-time.Minute)
	created := f.seedTask(t, nil)
	r := f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindAbsolute, 0, &at)

	f.worker.Tick(context.Background())
	f.worker.Tick(context.Background())

	system, inApp := f.sink.counts()
	assert.Equal(t, 1, system)
	assert.Equal(t, 1, inApp)

	fired, err := f.reminders.GetByID(context.Background(), r.UUID)
	require.NoError(t, err)
	assert.True(t, fired.Fired)
	require.NotNil(t, fired.FiredAt)
	assert.Equal(t, workerNow, *fired.FiredAt)
}

func TestReminderWorker_FutureReminderWaits(t *testing.T) {
	f := newWorkerFixture(workerNow)
	at := workerNow.Add(time.Hour)
	created := f.seedTask(t, nil)
	f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindAbsolute, 0, &at)

	f.worker.Tick(context.Background())
	system, inApp := f.sink.counts()
	assert.Equal(t, 0, system)
	assert.Equal(t, 0, inApp)

	// время пришло
	f.clk.Advance(2 * time.Hour)
	f.worker.Tick(context.Background())
	system, inApp = f.sink.counts()
	assert.Equal(t, 1, system)
	assert.Equal(t, 1, inApp)
}

// TestReminderWorker_RelativeWithoutDue: relative-напоминание без дедлайна
// задачи не срабатывает никогда, но и не удаляется
func TestReminderWorker_RelativeWithoutDue(t *testing.T) {
	f := newWorkerFixture(workerNow)
	created := f.seedTask(t, nil)
	r := f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindRelative, -30, nil)

	f.clk.Advance(24 * time.Hour)
	f.worker.Tick(context.Background())

	system, _ := f.sink.counts()
	assert.Equal(t, 0, system)

	still, err := f.reminders.GetByID(context.Background(), r.UUID)
	require.NoError(t, err)
	assert.False(t, still.Fired)
}

func TestReminderWorker_RelativeOffset(t *testing.T) {
	f := newWorkerFixture(workerNow)
	due := workerNow.Add(20 * time.Minute)
	created := f.seedTask(t, &due)
	// за 30 минут до дедлайна - уже пора
	f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindRelative, -30, nil)

	f.worker.Tick(context.Background())
	system, inApp := f.sink.counts()
	assert.Equal(t, 1, system)
	assert.Equal(t, 1, inApp)
}

// TestReminderWorker_OrphanCleanedUp: напоминание физически удалённой задачи
// вычищается, не доставляется
func TestReminderWorker_OrphanCleanedUp(t *testing.T) {
	f := newWorkerFixture(workerNow)
	at := workerNow.Add(-time.Minute)
	missingTask := uuid.New()
	r := f.seedReminder(t, missingTask, uuid.New(), reminder.KindAbsolute, 0, &at)

	f.worker.Tick(context.Background())

	system, _ := f.sink.counts()
	assert.Equal(t, 0, system)

	_, err := f.reminders.GetByID(context.Background(), r.UUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// TestReminderWorker_HiddenTaskSkipped: скрытая задача напоминаний не
// получает, но pending-состояние сохраняется до восстановления
func TestReminderWorker_HiddenTaskSkipped(t *testing.T) {
	f := newWorkerFixture(workerNow)
	at := workerNow.Add(-time.Minute)
	created := f.seedTask(t, nil)
	r := f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindAbsolute, 0, &at)

	hidden, err := f.tasks.GetByID(context.Background(), created.UUID)
	require.NoError(t, err)
	hidden.Hidden = true
	require.NoError(t, f.tasks.Update(context.Background(), hidden))

	f.worker.Tick(context.Background())
	system, _ := f.sink.counts()
	assert.Equal(t, 0, system)

	still, err := f.reminders.GetByID(context.Background(), r.UUID)
	require.NoError(t, err)
	assert.False(t, still.Fired)

	// восстановили - напоминание уходит
	visible, err := f.tasks.GetByID(context.Background(), created.UUID)
	require.NoError(t, err)
	visible.Hidden = false
	require.NoError(t, f.tasks.Update(context.Background(), visible))

	f.worker.Tick(context.Background())
	system, _ = f.sink.counts()
	assert.Equal(t, 1, system)
}

// TestReminderWorker_FailingChannelDoesNotBlock: падение системного канала
// не мешает внутреннему и не оставляет напоминание на повтор
func TestReminderWorker_FailingChannelDoesNotBlock(t *testing.T) {
	f := newWorkerFixture(workerNow)
	f.sink.systemFail = true

	at := workerNow.Add(-time.Minute)
	created := f.seedTask(t, nil)
	r := f.seedReminder(t, created.UUID, created.OwnerID, reminder.KindAbsolute, 0, &at)

	f.worker.Tick(context.Background())

	system, inApp := f.sink.counts()
	assert.Equal(t, 0, system)
	assert.Equal(t, 1, inApp)

	fired, err := f.reminders.GetByID(context.Background(), r.UUID)
	require.NoError(t, err)
	assert.True(t, fired.Fired, "ошибка канала не переводит напоминание в повтор")
}

func TestReminderWorker_StartIdempotent(t *testing.T) {
	f := newWorkerFixture(workerNow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.worker.Start(ctx))
	require.NoError(t, f.worker.Start(ctx), "повторный Start - no-op")
	f.worker.Stop()
}
