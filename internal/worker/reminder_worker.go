package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/reminder"
	"taskcore/internal/notify"
	"taskcore/internal/repository"
	"taskcore/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderWorker - цикл доставки напоминаний. Каждую итерацию забирает
// пачку несработавших, доставляет в оба канала и помечает fired.
// Пометка - условный UPDATE, поэтому при гонке двух инстансов
// напоминание уходит пользователю не более одного раза на пометку.
type ReminderWorker struct {
	reminders service.ReminderRepository
	tasks     service.TaskRepository
	sink      notify.Sink
	clock     clock.Clock
	interval  time.Duration
	batchSize int

	cron    *cron.Cron
	started atomic.Bool
}

func NewReminderWorker(reminders service.ReminderRepository, tasks service.TaskRepository, sink notify.Sink, clk clock.Clock, interval *time.Duration, batchSize *int) *ReminderWorker {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = time.Minute
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil {
		batchToSet = 200
	} else {
		batchToSet = *batchSize
	}
	return &ReminderWorker{
		reminders: reminders,
		tasks:     tasks,
		sink:      sink,
		clock:     clk,
		interval:  intervalToSet,
		batchSize: batchToSet,
	}
}

// Start идемпотентен: повторный вызов на уже запущенном воркере - no-op.
func (w *ReminderWorker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		logger.Info("Worker: цикл напоминаний уже запущен, повторный Start игнорируется")
		return nil
	}

	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DefaultLogger),
	))

	spec := fmt.Sprintf("@every %ds", int(w.interval.Seconds()))
	_, err := w.cron.AddFunc(spec, func() {
		w.Tick(ctx)
	})
	if err != nil {
		w.started.Store(false)
		return fmt.Errorf("регистрация задания напоминаний: %w", err)
	}

	w.cron.Start()
	logger.Info("Worker: цикл напоминаний запущен",
		zap.Duration("interval", w.interval),
		zap.Int("batch", w.batchSize),
	)
	return nil
}

// Stop дожидается завершения текущей итерации.
func (w *ReminderWorker) Stop() {
	if !w.started.Load() || w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.started.Store(false)
	logger.Info("Worker: цикл напоминаний остановлен")
}

// Tick - одна итерация доставки. Экспортирован для вызова из тестов и
// для ручного прогона без планировщика.
func (w *ReminderWorker) Tick(ctx context.Context) {
	start := w.clock.Now()

	pending, err := w.reminders.GetUnfired(ctx, w.batchSize)
	if err != nil {
		logger.Warn("Worker: ошибка выборки напоминаний", zap.Error(err))
		return
	}

	fired := 0
	skipped := 0
	for _, r := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch w.process(ctx, r) {
		case deliveryFired:
			fired++
		case deliverySkipped:
			skipped++
		}
	}

	if fired > 0 || skipped > 0 {
		logger.Info("Worker: итерация напоминаний завершена",
			zap.Duration("ms", time.Since(start)),
			zap.Int("checked", len(pending)),
			zap.Int("fired", fired),
			zap.Int("skipped", skipped),
		)
	}
}

type deliveryOutcome int

const (
	deliveryPending deliveryOutcome = iota
	deliveryFired
	deliverySkipped
)

func (w *ReminderWorker) process(ctx context.Context, r *reminder.Reminder) deliveryOutcome {
	t, err := w.tasks.GetByID(ctx, r.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Осиротевшее напоминание: задача удалена физически.
			logger.Warn("Worker: напоминание без задачи, удаляем",
				zap.String("reminder_id", r.UUID.String()),
				zap.String("task_id", r.TaskID.String()),
			)
			if derr := w.reminders.Delete(ctx, r.UUID); derr != nil {
				logger.Warn("Worker: ошибка удаления осиротевшего напоминания", zap.Error(derr))
			}
			return deliverySkipped
		}
		logger.Warn("Worker: ошибка чтения задачи напоминания", zap.Error(err))
		return deliveryPending
	}

	// Скрытая (мягко удалённая) или завершённая задача напоминаний не получает.
	// Напоминание остаётся pending: восстановление задачи вернёт его в строй.
	if t.Hidden || t.Completed {
		return deliverySkipped
	}

	trigger := r.TriggerTime(t.DueTime)
	if trigger == nil || w.clock.Now().Before(*trigger) {
		return deliveryPending
	}

	// Сначала оба канала, затем пометка. Ошибка одного канала не гасит
	// второй и не блокирует fired: лучше потерять доставку в один канал,
	// чем спамить пользователя на каждой итерации.
	body := t.Title
	if t.DueTime != nil {
		body = fmt.Sprintf("%s (срок: %s)", t.Title, t.DueTime.Format(time.RFC3339))
	}

	if err := w.sink.ShowSystemNotification(ctx, r.OwnerID, "Напоминание", body, "/tasks/"+t.UUID.String()); err != nil {
		logger.Warn("Worker: ошибка системного уведомления",
			zap.String("reminder_id", r.UUID.String()),
			zap.Error(err),
		)
	}
	if err := w.sink.PostInAppMessage(ctx, r.OwnerID, notify.Message{
		ReminderID: r.UUID,
		TaskID:     t.UUID,
		Title:      "Напоминание",
		Body:       body,
		At:         *trigger,
	}); err != nil {
		logger.Warn("Worker: ошибка внутриприложенческого сообщения",
			zap.String("reminder_id", r.UUID.String()),
			zap.Error(err),
		)
	}

	if err := w.reminders.MarkFired(ctx, r.UUID, w.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrAlreadyFired) {
			// Конкурентная итерация успела первой.
			return deliverySkipped
		}
		logger.Warn("Worker: ошибка пометки напоминания", zap.Error(err))
		return deliveryPending
	}
	return deliveryFired
}
