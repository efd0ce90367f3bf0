package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"taskcore/internal/logger"
	"taskcore/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TombstoneSweeper периодически вычищает просроченные надгробия вместе
// с их задачами. Сам проход идемпотентен, поэтому повторный запуск по
// той же пачке безопасен.
type TombstoneSweeper struct {
	manager   *service.TombstoneManager
	interval  time.Duration
	batchSize int

	cron    *cron.Cron
	started atomic.Bool
}

func NewTombstoneSweeper(manager *service.TombstoneManager, interval *time.Duration, batchSize *int) *TombstoneSweeper {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = time.Hour
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil {
		batchToSet = 100
	} else {
		batchToSet = *batchSize
	}
	return &TombstoneSweeper{
		manager:   manager,
		interval:  intervalToSet,
		batchSize: batchToSet,
	}
}

func (w *TombstoneSweeper) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		logger.Info("Worker: уборщик надгробий уже запущен, повторный Start игнорируется")
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
		return fmt.Errorf("регистрация задания уборки: %w", err)
	}

	w.cron.Start()
	logger.Info("Worker: уборщик надгробий запущен",
		zap.Duration("interval", w.interval),
		zap.Int("batch", w.batchSize),
	)
	return nil
}

func (w *TombstoneSweeper) Stop() {
	if !w.started.Load() || w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.started.Store(false)
	logger.Info("Worker: уборщик надгробий остановлен")
}

func (w *TombstoneSweeper) Tick(ctx context.Context) {
	start := time.Now()

	purged, err := w.manager.Sweep(ctx, w.batchSize)
	if err != nil {
		logger.Warn("Worker: ошибка уборки надгробий", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Info("Worker: уборка надгробий завершена",
			zap.Duration("ms", time.Since(start)),
			zap.Int("purged", purged),
		)
	}
}
