package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/config"
	"taskcore/internal/handlers"
	"taskcore/internal/logger"
	"taskcore/internal/middleware"
	"taskcore/internal/notify"
	"taskcore/internal/repository/inmemory"
	"taskcore/internal/repository/postgres"
	"taskcore/internal/service"
	"taskcore/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type App struct {
	config *config.Config
	server *http.Server
	router *chi.Mux

	tasks        service.TaskRepository
	reminders    service.ReminderRepository
	tombstones   service.TombstoneRepository
	templates    service.TemplateRepository
	achievements service.AchievementRepository

	taskService        *service.TaskService
	reminderService    *service.ReminderService
	recurrenceEngine   *service.RecurrenceEngine
	achievementTracker *service.AchievementTracker

	inbox           *notify.InboxSink
	reminderWorker  *worker.ReminderWorker
	tombstoneSweep  *worker.TombstoneSweeper
	shutdowns       []func() // функции graceful shutdown в порядке регистрации
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	if err := a.initRepositories(ctx); err != nil {
		return err
	}

	clk := clock.NewSystem(time.UTC)
	a.inbox = notify.NewInboxSink()

	tombstoneManager := service.NewTombstoneManager(a.tasks, a.reminders, a.tombstones, clk)
	a.recurrenceEngine = service.NewRecurrenceEngine(a.templates, a.tasks, clk)
	a.achievementTracker = service.NewAchievementTracker(a.achievements, clk)
	a.taskService = service.NewTaskService(a.tasks, tombstoneManager, a.recurrenceEngine, a.achievementTracker, clk)
	a.reminderService = service.NewReminderService(a.reminders, a.tasks, clk)

	a.reminderWorker = worker.NewReminderWorker(
		a.reminders, a.tasks, a.inbox, clk,
		&a.config.Workers.ReminderInterval, &a.config.Workers.ReminderBatch,
	)
	a.tombstoneSweep = worker.NewTombstoneSweeper(
		tombstoneManager,
		&a.config.Workers.SweepInterval, &a.config.Workers.SweepBatch,
	)

	a.router = a.buildRouter()
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return nil
}

func (a *App) initRepositories(ctx context.Context) error {
	switch a.config.Repository.Type {
	case "postgres":
		storage, err := postgres.New(ctx, a.config.Database.URL)
		if err != nil {
			return fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("Закрытие пула соединений...")
			storage.Close()
		})

		if dir := a.config.Database.MigrationsDir; dir != "" {
			if err := storage.Migrate(ctx, dir); err != nil {
				return fmt.Errorf("применение миграций: %w", err)
			}
		}

		a.tasks = storage.Tasks()
		a.reminders = storage.Reminders()
		a.tombstones = storage.Tombstones()
		a.templates = storage.Templates()
		a.achievements = storage.Achievements()
	case "inmemory":
		a.tasks = inmemory.NewTaskStorage()
		a.reminders = inmemory.NewReminderStorage()
		a.tombstones = inmemory.NewTombstoneStorage()
		a.templates = inmemory.NewTemplateStorage()
		a.achievements = inmemory.NewAchievementStorage()
	default:
		return fmt.Errorf("неизвестный тип хранилища: %s", a.config.Repository.Type)
	}
	return nil
}

func (a *App) buildRouter() *chi.Mux {
	taskHandler := handlers.NewTaskHandler(a.taskService)
	templateHandler := handlers.NewTemplateHandler(a.recurrenceEngine)
	reminderHandler := handlers.NewReminderHandler(a.reminderService)
	achievementHandler := handlers.NewAchievementHandler(a.achievementTracker, a.inbox)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(a.config.Limits.RatePerMinute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", taskHandler.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.GetTasks)  // GET /tasks
			r.Post("/", taskHandler.PostTask) // POST /tasks

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTaskByID)       // GET /tasks/{id}
				r.Put("/", taskHandler.UpdateTaskByID)    // PUT /tasks/{id}
				r.Delete("/", taskHandler.DeleteTaskByID) // DELETE /tasks/{id}

				r.Post("/complete", taskHandler.CompleteTask) // POST /tasks/{id}/complete

				r.Route("/subtasks", func(r chi.Router) {
					r.Get("/", taskHandler.GetSubtasks)
					r.Post("/", taskHandler.PostSubtask)
					r.Put("/{subtask_id}", taskHandler.ToggleSubtask)
					r.Delete("/{subtask_id}", taskHandler.DeleteSubtask)
				})

				r.Route("/reminders", func(r chi.Router) {
					r.Get("/", reminderHandler.GetReminders)
					r.Post("/", reminderHandler.PostReminder)
				})
			})
		})

		r.Delete("/reminders/{reminder_id}", reminderHandler.DeleteReminder)

		r.Post("/tombstones/{tombstone_id}/recover", taskHandler.RecoverTask)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.GetTemplates)
			r.Post("/", templateHandler.PostTemplate)
			r.Put("/{id}", templateHandler.UpdateTemplate)
			r.Delete("/{id}", templateHandler.PauseTemplate)
		})

		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", achievementHandler.GetAchievements)
			r.Post("/focus", achievementHandler.PostFocusSession)
			r.Post("/notes", achievementHandler.PostNoteConverted)
		})

		r.Get("/inbox", achievementHandler.GetInbox)
	})

	return r
}

// Run блокируется до отмены контекста, затем гасит воркеры и сервер
func (a *App) Run(ctx context.Context) error {
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if err := a.reminderWorker.Start(workerCtx); err != nil {
		return fmt.Errorf("запуск воркера напоминаний: %w", err)
	}
	if err := a.tombstoneSweep.Start(workerCtx); err != nil {
		return fmt.Errorf("запуск уборщика: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен на " + a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ошибка сервера: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Остановка сервиса...")

	a.reminderWorker.Stop()
	a.tombstoneSweep.Stop()
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Сервер не успел завершиться корректно")
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	return nil
}
