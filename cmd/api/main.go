package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"taskcore/internal/app"
	"taskcore/internal/config"
	"taskcore/internal/logger"
	"taskcore/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", "config.yml", "путь к конфигурационному файлу")
	rollback := flag.Bool("rollback", false, "откатить миграции БД и выйти")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("чтение конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *rollback {
		rollbackMigrations(ctx, cfg)
		return
	}

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		log.Fatalf("инициализация приложения: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("работа приложения: %v", err)
	}
}

func rollbackMigrations(ctx context.Context, cfg *config.Config) {
	if cfg.Repository.Type != "postgres" {
		log.Fatalf("откат миграций доступен только для postgres-хранилища")
	}
	if err := logger.Init(cfg.Logging.Development); err != nil {
		log.Fatalf("инициализация логгера: %v", err)
	}

	storage, err := postgres.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("подключение к postgres: %v", err)
	}
	defer storage.Close()

	if err := storage.Down(ctx, cfg.Database.MigrationsDir); err != nil {
		log.Fatalf("откат миграций: %v", err)
	}
}
