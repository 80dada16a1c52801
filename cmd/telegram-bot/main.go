package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"todo-api/internal/config"
	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/metrics"
	"todo-api/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-файлу конфигурации")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger.Error(ctx, err, "Бот остановлен с ошибкой")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if err := logger.SetFormat(cfg.Log.Format); err != nil {
		return err
	}

	if cfg.Telegram.Token == "" {
		return errors.New("не задан токен бота (TODO_TELEGRAM_TOKEN)")
	}

	logger.Info(ctx, "Запуск Telegram-бота")

	store, err := storage.Open(ctx, storage.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return err
	}
	defer store.Close()

	tm := manager.NewTaskManager(store, metrics.NewRegistry())

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	api.Debug = level == logger.LevelDebug
	logger.Info(ctx, "Авторизован", "bot", api.Self.UserName)

	return NewBot(api, tm).Start(ctx, api)
}
