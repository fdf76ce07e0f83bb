package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"orderbot/internal/bot"
	"orderbot/internal/config"
	"orderbot/internal/infrastructure/logger"
	"orderbot/internal/infrastructure/sqlite"
	"orderbot/internal/orderapi"
	orderrepo "orderbot/internal/order/repository"
	"orderbot/internal/server"
	supplierrepo "orderbot/internal/supplier/repository"
	"orderbot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := sqlite.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database ready", zap.String("path", cfg.Database.Path))

	orders := orderrepo.NewSQLiteOrderRepository(db, zapLogger)
	tasks := orderrepo.NewSQLiteSyncTaskRepository(db)
	settings := supplierrepo.NewSQLiteSettingsRepository(db)

	apiClient := orderapi.NewClient(cfg.API, zapLogger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		zapLogger.Fatal("connecting to telegram", zap.Error(err))
	}
	zapLogger.Info("telegram connected", zap.String("username", botAPI.Self.UserName))

	poller := worker.NewOrderPoller(
		apiClient, orders, settings, zapLogger,
		cfg.Poll.Interval, cfg.Poll.RetentionDays,
	)

	chatBot := bot.New(
		botAPI, orders, tasks, settings, apiClient, zapLogger,
		cfg.Bot.SyncInterval, cfg.Poll.RetentionDays,
	)

	router := server.NewRouter(db, orders, settings, zapLogger)
	srv := server.New(cfg.Server.Port, router, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Start(ctx)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateCfg)
	go chatBot.Run(ctx, updates)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("ops server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("received shutdown signal")

	cancel()
	botAPI.StopReceivingUpdates()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("ops server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("stopped gracefully")
}
