package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eventbot/internal/bot"
	"eventbot/internal/config"
	"eventbot/internal/repository"
	"eventbot/internal/server"
	"eventbot/internal/service"
)

const webhookBuffer = 100

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	var loader *service.CatalogLoader
	if cfg.CatalogFile != "" {
		loader = service.NewCatalogLoader(eventRepo, cfg.CatalogFile)
		n, err := loader.Sync(ctx)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		log.Printf("[info] catalog synced: %d events from %s", n, cfg.CatalogFile)
	}

	gateway, err := bot.NewTelegramGateway(cfg.TelegramToken, cfg.Debug)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	machine := service.NewRegistrationService(time.Now)
	telegramBot := bot.New(gateway, userRepo, eventRepo, registrationRepo, machine, cfg.Workers)
	if err := telegramBot.RegisterCommands(); err != nil {
		log.Printf("[error] %v", err)
	} else {
		log.Println("[info] bot commands set")
	}

	if loader != nil && cfg.CatalogSyncInterval > 0 {
		scheduler := service.NewSchedulerService(time.Local)
		if _, err := scheduler.ScheduleInterval(cfg.CatalogSyncInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := loader.Sync(jobCtx)
			if err != nil {
				log.Printf("[error] catalog sync: %v", err)
				return
			}
			log.Printf("[info] catalog re-synced: %d events", n)
		}); err != nil {
			log.Fatalf("schedule catalog sync: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	var updates <-chan tgbotapi.Update
	switch cfg.RunMode {
	case config.RunModeWebhook:
		if err := gateway.SetWebhook(cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			log.Fatalf("webhook: %v", err)
		}
		srv := server.New(cfg.ListenAddr, webhookBuffer, cfg.WebhookSecret)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[error] webhook server: %v", err)
				stop()
			}
		}()
		updates = srv.Updates()
	default:
		updates = gateway.Updates(ctx)
	}

	log.Println("Event bot started.")
	if err := telegramBot.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
