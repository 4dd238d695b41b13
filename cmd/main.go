package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sellerbot/internal/bootstrap"
	"sellerbot/internal/bot"
	"sellerbot/internal/config"
	"sellerbot/internal/cron"
	"sellerbot/internal/datastore"
	"sellerbot/internal/middleware"
	"sellerbot/internal/payment"
	"sellerbot/internal/pkg/telegram"
	"sellerbot/internal/repository"
	"sellerbot/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Server.Env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	registry, err := bootstrap.NewRegistry(db)
	if err != nil {
		logger.Fatal("failed to build table registry", zap.Error(err))
	}

	audit, err := datastore.OpenAuditFile(cfg.Audit.LogPath, logger)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.Error(err))
	}

	store := datastore.New(db, registry, audit, logger, cfg.Bot.AdminID)

	gateways := payment.NewRegistry(
		payment.NewZarinPalGateway(cfg.Payment.ZarinPal.Merchant, cfg.Payment.ZarinPal.Sandbox),
		payment.NewNOWPaymentsGateway(cfg.Payment.NOWPayments.APIKey),
		payment.NewAqayePardakhtGateway(cfg.Payment.AqayePardakht.Pin),
		payment.NewCardToCardGateway(),
	)

	botAPI := telegram.NewBotAPI(cfg.Bot.Token)

	botRepos := &bot.BotRepos{
		User:    repository.NewUserRepository(db),
		Product: repository.NewProductRepository(db),
		Invoice: repository.NewInvoiceRepository(db),
		Payment: repository.NewPaymentRepository(db),
		Panel:   repository.NewPanelRepository(db),
		Setting: repository.NewSettingRepository(db),
	}

	teleBot, err := bot.New(cfg, botRepos, store, gateways, botAPI, logger)
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	updateDeduper, err := middleware.NewUpdateDeduper(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, 10*time.Minute)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory update dedup", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, store, gateways, botAPI, logger, cfg.API.Key, updateDeduper, teleBot.WebhookHandler())

	scheduler := cron.NewScheduler(&cron.Repos{
		User:    botRepos.User,
		Invoice: botRepos.Invoice,
		Payment: botRepos.Payment,
		Panel:   botRepos.Panel,
		Setting: botRepos.Setting,
	}, botAPI, logger, cfg.Audit.LogPath)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start cron scheduler", zap.Error(err))
	}

	go teleBot.Start()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	scheduler.Stop()
	teleBot.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}

	audit.Close()
}
