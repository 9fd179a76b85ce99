package main

import (
	"context"
	"errors"
	"fmt"
	"gym-billing-reconciler/internal/client"
	"gym-billing-reconciler/internal/config"
	"gym-billing-reconciler/internal/logger"
	"gym-billing-reconciler/internal/notifier"
	"gym-billing-reconciler/internal/repository"
	"gym-billing-reconciler/internal/server"
	"gym-billing-reconciler/internal/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	db, err := client.InitDBClient(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := client.Migrate(db); err != nil {
		return err
	}

	stripeClient := client.NewStripeClient(&cfg.Stripe)

	userRepo := repository.NewUserRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	loyaltyRepo := repository.NewLoyaltyRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	ledger := service.NewLedger(webhookEventRepo, cfg.Webhook.ProcessingLease)
	if cfg.RedisURL != "" {
		cache, err := client.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer cache.Close()
		ledger = service.NewCachedLedger(ledger, cache, cfg.Webhook.ProcessedCacheTTL, log)
	}

	notif, closeNotifier, err := newNotifier(cfg.Notifier, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	plans, err := service.NewPlanResolver(cfg.Stripe.ProductTiers)
	if err != nil {
		return fmt.Errorf("product tiers: %w", err)
	}

	if cfg.Webhook.DevBypassSignature {
		log.Warn("webhook signature dev bypass is enabled", zap.String("verification", "dev_bypass"))
	}
	if cfg.Webhook.LenientVerification {
		log.Warn("lenient webhook verification is enabled", zap.String("verification", "unverified"))
	}

	intake := service.NewEventIntake(service.IntakeConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		DevBypass:     cfg.Webhook.DevBypassSignature,
		DevSentinel:   cfg.Webhook.DevSignatureSentinel,
		Lenient:       cfg.Webhook.LenientVerification,
	}, log)

	webhookService := service.NewWebhookService(
		intake,
		ledger,
		stripeClient,
		userRepo,
		memberRepo,
		orderRepo,
		bookingRepo,
		loyaltyRepo,
		notif,
		service.NewEffectDispatcher(log),
		plans,
		service.WebhookOptions{
			SessionLookupLimit:      cfg.Stripe.SessionLookupLimit,
			UntypedPaymentAsBooking: cfg.Webhook.UntypedPaymentAsBooking,
		},
		log,
	)
	adminService := service.NewAdminService(webhookEventRepo, memberRepo, userRepo, log)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(webhookService, adminService, cfg.AdminToken, log)

	log.Info("Starting HTTP server", zap.String("addr", serverAddr), zap.String("environment", cfg.Environment.Name))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
	}
	log.Info("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

func newNotifier(cfg config.Notifier, log *zap.Logger) (notifier.Notifier, func(), error) {
	switch cfg.Driver {
	case "amqp":
		publisher, err := client.NewPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("init notification broker: %w", err)
		}
		return notifier.NewBrokerNotifier(publisher), func() { _ = publisher.Close() }, nil
	default:
		return notifier.NewLogNotifier(log), func() {}, nil
	}
}
