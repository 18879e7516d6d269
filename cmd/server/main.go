package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/virtualwallet/backend/internal/bankcards"
	"github.com/virtualwallet/backend/internal/config"
	"github.com/virtualwallet/backend/internal/currency"
	"github.com/virtualwallet/backend/internal/database"
	"github.com/virtualwallet/backend/internal/handlers"
	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/observability"
	"github.com/virtualwallet/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(ctx, database.GetConfig(), logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient := database.InitRedis(ctx, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	rates := currency.NewClient(currency.ClientConfig{
		BaseURL:    cfg.Currency.BaseURL,
		APIKey:     cfg.Currency.APIKey,
		Timeout:    cfg.Currency.HTTPTimeout,
		MaxRetries: cfg.Currency.MaxRetries,
		Backoff:    cfg.Currency.Backoff,
	})
	currencies, err := currency.Load(ctx, cfg.Currency.CacheFile, rates, logger)
	if err != nil {
		logger.Fatal("failed to load currency table", zap.Error(err))
	}
	seeded, err := currencies.Seed(ctx, db)
	if err != nil {
		logger.Fatal("failed to seed currencies", zap.Error(err))
	}
	logger.Info("currency table ready", zap.Int("currencies", currencies.Len()), zap.Int64("inserted", seeded))
	converter := currency.NewConverter(rates, redisClient, cfg.Currency.RateTTL, metrics, logger)

	audit := hsm.NewAuditLogger(logger)
	vault, err := hsm.NewVault(hsm.Config{
		MasterKey:   cfg.VaultMasterKey,
		Salt:        cfg.VaultSalt,
		AuditLogger: audit,
	})
	if err != nil {
		logger.Fatal("failed to initialize card vault", zap.Error(err))
	}

	ledgerService := services.NewLedgerService(db, converter, currencies, audit, metrics, logger)
	historyService := services.NewHistoryService(db, logger)
	recurringService := services.NewRecurringService(db, logger)
	authService := services.NewAuthService(db, redisClient, currencies, services.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  time.Duration(cfg.JWTExpiryHours) * time.Hour,
		Argon2:    cfg.Argon2,
	}, logger)
	cardService := services.NewCardService(db, vault, audit, logger)
	bank := bankcards.NewClient(bankcards.ClientConfig{
		BaseURL:    cfg.BankCards.BaseURL,
		Timeout:    cfg.BankCards.HTTPTimeout,
		MaxRetries: cfg.BankCards.MaxRetries,
		Backoff:    cfg.BankCards.Backoff,
	})
	fundingService := services.NewFundingService(cardService, bank, ledgerService, converter, audit, logger)
	adminService := services.NewAdminService(db, ledgerService, historyService, audit, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:       logger,
		Metrics:      metrics,
		Verifier:     authService,
		Admins:       authService,
		StaticDir:    "./static/avatars",
		Auth:         handlers.NewAuthHandler(authService, logger),
		Transactions: handlers.NewTransactionHandler(ledgerService, historyService, recurringService, logger),
		Recurring:    handlers.NewRecurringHandler(recurringService),
		Categories:   handlers.NewCategoryHandler(services.NewCategoryService(db, logger)),
		Contacts:     handlers.NewContactsHandler(services.NewContactsService(db, logger)),
		Cards:        handlers.NewCardHandler(cardService, fundingService),
		QR:           handlers.NewQRHandler(services.NewQRService(db, redisClient)),
		Currencies:   handlers.NewCurrencyHandler(currencies),
		Admin:        handlers.NewAdminHandler(adminService),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg conc.WaitGroup

	if cfg.Scheduler.Enabled {
		scheduler := services.NewRecurringScheduler(recurringService, ledgerService, cfg.Scheduler.Interval, metrics, logger)
		wg.Go(func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("recurring scheduler exited", zap.Error(err))
			}
		})
	} else {
		logger.Info("recurring scheduler disabled")
	}

	wg.Go(func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
}
