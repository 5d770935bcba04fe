package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilyaberbx/decentra-test-task/internal/clients/appraisal"
	"github.com/Ilyaberbx/decentra-test-task/internal/clients/catalog"
	"github.com/Ilyaberbx/decentra-test-task/internal/config"
	"github.com/Ilyaberbx/decentra-test-task/internal/database"
	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/cards"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/orders"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/valuesync"
	"github.com/Ilyaberbx/decentra-test-task/internal/modules/wallet"
	"github.com/Ilyaberbx/decentra-test-task/internal/scheduler"
	"github.com/Ilyaberbx/decentra-test-task/internal/server"
	"github.com/Ilyaberbx/decentra-test-task/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "card-value-sync",
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting card value sync service")

	// Initialize database
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cards.db"),
		Name: "cards",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(cards.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Card storage with change notifications
	cardRepo := cards.NewRepository(db.Conn(), log)
	cardService := cards.NewService(cardRepo, log)

	// Provider clients
	catalogClient := catalog.NewClient(cfg.CatalogAPIURL, log)
	appraisalClient := appraisal.NewClient(cfg.AppraisalAPIURL, cfg.AppraisalAuthToken, log)

	// Sync service
	syncService := valuesync.NewService(valuesync.Config{
		Categories: cfg.SyncCategories,
	}, catalogClient, appraisalClient, cardService, log)

	// Wallet and order reactor
	ledger := wallet.NewLedger(log)
	ledger.Deposit(cfg.WalletAddress, cfg.WalletInitialBalance)

	orderService := orders.NewService(orders.Config{
		WalletAddress:         cfg.WalletAddress,
		PlaceOrdersDuringSync: cfg.PlaceOrdersDuringSync,
	}, ledger, syncService, log)
	cardService.Subscribe(orderService)

	// Initialize scheduler
	sched := scheduler.New(log)
	registerJobs(sched, syncService, log)
	sched.Start()
	defer sched.Stop()

	// Run an initial full sync when the store is empty, so a fresh deployment
	// has data before the first cron refresh fires.
	go func() {
		empty, err := cardService.IsEmpty()
		if err != nil {
			log.Error().Err(err).Msg("Failed to check store state")
			return
		}
		if !empty {
			return
		}

		log.Info().Msg("Store is empty, running initial sync")
		if err := syncService.SyncAll(); err != nil {
			log.Error().Err(err).Msg("Initial sync failed")
		}
	}()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		ThrottleLimit: cfg.ThrottleLimit,
		CardService:   cardService,
		SyncService:   syncService,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, syncService *valuesync.Service, log zerolog.Logger) {
	jobs := []struct {
		schedule string
		tier     domain.ValueTier
	}{
		{valuesync.ScheduleHighTierRefresh, domain.TierHigh},
		{valuesync.ScheduleMediumTierRefresh, domain.TierMedium},
		{valuesync.ScheduleLowTierRefresh, domain.TierLow},
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, valuesync.NewTierRefreshJob(syncService, j.tier)); err != nil {
			log.Fatal().Err(err).Str("tier", string(j.tier)).Msg("Failed to register refresh job")
		}
	}
}
