package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/handler"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/logger"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/scheduler"
	"github.com/segyhp/loan-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("Server exited")
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Initialize storage
	db, loanRepo, err := initStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	// Initialize Redis
	var redisClient *redis.Client
	var cache repository.CacheRepository
	if cfg.Redis.Enabled {
		redisClient = initRedis(cfg)
		defer redisClient.Close()
		cache = repository.NewRedisCache(redisClient, cfg.Redis.KeyPrefix)
	} else {
		cache = repository.NewMemoryCache()
	}

	// Restore ledger state
	loanLedger := ledger.New(loanRepo, ledger.WithMaxTermMonths(cfg.Business.MaxTermMonths))
	if err := loanLedger.Load(ctx); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	log.Info().Int("loans", len(loanLedger.List())).Str("driver", cfg.Database.Driver).Msg("ledger loaded")

	// Initialize service
	loanService := service.NewLoanService(loanLedger, cache, cfg.Redis.ViewTTL, logger.WithComponent("service"))
	loanHandler := handler.NewLoanHandler(loanService, logger.WithComponent("handler"))
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	router := handler.NewRouter(loanHandler, healthHandler, logger.WithComponent("http"))

	// Status sweep
	var sweeper *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweeper = scheduler.New(loanService, cfg.Business.DelinquencyThreshold, cfg.Location(), logger.WithComponent("scheduler"))
		if err := sweeper.Start(cfg.Scheduler.Spec); err != nil {
			return err
		}
		log.Info().Str("spec", cfg.Scheduler.Spec).Str("timezone", cfg.Scheduler.Timezone).Msg("Scheduler started")
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// initStorage returns a nil db for the in-memory driver.
func initStorage(ctx context.Context, cfg *config.Config) (*sqlx.DB, repository.LoanRepository, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("using in-memory storage, loans are lost on restart")
		return nil, repository.NewMemoryRepository(), nil
	}

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.Driver == repository.DriverPostgres {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	return db, repository.NewLoanRepository(db), nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
