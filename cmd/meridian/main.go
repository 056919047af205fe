package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nats-io/nats.go"

	"github.com/meridianbank/meridianbank/internal/app"
	"github.com/meridianbank/meridianbank/internal/auth"
	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/loan"
	"github.com/meridianbank/meridianbank/internal/notify"
	"github.com/meridianbank/meridianbank/internal/platform/cache"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Event publishing is best effort; the API keeps serving without it.
	var nc *nats.Conn
	if conn, err := nats.Connect(cfg.NATSURL, nats.Name("meridian-api")); err != nil {
		logger.Warn("connect nats", slog.Any("error", err))
	} else {
		nc = conn
		defer nc.Drain() //nolint:errcheck
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool))
	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)

	sink := notify.NewFanout(nc, jobsClient, authService, logger)

	journalService := journal.NewService(journal.NewRepository(pool))
	ledgerService := ledger.NewService(ledger.NewRepository(pool), sink, logger)
	loanService := loan.NewService(loan.NewRepository(pool), ledgerService, journalService, sink, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    auth.NewHandler(logger, authService, tokens),
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		LoanHandler:    loan.NewHandler(logger, loanService),
		JournalHandler: journal.NewHandler(logger, journalService, ledgerService),
		JobHandler:     jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
