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

	"github.com/odyssey-erp/bizportal/internal/app"
	"github.com/odyssey-erp/bizportal/internal/integrations/quoteapi"
	"github.com/odyssey-erp/bizportal/internal/observability"
	"github.com/odyssey-erp/bizportal/internal/platform/cache"
	"github.com/odyssey-erp/bizportal/internal/platform/db"
	"github.com/odyssey-erp/bizportal/internal/quotes"
	quoteshttp "github.com/odyssey-erp/bizportal/internal/quotes/http"
	"github.com/odyssey-erp/bizportal/internal/quotes/journal"
	"github.com/odyssey-erp/bizportal/internal/session"
	"github.com/odyssey-erp/bizportal/jobs"
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
	slog.SetDefault(logger)

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

	sessionManager := session.NewManager(redisClient, "portal_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	queueClient := jobs.NewClient(cache.QueueOpt(cfg.RedisAddr))
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	opts := []quotes.Option{
		quotes.WithLogger(logger),
		quotes.WithRecorder(metrics),
		quotes.WithScheduler(queueClient),
	}

	if cfg.JournalEnabled {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		quoteJournal := journal.New(pool)
		if err := quoteJournal.EnsureSchema(ctx); err != nil {
			logger.Error("journal schema", slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, quotes.WithJournal(quoteJournal))
	}

	quoteClient := quoteapi.NewClient(quoteapi.Config{
		BaseURL: cfg.QuoteAPIURL,
		Path:    cfg.QuoteAPIPath,
		Token:   cfg.QuoteAPIToken,
		Timeout: cfg.QuoteAPITimeout,
	})
	quoteService := quotes.NewService(quoteClient, opts...)
	quoteHandler := quoteshttp.NewHandler(logger, quoteService, sessionManager)

	inspector := asynq.NewInspector(cache.QueueOpt(cfg.RedisAddr))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		QuoteHandler:   quoteHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
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
