package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/config"
	"github.com/Eursukkul/token-bidding/internal/cache"
	"github.com/Eursukkul/token-bidding/internal/consumer"
	"github.com/Eursukkul/token-bidding/internal/handler"
	"github.com/Eursukkul/token-bidding/internal/lifecycle"
	"github.com/Eursukkul/token-bidding/internal/metrics"
	"github.com/Eursukkul/token-bidding/internal/middleware"
	"github.com/Eursukkul/token-bidding/internal/repository"
	"github.com/Eursukkul/token-bidding/internal/service"
	"github.com/Eursukkul/token-bidding/pkg/database"
	"github.com/Eursukkul/token-bidding/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("database connection failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	slog.Info("database ready", "driver", cfg.DBDriver)

	// Balance cache: Redis when configured
	var balances cache.BalanceCache = cache.Noop{}
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		balances = cache.NewRedisBalanceCache(rdb, cfg.BalanceCacheTTL)
		slog.Info("redis balance cache enabled", "ttl", cfg.BalanceCacheTTL)
	}

	deps := service.Deps{
		Tx: service.NewTxRunner(db, service.TxOptions{
			LockTimeout:      cfg.LockTimeout,
			StatementTimeout: cfg.StatementTimeout,
			MaxRetries:       cfg.TxMaxRetries,
			Backoff:          cfg.TxRetryBackoff,
		}, logger),
		Repos:  repository.New(),
		Clock:  lifecycle.Real(),
		Cache:  balances,
		Logger: logger,
	}

	// RabbitMQ: directory sync in, notifications out
	var (
		notifier     handler.Notifier
		consumerDone <-chan struct{}
		mqConsumer   *rabbitmq.Consumer
	)
	if cfg.RabbitURL != "" {
		mqConsumer, err = rabbitmq.NewConsumer(cfg.RabbitURL, logger)
		if err != nil {
			slog.Error("failed to connect to RabbitMQ", "err", err)
			os.Exit(1)
		}
		msgs, err := mqConsumer.Consume()
		if err != nil {
			slog.Error("failed to start consuming", "err", err)
			os.Exit(1)
		}
		consumerDone = consumer.NewEnrollmentConsumer(service.NewDirectoryService(deps), logger).Start(msgs)

		publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, logger)
		if err != nil {
			slog.Error("failed to open RabbitMQ publisher", "err", err)
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		slog.Warn("RABBITMQ_URL not set, directory sync and notifications disabled")
	}

	svc := handler.Services{
		Bids:          service.NewBidService(deps),
		Selection:     service.NewSelectionService(deps, nil),
		Cascade:       service.NewCascadeService(deps),
		Ledger:        service.NewLedgerService(deps),
		Opportunities: service.NewOpportunityService(deps),
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(echoMw.Recover())
	e.Use(metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "bidding-service"})
	})
	e.GET("/metrics", metrics.Handler())

	handler.NewBiddingHandler(svc, notifier, logger).RegisterRoutes(e)

	go func() {
		slog.Info("bidding-service listening", "port", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down bidding-service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if mqConsumer != nil {
		mqConsumer.Close()
		select {
		case <-consumerDone:
		case <-ctx.Done():
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return database.NewSQLiteDB(cfg.DSN(), 0)
	}
	return database.NewPostgresDB(cfg.DSN())
}
