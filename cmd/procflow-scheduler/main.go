// procflow-scheduler — создаёт executions по cron расписанию workflows.
//
// Тикает только лидер: лидерство держится через advisory lock PostgreSQL,
// поэтому можно запускать несколько реплик.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/procflow/internal/config"
	"github.com/shaiso/procflow/internal/mq"
	"github.com/shaiso/procflow/internal/repo"
	"github.com/shaiso/procflow/internal/scheduler"
	"github.com/shaiso/procflow/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting procflow-scheduler")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	schedCfg := scheduler.Config{
		Workflows:  repo.NewWorkflowRepo(pool),
		Executions: repo.NewExecutionRepo(pool),
		Logger:     logger,
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, executions will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		schedCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	lock := repo.NewLeaderLock(pool, repo.SchedulerLockKey)
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("failed to release leader lock", "error", err)
		}
	}()

	mux := telemetry.NewServeMux(func(ctx context.Context) error { return pool.Ping(ctx) })
	go func() {
		if err := telemetry.Serve(ctx, cfg.Addr(), mux, logger); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("scheduler started", "interval", cfg.SchedulerInterval)
	scheduler.New(schedCfg).Run(ctx, cfg.SchedulerInterval, lock)

	logger.Info("procflow-scheduler stopped")
}
