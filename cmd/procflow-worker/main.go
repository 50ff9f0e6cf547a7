// procflow-worker — выполняет executions.
//
// Worker:
//   - Получает execution.requested из RabbitMQ
//   - Подбирает pending executions polling'ом (если брокер недоступен, только так)
//   - Выполняет определение движком и пишет статус, логи и результат в PostgreSQL
//
// Workers масштабируются горизонтально: execution забирает тот, кто первым сделал claim.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/procflow/internal/cli"
	"github.com/shaiso/procflow/internal/config"
	"github.com/shaiso/procflow/internal/mq"
	"github.com/shaiso/procflow/internal/orchestrator"
	"github.com/shaiso/procflow/internal/repo"
	"github.com/shaiso/procflow/internal/telemetry"
	"github.com/shaiso/procflow/internal/topology"
	"github.com/shaiso/procflow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting procflow-worker")

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

	executions := repo.NewExecutionRepo(pool)
	recorder := repo.NewRecorder(executions, repo.NewLogRepo(pool))

	plans, err := topology.New(topology.Config{Size: cfg.PlanCacheSize, TTL: cfg.PlanCacheTTL})
	if err != nil {
		logger.Error("failed to create plan cache", "error", err)
		os.Exit(1)
	}
	defer plans.Close()

	engine, err := orchestrator.New(orchestrator.Config{
		Factory:  cli.DefaultFactory(),
		Recorder: recorder,
		Plans:    plans,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	w := worker.New(worker.Config{
		Executions:   executions,
		Workflows:    repo.NewWorkflowRepo(pool),
		Recorder:     recorder,
		Engine:       engine,
		Conn:         mqConn,
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.WorkerConcurrency,
		Logger:       logger,
	})
	w.Start(ctx)

	mux := telemetry.NewServeMux(func(ctx context.Context) error { return pool.Ping(ctx) })
	go func() {
		if err := telemetry.Serve(ctx, cfg.Addr(), mux, logger); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("procflow-worker stopped")
}
