package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/mq"
	"github.com/shaiso/procflow/internal/orchestrator"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultConcurrency  = 4
)

// ExecutionStore — операции с executions, нужные воркеру.
type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	ListPending(ctx context.Context, limit int) ([]domain.Execution, error)
}

// WorkflowStore загружает workflow по ID.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// StatusRecorder записывает статус execution, который не дошёл до движка.
type StatusRecorder interface {
	UpdateExecutionStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error
}

// Engine выполняет определение (orchestrator.WorkflowEngine).
type Engine interface {
	Execute(ctx context.Context, def *domain.WorkflowDefinition, executionID uuid.UUID, opts ...orchestrator.Option) (map[string]any, error)
}

// Worker выполняет executions.
type Worker struct {
	executions ExecutionStore
	workflows  WorkflowStore
	recorder   StatusRecorder
	engine     Engine
	conn       *mq.Connection

	pollInterval time.Duration
	batchSize    int
	concurrency  int

	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Executions ExecutionStore
	Workflows  WorkflowStore
	Recorder   StatusRecorder
	Engine     Engine

	// Conn — соединение с RabbitMQ. nil — только polling.
	Conn *mq.Connection

	PollInterval time.Duration // default: 10s
	BatchSize    int           // executions за один poll (default: 50)
	Concurrency  int           // одновременно выполняемые executions (default: 4)

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	w := &Worker{
		executions:   cfg.Executions,
		workflows:    cfg.Workflows,
		recorder:     cfg.Recorder,
		engine:       cfg.Engine,
		conn:         cfg.Conn,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		concurrency:  cfg.Concurrency,
		logger:       cfg.Logger,
	}

	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.concurrency <= 0 {
		w.concurrency = defaultConcurrency
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "worker")

	return w
}

// Start запускает consumer (если есть соединение) и polling.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"concurrency", w.concurrency,
	)

	if w.conn != nil {
		consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:       mq.QueueExecutionsRequested,
			Handler:     w.handleExecutionRequested,
			Concurrency: w.concurrency,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
}

// Stop останавливает воркер и ждёт текущие executions.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Подхватываем executions, созданные пока воркер был выключен.
	w.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll выполняет один проход по pending executions.
// Возвращает количество executions, которые этот воркер захватил.
func (w *Worker) Poll(ctx context.Context) int {
	pending, err := w.executions.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending executions", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	w.logger.Debug("poll found pending executions", "count", len(pending))

	var (
		mu      sync.Mutex
		claimed int
		g       errgroup.Group
	)
	g.SetLimit(w.concurrency)

	for i := range pending {
		id := pending[i].ID
		g.Go(func() error {
			err := w.Process(ctx, id)
			switch {
			case err == nil:
				mu.Lock()
				claimed++
				mu.Unlock()
			case errors.Is(err, ErrNotPending):
			default:
				w.logger.Error("failed to process execution", "execution_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return claimed
}
