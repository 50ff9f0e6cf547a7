package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/engine"
	"github.com/shaiso/procflow/internal/nodes"
	"github.com/shaiso/procflow/internal/telemetry"
)

// Сообщения журнала execution.
const (
	msgNodeSucceeded = "node executed successfully"
	msgNodeFailed    = "node execution failed: "
)

// WorkflowEngine выполняет WorkflowDefinition.
//
// Не хранит состояния между вызовами: каждый Execute владеет
// собственным ExecutionContext.
type WorkflowEngine struct {
	factory  *nodes.Factory
	recorder Recorder
	plans    PlanCache
	logger   *slog.Logger
}

// Config — конфигурация WorkflowEngine.
type Config struct {
	// Factory — фабрика узлов (обязательна).
	Factory *nodes.Factory

	// Recorder — хранилище статуса, журнала и результата (обязателен).
	Recorder Recorder

	// Plans — кэш планов. nil — план считается при каждом запуске.
	Plans PlanCache

	// Logger
	Logger *slog.Logger
}

// New создаёт новый WorkflowEngine.
func New(cfg Config) (*WorkflowEngine, error) {
	if cfg.Factory == nil {
		return nil, ErrNoFactory
	}
	if cfg.Recorder == nil {
		return nil, ErrNoRecorder
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkflowEngine{
		factory:  cfg.Factory,
		recorder: cfg.Recorder,
		plans:    cfg.Plans,
		logger:   logger,
	}, nil
}

// Option — опция одного запуска.
type Option func(*runOptions)

type runOptions struct {
	variables map[string]any
}

// WithVariables задаёт глобальные переменные execution.
// Переменная "execution" зарезервирована и всегда содержит {"id": ...}.
func WithVariables(vars map[string]any) Option {
	return func(o *runOptions) {
		o.variables = vars
	}
}

// Execute проводит execution через весь граф.
//
// Порядок:
//  1. Валидация и порядок выполнения; ошибка → failed, *ExecutionError
//  2. pending → running
//  3. Узлы по порядку; ошибка узла с on_error=continue логируется и пропускается,
//     иначе → failed, *ExecutionError с ID узла. Отмена ctx → failed всегда
//  4. Результат (снимок outputs) → success
//
// Все финальные ошибки, включая отказы Recorder, записываются как failed
// до возврата.
func (e *WorkflowEngine) Execute(ctx context.Context, def *domain.WorkflowDefinition, executionID uuid.UUID, opts ...Option) (map[string]any, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	logger := telemetry.WithExecutionID(e.logger, executionID.String())

	// Запись в хранилище должна пережить отмену ctx (shutdown worker'а),
	// иначе failed статус не будет сохранён.
	rctx := context.WithoutCancel(ctx)

	order, err := e.plan(def)
	if err != nil {
		logger.Warn("workflow definition rejected", "error", err)
		return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, Err: err})
	}

	if err := e.recorder.UpdateExecutionStatus(rctx, executionID, domain.ExecutionStatusRunning, ""); err != nil {
		return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, Err: fmt.Errorf("%w: mark running: %v", ErrRecorder, err)})
	}

	ec := engine.NewExecutionContext(ro.variables)
	ec.SetGlobalVar("execution", map[string]any{"id": executionID.String()})

	defs := make(map[string]*domain.NodeDef, len(def.Nodes))
	for i := range def.Nodes {
		defs[def.Nodes[i].ID] = &def.Nodes[i]
	}

	logger.Info("execution started", "nodes", len(order))
	start := time.Now()

	for _, nodeID := range order {
		nodeDef := defs[nodeID]
		nodeLogger := telemetry.WithNodeID(logger, nodeID)

		// Отмена прерывает execution независимо от on_error узлов.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err := nodes.NewNodeExecutionError(nodeID, nodeDef.Type, fmt.Errorf("%w: %v", nodes.ErrNodeCancelled, ctxErr))
			nodeLogger.Warn("execution cancelled", "error", err)
			return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, NodeID: nodeID, Err: err})
		}

		output, err := e.runNode(ctx, ec, nodeDef)
		if err == nil {
			ec.SetNodeOutput(nodeID, output)
			e.appendLog(rctx, nodeLogger, executionID, nodeID, domain.LogLevelInfo, msgNodeSucceeded,
				map[string]any{"result": output})
			continue
		}

		e.appendLog(rctx, nodeLogger, executionID, nodeID, domain.LogLevelError, msgNodeFailed+err.Error(), nil)

		if nodeDef.OnError.ContinueOnError() && !errors.Is(err, nodes.ErrNodeCancelled) {
			nodeLogger.Warn("node failed, continuing", "type", nodeDef.Type, "error", err)
			continue
		}

		nodeLogger.Error("node failed, aborting execution", "type", nodeDef.Type, "error", err)
		return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, NodeID: nodeID, Err: err})
	}

	snapshot := ec.Snapshot()

	if err := e.recorder.RecordResult(rctx, executionID, snapshot); err != nil {
		return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, Err: fmt.Errorf("%w: record result: %v", ErrRecorder, err)})
	}
	if err := e.recorder.UpdateExecutionStatus(rctx, executionID, domain.ExecutionStatusSuccess, ""); err != nil {
		return nil, e.fail(rctx, &ExecutionError{ExecutionID: executionID, Err: fmt.Errorf("%w: mark success: %v", ErrRecorder, err)})
	}

	telemetry.ObserveExecution(string(domain.ExecutionStatusSuccess))
	logger.Info("execution succeeded", "duration", time.Since(start))

	return snapshot, nil
}

// plan возвращает порядок выполнения, используя кэш, если он есть.
func (e *WorkflowEngine) plan(def *domain.WorkflowDefinition) ([]string, error) {
	if def == nil {
		return engine.Plan(nil)
	}

	if e.plans != nil {
		if order, ok := e.plans.Get(def); ok {
			return order, nil
		}
	}

	order, err := engine.Plan(def)
	if err != nil {
		return nil, err
	}

	if e.plans != nil {
		e.plans.Put(def, order)
	}
	return order, nil
}

// runNode создаёт, проверяет и выполняет один узел.
// Любая ошибка возвращается как *nodes.NodeExecutionError.
func (e *WorkflowEngine) runNode(ctx context.Context, ec *engine.ExecutionContext, def *domain.NodeDef) (output any, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		telemetry.ObserveNode(def.Type, status, time.Since(start))
	}()

	node, err := e.factory.Create(def.Type, def.ID, def.Config)
	if err != nil {
		return nil, asNodeError(def, err)
	}

	if !node.ValidateConfig() {
		return nil, nodes.NewNodeExecutionError(def.ID, def.Type,
			fmt.Errorf("%w: required config keys are missing", nodes.ErrInvalidConfig))
	}

	output, err = safeExecute(ctx, ec, node)
	if err != nil {
		return nil, asNodeError(def, err)
	}
	return output, nil
}

// safeExecute вызывает node.Execute, превращая панику в ошибку.
func safeExecute(ctx context.Context, ec *engine.ExecutionContext, node nodes.Node) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", nodes.ErrNodePanic, r)
		}
	}()
	return node.Execute(ctx, ec)
}

func asNodeError(def *domain.NodeDef, err error) error {
	var nodeErr *nodes.NodeExecutionError
	if errors.As(err, &nodeErr) {
		return err
	}
	return nodes.NewNodeExecutionError(def.ID, def.Type, err)
}

// fail записывает failed статус и возвращает итоговую ошибку.
func (e *WorkflowEngine) fail(ctx context.Context, execErr *ExecutionError) error {
	telemetry.ObserveExecution(string(domain.ExecutionStatusFailed))

	if err := e.recorder.UpdateExecutionStatus(ctx, execErr.ExecutionID, domain.ExecutionStatusFailed, execErr.Error()); err != nil {
		return errors.Join(execErr, fmt.Errorf("%w: mark failed: %v", ErrRecorder, err))
	}
	return execErr
}

// appendLog пишет запись журнала. Ошибка записи не меняет исход узла.
func (e *WorkflowEngine) appendLog(ctx context.Context, logger *slog.Logger, id uuid.UUID, nodeID string, level domain.LogLevel, message string, metadata map[string]any) {
	if err := e.recorder.AppendExecutionLog(ctx, id, nodeID, level, message, metadata); err != nil {
		logger.Error("failed to append execution log", "level", level, "error", err)
	}
}
