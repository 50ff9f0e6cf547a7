package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/mq"
	"github.com/shaiso/procflow/internal/orchestrator"
	"github.com/shaiso/procflow/internal/repo"
	"github.com/shaiso/procflow/internal/telemetry"
)

// handleExecutionRequested обрабатывает execution.requested.
func (w *Worker) handleExecutionRequested(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.DecodePayload[mq.ExecutionRequested](msg)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	err = w.Process(ctx, payload.ExecutionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExecutionNotFound), errors.Is(err, ErrNotPending):
		// Дубликат сообщения или execution уже взят через polling.
		w.logger.Debug("execution skipped", "execution_id", payload.ExecutionID, "reason", err)
		return nil
	default:
		return err
	}
}

// Process захватывает и выполняет один execution.
//
// Ошибки:
//   - ErrExecutionNotFound, ErrNotPending — выполнять нечего
//   - прочие — инфраструктурные, возникли до захвата; можно повторить
//
// После успешного захвата Process возвращает nil: исход execution
// (success или failed) уже записан.
func (w *Worker) Process(ctx context.Context, executionID uuid.UUID) error {
	exec, err := w.executions.GetByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
		}
		return fmt.Errorf("get execution: %w", err)
	}

	if exec.Status != domain.ExecutionStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, executionID, exec.Status)
	}

	wf, wfErr := w.workflows.GetByID(ctx, exec.WorkflowID)
	if wfErr != nil && !errors.Is(wfErr, repo.ErrNotFound) {
		return fmt.Errorf("get workflow: %w", wfErr)
	}

	claimed, err := w.executions.Claim(ctx, executionID)
	if err != nil {
		return fmt.Errorf("claim execution: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s was claimed concurrently", ErrNotPending, executionID)
	}

	logger := telemetry.WithWorkflowID(telemetry.WithExecutionID(w.logger, executionID.String()), exec.WorkflowID.String())

	if wfErr != nil {
		msg := fmt.Sprintf("%v: %s", ErrWorkflowNotFound, exec.WorkflowID)
		logger.Error("workflow of claimed execution is missing")
		if err := w.recorder.UpdateExecutionStatus(context.WithoutCancel(ctx), executionID, domain.ExecutionStatusFailed, msg); err != nil {
			logger.Error("failed to mark execution failed", "error", err)
		}
		telemetry.ObserveExecution(string(domain.ExecutionStatusFailed))
		return nil
	}

	logger.Info("execution claimed", "trigger", exec.TriggerType)

	vars := map[string]any{
		"workflow": map[string]any{"id": wf.ID.String(), "name": wf.Name},
		"trigger":  string(exec.TriggerType),
	}

	if _, err := w.engine.Execute(ctx, &wf.Definition, executionID, orchestrator.WithVariables(vars)); err != nil {
		if errors.Is(err, orchestrator.ErrRecorder) {
			// Движок уже попытался записать failed; повтор не поможет.
			logger.Error("execution outcome may not be persisted", "error", err)
			return nil
		}
		logger.Warn("execution failed", "error", err)
		return nil
	}

	logger.Info("execution succeeded")
	return nil
}
