package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/procflow/internal/domain"
)

const executionColumns = `
	id, workflow_id, status, trigger_type, started_at, completed_at,
	error_message, result_data, idempotency_key, created_at`

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт новый execution.
// Повтор ключа идемпотентности для того же workflow — ErrAlreadyExists.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.Execution) error {
	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_type, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.WorkflowID,
		exec.Status,
		exec.TriggerType,
		nullString(exec.IdempotencyKey),
		exec.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает execution по ключу идемпотентности.
func (r *ExecutionRepo) GetByIdempotencyKey(ctx context.Context, workflowID uuid.UUID, key string) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE workflow_id = $1 AND idempotency_key = $2`
	return scanExecution(r.pool.QueryRow(ctx, query, workflowID, key))
}

// UpdateStatus переводит execution в новый статус.
//
// running выставляет started_at, если он ещё не выставлен;
// финальный статус выставляет completed_at.
// Пустой errMsg не затирает уже записанную ошибку.
func (r *ExecutionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error {
	query := `
		UPDATE executions
		SET status        = $2,
		    error_message = COALESCE($3, error_message),
		    started_at    = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $4) ELSE started_at END,
		    completed_at  = CASE WHEN $5 THEN $4 ELSE completed_at END
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		id,
		string(status),
		nullString(errMsg),
		time.Now().UTC(),
		status.IsTerminal(),
	)
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно переводит pending execution в running.
//
// Возвращает false, если execution уже взят другим worker'ом
// или находится в другом статусе.
func (r *ExecutionRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE executions
		SET status = 'running', started_at = COALESCE(started_at, $2)
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim execution: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// RecordResult сохраняет итоговый снимок outputs.
func (r *ExecutionRepo) RecordResult(ctx context.Context, id uuid.UUID, snapshot map[string]any) error {
	resultJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	result, err := r.pool.Exec(ctx, `UPDATE executions SET result_data = $2 WHERE id = $1`, id, resultJSON)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает executions в статусе pending (старые первыми).
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *exec)
	}
	return executions, rows.Err()
}

// scanExecution сканирует одну строку в Execution.
// Подходит и для pgx.Row, и для pgx.Rows.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var resultJSON []byte
	var errorMessage *string
	var idempotencyKey *string

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&exec.Status,
		&exec.TriggerType,
		&exec.StartedAt,
		&exec.CompletedAt,
		&errorMessage,
		&resultJSON,
		&idempotencyKey,
		&exec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &exec.ResultData); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if errorMessage != nil {
		exec.ErrorMessage = *errorMessage
	}
	if idempotencyKey != nil {
		exec.IdempotencyKey = *idempotencyKey
	}

	return &exec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
