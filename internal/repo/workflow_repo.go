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

const workflowColumns = `
	id, name, description, definition, is_active, schedule, next_run_at, created_at, updated_at`

// WorkflowRepo — репозиторий для работы с workflows.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

// Create сохраняет workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	defJSON, err := json.Marshal(wf.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, description, definition, is_active, schedule, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		wf.ID,
		wf.Name,
		wf.Description,
		defJSON,
		wf.IsActive,
		nullString(wf.Schedule),
		wf.NextRunAt,
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	return scanWorkflow(r.pool.QueryRow(ctx, query, id))
}

// ListDueScheduled возвращает активные workflows с расписанием,
// у которых next_run_at наступил или ещё не рассчитан.
func (r *WorkflowRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE is_active = true
		  AND schedule IS NOT NULL
		  AND (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY next_run_at ASC NULLS FIRST
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

// UpdateNextRun сдвигает время следующего запуска.
func (r *WorkflowRepo) UpdateNextRun(ctx context.Context, id uuid.UUID, next time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE workflows SET next_run_at = $2, updated_at = $3 WHERE id = $1`,
		id, next, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update next run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanWorkflow сканирует одну строку в Workflow.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var defJSON []byte
	var schedule *string

	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Description,
		&defJSON,
		&wf.IsActive,
		&schedule,
		&wf.NextRunAt,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	if err := json.Unmarshal(defJSON, &wf.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	if schedule != nil {
		wf.Schedule = *schedule
	}

	return &wf, nil
}
