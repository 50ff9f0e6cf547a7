package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/procflow/internal/domain"
)

// LogRepo — журнал executions (append-only).
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append добавляет запись в журнал.
func (r *LogRepo) Append(ctx context.Context, entry *domain.ExecutionLog) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO execution_logs (id, execution_id, node_id, level, message, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.NodeID,
		entry.Level,
		entry.Message,
		metadataJSON,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

// ListByExecution возвращает журнал execution по возрастанию времени.
func (r *LogRepo) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]domain.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_id, level, message, metadata, timestamp
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExecutionLog
	for rows.Next() {
		var entry domain.ExecutionLog
		var metadataJSON []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.NodeID,
			&entry.Level,
			&entry.Message,
			&metadataJSON,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}

		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
