package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/listopadhq/listopad/internal/domain"
)

// EventRepo — read-side репозиторий журнала событий.
// Журнал append-only: запись идёт только через lifecycle.Engine.
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

const eventColumns = `
	id, seq, run_id, target_id, type, from_status, to_status,
	status_reason, triggered_by, triggered_by_id, data, created_at`

// ListByRun возвращает события run в порядке записи.
// seq (bigserial) — tie-break для событий с одинаковым created_at,
// записанных одним переходом.
func (r *EventRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.SubmissionEvent, error) {
	query := `SELECT` + eventColumns + `
		FROM submission_events
		WHERE run_id = $1
		ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list events by run: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListByTarget возвращает события всех runs одного target,
// новые первыми.
func (r *EventRepo) ListByTarget(ctx context.Context, targetID uuid.UUID, limit, offset int) ([]domain.SubmissionEvent, error) {
	query := `SELECT` + eventColumns + `
		FROM submission_events
		WHERE target_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, targetID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events by target: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.SubmissionEvent, error) {
	var events []domain.SubmissionEvent
	for rows.Next() {
		var event domain.SubmissionEvent
		var dataJSON []byte
		err := rows.Scan(
			&event.ID,
			&event.Seq,
			&event.RunID,
			&event.TargetID,
			&event.Type,
			&event.FromStatus,
			&event.ToStatus,
			&event.StatusReason,
			&event.TriggeredBy,
			&event.TriggeredByID,
			&dataJSON,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
