package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
)

// Store — Postgres-реализация lifecycle.Store.
//
// Каждый InTx — одна транзакция пула; эксклюзивность перехода
// обеспечивается SELECT ... FOR UPDATE на строке run.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт Store поверх пула.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx выполняет fn в транзакции. Ошибка fn откатывает всё.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, uow lifecycle.UnitOfWork) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txUnit{tx: tx})
	})
}

// txUnit — lifecycle.UnitOfWork поверх одной pgx-транзакции.
type txUnit struct {
	tx pgx.Tx
}

const runColumns = `
	id, target_id, attempt_no, status, status_reason, status_changed_at,
	started_at, completed_at, action_needed, last_error, next_run_at,
	locked_at, locked_by, lease_expires_at,
	external_submission_id, raw_status, raw_status_message,
	changes_acknowledged, changes_acknowledged_at, changes_acknowledged_by,
	previous_run_id, correlation_id, created_at`

func (u *txUnit) GetRunForUpdate(ctx context.Context, runID uuid.UUID) (*domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE id = $1
		FOR UPDATE`
	return scanRun(u.tx.QueryRow(ctx, query, runID))
}

func (u *txUnit) GetRun(ctx context.Context, runID uuid.UUID) (*domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE id = $1`
	return scanRun(u.tx.QueryRow(ctx, query, runID))
}

func (u *txUnit) InsertRun(ctx context.Context, run *domain.SubmissionRun) error {
	actionJSON, err := marshalNullable(run.ActionNeeded)
	if err != nil {
		return fmt.Errorf("marshal action_needed: %w", err)
	}
	errorJSON, err := marshalNullable(run.LastError)
	if err != nil {
		return fmt.Errorf("marshal last_error: %w", err)
	}

	query := `
		INSERT INTO submission_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err = u.tx.Exec(ctx, query,
		run.ID,
		run.TargetID,
		run.AttemptNo,
		run.Status,
		run.StatusReason,
		run.StatusChangedAt,
		run.StartedAt,
		run.CompletedAt,
		actionJSON,
		errorJSON,
		run.NextRunAt,
		run.LockedAt,
		run.LockedBy,
		run.LeaseExpiresAt,
		run.ExternalSubmissionID,
		run.RawStatus,
		run.RawStatusMessage,
		run.ChangesAcknowledged,
		run.ChangesAcknowledgedAt,
		run.ChangesAcknowledgedBy,
		run.PreviousRunID,
		run.CorrelationID,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (u *txUnit) UpdateRun(ctx context.Context, runID uuid.UUID, upd lifecycle.RunUpdate) error {
	set, args, err := runUpdateSet(upd)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, runID)
	query := fmt.Sprintf(
		"UPDATE submission_runs SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args),
	)
	tag, err := u.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrRunNotFound
	}
	return nil
}

// runUpdateSet строит SET-клаузу из частичного обновления.
// nil-поля не попадают в запрос; Clear-флаги пишут NULL.
func runUpdateSet(upd lifecycle.RunUpdate) ([]string, []any, error) {
	var set []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	setNull := func(cols ...string) {
		for _, col := range cols {
			set = append(set, col+" = NULL")
		}
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.StatusReason != nil {
		add("status_reason", *upd.StatusReason)
	} else if upd.ClearReason {
		setNull("status_reason")
	}
	if upd.StatusChangedAt != nil {
		add("status_changed_at", *upd.StatusChangedAt)
	}
	if upd.AttemptNo != nil {
		add("attempt_no", *upd.AttemptNo)
	}
	if upd.StartedAt != nil {
		add("started_at", *upd.StartedAt)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.ActionNeeded != nil {
		actionJSON, err := json.Marshal(upd.ActionNeeded)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal action_needed: %w", err)
		}
		add("action_needed", actionJSON)
	} else if upd.ClearActionNeeded {
		setNull("action_needed")
	}
	if upd.LastError != nil {
		errorJSON, err := json.Marshal(upd.LastError)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal last_error: %w", err)
		}
		add("last_error", errorJSON)
	}
	if upd.NextRunAt != nil {
		add("next_run_at", *upd.NextRunAt)
	} else if upd.ClearNextRunAt {
		setNull("next_run_at")
	}
	if upd.Lock != nil {
		add("locked_at", upd.Lock.LockedAt)
		add("locked_by", upd.Lock.LockedBy)
		add("lease_expires_at", upd.Lock.LeaseExpiresAt)
	} else if upd.ClearLock {
		setNull("locked_at", "locked_by", "lease_expires_at")
	}
	if upd.ExternalSubmissionID != nil {
		add("external_submission_id", *upd.ExternalSubmissionID)
	}
	if upd.RawStatus != nil {
		add("raw_status", *upd.RawStatus)
	}
	if upd.RawStatusMessage != nil {
		add("raw_status_message", *upd.RawStatusMessage)
	}
	if upd.ChangesAcknowledged != nil {
		add("changes_acknowledged", *upd.ChangesAcknowledged)
	}
	if upd.ChangesAcknowledgedAt != nil {
		add("changes_acknowledged_at", *upd.ChangesAcknowledgedAt)
	}
	if upd.ChangesAcknowledgedBy != nil {
		add("changes_acknowledged_by", *upd.ChangesAcknowledgedBy)
	}

	return set, args, nil
}

func (u *txUnit) InsertEvent(ctx context.Context, event *domain.SubmissionEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	query := `
		INSERT INTO submission_events
			(id, run_id, target_id, type, from_status, to_status,
			 status_reason, triggered_by, triggered_by_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = u.tx.Exec(ctx, query,
		event.ID,
		event.RunID,
		event.TargetID,
		event.Type,
		event.FromStatus,
		event.ToStatus,
		event.StatusReason,
		event.TriggeredBy,
		event.TriggeredByID,
		dataJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (u *txUnit) GetTarget(ctx context.Context, targetID uuid.UUID) (*domain.SubmissionTarget, error) {
	query := `
		SELECT id, directory_slug, business_id, current_status,
		       current_run_id, live_verified_at, created_at
		FROM submission_targets
		WHERE id = $1
	`
	target, err := scanTarget(u.tx.QueryRow(ctx, query, targetID))
	if errors.Is(err, ErrNotFound) {
		return nil, lifecycle.ErrTargetNotFound
	}
	return target, err
}

func (u *txUnit) UpdateTargetCurrent(ctx context.Context, targetID uuid.UUID, upd lifecycle.TargetUpdate) error {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.CurrentStatus != nil {
		add("current_status", *upd.CurrentStatus)
	}
	if upd.CurrentRunID != nil {
		add("current_run_id", *upd.CurrentRunID)
	}
	if upd.LiveVerifiedAt != nil {
		add("live_verified_at", *upd.LiveVerifiedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, targetID)
	query := fmt.Sprintf(
		"UPDATE submission_targets SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args),
	)
	tag, err := u.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrTargetNotFound
	}
	return nil
}

func (u *txUnit) HasArtifact(ctx context.Context, runID uuid.UUID, kind domain.ArtifactKind) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM submission_artifacts
			WHERE run_id = $1 AND kind = $2
		)
	`
	var exists bool
	if err := u.tx.QueryRow(ctx, query, runID, kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("check artifact: %w", err)
	}
	return exists, nil
}

// --- Scan helpers (общие для store и read-репозиториев) ---

// scanRun сканирует одну строку в SubmissionRun.
func scanRun(row pgx.Row) (*domain.SubmissionRun, error) {
	var run domain.SubmissionRun
	var actionJSON, errorJSON []byte

	err := row.Scan(
		&run.ID,
		&run.TargetID,
		&run.AttemptNo,
		&run.Status,
		&run.StatusReason,
		&run.StatusChangedAt,
		&run.StartedAt,
		&run.CompletedAt,
		&actionJSON,
		&errorJSON,
		&run.NextRunAt,
		&run.LockedAt,
		&run.LockedBy,
		&run.LeaseExpiresAt,
		&run.ExternalSubmissionID,
		&run.RawStatus,
		&run.RawStatusMessage,
		&run.ChangesAcknowledged,
		&run.ChangesAcknowledgedAt,
		&run.ChangesAcknowledgedBy,
		&run.PreviousRunID,
		&run.CorrelationID,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lifecycle.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if actionJSON != nil {
		run.ActionNeeded = &domain.ActionNeededInfo{}
		if err := json.Unmarshal(actionJSON, run.ActionNeeded); err != nil {
			return nil, fmt.Errorf("unmarshal action_needed: %w", err)
		}
	}
	if errorJSON != nil {
		run.LastError = &domain.LastErrorInfo{}
		if err := json.Unmarshal(errorJSON, run.LastError); err != nil {
			return nil, fmt.Errorf("unmarshal last_error: %w", err)
		}
	}

	return &run, nil
}

// scanTarget сканирует одну строку в SubmissionTarget.
func scanTarget(row pgx.Row) (*domain.SubmissionTarget, error) {
	var target domain.SubmissionTarget
	err := row.Scan(
		&target.ID,
		&target.DirectorySlug,
		&target.BusinessID,
		&target.CurrentStatus,
		&target.CurrentRunID,
		&target.LiveVerifiedAt,
		&target.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan target: %w", err)
	}
	return &target, nil
}

// marshalNullable — JSON для nullable jsonb-колонок: nil остаётся NULL.
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *domain.ActionNeededInfo:
		if val == nil {
			return nil, nil
		}
	case *domain.LastErrorInfo:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
