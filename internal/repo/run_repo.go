package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
)

// RunRepo — read-side репозиторий runs.
//
// Все мутации идут через lifecycle.Engine; здесь только выборки
// для API, воркера и sweeper'а.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return run, nil
}

// GetByExternalSubmissionID возвращает run по идентификатору заявки
// на стороне каталога. Webhook'и каталога ссылаются именно на него.
// При дубликатах берётся самый свежий run.
func (r *RunRepo) GetByExternalSubmissionID(ctx context.Context, externalID string) (*domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE external_submission_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return run, nil
}

// ListByTarget возвращает линию runs одного target, новые первыми.
func (r *RunRepo) ListByTarget(ctx context.Context, targetID uuid.UUID, limit, offset int) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE target_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, targetID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs by target: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListQueued возвращает queued runs без живого lease, старые первыми.
// Polling fallback воркера: подхватывает runs, чьё MQ-сообщение
// потерялось или чей lease протух до перехода в in_progress.
func (r *RunRepo) ListQueued(ctx context.Context, now time.Time, limit int) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE status = 'queued'
		  AND (locked_by IS NULL OR lease_expires_at < $1)
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListDueRetries возвращает deferred runs с наступившим next_run_at.
// Порядок — по времени retry, самые просроченные первыми.
func (r *RunRepo) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE status = 'deferred' AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due retries: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListExpiredLeases возвращает in_progress runs с протухшим lease.
func (r *RunRepo) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE status = 'in_progress' AND lease_expires_at IS NOT NULL AND lease_expires_at < $1
		ORDER BY lease_expires_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired leases: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListActionDeadlinesPassed возвращает action_needed runs,
// у которых deadline действия уже прошёл.
func (r *RunRepo) ListActionDeadlinesPassed(ctx context.Context, now time.Time, limit int) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE status = 'action_needed'
		  AND action_needed ? 'deadline'
		  AND (action_needed->>'deadline')::timestamptz < $1
		ORDER BY (action_needed->>'deadline')::timestamptz ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list passed action deadlines: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListByCorrelation возвращает всю линию retry по correlation_id,
// в порядке создания.
func (r *RunRepo) ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]domain.SubmissionRun, error) {
	query := `SELECT` + runColumns + `
		FROM submission_runs
		WHERE correlation_id = $1
		ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("list runs by correlation: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// mapNotFound переводит lifecycle-ошибки хранилища в repo.ErrNotFound:
// read-side вызывающие работают с ошибками этого пакета.
func mapNotFound(err error) error {
	if errors.Is(err, lifecycle.ErrRunNotFound) || errors.Is(err, lifecycle.ErrTargetNotFound) {
		return ErrNotFound
	}
	return err
}

func collectRuns(rows pgx.Rows) ([]domain.SubmissionRun, error) {
	var runs []domain.SubmissionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
