package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/listopadhq/listopad/internal/domain"
)

// TargetRepo — репозиторий пар каталог×бизнес.
type TargetRepo struct {
	pool *pgxpool.Pool
}

// NewTargetRepo создаёт новый TargetRepo.
func NewTargetRepo(pool *pgxpool.Pool) *TargetRepo {
	return &TargetRepo{pool: pool}
}

const targetColumns = `
	id, directory_slug, business_id, current_status,
	current_run_id, live_verified_at, created_at`

// Create создаёт новый target. Пара (directory_slug, business_id)
// уникальна: конфликт возвращает ErrAlreadyExists.
func (r *TargetRepo) Create(ctx context.Context, target *domain.SubmissionTarget) error {
	query := `
		INSERT INTO submission_targets (` + targetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (directory_slug, business_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		target.ID,
		target.DirectorySlug,
		target.BusinessID,
		target.CurrentStatus,
		target.CurrentRunID,
		target.LiveVerifiedAt,
		target.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByID возвращает target по ID.
func (r *TargetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubmissionTarget, error) {
	query := `SELECT` + targetColumns + `
		FROM submission_targets
		WHERE id = $1`
	return scanTarget(r.pool.QueryRow(ctx, query, id))
}

// GetBySlugAndBusiness возвращает target по паре каталог×бизнес.
func (r *TargetRepo) GetBySlugAndBusiness(ctx context.Context, slug string, businessID uuid.UUID) (*domain.SubmissionTarget, error) {
	query := `SELECT` + targetColumns + `
		FROM submission_targets
		WHERE directory_slug = $1 AND business_id = $2`
	return scanTarget(r.pool.QueryRow(ctx, query, slug, businessID))
}

// TargetFilter — параметры фильтрации targets.
type TargetFilter struct {
	BusinessID *uuid.UUID
	Status     domain.Status
	Limit      int
	Offset     int
}

// List возвращает список targets с фильтрацией.
func (r *TargetRepo) List(ctx context.Context, filter TargetFilter) ([]domain.SubmissionTarget, error) {
	query := `SELECT` + targetColumns + `
		FROM submission_targets
		WHERE ($1::uuid IS NULL OR business_id = $1)
		  AND ($2::text IS NULL OR current_status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.BusinessID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.SubmissionTarget
	for rows.Next() {
		target, err := scanTargetRows(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *target)
	}
	return targets, rows.Err()
}

func scanTargetRows(rows pgx.Rows) (*domain.SubmissionTarget, error) {
	var target domain.SubmissionTarget
	err := rows.Scan(
		&target.ID,
		&target.DirectorySlug,
		&target.BusinessID,
		&target.CurrentStatus,
		&target.CurrentRunID,
		&target.LiveVerifiedAt,
		&target.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan target: %w", err)
	}
	return &target, nil
}

// --- Helpers ---

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
