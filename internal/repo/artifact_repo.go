package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/listopadhq/listopad/internal/domain"
)

// ArtifactRepo — репозиторий метаданных артефактов.
// Сами объекты лежат в object storage; здесь только указатели.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create сохраняет метаданные артефакта.
func (r *ArtifactRepo) Create(ctx context.Context, artifact *domain.Artifact) error {
	query := `
		INSERT INTO submission_artifacts
			(id, run_id, target_id, kind, bucket, object_key,
			 content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		artifact.ID,
		artifact.RunID,
		artifact.TargetID,
		artifact.Kind,
		artifact.Bucket,
		artifact.ObjectKey,
		artifact.ContentType,
		artifact.SizeBytes,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// GetByID возвращает метаданные артефакта по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `
		SELECT id, run_id, target_id, kind, bucket, object_key,
		       content_type, size_bytes, created_at
		FROM submission_artifacts
		WHERE id = $1
	`
	var a domain.Artifact
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.RunID,
		&a.TargetID,
		&a.Kind,
		&a.Bucket,
		&a.ObjectKey,
		&a.ContentType,
		&a.SizeBytes,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &a, nil
}

// ListByRun возвращает артефакты run в порядке записи.
func (r *ArtifactRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Artifact, error) {
	query := `
		SELECT id, run_id, target_id, kind, bucket, object_key,
		       content_type, size_bytes, created_at
		FROM submission_artifacts
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		err := rows.Scan(
			&a.ID,
			&a.RunID,
			&a.TargetID,
			&a.Kind,
			&a.Bucket,
			&a.ObjectKey,
			&a.ContentType,
			&a.SizeBytes,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
