package artifacts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// MetadataStore — запись метаданных артефакта в БД.
// Реализуется repo.ArtifactRepo.
type MetadataStore interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
}

// Service сохраняет доказательства работы воркера: скриншоты,
// payload отправки, подтверждение публикации.
//
// Артефакт — это объект в object storage плюс строка метаданных в БД.
// Строка live_verification для run — precondition перехода в live:
// engine проверяет её наличие перед публикацией статуса.
type Service struct {
	store  ObjectStore
	meta   MetadataStore
	bucket string
	logger *slog.Logger
}

// NewService создаёт Service.
func NewService(store ObjectStore, meta MetadataStore, bucket string, logger *slog.Logger) *Service {
	if bucket == "" {
		bucket = BucketFromEnv()
	}
	return &Service{
		store:  store,
		meta:   meta,
		bucket: bucket,
		logger: logger,
	}
}

// BucketFromEnv возвращает имя bucket'а из ARTIFACTS_BUCKET
// или значение по умолчанию.
func BucketFromEnv() string {
	if b := os.Getenv("ARTIFACTS_BUCKET"); b != "" {
		return b
	}
	return "listopad-artifacts"
}

// Save загружает артефакт в хранилище и записывает метаданные.
func (s *Service) Save(ctx context.Context, run *domain.SubmissionRun, kind domain.ArtifactKind, contentType string, body io.Reader, size int64) (*domain.Artifact, error) {
	artifact := &domain.Artifact{
		ID:          uuid.New(),
		RunID:       run.ID,
		TargetID:    run.TargetID,
		Kind:        kind,
		Bucket:      s.bucket,
		ObjectKey:   objectKey(run, kind),
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Put(ctx, artifact.Bucket, artifact.ObjectKey, body, size, contentType); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	if err := s.meta.Create(ctx, artifact); err != nil {
		// Объект уже в хранилище; без строки метаданных он не виден.
		// Убираем, чтобы не копить сирот.
		if delErr := s.store.Delete(ctx, artifact.Bucket, artifact.ObjectKey); delErr != nil {
			s.logger.Warn("failed to clean up orphan object",
				"bucket", artifact.Bucket, "key", artifact.ObjectKey, "error", delErr)
		}
		return nil, fmt.Errorf("record artifact metadata: %w", err)
	}

	s.logger.Info("artifact saved",
		"run_id", run.ID,
		"kind", kind,
		"key", artifact.ObjectKey,
		"size_bytes", size,
	)

	return artifact, nil
}

// DownloadURL возвращает presigned ссылку на скачивание артефакта.
func (s *Service) DownloadURL(ctx context.Context, artifact *domain.Artifact, ttl time.Duration) (string, error) {
	return s.store.PresignGet(ctx, artifact.Bucket, artifact.ObjectKey, ttl)
}

// objectKey строит ключ объекта: артефакты группируются по target,
// затем по run и типу.
func objectKey(run *domain.SubmissionRun, kind domain.ArtifactKind) string {
	return fmt.Sprintf("targets/%s/runs/%s/%s/%s",
		run.TargetID, run.ID, kind, uuid.New())
}
