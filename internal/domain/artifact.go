package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind — тип доказательства, привязанного к run.
type ArtifactKind string

const (
	// ArtifactLiveVerification — доказательство того, что листинг
	// опубликован и виден. Его наличие — обязательное условие
	// перехода run в статус live.
	ArtifactLiveVerification ArtifactKind = "live_verification"

	// ArtifactScreenshot — скриншот страницы каталога.
	ArtifactScreenshot ArtifactKind = "screenshot"

	// ArtifactSubmissionPayload — payload, отправленный в каталог.
	ArtifactSubmissionPayload ArtifactKind = "submission_payload"

	// ArtifactVerificationResult — результат проверки листинга.
	ArtifactVerificationResult ArtifactKind = "verification_result"
)

// Valid возвращает true, если тип артефакта входит в таксономию.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactLiveVerification, ArtifactScreenshot,
		ArtifactSubmissionPayload, ArtifactVerificationResult:
		return true
	default:
		return false
	}
}

// Artifact — метаданные объекта-доказательства.
// Тело объекта лежит в object store; здесь только ссылка.
type Artifact struct {
	ID          uuid.UUID    `json:"id"`
	RunID       uuid.UUID    `json:"run_id"`
	TargetID    uuid.UUID    `json:"target_id"`
	Kind        ArtifactKind `json:"kind"`
	Bucket      string       `json:"bucket"`
	ObjectKey   string       `json:"object_key"`
	ContentType string       `json:"content_type,omitempty"`
	SizeBytes   int64        `json:"size_bytes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
