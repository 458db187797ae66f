package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// Target DTOs

// CreateTargetRequest — запрос на создание target.
// Вместе с target создаётся его первый run.
type CreateTargetRequest struct {
	DirectorySlug string    `json:"directory_slug"`
	BusinessID    uuid.UUID `json:"business_id"`
}

// TargetResponse — ответ с target.
type TargetResponse struct {
	ID             uuid.UUID  `json:"id"`
	DirectorySlug  string     `json:"directory_slug"`
	BusinessID     uuid.UUID  `json:"business_id"`
	CurrentStatus  string     `json:"current_status"`
	CurrentRunID   *uuid.UUID `json:"current_run_id,omitempty"`
	LiveVerifiedAt *time.Time `json:"live_verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TargetFromDomain конвертирует domain.SubmissionTarget в TargetResponse.
func TargetFromDomain(t domain.SubmissionTarget) TargetResponse {
	return TargetResponse{
		ID:             t.ID,
		DirectorySlug:  t.DirectorySlug,
		BusinessID:     t.BusinessID,
		CurrentStatus:  string(t.CurrentStatus),
		CurrentRunID:   t.CurrentRunID,
		LiveVerifiedAt: t.LiveVerifiedAt,
		CreatedAt:      t.CreatedAt,
	}
}

// Run DTOs

// RetryRunRequest — запрос на повторную попытку.
type RetryRunRequest struct {
	Reason string `json:"reason,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// CancelRunRequest — запрос на отмену run.
type CancelRunRequest struct {
	UserID string `json:"user_id,omitempty"`

	// Admin — отмена от имени оператора платформы.
	Admin bool `json:"admin,omitempty"`
}

// AcknowledgeRequest — подтверждение претензий каталога.
type AcknowledgeRequest struct {
	UserID string `json:"user_id"`
}

// PauseRunRequest — запрос на паузу run.
type PauseRunRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID                   uuid.UUID                `json:"id"`
	TargetID             uuid.UUID                `json:"target_id"`
	AttemptNo            int                      `json:"attempt_no"`
	Status               string                   `json:"status"`
	StatusReason         *domain.StatusReason     `json:"status_reason,omitempty"`
	StatusChangedAt      time.Time                `json:"status_changed_at"`
	StartedAt            *time.Time               `json:"started_at,omitempty"`
	CompletedAt          *time.Time               `json:"completed_at,omitempty"`
	ActionNeeded         *domain.ActionNeededInfo `json:"action_needed,omitempty"`
	LastError            *domain.LastErrorInfo    `json:"last_error,omitempty"`
	NextRunAt            *time.Time               `json:"next_run_at,omitempty"`
	LockedBy             *string                  `json:"locked_by,omitempty"`
	LeaseExpiresAt       *time.Time               `json:"lease_expires_at,omitempty"`
	ExternalSubmissionID *string                  `json:"external_submission_id,omitempty"`
	RawStatus            *string                  `json:"raw_status,omitempty"`
	ChangesAcknowledged  bool                     `json:"changes_acknowledged"`
	PreviousRunID        *uuid.UUID               `json:"previous_run_id,omitempty"`
	CorrelationID        uuid.UUID                `json:"correlation_id"`
	CreatedAt            time.Time                `json:"created_at"`
}

// RunFromDomain конвертирует domain.SubmissionRun в RunResponse.
func RunFromDomain(r domain.SubmissionRun) RunResponse {
	return RunResponse{
		ID:                   r.ID,
		TargetID:             r.TargetID,
		AttemptNo:            r.AttemptNo,
		Status:               string(r.Status),
		StatusReason:         r.StatusReason,
		StatusChangedAt:      r.StatusChangedAt,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
		ActionNeeded:         r.ActionNeeded,
		LastError:            r.LastError,
		NextRunAt:            r.NextRunAt,
		LockedBy:             r.LockedBy,
		LeaseExpiresAt:       r.LeaseExpiresAt,
		ExternalSubmissionID: r.ExternalSubmissionID,
		RawStatus:            r.RawStatus,
		ChangesAcknowledged:  r.ChangesAcknowledged,
		PreviousRunID:        r.PreviousRunID,
		CorrelationID:        r.CorrelationID,
		CreatedAt:            r.CreatedAt,
	}
}

// Event DTOs

// EventResponse — ответ с событием журнала.
type EventResponse struct {
	ID            uuid.UUID            `json:"id"`
	RunID         uuid.UUID            `json:"run_id"`
	TargetID      uuid.UUID            `json:"target_id"`
	Type          string               `json:"event_type"`
	FromStatus    *domain.Status       `json:"from_status,omitempty"`
	ToStatus      *domain.Status       `json:"to_status,omitempty"`
	StatusReason  *domain.StatusReason `json:"status_reason,omitempty"`
	TriggeredBy   string               `json:"triggered_by"`
	TriggeredByID string               `json:"triggered_by_id,omitempty"`
	Data          domain.EventData     `json:"event_data"`
	CreatedAt     time.Time            `json:"created_at"`
}

// EventFromDomain конвертирует domain.SubmissionEvent в EventResponse.
func EventFromDomain(e domain.SubmissionEvent) EventResponse {
	return EventResponse{
		ID:            e.ID,
		RunID:         e.RunID,
		TargetID:      e.TargetID,
		Type:          string(e.Type),
		FromStatus:    e.FromStatus,
		ToStatus:      e.ToStatus,
		StatusReason:  e.StatusReason,
		TriggeredBy:   string(e.TriggeredBy),
		TriggeredByID: e.TriggeredByID,
		Data:          e.Data,
		CreatedAt:     e.CreatedAt,
	}
}

// Artifact DTOs

// ArtifactResponse — ответ с артефактом.
type ArtifactResponse struct {
	ID          uuid.UUID `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`

	// DownloadURL — presigned ссылка (только в ответах на запрос скачивания).
	DownloadURL string `json:"download_url,omitempty"`
}

// ArtifactFromDomain конвертирует domain.Artifact в ArtifactResponse.
func ArtifactFromDomain(a domain.Artifact) ArtifactResponse {
	return ArtifactResponse{
		ID:          a.ID,
		RunID:       a.RunID,
		Kind:        string(a.Kind),
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}

// Webhook DTOs

// WebhookRequest — нотификация каталога о смене статуса заявки.
type WebhookRequest struct {
	ExternalSubmissionID string `json:"submission_id"`
	RawStatus            string `json:"status"`
	Message              string `json:"message,omitempty"`
}

// WebhookResponse — результат обработки webhook.
type WebhookResponse struct {
	RunID uuid.UUID `json:"run_id"`

	// Applied — переход применён. false означает, что нотификация
	// принята, но run уже ушёл дальше (поздний webhook).
	Applied bool   `json:"applied"`
	Status  string `json:"status"`
}

// Directory DTOs

// DirectoryResponse — ответ со справочной записью каталога.
type DirectoryResponse struct {
	Slug             string `json:"slug"`
	Name             string `json:"name"`
	Connector        string `json:"connector"`
	RateLimitPerHour int    `json:"rate_limit_per_hour,omitempty"`
	SupportsWebhook  bool   `json:"supports_webhook"`
}
