package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionRun — одна попытка разместить листинг в каталоге.
//
// Run создаётся фабрикой (всегда в статусе queued), мутируется
// исключительно transition engine'ом и никогда не удаляется:
// терминальные runs остаются для аудита. Повторные попытки
// создаются как новые runs, связанные через PreviousRunID
// и общий CorrelationID.
type SubmissionRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// TargetID — ссылка на пару каталог×бизнес.
	TargetID uuid.UUID `json:"target_id"`

	// AttemptNo — номер попытки, монотонный в рамках линии runs одного target.
	AttemptNo int `json:"attempt_no"`

	// Status — текущий статус из таксономии.
	Status Status `json:"status"`

	// StatusReason — причина последнего перехода.
	StatusReason *StatusReason `json:"status_reason,omitempty"`

	// StatusChangedAt — время последнего перехода.
	StatusChangedAt time.Time `json:"status_changed_at"`

	// StartedAt — когда воркер впервые начал работу.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — когда run вошёл в терминальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ActionNeeded — метаданные требуемого действия (для action_needed).
	ActionNeeded *ActionNeededInfo `json:"action_needed,omitempty"`

	// LastError — метаданные последней ошибки.
	LastError *LastErrorInfo `json:"last_error,omitempty"`

	// NextRunAt — когда sweeper должен вернуть run в очередь (retry).
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// --- Lease воркера ---

	// LockedAt — когда воркер захватил run.
	LockedAt *time.Time `json:"locked_at,omitempty"`

	// LockedBy — идентификатор воркера-держателя.
	LockedBy *string `json:"locked_by,omitempty"`

	// LeaseExpiresAt — когда lease протухает и run можно забрать снова.
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	// --- Внешний трекинг ---

	// ExternalSubmissionID — идентификатор заявки на стороне каталога.
	ExternalSubmissionID *string `json:"external_submission_id,omitempty"`

	// RawStatus — статус каталога как есть (до маппинга на таксономию).
	RawStatus *string `json:"raw_status,omitempty"`

	// RawStatusMessage — сопроводительный текст каталога.
	RawStatusMessage *string `json:"raw_status_message,omitempty"`

	// --- Подтверждение доработок ---

	// ChangesAcknowledged — пользователь явно подтвердил, что увидел
	// претензии каталога. Обязательное условие для retry из
	// needs_changes/rejected.
	ChangesAcknowledged bool `json:"changes_acknowledged"`

	// ChangesAcknowledgedAt — когда подтвердил.
	ChangesAcknowledgedAt *time.Time `json:"changes_acknowledged_at,omitempty"`

	// ChangesAcknowledgedBy — кто подтвердил (user id).
	ChangesAcknowledgedBy *string `json:"changes_acknowledged_by,omitempty"`

	// --- Линия попыток ---

	// PreviousRunID — предыдущий run в линии (nil для первой попытки).
	PreviousRunID *uuid.UUID `json:"previous_run_id,omitempty"`

	// CorrelationID — общий идентификатор всей линии retry.
	CorrelationID uuid.UUID `json:"correlation_id"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// IsFinished возвращает true, если run в терминальном статусе.
func (r *SubmissionRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// LeaseExpired возвращает true, если lease воркера протух к моменту now.
func (r *SubmissionRun) LeaseExpired(now time.Time) bool {
	return r.LeaseExpiresAt != nil && r.LeaseExpiresAt.Before(now)
}

// Locked возвращает true, если run захвачен воркером и lease ещё жив.
func (r *SubmissionRun) Locked(now time.Time) bool {
	return r.LockedBy != nil && !r.LeaseExpired(now)
}

// RetryDue возвращает true, если запланированный retry уже наступил.
func (r *SubmissionRun) RetryDue(now time.Time) bool {
	return r.NextRunAt != nil && !r.NextRunAt.After(now)
}
