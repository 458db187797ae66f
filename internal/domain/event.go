package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события в журнале run.
type EventType string

const (
	// EventCreated — run создан фабрикой.
	EventCreated EventType = "created"

	// EventStatusChange — канонический переход статуса.
	// Ровно одно такое событие на каждый успешный переход.
	EventStatusChange EventType = "status_change"

	// EventRetryScheduled — запланирован retry (next_run_at выставлен).
	EventRetryScheduled EventType = "retry_scheduled"

	// EventActionRequired — run требует действия человека.
	EventActionRequired EventType = "action_required"

	// EventChangesAcknowledged — пользователь подтвердил претензии каталога.
	EventChangesAcknowledged EventType = "user_changes_acknowledged"

	// EventLockAcquired — воркер захватил lease на run.
	EventLockAcquired EventType = "lock_acquired"

	// EventLockReleased — lease снята вместе с переходом статуса.
	EventLockReleased EventType = "lock_released"

	// EventLeaseExpired — lease воркера протух, run возвращён в работу.
	EventLeaseExpired EventType = "lease_expired"

	// EventExternalStatus — каталог прислал сырой статус (webhook).
	EventExternalStatus EventType = "external_status_received"
)

// Valid возвращает true, если тип события входит в таксономию.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventStatusChange, EventRetryScheduled,
		EventActionRequired, EventChangesAcknowledged,
		EventLockAcquired, EventLockReleased, EventLeaseExpired, EventExternalStatus:
		return true
	default:
		return false
	}
}

// SubmissionEvent — один неизменяемый факт о run.
//
// События создаются только transition engine'ом и фабрикой,
// никогда не мутируются и не удаляются. История run читается
// в порядке вставки.
type SubmissionEvent struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// Seq — монотонный порядок вставки (bigserial в БД). События
	// одного перехода имеют одинаковый created_at; seq разрешает
	// ничью в порядке записи.
	Seq int64 `json:"seq"`

	// RunID — run, к которому относится событие.
	RunID uuid.UUID `json:"run_id"`

	// TargetID — родительский target (денормализация для выборок).
	TargetID uuid.UUID `json:"target_id"`

	// Type — тип события.
	Type EventType `json:"event_type"`

	// FromStatus/ToStatus — статусы перехода (для status_change).
	FromStatus *Status `json:"from_status,omitempty"`
	ToStatus   *Status `json:"to_status,omitempty"`

	// StatusReason — причина перехода.
	StatusReason *StatusReason `json:"status_reason,omitempty"`

	// TriggeredBy — кто инициировал событие.
	TriggeredBy Actor `json:"triggered_by"`

	// TriggeredByID — идентификатор инициатора (user id, worker id, webhook id).
	TriggeredByID string `json:"triggered_by_id,omitempty"`

	// Data — типизированный payload события.
	Data EventData `json:"event_data"`

	// CreatedAt — время вставки.
	CreatedAt time.Time `json:"created_at"`
}

// EventData — payload события: tagged union по типу события.
//
// Ровно одно поле должно быть не-nil, и оно должно соответствовать
// SubmissionEvent.Type. Структурная форма вместо свободного
// map[string]any даёт компилируемую гарантию, что у каждого типа
// события определённые поля.
type EventData struct {
	Created             *CreatedData             `json:"created,omitempty"`
	StatusChange        *StatusChangeData        `json:"status_change,omitempty"`
	RetryScheduled      *RetryScheduledData      `json:"retry_scheduled,omitempty"`
	ActionRequired      *ActionRequiredData      `json:"action_required,omitempty"`
	ChangesAcknowledged *ChangesAcknowledgedData `json:"changes_acknowledged,omitempty"`
	LockAcquired        *LockAcquiredData        `json:"lock_acquired,omitempty"`
	LockReleased        *LockReleasedData        `json:"lock_released,omitempty"`
	LeaseExpired        *LeaseExpiredData        `json:"lease_expired,omitempty"`
	ExternalStatus      *ExternalStatusData      `json:"external_status,omitempty"`
}

// CreatedData — payload события created.
type CreatedData struct {
	AttemptNo     int        `json:"attempt_no"`
	PreviousRunID *uuid.UUID `json:"previous_run_id,omitempty"`
	CorrelationID uuid.UUID  `json:"correlation_id"`
}

// StatusChangeData — payload канонического события status_change.
//
// Содержит редуцированное подмножество meta перехода: детали
// action_needed, детали ошибки и внешний идентификатор. Поля lease
// и сырые payload'ы каталога в событие не попадают.
type StatusChangeData struct {
	From                 Status            `json:"from"`
	To                   Status            `json:"to"`
	Reason               *StatusReason     `json:"reason,omitempty"`
	ActionNeeded         *ActionNeededInfo `json:"action_needed,omitempty"`
	Error                *LastErrorInfo    `json:"error,omitempty"`
	ExternalSubmissionID string            `json:"external_submission_id,omitempty"`
}

// RetryScheduledData — payload события retry_scheduled.
type RetryScheduledData struct {
	AttemptNo int       `json:"attempt_no"`
	NextRunAt time.Time `json:"next_run_at"`
	DelayMs   int64     `json:"delay_ms"`
}

// ActionRequiredData — payload события action_required.
type ActionRequiredData struct {
	Type     ActionNeededType `json:"type"`
	URL      string           `json:"url,omitempty"`
	Deadline *time.Time       `json:"deadline,omitempty"`
}

// ChangesAcknowledgedData — payload события user_changes_acknowledged.
type ChangesAcknowledgedData struct {
	UserID string `json:"user_id"`
}

// LockAcquiredData — payload события lock_acquired.
type LockAcquiredData struct {
	WorkerID       string    `json:"worker_id"`
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
}

// LockReleasedData — payload события lock_released.
type LockReleasedData struct {
	WorkerID string `json:"worker_id"`
}

// LeaseExpiredData — payload события lease_expired.
type LeaseExpiredData struct {
	WorkerID  string    `json:"worker_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// ExternalStatusData — payload события external_status_received.
type ExternalStatusData struct {
	RawStatus        string `json:"raw_status"`
	RawStatusMessage string `json:"raw_status_message,omitempty"`
	MappedStatus     Status `json:"mapped_status,omitempty"`
}
