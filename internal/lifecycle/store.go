package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// Store — хранилище жизненного цикла.
//
// Engine не привязан к конкретной БД: он получает Store при создании
// (Postgres в production, in-memory в тестах) и выполняет каждую
// операцию внутри одной единицы работы. Caller-owned транзакции
// поддерживаются методами *In, принимающими готовый UnitOfWork.
type Store interface {
	// InTx выполняет fn в новой транзакции. Любая ошибка fn
	// откатывает всё; nil — коммитит.
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// UnitOfWork — операции, доступные внутри одной транзакции.
type UnitOfWork interface {
	// GetRunForUpdate читает run под эксклюзивной блокировкой строки.
	// Конкурентные переходы одного run сериализуются на этой блокировке.
	GetRunForUpdate(ctx context.Context, runID uuid.UUID) (*domain.SubmissionRun, error)

	// GetRun читает run без блокировки.
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.SubmissionRun, error)

	// InsertRun вставляет новый run.
	InsertRun(ctx context.Context, run *domain.SubmissionRun) error

	// UpdateRun применяет набор полей к run.
	UpdateRun(ctx context.Context, runID uuid.UUID, upd RunUpdate) error

	// InsertEvent добавляет событие в журнал (append-only).
	InsertEvent(ctx context.Context, event *domain.SubmissionEvent) error

	// GetTarget читает target.
	GetTarget(ctx context.Context, targetID uuid.UUID) (*domain.SubmissionTarget, error)

	// UpdateTargetCurrent обновляет денормализованную проекцию target.
	UpdateTargetCurrent(ctx context.Context, targetID uuid.UUID, upd TargetUpdate) error

	// HasArtifact проверяет наличие артефакта данного типа у run.
	HasArtifact(ctx context.Context, runID uuid.UUID, kind domain.ArtifactKind) (bool, error)
}

// RunUpdate — набор полей для обновления run.
//
// nil-поле означает "не трогать". Очистка nullable-колонок выражается
// отдельными Clear-флагами, чтобы отличать "не менять" от "записать NULL".
type RunUpdate struct {
	Status          *domain.Status
	StatusReason    *domain.StatusReason
	ClearReason     bool
	StatusChangedAt *time.Time

	AttemptNo   *int
	StartedAt   *time.Time
	CompletedAt *time.Time

	ActionNeeded      *domain.ActionNeededInfo
	ClearActionNeeded bool

	LastError *domain.LastErrorInfo

	NextRunAt      *time.Time
	ClearNextRunAt bool

	// Lease: Lock выставляет все три поля, ClearLock — зануляет все три.
	Lock      *LeaseInfo
	ClearLock bool

	ExternalSubmissionID *string
	RawStatus            *string
	RawStatusMessage     *string

	ChangesAcknowledged   *bool
	ChangesAcknowledgedAt *time.Time
	ChangesAcknowledgedBy *string
}

// LeaseInfo — поля lease воркера.
type LeaseInfo struct {
	LockedAt       time.Time
	LockedBy       string
	LeaseExpiresAt time.Time
}

// TargetUpdate — набор полей для обновления проекции target.
type TargetUpdate struct {
	CurrentStatus  *domain.Status
	CurrentRunID   *uuid.UUID
	LiveVerifiedAt *time.Time
}
