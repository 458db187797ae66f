package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionTarget — пара каталог×бизнес, для которой ведутся попытки
// размещения.
//
// CurrentStatus и CurrentRunID — денормализованная проекция для быстрых
// чтений (дашборд, отчёты): читатели не ходят по runs. Проекцию
// поддерживает только transition engine в post-transition шаге.
type SubmissionTarget struct {
	// ID — уникальный идентификатор target.
	ID uuid.UUID `json:"id"`

	// DirectorySlug — каталог из справочника (internal/catalog).
	DirectorySlug string `json:"directory_slug"`

	// BusinessID — бизнес, который размещаем.
	BusinessID uuid.UUID `json:"business_id"`

	// CurrentStatus — статус текущего run (денормализация).
	CurrentStatus Status `json:"current_status"`

	// CurrentRunID — текущий run (денормализация).
	CurrentRunID *uuid.UUID `json:"current_run_id,omitempty"`

	// LiveVerifiedAt — когда листинг был в последний раз подтверждён живым.
	LiveVerifiedAt *time.Time `json:"live_verified_at,omitempty"`

	// CreatedAt — время создания target.
	CreatedAt time.Time `json:"created_at"`
}
