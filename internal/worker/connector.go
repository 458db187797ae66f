package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/listopadhq/listopad/internal/catalog"
	"github.com/listopadhq/listopad/internal/domain"
)

// Connector — интерфейс отправки заявки в конкретный каталог.
//
// Реализации: HTTPConnector (generic HTTP API коннектора).
// Инфраструктурные сбои возвращаются через error; осмысленный
// результат отправки, включая отказ каталога, — через Outcome.
type Connector interface {
	Submit(ctx context.Context, req *SubmitRequest) (*Outcome, error)
}

// SubmitRequest — вход коннектора.
type SubmitRequest struct {
	// Run — обрабатываемый run.
	Run *domain.SubmissionRun

	// Target — пара каталог×бизнес.
	Target *domain.SubmissionTarget

	// Directory — статическая конфигурация каталога из реестра.
	Directory catalog.Directory
}

// OutcomeKind — классификация результата отправки.
type OutcomeKind string

const (
	// OutcomeSubmitted — заявка принята каталогом.
	OutcomeSubmitted OutcomeKind = "submitted"

	// OutcomeActionNeeded — каталог требует действия человека.
	OutcomeActionNeeded OutcomeKind = "action_needed"

	// OutcomeAlreadyListed — листинг уже существует.
	OutcomeAlreadyListed OutcomeKind = "already_listed"

	// OutcomeDeferred — временный сбой, попытку стоит повторить позже.
	OutcomeDeferred OutcomeKind = "deferred"

	// OutcomeFailed — отправка не удалась.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome — результат отправки.
type Outcome struct {
	// Kind — классификация результата.
	Kind OutcomeKind

	// ExternalSubmissionID — идентификатор заявки на стороне каталога
	// (для submitted).
	ExternalSubmissionID string

	// ActionNeeded — детали требуемого действия (для action_needed).
	ActionNeeded *domain.ActionNeededInfo

	// Error — классифицированная ошибка (для deferred и failed).
	Error *domain.LastErrorInfo

	// RetryAfter — подсказка каталога, когда повторить
	// (из Retry-After; 0 — считать по backoff).
	RetryAfter time.Duration
}

// Registry — реестр коннекторов по типу из конфигурации каталога.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry создаёт реестр с коннекторами по умолчанию.
func NewRegistry() *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	r.Register("http", NewHTTPConnector(nil))
	return r
}

// Register добавляет коннектор для типа.
func (r *Registry) Register(connectorType string, c Connector) {
	r.connectors[connectorType] = c
}

// Get возвращает коннектор для типа.
func (r *Registry) Get(connectorType string) (Connector, error) {
	c, ok := r.connectors[connectorType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnector, connectorType)
	}
	return c, nil
}
