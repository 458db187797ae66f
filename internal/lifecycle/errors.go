package lifecycle

import (
	"errors"
	"fmt"

	"github.com/listopadhq/listopad/internal/domain"
)

// Ошибки transition engine.
var (
	// ErrRunNotFound — run не найден в хранилище.
	ErrRunNotFound = errors.New("run not found")

	// ErrTargetNotFound — target не найден в хранилище.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUnknownStatus — статус вне таксономии.
	ErrUnknownStatus = errors.New("unknown status")

	// ErrUnknownReason — причина вне словаря.
	ErrUnknownReason = errors.New("unknown status reason")

	// ErrUnknownActor — triggered_by вне словаря.
	ErrUnknownActor = errors.New("unknown actor")

	// ErrMissingActionInfo — переход в action_needed без meta.ActionNeeded.
	ErrMissingActionInfo = errors.New("action_needed transition requires action metadata")

	// ErrUnknownActionType — тип действия вне таксономии.
	ErrUnknownActionType = errors.New("unknown action needed type")

	// ErrMissingErrorType — переход в failed без meta.Error.
	ErrMissingErrorType = errors.New("failed transition requires error metadata")

	// ErrUnknownErrorType — тип ошибки вне таксономии.
	ErrUnknownErrorType = errors.New("unknown error type")

	// ErrVerificationMissing — переход в live без live_verification артефакта.
	ErrVerificationMissing = errors.New("live transition requires live verification artifact")

	// ErrChangesNotAcknowledged — retry из needs_changes/rejected без
	// подтверждения пользователя.
	ErrChangesNotAcknowledged = errors.New("changes must be acknowledged before retry")

	// ErrLeaseHeld — run уже захвачен другим воркером и lease не протух.
	ErrLeaseHeld = errors.New("run lease held by another worker")

	// ErrRunNotClaimable — run не в статусе, допускающем захват lease.
	ErrRunNotClaimable = errors.New("run is not claimable")

	// ErrPreviousNotFinished — попытка создать цепочечный run от
	// незавершённого предыдущего.
	ErrPreviousNotFinished = errors.New("previous run is not finished")

	// ErrTargetMismatch — previous run принадлежит другому target.
	ErrTargetMismatch = errors.New("previous run belongs to another target")
)

// InvalidTransitionError — переход отсутствует в таблице.
// Несёт список допустимых следующих статусов для диагностики вызывающего.
type InvalidTransitionError struct {
	From    domain.Status
	To      domain.Status
	Allowed []domain.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q -> %q (allowed next: %v)", e.From, e.To, e.Allowed)
}

// IsInvalidTransition проверяет, является ли ошибка InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
