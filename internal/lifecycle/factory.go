package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/telemetry"
)

// CreateRunParams — параметры создания run.
type CreateRunParams struct {
	// TriggeredBy — кто инициировал создание (обязательно).
	TriggeredBy   domain.Actor
	TriggeredByID string

	// Reason — причина постановки в очередь. Пустая означает
	// initial_queue для первого run и manual_retry для цепочечного.
	Reason domain.StatusReason

	// PreviousRunID связывает run в цепочку попыток: новый run
	// наследует correlation_id и получает attempt_no = prev + 1.
	PreviousRunID *uuid.UUID
}

// CreateRun создаёт новый run для target в статусе queued.
//
// Единственная легальная точка рождения run: здесь пишется событие
// created и target переключается на новый run. Цепочечный run
// (PreviousRunID != nil) допустим только от завершённого предыдущего.
func (e *Engine) CreateRun(ctx context.Context, targetID uuid.UUID, params CreateRunParams) (*domain.SubmissionRun, error) {
	if !params.TriggeredBy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActor, params.TriggeredBy)
	}
	if params.Reason != "" && !params.Reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReason, params.Reason)
	}

	var created *domain.SubmissionRun
	err := e.store.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		run, err := e.createRun(ctx, uow, targetID, params)
		if err != nil {
			return err
		}
		created = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRunIn — вариант CreateRun внутри транзакции вызывающего.
func (e *Engine) CreateRunIn(ctx context.Context, uow UnitOfWork, targetID uuid.UUID, params CreateRunParams) (*domain.SubmissionRun, error) {
	if !params.TriggeredBy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActor, params.TriggeredBy)
	}
	if params.Reason != "" && !params.Reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReason, params.Reason)
	}
	return e.createRun(ctx, uow, targetID, params)
}

func (e *Engine) createRun(ctx context.Context, uow UnitOfWork, targetID uuid.UUID, params CreateRunParams) (*domain.SubmissionRun, error) {
	now := e.now().UTC()

	target, err := uow.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	attemptNo := 1
	correlationID := uuid.New()
	reason := params.Reason
	if reason == "" {
		reason = domain.ReasonInitialQueue
	}

	if params.PreviousRunID != nil {
		prev, err := uow.GetRun(ctx, *params.PreviousRunID)
		if err != nil {
			return nil, fmt.Errorf("load previous run: %w", err)
		}
		if prev.TargetID != targetID {
			return nil, ErrTargetMismatch
		}
		if !prev.IsFinished() {
			return nil, ErrPreviousNotFinished
		}
		attemptNo = prev.AttemptNo + 1
		correlationID = prev.CorrelationID
		if params.Reason == "" {
			reason = domain.ReasonManualRetry
		}
	}

	run := &domain.SubmissionRun{
		ID:              uuid.New(),
		TargetID:        targetID,
		AttemptNo:       attemptNo,
		Status:          domain.StatusQueued,
		StatusReason:    &reason,
		StatusChangedAt: now,
		PreviousRunID:   params.PreviousRunID,
		CorrelationID:   correlationID,
		CreatedAt:       now,
	}

	if err := uow.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	event := &domain.SubmissionEvent{
		ID:            uuid.New(),
		RunID:         run.ID,
		TargetID:      targetID,
		Type:          domain.EventCreated,
		ToStatus:      &run.Status,
		StatusReason:  &reason,
		TriggeredBy:   params.TriggeredBy,
		TriggeredByID: params.TriggeredByID,
		Data: domain.EventData{Created: &domain.CreatedData{
			AttemptNo:     attemptNo,
			PreviousRunID: params.PreviousRunID,
			CorrelationID: correlationID,
		}},
		CreatedAt: now,
	}
	if err := uow.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("insert created event: %w", err)
	}

	// Target всегда переключается на свежесозданный run: это
	// единственное место, где current_run_id меняет значение.
	status := run.Status
	runID := run.ID
	if err := uow.UpdateTargetCurrent(ctx, target.ID, TargetUpdate{
		CurrentStatus: &status,
		CurrentRunID:  &runID,
	}); err != nil {
		return nil, fmt.Errorf("point target at new run: %w", err)
	}

	telemetry.RunsCreated.WithLabelValues(string(reason)).Inc()
	e.logger.Info("run created",
		"run_id", run.ID,
		"target_id", targetID,
		"attempt_no", attemptNo,
		"reason", reason,
	)

	return run, nil
}
