package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// AcknowledgeChanges отмечает, что пользователь ознакомился
// с претензиями каталога по данному run.
//
// Сам по себе acknowledgement не меняет статус: он лишь снимает
// precondition для перехода needs_changes/rejected -> in_progress.
// Повторный вызов по уже подтверждённому run — идемпотентный no-op.
func (e *Engine) AcknowledgeChanges(ctx context.Context, runID uuid.UUID, userID string) (*domain.SubmissionRun, error) {
	var updated *domain.SubmissionRun
	err := e.store.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		run, err := uow.GetRunForUpdate(ctx, runID)
		if err != nil {
			return err
		}

		if run.ChangesAcknowledged {
			updated = run
			return nil
		}

		now := e.now().UTC()
		acked := true
		upd := RunUpdate{
			ChangesAcknowledged:   &acked,
			ChangesAcknowledgedAt: &now,
			ChangesAcknowledgedBy: &userID,
		}
		if err := uow.UpdateRun(ctx, runID, upd); err != nil {
			return fmt.Errorf("mark changes acknowledged: %w", err)
		}

		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventChangesAcknowledged,
			TriggeredBy:   domain.ActorUser,
			TriggeredByID: userID,
			Data: domain.EventData{ChangesAcknowledged: &domain.ChangesAcknowledgedData{
				UserID: userID,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert acknowledged event: %w", err)
		}

		updated, err = uow.GetRun(ctx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("changes acknowledged", "run_id", runID, "user_id", userID)
	return updated, nil
}
