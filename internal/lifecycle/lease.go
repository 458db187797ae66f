package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/telemetry"
)

// AcquireLease захватывает run для воркера на время ttl.
//
// Захват допустим только из queued. Если lease уже держит другой
// воркер и он не протух — ErrLeaseHeld; протухший lease перехватывается.
// Захват пишет событие lock_acquired, статус run не меняет: переход
// queued -> in_progress воркер делает отдельным TransitionRunStatus
// уже после успешного старта коннектора.
func (e *Engine) AcquireLease(ctx context.Context, runID uuid.UUID, workerID string, ttl time.Duration) (*domain.SubmissionRun, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: empty worker id", ErrRunNotClaimable)
	}

	var updated *domain.SubmissionRun
	err := e.store.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		run, err := uow.GetRunForUpdate(ctx, runID)
		if err != nil {
			return err
		}

		if run.Status != domain.StatusQueued {
			return fmt.Errorf("%w: status %q", ErrRunNotClaimable, run.Status)
		}

		now := e.now().UTC()
		if run.Locked(now) && run.LockedBy != nil && *run.LockedBy != workerID {
			return fmt.Errorf("%w: held by %q until %s",
				ErrLeaseHeld, *run.LockedBy, run.LeaseExpiresAt.Format(time.RFC3339))
		}

		expiresAt := now.Add(ttl)
		upd := RunUpdate{
			Lock: &LeaseInfo{
				LockedAt:       now,
				LockedBy:       workerID,
				LeaseExpiresAt: expiresAt,
			},
		}
		if err := uow.UpdateRun(ctx, runID, upd); err != nil {
			return fmt.Errorf("write lease: %w", err)
		}

		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventLockAcquired,
			TriggeredBy:   domain.ActorWorker,
			TriggeredByID: workerID,
			Data: domain.EventData{LockAcquired: &domain.LockAcquiredData{
				WorkerID:       workerID,
				LeaseExpiresAt: expiresAt,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert lock_acquired event: %w", err)
		}

		updated, err = uow.GetRun(ctx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.LeasesAcquired.Inc()
	e.logger.Debug("lease acquired", "run_id", runID, "worker_id", workerID, "ttl", ttl)
	return updated, nil
}
