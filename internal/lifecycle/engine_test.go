package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// --- Static validation ---

func TestTransition_UnknownStatusRejected(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusQueued)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.Status("launched"),
		TriggeredBy: domain.ActorWorker,
	})
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}

	// Nothing written
	if got := store.getRun(run.ID).Status; got != domain.StatusQueued {
		t.Errorf("run status should be untouched, got %q", got)
	}
	if n := len(store.eventsForRun(run.ID)); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestTransition_UnknownReasonRejected(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusQueued)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		Reason:      domain.StatusReason("because"),
		TriggeredBy: domain.ActorWorker,
	})
	if !errors.Is(err, ErrUnknownReason) {
		t.Fatalf("expected ErrUnknownReason, got %v", err)
	}
}

func TestTransition_UnknownActorRejected(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusQueued)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		TriggeredBy: domain.Actor("robot"),
	})
	if !errors.Is(err, ErrUnknownActor) {
		t.Fatalf("expected ErrUnknownActor, got %v", err)
	}
}

func TestTransition_ActionNeededRequiresMetadata(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusActionNeeded,
		TriggeredBy: domain.ActorWorker,
	})
	if !errors.Is(err, ErrMissingActionInfo) {
		t.Fatalf("expected ErrMissingActionInfo, got %v", err)
	}
}

func TestTransition_FailedRequiresErrorMetadata(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusFailed,
		TriggeredBy: domain.ActorWorker,
	})
	if !errors.Is(err, ErrMissingErrorType) {
		t.Fatalf("expected ErrMissingErrorType, got %v", err)
	}
}

// --- Transition table enforcement ---

func TestTransition_InvalidPairDoesNotMutate(t *testing.T) {
	store, target, run := newTestWorld(domain.StatusQueued)
	eng := testEngine(store)

	// queued -> live is not in the table
	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusLive,
		TriggeredBy: domain.ActorWorker,
	})
	if !IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	var ite *InvalidTransitionError
	errors.As(err, &ite)
	if ite.From != domain.StatusQueued || ite.To != domain.StatusLive {
		t.Errorf("error should carry from/to, got %q -> %q", ite.From, ite.To)
	}
	if len(ite.Allowed) == 0 {
		t.Error("error should carry allowed next statuses")
	}

	if got := store.getRun(run.ID).Status; got != domain.StatusQueued {
		t.Errorf("run should be untouched, got %q", got)
	}
	if got := store.getTarget(target.ID).CurrentStatus; got != domain.StatusQueued {
		t.Errorf("target should be untouched, got %q", got)
	}
	if n := len(store.eventsForRun(run.ID)); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestTransition_ValidPairUpdatesRunAndEmitsOneEvent(t *testing.T) {
	store, target, run := newTestWorld(domain.StatusQueued)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:      domain.StatusInProgress,
		Reason:        domain.ReasonWorkerStarted,
		TriggeredBy:   domain.ActorWorker,
		TriggeredByID: "worker-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != domain.StatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}
	if !updated.StatusChangedAt.Equal(at) {
		t.Errorf("status_changed_at = %v, want %v", updated.StatusChangedAt, at)
	}
	if updated.StartedAt == nil || !updated.StartedAt.Equal(at) {
		t.Errorf("started_at should be set on first start, got %v", updated.StartedAt)
	}
	if updated.AttemptNo != 1 {
		t.Errorf("queued -> in_progress must not bump attempt_no, got %d", updated.AttemptNo)
	}
	if updated.StatusReason == nil || *updated.StatusReason != domain.ReasonWorkerStarted {
		t.Errorf("reason = %v, want worker_started", updated.StatusReason)
	}

	events := store.eventsForRun(run.ID)
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != domain.EventStatusChange {
		t.Errorf("event type = %q, want status_change", ev.Type)
	}
	if ev.FromStatus == nil || *ev.FromStatus != domain.StatusQueued {
		t.Errorf("event from = %v, want queued", ev.FromStatus)
	}
	if ev.ToStatus == nil || *ev.ToStatus != domain.StatusInProgress {
		t.Errorf("event to = %v, want in_progress", ev.ToStatus)
	}
	if ev.Data.StatusChange == nil {
		t.Fatal("event payload should be status_change data")
	}

	// Projection follows the current run
	gotTarget := store.getTarget(target.ID)
	if gotTarget.CurrentStatus != domain.StatusInProgress {
		t.Errorf("target current_status = %q, want in_progress", gotTarget.CurrentStatus)
	}
}

// --- Terminal statuses ---

func TestTransition_TerminalSetsCompletedAt(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusFailed,
		TriggeredBy: domain.ActorWorker,
		Meta: &TransitionMeta{
			Error: &domain.LastErrorInfo{Type: domain.ErrTypeValidation, Message: "missing category"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(at) {
		t.Errorf("completed_at should be set on terminal status, got %v", updated.CompletedAt)
	}
	if updated.LastError == nil || updated.LastError.Type != domain.ErrTypeValidation {
		t.Errorf("last_error should be recorded, got %v", updated.LastError)
	}
	// Reason derived from error type
	if updated.StatusReason == nil || *updated.StatusReason != domain.ReasonValidationError {
		t.Errorf("reason = %v, want validation_error", updated.StatusReason)
	}
}

func TestTransition_ReasonFallsBackToConnectorError(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	eng := testEngine(store)

	// parsing has no dedicated reason mapping
	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusFailed,
		TriggeredBy: domain.ActorWorker,
		Meta: &TransitionMeta{
			Error: &domain.LastErrorInfo{Type: domain.ErrTypeParsing},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.StatusReason == nil || *updated.StatusReason != domain.ReasonConnectorError {
		t.Errorf("reason = %v, want connector_error", updated.StatusReason)
	}
}

// --- Live verification gate ---

func TestTransition_LiveWithoutArtifactRejected(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusAwaitingReview)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusLive,
		Reason:      domain.ReasonListingVerifiedLive,
		TriggeredBy: domain.ActorWorker,
	})
	if !errors.Is(err, ErrVerificationMissing) {
		t.Fatalf("expected ErrVerificationMissing, got %v", err)
	}
	if got := store.getRun(run.ID).Status; got != domain.StatusAwaitingReview {
		t.Errorf("run should be untouched, got %q", got)
	}
}

func TestTransition_LiveWithArtifactSucceeds(t *testing.T) {
	store, target, run := newTestWorld(domain.StatusAwaitingReview)
	store.seedArtifact(run.ID, domain.ArtifactLiveVerification)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusLive,
		Reason:      domain.ReasonListingVerifiedLive,
		TriggeredBy: domain.ActorWorker,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusLive {
		t.Errorf("status = %q, want live", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("live is terminal, completed_at should be set")
	}

	gotTarget := store.getTarget(target.ID)
	if gotTarget.CurrentStatus != domain.StatusLive {
		t.Errorf("target current_status = %q, want live", gotTarget.CurrentStatus)
	}
	if gotTarget.LiveVerifiedAt == nil || !gotTarget.LiveVerifiedAt.Equal(at) {
		t.Errorf("target live_verified_at should be stamped, got %v", gotTarget.LiveVerifiedAt)
	}
}

// --- Acknowledgement gate ---

func TestTransition_RetryAfterRejectionRequiresAck(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusRejected)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		Reason:      domain.ReasonManualRetry,
		TriggeredBy: domain.ActorUser,
	})
	if !errors.Is(err, ErrChangesNotAcknowledged) {
		t.Fatalf("expected ErrChangesNotAcknowledged, got %v", err)
	}

	// Acknowledge, then retry passes the gate
	if _, err := eng.AcknowledgeChanges(context.Background(), run.ID, "user-7"); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		Reason:      domain.ReasonManualRetry,
		TriggeredBy: domain.ActorUser,
	})
	if err != nil {
		t.Fatalf("unexpected error after ack: %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}
}

func TestTransition_NeedsChangesGateAlsoApplies(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusNeedsChanges)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		TriggeredBy: domain.ActorUser,
	})
	if !errors.Is(err, ErrChangesNotAcknowledged) {
		t.Fatalf("expected ErrChangesNotAcknowledged, got %v", err)
	}
}

// --- Retry scheduling ---

func TestTransition_DeferredSchedulesComputedRetry(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusDeferred,
		TriggeredBy: domain.ActorWorker,
		Meta: &TransitionMeta{
			Error:         &domain.LastErrorInfo{Type: domain.ErrTypeRateLimited},
			ScheduleRetry: true,
			ClearLock:     true,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// attempt 1 -> base delay
	wantNext := at.Add(5 * time.Second)
	if updated.NextRunAt == nil || !updated.NextRunAt.Equal(wantNext) {
		t.Errorf("next_run_at = %v, want %v", updated.NextRunAt, wantNext)
	}
	if updated.StatusReason == nil || *updated.StatusReason != domain.ReasonDeferredRateLimited {
		t.Errorf("reason = %v, want deferred_rate_limited", updated.StatusReason)
	}

	events := store.eventsForRun(run.ID)
	if len(events) != 2 {
		t.Fatalf("expected status_change + retry_scheduled, got %d events", len(events))
	}
	var retryEv *domain.SubmissionEvent
	for i := range events {
		if events[i].Type == domain.EventRetryScheduled {
			retryEv = &events[i]
		}
	}
	if retryEv == nil {
		t.Fatal("retry_scheduled event missing")
	}
	if retryEv.Data.RetryScheduled.DelayMs != 5000 {
		t.Errorf("delay_ms = %d, want 5000", retryEv.Data.RetryScheduled.DelayMs)
	}
}

func TestTransition_ExplicitNextRunAtWins(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	explicit := at.Add(42 * time.Minute)
	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusDeferred,
		Reason:      domain.ReasonDeferredMaintenance,
		TriggeredBy: domain.ActorWorker,
		Meta: &TransitionMeta{
			ScheduleRetry: true,
			NextRunAt:     &explicit,
			RetryDelay:    time.Second, // ignored: explicit timestamp has priority
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.NextRunAt == nil || !updated.NextRunAt.Equal(explicit) {
		t.Errorf("next_run_at = %v, want %v", updated.NextRunAt, explicit)
	}
}

func TestTransition_DeferredToInProgressBumpsAttempt(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusDeferred)
	next := time.Now().UTC()
	started := next.Add(-time.Minute)
	run.NextRunAt = &next
	run.StartedAt = &started
	store.seedRun(run)
	eng := testEngine(store)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		Reason:      domain.ReasonScheduledRetry,
		TriggeredBy: domain.ActorScheduler,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AttemptNo != 2 {
		t.Errorf("attempt_no = %d, want 2 after re-entry from deferred", updated.AttemptNo)
	}
	if updated.NextRunAt != nil {
		t.Error("next_run_at should be cleared on entering in_progress")
	}
}

func TestTransition_RequeuedRestartBumpsAttemptAndGrowsBackoff(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusQueued)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	eng := testEngineAt(store, at)

	transition := func(to domain.Status, reason domain.StatusReason, actor domain.Actor, meta *TransitionMeta) *domain.SubmissionRun {
		t.Helper()
		updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
			ToStatus:    to,
			Reason:      reason,
			TriggeredBy: actor,
			Meta:        meta,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", to, err)
		}
		return updated
	}

	// First start does not count as a retry
	updated := transition(domain.StatusInProgress, domain.ReasonWorkerStarted, domain.ActorWorker, nil)
	if updated.AttemptNo != 1 {
		t.Fatalf("attempt_no after first start = %d, want 1", updated.AttemptNo)
	}

	// Three defer -> requeue -> restart cycles: the path every scheduled
	// retry actually takes (the sweeper requeues, the worker reclaims).
	wantDelays := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, wantDelay := range wantDelays {
		deferred := transition(domain.StatusDeferred, "", domain.ActorWorker, &TransitionMeta{
			Error:         &domain.LastErrorInfo{Type: domain.ErrTypeTimeout},
			ScheduleRetry: true,
			ClearLock:     true,
		})
		wantNext := at.Add(wantDelay)
		if deferred.NextRunAt == nil || !deferred.NextRunAt.Equal(wantNext) {
			t.Errorf("cycle %d: next_run_at = %v, want %v", i+1, deferred.NextRunAt, wantNext)
		}

		transition(domain.StatusQueued, domain.ReasonScheduledRetry, domain.ActorScheduler, nil)

		restarted := transition(domain.StatusInProgress, domain.ReasonWorkerStarted, domain.ActorWorker, nil)
		if restarted.AttemptNo != i+2 {
			t.Errorf("cycle %d: attempt_no = %d, want %d", i+1, restarted.AttemptNo, i+2)
		}
	}
}

// --- Action needed ---

func TestTransition_ActionNeededDerivesReasonAndEmitsEvent(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	eng := testEngine(store)

	deadline := time.Now().UTC().Add(48 * time.Hour)
	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusActionNeeded,
		TriggeredBy: domain.ActorWorker,
		Meta: &TransitionMeta{
			ActionNeeded: &domain.ActionNeededInfo{
				Type:     domain.ActionCaptcha,
				URL:      "https://biz.example.com/verify",
				Deadline: &deadline,
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.StatusReason == nil || *updated.StatusReason != domain.ReasonCaptchaRequired {
		t.Errorf("reason = %v, want captcha_required", updated.StatusReason)
	}
	if updated.ActionNeeded == nil || updated.ActionNeeded.Type != domain.ActionCaptcha {
		t.Errorf("action_needed should be stored, got %v", updated.ActionNeeded)
	}

	events := store.eventsForRun(run.ID)
	if len(events) != 2 {
		t.Fatalf("expected status_change + action_required, got %d events", len(events))
	}
	found := false
	for _, ev := range events {
		if ev.Type == domain.EventActionRequired {
			found = true
			if ev.Data.ActionRequired.Type != domain.ActionCaptcha {
				t.Errorf("action_required payload type = %q", ev.Data.ActionRequired.Type)
			}
		}
	}
	if !found {
		t.Error("action_required event missing")
	}
}

func TestTransition_LeavingActionNeededClearsInfo(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusActionNeeded)
	run.ActionNeeded = &domain.ActionNeededInfo{Type: domain.ActionCaptcha}
	store.seedRun(run)
	eng := testEngine(store)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusInProgress,
		Reason:      domain.ReasonResumed,
		TriggeredBy: domain.ActorWorker,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ActionNeeded != nil {
		t.Errorf("action_needed should be cleared, got %v", updated.ActionNeeded)
	}
}

// --- Lease lifecycle inside transitions ---

func TestTransition_LeaseExpiryClearsLockAndEmitsEvent(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	lockedAt := time.Now().UTC().Add(-10 * time.Minute)
	worker := "worker-3"
	expired := lockedAt.Add(5 * time.Minute)
	run.LockedAt = &lockedAt
	run.LockedBy = &worker
	run.LeaseExpiresAt = &expired
	store.seedRun(run)
	eng := testEngine(store)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusDeferred,
		Reason:      domain.ReasonLeaseExpired,
		TriggeredBy: domain.ActorScheduler,
		Meta: &TransitionMeta{
			ScheduleRetry: true,
			ClearLock:     true,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.LockedAt != nil || updated.LockedBy != nil || updated.LeaseExpiresAt != nil {
		t.Error("all three lease fields should be cleared together")
	}

	types := map[domain.EventType]int{}
	for _, ev := range store.eventsForRun(run.ID) {
		types[ev.Type]++
	}
	if types[domain.EventStatusChange] != 1 {
		t.Errorf("status_change events = %d, want 1", types[domain.EventStatusChange])
	}
	if types[domain.EventLeaseExpired] != 1 {
		t.Errorf("lease_expired events = %d, want 1", types[domain.EventLeaseExpired])
	}
	if types[domain.EventRetryScheduled] != 1 {
		t.Errorf("retry_scheduled events = %d, want 1", types[domain.EventRetryScheduled])
	}
}

func TestTransition_ClearLockEmitsLockReleased(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	lockedAt := time.Now().UTC().Add(-time.Minute)
	worker := "worker-5"
	expires := lockedAt.Add(2 * time.Minute)
	started := lockedAt
	run.LockedAt = &lockedAt
	run.LockedBy = &worker
	run.LeaseExpiresAt = &expires
	run.StartedAt = &started
	store.seedRun(run)
	eng := testEngine(store)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:      domain.StatusSubmitted,
		Reason:        domain.ReasonSubmittedOK,
		TriggeredBy:   domain.ActorWorker,
		TriggeredByID: worker,
		Meta:          &TransitionMeta{ClearLock: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LockedBy != nil {
		t.Error("lock should be cleared")
	}

	var released *domain.SubmissionEvent
	events := store.eventsForRun(run.ID)
	for i := range events {
		if events[i].Type == domain.EventLockReleased {
			released = &events[i]
		}
	}
	if released == nil {
		t.Fatal("lock_released event missing")
	}
	if released.Data.LockReleased.WorkerID != worker {
		t.Errorf("lock_released worker_id = %q, want %q", released.Data.LockReleased.WorkerID, worker)
	}
}

func TestTransition_LeaseExpiryDoesNotDoubleRecordRelease(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	worker := "worker-3"
	run.LockedBy = &worker
	store.seedRun(run)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusDeferred,
		Reason:      domain.ReasonLeaseExpired,
		TriggeredBy: domain.ActorScheduler,
		Meta:        &TransitionMeta{ScheduleRetry: true, ClearLock: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ev := range store.eventsForRun(run.ID) {
		if ev.Type == domain.EventLockReleased {
			t.Error("expired lease must be recorded as lease_expired only")
		}
	}
}

// --- Event ordering ---

func TestTransition_EventsReadBackInInsertionOrder(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusInProgress)
	worker := "worker-3"
	run.LockedBy = &worker
	store.seedRun(run)
	eng := testEngine(store)

	_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusDeferred,
		Reason:      domain.ReasonLeaseExpired,
		TriggeredBy: domain.ActorScheduler,
		Meta:        &TransitionMeta{ScheduleRetry: true, ClearLock: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := store.eventsForRun(run.ID)
	if len(events) < 3 {
		t.Fatalf("expected status_change + supplementary events, got %d", len(events))
	}

	// The canonical event comes first, seq strictly increases.
	if events[0].Type != domain.EventStatusChange {
		t.Errorf("first event = %q, want status_change", events[0].Type)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Errorf("seq not strictly increasing: %d after %d", events[i].Seq, events[i-1].Seq)
		}
	}
}

// --- External status from the directory ---

func TestTransition_ExternalStatusRecorded(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusSubmitted)
	eng := testEngine(store)

	updated, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
		ToStatus:    domain.StatusApproved,
		Reason:      domain.ReasonApprovedByDirectory,
		TriggeredBy: domain.ActorWebhook,
		Meta: &TransitionMeta{
			ExternalSubmissionID: "yelp-123",
			RawStatus:            "APPROVED",
			RawStatusMessage:     "Your listing was approved",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ExternalSubmissionID == nil || *updated.ExternalSubmissionID != "yelp-123" {
		t.Errorf("external_submission_id = %v", updated.ExternalSubmissionID)
	}
	if updated.RawStatus == nil || *updated.RawStatus != "APPROVED" {
		t.Errorf("raw_status = %v", updated.RawStatus)
	}

	found := false
	for _, ev := range store.eventsForRun(run.ID) {
		if ev.Type == domain.EventExternalStatus {
			found = true
			if ev.Data.ExternalStatus.MappedStatus != domain.StatusApproved {
				t.Errorf("mapped_status = %q", ev.Data.ExternalStatus.MappedStatus)
			}
		}
	}
	if !found {
		t.Error("external_status event missing")
	}
}

// --- Stale run protection ---

func TestTransition_StaleRunDoesNotTouchTargetProjection(t *testing.T) {
	store, target, oldRun := newTestWorld(domain.StatusSubmitted)

	// Target already points at a newer run in the chain
	newRunID := uuid.New()
	target.CurrentRunID = &newRunID
	target.CurrentStatus = domain.StatusQueued
	store.seedTarget(target)
	eng := testEngine(store)

	// Late webhook lands on the old run
	_, err := eng.TransitionRunStatus(context.Background(), oldRun.ID, TransitionRequest{
		ToStatus:    domain.StatusRejected,
		Reason:      domain.ReasonRejectedByDirectory,
		TriggeredBy: domain.ActorWebhook,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Run is updated, projection is not
	if got := store.getRun(oldRun.ID).Status; got != domain.StatusRejected {
		t.Errorf("old run status = %q, want rejected", got)
	}
	gotTarget := store.getTarget(target.ID)
	if gotTarget.CurrentStatus != domain.StatusQueued {
		t.Errorf("target should keep newer run's status, got %q", gotTarget.CurrentStatus)
	}
	if *gotTarget.CurrentRunID != newRunID {
		t.Error("target current_run_id should not change")
	}
}

// --- Concurrency ---

func TestTransition_ConcurrentSameTransitionExactlyOneWins(t *testing.T) {
	store, _, run := newTestWorld(domain.StatusQueued)
	eng := testEngine(store)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.TransitionRunStatus(context.Background(), run.ID, TransitionRequest{
				ToStatus:    domain.StatusInProgress,
				Reason:      domain.ReasonWorkerStarted,
				TriggeredBy: domain.ActorWorker,
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var ok, invalid int
	for err := range errCh {
		switch {
		case err == nil:
			ok++
		case IsInvalidTransition(err):
			invalid++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Errorf("want exactly one winner, got ok=%d invalid=%d", ok, invalid)
	}
	if n := len(store.eventsForRun(run.ID)); n != 1 {
		t.Errorf("expected exactly 1 event, got %d", n)
	}
}
