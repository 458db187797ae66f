package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// --- Outcome Mapping Tests ---

func mappingWorker() *Worker {
	return New(Config{ID: "worker-test", MaxAttempts: 3})
}

func runAtAttempt(n int) *domain.SubmissionRun {
	return &domain.SubmissionRun{
		ID:        uuid.New(),
		TargetID:  uuid.New(),
		AttemptNo: n,
		Status:    domain.StatusInProgress,
	}
}

func TestOutcomeRequest_SubmittedMapsToSubmitted(t *testing.T) {
	w := mappingWorker()

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{
		Kind:                 OutcomeSubmitted,
		ExternalSubmissionID: "ext-42",
	})

	if req.ToStatus != domain.StatusSubmitted {
		t.Errorf("to = %q, want submitted", req.ToStatus)
	}
	if req.Reason != domain.ReasonSubmittedOK {
		t.Errorf("reason = %q", req.Reason)
	}
	if req.Meta.ExternalSubmissionID != "ext-42" {
		t.Error("external submission id should be carried")
	}
	if !req.Meta.ClearLock {
		t.Error("every outcome transition must release the lease")
	}
	if req.TriggeredBy != domain.ActorWorker || req.TriggeredByID != "worker-test" {
		t.Error("transition must be attributed to the worker")
	}
}

func TestOutcomeRequest_AlreadyListed(t *testing.T) {
	w := mappingWorker()

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{Kind: OutcomeAlreadyListed})

	if req.ToStatus != domain.StatusAlreadyListed {
		t.Errorf("to = %q", req.ToStatus)
	}
	if req.Reason != domain.ReasonAlreadyListedFound {
		t.Errorf("reason = %q", req.Reason)
	}
}

func TestOutcomeRequest_ActionNeededCarriesInfo(t *testing.T) {
	w := mappingWorker()
	info := &domain.ActionNeededInfo{Type: domain.ActionCaptcha, URL: "https://dir.example/captcha"}

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{
		Kind:         OutcomeActionNeeded,
		ActionNeeded: info,
	})

	if req.ToStatus != domain.StatusActionNeeded {
		t.Errorf("to = %q", req.ToStatus)
	}
	// Reason left empty: the engine derives it from the action type
	if req.Reason != "" {
		t.Errorf("reason should be derived by the engine, got %q", req.Reason)
	}
	if req.Meta.ActionNeeded != info {
		t.Error("action info should be passed through")
	}
}

func TestOutcomeRequest_DeferredSchedulesRetry(t *testing.T) {
	w := mappingWorker()

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{
		Kind:       OutcomeDeferred,
		Error:      &domain.LastErrorInfo{Type: domain.ErrTypeHTTPServer},
		RetryAfter: 30 * time.Second,
	})

	if req.ToStatus != domain.StatusDeferred {
		t.Errorf("to = %q", req.ToStatus)
	}
	if !req.Meta.ScheduleRetry {
		t.Error("deferred outcome must schedule a retry")
	}
	if req.Meta.RetryDelay != 30*time.Second {
		t.Errorf("retry delay = %v, want directory hint honored", req.Meta.RetryDelay)
	}
}

func TestOutcomeRequest_DeferredAtMaxAttemptsFails(t *testing.T) {
	w := mappingWorker() // maxAttempts = 3

	req := w.outcomeRequest(runAtAttempt(3), &Outcome{
		Kind:  OutcomeDeferred,
		Error: &domain.LastErrorInfo{Type: domain.ErrTypeTimeout},
	})

	if req.ToStatus != domain.StatusFailed {
		t.Errorf("to = %q, want failed after attempts exhausted", req.ToStatus)
	}
	if req.Meta.ScheduleRetry {
		t.Error("no retry once attempts are exhausted")
	}
	if req.Meta.Error == nil || req.Meta.Error.Type != domain.ErrTypeTimeout {
		t.Error("last error should be preserved")
	}
}

func TestOutcomeRequest_RetryableFailureBecomesDeferred(t *testing.T) {
	w := mappingWorker()

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{
		Kind:  OutcomeFailed,
		Error: &domain.LastErrorInfo{Type: domain.ErrTypeNetwork},
	})

	if req.ToStatus != domain.StatusDeferred {
		t.Errorf("to = %q, want retryable failure deferred", req.ToStatus)
	}
	if !req.Meta.ScheduleRetry {
		t.Error("retryable failure must schedule a retry")
	}
}

func TestOutcomeRequest_PermanentFailureFails(t *testing.T) {
	w := mappingWorker()

	req := w.outcomeRequest(runAtAttempt(1), &Outcome{
		Kind:  OutcomeFailed,
		Error: &domain.LastErrorInfo{Type: domain.ErrTypeValidation},
	})

	if req.ToStatus != domain.StatusFailed {
		t.Errorf("to = %q, want failed for non-retryable error", req.ToStatus)
	}
	if req.Meta.ScheduleRetry {
		t.Error("validation errors do not retry")
	}
}

// --- Registry Tests ---

func TestRegistry_DefaultHasHTTP(t *testing.T) {
	r := NewRegistry()

	c, err := r.Get("http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*HTTPConnector); !ok {
		t.Errorf("default http connector type = %T", c)
	}
}

func TestRegistry_UnknownConnector(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("selenium")
	if err == nil {
		t.Fatal("expected error for unknown connector type")
	}
}

// --- Polling-only mode ---

func TestWorker_StartsWithoutBrokerConnection(t *testing.T) {
	w := New(Config{ID: "worker-test"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start without broker failed: %v", err)
	}
	w.Stop()

	if w.consumer != nil {
		t.Error("no consumer should be created without a broker connection")
	}
	if !w.IsStopped() {
		t.Error("worker should report stopped")
	}
}
