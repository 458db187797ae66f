package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/repo"
)

// --- Response Helper Tests ---

func TestHandleEngineError_InvalidTransition(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &lifecycle.InvalidTransitionError{
		From:    domain.StatusQueued,
		To:      domain.StatusLive,
		Allowed: domain.StatusQueued.AllowedNext(),
	}

	if !HandleEngineError(rec, slog.Default(), err) {
		t.Fatal("error should be handled")
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidTransition {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if len(resp.Error.Allowed) == 0 {
		t.Error("allowed targets should be listed")
	}
}

func TestHandleEngineError_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()

	HandleEngineError(rec, slog.Default(), lifecycle.ErrRunNotFound)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleEngineError_PreconditionsAre422(t *testing.T) {
	for _, err := range []error{
		lifecycle.ErrVerificationMissing,
		lifecycle.ErrChangesNotAcknowledged,
		lifecycle.ErrPreviousNotFinished,
	} {
		rec := httptest.NewRecorder()
		HandleEngineError(rec, slog.Default(), err)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%v: status = %d, want 422", err, rec.Code)
		}
	}
}

func TestHandleEngineError_ValidationIs400(t *testing.T) {
	rec := httptest.NewRecorder()

	HandleEngineError(rec, slog.Default(), lifecycle.ErrMissingActionInfo)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRepoError_Conflict(t *testing.T) {
	rec := httptest.NewRecorder()

	HandleRepoError(rec, slog.Default(), repo.ErrAlreadyExists, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleRepoError_NilNotHandled(t *testing.T) {
	rec := httptest.NewRecorder()

	if HandleRepoError(rec, slog.Default(), nil, "") {
		t.Error("nil error should not be handled")
	}
}

// --- Webhook Reason Tests ---

func TestWebhookReason_KnownStatuses(t *testing.T) {
	cases := map[domain.Status]domain.StatusReason{
		domain.StatusAwaitingReview: domain.ReasonDirectoryReviewing,
		domain.StatusApproved:       domain.ReasonApprovedByDirectory,
		domain.StatusNeedsChanges:   domain.ReasonChangesRequested,
		domain.StatusLive:           domain.ReasonListingVerifiedLive,
		domain.StatusRejected:       domain.ReasonRejectedByDirectory,
		domain.StatusAlreadyListed:  domain.ReasonAlreadyListedFound,
		domain.StatusBlocked:        domain.ReasonBlockedByDirectory,
	}

	for status, want := range cases {
		if got := webhookReason(status); got != want {
			t.Errorf("webhookReason(%s) = %q, want %q", status, got, want)
		}
	}
}

func TestWebhookReason_UnknownIsEmpty(t *testing.T) {
	if got := webhookReason(domain.StatusInProgress); got != "" {
		t.Errorf("webhookReason(in_progress) = %q, want empty", got)
	}
}

// --- Middleware Tests ---

func TestRecovery_CatchesPanic(t *testing.T) {
	handler := Recovery(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("outer"), mw("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v", order)
	}
}
