package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
)

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunEvents возвращает журнал событий run в порядке вставки.
// GET /api/v1/runs/{id}/events
func (h *Handler) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	events, err := h.eventRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}

	List(w, result, len(result))
}

// GetRunLineage возвращает всю линию попыток run (по correlation_id).
// GET /api/v1/runs/{id}/lineage
func (h *Handler) GetRunLineage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	runs, err := h.runRepo.ListByCorrelation(r.Context(), run.CorrelationID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, rr := range runs {
		result[i] = RunFromDomain(rr)
	}

	List(w, result, len(result))
}

// AcknowledgeRun подтверждает, что пользователь увидел претензии каталога.
// POST /api/v1/runs/{id}/acknowledge
func (h *Handler) AcknowledgeRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		BadRequest(w, "user_id is required")
		return
	}

	run, err := h.engine.AcknowledgeChanges(r.Context(), id, req.UserID)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, RunFromDomain(*run))
}

// RetryRun создаёт новую попытку в линии run.
// POST /api/v1/runs/{id}/retry
//
// Исходный run должен быть завершён; retry после rejected/needs_changes
// требует предварительного acknowledge.
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req RetryRunRequest
	if r.Body != nil {
		// Тело опционально
		json.NewDecoder(r.Body).Decode(&req)
	}

	reason := domain.StatusReason(req.Reason)
	if req.Reason != "" && !reason.Valid() {
		BadRequest(w, "unknown reason: "+req.Reason)
		return
	}

	prev, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	prevID := prev.ID
	run, err := h.engine.CreateRun(r.Context(), prev.TargetID, lifecycle.CreateRunParams{
		TriggeredBy:   domain.ActorUser,
		TriggeredByID: req.UserID,
		Reason:        reason,
		PreviousRunID: &prevID,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	slug := ""
	if target, err := h.targetRepo.GetByID(r.Context(), run.TargetID); err == nil {
		slug = target.DirectorySlug
	}
	h.publishRunQueued(r.Context(), run, slug)

	Created(w, RunFromDomain(*run))
}

// CancelRun отменяет run.
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req CancelRunRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	actor := domain.ActorUser
	reason := domain.ReasonUserCancelled
	if req.Admin {
		actor = domain.ActorAdmin
		reason = domain.ReasonAdminCancelled
	}

	run, err := h.engine.TransitionRunStatus(r.Context(), id, lifecycle.TransitionRequest{
		ToStatus:      domain.StatusCancelled,
		Reason:        reason,
		TriggeredBy:   actor,
		TriggeredByID: req.UserID,
		Meta:          &lifecycle.TransitionMeta{ClearLock: true},
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, RunFromDomain(*run))
}

// PauseRun приостанавливает run.
// POST /api/v1/runs/{id}/pause
func (h *Handler) PauseRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req PauseRunRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	run, err := h.engine.TransitionRunStatus(r.Context(), id, lifecycle.TransitionRequest{
		ToStatus:      domain.StatusPaused,
		Reason:        domain.ReasonPausedByUser,
		TriggeredBy:   domain.ActorUser,
		TriggeredByID: req.UserID,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ResumeRun возвращает приостановленный run в очередь.
// POST /api/v1/runs/{id}/resume
func (h *Handler) ResumeRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req PauseRunRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	run, err := h.engine.TransitionRunStatus(r.Context(), id, lifecycle.TransitionRequest{
		ToStatus:      domain.StatusQueued,
		Reason:        domain.ReasonResumed,
		TriggeredBy:   domain.ActorUser,
		TriggeredByID: req.UserID,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	slug := ""
	if target, err := h.targetRepo.GetByID(r.Context(), run.TargetID); err == nil {
		slug = target.DirectorySlug
	}
	h.publishRunQueued(r.Context(), run, slug)

	Success(w, RunFromDomain(*run))
}
