package api

import (
	"encoding/json"
	"net/http"

	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
)

// DirectoryWebhook принимает нотификацию каталога о смене статуса заявки.
// POST /api/v1/webhooks/{directory}
//
// Сырой статус каталога маппится на таксономию через справочник.
// Поздний webhook по уже ушедшему дальше run не ошибка: нотификация
// принимается с applied=false, чтобы каталог не ретраил доставку.
func (h *Handler) DirectoryWebhook(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("directory")

	dir, err := h.catalog.Get(slug)
	if err != nil {
		NotFound(w, "unknown directory: "+slug)
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ExternalSubmissionID == "" {
		BadRequest(w, "submission_id is required")
		return
	}
	if req.RawStatus == "" {
		BadRequest(w, "status is required")
		return
	}

	run, err := h.runRepo.GetByExternalSubmissionID(r.Context(), req.ExternalSubmissionID)
	if HandleRepoError(w, h.logger, err, "no run for submission_id") {
		return
	}

	mapped, ok := h.catalog.MapRawStatus(dir.Slug, req.RawStatus)
	if !ok {
		h.logger.Warn("unmapped directory status",
			"directory", dir.Slug,
			"raw_status", req.RawStatus,
			"run_id", run.ID,
		)
		InvalidState(w, "unmapped status: "+req.RawStatus)
		return
	}

	updated, err := h.engine.TransitionRunStatus(r.Context(), run.ID, lifecycle.TransitionRequest{
		ToStatus:      mapped,
		Reason:        webhookReason(mapped),
		TriggeredBy:   domain.ActorWebhook,
		TriggeredByID: dir.Slug,
		Meta: &lifecycle.TransitionMeta{
			ExternalSubmissionID: req.ExternalSubmissionID,
			RawStatus:            req.RawStatus,
			RawStatusMessage:     req.Message,
		},
	})
	if err != nil {
		// Поздний или повторный webhook: run уже не в статусе,
		// из которого возможен этот переход.
		if lifecycle.IsInvalidTransition(err) {
			Success(w, WebhookResponse{
				RunID:   run.ID,
				Applied: false,
				Status:  string(run.Status),
			})
			return
		}
		if HandleEngineError(w, h.logger, err) {
			return
		}
	}

	Success(w, WebhookResponse{
		RunID:   updated.ID,
		Applied: true,
		Status:  string(updated.Status),
	})
}

// webhookReason выбирает причину перехода для статуса из webhook.
func webhookReason(status domain.Status) domain.StatusReason {
	switch status {
	case domain.StatusAwaitingReview:
		return domain.ReasonDirectoryReviewing
	case domain.StatusApproved:
		return domain.ReasonApprovedByDirectory
	case domain.StatusNeedsChanges:
		return domain.ReasonChangesRequested
	case domain.StatusLive:
		return domain.ReasonListingVerifiedLive
	case domain.StatusRejected:
		return domain.ReasonRejectedByDirectory
	case domain.StatusAlreadyListed:
		return domain.ReasonAlreadyListedFound
	case domain.StatusBlocked:
		return domain.ReasonBlockedByDirectory
	default:
		// Причину выведет engine из метаданных, если сможет
		return ""
	}
}
