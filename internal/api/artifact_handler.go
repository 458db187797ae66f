package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// presignTTL — время жизни presigned ссылки на скачивание.
const presignTTL = 15 * time.Minute

// ListRunArtifacts возвращает артефакты run.
// GET /api/v1/runs/{id}/artifacts
func (h *Handler) ListRunArtifacts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	items, err := h.artifactRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(items))
	for i, a := range items {
		result[i] = ArtifactFromDomain(a)
	}

	List(w, result, len(result))
}

// UploadArtifact загружает артефакт для run.
// POST /api/v1/runs/{id}/artifacts?kind=live_verification
//
// Тело запроса — содержимое артефакта как есть; тип берётся
// из Content-Type. Артефакт live_verification открывает run'у
// переход в live.
func (h *Handler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	kind := domain.ArtifactKind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		BadRequest(w, "unknown artifact kind: "+string(kind))
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	artifact, err := h.artifacts.Save(r.Context(), run, kind, contentType, r.Body, r.ContentLength)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ArtifactFromDomain(*artifact))
}

// DownloadArtifact возвращает presigned ссылку на скачивание.
// GET /api/v1/artifacts/{id}/download
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	artifact, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	url, err := h.artifacts.DownloadURL(r.Context(), artifact, presignTTL)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	resp := ArtifactFromDomain(*artifact)
	resp.DownloadURL = url
	Success(w, resp)
}
