package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
)

// CreateTarget создаёт target и его первый run.
// POST /api/v1/targets
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req CreateTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.DirectorySlug == "" {
		BadRequest(w, "directory_slug is required")
		return
	}
	if req.BusinessID == uuid.Nil {
		BadRequest(w, "business_id is required")
		return
	}

	dir, err := h.catalog.Get(req.DirectorySlug)
	if err != nil {
		BadRequest(w, "unknown directory: "+req.DirectorySlug)
		return
	}

	target := &domain.SubmissionTarget{
		ID:            uuid.New(),
		DirectorySlug: dir.Slug,
		BusinessID:    req.BusinessID,
		CreatedAt:     time.Now().UTC(),
	}

	err = h.targetRepo.Create(r.Context(), target)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	run, err := h.engine.CreateRun(r.Context(), target.ID, lifecycle.CreateRunParams{
		TriggeredBy: domain.ActorUser,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	h.publishRunQueued(r.Context(), run, dir.Slug)

	// Проекция уже указывает на первый run
	target.CurrentStatus = run.Status
	target.CurrentRunID = &run.ID

	Created(w, struct {
		Target TargetResponse `json:"target"`
		Run    RunResponse    `json:"run"`
	}{
		Target: TargetFromDomain(*target),
		Run:    RunFromDomain(*run),
	})
}

// GetTarget возвращает target по ID.
// GET /api/v1/targets/{id}
func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid target id")
		return
	}

	target, err := h.targetRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "target not found") {
		return
	}

	Success(w, TargetFromDomain(*target))
}

// ListTargets возвращает список targets с фильтрацией.
// GET /api/v1/targets?business_id=...&status=...&limit=...&offset=...
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	filter := repo.TargetFilter{Limit: 50}

	if businessIDStr := r.URL.Query().Get("business_id"); businessIDStr != "" {
		businessID, err := uuid.Parse(businessIDStr)
		if err != nil {
			BadRequest(w, "invalid business_id")
			return
		}
		filter.BusinessID = &businessID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.Status(status)
		if !filter.Status.Valid() {
			BadRequest(w, "unknown status: "+status)
			return
		}
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	targets, err := h.targetRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TargetResponse, len(targets))
	for i, t := range targets {
		result[i] = TargetFromDomain(t)
	}

	List(w, result, len(result))
}

// ListTargetRuns возвращает линию runs одного target.
// GET /api/v1/targets/{id}/runs
func (h *Handler) ListTargetRuns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid target id")
		return
	}

	_, err = h.targetRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "target not found") {
		return
	}

	runs, err := h.runRepo.ListByTarget(r.Context(), id, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// ListTargetEvents возвращает журнал событий target.
// GET /api/v1/targets/{id}/events
func (h *Handler) ListTargetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid target id")
		return
	}

	events, err := h.eventRepo.ListByTarget(r.Context(), id, queryInt(r, "limit", 100), queryInt(r, "offset", 0))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}

	List(w, result, len(result))
}

// ListDirectories возвращает справочник каталогов.
// GET /api/v1/directories
func (h *Handler) ListDirectories(w http.ResponseWriter, r *http.Request) {
	dirs := h.catalog.All()

	result := make([]DirectoryResponse, len(dirs))
	for i, d := range dirs {
		result[i] = DirectoryResponse{
			Slug:             d.Slug,
			Name:             d.Name,
			Connector:        d.Connector,
			RateLimitPerHour: d.RateLimitPerHour,
			SupportsWebhook:  d.SupportsWebhook,
		}
	}

	List(w, result, len(result))
}

// publishRunQueued уведомляет воркеров о новом run в очереди.
// Сбой публикации не критичен: воркер подхватит run через polling.
func (h *Handler) publishRunQueued(ctx context.Context, run *domain.SubmissionRun, slug string) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.PublishRunQueued(ctx, mq.RunQueuedPayload{
		RunID:         run.ID,
		TargetID:      run.TargetID,
		DirectorySlug: slug,
		AttemptNo:     run.AttemptNo,
	})
	if err != nil {
		h.logger.Warn("failed to publish run.queued", "run_id", run.ID, "error", err)
	}
}

// queryInt парсит числовой query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
