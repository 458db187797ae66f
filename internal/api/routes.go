package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Targets
	mux.Handle("GET /api/v1/targets", chain(http.HandlerFunc(h.ListTargets)))
	mux.Handle("POST /api/v1/targets", chain(http.HandlerFunc(h.CreateTarget)))
	mux.Handle("GET /api/v1/targets/{id}", chain(http.HandlerFunc(h.GetTarget)))
	mux.Handle("GET /api/v1/targets/{id}/runs", chain(http.HandlerFunc(h.ListTargetRuns)))
	mux.Handle("GET /api/v1/targets/{id}/events", chain(http.HandlerFunc(h.ListTargetEvents)))

	// Runs
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/events", chain(http.HandlerFunc(h.ListRunEvents)))
	mux.Handle("GET /api/v1/runs/{id}/lineage", chain(http.HandlerFunc(h.GetRunLineage)))
	mux.Handle("POST /api/v1/runs/{id}/acknowledge", chain(http.HandlerFunc(h.AcknowledgeRun)))
	mux.Handle("POST /api/v1/runs/{id}/retry", chain(http.HandlerFunc(h.RetryRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))
	mux.Handle("POST /api/v1/runs/{id}/pause", chain(http.HandlerFunc(h.PauseRun)))
	mux.Handle("POST /api/v1/runs/{id}/resume", chain(http.HandlerFunc(h.ResumeRun)))

	// Artifacts
	mux.Handle("GET /api/v1/runs/{id}/artifacts", chain(http.HandlerFunc(h.ListRunArtifacts)))
	mux.Handle("POST /api/v1/runs/{id}/artifacts", chain(http.HandlerFunc(h.UploadArtifact)))
	mux.Handle("GET /api/v1/artifacts/{id}/download", chain(http.HandlerFunc(h.DownloadArtifact)))

	// Directories (справочник каталогов)
	mux.Handle("GET /api/v1/directories", chain(http.HandlerFunc(h.ListDirectories)))

	// Webhooks каталогов
	mux.Handle("POST /api/v1/webhooks/{directory}", chain(http.HandlerFunc(h.DirectoryWebhook)))
}
