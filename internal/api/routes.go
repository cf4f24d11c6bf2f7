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

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.StartRun)))
	mux.Handle("POST /api/v1/runs/pause", chain(http.HandlerFunc(h.PauseRun)))
	mux.Handle("POST /api/v1/runs/resume", chain(http.HandlerFunc(h.ResumeRun)))
	mux.Handle("POST /api/v1/runs/stop", chain(http.HandlerFunc(h.StopRun)))
	mux.Handle("GET /api/v1/runs/status", chain(http.HandlerFunc(h.GetRunStatus)))
	mux.Handle("GET /api/v1/runs/artifacts", chain(http.HandlerFunc(h.GetArtifacts)))

	// Downloads
	mux.Handle("POST /api/v1/downloads", chain(http.HandlerFunc(h.EnqueueDownloads)))

	// Sessions
	mux.Handle("GET /api/v1/sessions", chain(http.HandlerFunc(h.ListSessions)))
	mux.Handle("PUT /api/v1/sessions/{id}", chain(http.HandlerFunc(h.SaveSession)))
	mux.Handle("GET /api/v1/sessions/{id}", chain(http.HandlerFunc(h.GetSession)))
	mux.Handle("DELETE /api/v1/sessions/{id}", chain(http.HandlerFunc(h.DeleteSession)))
}
