package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
)

// StartRun запускает прогон.
// POST /api/v1/runs
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	prompts := req.Prompts
	asset := req.Asset.ToDomain()
	settings := req.Settings

	// Незаполненные поля добираются из сохранённой сессии
	if req.SessionID != "" {
		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			BadRequest(w, "invalid session_id")
			return
		}
		if h.sessions == nil {
			InvalidState(w, "session storage is not configured")
			return
		}
		session, err := h.sessions.GetByID(r.Context(), sessionID)
		if HandleRepoError(w, h.logger, err, "session not found") {
			return
		}
		if len(prompts) == 0 {
			prompts = session.Prompts
		}
		if asset.IsEmpty() {
			asset = session.Asset
		}
		if settings == (domain.Settings{}) {
			settings = session.Settings
		}
	}

	if len(prompts) == 0 {
		BadRequest(w, "prompts are required")
		return
	}

	payload := mq.RunStartPayload{
		SessionID: req.SessionID,
		Prompts:   prompts,
		Asset:     asset,
		Settings:  settings,
	}
	if err := h.publisher.PublishCommand(r.Context(), mq.MessageTypeRunStart, payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.state.SetStatus(domain.RunStatusRunning)
	Accepted(w, RunAcceptedResponse{Items: len(prompts)})
}

// PauseRun приостанавливает прогон.
// POST /api/v1/runs/pause
func (h *Handler) PauseRun(w http.ResponseWriter, r *http.Request) {
	if h.state.Status() != domain.RunStatusRunning {
		InvalidState(w, "run is not running")
		return
	}
	h.publishControl(w, r, mq.MessageTypeRunPause, domain.RunStatusPaused)
}

// ResumeRun возобновляет прогон.
// POST /api/v1/runs/resume
func (h *Handler) ResumeRun(w http.ResponseWriter, r *http.Request) {
	if h.state.Status() != domain.RunStatusPaused {
		InvalidState(w, "run is not paused")
		return
	}
	h.publishControl(w, r, mq.MessageTypeRunResume, domain.RunStatusRunning)
}

// StopRun останавливает прогон.
// POST /api/v1/runs/stop
func (h *Handler) StopRun(w http.ResponseWriter, r *http.Request) {
	if !h.state.Status().IsActive() {
		InvalidState(w, "run is not active")
		return
	}
	h.publishControl(w, r, mq.MessageTypeRunStop, domain.RunStatusStopped)
}

// publishControl отправляет управляющую команду и оптимистично
// переводит локальное состояние.
func (h *Handler) publishControl(w http.ResponseWriter, r *http.Request, msgType mq.MessageType, next domain.RunStatus) {
	if err := h.publisher.PublishCommand(r.Context(), msgType, nil); err != nil {
		InternalError(w, h.logger, err)
		return
	}
	h.state.SetStatus(next)
	Accepted(w, CommandAcceptedResponse{Command: string(msgType)})
}

// GetRunStatus возвращает последнее известное состояние прогона.
// GET /api/v1/runs/status
func (h *Handler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.state.Snapshot())
}

// GetArtifacts возвращает последний завершённый набор артефактов.
// GET /api/v1/runs/artifacts
//
// Отсутствие набора (прогон не завершался, кэш истёк) — это пустой
// список, а не ошибка.
func (h *Handler) GetArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, ok := h.state.Artifacts()
	if !ok {
		artifacts = []domain.Artifact{}
	}
	List(w, artifacts, len(artifacts))
}
