package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/veresk/storyforge/internal/domain"
)

// SaveSession сохраняет сессию, перезаписывая существующую.
// PUT /api/v1/sessions/{id}
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	var req SaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Prompts) == 0 {
		BadRequest(w, "prompts are required")
		return
	}

	session := &domain.Session{
		ID:       id,
		Prompts:  req.Prompts,
		Asset:    req.Asset.ToDomain(),
		Settings: req.Settings,
	}
	if err := h.sessions.Save(r.Context(), session); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, SessionFromDomain(*session))
}

// GetSession возвращает сессию по ID.
// GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	session, err := h.sessions.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "session not found") {
		return
	}

	Success(w, SessionFromDomain(*session))
}

// ListSessions возвращает все сессии.
// GET /api/v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = SessionFromDomain(s)
	}
	List(w, result, len(result))
}

// DeleteSession удаляет сессию.
// DELETE /api/v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	err = h.sessions.Delete(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "session not found") {
		return
	}

	NoContent(w)
}
