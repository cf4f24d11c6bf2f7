package api

import (
	"encoding/json"
	"net/http"

	"github.com/veresk/storyforge/internal/mq"
)

// EnqueueDownloads ставит артефакты в очередь скачивания.
// POST /api/v1/downloads
func (h *Handler) EnqueueDownloads(w http.ResponseWriter, r *http.Request) {
	var req EnqueueDownloadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Prefix == "" {
		BadRequest(w, "prefix is required")
		return
	}

	artifacts := req.Artifacts
	if len(artifacts) == 0 {
		cached, ok := h.state.Artifacts()
		if !ok {
			InvalidState(w, "no artifacts to download, run a generation first")
			return
		}
		artifacts = cached
	}

	payload := mq.DownloadsEnqueuePayload{
		Artifacts: artifacts,
		Prefix:    req.Prefix,
		DelayMs:   req.DelayMs,
	}
	if err := h.publisher.PublishCommand(r.Context(), mq.MessageTypeDownloadsEnqueue, payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, CommandAcceptedResponse{Command: string(mq.MessageTypeDownloadsEnqueue)})
}
