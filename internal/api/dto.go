package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/veresk/storyforge/internal/domain"
)

// --- Requests ---

// StartRunRequest — запрос на запуск прогона.
//
// Либо явный набор (prompts + asset + settings), либо session_id
// сохранённой сессии. Явные поля имеют приоритет над сессией.
type StartRunRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Prompts   []string        `json:"prompts,omitempty"`
	Asset     AssetDTO        `json:"asset,omitempty"`
	Settings  domain.Settings `json:"settings,omitempty"`
}

// AssetDTO — референсное изображение. Data кодируется base64
// стандартным JSON-маршалингом []byte.
type AssetDTO struct {
	Data []byte `json:"data,omitempty"`
	Mime string `json:"mime,omitempty"`
}

func (a AssetDTO) ToDomain() domain.ReferenceAsset {
	return domain.ReferenceAsset{Data: a.Data, Mime: a.Mime}
}

// EnqueueDownloadsRequest — запрос на постановку скачиваний.
//
// Если artifacts не заданы, используется последний завершённый набор
// из кэша API.
type EnqueueDownloadsRequest struct {
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`
	Prefix    string            `json:"prefix"`
	DelayMs   int               `json:"delay_ms,omitempty"`
}

// SaveSessionRequest — запрос на сохранение сессии.
type SaveSessionRequest struct {
	Prompts  []string        `json:"prompts"`
	Asset    AssetDTO        `json:"asset,omitempty"`
	Settings domain.Settings `json:"settings,omitempty"`
}

// --- Responses ---

// RunAcceptedResponse — подтверждение принятой команды запуска.
type RunAcceptedResponse struct {
	Items int `json:"items"`
}

// CommandAcceptedResponse — подтверждение принятой команды управления.
type CommandAcceptedResponse struct {
	Command string `json:"command"`
}

// SessionResponse — сессия в ответе API. Ассет не включается:
// он может быть большим, выдаётся только признак наличия.
type SessionResponse struct {
	ID        uuid.UUID       `json:"id"`
	Prompts   []string        `json:"prompts"`
	HasAsset  bool            `json:"has_asset"`
	Settings  domain.Settings `json:"settings"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionFromDomain преобразует доменную сессию в DTO.
func SessionFromDomain(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Prompts:   s.Prompts,
		HasAsset:  !s.Asset.IsEmpty(),
		Settings:  s.Settings,
		UpdatedAt: s.UpdatedAt,
	}
}
