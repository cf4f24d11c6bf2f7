package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session — сохранённый снимок сессии оператора.
//
// Содержит всё необходимое для повторного запуска прогона: список промптов,
// референсный ассет и настройки. Перезаписывается целиком при каждом
// сохранении, без версионирования и миграций.
type Session struct {
	// ID — идентификатор сессии.
	ID uuid.UUID `json:"id"`

	// Prompts — список промптов в порядке обработки.
	Prompts []string `json:"prompts"`

	// Asset — референсное изображение.
	Asset ReferenceAsset `json:"asset"`

	// Settings — настройки прогона.
	Settings Settings `json:"settings"`

	// UpdatedAt — время последнего сохранения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Items разворачивает промпты в упорядоченные WorkItem.
func (s *Session) Items() []WorkItem {
	items := make([]WorkItem, len(s.Prompts))
	for i, p := range s.Prompts {
		items[i] = WorkItem{Index: i, Prompt: p}
	}
	return items
}
