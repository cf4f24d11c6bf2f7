// Package events определяет события, видимые оператору, и интерфейс
// их отправки.
//
// События транзиентны: не персистятся и доставляются best-effort всем
// подключённым на момент отправки контекстам. Гарантируется только
// порядок отправки внутри одного контекста.
package events

import (
	"context"

	"github.com/veresk/storyforge/internal/domain"
)

// Progress — продвижение прогона: обработано current из total.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Prompt  string `json:"prompt"`
}

// Log — человекочитаемое лог-событие для оператора.
type Log struct {
	Message  string          `json:"message"`
	Severity domain.Severity `json:"severity"`
}

// Error — ошибка, видимая оператору. Fatal=false — прогон продолжается.
type Error struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// DownloadProgress — успешно скачан очередной файл.
type DownloadProgress struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Filename string `json:"filename"`
}

// DownloadComplete — очередь скачивания опустела.
type DownloadComplete struct {
	Total int `json:"total"`
}

// GenerationComplete — прогон завершён, артефакты в порядке промптов.
type GenerationComplete struct {
	Total     int               `json:"total"`
	Artifacts []domain.Artifact `json:"artifacts"`
}

// Emitter — отправитель событий.
//
// Отправка не возвращает ошибок: отправитель не знает, слушает ли
// кто-нибудь, и отсутствие слушателя не является сбоем.
type Emitter interface {
	Progress(ctx context.Context, e Progress)
	Log(ctx context.Context, severity domain.Severity, message string)
	Error(ctx context.Context, message string, fatal bool)
	DownloadProgress(ctx context.Context, e DownloadProgress)
	DownloadComplete(ctx context.Context, total int)
	GenerationComplete(ctx context.Context, artifacts []domain.Artifact)
}

// Nop — Emitter, отбрасывающий все события.
type Nop struct{}

func (Nop) Progress(context.Context, Progress)                    {}
func (Nop) Log(context.Context, domain.Severity, string)          {}
func (Nop) Error(context.Context, string, bool)                   {}
func (Nop) DownloadProgress(context.Context, DownloadProgress)    {}
func (Nop) DownloadComplete(context.Context, int)                 {}
func (Nop) GenerationComplete(context.Context, []domain.Artifact) {}
