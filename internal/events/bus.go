package events

import (
	"context"
	"log/slog"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
	"github.com/veresk/storyforge/internal/telemetry"
)

// Bus — Emitter поверх fanout-обменника RabbitMQ.
//
// Ошибки публикации проглатываются: событие, которое некому было
// доставить, не должно ронять прогон. Фиксируются только в debug-логе.
type Bus struct {
	publisher *mq.Publisher
	logger    *slog.Logger
}

// NewBus создаёт Bus.
func NewBus(publisher *mq.Publisher, logger *slog.Logger) *Bus {
	return &Bus{publisher: publisher, logger: logger}
}

// emit публикует событие, проглатывая ошибки доставки.
func (b *Bus) emit(ctx context.Context, msgType mq.MessageType, payload any) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.PublishEvent(ctx, msgType, payload); err != nil {
		b.logger.Debug("event not delivered", "type", msgType, "error", err)
		return
	}
	telemetry.EventsPublished.WithLabelValues(string(msgType)).Inc()
}

// Progress публикует событие продвижения прогона.
func (b *Bus) Progress(ctx context.Context, e Progress) {
	b.emit(ctx, mq.MessageTypeProgress, e)
}

// Log публикует лог-событие.
func (b *Bus) Log(ctx context.Context, severity domain.Severity, message string) {
	b.emit(ctx, mq.MessageTypeLog, Log{Message: message, Severity: severity})
}

// Error публикует событие ошибки.
func (b *Bus) Error(ctx context.Context, message string, fatal bool) {
	b.emit(ctx, mq.MessageTypeError, Error{Message: message, Fatal: fatal})
}

// DownloadProgress публикует событие продвижения очереди скачивания.
func (b *Bus) DownloadProgress(ctx context.Context, e DownloadProgress) {
	b.emit(ctx, mq.MessageTypeDownloadProgress, e)
}

// DownloadComplete публикует событие завершения очереди скачивания.
func (b *Bus) DownloadComplete(ctx context.Context, total int) {
	b.emit(ctx, mq.MessageTypeDownloadComplete, DownloadComplete{Total: total})
}

// GenerationComplete публикует финальный список артефактов.
func (b *Bus) GenerationComplete(ctx context.Context, artifacts []domain.Artifact) {
	b.emit(ctx, mq.MessageTypeGenerationComplete, GenerationComplete{
		Total:     len(artifacts),
		Artifacts: artifacts,
	})
}
