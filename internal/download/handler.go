package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
)

// CommandHandler транслирует команды постановки скачивания в очередь.
type CommandHandler struct {
	queue   *Queue
	emitter events.Emitter
	logger  *slog.Logger
}

// NewCommandHandler создаёт обработчик команд загрузчика.
func NewCommandHandler(q *Queue, emitter events.Emitter, logger *slog.Logger) *CommandHandler {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{queue: q, emitter: emitter, logger: logger}
}

// Handle — mq.Handler для очереди команд загрузчика.
//
// Отклонённая постановка (активная очередь, пустой список) не считается
// ошибкой доставки: команда подтверждается, оператор уведомляется событием.
func (h *CommandHandler) Handle(ctx context.Context, msg *mq.Message) error {
	if msg.Type != mq.MessageTypeDownloadsEnqueue {
		h.logger.Warn("unknown command dropped", "type", msg.Type, "message_id", msg.ID)
		return nil
	}

	payload, err := mq.ParsePayload[mq.DownloadsEnqueuePayload](msg)
	if err != nil {
		return fmt.Errorf("parse downloads.enqueue payload: %w", err)
	}

	tasks := BuildTasks(payload.Artifacts, payload.Prefix)

	delayMs := payload.DelayMs
	if delayMs <= 0 {
		delayMs = domain.DefaultDownloadDelayMs
	}
	delay := time.Duration(delayMs) * time.Millisecond

	switch err := h.queue.Start(ctx, tasks, delay); {
	case errors.Is(err, ErrQueueActive):
		h.logger.Warn("enqueue rejected, queue is active", "tasks", len(tasks))
		h.emitter.Error(ctx, "download queue is already active", false)
		return nil
	case errors.Is(err, ErrNoTasks):
		h.logger.Warn("enqueue rejected, no artifacts")
		return nil
	case err != nil:
		return fmt.Errorf("start download queue: %w", err)
	default:
		return nil
	}
}

// BuildTasks строит задачи скачивания из артефактов.
//
// Артефакты сначала упорядочиваются по позиции фиксации, имена файлов
// следуют этому порядку: {prefix}_001.png, {prefix}_002.png и так далее.
func BuildTasks(artifacts []domain.Artifact, prefix string) []domain.DownloadTask {
	sorted := make([]domain.Artifact, len(artifacts))
	copy(sorted, artifacts)
	domain.SortArtifacts(sorted)

	tasks := make([]domain.DownloadTask, len(sorted))
	for i, a := range sorted {
		tasks[i] = domain.DownloadTask{
			Artifact: a,
			Filename: domain.DownloadFilename(prefix, i),
		}
	}
	return tasks
}
