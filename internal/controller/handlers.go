package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
)

// CommandHandler транслирует команды из очереди в вызовы Controller.
type CommandHandler struct {
	controller *Controller
	logger     *slog.Logger
}

// NewCommandHandler создаёт обработчик команд агента.
func NewCommandHandler(c *Controller, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{controller: c, logger: logger}
}

// Handle — mq.Handler для очереди команд агента.
//
// Неизвестный тип команды не считается ошибкой: сообщение
// подтверждается и отбрасывается.
func (h *CommandHandler) Handle(ctx context.Context, msg *mq.Message) error {
	switch msg.Type {
	case mq.MessageTypeRunStart:
		return h.handleStart(ctx, msg)

	case mq.MessageTypeRunPause:
		if !h.controller.Pause() {
			h.logger.Warn("pause ignored", "status", h.controller.Status())
		}
		return nil

	case mq.MessageTypeRunResume:
		if !h.controller.Resume() {
			h.logger.Warn("resume ignored", "status", h.controller.Status())
		}
		return nil

	case mq.MessageTypeRunStop:
		if !h.controller.Stop() {
			h.logger.Warn("stop ignored", "status", h.controller.Status())
		}
		return nil

	default:
		h.logger.Warn("unknown command dropped", "type", msg.Type, "message_id", msg.ID)
		return nil
	}
}

func (h *CommandHandler) handleStart(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.RunStartPayload](msg)
	if err != nil {
		return fmt.Errorf("parse run.start payload: %w", err)
	}

	items := make([]domain.WorkItem, len(payload.Prompts))
	for i, prompt := range payload.Prompts {
		items[i] = domain.WorkItem{Index: i, Prompt: prompt}
	}

	total, err := h.controller.Start(ctx, items, payload.Asset, payload.Settings)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	h.logger.Info("run start accepted", "items", total, "session_id", payload.SessionID)
	return nil
}
