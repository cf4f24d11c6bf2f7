package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
)

// CommandPublisher отправляет команды агенту и загрузчику.
// Реализуется mq.Publisher.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, msgType mq.MessageType, payload any) error
}

// SessionStore — хранилище сессий. Реализуется repo.SessionRepo.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	sessions  SessionStore
	publisher CommandPublisher
	state     *RunState
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Sessions  SessionStore
	Publisher CommandPublisher
	State     *RunState
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	state := cfg.State
	if state == nil {
		state = NewRunState(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:  cfg.Sessions,
		publisher: cfg.Publisher,
		state:     state,
		logger:    logger,
	}
}
