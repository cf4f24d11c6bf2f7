package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
	"github.com/veresk/storyforge/internal/telemetry"
)

// ErrNoEntries — планировщик без единого расписания.
var ErrNoEntries = errors.New("no schedule entries")

// cronParser — стандартный пятипольный формат.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SessionSource — источник сохранённых сессий. Реализуется repo.SessionRepo.
type SessionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
}

// CommandPublisher отправляет команды агенту. Реализуется mq.Publisher.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, msgType mq.MessageType, payload any) error
}

// Entry — одно расписание.
type Entry struct {
	SessionID uuid.UUID
	Spec      string
}

// Scheduler — cron-планировщик повторных запусков.
type Scheduler struct {
	sessions  SessionSource
	publisher CommandPublisher
	logger    *slog.Logger
	cron      *cron.Cron
}

// Config — конфигурация Scheduler.
type Config struct {
	Sessions  SessionSource
	Publisher CommandPublisher
	Logger    *slog.Logger
	Entries   []Entry
}

// New создаёт Scheduler и валидирует все расписания.
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Entries) == 0 {
		return nil, ErrNoEntries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		sessions:  cfg.Sessions,
		publisher: cfg.Publisher,
		logger:    logger,
		cron:      cron.New(cron.WithParser(cronParser)),
	}

	for _, entry := range cfg.Entries {
		entry := entry
		_, err := s.cron.AddFunc(entry.Spec, func() {
			s.fire(entry)
		})
		if err != nil {
			return nil, fmt.Errorf("invalid cron spec %q: %w", entry.Spec, err)
		}
	}
	return s, nil
}

// ParseEntry валидирует одну запись конфигурации.
func ParseEntry(sessionID, spec string) (Entry, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid session_id %q: %w", sessionID, err)
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return Entry{}, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return Entry{SessionID: id, Spec: spec}, nil
}

// Start запускает планировщик.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop останавливает планировщик и дожидается текущих срабатываний.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// fire — одно срабатывание расписания.
func (s *Scheduler) fire(entry Entry) {
	ctx := context.Background()
	logger := telemetry.WithSessionID(s.logger, entry.SessionID.String())

	session, err := s.sessions.GetByID(ctx, entry.SessionID)
	if err != nil {
		logger.Error("scheduled session not available", "error", err)
		return
	}

	payload := mq.RunStartPayload{
		SessionID: session.ID.String(),
		Prompts:   session.Prompts,
		Asset:     session.Asset,
		Settings:  session.Settings,
	}
	if err := s.publisher.PublishCommand(ctx, mq.MessageTypeRunStart, payload); err != nil {
		logger.Error("failed to publish scheduled run.start", "error", err)
		return
	}

	logger.Info("scheduled run started", "items", len(session.Prompts))
}
