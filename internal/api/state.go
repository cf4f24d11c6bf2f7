package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
)

// artifactsKey — единственный ключ кэша артефактов: хранится последний
// завершённый набор.
const artifactsKey = "artifacts"

// defaultArtifactTTL — срок жизни кэшированных артефактов. Локаторы
// во внешней системе истекают, держать их дольше бессмысленно.
const defaultArtifactTTL = 30 * time.Minute

// RunState — отражение состояния прогона на стороне API.
//
// Состояние собирается из потока событий агента и оптимистичных
// переходов при отправке команд. Оно eventually consistent: истиной
// владеет агент, API лишь показывает последнее известное.
type RunState struct {
	mu        sync.RWMutex
	status    domain.RunStatus
	current   int
	total     int
	prompt    string
	lastError string
	updatedAt time.Time

	artifacts *gocache.Cache
}

// StatusSnapshot — моментальный снимок состояния прогона.
type StatusSnapshot struct {
	Status    domain.RunStatus `json:"status"`
	Current   int              `json:"current"`
	Total     int              `json:"total"`
	Prompt    string           `json:"prompt,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewRunState создаёт RunState с кэшем артефактов.
func NewRunState(artifactTTL time.Duration) *RunState {
	if artifactTTL <= 0 {
		artifactTTL = defaultArtifactTTL
	}
	return &RunState{
		status:    domain.RunStatusIdle,
		artifacts: gocache.New(artifactTTL, artifactTTL/2),
	}
}

// Snapshot возвращает текущее состояние.
func (s *RunState) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{
		Status:    s.status,
		Current:   s.current,
		Total:     s.total,
		Prompt:    s.prompt,
		LastError: s.lastError,
		UpdatedAt: s.updatedAt,
	}
}

// Artifacts возвращает последний завершённый набор артефактов.
// Второе значение false — набора нет или кэш истёк.
func (s *RunState) Artifacts() ([]domain.Artifact, bool) {
	v, ok := s.artifacts.Get(artifactsKey)
	if !ok {
		return nil, false
	}
	artifacts, ok := v.([]domain.Artifact)
	return artifacts, ok
}

// SetStatus — оптимистичный переход при отправке команды.
func (s *RunState) SetStatus(status domain.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.updatedAt = time.Now()
}

// Status возвращает последний известный статус.
func (s *RunState) Status() domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// HandleEvent — mq.Handler потока событий агента и загрузчика.
//
// Непонятные события игнорируются: поток общий, часть типов
// предназначена другим слушателям.
func (s *RunState) HandleEvent(logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg *mq.Message) error {
		switch msg.Type {
		case mq.MessageTypeProgress:
			p, err := mq.ParsePayload[events.Progress](msg)
			if err != nil {
				logger.Warn("malformed progress event", "error", err)
				return nil
			}
			s.applyProgress(p)

		case mq.MessageTypeError:
			e, err := mq.ParsePayload[events.Error](msg)
			if err != nil {
				logger.Warn("malformed error event", "error", err)
				return nil
			}
			s.applyError(e)

		case mq.MessageTypeGenerationComplete:
			g, err := mq.ParsePayload[events.GenerationComplete](msg)
			if err != nil {
				logger.Warn("malformed generation.complete event", "error", err)
				return nil
			}
			s.applyComplete(g)
		}
		return nil
	}
}

func (s *RunState) applyProgress(p events.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Событие прогресса означает, что агент реально работает
	if s.status != domain.RunStatusPaused {
		s.status = domain.RunStatusRunning
	}
	s.current = p.Current
	s.total = p.Total
	s.prompt = p.Prompt
	s.updatedAt = time.Now()
}

func (s *RunState) applyError(e events.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = e.Message
	s.updatedAt = time.Now()
}

func (s *RunState) applyComplete(g events.GenerationComplete) {
	s.mu.Lock()
	// Stop, отправленный через API, оставляет STOPPED; иначе — COMPLETED
	if s.status != domain.RunStatusStopped {
		s.status = domain.RunStatusCompleted
	}
	s.current = g.Total
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.artifacts.Set(artifactsKey, g.Artifacts, gocache.DefaultExpiration)
}
