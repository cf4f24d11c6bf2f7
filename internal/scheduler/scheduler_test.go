package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/mq"
)

type fakeSessions struct {
	sessions map[uuid.UUID]*domain.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	commands []mq.MessageType
	payloads []any
}

func (f *fakePublisher) PublishCommand(_ context.Context, msgType mq.MessageType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestNew_RejectsEmptyEntries(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestNew_RejectsInvalidCronSpec(t *testing.T) {
	_, err := New(Config{Entries: []Entry{{SessionID: uuid.New(), Spec: "not a cron"}}})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestParseEntry(t *testing.T) {
	id := uuid.New()
	entry, err := ParseEntry(id.String(), "0 9 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.SessionID != id {
		t.Errorf("unexpected session id: %s", entry.SessionID)
	}

	if _, err := ParseEntry("nope", "0 9 * * *"); err == nil {
		t.Error("expected error for invalid session id")
	}
	if _, err := ParseEntry(id.String(), "nope"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestFire_PublishesRunStartFromSession(t *testing.T) {
	id := uuid.New()
	sessions := &fakeSessions{sessions: map[uuid.UUID]*domain.Session{
		id: {
			ID:      id,
			Prompts: []string{"castle at dawn", "castle at dusk"},
			Settings: domain.Settings{
				TimeoutMs: 1000, ItemDelayMs: 1, MaxAttempts: 1, DownloadDelayMs: 1,
			},
		},
	}}
	publisher := &fakePublisher{}

	s, err := New(Config{
		Sessions:  sessions,
		Publisher: publisher,
		Entries:   []Entry{{SessionID: id, Spec: "0 9 * * *"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.fire(Entry{SessionID: id, Spec: "0 9 * * *"})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.commands) != 1 || publisher.commands[0] != mq.MessageTypeRunStart {
		t.Fatalf("expected single run.start, got %v", publisher.commands)
	}
	payload, ok := publisher.payloads[0].(mq.RunStartPayload)
	if !ok {
		t.Fatalf("unexpected payload type: %T", publisher.payloads[0])
	}
	if len(payload.Prompts) != 2 || payload.SessionID != id.String() {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestFire_MissingSessionPublishesNothing(t *testing.T) {
	publisher := &fakePublisher{}
	s, err := New(Config{
		Sessions:  &fakeSessions{sessions: map[uuid.UUID]*domain.Session{}},
		Publisher: publisher,
		Entries:   []Entry{{SessionID: uuid.New(), Spec: "0 9 * * *"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.fire(Entry{SessionID: uuid.New(), Spec: "0 9 * * *"})

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.commands) != 0 {
		t.Errorf("expected no commands, got %v", publisher.commands)
	}
}
