package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
)

func testHandlerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventMessage(msgType mq.MessageType, payload any) *mq.Message {
	return &mq.Message{ID: "m-1", Type: msgType, Payload: payload, Timestamp: time.Now()}
}

func TestRunState_ProgressMovesToRunning(t *testing.T) {
	state := NewRunState(time.Minute)
	handle := state.HandleEvent(testHandlerLogger())

	msg := eventMessage(mq.MessageTypeProgress, events.Progress{Current: 2, Total: 5, Prompt: "castle"})
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := state.Snapshot()
	if snap.Status != domain.RunStatusRunning {
		t.Errorf("expected RUNNING, got %s", snap.Status)
	}
	if snap.Current != 2 || snap.Total != 5 {
		t.Errorf("expected progress 2/5, got %d/%d", snap.Current, snap.Total)
	}
}

func TestRunState_ProgressKeepsOptimisticPause(t *testing.T) {
	state := NewRunState(time.Minute)
	state.SetStatus(domain.RunStatusPaused)
	handle := state.HandleEvent(testHandlerLogger())

	// Прогресс в полёте не сбивает только что отправленную паузу
	msg := eventMessage(mq.MessageTypeProgress, events.Progress{Current: 1, Total: 3})
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := state.Status(); got != domain.RunStatusPaused {
		t.Errorf("expected PAUSED preserved, got %s", got)
	}
}

func TestRunState_CompleteCachesArtifacts(t *testing.T) {
	state := NewRunState(time.Minute)
	handle := state.HandleEvent(testHandlerLogger())

	artifacts := []domain.Artifact{
		{URL: "u0", Position: 0},
		{URL: "u1", Position: 1},
	}
	msg := eventMessage(mq.MessageTypeGenerationComplete, events.GenerationComplete{Total: 2, Artifacts: artifacts})
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := state.Status(); got != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got)
	}

	cached, ok := state.Artifacts()
	if !ok {
		t.Fatal("expected cached artifacts")
	}
	if len(cached) != 2 || cached[0].URL != "u0" {
		t.Errorf("unexpected cached artifacts: %v", cached)
	}
}

func TestRunState_CompleteAfterStopStaysStopped(t *testing.T) {
	state := NewRunState(time.Minute)
	state.SetStatus(domain.RunStatusStopped)
	handle := state.HandleEvent(testHandlerLogger())

	msg := eventMessage(mq.MessageTypeGenerationComplete, events.GenerationComplete{Total: 1})
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := state.Status(); got != domain.RunStatusStopped {
		t.Errorf("expected STOPPED preserved, got %s", got)
	}
}

func TestRunState_ArtifactCacheExpires(t *testing.T) {
	state := NewRunState(10 * time.Millisecond)
	handle := state.HandleEvent(testHandlerLogger())

	msg := eventMessage(mq.MessageTypeGenerationComplete, events.GenerationComplete{
		Total:     1,
		Artifacts: []domain.Artifact{{URL: "u0"}},
	})
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := state.Artifacts(); ok {
		t.Error("expected artifacts to expire")
	}
}
