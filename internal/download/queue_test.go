package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
)

type downloadRecorder struct {
	mu        sync.Mutex
	progress  []events.DownloadProgress
	errs      []string
	completes []int
}

func (e *downloadRecorder) Progress(context.Context, events.Progress)           {}
func (e *downloadRecorder) Log(context.Context, domain.Severity, string)        {}
func (e *downloadRecorder) GenerationComplete(context.Context, []domain.Artifact) {}

func (e *downloadRecorder) Error(_ context.Context, message string, _ bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, message)
}

func (e *downloadRecorder) DownloadProgress(_ context.Context, p events.DownloadProgress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, p)
}

func (e *downloadRecorder) DownloadComplete(_ context.Context, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completes = append(e.completes, total)
}

func artifactsFor(srv *httptest.Server, n int) []domain.Artifact {
	artifacts := make([]domain.Artifact, n)
	for i := range artifacts {
		artifacts[i] = domain.Artifact{
			URL:      fmt.Sprintf("%s/image/%d", srv.URL, i),
			Prompt:   fmt.Sprintf("prompt %d", i),
			Position: i,
		}
	}
	return artifacts
}

func TestQueue_DrainsAllTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "png bytes for "+r.URL.Path)
	}))
	defer srv.Close()

	dir := t.TempDir()
	recorder := &downloadRecorder{}
	q := New(Config{Dir: dir, Emitter: recorder})

	tasks := BuildTasks(artifactsFor(srv, 3), "story")
	if err := q.Start(context.Background(), tasks, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Wait()

	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("story_%03d.png", i)
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected file %s: %v", name, err)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.progress) != 3 {
		t.Errorf("expected 3 progress events, got %d", len(recorder.progress))
	}
	for i, p := range recorder.progress {
		if p.Current != i+1 || p.Total != 3 {
			t.Errorf("progress[%d]: expected %d/3, got %d/%d", i, i+1, p.Current, p.Total)
		}
	}
	if len(recorder.completes) != 1 || recorder.completes[0] != 3 {
		t.Errorf("expected single complete event with 3, got %v", recorder.completes)
	}
}

func TestQueue_RejectsWhileActive(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "png")
	}))
	defer srv.Close()

	q := New(Config{Dir: t.TempDir()})
	tasks := BuildTasks(artifactsFor(srv, 1), "story")

	if err := q.Start(context.Background(), tasks, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Start(context.Background(), tasks, time.Millisecond); !errors.Is(err, ErrQueueActive) {
		t.Fatalf("expected ErrQueueActive, got %v", err)
	}

	close(release)
	q.Wait()

	// После дренажа очередь принимает новую постановку
	if err := q.Start(context.Background(), tasks, time.Millisecond); err != nil {
		t.Fatalf("expected fresh start after drain, got %v", err)
	}
	q.Wait()
}

func TestQueue_FailureDoesNotStopDrain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/image/1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "png")
	}))
	defer srv.Close()

	dir := t.TempDir()
	recorder := &downloadRecorder{}
	q := New(Config{Dir: dir, Emitter: recorder})

	tasks := BuildTasks(artifactsFor(srv, 3), "story")
	if err := q.Start(context.Background(), tasks, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Wait()

	if _, err := os.Stat(filepath.Join(dir, "story_002.png")); !os.IsNotExist(err) {
		t.Error("failed download must not leave a file")
	}
	for _, name := range []string{"story_001.png", "story_003.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected file %s: %v", name, err)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.progress) != 2 {
		t.Errorf("expected 2 progress events, got %d", len(recorder.progress))
	}
	if len(recorder.errs) != 1 {
		t.Errorf("expected 1 error event, got %d", len(recorder.errs))
	}
	if len(recorder.completes) != 1 || recorder.completes[0] != 2 {
		t.Errorf("expected complete event with 2 downloaded, got %v", recorder.completes)
	}
}

func TestQueue_RejectsEmptyTasks(t *testing.T) {
	q := New(Config{Dir: t.TempDir()})
	if err := q.Start(context.Background(), nil, time.Millisecond); !errors.Is(err, ErrNoTasks) {
		t.Fatalf("expected ErrNoTasks, got %v", err)
	}
}

func TestBuildTasks_OrdersByPositionAndNumbersFromOne(t *testing.T) {
	artifacts := []domain.Artifact{
		{URL: "u2", Position: 2},
		{URL: "u0", Position: 0},
		{URL: "u1", Position: 1},
	}

	tasks := BuildTasks(artifacts, "story")

	wantURLs := []string{"u0", "u1", "u2"}
	wantNames := []string{"story_001.png", "story_002.png", "story_003.png"}
	for i, task := range tasks {
		if task.Artifact.URL != wantURLs[i] {
			t.Errorf("tasks[%d].URL: expected %s, got %s", i, wantURLs[i], task.Artifact.URL)
		}
		if task.Filename != wantNames[i] {
			t.Errorf("tasks[%d].Filename: expected %s, got %s", i, wantNames[i], task.Filename)
		}
	}
}

func TestCommandHandler_EnqueueWhileActiveEmitsError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "png")
	}))
	defer srv.Close()

	recorder := &downloadRecorder{}
	q := New(Config{Dir: t.TempDir(), Emitter: recorder})
	h := NewCommandHandler(q, recorder, nil)

	msg := &mq.Message{
		ID:   "m-1",
		Type: mq.MessageTypeDownloadsEnqueue,
		Payload: mq.DownloadsEnqueuePayload{
			Artifacts: artifactsFor(srv, 1),
			Prefix:    "story",
			DelayMs:   1,
		},
	}

	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("rejected enqueue must ack, got %v", err)
	}

	recorder.mu.Lock()
	errCount := len(recorder.errs)
	recorder.mu.Unlock()
	if errCount != 1 {
		t.Errorf("expected 1 error event for rejected enqueue, got %d", errCount)
	}

	close(release)
	q.Wait()
}
