package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
)

type fakeRunner struct {
	mu        sync.Mutex
	calls     []int
	failing   map[int]bool
	positions map[int]int
	collected []domain.Artifact
}

func (r *fakeRunner) RunItem(ctx context.Context, item domain.WorkItem, asset domain.ReferenceAsset, timeout time.Duration, first bool) (domain.Artifact, error) {
	r.mu.Lock()
	r.calls = append(r.calls, item.Index)
	r.mu.Unlock()

	if r.failing[item.Index] {
		return domain.Artifact{}, errors.New("generation failed")
	}

	position := item.Index
	if p, ok := r.positions[item.Index]; ok {
		position = p
	}
	return domain.Artifact{
		URL:      fmt.Sprintf("https://host/artifact/%d", item.Index),
		Prompt:   item.Prompt,
		Position: position,
	}, nil
}

func (r *fakeRunner) CollectArtifacts(ctx context.Context) []domain.Artifact {
	return r.collected
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingEmitter struct {
	mu        sync.Mutex
	progress  []events.Progress
	errs      []string
	completes [][]domain.Artifact
}

func (e *recordingEmitter) Progress(_ context.Context, p events.Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, p)
}

func (e *recordingEmitter) Log(context.Context, domain.Severity, string) {}

func (e *recordingEmitter) Error(_ context.Context, message string, _ bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, message)
}

func (e *recordingEmitter) DownloadProgress(context.Context, events.DownloadProgress) {}
func (e *recordingEmitter) DownloadComplete(context.Context, int)                     {}

func (e *recordingEmitter) GenerationComplete(_ context.Context, artifacts []domain.Artifact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completes = append(e.completes, artifacts)
}

func (e *recordingEmitter) progressValues() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	values := make([]int, len(e.progress))
	for i, p := range e.progress {
		values[i] = p.Current
	}
	return values
}

// waitForProgress блокирует, пока не появится событие Progress с нужным
// current, либо проваливает тест по таймауту.
func waitForProgress(t *testing.T, e *recordingEmitter, current int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, v := range e.progressValues() {
			if v == current {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("progress %d not observed in time", current)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastSettings() domain.Settings {
	return domain.Settings{TimeoutMs: 1000, ItemDelayMs: 1, MaxAttempts: 1, DownloadDelayMs: 1}
}

func testItems(n int) []domain.WorkItem {
	items := make([]domain.WorkItem, n)
	for i := range items {
		items[i] = domain.WorkItem{Index: i, Prompt: fmt.Sprintf("prompt %d", i)}
	}
	return items
}

func TestStart_RejectsEmptyItems(t *testing.T) {
	c := New(Config{Runner: &fakeRunner{}})

	_, err := c.Start(context.Background(), nil, domain.ReferenceAsset{}, fastSettings())
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if got := c.Status(); got != domain.RunStatusIdle {
		t.Errorf("expected IDLE after rejected start, got %s", got)
	}
}

func TestRun_EmitsStrictlyIncreasingProgress(t *testing.T) {
	runner := &fakeRunner{}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter})

	total, err := c.Start(context.Background(), testItems(3), domain.ReferenceAsset{}, fastSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 items accepted, got %d", total)
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got)
	}

	// Ровно N+1 событий со строго возрастающими значениями:
	// повтор "после элемента i / перед элементом i+1" подавлен
	values := emitter.progressValues()
	want := []int{0, 1, 2, 3}
	if len(values) != len(want) {
		t.Fatalf("expected %d progress events, got %d: %v", len(want), len(values), values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("progress[%d]: expected %d, got %d", i, want[i], values[i])
		}
	}

	if got := len(c.Results()); got != 3 {
		t.Errorf("expected 3 results, got %d", got)
	}
}

func TestRun_PauseBlocksProgression(t *testing.T) {
	runner := &fakeRunner{}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter, PauseInterval: 5 * time.Millisecond})

	settings := fastSettings()
	settings.ItemDelayMs = 200

	if _, err := c.Start(context.Background(), testItems(2), domain.ReferenceAsset{}, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первый элемент обработан — горутина в паузе между элементами
	waitForProgress(t, emitter, 1)
	if !c.Pause() {
		t.Fatal("pause rejected while running")
	}

	time.Sleep(400 * time.Millisecond)
	if got := runner.callCount(); got != 1 {
		t.Fatalf("expected no progression while paused, got %d calls", got)
	}
	if got := c.Status(); got != domain.RunStatusPaused {
		t.Fatalf("expected PAUSED, got %s", got)
	}

	if !c.Resume() {
		t.Fatal("resume rejected while paused")
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED after resume, got %s", got)
	}
	if got := runner.callCount(); got != 2 {
		t.Errorf("expected 2 items processed, got %d", got)
	}
}

func TestRun_StopDuringPause(t *testing.T) {
	runner := &fakeRunner{}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter, PauseInterval: 5 * time.Millisecond})

	settings := fastSettings()
	settings.ItemDelayMs = 100

	if _, err := c.Start(context.Background(), testItems(3), domain.ReferenceAsset{}, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitForProgress(t, emitter, 1)
	if !c.Pause() {
		t.Fatal("pause rejected while running")
	}
	time.Sleep(200 * time.Millisecond)

	if !c.Stop() {
		t.Fatal("stop rejected while paused")
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusStopped {
		t.Fatalf("expected STOPPED, got %s", got)
	}
	if got := runner.callCount(); got != 1 {
		t.Errorf("expected 1 item before stop, got %d", got)
	}
	if got := len(c.Results()); got != 1 {
		t.Errorf("expected 1 result preserved, got %d", got)
	}
}

func TestRun_StopBetweenItems(t *testing.T) {
	runner := &fakeRunner{}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter})

	settings := fastSettings()
	settings.ItemDelayMs = 200

	if _, err := c.Start(context.Background(), testItems(5), domain.ReferenceAsset{}, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitForProgress(t, emitter, 1)
	if !c.Stop() {
		t.Fatal("stop rejected while running")
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusStopped {
		t.Fatalf("expected STOPPED, got %s", got)
	}
	if got := runner.callCount(); got != 1 {
		t.Errorf("expected 1 item before stop, got %d", got)
	}
}

func TestStart_RestartsActiveRun(t *testing.T) {
	runner := &fakeRunner{}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter})

	settings := fastSettings()
	settings.ItemDelayMs = 200

	if _, err := c.Start(context.Background(), testItems(4), domain.ReferenceAsset{}, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForProgress(t, emitter, 1)

	// Повторный старт поверх активного прогона: старый останавливается,
	// состояние сбрасывается
	if _, err := c.Start(context.Background(), testItems(2), domain.ReferenceAsset{}, fastSettings()); err != nil {
		t.Fatalf("unexpected error on restart: %v", err)
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got)
	}
	current, total := c.Progress()
	if current != 2 || total != 2 {
		t.Errorf("expected progress 2/2 after restart, got %d/%d", current, total)
	}
	if got := len(c.Results()); got != 2 {
		t.Errorf("expected 2 results from the new run, got %d", got)
	}
	// 1 элемент старого прогона + 2 нового
	if got := runner.callCount(); got != 3 {
		t.Errorf("expected 3 runner calls total, got %d", got)
	}
}

func TestRun_FailedItemEmitsErrorAndContinues(t *testing.T) {
	runner := &fakeRunner{failing: map[int]bool{1: true}}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter, RetryBackoff: time.Millisecond})

	settings := fastSettings()
	settings.MaxAttempts = 2

	if _, err := c.Start(context.Background(), testItems(3), domain.ReferenceAsset{}, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED despite failure, got %s", got)
	}

	// Провалившийся элемент пропущен, прогон дошёл до конца
	if got := len(c.Results()); got != 2 {
		t.Errorf("expected 2 results, got %d", got)
	}

	emitter.mu.Lock()
	errCount := len(emitter.errs)
	emitter.mu.Unlock()
	if errCount != 1 {
		t.Errorf("expected 1 error event, got %d", errCount)
	}

	// Индекс продвигается независимо от исхода элемента
	values := emitter.progressValues()
	want := []int{0, 1, 2, 3}
	if len(values) != len(want) {
		t.Errorf("expected progress %v, got %v", want, values)
	}
}

func TestFinish_SortsArtifactsByPosition(t *testing.T) {
	// Позиции фиксации не совпадают с порядком появления
	runner := &fakeRunner{positions: map[int]int{0: 2, 1: 0, 2: 1}}
	emitter := &recordingEmitter{}
	c := New(Config{Runner: runner, Emitter: emitter})

	if _, err := c.Start(context.Background(), testItems(3), domain.ReferenceAsset{}, fastSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	results := c.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, a := range results {
		if a.Position != i {
			t.Errorf("results[%d]: expected position %d, got %d", i, i, a.Position)
		}
	}

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if len(emitter.completes) != 1 {
		t.Fatalf("expected 1 generation.complete event, got %d", len(emitter.completes))
	}
	if len(emitter.completes[0]) != 3 {
		t.Errorf("expected 3 artifacts in completion event, got %d", len(emitter.completes[0]))
	}
}

func TestFinish_RefreshesArtifactURLs(t *testing.T) {
	runner := &fakeRunner{
		collected: []domain.Artifact{
			{URL: "https://host/fresh/0"},
			{URL: "https://host/fresh/1"},
		},
	}
	c := New(Config{Runner: runner})

	if _, err := c.Start(context.Background(), testItems(2), domain.ReferenceAsset{}, fastSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	results := c.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, a := range results {
		want := fmt.Sprintf("https://host/fresh/%d", i)
		if a.URL != want {
			t.Errorf("results[%d].URL: expected %s, got %s", i, want, a.URL)
		}
	}
}

func TestFinish_SkipsRefreshOnCountMismatch(t *testing.T) {
	runner := &fakeRunner{
		collected: []domain.Artifact{{URL: "https://host/fresh/0"}},
	}
	c := New(Config{Runner: runner})

	if _, err := c.Start(context.Background(), testItems(2), domain.ReferenceAsset{}, fastSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	for i, a := range c.Results() {
		want := fmt.Sprintf("https://host/artifact/%d", i)
		if a.URL != want {
			t.Errorf("results[%d].URL: expected original %s, got %s", i, want, a.URL)
		}
	}
}

func TestControlsRejectedInWrongState(t *testing.T) {
	c := New(Config{Runner: &fakeRunner{}})

	if c.Pause() {
		t.Error("pause must be rejected while idle")
	}
	if c.Resume() {
		t.Error("resume must be rejected while idle")
	}
	if c.Stop() {
		t.Error("stop must be rejected while idle")
	}
}

func TestCommandHandler_StartsRunFromMessage(t *testing.T) {
	runner := &fakeRunner{}
	c := New(Config{Runner: runner})
	h := NewCommandHandler(c, discardLogger())

	msg := &mq.Message{
		ID:   "m-1",
		Type: mq.MessageTypeRunStart,
		Payload: mq.RunStartPayload{
			Prompts:  []string{"castle at dawn", "castle at dusk"},
			Settings: fastSettings(),
		},
	}
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	if got := c.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got)
	}
	if got := runner.callCount(); got != 2 {
		t.Errorf("expected 2 items processed, got %d", got)
	}
}

func TestCommandHandler_UnknownCommandDropped(t *testing.T) {
	c := New(Config{Runner: &fakeRunner{}})
	h := NewCommandHandler(c, discardLogger())

	msg := &mq.Message{ID: "m-2", Type: mq.MessageType("run.dance")}
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unknown command must be dropped without error, got %v", err)
	}
}
