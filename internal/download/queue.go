package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/telemetry"
	"github.com/veresk/storyforge/internal/wait"
)

// defaultFetchTimeout — бюджет скачивания одного файла.
const defaultFetchTimeout = 60 * time.Second

// Queue — очередь скачивания с единственным активным дренажом.
type Queue struct {
	dir     string
	client  *http.Client
	emitter events.Emitter
	logger  *slog.Logger

	mu     sync.Mutex
	active bool

	wg sync.WaitGroup
}

// Config — конфигурация Queue.
type Config struct {
	// Dir — каталог, в который сохраняются файлы.
	Dir string

	Emitter events.Emitter
	Logger  *slog.Logger

	// Client — HTTP-клиент для скачивания (default: клиент с таймаутом 60s).
	Client *http.Client
}

// New создаёт очередь скачивания.
func New(cfg Config) *Queue {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		dir:     cfg.Dir,
		client:  client,
		emitter: emitter,
		logger:  logger,
	}
}

// Start запускает дренаж очереди в фоне.
//
// Возвращает ErrQueueActive, если предыдущий дренаж ещё не завершён:
// постановки не сливаются, повторная отклоняется целиком.
func (q *Queue) Start(ctx context.Context, tasks []domain.DownloadTask, delay time.Duration) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	q.mu.Lock()
	if q.active {
		q.mu.Unlock()
		return ErrQueueActive
	}
	q.active = true
	q.mu.Unlock()

	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		q.setActive(false)
		return fmt.Errorf("create download dir: %w", err)
	}

	q.logger.Info("download queue started", "tasks", len(tasks), "dir", q.dir)

	q.wg.Add(1)
	go q.drain(ctx, tasks, delay)
	return nil
}

// Active сообщает, идёт ли дренаж.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Wait блокирует до завершения текущего дренажа. Для тестов и shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// drain скачивает задачи по одной с паузой между ними.
func (q *Queue) drain(ctx context.Context, tasks []domain.DownloadTask, delay time.Duration) {
	defer q.wg.Done()
	defer q.setActive(false)

	total := len(tasks)
	downloaded := 0

	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		if err := q.fetch(ctx, task); err != nil {
			telemetry.Downloads.WithLabelValues(telemetry.ResultFailed).Inc()
			q.logger.Warn("download failed", "filename", task.Filename, "url", task.Artifact.URL, "error", err)
			q.emitter.Error(ctx, fmt.Sprintf("download %s failed: %v", task.Filename, err), false)
		} else {
			downloaded++
			telemetry.Downloads.WithLabelValues(telemetry.ResultOK).Inc()
			q.emitter.DownloadProgress(ctx, events.DownloadProgress{
				Current:  downloaded,
				Total:    total,
				Filename: task.Filename,
			})
		}

		// Пауза между скачиваниями, кроме последнего
		if i < total-1 {
			if err := wait.Sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	q.logger.Info("download queue drained", "downloaded", downloaded, "total", total)
	q.emitter.DownloadComplete(ctx, downloaded)
}

// fetch скачивает один артефакт и сохраняет его на диск.
func (q *Queue) fetch(ctx context.Context, task domain.DownloadTask) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.Artifact.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	path := filepath.Join(q.dir, task.Filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func (q *Queue) setActive(v bool) {
	q.mu.Lock()
	q.active = v
	q.mu.Unlock()
}
