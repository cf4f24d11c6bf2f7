package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/retry"
	"github.com/veresk/storyforge/internal/telemetry"
	"github.com/veresk/storyforge/internal/wait"
)

// Ошибки контроллера.
var (
	// ErrNoItems — запуск без единого промпта.
	ErrNoItems = errors.New("no work items")
)

// defaultPauseInterval — интервал опроса флагов во время паузы.
// Ограничивает сверху задержку реакции на stop.
const defaultPauseInterval = 200 * time.Millisecond

// ItemRunner выполняет последовательность фаз одного элемента.
// Реализуется steps.Executor.
type ItemRunner interface {
	RunItem(ctx context.Context, item domain.WorkItem, asset domain.ReferenceAsset, timeout time.Duration, first bool) (domain.Artifact, error)
	CollectArtifacts(ctx context.Context) []domain.Artifact
}

// Controller — владелец состояния прогона.
type Controller struct {
	runner  ItemRunner
	emitter events.Emitter
	logger  *slog.Logger

	pauseInterval time.Duration
	retryBackoff  time.Duration

	// startMu сериализует Start (перезапуск поверх активного прогона)
	startMu sync.Mutex

	mu           sync.Mutex
	status       domain.RunStatus
	currentIndex int
	items        []domain.WorkItem
	asset        domain.ReferenceAsset
	settings     domain.Settings
	results      []domain.Artifact
	stopFlag     bool
	lastProgress int

	wg sync.WaitGroup
}

// Config — конфигурация Controller.
type Config struct {
	Runner  ItemRunner
	Emitter events.Emitter
	Logger  *slog.Logger

	// PauseInterval — интервал опроса флагов во время паузы (default: 200ms).
	PauseInterval time.Duration

	// RetryBackoff — пауза между попытками одного элемента (default: 2s).
	RetryBackoff time.Duration
}

// New создаёт Controller в состоянии IDLE.
func New(cfg Config) *Controller {
	pauseInterval := cfg.PauseInterval
	if pauseInterval <= 0 {
		pauseInterval = defaultPauseInterval
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		runner:        cfg.Runner,
		emitter:       emitter,
		logger:        logger,
		pauseInterval: pauseInterval,
		retryBackoff:  cfg.RetryBackoff,
		status:        domain.RunStatusIdle,
		lastProgress:  -1,
	}
}

// Start запускает прогон по списку элементов.
//
// Если прогон уже активен, он останавливается на ближайшей контрольной
// точке, после чего состояние сбрасывается и стартует новый прогон.
// Возвращает количество элементов.
func (c *Controller) Start(ctx context.Context, items []domain.WorkItem, asset domain.ReferenceAsset, settings domain.Settings) (int, error) {
	if len(items) == 0 {
		return 0, ErrNoItems
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	// Останавливаем предыдущий прогон и дожидаемся его завершения
	c.mu.Lock()
	if c.status.IsActive() {
		c.logger.Info("restarting active run")
		c.stopFlag = true
	}
	c.mu.Unlock()
	c.wg.Wait()

	settings.Normalize()

	c.mu.Lock()
	c.status = domain.RunStatusRunning
	c.currentIndex = 0
	c.items = items
	c.asset = asset
	c.settings = settings
	c.results = nil
	c.stopFlag = false
	c.lastProgress = -1
	c.mu.Unlock()

	telemetry.RunsStarted.Inc()
	telemetry.ActiveRun.Set(1)

	c.logger.Info("run started", "items", len(items), "max_attempts", settings.MaxAttempts)

	c.wg.Add(1)
	go c.run(ctx)

	return len(items), nil
}

// Pause приостанавливает прогон. Возвращает false, если прогон не RUNNING.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.RunStatusRunning {
		return false
	}
	c.status = domain.RunStatusPaused
	c.logger.Info("run paused")
	return true
}

// Resume возобновляет приостановленный прогон.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.RunStatusPaused {
		return false
	}
	c.status = domain.RunStatusRunning
	c.logger.Info("run resumed")
	return true
}

// Stop запрашивает остановку прогона.
//
// Остановка кооперативная: начатый шаг довыполняется, прогон завершится
// на ближайшей контрольной точке.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.status.IsActive() {
		return false
	}
	c.stopFlag = true
	c.logger.Info("run stop requested")
	return true
}

// Status возвращает текущий статус прогона.
func (c *Controller) Status() domain.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Progress возвращает индекс следующего необработанного элемента и общее
// количество элементов.
func (c *Controller) Progress() (current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentIndex, len(c.items)
}

// Results возвращает копию накопленных артефактов.
func (c *Controller) Results() []domain.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Artifact, len(c.results))
	copy(out, c.results)
	return out
}

// Wait блокирует до завершения активного прогона. Для тестов и shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// run — главный цикл прогона.
func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	c.mu.Lock()
	items := c.items
	settings := c.settings
	start := c.currentIndex
	c.mu.Unlock()

	total := len(items)

	for i := start; i < total; i++ {
		if c.stopRequested() {
			break
		}
		// Единственная точка, где стоп наблюдается во время паузы
		if !c.blockWhilePaused(ctx) {
			break
		}

		item := items[i]
		c.emitProgress(ctx, i, total, item.Prompt)

		artifact, err := c.processItem(ctx, item, i == 0)

		// Индекс продвигается независимо от исхода
		c.mu.Lock()
		c.currentIndex = i + 1
		if err == nil {
			c.results = append(c.results, artifact)
		}
		c.mu.Unlock()

		c.emitProgress(ctx, i+1, total, item.Prompt)

		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.ItemsProcessed.WithLabelValues(telemetry.ResultFailed).Inc()
			telemetry.WithItem(c.logger, i).Warn("item failed", "error", err)
			c.emitter.Error(ctx, fmt.Sprintf("item %d of %d failed: %v", i+1, total, err), false)
		} else {
			telemetry.ItemsProcessed.WithLabelValues(telemetry.ResultOK).Inc()
		}

		// Пауза между элементами, кроме последнего
		if i < total-1 {
			if err := wait.Sleep(ctx, settings.ItemDelay()); err != nil {
				break
			}
		}
	}

	c.finish(ctx)
}

// processItem выполняет один элемент в пределах бюджета попыток.
func (c *Controller) processItem(ctx context.Context, item domain.WorkItem, first bool) (domain.Artifact, error) {
	c.mu.Lock()
	settings := c.settings
	c.mu.Unlock()

	var artifact domain.Artifact
	err := retry.Run(ctx, retry.Policy{MaxAttempts: settings.MaxAttempts, Backoff: c.retryBackoff},
		func(ctx context.Context) error {
			a, err := c.runner.RunItem(ctx, item, c.asset, settings.Timeout(), first)
			if err != nil {
				return err
			}
			artifact = a
			return nil
		})
	return artifact, err
}

// blockWhilePaused кооперативно блокирует, пока прогон на паузе.
// Возвращает false, если запрошен стоп или контекст отменён.
func (c *Controller) blockWhilePaused(ctx context.Context) bool {
	for c.isPaused() {
		if c.stopRequested() {
			return false
		}
		if err := wait.Sleep(ctx, c.pauseInterval); err != nil {
			return false
		}
	}
	return ctx.Err() == nil && !c.stopRequested()
}

// finish переводит прогон в финальное состояние и публикует результат.
func (c *Controller) finish(ctx context.Context) {
	c.mu.Lock()
	stopped := c.stopFlag
	if stopped {
		c.status = domain.RunStatusStopped
	} else {
		c.status = domain.RunStatusCompleted
	}
	status := c.status
	results := make([]domain.Artifact, len(c.results))
	copy(results, c.results)
	c.mu.Unlock()

	// Перезапрашиваем артефакты: локаторы во внешней системе истекают,
	// свежий DOM-порядок сопоставляется порядку фиксации
	if refreshed := c.runner.CollectArtifacts(ctx); len(refreshed) == len(results) {
		for i := range results {
			if refreshed[i].URL != "" {
				results[i].URL = refreshed[i].URL
			}
		}
	}

	// Финальный порядок — порядок промптов, не порядок появления
	domain.SortArtifacts(results)

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()

	telemetry.ActiveRun.Set(0)
	telemetry.RunsFinished.WithLabelValues(string(status)).Inc()

	c.logger.Info("run finished", "status", status, "artifacts", len(results))
	c.emitter.GenerationComplete(ctx, results)
}

// emitProgress публикует Progress, подавляя повтор с тем же current:
// событие "после" элемента i и событие "перед" элементом i+1 совпадают,
// оператор должен увидеть ровно N+1 строго возрастающих значений.
func (c *Controller) emitProgress(ctx context.Context, current, total int, prompt string) {
	c.mu.Lock()
	if current == c.lastProgress {
		c.mu.Unlock()
		return
	}
	c.lastProgress = current
	c.mu.Unlock()

	c.emitter.Progress(ctx, events.Progress{Current: current, Total: total, Prompt: prompt})
}

func (c *Controller) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == domain.RunStatusPaused
}

func (c *Controller) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopFlag
}
