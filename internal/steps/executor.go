// Package steps выполняет фазы одного шага workflow против внешнего
// интерфейса: очистка поля ввода, прикрепление референса, перенос
// предыдущего результата, ввод промпта, запуск генерации и ожидание
// результата.
//
// Каждая фаза отправляет оператору Log-событие. Фазы 1 и 3 не фатальны;
// остальные возвращают ошибки, которые расходуют бюджет попыток.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veresk/storyforge/internal/domain"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/page"
	"github.com/veresk/storyforge/internal/wait"
)

// Параметры по умолчанию.
const (
	defaultAffordanceWait = 10 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// notifyScript — полная последовательность уведомлений об изменении поля.
//
// Целевая система не распознаёт прямое присваивание значения: требуется
// связка focus / input / change / keyup, иначе кнопка генерации остаётся
// неактивной.
const notifyScript = `
for (const sel of arguments[0]) {
  const el = document.querySelector(sel);
  if (!el) continue;
  el.focus();
  el.dispatchEvent(new Event('input',  {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));
  el.dispatchEvent(new KeyboardEvent('keyup', {bubbles: true}));
  break;
}`

// Executor выполняет фазы шага против драйвера страницы.
type Executor struct {
	driver   page.Driver
	locators page.Locators
	emitter  events.Emitter
	logger   *slog.Logger

	// affordanceWait — короткий бюджет ожидания появления элемента.
	affordanceWait time.Duration
	pollInterval   time.Duration
}

// Config — конфигурация Executor.
type Config struct {
	Driver   page.Driver
	Locators page.Locators
	Emitter  events.Emitter
	Logger   *slog.Logger

	// AffordanceWait — ожидание появления элементов (default: 10s).
	AffordanceWait time.Duration

	// PollInterval — интервал polling fallback (default: 500ms).
	PollInterval time.Duration
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	affordanceWait := cfg.AffordanceWait
	if affordanceWait <= 0 {
		affordanceWait = defaultAffordanceWait
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.Nop{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		driver:         cfg.Driver,
		locators:       cfg.Locators,
		emitter:        emitter,
		logger:         logger,
		affordanceWait: affordanceWait,
		pollInterval:   pollInterval,
	}
}

// waitOpts возвращает параметры ожидания с коротким бюджетом.
func (e *Executor) waitOpts() wait.Options {
	return wait.Options{Timeout: e.affordanceWait, PollInterval: e.pollInterval}
}

// RunItem выполняет полную последовательность фаз для одного элемента.
//
// На первом элементе прогона перенос предыдущего результата пропускается.
// Возвращает артефакт с зафиксированной структурной позицией элемента.
func (e *Executor) RunItem(ctx context.Context, item domain.WorkItem, asset domain.ReferenceAsset, timeout time.Duration, first bool) (domain.Artifact, error) {
	e.ResetInput(ctx)

	if err := e.AttachReference(ctx, asset); err != nil {
		return domain.Artifact{}, err
	}

	if !first {
		// Не фатально: предупреждение уже отправлено, продолжаем
		e.ChainPriorResult(ctx)
	}

	if err := e.SubmitPrompt(ctx, item.Prompt); err != nil {
		return domain.Artifact{}, err
	}

	before := e.ArtifactCount(ctx)

	if err := e.TriggerGeneration(ctx); err != nil {
		return domain.Artifact{}, err
	}

	if !e.AwaitResult(ctx, before, timeout) {
		return domain.Artifact{}, fmt.Errorf("generation result: %w", wait.ErrTimeout)
	}

	return e.latestArtifact(ctx, item), nil
}

// ResetInput очищает поле ввода промпта.
//
// Отсутствие поля (ещё не отрисовано) не ошибка: логируем и продолжаем.
func (e *Executor) ResetInput(ctx context.Context) {
	input, err := e.locators.PromptInput.Find(ctx, e.driver)
	if err != nil {
		e.logger.Debug("prompt input not present, skipping reset")
		return
	}

	if err := input.Clear(ctx); err != nil {
		e.logger.Warn("failed to clear prompt input", "error", err)
		e.emitter.Log(ctx, domain.SeverityWarning, "could not clear prompt input")
		return
	}

	e.emitter.Log(ctx, domain.SeverityInfo, "prompt input cleared")
}

// AttachReference прикрепляет референсное изображение.
//
// Порядок эвристик: локатор кнопки прикрепления (список в порядке
// приоритета), затем сканирование всех кнопок страницы по aria-label.
// После клика ждём появления file input ограниченное время.
// Оверлей закрывается на всех путях выхода.
func (e *Executor) AttachReference(ctx context.Context, asset domain.ReferenceAsset) (err error) {
	// Оверлей после прикрепления перекрывает форму — закрываем всегда
	defer e.dismissOverlay(ctx)

	if asset.IsEmpty() {
		e.emitter.Log(ctx, domain.SeverityInfo, "no reference asset, skipping attach")
		return nil
	}

	button, findErr := e.locators.AttachButton.Find(ctx, e.driver)
	if findErr != nil {
		button, findErr = e.scanForAttachButton(ctx)
	}
	if findErr != nil {
		e.emitter.Log(ctx, domain.SeverityError, "attach affordance not found")
		return fmt.Errorf("%w: attach button", ErrAttachmentNotFound)
	}

	if err := button.Click(ctx); err != nil {
		e.emitter.Log(ctx, domain.SeverityError, "failed to open attach dialog")
		return fmt.Errorf("click attach button: %w", err)
	}

	// Ждём появления поверхности для файла
	input, waitErr := wait.For(ctx, e.driver, e.waitOpts(), func(ctx context.Context) (page.Element, bool) {
		el, err := e.locators.FileInput.Find(ctx, e.driver)
		return el, err == nil
	})
	if waitErr != nil {
		e.emitter.Log(ctx, domain.SeverityError, "file input did not appear")
		return fmt.Errorf("%w: file input", ErrAttachmentNotFound)
	}

	if err := input.SetFile(ctx, assetFilename(asset), asset.Data); err != nil {
		e.emitter.Log(ctx, domain.SeverityError, "failed to deliver reference asset")
		return fmt.Errorf("set reference file: %w", err)
	}

	e.emitter.Log(ctx, domain.SeveritySuccess, "reference asset attached")
	return nil
}

// scanForAttachButton — сканирование последней надежды: перебираем все
// кнопки страницы и ищем подходящую по aria-label.
func (e *Executor) scanForAttachButton(ctx context.Context) (page.Element, error) {
	buttons, err := e.driver.FindAll(ctx, "button")
	if err != nil {
		return nil, err
	}

	for _, b := range buttons {
		label, err := b.Attr(ctx, "aria-label")
		if err != nil {
			continue
		}
		label = strings.ToLower(label)
		if strings.Contains(label, "attach") || strings.Contains(label, "upload") || strings.Contains(label, "image") {
			return b, nil
		}
	}
	return nil, page.ErrNoElement
}

// dismissOverlay закрывает модальный оверлей, если он есть.
func (e *Executor) dismissOverlay(ctx context.Context) {
	dismiss, err := e.locators.OverlayDismiss.Find(ctx, e.driver)
	if err != nil {
		return
	}
	if err := dismiss.Click(ctx); err != nil {
		e.logger.Debug("failed to dismiss overlay", "error", err)
	}
}

// ChainPriorResult переносит последний сгенерированный артефакт в
// следующий шаг.
//
// Сначала ищем кнопку переноса в контейнере последнего артефакта
// (структурная близость), затем — последнюю такую кнопку на странице.
// Неудача не фатальна: предупреждение, workflow продолжается.
func (e *Executor) ChainPriorResult(ctx context.Context) bool {
	// Структурная близость: кнопка внутри контейнера последнего артефакта
	for _, sel := range e.locators.ChainButton.Selectors {
		el, err := e.driver.Find(ctx, "figure:last-of-type "+sel)
		if err != nil {
			continue
		}
		if err := el.Click(ctx); err == nil {
			e.emitter.Log(ctx, domain.SeverityInfo, "prior result carried forward")
			return true
		}
	}

	// Fallback: самая свежая кнопка переноса на всей странице
	buttons, err := e.locators.ChainButton.FindAll(ctx, e.driver)
	if err != nil || len(buttons) == 0 {
		e.emitter.Log(ctx, domain.SeverityWarning, "carry-forward affordance not found, continuing without chaining")
		return false
	}

	if err := buttons[len(buttons)-1].Click(ctx); err != nil {
		e.emitter.Log(ctx, domain.SeverityWarning, "failed to carry prior result forward")
		return false
	}

	e.emitter.Log(ctx, domain.SeverityInfo, "prior result carried forward")
	return true
}

// SubmitPrompt вводит текст промпта и отправляет полную последовательность
// уведомлений об изменении.
func (e *Executor) SubmitPrompt(ctx context.Context, text string) error {
	input, err := wait.For(ctx, e.driver, e.waitOpts(), func(ctx context.Context) (page.Element, bool) {
		el, err := e.locators.PromptInput.Find(ctx, e.driver)
		return el, err == nil
	})
	if err != nil {
		e.emitter.Log(ctx, domain.SeverityError, "prompt input not found")
		return fmt.Errorf("%w: prompt input", ErrAffordanceNotFound)
	}

	if err := input.Clear(ctx); err != nil {
		return fmt.Errorf("clear prompt input: %w", err)
	}
	if err := input.Type(ctx, text); err != nil {
		return fmt.Errorf("type prompt: %w", err)
	}

	// Одного присваивания значения целевой системе недостаточно
	if err := e.driver.Exec(ctx, notifyScript, e.locators.PromptInput.Selectors); err != nil {
		return fmt.Errorf("dispatch input notifications: %w", err)
	}

	e.emitter.Log(ctx, domain.SeverityInfo, "prompt submitted")
	return nil
}

// TriggerGeneration нажимает кнопку генерации.
func (e *Executor) TriggerGeneration(ctx context.Context) error {
	button, err := wait.For(ctx, e.driver, e.waitOpts(), func(ctx context.Context) (page.Element, bool) {
		el, err := e.locators.GenerateButton.Find(ctx, e.driver)
		return el, err == nil
	})
	if err != nil {
		e.emitter.Log(ctx, domain.SeverityError, "generate button not found")
		return fmt.Errorf("%w: generate button", ErrAffordanceNotFound)
	}

	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("click generate button: %w", err)
	}

	e.emitter.Log(ctx, domain.SeverityInfo, "generation triggered")
	return nil
}

// ArtifactCount возвращает текущее количество сгенерированных изображений.
func (e *Executor) ArtifactCount(ctx context.Context) int {
	els, err := e.locators.ArtifactImage.FindAll(ctx, e.driver)
	if err != nil {
		return 0
	}
	return len(els)
}

// AwaitResult ждёт увеличения количества артефактов относительно before.
//
// Таймаут не ошибка, а false: решение принимает бюджет попыток выше.
func (e *Executor) AwaitResult(ctx context.Context, before int, timeout time.Duration) bool {
	_, err := wait.For(ctx, e.driver,
		wait.Options{Timeout: timeout, PollInterval: e.pollInterval},
		func(ctx context.Context) (int, bool) {
			count := e.ArtifactCount(ctx)
			return count, count > before
		})
	if err != nil {
		e.emitter.Log(ctx, domain.SeverityWarning, "generation did not finish in time")
		return false
	}

	e.emitter.Log(ctx, domain.SeveritySuccess, "generation finished")
	return true
}

// CollectArtifacts возвращает все артефакты страницы в DOM-порядке.
func (e *Executor) CollectArtifacts(ctx context.Context) []domain.Artifact {
	els, err := e.locators.ArtifactImage.FindAll(ctx, e.driver)
	if err != nil {
		return nil
	}

	artifacts := make([]domain.Artifact, 0, len(els))
	for i, el := range els {
		src, err := el.Attr(ctx, "src")
		if err != nil || src == "" {
			continue
		}
		artifacts = append(artifacts, domain.Artifact{URL: src, Position: i})
	}
	return artifacts
}

// latestArtifact фиксирует самый свежий артефакт страницы с позицией
// и промптом обработанного элемента.
func (e *Executor) latestArtifact(ctx context.Context, item domain.WorkItem) domain.Artifact {
	artifact := domain.Artifact{Prompt: item.Prompt, Position: item.Index}

	els, err := e.locators.ArtifactImage.FindAll(ctx, e.driver)
	if err != nil || len(els) == 0 {
		return artifact
	}

	if src, err := els[len(els)-1].Attr(ctx, "src"); err == nil {
		artifact.URL = src
	}
	return artifact
}

// assetFilename подбирает имя файла по mime-типу ассета.
func assetFilename(asset domain.ReferenceAsset) string {
	switch asset.Mime {
	case "image/jpeg":
		return "reference.jpg"
	case "image/webp":
		return "reference.webp"
	default:
		return "reference.png"
	}
}
