// Package wait — примитив ожидания состояния внешней системы.
//
// Внешняя система — деградированный источник событий: уведомления об
// изменениях приходят, но не гарантированно исчерпывающи. Поэтому каждое
// ожидание совмещает подписку на уведомления с независимым polling —
// ожидание только по уведомлениям недопустимо.
package wait

import (
	"context"
	"errors"
	"time"
)

// Ошибки ожидания.
var (
	// ErrTimeout — условие не выполнилось в отведённый бюджет.
	// Не фатальна: вызывающий сам решает, что делать с таймаутом.
	ErrTimeout = errors.New("wait timed out")
)

// defaultPollInterval — интервал polling fallback.
const defaultPollInterval = 500 * time.Millisecond

// Source — источник уведомлений об изменениях внешнего состояния.
//
// Subscribe возвращает канал уведомлений и функцию отписки.
// Уведомления могут теряться; отписка обязана вызываться безусловно.
type Source interface {
	Subscribe() (<-chan struct{}, func())
}

// Predicate — проверка условия без побочных эффектов.
// ok=true означает, что условие выполнено и value — его результат.
type Predicate[T any] func(ctx context.Context) (value T, ok bool)

// Options — параметры ожидания.
type Options struct {
	// Timeout — бюджет ожидания.
	Timeout time.Duration

	// PollInterval — интервал проверки без уведомлений (default: 500ms).
	PollInterval time.Duration
}

// For ждёт выполнения условия: немедленная проверка до подписки
// (исключает гонку на уже истинном условии), затем перепроверка на каждом
// уведомлении источника и на каждом тике polling fallback.
//
// Возвращает ErrTimeout по истечении бюджета и ошибку контекста при отмене.
// Подписка и таймеры останавливаются на всех путях завершения.
func For[T any](ctx context.Context, src Source, opts Options, pred Predicate[T]) (T, error) {
	var zero T

	if v, ok := pred(ctx); ok {
		return v, nil
	}

	notify, unsubscribe := src.Subscribe()
	defer unsubscribe()

	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	poll := time.NewTicker(interval)
	defer poll.Stop()

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline.C:
			return zero, ErrTimeout
		case <-notify:
		case <-poll.C:
		}

		if v, ok := pred(ctx); ok {
			return v, nil
		}
	}
}

// ForAny ждёт выполнения первого из нескольких условий.
//
// Используется, когда одно и то же внешнее состояние может быть
// представлено несколькими способами.
func ForAny[T any](ctx context.Context, src Source, opts Options, preds ...Predicate[T]) (T, error) {
	return For(ctx, src, opts, func(ctx context.Context) (T, bool) {
		for _, p := range preds {
			if v, ok := p(ctx); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	})
}

// Sleep — пауза с учётом отмены контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
