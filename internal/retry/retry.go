// Package retry — ограниченный бюджет попыток с фиксированным backoff.
//
// Оборачивает полную последовательность шагов одного элемента: любая
// ошибка попытки расходует бюджет, пауза выдерживается между попытками,
// но не после последней. Исчерпание бюджета не фатально для прогона —
// контроллер фиксирует сбой и переходит к следующему элементу.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veresk/storyforge/internal/wait"
)

// Ошибки.
var (
	// ErrExhausted — бюджет попыток исчерпан.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// defaultBackoff — пауза между попытками по умолчанию.
const defaultBackoff = 2 * time.Second

// Policy — параметры повторов.
type Policy struct {
	// MaxAttempts — количество попыток (минимум 1).
	MaxAttempts int

	// Backoff — фиксированная пауза между попытками.
	Backoff time.Duration
}

// normalized возвращает политику с подставленными значениями по умолчанию.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	return p
}

// Run выполняет fn до первого успеха в пределах бюджета попыток.
//
// Возвращает nil при успехе, ошибку контекста при отмене и ErrExhausted
// (с последней ошибкой попытки) при исчерпании бюджета.
func Run(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		// Пауза между попытками, но не после последней
		if attempt < p.MaxAttempts {
			if err := wait.Sleep(ctx, p.Backoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, p.MaxAttempts, lastErr)
}
