package wait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSource — источник уведомлений с учётом подписок.
type fakeSource struct {
	mu         sync.Mutex
	notify     chan struct{}
	subscribed int
	active     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{notify: make(chan struct{}, 8)}
}

func (s *fakeSource) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed++
	s.active++

	var once sync.Once
	return s.notify, func() {
		once.Do(func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		})
	}
}

func (s *fakeSource) Notify() {
	s.notify <- struct{}{}
}

func (s *fakeSource) activeSubs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func TestFor_AlreadyTrueResolvesImmediately(t *testing.T) {
	src := newFakeSource()

	start := time.Now()
	v, err := For(context.Background(), src, Options{Timeout: time.Second}, func(ctx context.Context) (int, bool) {
		return 42, true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected immediate resolution, took %v", elapsed)
	}
	// Условие истинно до подписки — подписка не нужна
	if src.subscribed != 0 {
		t.Errorf("expected no subscription, got %d", src.subscribed)
	}
}

func TestFor_TimeoutAndCleanup(t *testing.T) {
	src := newFakeSource()

	_, err := For(context.Background(), src, Options{Timeout: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond},
		func(ctx context.Context) (string, bool) { return "", false })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if src.activeSubs() != 0 {
		t.Errorf("subscription leaked: %d active", src.activeSubs())
	}

	// Повторный вызов с другим предикатом сразу после таймаута
	v, err := For(context.Background(), src, Options{Timeout: time.Second}, func(ctx context.Context) (string, bool) {
		return "ok", true
	})
	if err != nil {
		t.Fatalf("unexpected error on reuse: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
	if src.activeSubs() != 0 {
		t.Errorf("subscription leaked after reuse: %d active", src.activeSubs())
	}
}

func TestFor_ResolvesOnNotification(t *testing.T) {
	src := newFakeSource()

	var mu sync.Mutex
	satisfied := false

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := For(context.Background(), src, Options{Timeout: 2 * time.Second, PollInterval: time.Minute},
			func(ctx context.Context) (struct{}, bool) {
				mu.Lock()
				defer mu.Unlock()
				return struct{}{}, satisfied
			})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	// Даём ожиданию подписаться, затем меняем состояние и уведомляем
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	satisfied = true
	mu.Unlock()
	src.Notify()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not resolve on notification")
	}
}

func TestFor_PollFallbackWithoutNotifications(t *testing.T) {
	// Источник никогда не уведомляет — выручает polling
	src := newFakeSource()

	var mu sync.Mutex
	satisfied := false
	go func() {
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		satisfied = true
		mu.Unlock()
	}()

	_, err := For(context.Background(), src, Options{Timeout: 2 * time.Second, PollInterval: 5 * time.Millisecond},
		func(ctx context.Context) (struct{}, bool) {
			mu.Lock()
			defer mu.Unlock()
			return struct{}{}, satisfied
		})
	if err != nil {
		t.Fatalf("poll fallback did not resolve: %v", err)
	}
}

func TestForAny_FirstSatisfiedWins(t *testing.T) {
	src := newFakeSource()

	v, err := ForAny(context.Background(), src, Options{Timeout: time.Second},
		func(ctx context.Context) (string, bool) { return "", false },
		func(ctx context.Context) (string, bool) { return "second", true },
		func(ctx context.Context) (string, bool) { return "third", true },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "second" {
		t.Errorf("expected second, got %q", v)
	}
}

func TestFor_ContextCancelled(t *testing.T) {
	src := newFakeSource()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := For(ctx, src, Options{Timeout: time.Second, PollInterval: 5 * time.Millisecond},
		func(ctx context.Context) (int, bool) { return 0, false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.activeSubs() != 0 {
		t.Errorf("subscription leaked: %d active", src.activeSubs())
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not react to cancellation")
	}
}
