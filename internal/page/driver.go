// Package page — граница с внешним веб-интерфейсом.
//
// Ядро работает только с интерфейсами Driver и Element; конкретная
// стратегия поиска элементов на странице (самое хрупкое место системы)
// задаётся упорядоченными списками селекторов и живёт в конфигурации.
package page

import (
	"context"
	"errors"
)

// Ошибки драйвера.
var (
	// ErrNoElement — элемент не найден на странице.
	ErrNoElement = errors.New("element not found")

	// ErrNoSession — сессия драйвера не открыта.
	ErrNoSession = errors.New("driver session not started")
)

// Element — элемент внешнего интерфейса.
type Element interface {
	// Click кликает по элементу.
	Click(ctx context.Context) error

	// Clear очищает содержимое поля ввода.
	Clear(ctx context.Context) error

	// Type вводит текст в поле (с клавиатурными событиями).
	Type(ctx context.Context, text string) error

	// SetFile передаёт бинарный файл в file input.
	SetFile(ctx context.Context, filename string, data []byte) error

	// Attr возвращает значение атрибута элемента.
	Attr(ctx context.Context, name string) (string, error)
}

// Driver — доступ к странице внешней системы.
//
// Реализации: WebDriver (W3C wire protocol) для боевого режима,
// fake-драйверы в тестах пакетов steps и controller.
type Driver interface {
	// Find возвращает первый элемент по CSS-селектору.
	// ErrNoElement, если элемента нет.
	Find(ctx context.Context, selector string) (Element, error)

	// FindAll возвращает все элементы по CSS-селектору.
	FindAll(ctx context.Context, selector string) ([]Element, error)

	// Exec выполняет скрипт на странице.
	Exec(ctx context.Context, script string, args ...any) error

	// Subscribe подписывает на уведомления об изменениях страницы.
	// Уведомления не гарантированно исчерпывающи: ожидающие обязаны
	// дополнительно опрашивать состояние. Возвращённая функция
	// отписывает; вызывается безусловно на всех путях завершения.
	Subscribe() (<-chan struct{}, func())

	// Close закрывает сессию драйвера.
	Close(ctx context.Context) error
}
