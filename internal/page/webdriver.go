package page

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// webElementKey — ключ element id в ответах W3C WebDriver.
	webElementKey = "element-6066-11e4-a52e-4f735466cecf"

	defaultRequestTimeout = 30 * time.Second
)

// WebDriver — реализация Driver поверх W3C WebDriver wire protocol.
//
// Подключается к локальному chromedriver/geckodriver, в котором уже
// открыта страница целевой системы. Push-уведомлений об изменениях
// страницы протокол не даёт, поэтому Subscribe возвращает инертный
// канал — корректность ожиданий обеспечивает polling fallback.
type WebDriver struct {
	baseURL   string
	client    *http.Client
	sessionID string

	// uploadDir — каталог для временных файлов, передаваемых в file input.
	uploadDir string
}

// NewWebDriver создаёт клиент WebDriver. Сессия открывается в Start.
func NewWebDriver(baseURL string) *WebDriver {
	return &WebDriver{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: defaultRequestTimeout},
		uploadDir: os.TempDir(),
	}
}

// wdResponse — конверт ответа WebDriver.
type wdResponse struct {
	Value json.RawMessage `json:"value"`
}

// wdError — тело ошибки WebDriver.
type wdError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Start открывает сессию и переходит на целевую страницу.
func (w *WebDriver) Start(ctx context.Context, targetURL string) error {
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": map[string]any{}},
	}
	raw, err := w.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	var value struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("parse session response: %w", err)
	}
	if value.SessionID == "" {
		return fmt.Errorf("create session: empty session id")
	}
	w.sessionID = value.SessionID

	if targetURL != "" {
		_, err = w.do(ctx, http.MethodPost, w.sessionPath("/url"), map[string]any{"url": targetURL})
		if err != nil {
			return fmt.Errorf("navigate to %s: %w", targetURL, err)
		}
	}
	return nil
}

// Find возвращает первый элемент по CSS-селектору.
func (w *WebDriver) Find(ctx context.Context, selector string) (Element, error) {
	if w.sessionID == "" {
		return nil, ErrNoSession
	}

	raw, err := w.do(ctx, http.MethodPost, w.sessionPath("/element"), map[string]any{
		"using": "css selector",
		"value": selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	id, err := parseElementID(raw)
	if err != nil {
		return nil, err
	}
	return &webElement{driver: w, id: id}, nil
}

// FindAll возвращает все элементы по CSS-селектору.
func (w *WebDriver) FindAll(ctx context.Context, selector string) ([]Element, error) {
	if w.sessionID == "" {
		return nil, ErrNoSession
	}

	raw, err := w.do(ctx, http.MethodPost, w.sessionPath("/elements"), map[string]any{
		"using": "css selector",
		"value": selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	var refs []map[string]string
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("parse elements response: %w", err)
	}

	elements := make([]Element, 0, len(refs))
	for _, ref := range refs {
		if id, ok := ref[webElementKey]; ok {
			elements = append(elements, &webElement{driver: w, id: id})
		}
	}
	return elements, nil
}

// Exec выполняет синхронный скрипт на странице.
func (w *WebDriver) Exec(ctx context.Context, script string, args ...any) error {
	if w.sessionID == "" {
		return ErrNoSession
	}
	if args == nil {
		args = []any{}
	}

	_, err := w.do(ctx, http.MethodPost, w.sessionPath("/execute/sync"), map[string]any{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	return nil
}

// Subscribe возвращает инертный канал: протокол не умеет push.
func (w *WebDriver) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	return ch, func() {}
}

// Close закрывает сессию.
func (w *WebDriver) Close(ctx context.Context) error {
	if w.sessionID == "" {
		return nil
	}
	_, err := w.do(ctx, http.MethodDelete, w.sessionPath(""), nil)
	w.sessionID = ""
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// sessionPath строит путь внутри текущей сессии.
func (w *WebDriver) sessionPath(suffix string) string {
	return "/session/" + w.sessionID + suffix
}

// do выполняет запрос к WebDriver и возвращает value из конверта.
func (w *WebDriver) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webdriver request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope wdResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wdErr wdError
		if err := json.Unmarshal(envelope.Value, &wdErr); err == nil && wdErr.Error != "" {
			return nil, fmt.Errorf("webdriver: %s: %s", wdErr.Error, wdErr.Message)
		}
		return nil, fmt.Errorf("webdriver: status %d", resp.StatusCode)
	}
	return envelope.Value, nil
}

// parseElementID извлекает element id из ответа /element.
func parseElementID(raw json.RawMessage) (string, error) {
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("parse element response: %w", err)
	}
	id, ok := ref[webElementKey]
	if !ok || id == "" {
		return "", ErrNoElement
	}
	return id, nil
}

// webElement — элемент страницы через WebDriver.
type webElement struct {
	driver *WebDriver
	id     string
}

// Click кликает по элементу.
func (e *webElement) Click(ctx context.Context) error {
	_, err := e.driver.do(ctx, http.MethodPost, e.path("/click"), map[string]any{})
	if err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// Clear очищает поле ввода.
func (e *webElement) Clear(ctx context.Context) error {
	_, err := e.driver.do(ctx, http.MethodPost, e.path("/clear"), map[string]any{})
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Type вводит текст. WebDriver сам генерирует клавиатурные события.
func (e *webElement) Type(ctx context.Context, text string) error {
	_, err := e.driver.do(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": text})
	if err != nil {
		return fmt.Errorf("send keys: %w", err)
	}
	return nil
}

// SetFile сохраняет данные во временный файл и передаёт путь в file input.
func (e *webElement) SetFile(ctx context.Context, filename string, data []byte) error {
	path := filepath.Join(e.driver.uploadDir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	defer os.Remove(path)

	_, err := e.driver.do(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": path})
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

// Attr возвращает значение атрибута.
func (e *webElement) Attr(ctx context.Context, name string) (string, error) {
	raw, err := e.driver.do(ctx, http.MethodGet, e.path("/attribute/"+name), nil)
	if err != nil {
		return "", fmt.Errorf("get attribute %s: %w", name, err)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("parse attribute: %w", err)
	}
	return value, nil
}

// path строит путь к элементу внутри сессии.
func (e *webElement) path(suffix string) string {
	return e.driver.sessionPath("/element/" + e.id + suffix)
}
