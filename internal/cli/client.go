package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StatusResponse — состояние прогона из API.
type StatusResponse struct {
	Status    string `json:"status"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Prompt    string `json:"prompt,omitempty"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	URL      string `json:"url"`
	Prompt   string `json:"prompt"`
	Position int    `json:"position"`
}

// RunAcceptedResponse — подтверждение запуска.
type RunAcceptedResponse struct {
	Items int `json:"items"`
}

// CommandAcceptedResponse — подтверждение управляющей команды.
type CommandAcceptedResponse struct {
	Command string `json:"command"`
}

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID        string         `json:"id"`
	Prompts   []string       `json:"prompts"`
	HasAsset  bool           `json:"has_asset"`
	Settings  map[string]any `json:"settings"`
	UpdatedAt string         `json:"updated_at"`
}

// --- Request types ---

// StartRunRequest — запуск прогона.
type StartRunRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Prompts   []string       `json:"prompts,omitempty"`
	Asset     *AssetRequest  `json:"asset,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// AssetRequest — референсное изображение.
type AssetRequest struct {
	Data []byte `json:"data"`
	Mime string `json:"mime"`
}

// EnqueueDownloadsRequest — постановка скачиваний.
type EnqueueDownloadsRequest struct {
	Prefix  string `json:"prefix"`
	DelayMs int    `json:"delay_ms,omitempty"`
}

// SaveSessionRequest — сохранение сессии.
type SaveSessionRequest struct {
	Prompts  []string       `json:"prompts"`
	Asset    *AssetRequest  `json:"asset,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для StoryForge API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Runs ---

// StartRun запускает прогон.
func (c *Client) StartRun(req StartRunRequest) (*RunAcceptedResponse, error) {
	var accepted RunAcceptedResponse
	err := c.post("/api/v1/runs", req, &accepted)
	return &accepted, err
}

// PauseRun приостанавливает прогон.
func (c *Client) PauseRun() (*CommandAcceptedResponse, error) {
	var accepted CommandAcceptedResponse
	err := c.post("/api/v1/runs/pause", nil, &accepted)
	return &accepted, err
}

// ResumeRun возобновляет прогон.
func (c *Client) ResumeRun() (*CommandAcceptedResponse, error) {
	var accepted CommandAcceptedResponse
	err := c.post("/api/v1/runs/resume", nil, &accepted)
	return &accepted, err
}

// StopRun останавливает прогон.
func (c *Client) StopRun() (*CommandAcceptedResponse, error) {
	var accepted CommandAcceptedResponse
	err := c.post("/api/v1/runs/stop", nil, &accepted)
	return &accepted, err
}

// GetStatus возвращает состояние прогона.
func (c *Client) GetStatus() (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/runs/status", &status)
	return &status, err
}

// GetArtifacts возвращает последний завершённый набор артефактов.
func (c *Client) GetArtifacts() ([]ArtifactResponse, error) {
	var artifacts []ArtifactResponse
	err := c.list("/api/v1/runs/artifacts", &artifacts)
	return artifacts, err
}

// --- Downloads ---

// EnqueueDownloads ставит последний набор артефактов в очередь скачивания.
func (c *Client) EnqueueDownloads(req EnqueueDownloadsRequest) (*CommandAcceptedResponse, error) {
	var accepted CommandAcceptedResponse
	err := c.post("/api/v1/downloads", req, &accepted)
	return &accepted, err
}

// --- Sessions ---

// SaveSession сохраняет сессию.
func (c *Client) SaveSession(id string, req SaveSessionRequest) (*SessionResponse, error) {
	var session SessionResponse
	err := c.put("/api/v1/sessions/"+id, req, &session)
	return &session, err
}

// GetSession возвращает сессию по ID.
func (c *Client) GetSession(id string) (*SessionResponse, error) {
	var session SessionResponse
	err := c.get("/api/v1/sessions/"+id, &session)
	return &session, err
}

// ListSessions возвращает все сессии.
func (c *Client) ListSessions() ([]SessionResponse, error) {
	var sessions []SessionResponse
	err := c.list("/api/v1/sessions", &sessions)
	return sessions, err
}

// DeleteSession удаляет сессию.
func (c *Client) DeleteSession(id string) error {
	return c.delete("/api/v1/sessions/" + id)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
