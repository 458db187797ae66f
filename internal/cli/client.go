package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TargetResponse — target из API.
type TargetResponse struct {
	ID             string `json:"id"`
	DirectorySlug  string `json:"directory_slug"`
	BusinessID     string `json:"business_id"`
	CurrentStatus  string `json:"current_status"`
	CurrentRunID   string `json:"current_run_id,omitempty"`
	LiveVerifiedAt string `json:"live_verified_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID                   string          `json:"id"`
	TargetID             string          `json:"target_id"`
	AttemptNo            int             `json:"attempt_no"`
	Status               string          `json:"status"`
	StatusReason         string          `json:"status_reason,omitempty"`
	StatusChangedAt      string          `json:"status_changed_at"`
	StartedAt            string          `json:"started_at,omitempty"`
	CompletedAt          string          `json:"completed_at,omitempty"`
	ActionNeeded         json.RawMessage `json:"action_needed,omitempty"`
	LastError            json.RawMessage `json:"last_error,omitempty"`
	NextRunAt            string          `json:"next_run_at,omitempty"`
	LockedBy             string          `json:"locked_by,omitempty"`
	ExternalSubmissionID string          `json:"external_submission_id,omitempty"`
	ChangesAcknowledged  bool            `json:"changes_acknowledged"`
	PreviousRunID        string          `json:"previous_run_id,omitempty"`
	CorrelationID        string          `json:"correlation_id"`
	CreatedAt            string          `json:"created_at"`
}

// EventResponse — событие журнала из API.
type EventResponse struct {
	ID            string          `json:"id"`
	RunID         string          `json:"run_id"`
	Type          string          `json:"event_type"`
	FromStatus    string          `json:"from_status,omitempty"`
	ToStatus      string          `json:"to_status,omitempty"`
	StatusReason  string          `json:"status_reason,omitempty"`
	TriggeredBy   string          `json:"triggered_by"`
	TriggeredByID string          `json:"triggered_by_id,omitempty"`
	Data          json.RawMessage `json:"event_data,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id"`
	Kind        string `json:"kind"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	DownloadURL string `json:"download_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// DirectoryResponse — запись справочника каталогов из API.
type DirectoryResponse struct {
	Slug             string `json:"slug"`
	Name             string `json:"name"`
	Connector        string `json:"connector"`
	RateLimitPerHour int    `json:"rate_limit_per_hour,omitempty"`
	SupportsWebhook  bool   `json:"supports_webhook"`
}

// CreateTargetResult — результат создания target (target + первый run).
type CreateTargetResult struct {
	Target TargetResponse `json:"target"`
	Run    RunResponse    `json:"run"`
}

// --- Request types ---

// CreateTargetRequest — создание target.
type CreateTargetRequest struct {
	DirectorySlug string `json:"directory_slug"`
	BusinessID    string `json:"business_id"`
}

// AcknowledgeRequest — подтверждение претензий каталога.
type AcknowledgeRequest struct {
	UserID string `json:"user_id"`
}

// RetryRunRequest — повторная попытка.
type RetryRunRequest struct {
	Reason string `json:"reason,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// CancelRunRequest — отмена run.
type CancelRunRequest struct {
	UserID string `json:"user_id,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
}

// ListTargetsOpts — параметры фильтрации targets.
type ListTargetsOpts struct {
	BusinessID string
	Status     string
	Limit      int
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

// Client — HTTP-клиент для Listopad API.
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

// --- Targets ---

// ListTargets возвращает targets с фильтрацией.
func (c *Client) ListTargets(opts ListTargetsOpts) ([]TargetResponse, error) {
	params := url.Values{}
	if opts.BusinessID != "" {
		params.Set("business_id", opts.BusinessID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var targets []TargetResponse
	err := c.list("/api/v1/targets", params, &targets)
	return targets, err
}

// CreateTarget создаёт target и его первый run.
func (c *Client) CreateTarget(directorySlug, businessID string) (*CreateTargetResult, error) {
	var result CreateTargetResult
	err := c.post("/api/v1/targets", CreateTargetRequest{
		DirectorySlug: directorySlug,
		BusinessID:    businessID,
	}, &result)
	return &result, err
}

// GetTarget возвращает target по ID.
func (c *Client) GetTarget(id string) (*TargetResponse, error) {
	var target TargetResponse
	err := c.get("/api/v1/targets/"+id, &target)
	return &target, err
}

// ListTargetRuns возвращает линию runs target'а.
func (c *Client) ListTargetRuns(targetID string) ([]RunResponse, error) {
	var runs []RunResponse
	err := c.list("/api/v1/targets/"+targetID+"/runs", nil, &runs)
	return runs, err
}

// --- Runs ---

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// ListRunEvents возвращает журнал событий run.
func (c *Client) ListRunEvents(runID string) ([]EventResponse, error) {
	var events []EventResponse
	err := c.list("/api/v1/runs/"+runID+"/events", nil, &events)
	return events, err
}

// GetRunLineage возвращает линию попыток run.
func (c *Client) GetRunLineage(runID string) ([]RunResponse, error) {
	var runs []RunResponse
	err := c.list("/api/v1/runs/"+runID+"/lineage", nil, &runs)
	return runs, err
}

// AcknowledgeRun подтверждает претензии каталога.
func (c *Client) AcknowledgeRun(id, userID string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/acknowledge", AcknowledgeRequest{UserID: userID}, &run)
	return &run, err
}

// RetryRun создаёт новую попытку в линии run.
func (c *Client) RetryRun(id string, req RetryRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/retry", req, &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id string, req CancelRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", req, &run)
	return &run, err
}

// PauseRun приостанавливает run.
func (c *Client) PauseRun(id, userID string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/pause", AcknowledgeRequest{UserID: userID}, &run)
	return &run, err
}

// ResumeRun возвращает run в очередь.
func (c *Client) ResumeRun(id, userID string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/resume", AcknowledgeRequest{UserID: userID}, &run)
	return &run, err
}

// ListRunArtifacts возвращает артефакты run.
func (c *Client) ListRunArtifacts(runID string) ([]ArtifactResponse, error) {
	var artifacts []ArtifactResponse
	err := c.list("/api/v1/runs/"+runID+"/artifacts", nil, &artifacts)
	return artifacts, err
}

// --- Directories ---

// ListDirectories возвращает справочник каталогов.
func (c *Client) ListDirectories() ([]DirectoryResponse, error) {
	var dirs []DirectoryResponse
	err := c.list("/api/v1/directories", nil, &dirs)
	return dirs, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

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
