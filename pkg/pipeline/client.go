package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/httpclient"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/observability"
)

const apiPrefix = "/api/v1"

// projectHeader scopes every request to one platform project.
const projectHeader = "X-Project-ID"

// APIError is a non-2xx platform response, decoded from the platform's
// error envelope when one is present.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform API error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the platform's pipeline REST API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	token   string
	project string
}

// NewClient creates a platform client from the resolved platform config.
func NewClient(cfg *config.PlatformConfig) *Client {
	return &Client{
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		project: cfg.Project,
	}
}

// CreatePipeline registers a pipeline and returns it with its assigned ID.
func (c *Client) CreatePipeline(ctx context.Context, pipeline *Pipeline) (*Pipeline, error) {
	var created Pipeline
	if err := c.do(ctx, http.MethodPost, "/pipelines", pipeline, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPipeline fetches a pipeline by ID.
func (c *Client) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	var pipeline Pipeline
	if err := c.do(ctx, http.MethodGet, "/pipelines/"+url.PathEscape(id), nil, &pipeline); err != nil {
		return nil, err
	}
	return &pipeline, nil
}

// ListPipelines returns every pipeline in the project.
func (c *Client) ListPipelines(ctx context.Context) ([]*Pipeline, error) {
	var listing struct {
		Pipelines []*Pipeline `json:"pipelines"`
	}
	if err := c.do(ctx, http.MethodGet, "/pipelines", nil, &listing); err != nil {
		return nil, err
	}
	return listing.Pipelines, nil
}

// RunPipeline starts an execution and returns its ID.
func (c *Client) RunPipeline(ctx context.Context, id string, input map[string]any) (string, error) {
	body := map[string]any{}
	if input != nil {
		body["input"] = input
	}

	var started struct {
		ExecutionID string `json:"execution_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/pipelines/"+url.PathEscape(id)+"/run", body, &started); err != nil {
		return "", err
	}
	if started.ExecutionID == "" {
		return "", fmt.Errorf("platform returned no execution id for pipeline %s", id)
	}
	return started.ExecutionID, nil
}

// GetExecution fetches an execution's current state.
func (c *Client) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var execution Execution
	if err := c.do(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil, &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

// GetExecutionLogs fetches an execution's log text.
func (c *Client) GetExecutionLogs(ctx context.Context, id string) (string, error) {
	var logs struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/executions/"+url.PathEscape(id)+"/logs", nil, &logs); err != nil {
		return "", err
	}
	return logs.Logs, nil
}

// DeletePipeline removes a pipeline and its executions.
func (c *Client) DeletePipeline(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/pipelines/"+url.PathEscape(id), nil, nil)
}

// do sends one JSON request and decodes the response into out (when non-nil).
// Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	operation := method + " " + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.project != "" {
		req.Header.Set(projectHeader, c.project)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	observability.GetGlobalMetrics().RecordAPICall(ctx, operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		envelope.Error.StatusCode = resp.StatusCode
		return envelope.Error
	}

	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}
