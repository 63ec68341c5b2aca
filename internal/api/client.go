// Package api is the REST client for the generation service. Every
// operation takes a context and authenticates with a bearer token; the
// event stream is the one exception to header auth because the server
// only accepts its token as a query parameter.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Error is a non-2xx response from the server. Detail carries the
// human-readable message from the optional {"detail": ...} body.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Detail)
}

// Client talks to the generation service
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given server. No request timeout
// is set; callers bound requests through their context.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// ProjectFile is one file in a project snapshot. Content is kept raw
// because the store sometimes holds structured values instead of plain
// strings; normalization happens in the reconciler.
type ProjectFile struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// ChatMessage is one chat log entry in a project snapshot
type ChatMessage struct {
	ID       int    `json:"id"`
	Content  string `json:"content"`
	FromUser bool   `json:"fromUser"`
}

// Project is the full authoritative project snapshot
type Project struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Files    []ProjectFile `json:"files"`
	Messages []ChatMessage `json:"messages"`
}

// ProjectSummary is one entry of the project listing
type ProjectSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// StartGenerateRequest carries the inputs for a fresh generation run
type StartGenerateRequest struct {
	Description      string `json:"description"`
	DomainOverride   string `json:"domainOverride,omitempty"`
	PlanningModel    string `json:"planningModel,omitempty"`
	ImplementerModel string `json:"implementerModel,omitempty"`
	FixerModel       string `json:"fixerModel,omitempty"`
}

// Telemetry is the run telemetry report. Steps, metrics and tokens are
// kept raw; the CLI renders them as-is.
type Telemetry struct {
	ID         string                     `json:"id"`
	Status     string                     `json:"status"`
	Steps      []json.RawMessage          `json:"steps"`
	Metrics    map[string]json.RawMessage `json:"metrics"`
	Tokens     map[string]json.RawMessage `json:"tokens"`
	PlanCount  int                        `json:"planCount"`
	FilesCount int                        `json:"filesCount"`
}

// CreateRun asks the server for a new run identifier
func (c *Client) CreateRun(ctx context.Context) (string, error) {
	var out struct {
		RunID string `json:"run_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/runs", nil, &out); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return out.RunID, nil
}

// StartGenerate launches the generation pipeline for a run
func (c *Client) StartGenerate(ctx context.Context, runID string, req StartGenerateRequest) error {
	path := fmt.Sprintf("/runs/%s/start", url.PathEscape(runID))
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	return nil
}

// StartModify launches a prompt-based modification run for an existing
// project and returns the run identifier.
func (c *Client) StartModify(ctx context.Context, projectID, prompt string) (string, error) {
	body := map[string]string{"prompt": prompt}
	var out struct {
		RunID string `json:"run_id"`
	}
	path := fmt.Sprintf("/runs/%s/modify", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", fmt.Errorf("failed to start modify run for %s: %w", projectID, err)
	}
	return out.RunID, nil
}

// KillRun asks the server to stop a running pipeline (best-effort)
func (c *Client) KillRun(ctx context.Context, runID string) error {
	path := fmt.Sprintf("/runs/%s/kill", url.PathEscape(runID))
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to kill run %s: %w", runID, err)
	}
	return nil
}

// GetProject fetches the full authoritative snapshot of a project
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var out Project
	path := fmt.Sprintf("/database/get_project/%s", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", projectID, err)
	}
	return &out, nil
}

// ListProjects fetches the project listing for the current user
func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var out struct {
		Projects []ProjectSummary `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/database/get_projects", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return out.Projects, nil
}

// DeleteProject removes a project from the remote store
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	path := fmt.Sprintf("/database/delete_project/%s", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}
	return nil
}

// UpdateProjectTitle renames a project
func (c *Client) UpdateProjectTitle(ctx context.Context, projectID, title string) error {
	path := fmt.Sprintf("/database/update_project_title/%s", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPut, path, title, nil); err != nil {
		return fmt.Errorf("failed to update title of %s: %w", projectID, err)
	}
	return nil
}

// UpdateFileContent patches a single file's content
func (c *Client) UpdateFileContent(ctx context.Context, projectID, name, content string) error {
	body := map[string]string{"name": name, "content": content}
	path := fmt.Sprintf("/database/projects/%s/files", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to update %s in %s: %w", name, projectID, err)
	}
	return nil
}

// AddFile creates a new file in a project
func (c *Client) AddFile(ctx context.Context, projectID, name, content string) error {
	body := map[string]string{"name": name, "content": content}
	path := fmt.Sprintf("/database/projects/%s/files/add", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", name, projectID, err)
	}
	return nil
}

// DeleteFile removes a file from a project
func (c *Client) DeleteFile(ctx context.Context, projectID, name string) error {
	body := map[string]string{"name": name}
	path := fmt.Sprintf("/database/projects/%s/files/delete", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to delete %s from %s: %w", name, projectID, err)
	}
	return nil
}

// RenameFile renames a file within a project
func (c *Client) RenameFile(ctx context.Context, projectID, oldName, newName string) error {
	body := map[string]string{"old_name": oldName, "new_name": newName}
	path := fmt.Sprintf("/database/projects/%s/files/rename", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to rename %s in %s: %w", oldName, projectID, err)
	}
	return nil
}

// Telemetry fetches the telemetry report for a run
func (c *Client) Telemetry(ctx context.Context, runID string) (*Telemetry, error) {
	var out Telemetry
	path := fmt.Sprintf("/runs/%s/telemetry", url.PathEscape(runID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch telemetry for %s: %w", runID, err)
	}
	return &out, nil
}

// DownloadArtifact streams the packaged artifact for a run into w and
// returns the number of bytes written.
func (c *Client) DownloadArtifact(ctx context.Context, runID string, w io.Writer) (int64, error) {
	path := fmt.Sprintf("/runs/%s/artifact.zip", url.PathEscape(runID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download artifact for %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("failed to download artifact for %s: %w", runID, decodeError(resp))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read artifact body: %w", err)
	}
	return n, nil
}

// EventStream opens the server-sent-event stream for a run. The caller
// owns the returned body and must close it; cancelling ctx also tears
// the stream down. The token travels in the query string because the
// stream endpoint cannot read headers from a browser EventSource.
func (c *Client) EventStream(ctx context.Context, runID string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/runs/%s/events?token=%s",
		c.baseURL, url.PathEscape(runID), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream for %s: %w", runID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeError(resp)
		resp.Body.Close()
		return nil, fmt.Errorf("failed to open event stream for %s: %w", runID, err)
	}

	return resp.Body, nil
}

// do executes one JSON request. A nil out skips response decoding.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError builds an *Error from a non-2xx response
func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		apiErr.Detail = body.Detail
		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(data))
	return apiErr
}
