// Package client is a Go client for a remote burst server. It wraps the
// HTTP API and follows run events over the WebSocket stream.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	comp, err := c.Compile(ctx, raw)
//	rep, err := c.StartRun(ctx, comp.Plan.ID)
//
//	events, err := c.Watch(ctx, rep.RunID.String())
//	for evt := range events {
//	    fmt.Println(evt.Type)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/burst/api"
	"github.com/xraph/burst/export"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/replay"
	"github.com/xraph/burst/run"
)

// Client talks to a burst server.
type Client struct {
	baseURL string
	http    *http.Client
	format  string
	logger  *slog.Logger
	token   string

	creditBatch int64
	bufferSize  int
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        http.DefaultClient,
		format:      "json",
		logger:      slog.Default(),
		creditBatch: 100,
		bufferSize:  64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("burst/client: %d: %s", e.StatusCode, e.Message)
}

// PlanEntry is one entry of a compiled plan as returned by the server.
type PlanEntry struct {
	Offset     float64 `json:"offset_seconds"`
	Template   int     `json:"template_index"`
	Occurrence int     `json:"occurrence"`
	Kind       string  `json:"kind"`
	Action     string  `json:"action,omitempty"`
	Summary    string  `json:"summary"`
}

// Plan is the server's description of a compiled plan.
type Plan struct {
	ID            string      `json:"id"`
	DurationBound float64     `json:"duration_bound_seconds"`
	Entries       []PlanEntry `json:"entries"`
}

// Compilation is the result of Compile and GetPlan.
type Compilation struct {
	Plan    Plan                   `json:"plan"`
	Repairs []string               `json:"repairs,omitempty"`
	Summary []plan.TemplateSummary `json:"summary"`
}

// Compile uploads raw generator output and returns the compiled plan.
func (c *Client) Compile(ctx context.Context, raw string) (*Compilation, error) {
	var out Compilation
	err := c.do(ctx, http.MethodPost, "/v1/plans", api.CompileRequest{Raw: raw}, http.StatusCreated, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPlan returns a compiled plan by ID.
func (c *Client) GetPlan(ctx context.Context, planID string) (*Compilation, error) {
	var out Compilation
	if err := c.do(ctx, http.MethodGet, "/v1/plans/"+planID, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartRun starts a run of a compiled plan.
func (c *Client) StartRun(ctx context.Context, planID string) (*run.Report, error) {
	return c.startRun(ctx, api.StartRunRequest{PlanID: planID})
}

// StartRaw compiles raw generator output and runs it.
func (c *Client) StartRaw(ctx context.Context, raw string) (*run.Report, error) {
	return c.startRun(ctx, api.StartRunRequest{Raw: raw})
}

func (c *Client) startRun(ctx context.Context, req api.StartRunRequest) (*run.Report, error) {
	var out run.Report
	if err := c.do(ctx, http.MethodPost, "/v1/runs", req, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun returns the current report of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (*run.Report, error) {
	var out run.Report
	if err := c.do(ctx, http.MethodGet, "/v1/runs/"+runID, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns the retained runs, oldest first.
func (c *Client) ListRuns(ctx context.Context) ([]*run.Report, error) {
	var out api.ListRunsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/runs", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Abort aborts a run.
func (c *Client) Abort(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/v1/runs/"+runID+"/abort", nil, http.StatusAccepted, nil)
}

// ExportPostman builds a Postman collection on the server.
func (c *Client) ExportPostman(ctx context.Context, req api.ExportRequest) (*export.Collection, error) {
	var out export.Collection
	if err := c.do(ctx, http.MethodPost, "/v1/export/postman", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Replays lists the server's replay entries.
func (c *Client) Replays(ctx context.Context) ([]replay.Entry, error) {
	var out []replay.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/replays", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns engine and stream counters.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends body as JSON and decodes a want response into out.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("burst/client: marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("burst/client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("burst/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e api.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("burst/client: decode %s %s: %w", method, path, err)
	}
	return nil
}
