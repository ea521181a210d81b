// Package planner talks to the external query-planning service that turns a
// question into SQL, runs it against the warehouse and summarizes the rows.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// ErrNotConfigured is returned when no planner URL was configured
var ErrNotConfigured = errors.New("planner url is not configured")

// Client implements domain.QueryPlanner over HTTP
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a planner client. A zero timeout falls back to 60s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the client has somewhere to send requests
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

type planError struct {
	Error string `json:"error"`
}

// Plan sends the question with its conversational context and returns the
// computed result.
func (c *Client) Plan(ctx context.Context, req domain.PlanRequest) (*domain.PlanResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/plan", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var perr planError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &perr) == nil && perr.Error != "" {
			return nil, fmt.Errorf("planner returned status %d: %s", resp.StatusCode, perr.Error)
		}
		return nil, fmt.Errorf("planner returned status %d", resp.StatusCode)
	}

	var planResp domain.PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if planResp.Result.RowCount == 0 && len(planResp.Result.Rows) > 0 {
		planResp.Result.RowCount = len(planResp.Result.Rows)
	}

	return &planResp, nil
}

var _ domain.QueryPlanner = (*Client)(nil)
