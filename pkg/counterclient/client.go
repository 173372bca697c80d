package counterclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrServerError is returned when the counter API responds with a
// non-success status. Vote callers treat it as a rollback trigger.
var ErrServerError = errors.New("counter api error")

// Vote outcomes as reported by the server.
const (
	OutcomeVoted        = "voted"
	OutcomeAlreadyVoted = "already_voted"
)

// Client binds the counter endpoints over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// VoteCounts fetches the tool vote aggregates.
func (c *Client) VoteCounts(ctx context.Context) (map[string]int64, error) {
	return c.getCounts(ctx, "/votes")
}

// RequestVoteCounts fetches the feature-request vote aggregates.
func (c *Client) RequestVoteCounts(ctx context.Context) (map[string]int64, error) {
	return c.getCounts(ctx, "/requests/votes")
}

// ViewCounts fetches the view aggregates.
func (c *Client) ViewCounts(ctx context.Context) (map[string]int64, error) {
	return c.getCounts(ctx, "/views")
}

// CastVote posts a tool vote and returns the server's outcome
// discriminator ("voted" or "already_voted").
func (c *Client) CastVote(ctx context.Context, target, voterID string) (string, error) {
	return c.postVote(ctx, "/votes", map[string]string{
		"toolId":  target,
		"voterId": voterID,
	})
}

// CastRequestVote posts a feature-request vote.
func (c *Client) CastRequestVote(ctx context.Context, requestID, voterID string) (string, error) {
	return c.postVote(ctx, "/requests/votes", map[string]string{
		"requestId": requestID,
		"voterId":   voterID,
	})
}

// AddView records a page view. Fire-and-forget on the caller side; a
// failure is not retried.
func (c *Client) AddView(ctx context.Context, target string) error {
	body, _ := json.Marshal(map[string]string{"toolId": target})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/views", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build view request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post view: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}
	return nil
}

func (c *Client) getCounts(ctx context.Context, path string) (map[string]int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build counts request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	var counts map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	return counts, nil
}

func (c *Client) postVote(ctx context.Context, path string, payload map[string]string) (string, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build vote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post vote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	var out struct {
		Success bool   `json:"success"`
		Result  string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode vote response: %w", err)
	}
	if !out.Success {
		return "", ErrServerError
	}
	return out.Result, nil
}
