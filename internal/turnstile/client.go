// Package turnstile verifies Cloudflare Turnstile tokens submitted with
// key registrations.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Sentinel errors for verification failures.
var (
	ErrTokenInvalid = errors.New("turnstile token invalid")
	ErrUnreachable  = errors.New("turnstile unreachable")
)

// Verifier checks a turnstile token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Client implements Verifier against the Cloudflare siteverify endpoint.
type Client struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewClient creates a turnstile Client.
func NewClient(secret string, timeout time.Duration) *Client {
	return &Client{
		secret:    secret,
		verifyURL: defaultVerifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrTokenInvalid
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: siteverify returned %d", ErrUnreachable, resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode siteverify response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", ErrTokenInvalid, strings.Join(body.ErrorCodes, ","))
	}
	return nil
}

// NoopVerifier accepts every token. Used in development when no
// turnstile secret is configured.
type NoopVerifier struct{}

func (NoopVerifier) Verify(_ context.Context, _, _ string) error {
	return nil
}
