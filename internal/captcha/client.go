// Package captcha verifies CAPTCHA tokens against the provider's remote
// verification endpoint. Any transport or decode failure is treated as a
// verification failure (fail closed).
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/formgate/lead-intake/pkg/logging"
)

// Result is the provider's verification outcome. Score is nil when the
// provider does not supply one.
type Result struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verifier performs one token verification per call.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (*Result, error)
}

// Client is an HTTP verifier for reCAPTCHA-compatible providers.
type Client struct {
	verifyURL  string
	secret     string
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a verification client for the given endpoint and secret.
func NewClient(verifyURL, secret string, opts ...ClientOption) *Client {
	c := &Client{
		verifyURL: verifyURL,
		secret:    secret,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logging.Default(),
		tracer: otel.Tracer("leadintake.internal.captcha"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Verify posts the token to the provider and decodes the outcome. The
// returned error covers transport and decode failures only; a well-formed
// negative response comes back as Result.Success == false.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "captcha.verify")
	defer span.End()

	form := url.Values{
		"secret":   {c.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("captcha: create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("captcha: verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captcha: verify returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("captcha: decode verify response: %w", err)
	}

	if !result.Success {
		c.logger.Warn("captcha verification rejected", "error_codes", result.ErrorCodes)
	}

	return &result, nil
}
