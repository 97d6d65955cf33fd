// Package crm forwards accepted leads to the CRM system's inbound webhook.
// The forward is best-effort: a failure is logged with the full payload for
// manual recovery and never fails the caller-facing request.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/formgate/lead-intake/pkg/logging"
)

// Forwarder delivers a normalized lead to the CRM.
type Forwarder interface {
	Send(ctx context.Context, lead Lead) error
}

// multiField is the CRM's {VALUE, VALUE_TYPE} list entry for phone/email.
type multiField struct {
	Value     string `json:"VALUE"`
	ValueType string `json:"VALUE_TYPE"`
}

type leadFields struct {
	Title        string       `json:"TITLE"`
	Name         string       `json:"NAME"`
	Phone        []multiField `json:"PHONE"`
	Email        []multiField `json:"EMAIL"`
	CompanyTitle string       `json:"COMPANY_TITLE,omitempty"`
	Comments     string       `json:"COMMENTS,omitempty"`
	SourceID     string       `json:"SOURCE_ID,omitempty"`
	UTMSource    string       `json:"UTM_SOURCE,omitempty"`
	UTMMedium    string       `json:"UTM_MEDIUM,omitempty"`
	UTMCampaign  string       `json:"UTM_CAMPAIGN,omitempty"`
	UTMContent   string       `json:"UTM_CONTENT,omitempty"`
	UTMTerm      string       `json:"UTM_TERM,omitempty"`
	WebformURL   string       `json:"WEBFORM_URL,omitempty"`
}

type leadPayload struct {
	Fields leadFields        `json:"fields"`
	Params map[string]string `json:"params"`
}

// Client posts leads to a fixed webhook URL.
type Client struct {
	webhookURL string
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

// NewClient creates a CRM webhook client.
func NewClient(webhookURL string, opts ...ClientOption) *Client {
	c := &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logging.Default(),
		tracer: otel.Tracer("leadintake.internal.crm"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send posts the lead to the CRM webhook. Callers decide whether the error
// propagates; the intake pipeline logs it and moves on.
func (c *Client) Send(ctx context.Context, lead Lead) error {
	ctx, span := c.tracer.Start(ctx, "crm.send")
	defer span.End()

	payload := leadPayload{
		Fields: leadFields{
			Title:        lead.Title,
			Name:         lead.Name,
			Phone:        []multiField{{Value: lead.Phone, ValueType: "WORK"}},
			Email:        []multiField{{Value: lead.Email, ValueType: "WORK"}},
			CompanyTitle: lead.Company,
			Comments:     lead.Comments,
			SourceID:     lead.SourceID,
			UTMSource:    lead.UTM.Source,
			UTMMedium:    lead.UTM.Medium,
			UTMCampaign:  lead.UTM.Campaign,
			UTMContent:   lead.UTM.Content,
			UTMTerm:      lead.UTM.Term,
			WebformURL:   lead.WebformURL,
		},
		Params: map[string]string{"REGISTER_SONET_EVENT": "Y"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("crm: marshal lead payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("crm: create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("crm: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("crm: webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("lead forwarded to CRM", "title", lead.Title, "source_id", lead.SourceID)
	return nil
}
