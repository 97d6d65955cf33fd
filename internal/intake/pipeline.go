package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/formgate/lead-intake/internal/captcha"
	appconfig "github.com/formgate/lead-intake/internal/config"
	"github.com/formgate/lead-intake/internal/crm"
	"github.com/formgate/lead-intake/internal/observability/metrics"
	"github.com/formgate/lead-intake/internal/ratewindow"
	"github.com/formgate/lead-intake/pkg/logging"
)

// Policy holds the named thresholds and enable flags for every pipeline
// check. Behavior differences between deployments are configuration here,
// not code forks.
type Policy struct {
	AllowedOrigins       []string
	HoneypotPrefix       string
	MinFormTimeSeconds   int
	EnforceFormTime      bool
	RequireSKU           bool
	SuspicionEnabled     bool
	ReferrerCheckEnabled bool
	CaptchaEnabled       bool
	CaptchaMinScore      float64
	RateCeiling          int
}

// PolicyFromConfig maps application configuration onto a pipeline policy.
func PolicyFromConfig(cfg *appconfig.Config) Policy {
	return Policy{
		AllowedOrigins:       cfg.AllowedOrigins,
		HoneypotPrefix:       cfg.HoneypotPrefix,
		MinFormTimeSeconds:   cfg.MinFormTimeSeconds,
		EnforceFormTime:      cfg.EnforceFormTime,
		RequireSKU:           cfg.RequireSKU,
		SuspicionEnabled:     cfg.SuspicionEnabled,
		ReferrerCheckEnabled: cfg.ReferrerCheckEnabled,
		CaptchaEnabled:       cfg.CaptchaEnabled,
		CaptchaMinScore:      cfg.CaptchaMinScore,
		RateCeiling:          cfg.RateLimitPerWindow,
	}
}

// Pipeline evaluates inbound submissions and forwards accepted leads.
type Pipeline struct {
	policy         Policy
	rates          ratewindow.Store
	captcha        captcha.Verifier
	crm            crm.Forwarder
	logger         *logging.Logger
	metrics        *metrics.IntakeMetrics
	forwardTimeout time.Duration
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithCaptchaVerifier sets the CAPTCHA verifier. Required when the policy
// enables CAPTCHA.
func WithCaptchaVerifier(v captcha.Verifier) PipelineOption {
	return func(p *Pipeline) {
		p.captcha = v
	}
}

// WithForwarder sets the CRM forwarder. When nil, accepted leads are logged
// but not forwarded.
func WithForwarder(f crm.Forwarder) PipelineOption {
	return func(p *Pipeline) {
		p.crm = f
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.IntakeMetrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithForwardTimeout bounds the background CRM forward.
func WithForwardTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.forwardTimeout = d
	}
}

// NewPipeline creates an intake pipeline.
func NewPipeline(policy Policy, rates ratewindow.Store, logger *logging.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{
		policy:         policy,
		rates:          rates,
		logger:         logger,
		forwardTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate runs every check in order and, on acceptance, dispatches the CRM
// forward on a background goroutine. Rate accounting runs exactly once,
// after the cheap structural checks and before any outbound call.
func (p *Pipeline) Evaluate(ctx context.Context, sub Submission) Verdict {
	if !originAllowed(sub.Origin, p.policy.AllowedOrigins) {
		p.logger.Warn("rejected: origin not allowed", "origin", sub.Origin, "remote_ip", sub.RemoteIP)
		return reject(ReasonInvalidOrigin)
	}

	if field, tripped := honeypotTripped(sub.Fields, p.policy.HoneypotPrefix); tripped {
		p.logger.Warn("rejected: honeypot tripped", "field", field, "remote_ip", sub.RemoteIP)
		return reject(ReasonBotDetected)
	}

	if formTimeBelow(sub, p.policy.MinFormTimeSeconds) {
		if p.policy.EnforceFormTime {
			p.logger.Warn("rejected: form filled too fast",
				"form_time", sub.Get("form_time"),
				"min_seconds", p.policy.MinFormTimeSeconds,
				"remote_ip", sub.RemoteIP,
			)
			return reject(ReasonTooFast)
		}
		p.logger.Info("form time below threshold, observe-only policy",
			"form_time", sub.Get("form_time"),
			"min_seconds", p.policy.MinFormTimeSeconds,
		)
	}

	if err := validateFields(sub, p.policy.RequireSKU); err != nil {
		p.logger.Info("rejected: field validation failed", "error", err, "remote_ip", sub.RemoteIP)
		return reject(ReasonInvalidInput)
	}

	if p.policy.SuspicionEnabled && suspiciousCombo(sub.Get("name"), sub.Get("phone")) {
		p.logger.Warn("rejected: implausible name/phone combination", "remote_ip", sub.RemoteIP)
		return reject(ReasonSuspiciousCombo)
	}

	if p.policy.ReferrerCheckEnabled && suspiciousReferrer(sub.Get("page_location")) {
		p.logger.Warn("rejected: advertising click id on landing page", "page_location", sub.Get("page_location"))
		return reject(ReasonSuspiciousReferrer)
	}

	count, err := p.rates.Record(ctx, sub.RemoteIP, time.Now())
	if err != nil {
		// The check is advisory; a broken store must not block intake.
		p.logger.Error("rate accounting failed", "error", err, "remote_ip", sub.RemoteIP)
	} else if count > p.policy.RateCeiling {
		p.logger.Warn("rejected: rate ceiling exceeded",
			"remote_ip", sub.RemoteIP,
			"count", count,
			"ceiling", p.policy.RateCeiling,
		)
		return reject(ReasonRateLimited)
	}

	if p.policy.CaptchaEnabled {
		if v := p.verifyCaptcha(ctx, sub); !v.OK {
			return v
		}
	}

	leadID := newLeadID()
	p.dispatchForward(sub, leadID)

	return accepted(leadID)
}

func captchaToken(sub Submission) string {
	for _, key := range []string{"captcha_token", "g-recaptcha-response", "token"} {
		if v := sub.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// verifyCaptcha fails closed: transport errors, malformed responses and
// provider rejections all end in a rejection verdict.
func (p *Pipeline) verifyCaptcha(ctx context.Context, sub Submission) Verdict {
	token := captchaToken(sub)
	if token == "" {
		return reject(ReasonCaptchaRequired)
	}
	if p.captcha == nil {
		p.logger.Error("captcha enabled but no verifier configured, failing closed")
		return reject(ReasonCaptchaFailed)
	}

	start := time.Now()
	result, err := p.captcha.Verify(ctx, token, sub.RemoteIP)
	p.metrics.ObserveCaptchaLatency(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("captcha verification errored, failing closed", "error", err, "remote_ip", sub.RemoteIP)
		return reject(ReasonCaptchaFailed)
	}
	if !result.Success {
		v := reject(ReasonCaptchaFailed)
		v.CaptchaErrors = result.ErrorCodes
		return v
	}
	if result.Score != nil && *result.Score < p.policy.CaptchaMinScore {
		p.logger.Warn("rejected: captcha score below minimum",
			"score", *result.Score,
			"min_score", p.policy.CaptchaMinScore,
		)
		return reject(ReasonCaptchaLowScore)
	}
	return Verdict{OK: true}
}

// buildLead maps the validated submission into the CRM's shape.
func (p *Pipeline) buildLead(sub Submission, leadID string) crm.Lead {
	phone := sub.Get("phone")
	if digits, err := crm.FormatPhone(phone); err == nil {
		phone = digits
	}

	sourceKey := sub.Get("source")
	if sourceKey == "" {
		sourceKey = sub.Get("button_id")
	}
	label := SourceLabel(sourceKey)

	name := sub.Get("name")
	page := sub.Get("page_location")

	comments := fmt.Sprintf("SKU: %s\nSource: %s\nLead ID: %s", sub.Get("sku"), label, leadID)

	return crm.Lead{
		Title:      "Website lead: " + name,
		Name:       name,
		Phone:      phone,
		Email:      sub.Get("email"),
		Company:    sub.Get("company"),
		Comments:   comments,
		SourceID:   "WEB",
		WebformURL: page,
		UTM:        crm.ParseUTM(page),
	}
}

// dispatchForward sends the lead to the CRM without blocking or failing the
// caller's response. The error is captured here with the full payload so a
// lost lead can be recovered from the logs.
func (p *Pipeline) dispatchForward(sub Submission, leadID string) {
	if p.crm == nil {
		p.logger.Info("crm forwarding disabled, lead accepted locally", "lead_id", leadID)
		return
	}

	lead := p.buildLead(sub, leadID)
	timeout := p.forwardTimeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := p.crm.Send(ctx, lead); err != nil {
			payload, _ := json.Marshal(lead)
			p.logger.Error("crm forward failed, lead not delivered",
				"error", err,
				"lead_id", leadID,
				"payload", string(payload),
			)
			p.metrics.ObserveForward("error")
			return
		}
		p.metrics.ObserveForward("ok")
	}()
}
