package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "hp_", cfg.HoneypotPrefix)
	assert.Equal(t, 3, cfg.MinFormTimeSeconds)
	assert.False(t, cfg.EnforceFormTime)
	assert.True(t, cfg.RequireSKU)
	assert.False(t, cfg.CaptchaEnabled)
	assert.Equal(t, 0.5, cfg.CaptchaMinScore)
	assert.Equal(t, 3, cfg.RateLimitPerWindow)
	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, 20, cfg.OuterRatePerMinute)
	assert.Equal(t, 5*time.Second, cfg.OutboundTimeout)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "example.com, example.org ,")
	t.Setenv("MIN_FORM_TIME_SECONDS", "1")
	t.Setenv("ENFORCE_FORM_TIME", "true")
	t.Setenv("CAPTCHA_ENABLED", "true")
	t.Setenv("CAPTCHA_MIN_SCORE", "0.7")
	t.Setenv("RATE_LIMIT_PER_WINDOW", "4")
	t.Setenv("RATE_WINDOW", "30s")
	t.Setenv("CRM_WEBHOOK_URL", "https://crm.example.com/hook")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"example.com", "example.org"}, cfg.AllowedOrigins)
	assert.Equal(t, 1, cfg.MinFormTimeSeconds)
	assert.True(t, cfg.EnforceFormTime)
	assert.True(t, cfg.CaptchaEnabled)
	assert.Equal(t, 0.7, cfg.CaptchaMinScore)
	assert.Equal(t, 4, cfg.RateLimitPerWindow)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, "https://crm.example.com/hook", cfg.CRMWebhookURL)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MIN_FORM_TIME_SECONDS", "soon")
	t.Setenv("CAPTCHA_MIN_SCORE", "high")
	t.Setenv("RATE_WINDOW", "a while")

	cfg := Load()

	assert.Equal(t, 3, cfg.MinFormTimeSeconds)
	assert.Equal(t, 0.5, cfg.CaptchaMinScore)
	assert.Equal(t, 60*time.Second, cfg.RateWindow)
}
