package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Origin guard
	AllowedOrigins []string

	// Bot-signal filters
	HoneypotPrefix     string
	MinFormTimeSeconds int
	EnforceFormTime    bool

	// Field validation policy
	RequireSKU bool

	// Suspicious-pattern heuristics
	SuspicionEnabled     bool
	ReferrerCheckEnabled bool

	// CAPTCHA verification
	CaptchaEnabled   bool
	CaptchaSecret    string
	CaptchaVerifyURL string
	CaptchaMinScore  float64

	// Rate accounting
	RateLimitPerWindow int
	RateWindow         time.Duration
	OuterRatePerMinute int

	// CRM forwarding
	CRMWebhookURL   string
	OutboundTimeout time.Duration

	// Optional Redis-backed rate window store
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{}),

		HoneypotPrefix:     getEnv("HONEYPOT_PREFIX", "hp_"),
		MinFormTimeSeconds: getEnvAsInt("MIN_FORM_TIME_SECONDS", 3),
		EnforceFormTime:    getEnvAsBool("ENFORCE_FORM_TIME", false),

		RequireSKU: getEnvAsBool("REQUIRE_SKU", true),

		SuspicionEnabled:     getEnvAsBool("SUSPICION_ENABLED", false),
		ReferrerCheckEnabled: getEnvAsBool("REFERRER_CHECK_ENABLED", false),

		CaptchaEnabled:   getEnvAsBool("CAPTCHA_ENABLED", false),
		CaptchaSecret:    getEnv("CAPTCHA_SECRET", ""),
		CaptchaVerifyURL: getEnv("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		CaptchaMinScore:  getEnvAsFloat("CAPTCHA_MIN_SCORE", 0.5),

		RateLimitPerWindow: getEnvAsInt("RATE_LIMIT_PER_WINDOW", 3),
		RateWindow:         getEnvAsDuration("RATE_WINDOW", 60*time.Second),
		OuterRatePerMinute: getEnvAsInt("OUTER_RATE_PER_MINUTE", 20),

		CRMWebhookURL:   getEnv("CRM_WEBHOOK_URL", ""),
		OutboundTimeout: getEnvAsDuration("OUTBOUND_TIMEOUT", 5*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable as a string slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
