package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/formgate/lead-intake/internal/api/router"
	"github.com/formgate/lead-intake/internal/captcha"
	appconfig "github.com/formgate/lead-intake/internal/config"
	"github.com/formgate/lead-intake/internal/crm"
	"github.com/formgate/lead-intake/internal/intake"
	"github.com/formgate/lead-intake/internal/observability/metrics"
	"github.com/formgate/lead-intake/internal/ratewindow"
	"github.com/formgate/lead-intake/pkg/logging"
)

func main() {
	// .env is optional; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	outboundClient := &http.Client{Timeout: cfg.OutboundTimeout}

	rates := buildRateStore(context.Background(), cfg, logger)
	intakeMetrics := metrics.NewIntakeMetrics(nil)

	pipelineOpts := []intake.PipelineOption{
		intake.WithMetrics(intakeMetrics),
		intake.WithForwardTimeout(cfg.OutboundTimeout),
	}
	if cfg.CaptchaEnabled {
		pipelineOpts = append(pipelineOpts, intake.WithCaptchaVerifier(
			captcha.NewClient(cfg.CaptchaVerifyURL, cfg.CaptchaSecret,
				captcha.WithHTTPClient(outboundClient),
				captcha.WithLogger(logger.With("component", "captcha")),
			),
		))
	}
	if cfg.CRMWebhookURL != "" {
		pipelineOpts = append(pipelineOpts, intake.WithForwarder(
			crm.NewClient(cfg.CRMWebhookURL,
				crm.WithHTTPClient(outboundClient),
				crm.WithLogger(logger.With("component", "crm")),
			),
		))
	} else {
		logger.Warn("CRM_WEBHOOK_URL not set, accepted leads will not be forwarded")
	}

	intakeLogger := logger.With("component", "intake")
	pipeline := intake.NewPipeline(intake.PolicyFromConfig(cfg), rates, intakeLogger, pipelineOpts...)
	intakeHandler := intake.NewHandler(pipeline, intakeLogger, intakeMetrics)

	r := router.New(&router.Config{
		Logger:             logger,
		IntakeHandler:      intakeHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.AllowedOrigins,
		OuterRatePerMinute: cfg.OuterRatePerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildRateStore selects the shared Redis window store when Redis is
// configured and reachable, otherwise the in-process one.
func buildRateStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) ratewindow.Store {
	if cfg.RedisAddr == "" {
		return ratewindow.NewMemoryStore(cfg.RateWindow)
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, using in-process rate accounting", "error", err)
		return ratewindow.NewMemoryStore(cfg.RateWindow)
	}

	logger.Info("rate accounting backed by redis", "addr", cfg.RedisAddr)
	return ratewindow.NewRedisStore(client, cfg.RateWindow)
}
