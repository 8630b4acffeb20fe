package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dunamismax/normalflow/internal/api"
	"github.com/dunamismax/normalflow/internal/config"
	"github.com/dunamismax/normalflow/internal/provision"
	"github.com/dunamismax/normalflow/internal/ratelimit"
	"github.com/dunamismax/normalflow/internal/telemetry"
	"github.com/dunamismax/normalflow/internal/webhook"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "normalflow-api",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	cloner, err := provision.NewCloner(cfg.Provision.CloneEngine, cfg.Provision.GitBinary)
	if err != nil {
		logger.Fatalf("clone engine: %v", err)
	}
	provisioner, err := provision.New(logger, cloner, provision.Config{
		RepoURL:   cfg.Provision.RepoURL,
		RepoDir:   filepath.Join(cfg.Provision.BaseDir, cfg.Provision.RepoDir),
		OutputDir: filepath.Join(cfg.Provision.BaseDir, cfg.Provision.OutputDir),
	})
	if err != nil {
		logger.Fatalf("provisioner setup failed: %v", err)
	}

	opts := api.Options{
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
	}
	if cfg.RateLimit.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		limiter, err := ratelimit.Connect(ctx, cfg.RateLimit.RedisOptions(), cfg.RateLimit.Capacity, cfg.RateLimit.Window)
		cancel()
		if err != nil {
			logger.Printf("rate limiting disabled: %v", err)
		} else {
			defer func() {
				if err := limiter.Close(); err != nil {
					logger.Printf("rate limiter close error: %v", err)
				}
			}()
			opts.RateLimiter = limiter
			logger.Printf("rate limiting enabled capacity=%d window=%s redis=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window, cfg.RateLimit.RedisAddr)
		}
	}
	if cfg.Webhook.URL != "" {
		opts.Notifier = webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Webhook.SigningSecret,
			Timeout:       cfg.Webhook.Timeout,
			MaxAttempts:   cfg.Webhook.MaxAttempts,
		})
		opts.WebhookURL = cfg.Webhook.URL
	}

	app := api.NewServer(logger, provisioner, opts)

	// Clones can take a while; the write timeout has to cover one.
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s repo=%s output=%s engine=%s", cfg.API.Addr, provisioner.RepoDir(), provisioner.OutputDir(), cfg.Provision.CloneEngine)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	app.Wait()
}
