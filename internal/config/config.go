package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dunamismax/normalflow/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultRepoURL = "https://github.com/MircoWerner/BumpToNormalMap.git"

type Config struct {
	API       APIConfig
	Provision ProvisionConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Webhook   WebhookConfig
	Builder   BuilderConfig
}

type APIConfig struct {
	Addr string
}

type ProvisionConfig struct {
	BaseDir     string
	RepoURL     string
	RepoDir     string
	OutputDir   string
	CloneEngine string
	GitBinary   string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Capacity      int
	Window        time.Duration
	UserIDHeader  string
}

func (r RateLimitConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.RedisAddr,
		Password: r.RedisPassword,
		DB:       r.RedisDB,
	}
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type WebhookConfig struct {
	URL           string
	SigningSecret string
	Timeout       time.Duration
	MaxAttempts   int
}

type BuilderConfig struct {
	BackendURL string
	Tool       string
	// LogFile receives the builder's log; the terminal belongs to the UI.
	LogFile string
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr: env("NORMALFLOW_API_ADDR", ":3000"),
		},
		Provision: ProvisionConfig{
			BaseDir:     env("NORMALFLOW_BASE_DIR", "."),
			RepoURL:     env("NORMALFLOW_REPO_URL", DefaultRepoURL),
			RepoDir:     env("NORMALFLOW_REPO_DIR", "BumpToNormalMap"),
			OutputDir:   env("NORMALFLOW_OUTPUT_DIR", "output"),
			CloneEngine: env("NORMALFLOW_CLONE_ENGINE", "cli"),
			GitBinary:   env("NORMALFLOW_GIT_BINARY", "git"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       envBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Capacity:      envInt("RATE_LIMIT_CAPACITY", 10),
			Window:        envDuration("RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader:  env("RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Webhook: WebhookConfig{
			URL:           env("NORMALFLOW_WEBHOOK_URL", ""),
			SigningSecret: env("NORMALFLOW_WEBHOOK_SECRET", ""),
			Timeout:       envDuration("NORMALFLOW_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:   envInt("NORMALFLOW_WEBHOOK_MAX_ATTEMPTS", 1),
		},
		Builder: BuilderConfig{
			BackendURL: env("NORMALFLOW_BACKEND_URL", "http://localhost:3000"),
			Tool:       env("NORMALFLOW_TOOL", domain.DefaultTool),
			LogFile:    env("NORMALFLOW_BUILDER_LOG", ""),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
