package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultLocale != "en" {
		t.Fatalf("default locale = %q, want en", cfg.DefaultLocale)
	}
	if cfg.WorkerConcurrency != 2 {
		t.Fatalf("worker concurrency = %d, want 2", cfg.WorkerConcurrency)
	}
	if cfg.PublishPollEvery != 2*time.Second || cfg.PublishPollMax != 30 {
		t.Fatalf("poll settings = %v/%d, want 2s/30", cfg.PublishPollEvery, cfg.PublishPollMax)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("PUBLISH_POLL_MAX_ATTEMPTS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.WorkerConcurrency != 1 {
		t.Fatalf("worker concurrency = %d, want the zero override clamped to 1", cfg.WorkerConcurrency)
	}
	if cfg.PublishPollMax != 5 {
		t.Fatalf("poll max = %d, want 5", cfg.PublishPollMax)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("allowed origins = %v, want trimmed non-empty entries", cfg.AllowedOrigins)
	}
}
