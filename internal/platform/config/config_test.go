package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"OPS_SQUARE_ACCESS_TOKEN": "sq0atp-test",
			"OPS_SQUARE_LOCATION_ID":  "L123",
		}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Server.Port)
	}
	if cfg.Square.BaseURL != "https://connect.squareupsandbox.com" {
		t.Fatalf("default base url = %q", cfg.Square.BaseURL)
	}
	if cfg.Square.Version != "2025-03-19" {
		t.Fatalf("default version = %q", cfg.Square.Version)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("default idempotency ttl = %v", cfg.Idempotency.TTL)
	}
}

func TestLoadProductionBaseURL(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"OPS_SQUARE_ACCESS_TOKEN": "sq0atp-test",
			"OPS_SQUARE_LOCATION_ID":  "L123",
			"OPS_SQUARE_ENV":          "production",
		}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Square.BaseURL != "https://connect.squareup.com" {
		t.Fatalf("production base url = %q", cfg.Square.BaseURL)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{}))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", fields)
	}
}

func TestWebhookURLFromPublicBase(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"OPS_SQUARE_ACCESS_TOKEN": "sq0atp-test",
			"OPS_SQUARE_LOCATION_ID":  "L123",
			"OPS_PUBLIC_BASE_URL":     "https://westroxburyframing.com/",
		}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := "https://westroxburyframing.com/api/v1/webhooks/square"
	if cfg.Square.WebhookURL != want {
		t.Fatalf("webhook url = %q, want %q", cfg.Square.WebhookURL, want)
	}
}

func TestLoadDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "OPS_SQUARE_ACCESS_TOKEN=from-dotenv\nOPS_SQUARE_LOCATION_ID=L456\n# comment\nOPS_SERVER_PORT=9090\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{"OPS_SERVER_PORT": "7070"}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Square.AccessToken != "from-dotenv" {
		t.Fatalf("dotenv token not applied: %q", cfg.Square.AccessToken)
	}
	// Explicit map wins over dotenv.
	if cfg.Server.Port != "7070" {
		t.Fatalf("explicit map should take precedence, port = %q", cfg.Server.Port)
	}
}
