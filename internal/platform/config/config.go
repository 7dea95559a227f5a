package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultSquareVersion    = "2025-03-19"
	defaultSquareSandboxURL = "https://connect.squareupsandbox.com"
	defaultSquareProdURL    = "https://connect.squareup.com"
	defaultRateLimitStaff   = 120
	defaultRateLimitWebhook = 60
	defaultIdempotencyHdr   = "Idempotency-Key"
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultEmailFrom        = "West Roxbury Framing <info@westroxburyframing.com>"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Square      SquareConfig
	Email       EmailConfig
	Firestore   FirestoreConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SquareConfig holds credentials and endpoints for the remote payment platform.
type SquareConfig struct {
	AccessToken string
	Environment string
	BaseURL     string
	Version     string
	LocationID  string

	// WebhookSignatureKey signs inbound event notifications. Leaving it empty
	// disables verification; that is a deliberate configuration state, not a
	// silent bypass, and is logged loudly at startup.
	WebhookSignatureKey string
	// WebhookURL is the externally visible callback URL the platform signs over.
	WebhookURL string
}

// EmailConfig configures the staff/customer notification sender.
type EmailConfig struct {
	PostmarkToken string
	From          string
	StaffInbox    string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	StaffPerMinute   int
	WebhookPerMinute int
}

// IdempotencyConfig controls the staff-endpoint replay protection middleware.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	environment := strings.ToLower(stringWithDefault(lookup, "OPS_SQUARE_ENV", "sandbox"))
	baseURL := stringWithDefault(lookup, "OPS_SQUARE_BASE_URL", "")
	if baseURL == "" {
		baseURL = defaultSquareSandboxURL
		if environment == "production" {
			baseURL = defaultSquareProdURL
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "OPS_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "OPS_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "OPS_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "OPS_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Square: SquareConfig{
			AccessToken:         stringWithDefault(lookup, "OPS_SQUARE_ACCESS_TOKEN", ""),
			Environment:         environment,
			BaseURL:             strings.TrimRight(baseURL, "/"),
			Version:             stringWithDefault(lookup, "OPS_SQUARE_VERSION", defaultSquareVersion),
			LocationID:          stringWithDefault(lookup, "OPS_SQUARE_LOCATION_ID", ""),
			WebhookSignatureKey: stringWithDefault(lookup, "OPS_SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
			WebhookURL:          webhookURL(lookup),
		},
		Email: EmailConfig{
			PostmarkToken: stringWithDefault(lookup, "OPS_EMAIL_POSTMARK_TOKEN", ""),
			From:          stringWithDefault(lookup, "OPS_EMAIL_FROM", defaultEmailFrom),
			StaffInbox:    stringWithDefault(lookup, "OPS_EMAIL_STAFF_INBOX", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "OPS_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "OPS_FIRESTORE_EMULATOR_HOST", ""),
		},
		RateLimits: RateLimitConfig{
			StaffPerMinute:   intWithDefault(lookup, "OPS_RATE_LIMIT_STAFF_PER_MINUTE", defaultRateLimitStaff),
			WebhookPerMinute: intWithDefault(lookup, "OPS_RATE_LIMIT_WEBHOOK_PER_MINUTE", defaultRateLimitWebhook),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "OPS_IDEMPOTENCY_HEADER", defaultIdempotencyHdr),
			TTL:    durationWithDefault(lookup, "OPS_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Square.AccessToken) == "" {
		missing = append(missing, "Square.AccessToken")
	}
	if strings.TrimSpace(cfg.Square.LocationID) == "" {
		missing = append(missing, "Square.LocationID")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// webhookURL derives the signed callback URL from either the explicit setting
// or the public base URL the site is served from.
func webhookURL(lookup func(string) (string, bool)) string {
	if explicit := stringWithDefault(lookup, "OPS_SQUARE_WEBHOOK_URL", ""); explicit != "" {
		return explicit
	}
	base := strings.TrimRight(stringWithDefault(lookup, "OPS_PUBLIC_BASE_URL", ""), "/")
	if base == "" {
		return ""
	}
	return base + "/api/v1/webhooks/square"
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		trimmed := strings.TrimSpace(value)
		if parsed, err := time.ParseDuration(trimmed); err == nil && parsed > 0 {
			return parsed
		}
		if seconds, err := strconv.Atoi(trimmed); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// loadDotEnv reads KEY=VALUE pairs from the given file, tolerating comments and
// blank lines. A missing file is not an error.
func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}
