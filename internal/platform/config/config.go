package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultOutboundTimeout   = 15 * time.Second
	defaultWebhookPerMinute  = 120
	defaultMailchimpBaseTmpl = "https://%s.api.mailchimp.com/3.0"
)

// Config captures all runtime configuration organised by concern. It is built
// once at startup and passed by value; nothing in the core reads ambient
// state after construction.
type Config struct {
	Server      ServerConfig
	Mailchimp   MailchimpConfig
	WooCommerce WooCommerceConfig
	Jobs        JobsConfig
	Outbound    OutboundConfig
	RateLimits  RateLimitConfig
	Features    FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// MailchimpConfig stores CRM API credentials and resource identifiers.
type MailchimpConfig struct {
	APIKey       string
	ServerPrefix string
	StoreID      string
	ListID       string
	// BaseURL overrides the server-prefix derived endpoint; used by tests and
	// proxied deployments.
	BaseURL string
}

// Endpoint returns the effective API base URL for the configured account.
func (c MailchimpConfig) Endpoint() string {
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf(defaultMailchimpBaseTmpl, strings.TrimSpace(c.ServerPrefix))
}

// WooCommerceConfig stores commerce API credentials and endpoint.
type WooCommerceConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	APIBaseURL     string
}

// JobsConfig configures the optional Pub/Sub backed webhook job queue. An
// empty TopicID selects synchronous inline execution.
type JobsConfig struct {
	ProjectID string
	TopicID   string
}

// OutboundConfig bounds calls made to downstream APIs.
type OutboundConfig struct {
	Timeout time.Duration
}

// RateLimitConfig controls request throttling on the webhook route. Zero
// disables limiting.
type RateLimitConfig struct {
	WebhookPerMinute int
}

// FeatureFlags toggle sync paths and logging without redeploying.
type FeatureFlags struct {
	EnableMailchimp   bool
	EnableWooCommerce bool
	EnableLogging     bool
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
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

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// EnvironmentValues returns the effective key/value environment map after
// applying the same precedence rules as Load (dotenv < OS env < explicit env
// map). Callers use the result to initialise dependencies, such as the secret
// fetcher, before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				continue
			}
			values[strings.TrimSpace(parts[0])] = parts[1]
		}
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
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

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the bridge configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
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

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "BRIDGE_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "BRIDGE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "BRIDGE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "BRIDGE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Mailchimp: MailchimpConfig{
			APIKey:       stringWithDefault(lookup, "BRIDGE_MAILCHIMP_API_KEY", ""),
			ServerPrefix: stringWithDefault(lookup, "BRIDGE_MAILCHIMP_SERVER_PREFIX", ""),
			StoreID:      stringWithDefault(lookup, "BRIDGE_MAILCHIMP_STORE_ID", ""),
			ListID:       stringWithDefault(lookup, "BRIDGE_MAILCHIMP_LIST_ID", ""),
			BaseURL:      stringWithDefault(lookup, "BRIDGE_MAILCHIMP_BASE_URL", ""),
		},
		WooCommerce: WooCommerceConfig{
			ConsumerKey:    stringWithDefault(lookup, "BRIDGE_WOO_CONSUMER_KEY", ""),
			ConsumerSecret: stringWithDefault(lookup, "BRIDGE_WOO_CONSUMER_SECRET", ""),
			APIBaseURL:     stringWithDefault(lookup, "BRIDGE_WOO_API_URL", ""),
		},
		Jobs: JobsConfig{
			ProjectID: stringWithDefault(lookup, "BRIDGE_JOBS_PROJECT_ID", ""),
			TopicID:   stringWithDefault(lookup, "BRIDGE_JOBS_TOPIC_ID", ""),
		},
		Outbound: OutboundConfig{
			Timeout: durationWithDefault(lookup, "BRIDGE_OUTBOUND_TIMEOUT", defaultOutboundTimeout),
		},
		RateLimits: RateLimitConfig{
			WebhookPerMinute: intWithDefault(lookup, "BRIDGE_RATELIMIT_WEBHOOK_PER_MIN", defaultWebhookPerMinute),
		},
		Features: FeatureFlags{
			EnableMailchimp:   boolWithDefault(lookup, "BRIDGE_FEATURE_MAILCHIMP", true),
			EnableWooCommerce: boolWithDefault(lookup, "BRIDGE_FEATURE_WOOCOMMERCE", true),
			EnableLogging:     boolWithDefault(lookup, "BRIDGE_FEATURE_LOGGING", true),
		},
	}

	// Resolve credentials when values reference Secret Manager. Absence of a
	// credential is not fatal here; the owning sync adapter reports it at
	// dispatch time so the other path still runs.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Mailchimp.APIKey", &cfg.Mailchimp.APIKey},
		{"WooCommerce.ConsumerKey", &cfg.WooCommerce.ConsumerKey},
		{"WooCommerce.ConsumerSecret", &cfg.WooCommerce.ConsumerSecret},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Outbound.Timeout <= 0 {
		missing = append(missing, "Outbound.Timeout")
	}
	if cfg.Jobs.TopicID != "" && cfg.Jobs.ProjectID == "" {
		missing = append(missing, "Jobs.ProjectID")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		if key == "" {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
