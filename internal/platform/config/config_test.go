package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Server.Port)
	}
	if cfg.Outbound.Timeout != 15*time.Second {
		t.Fatalf("default outbound timeout = %s", cfg.Outbound.Timeout)
	}
	if !cfg.Features.EnableMailchimp || !cfg.Features.EnableWooCommerce || !cfg.Features.EnableLogging {
		t.Fatalf("feature toggles should default on: %+v", cfg.Features)
	}
	if cfg.Jobs.TopicID != "" {
		t.Fatalf("jobs topic should default empty, got %q", cfg.Jobs.TopicID)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"BRIDGE_SERVER_PORT":              "9090",
		"BRIDGE_MAILCHIMP_API_KEY":        "key-us21",
		"BRIDGE_MAILCHIMP_SERVER_PREFIX":  "us21",
		"BRIDGE_MAILCHIMP_STORE_ID":       "store-1",
		"BRIDGE_MAILCHIMP_LIST_ID":        "list-1",
		"BRIDGE_WOO_CONSUMER_KEY":         "ck_test",
		"BRIDGE_WOO_CONSUMER_SECRET":      "cs_test",
		"BRIDGE_WOO_API_URL":              "https://shop.example.com/wp-json/wc/v3",
		"BRIDGE_OUTBOUND_TIMEOUT":         "5s",
		"BRIDGE_FEATURE_WOOCOMMERCE":      "off",
		"BRIDGE_RATELIMIT_WEBHOOK_PER_MIN": "30",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("port override not applied: %q", cfg.Server.Port)
	}
	if cfg.Mailchimp.Endpoint() != "https://us21.api.mailchimp.com/3.0" {
		t.Fatalf("mailchimp endpoint = %q", cfg.Mailchimp.Endpoint())
	}
	if cfg.WooCommerce.APIBaseURL != "https://shop.example.com/wp-json/wc/v3" {
		t.Fatalf("woo base url = %q", cfg.WooCommerce.APIBaseURL)
	}
	if cfg.Outbound.Timeout != 5*time.Second {
		t.Fatalf("outbound timeout = %s", cfg.Outbound.Timeout)
	}
	if cfg.Features.EnableWooCommerce {
		t.Fatalf("woocommerce toggle should be off")
	}
	if cfg.RateLimits.WebhookPerMinute != 30 {
		t.Fatalf("webhook rate = %d", cfg.RateLimits.WebhookPerMinute)
	}
}

func TestMailchimpBaseURLOverridesPrefix(t *testing.T) {
	cfg := MailchimpConfig{ServerPrefix: "us21", BaseURL: "http://127.0.0.1:9999/3.0/"}
	if got := cfg.Endpoint(); got != "http://127.0.0.1:9999/3.0" {
		t.Fatalf("Endpoint = %q", got)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://mailchimp-api-key" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "resolved-key", nil
	})

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"BRIDGE_MAILCHIMP_API_KEY": "sm://mailchimp-api-key",
		}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Mailchimp.APIKey != "resolved-key" {
		t.Fatalf("secret not resolved: %q", cfg.Mailchimp.APIKey)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(SecretResolverFunc(func(context.Context, string) (string, error) {
			return "", boom
		})),
		WithEnvMap(map[string]string{
			"BRIDGE_WOO_CONSUMER_SECRET": "secret://woo-secret",
		}))
	if err == nil {
		t.Fatalf("expected error")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("underlying error not preserved")
	}
}

func TestLoadValidatesJobsProject(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"BRIDGE_JOBS_TOPIC_ID": "webhook-jobs",
	}))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}
