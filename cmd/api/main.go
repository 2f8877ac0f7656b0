package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ticketbridge/api/internal/handlers"
	"github.com/ticketbridge/api/internal/mailchimp"
	"github.com/ticketbridge/api/internal/platform/config"
	"github.com/ticketbridge/api/internal/platform/jobs"
	"github.com/ticketbridge/api/internal/platform/observability"
	"github.com/ticketbridge/api/internal/platform/secrets"
	"github.com/ticketbridge/api/internal/services"
	"github.com/ticketbridge/api/internal/woocommerce"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("bridge")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// The logging toggle swaps the application logger for a no-op one; the
	// process still logs its own startup and shutdown.
	appLogger := logger
	if !cfg.Features.EnableLogging {
		appLogger = zap.NewNop()
	}

	outbound := &http.Client{Timeout: cfg.Outbound.Timeout}

	mailchimpSyncer, err := newMailchimpSyncer(cfg, outbound, appLogger)
	if err != nil {
		logger.Fatal("failed to initialise mailchimp adapter", zap.Error(err))
	}
	wooSyncer, err := newWooCommerceSyncer(cfg, outbound, appLogger)
	if err != nil {
		logger.Fatal("failed to initialise woocommerce adapter", zap.Error(err))
	}

	var publisher services.WebhookJobPublisher
	var pubsubClient *pubsub.Client
	if cfg.Jobs.TopicID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Jobs.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(cfg.Jobs.TopicID)
		publisher, err = jobs.NewPubSubWebhookPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise webhook job publisher", zap.Error(err))
		}
		logger.Info("webhook jobs queued via pubsub",
			zap.String("project", cfg.Jobs.ProjectID),
			zap.String("topic", cfg.Jobs.TopicID),
		)
	} else {
		logger.Info("no job topic configured; webhooks processed inline")
	}
	defer func() {
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	webhookService, err := services.NewWebhookService(services.WebhookServiceDeps{
		Mailchimp:   mailchimpSyncer,
		WooCommerce: wooSyncer,
		Gates: services.SyncGates{
			Mailchimp:   cfg.Features.EnableMailchimp,
			WooCommerce: cfg.Features.EnableWooCommerce,
		},
		Publisher: publisher,
		Logger:    eventLogger(appLogger.Named("sync")),
	})
	if err != nil {
		logger.Fatal("failed to initialise webhook service", zap.Error(err))
	}

	webhookHandlers, err := handlers.NewWebhookHandlers(handlers.WebhookHandlersConfig{
		Normalizer: services.NewNormalizer(services.NormalizerDeps{}),
		Processor:  webhookService,
		RateLimit:  cfg.RateLimits.WebhookPerMinute,
	})
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}

	jobHandlers, err := handlers.NewInternalJobHandlers(webhookService)
	if err != nil {
		logger.Fatal("failed to initialise job handlers", zap.Error(err))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(appLogger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(appLogger),
		),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithInternalRoutes(jobHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("ticketbridge api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newMailchimpSyncer(cfg config.Config, outbound *http.Client, logger *zap.Logger) (*mailchimp.Syncer, error) {
	mc := cfg.Mailchimp
	hasCreds := mc.APIKey != "" && mc.StoreID != "" && mc.ListID != "" &&
		(mc.ServerPrefix != "" || mc.BaseURL != "")

	client, err := mailchimp.NewClient(mailchimp.ClientConfig{
		BaseURL:    mc.Endpoint(),
		APIKey:     mc.APIKey,
		HTTPClient: outbound,
		Logger:     eventLogger(logger.Named("mailchimp")),
	})
	if err != nil {
		return nil, err
	}
	return mailchimp.NewSyncer(mailchimp.SyncerConfig{
		Client:         client,
		StoreID:        valueOr(mc.StoreID, "unconfigured"),
		ListID:         valueOr(mc.ListID, "unconfigured"),
		HasCredentials: hasCreds,
		Logger:         eventLogger(logger.Named("mailchimp")),
	})
}

func newWooCommerceSyncer(cfg config.Config, outbound *http.Client, logger *zap.Logger) (*woocommerce.Syncer, error) {
	wc := cfg.WooCommerce
	hasCreds := wc.ConsumerKey != "" && wc.ConsumerSecret != "" && wc.APIBaseURL != ""

	// The adapter skips every call without credentials, so an unconfigured
	// store only needs a syntactically valid base url.
	client, err := woocommerce.NewClient(woocommerce.ClientConfig{
		BaseURL:        valueOr(wc.APIBaseURL, "https://localhost/wp-json/wc/v3"),
		ConsumerKey:    wc.ConsumerKey,
		ConsumerSecret: wc.ConsumerSecret,
		HTTPClient:     outbound,
		Logger:         eventLogger(logger.Named("woocommerce")),
	})
	if err != nil {
		return nil, err
	}
	return woocommerce.NewSyncer(woocommerce.SyncerConfig{
		Client:         client,
		HasCredentials: hasCreds,
		Logger:         eventLogger(logger.Named("woocommerce")),
	})
}

// eventLogger adapts a zap logger to the event/fields contract the services
// and adapters log through.
func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	defaultProject := lookup("BRIDGE_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("BRIDGE_JOBS_PROJECT_ID")
	}
	fallbackPath := lookup("BRIDGE_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("BRIDGE_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
