package handlers

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ticketbridge/api/internal/domain"
	"github.com/ticketbridge/api/internal/platform/httpx"
	"github.com/ticketbridge/api/internal/platform/requestctx"
	"github.com/ticketbridge/api/internal/services"
)

const maxWebhookBodySize = 1 << 20

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds the allowed size")
)

// webhookAcceptedBody is the plain-text acknowledgement the ticketing
// platform expects. Anything in the 2xx range stops redelivery.
const webhookAcceptedBody = "Webhook received successfully."

// OrderProcessor accepts a normalized order record for downstream delivery.
type OrderProcessor interface {
	Process(ctx context.Context, order domain.OrderRecord) services.ProcessResult
}

// WebhookHandlers exposes the ticket platform ingestion endpoint.
type WebhookHandlers struct {
	normalizer *services.Normalizer
	processor  OrderProcessor
	limiter    rateLimiter
}

// WebhookHandlersConfig configures WebhookHandlers.
type WebhookHandlersConfig struct {
	Normalizer *services.Normalizer
	Processor  OrderProcessor
	// RateLimit caps deliveries per client IP per minute. Zero disables it.
	RateLimit int
}

// NewWebhookHandlers constructs the ingestion handlers.
func NewWebhookHandlers(cfg WebhookHandlersConfig) (*WebhookHandlers, error) {
	if cfg.Normalizer == nil {
		return nil, errors.New("webhook handlers: normalizer is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("webhook handlers: processor is required")
	}
	return &WebhookHandlers{
		normalizer: cfg.Normalizer,
		processor:  cfg.Processor,
		limiter:    newSimpleRateLimiter(cfg.RateLimit, time.Minute, nil),
	}, nil
}

// Routes registers the webhook endpoint on the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/ticketspice-webhook", h.receive)
}

// receive ingests one webhook delivery. Only structural problems with the
// payload produce an error response; once a record is extracted the sender
// always gets a 2xx, whatever happens downstream.
func (h *WebhookHandlers) receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many webhook deliveries from this address", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	order, err := h.normalizer.Normalize(body)
	if err != nil {
		httpx.WriteError(ctx, w, normalizeError(err))
		return
	}

	result := h.processor.Process(ctx, order)
	logger.Info("webhook accepted",
		zap.String("orderId", order.OrderID),
		zap.Bool("queued", result.Queued),
		zap.Bool("dryRun", order.DryRun),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, webhookAcceptedBody)
}

func normalizeError(err error) httpx.Error {
	switch {
	case errors.Is(err, services.ErrMissingDataSection):
		return httpx.NewError("missing_data", "payload has no data section", http.StatusBadRequest)
	case errors.Is(err, services.ErrMissingEmail):
		return httpx.NewError("missing_email", "payload has no usable billing email", http.StatusBadRequest)
	default:
		return httpx.NewError("malformed_payload", "payload is not a valid webhook body", http.StatusBadRequest)
	}
}

func clientKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	// RealIP rewrites RemoteAddr to a bare address without a port.
	return addr
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
