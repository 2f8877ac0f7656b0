package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ticketbridge/api/internal/domain"
	"github.com/ticketbridge/api/internal/platform/httpx"
	"github.com/ticketbridge/api/internal/platform/requestctx"
	"github.com/ticketbridge/api/internal/services"
)

const maxPushEnvelopeSize = 2 << 20

// SyncRunner executes the dual downstream sync for an already-normalized
// order under explicit feature gates.
type SyncRunner interface {
	RunSync(ctx context.Context, order domain.OrderRecord, gates services.SyncGates) []services.SyncOutcome
}

// InternalJobHandlers receives queued webhook jobs pushed back by Pub/Sub.
type InternalJobHandlers struct {
	runner SyncRunner
}

// NewInternalJobHandlers constructs the internal job endpoints.
func NewInternalJobHandlers(runner SyncRunner) (*InternalJobHandlers, error) {
	if runner == nil {
		return nil, errors.New("internal job handlers: sync runner is required")
	}
	return &InternalJobHandlers{runner: runner}, nil
}

// Routes registers the internal job endpoints on the provided router.
func (h *InternalJobHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/process-webhook", h.processWebhook)
}

// pushEnvelope is the Pub/Sub push delivery wrapper.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// processWebhook runs the queued dual sync. Only a malformed envelope earns a
// 400; a sync failure still acknowledges the message, because redelivering it
// would repeat the same calls against the same downstream state.
func (h *InternalJobHandlers) processWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	body, err := readLimitedBody(r, maxPushEnvelopeSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_envelope", err.Error(), http.StatusBadRequest))
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_envelope", "push envelope is not valid JSON", http.StatusBadRequest))
		return
	}
	if len(envelope.Message.Data) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_envelope", "push envelope has no message data", http.StatusBadRequest))
		return
	}

	var job services.WebhookJobMessage
	if err := json.Unmarshal(envelope.Message.Data, &job); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_envelope", "message data is not a webhook job", http.StatusBadRequest))
		return
	}

	order := job.Order.ToOrder()
	gates := services.SyncGates{
		Mailchimp:   job.SyncMailchimp,
		WooCommerce: job.SyncWooCommerce,
	}

	outcomes := h.runner.RunSync(ctx, order, gates)

	failed := 0
	for _, outcome := range outcomes {
		failed += len(outcome.Failed())
	}
	logger.Info("webhook job processed",
		zap.String("orderId", order.OrderID),
		zap.String("messageId", envelope.Message.MessageID),
		zap.Int("failedSteps", failed),
	)

	w.WriteHeader(http.StatusNoContent)
}
