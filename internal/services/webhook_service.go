package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ticketbridge/api/internal/domain"
)

const (
	// TargetMailchimp names the CRM sync path in outcomes and loggers.
	TargetMailchimp = "mailchimp"
	// TargetWooCommerce names the commerce sync path in outcomes and loggers.
	TargetWooCommerce = "woocommerce"

	// SkipReasonDisabled marks a path switched off by its feature toggle.
	SkipReasonDisabled = "feature disabled"

	eventWebhookQueued = "webhook.job.queued"
	eventSyncFinished  = "webhook.sync.finished"
)

// SyncGates carries the feature toggles that decide which downstream paths a
// delivery is dispatched to. They are captured once per delivery so queued
// jobs replay the decision made at enqueue time.
type SyncGates struct {
	Mailchimp   bool
	WooCommerce bool
}

// ProcessResult reports how the webhook service handled one delivery.
type ProcessResult struct {
	Queued   bool
	JobID    string
	Outcomes []SyncOutcome
}

// WebhookServiceDeps enumerates collaborators required to construct the service.
type WebhookServiceDeps struct {
	Mailchimp   Syncer
	WooCommerce Syncer
	Gates       SyncGates
	Publisher   WebhookJobPublisher
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// WebhookService fans an order record out to the two downstream sync paths.
// The paths are independent: one path failing, skipping, or missing
// credentials never blocks the other, and no step is ever rolled back.
type WebhookService struct {
	mailchimp   Syncer
	woocommerce Syncer
	gates       SyncGates
	publisher   WebhookJobPublisher
	clock       func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewWebhookService wires dependencies into a WebhookService.
func NewWebhookService(deps WebhookServiceDeps) (*WebhookService, error) {
	if deps.Mailchimp == nil {
		return nil, errors.New("webhook service: mailchimp syncer is required")
	}
	if deps.WooCommerce == nil {
		return nil, errors.New("webhook service: woocommerce syncer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &WebhookService{
		mailchimp:   deps.Mailchimp,
		woocommerce: deps.WooCommerce,
		gates:       deps.Gates,
		publisher:   deps.Publisher,
		clock:       func() time.Time { return clock().UTC() },
		logger:      logger,
	}, nil
}

// Process handles one normalized delivery. With a job publisher configured
// the record is enqueued and processing happens out of band; otherwise both
// sync paths run inline before returning. A publish failure falls back to
// inline execution so the delivery is not dropped.
func (s *WebhookService) Process(ctx context.Context, order domain.OrderRecord) ProcessResult {
	if s.publisher != nil {
		msg := WebhookJobMessage{
			OrderID:         order.OrderID,
			Order:           SnapshotFromOrder(order),
			SyncMailchimp:   s.gates.Mailchimp,
			SyncWooCommerce: s.gates.WooCommerce,
			QueuedAt:        s.clock(),
		}
		id, err := s.publisher.PublishWebhookJob(ctx, msg)
		if err == nil {
			s.logger(ctx, eventWebhookQueued, map[string]any{
				"orderId":   order.OrderID,
				"messageId": id,
			})
			return ProcessResult{Queued: true, JobID: id}
		}
		s.logger(ctx, "webhook.job.publish_failed", map[string]any{
			"orderId": order.OrderID,
			"error":   err.Error(),
		})
	}

	return ProcessResult{Outcomes: s.RunSync(ctx, order, s.gates)}
}

// RunSync dispatches the record to both adapters under the supplied gates.
// The adapters only read the immutable record, so they run concurrently.
func (s *WebhookService) RunSync(ctx context.Context, order domain.OrderRecord, gates SyncGates) []SyncOutcome {
	outcomes := make([]SyncOutcome, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		outcomes[0] = s.runPath(gctx, s.mailchimp, TargetMailchimp, gates.Mailchimp, order)
		return nil
	})
	g.Go(func() error {
		outcomes[1] = s.runPath(gctx, s.woocommerce, TargetWooCommerce, gates.WooCommerce, order)
		return nil
	})
	_ = g.Wait()

	return outcomes
}

func (s *WebhookService) runPath(ctx context.Context, syncer Syncer, target string, enabled bool, order domain.OrderRecord) SyncOutcome {
	if !enabled {
		return SkippedOutcome(target, SkipReasonDisabled)
	}

	outcome := syncer.Sync(ctx, order)

	fields := map[string]any{
		"orderId": order.OrderID,
		"target":  target,
		"calls":   outcome.Calls,
		"skipped": outcome.Skipped,
	}
	if outcome.Reason != "" {
		fields["reason"] = outcome.Reason
	}
	if failed := outcome.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, step := range failed {
			names = append(names, step.Name)
		}
		fields["failedSteps"] = names
	}
	s.logger(ctx, eventSyncFinished, fields)

	return outcome
}
