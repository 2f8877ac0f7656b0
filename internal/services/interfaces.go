package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ticketbridge/api/internal/domain"
)

var (
	// ErrMalformedPayload indicates the webhook body was not a JSON object.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
	// ErrMissingDataSection indicates the required top-level data section was absent or empty.
	ErrMissingDataSection = errors.New("webhook: missing data section")
	// ErrMissingEmail indicates no usable billing email was found in the payload.
	ErrMissingEmail = errors.New("webhook: missing billing email")
	// ErrMissingCredentials indicates a sync adapter has no API credentials configured.
	ErrMissingCredentials = errors.New("sync: missing credentials")
)

// DownstreamError captures a non-2xx response from a downstream API. It is
// recorded in sync outcomes and logged, never propagated to the webhook
// sender.
type DownstreamError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream returned HTTP %d: %s", e.Status, e.Body)
}

// StepOutcome records the result of one idempotent step inside a sync adapter.
type StepOutcome struct {
	Name string
	Err  error
}

// SyncOutcome accumulates the per-step results of one adapter pass over an
// order record. Adapters never roll back earlier steps; a failed step is
// recorded and later steps still run where they do not depend on its output.
type SyncOutcome struct {
	Target  string
	Skipped bool
	Reason  string
	Calls   int
	Steps   []StepOutcome
}

// SkippedOutcome reports an adapter pass that performed no network calls.
func SkippedOutcome(target, reason string) SyncOutcome {
	return SyncOutcome{Target: target, Skipped: true, Reason: reason}
}

// Record appends a step result to the outcome.
func (o *SyncOutcome) Record(name string, err error) {
	o.Steps = append(o.Steps, StepOutcome{Name: name, Err: err})
}

// Failed lists the steps that ended in an error.
func (o SyncOutcome) Failed() []StepOutcome {
	var failed []StepOutcome
	for _, step := range o.Steps {
		if step.Err != nil {
			failed = append(failed, step)
		}
	}
	return failed
}

// Syncer pushes an order record into one downstream system. Implementations
// must be safe for concurrent use; the webhook service may run both adapters
// in parallel over the same immutable record.
type Syncer interface {
	Sync(ctx context.Context, order domain.OrderRecord) SyncOutcome
}

// WebhookJobMessage is the typed payload delivered to background workers for
// deferred webhook processing. Feature gates are evaluated at enqueue time and
// carried in the message so a queued job behaves like the inline path would
// have at publish time.
type WebhookJobMessage struct {
	OrderID         string        `json:"orderId"`
	Order           OrderSnapshot `json:"order"`
	SyncMailchimp   bool          `json:"syncMailchimp"`
	SyncWooCommerce bool          `json:"syncWooCommerce"`
	QueuedAt        time.Time     `json:"queuedAt"`
}

// WebhookJobPublisher enqueues webhook jobs on the background queue. A nil
// publisher selects synchronous inline execution in the ingestion controller.
type WebhookJobPublisher interface {
	PublishWebhookJob(ctx context.Context, message WebhookJobMessage) (string, error)
}
