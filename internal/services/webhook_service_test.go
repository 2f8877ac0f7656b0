package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ticketbridge/api/internal/domain"
)

type stubSyncer struct {
	outcome SyncOutcome
	calls   int
	seen    []domain.OrderRecord
}

func (s *stubSyncer) Sync(_ context.Context, order domain.OrderRecord) SyncOutcome {
	s.calls++
	s.seen = append(s.seen, order)
	return s.outcome
}

type stubPublisher struct {
	id       string
	err      error
	messages []WebhookJobMessage
}

func (p *stubPublisher) PublishWebhookJob(_ context.Context, msg WebhookJobMessage) (string, error) {
	p.messages = append(p.messages, msg)
	return p.id, p.err
}

func testOrder() domain.OrderRecord {
	return domain.OrderRecord{
		OrderID:  "txn-1",
		Status:   domain.OrderStatusCompleted,
		Currency: "USD",
		Customer: domain.Customer{Email: "a@b.com"},
	}
}

func TestProcessRunsBothPathsInline(t *testing.T) {
	crm := &stubSyncer{outcome: SyncOutcome{Target: TargetMailchimp, Calls: 5}}
	commerce := &stubSyncer{outcome: SyncOutcome{Target: TargetWooCommerce, Calls: 2}}

	svc, err := NewWebhookService(WebhookServiceDeps{
		Mailchimp:   crm,
		WooCommerce: commerce,
		Gates:       SyncGates{Mailchimp: true, WooCommerce: true},
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}

	result := svc.Process(context.Background(), testOrder())
	if result.Queued {
		t.Fatal("result queued without a publisher configured")
	}
	if crm.calls != 1 || commerce.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", crm.calls, commerce.calls)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(result.Outcomes))
	}
	if result.Outcomes[0].Target != TargetMailchimp || result.Outcomes[1].Target != TargetWooCommerce {
		t.Fatalf("outcome order = %q/%q", result.Outcomes[0].Target, result.Outcomes[1].Target)
	}
}

func TestProcessSkipsDisabledPaths(t *testing.T) {
	crm := &stubSyncer{outcome: SyncOutcome{Target: TargetMailchimp, Calls: 5}}
	commerce := &stubSyncer{outcome: SyncOutcome{Target: TargetWooCommerce, Calls: 2}}

	svc, err := NewWebhookService(WebhookServiceDeps{
		Mailchimp:   crm,
		WooCommerce: commerce,
		Gates:       SyncGates{Mailchimp: true, WooCommerce: false},
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}

	result := svc.Process(context.Background(), testOrder())
	if commerce.calls != 0 {
		t.Fatalf("commerce called %d times while disabled", commerce.calls)
	}
	if crm.calls != 1 {
		t.Fatalf("crm calls = %d, want 1", crm.calls)
	}
	out := result.Outcomes[1]
	if !out.Skipped || out.Reason != SkipReasonDisabled {
		t.Fatalf("commerce outcome = %+v, want disabled skip", out)
	}
}

func TestProcessEnqueuesWhenPublisherConfigured(t *testing.T) {
	crm := &stubSyncer{}
	commerce := &stubSyncer{}
	pub := &stubPublisher{id: "msg-9"}

	svc, err := NewWebhookService(WebhookServiceDeps{
		Mailchimp:   crm,
		WooCommerce: commerce,
		Gates:       SyncGates{Mailchimp: true, WooCommerce: true},
		Publisher:   pub,
		Clock:       func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}

	result := svc.Process(context.Background(), testOrder())
	if !result.Queued || result.JobID != "msg-9" {
		t.Fatalf("result = %+v, want queued with msg-9", result)
	}
	if crm.calls != 0 || commerce.calls != 0 {
		t.Fatal("adapters ran inline despite queue")
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.OrderID != "txn-1" || !msg.SyncMailchimp || !msg.SyncWooCommerce {
		t.Fatalf("message = %+v, want gates captured at enqueue", msg)
	}
	if !msg.QueuedAt.Equal(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("queuedAt = %v, want injected clock", msg.QueuedAt)
	}
}

func TestProcessFallsBackInlineOnPublishFailure(t *testing.T) {
	crm := &stubSyncer{outcome: SyncOutcome{Target: TargetMailchimp}}
	commerce := &stubSyncer{outcome: SyncOutcome{Target: TargetWooCommerce}}
	pub := &stubPublisher{err: errors.New("topic unavailable")}

	svc, err := NewWebhookService(WebhookServiceDeps{
		Mailchimp:   crm,
		WooCommerce: commerce,
		Gates:       SyncGates{Mailchimp: true, WooCommerce: true},
		Publisher:   pub,
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}

	result := svc.Process(context.Background(), testOrder())
	if result.Queued {
		t.Fatal("result marked queued after publish failure")
	}
	if crm.calls != 1 || commerce.calls != 1 {
		t.Fatalf("calls = %d/%d, want inline fallback", crm.calls, commerce.calls)
	}
}

func TestRunSyncIsolatesFailures(t *testing.T) {
	crm := &stubSyncer{outcome: SyncOutcome{
		Target: TargetMailchimp,
		Steps:  []StepOutcome{{Name: "subscriber", Err: errors.New("boom")}},
	}}
	commerce := &stubSyncer{outcome: SyncOutcome{Target: TargetWooCommerce, Calls: 2}}

	svc, err := NewWebhookService(WebhookServiceDeps{
		Mailchimp:   crm,
		WooCommerce: commerce,
		Gates:       SyncGates{Mailchimp: true, WooCommerce: true},
	})
	if err != nil {
		t.Fatalf("NewWebhookService: %v", err)
	}

	outcomes := svc.RunSync(context.Background(), testOrder(), svc.gates)
	if commerce.calls != 1 {
		t.Fatal("commerce path not dispatched alongside failing crm path")
	}
	if len(outcomes[0].Failed()) != 1 {
		t.Fatalf("crm failed steps = %d, want 1", len(outcomes[0].Failed()))
	}
	if outcomes[1].Calls != 2 {
		t.Fatalf("commerce calls = %d, want 2", outcomes[1].Calls)
	}
}
