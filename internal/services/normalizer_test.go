package services

import (
	"errors"
	"testing"
	"time"

	"github.com/ticketbridge/api/internal/domain"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(NormalizerDeps{
		Clock:       func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "order_generated" },
	})
}

func TestNormalizeFullPayload(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize(SamplePayload(SampleOptions{OrderID: "txn-100", Coupon: "SPRING10"}))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if order.OrderID != "txn-100" {
		t.Fatalf("order id = %q, want txn-100", order.OrderID)
	}
	if order.Customer.Email != "jamie.rivera@example.com" {
		t.Fatalf("email = %q, want lower-cased address", order.Customer.Email)
	}
	if order.Customer.Phone != "+15558675309" {
		t.Fatalf("phone = %q, want +15558675309", order.Customer.Phone)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("status = %q, want completed", order.Status)
	}
	if order.CouponCode != "SPRING10" {
		t.Fatalf("coupon = %q, want SPRING10", order.CouponCode)
	}
	if got := domain.FormatAmount(order.Total); got != "75.50" {
		t.Fatalf("total = %q, want 75.50", got)
	}
	if len(order.Tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(order.Tickets))
	}
	if order.Tickets[0].SKU() != "general-admission" {
		t.Fatalf("sku = %q, want ticketKey", order.Tickets[0].SKU())
	}
	if order.ProcessedAt != "2026-03-14T19:22:05Z" {
		t.Fatalf("processedAt = %q, want payload timestamp", order.ProcessedAt)
	}
	if order.DryRun {
		t.Fatal("dry run flag set without dry_run in payload")
	}
}

func TestNormalizeRejectsStructurallyInvalidPayloads(t *testing.T) {
	n := newTestNormalizer()

	cases := []struct {
		name string
		body string
		want error
	}{
		{"not json", `{"data":`, ErrMalformedPayload},
		{"no data key", `{"dry_run":false}`, ErrMissingDataSection},
		{"null data", `{"data":null}`, ErrMissingDataSection},
		{"empty object data", `{"data":{}}`, ErrMissingDataSection},
		{"empty string data", `{"data":""}`, ErrMissingDataSection},
		{"no email", `{"data":{"transactionId":"t1","billing":{"name":{"first":"A"}}}}`, ErrMissingEmail},
		{"blank email", `{"data":{"billing":{"email":"   "}}}`, ErrMissingEmail},
		{"invalid email", `{"data":{"billing":{"email":"not-an-address"}}}`, ErrMissingEmail},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize([]byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Normalize err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize([]byte(`{"data":{"billing":{"email":"a@b.com"},"tickets":[{"amount":12.5}]}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if order.OrderID != "order_generated" {
		t.Fatalf("order id = %q, want generated id", order.OrderID)
	}
	if order.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", order.Currency)
	}
	if order.Customer.Address.Country != "US" {
		t.Fatalf("country = %q, want US", order.Customer.Address.Country)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("status = %q, want completed default", order.Status)
	}
	if order.ProcessedAt != "2026-03-14T12:00:00Z" {
		t.Fatalf("processedAt = %q, want clock time", order.ProcessedAt)
	}
	if order.Tickets[0].Label != "Ticket" {
		t.Fatalf("label = %q, want default", order.Tickets[0].Label)
	}
}

func TestNormalizeCoercesNumericIDs(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize([]byte(`{"data":{"transactionId":48100,"billing":{"email":"a@b.com"}}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if order.OrderID != "48100" {
		t.Fatalf("order id = %q, want 48100", order.OrderID)
	}
}

func TestNormalizeFallsBackToOrderNumber(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize([]byte(`{"data":{"orderNumber":"ord-7","billing":{"email":"a@b.com"}}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if order.OrderID != "ord-7" {
		t.Fatalf("order id = %q, want ord-7", order.OrderID)
	}
}

func TestNormalizePhoneFallsBackToCard(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize([]byte(`{"data":{"billing":{"email":"a@b.com","card":{"phone":"5558675309"}}}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if order.Customer.Phone != "+15558675309" {
		t.Fatalf("phone = %q, want card fallback", order.Customer.Phone)
	}
}

func TestNormalizeStripsMarkup(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize([]byte(`{"data":{"billing":{"email":"a@b.com","name":{"first":"<b>Ana</b>","last":"O'Neil <script>x</script>"}}}}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if order.Customer.FirstName != "Ana" {
		t.Fatalf("first = %q, want markup removed", order.Customer.FirstName)
	}
	if order.Customer.LastName != "O'Neil" {
		t.Fatalf("last = %q, want markup removed", order.Customer.LastName)
	}
}

func TestNormalizeCouponOnlyFromFirstRegistrant(t *testing.T) {
	n := newTestNormalizer()

	body := `{"data":{"billing":{"email":"a@b.com"},"registrants":[` +
		`{"data":[{"key":"firstName","value":"A"}]},` +
		`{"data":[{"key":"couponCode","value":"LATE5"}]}]}}`
	order, err := n.Normalize([]byte(body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if order.CouponCode != "" {
		t.Fatalf("coupon = %q, want empty for non-primary registrant", order.CouponCode)
	}
}

func TestNormalizeDryRunFlag(t *testing.T) {
	n := newTestNormalizer()

	order, err := n.Normalize(SamplePayload(SampleOptions{OrderID: "txn-dry", DryRun: true}))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !order.DryRun {
		t.Fatal("dry run flag not carried through")
	}
}
