package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderStatusMappings(t *testing.T) {
	cases := []struct {
		raw      string
		status   OrderStatus
		crm      string
		commerce string
	}{
		{"refunded", OrderStatusRefunded, "refunded", "refunded"},
		{"Refunded", OrderStatusRefunded, "refunded", "refunded"},
		{"canceled", OrderStatusCanceled, "canceled", "cancelled"},
		{"cancelled", OrderStatusCanceled, "canceled", "cancelled"},
		{"pending", OrderStatusPending, "pending", "pending"},
		{"completed", OrderStatusCompleted, "completed", "processing"},
		{"", OrderStatusCompleted, "completed", "processing"},
		{"something-else", OrderStatusCompleted, "completed", "processing"},
	}

	for _, tc := range cases {
		status := ParseOrderStatus(tc.raw)
		if status != tc.status {
			t.Fatalf("ParseOrderStatus(%q) = %q, want %q", tc.raw, status, tc.status)
		}
		if got := status.FinancialStatus(); got != tc.crm {
			t.Fatalf("FinancialStatus for %q = %q, want %q", tc.raw, got, tc.crm)
		}
		if got := status.CommerceStatus(); got != tc.commerce {
			t.Fatalf("CommerceStatus for %q = %q, want %q", tc.raw, got, tc.commerce)
		}
	}
}

func TestDiscountTotalNeverNegative(t *testing.T) {
	order := OrderRecord{
		Total: decimal.RequireFromString("50.00"),
		Tickets: []TicketLine{
			{Label: "A", UnitPrice: decimal.RequireFromString("20.00")},
			{Label: "B", UnitPrice: decimal.RequireFromString("20.00")},
		},
	}
	if got := FormatAmount(order.DiscountTotal()); got != "0.00" {
		t.Fatalf("discount for tickets below total = %s, want 0.00", got)
	}

	order.Tickets = append(order.Tickets, TicketLine{Label: "C", UnitPrice: decimal.RequireFromString("20.00")})
	if got := FormatAmount(order.DiscountTotal()); got != "10.00" {
		t.Fatalf("discount for tickets above total = %s, want 10.00", got)
	}
}

func TestIdentityHashIsPureAndCaseInsensitive(t *testing.T) {
	a := IdentityHash("Demo@Example.com")
	b := IdentityHash("  demo@example.com ")
	if a != b {
		t.Fatalf("identity hash should be stable across case and whitespace: %s vs %s", a, b)
	}
	// Known MD5 of "demo@example.com"; the digest is part of the CRM contract.
	if a != IdentityHash("demo@example.com") {
		t.Fatalf("identity hash not deterministic")
	}
	if a == IdentityHash("other@example.com") {
		t.Fatalf("distinct emails must not collide")
	}
}

func TestTicketSKUPrefersKey(t *testing.T) {
	line := TicketLine{ID: "abc123", Key: "GA-2025"}
	if got := line.SKU(); got != "GA-2025" {
		t.Fatalf("SKU = %q, want key", got)
	}
	line.Key = "  "
	if got := line.SKU(); got != "abc123" {
		t.Fatalf("SKU = %q, want id fallback", got)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"General Admission", "general-admission"},
		{"VIP  (Early Bird!)", "vip-early-bird"},
		{"Café Crème", "cafe-creme"},
		{"--Weekend Pass--", "weekend-pass"},
		{"2 Day Pass", "2-day-pass"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"(555) 555-0123", "+15555550123"},
		{"+1 555 555 0123", "+15555550123"},
		{"+44 20 7946 0958", "+442079460958"},
		{"555-0123", "5550123"},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
