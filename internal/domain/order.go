package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus is the normalized lifecycle state of a ticket order.
type OrderStatus string

const (
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// ParseOrderStatus maps the free-text source status onto the normalized enum.
// Matching is case-insensitive; anything unrecognized maps to completed, which
// is what the upstream platform sends for an ordinary paid registration.
func ParseOrderStatus(raw string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "refunded":
		return OrderStatusRefunded
	case "canceled", "cancelled":
		return OrderStatusCanceled
	case "pending":
		return OrderStatusPending
	case "processing":
		return OrderStatusProcessing
	default:
		return OrderStatusCompleted
	}
}

// FinancialStatus returns the CRM financial_status value for the order status.
func (s OrderStatus) FinancialStatus() string {
	switch s {
	case OrderStatusRefunded:
		return "refunded"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusPending:
		return "pending"
	default:
		return "completed"
	}
}

// CommerceStatus returns the commerce order status for the order status. The
// commerce API spells the canceled state with a double l, and orders that are
// neither refunded, cancelled nor pending land in processing rather than
// completed so the store runs its usual post-payment hooks.
func (s OrderStatus) CommerceStatus() string {
	switch s {
	case OrderStatusRefunded:
		return "refunded"
	case OrderStatusCanceled:
		return "cancelled"
	case OrderStatusPending:
		return "pending"
	default:
		return "processing"
	}
}

// Address is the billing address carried on an order record.
type Address struct {
	Street1    string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Customer identifies the purchaser of an order.
type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Address   Address
}

// TicketLine is a single purchased ticket. One ticket maps to one commerce
// line item and one CRM product line.
type TicketLine struct {
	ID        string
	Key       string
	Label     string
	UnitPrice decimal.Decimal
}

// SKU derives the commerce catalog key for the ticket: the external ticket
// key when present, otherwise the ticket id.
func (t TicketLine) SKU() string {
	if key := strings.TrimSpace(t.Key); key != "" {
		return key
	}
	return strings.TrimSpace(t.ID)
}

// OrderRecord is the canonical, validated representation of one webhook
// delivery. It is built once per inbound request and treated as immutable by
// everything downstream.
type OrderRecord struct {
	OrderID     string
	Status      OrderStatus
	Currency    string
	Total       decimal.Decimal
	Customer    Customer
	Tickets     []TicketLine
	CouponCode  string
	ProcessedAt string
	DryRun      bool
}

// TicketTotal sums the unit prices of every ticket line.
func (o OrderRecord) TicketTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range o.Tickets {
		total = total.Add(t.UnitPrice)
	}
	return total
}

// DiscountTotal is the amount by which the ticket total exceeds the charged
// order total, floored at zero.
func (o OrderRecord) DiscountTotal() decimal.Decimal {
	discount := o.TicketTotal().Sub(o.Total)
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// IdentityHash is the deterministic pseudonymous customer id derived from the
// purchaser email.
func (o OrderRecord) IdentityHash() string {
	return IdentityHash(o.Customer.Email)
}

// FormatAmount renders a monetary amount as a fixed two-decimal string, the
// representation both downstream APIs expect.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
