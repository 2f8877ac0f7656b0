package services

import (
	"github.com/shopspring/decimal"

	"github.com/ticketbridge/api/internal/domain"
)

// OrderSnapshot is the wire form of a domain.OrderRecord used in queued job
// messages. Monetary values travel as fixed two-decimal strings so the queue
// payload stays stable regardless of decimal internals.
type OrderSnapshot struct {
	OrderID     string           `json:"orderId"`
	Status      string           `json:"status"`
	Currency    string           `json:"currency"`
	Total       string           `json:"total"`
	Customer    CustomerSnapshot `json:"customer"`
	Tickets     []TicketSnapshot `json:"tickets"`
	CouponCode  string           `json:"couponCode,omitempty"`
	ProcessedAt string           `json:"processedAt"`
	DryRun      bool             `json:"dryRun,omitempty"`
}

// CustomerSnapshot mirrors domain.Customer for queue serialization.
type CustomerSnapshot struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone,omitempty"`
	Street1    string `json:"street1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// TicketSnapshot mirrors domain.TicketLine for queue serialization.
type TicketSnapshot struct {
	ID        string `json:"id,omitempty"`
	Key       string `json:"key,omitempty"`
	Label     string `json:"label"`
	UnitPrice string `json:"unitPrice"`
}

// SnapshotFromOrder converts an order record into its queue wire form.
func SnapshotFromOrder(order domain.OrderRecord) OrderSnapshot {
	tickets := make([]TicketSnapshot, 0, len(order.Tickets))
	for _, t := range order.Tickets {
		tickets = append(tickets, TicketSnapshot{
			ID:        t.ID,
			Key:       t.Key,
			Label:     t.Label,
			UnitPrice: domain.FormatAmount(t.UnitPrice),
		})
	}
	return OrderSnapshot{
		OrderID:  order.OrderID,
		Status:   string(order.Status),
		Currency: order.Currency,
		Total:    domain.FormatAmount(order.Total),
		Customer: CustomerSnapshot{
			Email:      order.Customer.Email,
			FirstName:  order.Customer.FirstName,
			LastName:   order.Customer.LastName,
			Phone:      order.Customer.Phone,
			Street1:    order.Customer.Address.Street1,
			City:       order.Customer.Address.City,
			State:      order.Customer.Address.State,
			PostalCode: order.Customer.Address.PostalCode,
			Country:    order.Customer.Address.Country,
		},
		Tickets:     tickets,
		CouponCode:  order.CouponCode,
		ProcessedAt: order.ProcessedAt,
		DryRun:      order.DryRun,
	}
}

// ToOrder rebuilds the domain record from its wire form. Amounts that fail to
// parse fall back to zero rather than failing the job; the originals were
// produced by SnapshotFromOrder and are trusted.
func (s OrderSnapshot) ToOrder() domain.OrderRecord {
	tickets := make([]domain.TicketLine, 0, len(s.Tickets))
	for _, t := range s.Tickets {
		tickets = append(tickets, domain.TicketLine{
			ID:        t.ID,
			Key:       t.Key,
			Label:     t.Label,
			UnitPrice: parseAmount(t.UnitPrice),
		})
	}
	return domain.OrderRecord{
		OrderID:  s.OrderID,
		Status:   domain.ParseOrderStatus(s.Status),
		Currency: s.Currency,
		Total:    parseAmount(s.Total),
		Customer: domain.Customer{
			Email:     s.Customer.Email,
			FirstName: s.Customer.FirstName,
			LastName:  s.Customer.LastName,
			Phone:     s.Customer.Phone,
			Address: domain.Address{
				Street1:    s.Customer.Street1,
				City:       s.Customer.City,
				State:      s.Customer.State,
				PostalCode: s.Customer.PostalCode,
				Country:    s.Customer.Country,
			},
		},
		Tickets:     tickets,
		CouponCode:  s.CouponCode,
		ProcessedAt: s.ProcessedAt,
		DryRun:      s.DryRun,
	}
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
