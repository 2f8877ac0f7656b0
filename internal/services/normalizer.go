package services

import (
	"encoding/json"
	"fmt"
	"html"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/ticketbridge/api/internal/domain"
)

const (
	defaultCurrency    = "USD"
	defaultCountry     = "US"
	defaultTicketLabel = "Ticket"
	couponDataKey      = "couponCode"
)

// textPolicy strips any markup from free-text payload fields before they are
// forwarded downstream. The webhook body is untrusted input.
var textPolicy = bluemonday.StrictPolicy()

// Normalizer parses and validates a raw webhook body into a canonical order
// record. It is a pure transform: no network, no logging; the caller decides
// what to do with the result.
type Normalizer struct {
	clock func() time.Time
	newID func() string
}

// NormalizerDeps enumerates the injectable collaborators of a Normalizer.
// Both are optional; defaults use the wall clock and ULID generation.
type NormalizerDeps struct {
	Clock       func() time.Time
	IDGenerator func() string
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(deps NormalizerDeps) *Normalizer {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string {
			return "order_" + strings.ToLower(ulid.Make().String())
		}
	}
	return &Normalizer{
		clock: func() time.Time { return clock().UTC() },
		newID: newID,
	}
}

// webhookEnvelope is the loose wire shape of a ticket platform delivery. Only
// the data section is structurally required; everything else is best-effort.
type webhookEnvelope struct {
	DryRun bool            `json:"dry_run"`
	Data   json.RawMessage `json:"data"`
}

type payloadData struct {
	Billing               payloadBilling      `json:"billing"`
	Currency              string              `json:"currency"`
	OrderNumber           any                 `json:"orderNumber"`
	OrderStatus           string              `json:"orderStatus"`
	RegistrationTimestamp string              `json:"registrationTimestamp"`
	TransactionID         any                 `json:"transactionId"`
	Total                 float64             `json:"total"`
	Tickets               []payloadTicket     `json:"tickets"`
	Registrants           []payloadRegistrant `json:"registrants"`
}

type payloadBilling struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"name"`
	Card struct {
		Phone string `json:"phone"`
	} `json:"card"`
	Address struct {
		Street1    string `json:"street1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
	} `json:"address"`
}

type payloadTicket struct {
	ID          any     `json:"id"`
	TicketKey   any     `json:"ticketKey"`
	TicketLabel string  `json:"ticketLabel"`
	Amount      float64 `json:"amount"`
}

type payloadRegistrant struct {
	Data []payloadDataEntry `json:"data"`
}

type payloadDataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Normalize builds the canonical order record for one webhook delivery.
// It fails with ErrMalformedPayload when the body is not a JSON object, with
// ErrMissingDataSection when the data section is absent or empty, and with
// ErrMissingEmail when no syntactically valid billing email is present. All
// other fields default rather than fail.
func (n *Normalizer) Normalize(raw []byte) (domain.OrderRecord, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if emptyJSON(envelope.Data) {
		return domain.OrderRecord{}, ErrMissingDataSection
	}

	var data payloadData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("%w: data section: %v", ErrMalformedPayload, err)
	}

	email := strings.ToLower(strings.TrimSpace(data.Billing.Email))
	if email == "" {
		return domain.OrderRecord{}, ErrMissingEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("%w: %v", ErrMissingEmail, err)
	}

	phone := data.Billing.Phone
	if strings.TrimSpace(phone) == "" {
		phone = data.Billing.Card.Phone
	}

	country := strings.TrimSpace(data.Billing.Address.Country)
	if country == "" {
		country = defaultCountry
	}

	currency := strings.TrimSpace(data.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	orderID := coerceString(data.TransactionID)
	if orderID == "" {
		orderID = coerceString(data.OrderNumber)
	}
	if orderID == "" {
		orderID = n.newID()
	}

	processedAt := strings.TrimSpace(data.RegistrationTimestamp)
	if processedAt == "" {
		processedAt = n.clock().Format(time.RFC3339)
	}

	tickets := make([]domain.TicketLine, 0, len(data.Tickets))
	for _, t := range data.Tickets {
		label := sanitizeText(t.TicketLabel)
		if label == "" {
			label = defaultTicketLabel
		}
		tickets = append(tickets, domain.TicketLine{
			ID:        coerceString(t.ID),
			Key:       coerceString(t.TicketKey),
			Label:     label,
			UnitPrice: decimal.NewFromFloat(t.Amount),
		})
	}

	return domain.OrderRecord{
		OrderID:  orderID,
		Status:   domain.ParseOrderStatus(data.OrderStatus),
		Currency: currency,
		Total:    decimal.NewFromFloat(data.Total),
		Customer: domain.Customer{
			Email:     email,
			FirstName: sanitizeText(data.Billing.Name.First),
			LastName:  sanitizeText(data.Billing.Name.Last),
			Phone:     domain.NormalizePhone(phone),
			Address: domain.Address{
				Street1:    sanitizeText(data.Billing.Address.Street1),
				City:       sanitizeText(data.Billing.Address.City),
				State:      sanitizeText(data.Billing.Address.State),
				PostalCode: sanitizeText(data.Billing.Address.PostalCode),
				Country:    country,
			},
		},
		Tickets:     tickets,
		CouponCode:  extractCouponCode(data.Registrants),
		ProcessedAt: processedAt,
		DryRun:      envelope.DryRun,
	}, nil
}

// extractCouponCode scans the first registrant's key/value list for a coupon
// entry. Coupons on registrants beyond index 0 are intentionally ignored; the
// upstream form only attaches the code to the primary registrant.
func extractCouponCode(registrants []payloadRegistrant) string {
	if len(registrants) == 0 {
		return ""
	}
	for _, entry := range registrants[0].Data {
		if entry.Key == couponDataKey && strings.TrimSpace(entry.Value) != "" {
			return sanitizeText(entry.Value)
		}
	}
	return ""
}

func sanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		// JSON numbers decode as float64; transaction ids are integral.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func emptyJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "{}", "[]", `""`:
		return true
	default:
		return false
	}
}
