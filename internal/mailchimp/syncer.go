package mailchimp

import (
	"context"
	"fmt"

	"github.com/ticketbridge/api/internal/domain"
	"github.com/ticketbridge/api/internal/services"
)

const subscriberTag = "TicketSpice"

// SyncerConfig configures the Mailchimp sync adapter.
type SyncerConfig struct {
	Client  *Client
	StoreID string
	ListID  string
	// HasCredentials reflects whether an API key was configured. The adapter
	// skips rather than fails when credentials are absent.
	HasCredentials bool
	Logger         Logger
}

// Syncer pushes an order record into Mailchimp: list subscriber, e-commerce
// customer, member tag, per-ticket products, and the order itself. Each step
// is an upsert keyed off the order record, so the whole pass is safe to
// repeat. Steps are best-effort: a failed step is recorded in the outcome and
// the remaining steps still run.
type Syncer struct {
	client   *Client
	storeID  string
	listID   string
	hasCreds bool
	logger   Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("mailchimp: client is required")
	}
	if cfg.StoreID == "" || cfg.ListID == "" {
		return nil, fmt.Errorf("mailchimp: store id and list id are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Syncer{
		client:   cfg.Client,
		storeID:  cfg.StoreID,
		listID:   cfg.ListID,
		hasCreds: cfg.HasCredentials,
		logger:   logger,
	}, nil
}

type mergeAddress struct {
	Addr1   string `json:"addr1"`
	Addr2   string `json:"addr2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

type subscriberBody struct {
	EmailAddress string         `json:"email_address"`
	StatusIfNew  string         `json:"status_if_new"`
	MergeFields  map[string]any `json:"merge_fields"`
}

type customerAddress struct {
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type customerBody struct {
	ID           string          `json:"id"`
	EmailAddress string          `json:"email_address"`
	OptInStatus  bool            `json:"opt_in_status"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Address      customerAddress `json:"address"`
}

type tagEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type tagsBody struct {
	Tags []tagEntry `json:"tags"`
}

type productVariant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

type productBody struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Variants []productVariant `json:"variants"`
}

type orderCustomerRef struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	OptInStatus  bool   `json:"opt_in_status"`
}

type orderLine struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	ProductVariantID string `json:"product_variant_id"`
	ProductTitle     string `json:"product_title"`
	Quantity         int    `json:"quantity"`
	Price            string `json:"price"`
}

type orderBody struct {
	ID                 string           `json:"id"`
	Customer           orderCustomerRef `json:"customer"`
	CurrencyCode       string           `json:"currency_code"`
	OrderTotal         string           `json:"order_total"`
	DiscountTotal      string           `json:"discount_total"`
	FinancialStatus    string           `json:"financial_status"`
	ProcessedAtForeign string           `json:"processed_at_foreign"`
	Lines              []orderLine      `json:"lines"`
	TrackingCode       string           `json:"tracking_code,omitempty"`
}

// Sync runs the full Mailchimp pass for one order record.
func (s *Syncer) Sync(ctx context.Context, order domain.OrderRecord) services.SyncOutcome {
	if !s.hasCreds {
		s.logger(ctx, "mailchimp.skipped", map[string]any{
			"orderId": order.OrderID,
			"reason":  services.ErrMissingCredentials.Error(),
		})
		return services.SkippedOutcome(services.TargetMailchimp, services.ErrMissingCredentials.Error())
	}
	if order.DryRun {
		return services.SkippedOutcome(services.TargetMailchimp, "dry run")
	}

	outcome := services.SyncOutcome{Target: services.TargetMailchimp}
	hash := order.IdentityHash()

	outcome.Record("subscriber", s.upsertSubscriber(ctx, order, hash))
	outcome.Calls++

	outcome.Record("customer", s.upsertCustomer(ctx, order, hash))
	outcome.Calls++

	outcome.Record("tags", s.applyTag(ctx, hash))
	outcome.Calls++

	// Product and variant ids are derived from the ticket label, never
	// assigned by the server, so line items are collected even when the
	// product upsert fails.
	lines := make([]orderLine, 0, len(order.Tickets))
	for i, ticket := range order.Tickets {
		slug := domain.Slug(ticket.Label)
		outcome.Record("product:"+slug, s.upsertProduct(ctx, ticket, slug))
		outcome.Calls++
		lines = append(lines, orderLine{
			ID:               fmt.Sprintf("%s_line_%d", order.OrderID, i+1),
			ProductID:        slug,
			ProductVariantID: slug,
			ProductTitle:     ticket.Label,
			Quantity:         1,
			Price:            domain.FormatAmount(ticket.UnitPrice),
		})
	}

	outcome.Record("order", s.upsertOrder(ctx, order, hash, lines))
	outcome.Calls++

	return outcome
}

func (s *Syncer) upsertSubscriber(ctx context.Context, order domain.OrderRecord, hash string) error {
	cust := order.Customer
	body := subscriberBody{
		EmailAddress: cust.Email,
		StatusIfNew:  "subscribed",
		MergeFields: map[string]any{
			"FNAME": cust.FirstName,
			"LNAME": cust.LastName,
			"PHONE": cust.Phone,
			"ADDRESS": mergeAddress{
				Addr1:   cust.Address.Street1,
				Addr2:   "",
				City:    cust.Address.City,
				State:   cust.Address.State,
				Zip:     cust.Address.PostalCode,
				Country: cust.Address.Country,
			},
		},
	}
	return s.client.Put(ctx, fmt.Sprintf("/lists/%s/members/%s", s.listID, hash), body)
}

func (s *Syncer) upsertCustomer(ctx context.Context, order domain.OrderRecord, hash string) error {
	cust := order.Customer
	body := customerBody{
		ID:           hash,
		EmailAddress: cust.Email,
		OptInStatus:  true,
		FirstName:    cust.FirstName,
		LastName:     cust.LastName,
		Address: customerAddress{
			Address1:   cust.Address.Street1,
			Address2:   "",
			City:       cust.Address.City,
			Province:   cust.Address.State,
			PostalCode: cust.Address.PostalCode,
			Country:    cust.Address.Country,
		},
	}
	return s.client.Put(ctx, fmt.Sprintf("/ecommerce/stores/%s/customers/%s", s.storeID, hash), body)
}

func (s *Syncer) applyTag(ctx context.Context, hash string) error {
	body := tagsBody{Tags: []tagEntry{{Name: subscriberTag, Status: "active"}}}
	return s.client.Post(ctx, fmt.Sprintf("/lists/%s/members/%s/tags", s.listID, hash), body)
}

func (s *Syncer) upsertProduct(ctx context.Context, ticket domain.TicketLine, slug string) error {
	price := domain.FormatAmount(ticket.UnitPrice)
	body := productBody{
		ID:    slug,
		Title: ticket.Label,
		Variants: []productVariant{
			{ID: slug, Title: ticket.Label, Price: price},
		},
	}
	return s.client.Put(ctx, fmt.Sprintf("/ecommerce/stores/%s/products/%s", s.storeID, slug), body)
}

func (s *Syncer) upsertOrder(ctx context.Context, order domain.OrderRecord, hash string, lines []orderLine) error {
	body := orderBody{
		ID: order.OrderID,
		Customer: orderCustomerRef{
			ID:           hash,
			EmailAddress: order.Customer.Email,
			OptInStatus:  true,
		},
		CurrencyCode:       order.Currency,
		OrderTotal:         domain.FormatAmount(order.Total),
		DiscountTotal:      domain.FormatAmount(order.DiscountTotal()),
		FinancialStatus:    order.Status.FinancialStatus(),
		ProcessedAtForeign: order.ProcessedAt,
		Lines:              lines,
		TrackingCode:       order.CouponCode,
	}
	return s.client.Put(ctx, fmt.Sprintf("/ecommerce/stores/%s/orders/%s", s.storeID, order.OrderID), body)
}
