package woocommerce

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ticketbridge/api/internal/domain"
	"github.com/ticketbridge/api/internal/services"
)

// SyncerConfig configures the WooCommerce sync adapter.
type SyncerConfig struct {
	Client *Client
	// HasCredentials reflects whether a consumer key/secret pair was
	// configured. The adapter skips rather than fails when absent.
	HasCredentials bool
	Logger         Logger
}

// Syncer mirrors an order record into a WooCommerce store. Products are
// looked up by SKU and created on demand; the order itself is always created
// fresh. Tickets whose product could neither be found nor created are left
// out of the order rather than failing the whole pass.
type Syncer struct {
	client   *Client
	hasCreds bool
	logger   Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("woocommerce: client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Syncer{
		client:   cfg.Client,
		hasCreds: cfg.HasCredentials,
		logger:   logger,
	}, nil
}

type productRef struct {
	ID int64 `json:"id"`
}

type newProduct struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	RegularPrice string `json:"regular_price"`
	SKU          string `json:"sku"`
	Status       string `json:"status"`
}

type orderAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type orderLineItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type newOrder struct {
	PaymentMethod      string          `json:"payment_method"`
	PaymentMethodTitle string          `json:"payment_method_title"`
	SetPaid            bool            `json:"set_paid"`
	Status             string          `json:"status"`
	Billing            orderAddress    `json:"billing"`
	Shipping           orderAddress    `json:"shipping"`
	LineItems          []orderLineItem `json:"line_items"`
	MetaData           []orderMeta     `json:"meta_data"`
}

// Sync runs the full WooCommerce pass for one order record.
func (s *Syncer) Sync(ctx context.Context, order domain.OrderRecord) services.SyncOutcome {
	if !s.hasCreds {
		s.logger(ctx, "woocommerce.skipped", map[string]any{
			"orderId": order.OrderID,
			"reason":  services.ErrMissingCredentials.Error(),
		})
		return services.SkippedOutcome(services.TargetWooCommerce, services.ErrMissingCredentials.Error())
	}
	if order.DryRun {
		return services.SkippedOutcome(services.TargetWooCommerce, "dry run")
	}

	outcome := services.SyncOutcome{Target: services.TargetWooCommerce}

	lines := make([]orderLineItem, 0, len(order.Tickets))
	for _, ticket := range order.Tickets {
		sku := ticket.SKU()
		productID, err := s.ensureProduct(ctx, ticket, sku, &outcome)
		outcome.Record("product:"+sku, err)
		if err != nil {
			// The store rejects line items with unknown product ids, so a
			// ticket without a product is dropped from the order.
			continue
		}
		price, _ := ticket.UnitPrice.Float64()
		lines = append(lines, orderLineItem{
			ProductID: productID,
			Quantity:  1,
			Price:     price,
		})
	}

	outcome.Record("order", s.createOrder(ctx, order, lines))
	outcome.Calls++

	return outcome
}

// ensureProduct returns the store product id for the ticket's SKU, creating
// the product when the lookup comes back empty.
func (s *Syncer) ensureProduct(ctx context.Context, ticket domain.TicketLine, sku string, outcome *services.SyncOutcome) (int64, error) {
	var found []productRef
	outcome.Calls++
	if err := s.client.Get(ctx, "/products", url.Values{"sku": {sku}}, &found); err != nil {
		return 0, err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	var created productRef
	outcome.Calls++
	err := s.client.Post(ctx, "/products", newProduct{
		Name:         ticket.Label,
		Type:         "simple",
		RegularPrice: domain.FormatAmount(ticket.UnitPrice),
		SKU:          sku,
		Status:       "publish",
	}, &created)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (s *Syncer) createOrder(ctx context.Context, order domain.OrderRecord, lines []orderLineItem) error {
	cust := order.Customer
	billing := orderAddress{
		FirstName: cust.FirstName,
		LastName:  cust.LastName,
		Address1:  cust.Address.Street1,
		City:      cust.Address.City,
		State:     cust.Address.State,
		Postcode:  cust.Address.PostalCode,
		Country:   cust.Address.Country,
		Email:     cust.Email,
		Phone:     cust.Phone,
	}
	shipping := billing
	shipping.Email = ""
	shipping.Phone = ""

	return s.client.Post(ctx, "/orders", newOrder{
		PaymentMethod:      "ticketspice",
		PaymentMethodTitle: "TicketSpice",
		SetPaid:            true,
		Status:             order.Status.CommerceStatus(),
		Billing:            billing,
		Shipping:           shipping,
		LineItems:          lines,
		MetaData:           []orderMeta{{Key: "ticketspice_order", Value: "yes"}},
	}, nil)
}
