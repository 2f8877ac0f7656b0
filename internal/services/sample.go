package services

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// SampleOptions shapes the synthetic delivery produced by SamplePayload.
type SampleOptions struct {
	// OrderID overrides the generated transaction id. Useful for exercising
	// duplicate-delivery behavior with a stable id.
	OrderID string
	// Coupon attaches a couponCode entry to the first registrant.
	Coupon string
	// Refunded marks the order refunded instead of completed.
	Refunded bool
	// DryRun sets the top-level dry_run flag.
	DryRun bool
}

// SamplePayload builds a webhook body in the shape the ticketing platform
// sends. It is the fixture used by the tester command and by handler tests.
func SamplePayload(opts SampleOptions) []byte {
	orderID := opts.OrderID
	if orderID == "" {
		orderID = fmt.Sprintf("test-%06d", rand.Intn(1000000))
	}
	status := "completed"
	if opts.Refunded {
		status = "refunded"
	}

	registrantData := []map[string]any{
		{"key": "firstName", "label": "First Name", "value": "Jamie"},
		{"key": "lastName", "label": "Last Name", "value": "Rivera"},
	}
	if opts.Coupon != "" {
		registrantData = append(registrantData, map[string]any{
			"key": "couponCode", "label": "Coupon Code", "value": opts.Coupon,
		})
	}

	payload := map[string]any{
		"dry_run": opts.DryRun,
		"data": map[string]any{
			"transactionId":         orderID,
			"orderNumber":           orderID,
			"orderStatus":           status,
			"currency":              "USD",
			"total":                 75.50,
			"registrationTimestamp": "2026-03-14T19:22:05Z",
			"billing": map[string]any{
				"email": "Jamie.Rivera@Example.com",
				"phone": "(555) 867-5309",
				"name": map[string]any{
					"first": "Jamie",
					"last":  "Rivera",
				},
				"address": map[string]any{
					"street1":    "42 Gallery Row",
					"city":       "Asheville",
					"state":      "NC",
					"postalCode": "28801",
					"country":    "US",
				},
			},
			"tickets": []map[string]any{
				{
					"id":          "tkt-general",
					"ticketKey":   "general-admission",
					"ticketLabel": "General Admission",
					"amount":      45.50,
				},
				{
					"id":          "tkt-workshop",
					"ticketKey":   "workshop-pass",
					"ticketLabel": "Workshop Pass",
					"amount":      30.00,
				},
			},
			"registrants": []map[string]any{
				{"data": registrantData},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return body
}
