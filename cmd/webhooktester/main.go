// Command webhooktester posts a synthetic ticket-sale webhook at a running
// bridge instance. It exists for manual end-to-end checks against sandbox
// Mailchimp and WooCommerce accounts.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ticketbridge/api/internal/services"
)

func main() {
	var (
		url       = flag.String("url", "http://localhost:8080/ticketspice-webhook", "webhook endpoint to post to")
		orderID   = flag.String("order-id", "", "fixed order id (default: random test id)")
		coupon    = flag.String("coupon", "", "attach a coupon code to the primary registrant")
		refund    = flag.Bool("refund", false, "send the order as refunded")
		duplicate = flag.Bool("duplicate", false, "send the same delivery twice")
		dryRun    = flag.Bool("dry-run", false, "set the dry_run flag so no downstream calls are made")
	)
	flag.Parse()

	payload := services.SamplePayload(services.SampleOptions{
		OrderID:  *orderID,
		Coupon:   *coupon,
		Refunded: *refund,
		DryRun:   *dryRun,
	})

	client := &http.Client{Timeout: 15 * time.Second}

	sends := 1
	if *duplicate {
		sends = 2
	}
	for i := 0; i < sends; i++ {
		if err := send(client, *url, payload, i+1); err != nil {
			fmt.Fprintf(os.Stderr, "delivery %d failed: %v\n", i+1, err)
			os.Exit(1)
		}
	}
}

func send(client *http.Client, url string, payload []byte, attempt int) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("delivery %d: HTTP %d %s\n", attempt, resp.StatusCode, string(body))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint rejected the delivery")
	}
	return nil
}
