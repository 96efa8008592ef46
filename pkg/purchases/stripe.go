package purchases

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Pricer computes unit prices from a tier table. Tiers are kept sorted
// ascending by required quantity; a purchase gets the price of the
// highest tier it reaches.
type Pricer struct {
	tiers []TieredPrice
}

// NewPricer creates a Pricer from the given tiers.
func NewPricer(tiers []TieredPrice) *Pricer {
	sorted := make([]TieredPrice, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RequiredQuantity < sorted[j].RequiredQuantity
	})
	return &Pricer{tiers: sorted}
}

// Tiers returns the tier table, sorted ascending by required quantity.
func (p *Pricer) Tiers() []TieredPrice {
	return p.tiers
}

// UnitPrice returns the per-unit price for the given quantity. A
// quantity below every tier falls back to the last (cheapest) tier.
func (p *Pricer) UnitPrice(quantity int64) (float64, error) {
	if len(p.tiers) == 0 {
		return 0, fmt.Errorf("no price tiers configured")
	}
	price := -1.0
	for _, tier := range p.tiers {
		if quantity >= tier.RequiredQuantity {
			price = tier.UnitPrice
		}
	}
	if price < 0 {
		price = p.tiers[len(p.tiers)-1].UnitPrice
	}
	return price, nil
}

// StripeClient talks to the payment provider. In a real deployment this
// would call the Stripe API; here checkout sessions and customers are
// fabricated with provider-shaped ids.
type StripeClient struct {
	baseURL string
}

// NewStripeClient creates a StripeClient. baseURL is where the provider
// redirects the buyer after checkout.
func NewStripeClient(baseURL string) *StripeClient {
	return &StripeClient{baseURL: baseURL}
}

// CreateCustomer creates a provider customer record and returns its id.
// Satisfies users.CustomerDirectory.
func (c *StripeClient) CreateCustomer(fullName, email string) (string, error) {
	return fmt.Sprintf("cus_mock_%s", uuid.NewString()), nil
}

// CreateCheckout opens a provider checkout session for quantity units
// at the given unit price.
func (c *StripeClient) CreateCheckout(customerRef string, quantity int64, unitPrice float64) (*Checkout, error) {
	id := fmt.Sprintf("cs_mock_%s", uuid.NewString())
	return &Checkout{
		ID:  id,
		URL: fmt.Sprintf("%s/checkout/%s", c.baseURL, id),
	}, nil
}

// Webhook event types delivered by the payment provider. Completed and
// async-succeeded both mean money arrived; expired and async-failed
// both mean it never will.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventCheckoutExpired       = "checkout.session.expired"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	paymentStatusPaid          = "paid"
)

// WebhookEvent is the provider's event envelope.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object CheckoutObject `json:"object"`
	} `json:"data"`
}

// CheckoutObject is the checkout session payload inside a webhook
// event. AmountTotal is in cents, the provider's native unit.
type CheckoutObject struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   *int64 `json:"amount_total,omitempty"`
}

// HandleWebhook parses a provider webhook payload and feeds the
// terminal outcome into the purchase ledger. Unknown event types are
// ignored; at-least-once delivery is absorbed by Close's processed
// gate. Returns whether the event applied a close and how many credits
// it granted.
func HandleWebhook(ledger Ledger, payload []byte) (bool, int64, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	checkout := event.Data.Object
	switch event.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded:
		if checkout.PaymentStatus != paymentStatusPaid {
			return false, 0, nil
		}
		var total *float64
		if checkout.AmountTotal != nil {
			dollars := float64(*checkout.AmountTotal) / 100.0
			total = &dollars
		}
		return ledger.Close(checkout.ID, true, total, nil)
	case EventCheckoutExpired, EventAsyncPaymentFailed:
		return ledger.Close(checkout.ID, false, nil, nil)
	default:
		return false, 0, nil
	}
}
