package purchases

import "errors"

// ErrUnknownCheckout is returned when a terminal payment callback names
// a checkout id that was never opened. It is logged as an anomaly by
// the caller, never a crash.
var ErrUnknownCheckout = errors.New("no purchase session for checkout id")

// ErrMalformedEvent is returned when a webhook payload cannot be
// decoded. The delivery is rejected rather than acknowledged.
var ErrMalformedEvent = errors.New("malformed webhook event")

// PurchaseSession tracks one checkout attempt from initiation to its
// terminal outcome. Processed flips exactly once; the credit applied on
// a successful close rides on that flip.
type PurchaseSession struct {
	CheckoutID string   `json:"checkout_id"`
	Username   string   `json:"username"`
	Quantity   int64    `json:"quantity"`
	Subtotal   float64  `json:"subtotal"`
	Total      *float64 `json:"total,omitempty"`
	Coupon     *string  `json:"coupon,omitempty"`
	Succeeded  bool     `json:"succeeded"`
	Processed  bool     `json:"processed"`
	OpenedAt   int64    `json:"opened_at"`
	ClosedAt   *int64   `json:"closed_at,omitempty"`
}

// Checkout is what the payment provider hands back when a checkout
// session is created.
type Checkout struct {
	ID  string `json:"checkout_id"`
	URL string `json:"redirect_url"`
}

// TieredPrice maps a minimum purchase quantity to its per-unit price.
// Larger quantities unlock lower unit prices.
type TieredPrice struct {
	RequiredQuantity int64   `json:"required_quantity"`
	UnitPrice        float64 `json:"unit_price"`
}

// Ledger defines the purchase record operations.
type Ledger interface {
	// Open inserts a new open purchase session for a started checkout.
	Open(username string, quantity int64, subtotal float64, checkoutID string) error
	// Close records the terminal outcome for a checkout exactly once,
	// reporting how many credits a successful close granted. Returns
	// ErrUnknownCheckout when the id was never opened, and
	// (false, 0, nil) when an earlier delivery already closed it.
	Close(checkoutID string, succeeded bool, total *float64, coupon *string) (bool, int64, error)
	// ExpireAbandoned force-closes, as failed, open purchase sessions
	// started before the cutoff. Returns how many were closed.
	ExpireAbandoned(openedBefore int64) (int64, error)
}
