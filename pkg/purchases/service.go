package purchases

import (
	"fmt"
	"math"
)

// CheckoutClient is the provider surface the checkout flow needs.
type CheckoutClient interface {
	CreateCheckout(customerRef string, quantity int64, unitPrice float64) (*Checkout, error)
}

// CheckoutService opens provider checkout sessions and mirrors each one
// into the purchase ledger so the webhook close has a row to land on.
type CheckoutService struct {
	pricer *Pricer
	client CheckoutClient
	ledger Ledger
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(pricer *Pricer, client CheckoutClient, ledger Ledger) *CheckoutService {
	return &CheckoutService{pricer: pricer, client: client, ledger: ledger}
}

// Tiers returns the configured price tiers.
func (s *CheckoutService) Tiers() []TieredPrice {
	return s.pricer.Tiers()
}

// Start prices the quantity, opens a provider checkout and records the
// open purchase session. The ledger row is written after the provider
// call so an open row always has a real checkout id behind it.
func (s *CheckoutService) Start(username, customerRef string, quantity int64) (*Checkout, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("purchase quantity must be positive, got %d", quantity)
	}

	unitPrice, err := s.pricer.UnitPrice(quantity)
	if err != nil {
		return nil, err
	}
	subtotal := math.Round(unitPrice*float64(quantity)*100) / 100

	checkout, err := s.client.CreateCheckout(customerRef, quantity, unitPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider checkout: %w", err)
	}

	if err := s.ledger.Open(username, quantity, subtotal, checkout.ID); err != nil {
		return nil, err
	}
	return checkout, nil
}
