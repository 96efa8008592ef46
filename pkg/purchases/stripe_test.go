package purchases

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePurchaseLedger records Close calls for webhook dispatch tests.
type fakePurchaseLedger struct {
	closes   []closeCall
	applied  bool
	quantity int64
	closeErr error
	opens    []string
	openErr  error
}

type closeCall struct {
	checkoutID string
	succeeded  bool
	total      *float64
}

func (f *fakePurchaseLedger) Open(username string, quantity int64, subtotal float64, checkoutID string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opens = append(f.opens, checkoutID)
	return nil
}

func (f *fakePurchaseLedger) Close(checkoutID string, succeeded bool, total *float64, coupon *string) (bool, int64, error) {
	if f.closeErr != nil {
		return false, 0, f.closeErr
	}
	f.closes = append(f.closes, closeCall{checkoutID: checkoutID, succeeded: succeeded, total: total})
	if !f.applied || !succeeded {
		return f.applied, 0, nil
	}
	return true, f.quantity, nil
}

func (f *fakePurchaseLedger) ExpireAbandoned(openedBefore int64) (int64, error) { return 0, nil }

func TestPricer_UnitPrice(t *testing.T) {
	pricer := NewPricer([]TieredPrice{
		{RequiredQuantity: 10, UnitPrice: 8.99},
		{RequiredQuantity: 1, UnitPrice: 9.99},
		{RequiredQuantity: 25, UnitPrice: 7.99},
	})

	tests := []struct {
		name     string
		quantity int64
		want     float64
	}{
		{"lowest tier", 1, 9.99},
		{"mid tier boundary", 10, 8.99},
		{"between tiers keeps lower tier price", 24, 8.99},
		{"top tier", 100, 7.99},
		{"below every tier falls back to cheapest", 0, 7.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := pricer.UnitPrice(tt.quantity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, price)
		})
	}

	t.Run("no tiers configured", func(t *testing.T) {
		_, err := NewPricer(nil).UnitPrice(5)
		require.Error(t, err)
	})

	t.Run("tiers come back sorted", func(t *testing.T) {
		tiers := pricer.Tiers()
		require.Len(t, tiers, 3)
		assert.Equal(t, int64(1), tiers[0].RequiredQuantity)
		assert.Equal(t, int64(25), tiers[2].RequiredQuantity)
	})
}

func TestStripeClient(t *testing.T) {
	client := NewStripeClient("https://app.example.edu")

	t.Run("creates provider-shaped customer ids", func(t *testing.T) {
		id, err := client.CreateCustomer("Jane Doe", "jdoe@example.edu")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "cus_mock_"))
	})

	t.Run("checkout carries a redirect URL", func(t *testing.T) {
		checkout, err := client.CreateCheckout("cus_mock_1", 5, 9.99)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(checkout.ID, "cs_mock_"))
		assert.Contains(t, checkout.URL, checkout.ID)
	})
}

func webhookPayload(t *testing.T, eventType, checkoutID, paymentStatus string, amountTotal *int64) []byte {
	t.Helper()
	event := WebhookEvent{Type: eventType}
	event.Data.Object = CheckoutObject{
		ID:            checkoutID,
		PaymentStatus: paymentStatus,
		AmountTotal:   amountTotal,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestHandleWebhook(t *testing.T) {
	t.Run("completed paid checkout closes as success", func(t *testing.T) {
		ledger := &fakePurchaseLedger{applied: true, quantity: 5}
		cents := int64(4495)

		applied, credited, err := HandleWebhook(ledger, webhookPayload(t, EventCheckoutCompleted, "cs_123", "paid", &cents))
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, int64(5), credited)

		require.Len(t, ledger.closes, 1)
		call := ledger.closes[0]
		assert.Equal(t, "cs_123", call.checkoutID)
		assert.True(t, call.succeeded)
		require.NotNil(t, call.total)
		assert.Equal(t, 44.95, *call.total)
	})

	t.Run("completed but unpaid checkout is ignored", func(t *testing.T) {
		ledger := &fakePurchaseLedger{}

		applied, _, err := HandleWebhook(ledger, webhookPayload(t, EventCheckoutCompleted, "cs_123", "unpaid", nil))
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Empty(t, ledger.closes)
	})

	t.Run("async payment success closes as success", func(t *testing.T) {
		ledger := &fakePurchaseLedger{applied: true}

		applied, _, err := HandleWebhook(ledger, webhookPayload(t, EventAsyncPaymentSucceeded, "cs_123", "paid", nil))
		require.NoError(t, err)
		assert.True(t, applied)
		assert.True(t, ledger.closes[0].succeeded)
	})

	t.Run("expired checkout closes as failure", func(t *testing.T) {
		ledger := &fakePurchaseLedger{applied: true}

		applied, credited, err := HandleWebhook(ledger, webhookPayload(t, EventCheckoutExpired, "cs_123", "", nil))
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Zero(t, credited)

		require.Len(t, ledger.closes, 1)
		assert.False(t, ledger.closes[0].succeeded)
		assert.Nil(t, ledger.closes[0].total)
	})

	t.Run("async payment failure closes as failure", func(t *testing.T) {
		ledger := &fakePurchaseLedger{applied: true}

		_, _, err := HandleWebhook(ledger, webhookPayload(t, EventAsyncPaymentFailed, "cs_123", "", nil))
		require.NoError(t, err)
		assert.False(t, ledger.closes[0].succeeded)
	})

	t.Run("unknown event type is ignored", func(t *testing.T) {
		ledger := &fakePurchaseLedger{}

		applied, _, err := HandleWebhook(ledger, webhookPayload(t, "invoice.paid", "cs_123", "", nil))
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Empty(t, ledger.closes)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, _, err := HandleWebhook(&fakePurchaseLedger{}, []byte("{not json"))
		require.Error(t, err)
	})

	t.Run("unknown checkout propagates for the caller to log", func(t *testing.T) {
		ledger := &fakePurchaseLedger{closeErr: ErrUnknownCheckout}

		_, _, err := HandleWebhook(ledger, webhookPayload(t, EventCheckoutExpired, "cs_ghost", "", nil))
		assert.ErrorIs(t, err, ErrUnknownCheckout)
	})
}

func TestCheckoutService_Start(t *testing.T) {
	pricer := NewPricer([]TieredPrice{
		{RequiredQuantity: 1, UnitPrice: 9.99},
		{RequiredQuantity: 10, UnitPrice: 8.99},
	})
	client := NewStripeClient("https://app.example.edu")

	t.Run("opens ledger row for the provider checkout", func(t *testing.T) {
		ledger := &fakePurchaseLedger{}
		service := NewCheckoutService(pricer, client, ledger)

		checkout, err := service.Start("jdoe", "cus_mock_1", 5)
		require.NoError(t, err)
		require.Len(t, ledger.opens, 1)
		assert.Equal(t, checkout.ID, ledger.opens[0])
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		service := NewCheckoutService(pricer, client, &fakePurchaseLedger{})

		_, err := service.Start("jdoe", "cus_mock_1", 0)
		require.Error(t, err)
	})

	t.Run("ledger failure propagates", func(t *testing.T) {
		ledger := &fakePurchaseLedger{openErr: errors.New("store unavailable")}
		service := NewCheckoutService(pricer, client, ledger)

		_, err := service.Start("jdoe", "cus_mock_1", 5)
		require.Error(t, err)
	})
}
