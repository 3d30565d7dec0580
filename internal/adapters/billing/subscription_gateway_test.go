package billing_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/deck_credits/internal/adapters/billing"
	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

const subscriptionJSON = `{
  "id": "sub_1",
  "object": "subscription",
  "status": "active",
  "cancel_at": null,
  "items": {
    "object": "list",
    "data": [
      {"id": "si_1", "object": "subscription_item", "current_period_end": 1793491200, "price": {"id": "%s", "object": "price"}}
    ]
  }
}`

func newTestGateway(t *testing.T, handler http.HandlerFunc) *billing.StripeSubscriptionGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return billing.NewStripeSubscriptionGateway("sk_test_123", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func writeSubscription(w http.ResponseWriter, priceID string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(fmt.Sprintf(subscriptionJSON, priceID)))
}

func TestGetSubscription(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		writeSubscription(w, "price_lite")
	})

	sub, err := gw.GetSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "si_1", sub.ItemID)
	assert.Equal(t, "price_lite", sub.PriceID)
	assert.Equal(t, "active", sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1793491200, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.CancelAt)
}

func TestChangeSubscriptionPrice(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "si_1", r.PostForm.Get("items[0][id]"))
		assert.Equal(t, "price_pro", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "always_invoice", r.PostForm.Get("proration_behavior"))
		writeSubscription(w, "price_pro")
	})

	sub, err := gw.ChangeSubscriptionPrice(context.Background(), domain.PriceChange{
		SubscriptionID: "sub_1",
		ItemID:         "si_1",
		NewPriceID:     "price_pro",
		Proration:      domain.ProrateImmediately,
	})
	require.NoError(t, err)
	assert.Equal(t, "price_pro", sub.PriceID)
}

func TestGetSubscription_Errors(t *testing.T) {
	t.Run("missing subscription", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such subscription: 'sub_x'"}}`))
		})
		_, err := gw.GetSubscription(context.Background(), "sub_x")
		assert.ErrorIs(t, err, apperrors.ErrNoSubscription)
	})

	t.Run("provider failure", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
		})
		_, err := gw.GetSubscription(context.Background(), "sub_1")
		assert.ErrorIs(t, err, apperrors.ErrBillingProvider)
	})

	t.Run("subscription without items", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"sub_1","object":"subscription","items":{"object":"list","data":[]}}`))
		})
		_, err := gw.GetSubscription(context.Background(), "sub_1")
		assert.ErrorIs(t, err, apperrors.ErrBillingProvider)
	})
}
