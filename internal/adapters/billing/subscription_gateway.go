package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeSubscriptionGateway changes subscription prices through the Stripe API.
type StripeSubscriptionGateway struct {
	client *client.API
}

// NewStripeSubscriptionGateway creates a gateway using its own client instead of
// the package-level stripe.Key. backends may be nil for the Stripe defaults.
func NewStripeSubscriptionGateway(apiKey string, backends *stripe.Backends) *StripeSubscriptionGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &StripeSubscriptionGateway{client: sc}
}

var _ gateways.SubscriptionGateway = (*StripeSubscriptionGateway)(nil)

// GetSubscription fetches a subscription and its first recurring item.
func (g *StripeSubscriptionGateway) GetSubscription(ctx context.Context, subscriptionID string) (*domain.BillingSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.client.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, mapStripeError("get subscription "+subscriptionID, err)
	}
	return toBillingSubscription(sub)
}

// ChangeSubscriptionPrice swaps the price of one subscription item.
func (g *StripeSubscriptionGateway) ChangeSubscriptionPrice(ctx context.Context, change domain.PriceChange) (*domain.BillingSubscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(change.ItemID),
				Price: stripe.String(change.NewPriceID),
			},
		},
		ProrationBehavior: stripe.String(string(change.Proration)),
	}
	params.Context = ctx

	sub, err := g.client.Subscriptions.Update(change.SubscriptionID, params)
	if err != nil {
		return nil, mapStripeError("update subscription "+change.SubscriptionID, err)
	}
	return toBillingSubscription(sub)
}

func toBillingSubscription(sub *stripe.Subscription) (*domain.BillingSubscription, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("%w: subscription %s has no priced items", apperrors.ErrBillingProvider, sub.ID)
	}
	item := sub.Items.Data[0]
	out := &domain.BillingSubscription{
		ID:      sub.ID,
		ItemID:  item.ID,
		PriceID: item.Price.ID,
		Status:  string(sub.Status),
	}
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	if sub.CancelAt > 0 {
		t := time.Unix(sub.CancelAt, 0).UTC()
		out.CancelAt = &t
	}
	return out, nil
}

// mapStripeError converts stripe-go errors into domain errors so callers never
// import the SDK.
func mapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %w", apperrors.ErrNoSubscription, op, err)
		}
		return fmt.Errorf("%w: %s: %s (status %d)", apperrors.ErrBillingProvider, op, stripeErr.Msg, stripeErr.HTTPStatusCode)
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrBillingProvider, op, err)
}
