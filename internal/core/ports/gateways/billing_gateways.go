package gateways

import (
	"context"

	"github.com/SscSPs/deck_credits/internal/core/domain"
)

// BillingEventVerifier authenticates a raw webhook body and decodes it.
// It must return apperrors.ErrSignatureInvalid before looking at the body's contents
// when the signature is missing or wrong, and apperrors.ErrMalformedEvent when a
// verified body cannot be decoded.
type BillingEventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*domain.BillingEvent, error)
}

// SubscriptionGateway mutates subscriptions at the billing provider.
type SubscriptionGateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.BillingSubscription, error)
	ChangeSubscriptionPrice(ctx context.Context, change domain.PriceChange) (*domain.BillingSubscription, error)
}

// UsageTracker receives product analytics about credit movements. Implementations
// must not block.
type UsageTracker interface {
	Track(accountID string, event string, properties map[string]any)
}
