package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeEventVerifier authenticates Stripe webhook deliveries with the endpoint's
// signing secret and decodes the events this service reacts to.
type StripeEventVerifier struct {
	signingSecret string
}

func NewStripeEventVerifier(signingSecret string) *StripeEventVerifier {
	return &StripeEventVerifier{signingSecret: signingSecret}
}

var _ gateways.BillingEventVerifier = (*StripeEventVerifier)(nil)

// VerifyEvent checks the Stripe-Signature header against the raw body before
// anything in the body is trusted.
func (v *StripeEventVerifier) VerifyEvent(payload []byte, signatureHeader string) (*domain.BillingEvent, error) {
	if v.signingSecret == "" {
		return nil, fmt.Errorf("%w: webhook signing secret not configured", apperrors.ErrSignatureInvalid)
	}
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", apperrors.ErrSignatureInvalid)
	}

	// The account's API version may differ from the library's; only the fields
	// read below matter.
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedEvent, err)
	}

	out := &domain.BillingEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if out.Type != domain.EventCheckoutSessionCompleted {
		return out, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", apperrors.ErrMalformedEvent, event.ID)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", apperrors.ErrMalformedEvent, err)
	}
	out.Checkout = checkoutFromSession(&session)
	return out, nil
}

func checkoutFromSession(session *stripe.CheckoutSession) *domain.CheckoutCompleted {
	checkout := &domain.CheckoutCompleted{
		SessionID:     session.ID,
		AccountID:     session.ClientReferenceID,
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
		PaymentStatus: string(session.PaymentStatus),
	}
	if checkout.AccountID == "" {
		checkout.AccountID = session.Metadata["userId"]
	}
	checkout.PlanName = session.Metadata["planName"]
	checkout.PriceID = session.Metadata["priceId"]
	if session.Subscription != nil {
		checkout.SubscriptionID = session.Subscription.ID
	}
	if session.Customer != nil {
		checkout.CustomerID = session.Customer.ID
	}
	return checkout
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
