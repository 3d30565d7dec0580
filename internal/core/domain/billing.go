package domain

import (
	"fmt"
	"time"
)

// Billing event types this service reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// BillingEvent is a verified notification from the billing provider.
// Checkout is populated only for checkout.session.completed events.
type BillingEvent struct {
	ID       string
	Type     string
	Checkout *CheckoutCompleted
}

// CheckoutCompleted is the schema a successful checkout must satisfy before it
// can grant credits.
type CheckoutCompleted struct {
	SessionID      string `validate:"required"`
	AccountID      string `validate:"required"`
	PlanName       string `validate:"required"`
	PriceID        string `validate:"required"`
	SubscriptionID string
	CustomerID     string
	AmountTotal    int64 `validate:"gte=0"` // Minor currency units
	Currency       string
	PaymentStatus  string
}

// Checkout payment states that mean the money has arrived. Sessions paid by
// delayed methods complete as "unpaid" and settle later.
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// IsPaid reports whether the session's payment has settled.
func (c CheckoutCompleted) IsPaid() bool {
	return c.PaymentStatus == PaymentStatusPaid || c.PaymentStatus == PaymentStatusNoPaymentRequired
}

// UpgradeKey is the idempotency key of the credits granted for moving sub to
// newPriceID. It is scoped to the billing period, so repeating the same upgrade
// within one period grants once.
func UpgradeKey(sub BillingSubscription, newPriceID string) string {
	var periodEnd int64
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sub.CurrentPeriodEnd.Unix()
	}
	return fmt.Sprintf("plan_upgrade:%s:%s:%s:%d", sub.ID, sub.PriceID, newPriceID, periodEnd)
}

// BillingSubscription is the billing provider's view of a subscription.
type BillingSubscription struct {
	ID               string
	ItemID           string // The subscription item carrying the recurring price
	PriceID          string
	Status           string
	CurrentPeriodEnd *time.Time
	CancelAt         *time.Time
}

// ProrationMode selects how the provider bills a mid-period price change.
type ProrationMode string

const (
	ProrateImmediately ProrationMode = "always_invoice"
	ProrateNone        ProrationMode = "none"
)

// PriceChange asks the provider to move a subscription item to another price.
type PriceChange struct {
	SubscriptionID string
	ItemID         string
	NewPriceID     string
	Proration      ProrationMode
}

// PlanChangeResult tells the caller which user-facing message applies.
type PlanChangeResult struct {
	IsUpgrade    bool
	CreditsAdded int64
	FromPlan     SubscriptionStatus
	ToPlan       SubscriptionStatus
	Message      string
}
