package domain

import (
	"strings"
	"time"
)

// SubscriptionStatus is the effective plan of an account.
type SubscriptionStatus string

const (
	StatusFree SubscriptionStatus = "free"
	StatusLite SubscriptionStatus = "lite"
	StatusPlus SubscriptionStatus = "plus"
	StatusPro  SubscriptionStatus = "pro"
)

// ParseSubscriptionStatus resolves a plan name case-insensitively.
func ParseSubscriptionStatus(name string) (SubscriptionStatus, bool) {
	switch s := SubscriptionStatus(strings.ToLower(strings.TrimSpace(name))); s {
	case StatusFree, StatusLite, StatusPlus, StatusPro:
		return s, true
	default:
		return "", false
	}
}

// Account extends the identity provider's user with billing fields.
// AccountID is the identity provider's user id.
type Account struct {
	AccountID             string             `json:"accountID"`
	CreditsBalance        int64              `json:"creditsBalance"`   // Mutated only by ledger primitives
	CreditsTotalUsed      int64              `json:"creditsTotalUsed"` // Monotonically non-decreasing
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus"`
	BillingSubscriptionID *string            `json:"billingSubscriptionID,omitempty"` // Absent for free accounts
	BillingPriceID        *string            `json:"billingPriceID,omitempty"`
	CurrentPeriodEnd      *time.Time         `json:"currentPeriodEnd,omitempty"`
	CancelAt              *time.Time         `json:"cancelAt,omitempty"`
	AuditFields
}

// HasSubscription reports whether the account is linked to a billing-provider subscription.
func (a *Account) HasSubscription() bool {
	return a.BillingSubscriptionID != nil && *a.BillingSubscriptionID != ""
}

// SubscriptionUpdate is a partial update of the billing fields of an account.
// Nil fields are left untouched.
type SubscriptionUpdate struct {
	Status                SubscriptionStatus
	BillingSubscriptionID *string
	BillingPriceID        *string
	CurrentPeriodEnd      *time.Time
	CancelAt              *time.Time
}
