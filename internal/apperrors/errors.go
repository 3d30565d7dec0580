package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
// The ledger also returns it when an idempotency key has already been claimed.
var ErrDuplicate = errors.New("resource already exists")

// ErrInsufficientCredits indicates that the conditional debit matched no row:
// either the balance is below the cost or the account does not exist.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrStoreUnavailable wraps infrastructure failures of the ledger store. Safe to retry.
var ErrStoreUnavailable = errors.New("ledger store unavailable")

// Billing errors
var (
	ErrSignatureInvalid      = errors.New("webhook signature verification failed")
	ErrMalformedEvent        = errors.New("malformed billing event")
	ErrUnknownPlan           = errors.New("unknown plan")
	ErrNoSubscription        = errors.New("no active subscription")
	ErrSamePlan              = errors.New("already subscribed to this plan")
	ErrBillingNotConfigured  = errors.New("billing is not configured")
	ErrBillingProvider       = errors.New("billing provider error")
	ErrUnsupportedActionType = errors.New("unsupported action type")
)

// Unavailable wraps a store failure so callers can match it with errors.Is(err, ErrStoreUnavailable)
// while keeping the driver error in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
