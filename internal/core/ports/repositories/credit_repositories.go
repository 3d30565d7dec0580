package repositories

import (
	"context"

	"github.com/SscSPs/deck_credits/internal/core/domain"
)

// CreditLedgerReader defines read operations for account balances and history.
type CreditLedgerReader interface {
	// FindAccountByID retrieves an account. Returns apperrors.ErrNotFound if missing.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// ListTransactions returns up to limit rows of an account's history, newest first,
	// starting strictly before beforeSequence when it is positive.
	ListTransactions(ctx context.Context, accountID string, limit int, beforeSequence int64) ([]domain.Transaction, error)
}

// CreditLedgerWriter defines the atomic balance primitives. Each call mutates the
// balance and appends exactly one transaction row in a single storage-level step.
type CreditLedgerWriter interface {
	// DebitCredits decrements credits_balance and increments credits_total_used by
	// entry.Amount only if the balance covers it. Returns apperrors.ErrInsufficientCredits
	// when no row matched, which includes a missing account.
	DebitCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error)

	// CreditCredits increments credits_balance by entry.Amount. When entry.IdempotencyKey
	// is set the key is claimed in the same storage transaction; a second claim returns
	// apperrors.ErrDuplicate without mutating anything. A missing account returns
	// apperrors.ErrNotFound.
	CreditCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error)

	// RefundDebit gives back exactly the credits_used of the debit debitTransactionID
	// and claims "refund:<debitTransactionID>" in the same storage transaction.
	// entry.Amount is ignored. The debit must belong to entry.AccountID and be a
	// chargeable action equal to action, otherwise apperrors.ErrNotFound (missing or
	// foreign debit) or apperrors.ErrValidation is returned. A debit that was already
	// refunded returns apperrors.ErrDuplicate.
	RefundDebit(ctx context.Context, debitTransactionID string, action domain.ActionType, entry domain.LedgerEntry) (*domain.Transaction, error)
}

// AccountBillingWriter maintains the non-balance fields of an account.
type AccountBillingWriter interface {
	// SaveAccount provisions an account with a zero balance on the free plan.
	// Returns apperrors.ErrDuplicate if it already exists.
	SaveAccount(ctx context.Context, account domain.Account) error

	// UpdateSubscription applies the non-nil fields of update.
	UpdateSubscription(ctx context.Context, accountID string, update domain.SubscriptionUpdate) error
}

// CreditRepositoryFacade combines all ledger repository interfaces.
type CreditRepositoryFacade interface {
	CreditLedgerReader
	CreditLedgerWriter
	AccountBillingWriter
}
