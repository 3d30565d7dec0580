package services

import (
	"context"

	"github.com/SscSPs/deck_credits/internal/core/domain"
)

// CreditReaderSvc defines read-only credit operations.
type CreditReaderSvc interface {
	// CheckBalance is a pre-flight check. It is not sufficient to gate spending.
	CheckBalance(ctx context.Context, accountID string, action domain.ActionType) (*domain.BalanceCheck, error)
	GetStats(ctx context.Context, accountID string) (*domain.CreditStats, error)
	ListTransactions(ctx context.Context, accountID string, limit int, pageToken string) (*domain.TransactionPage, error)
}

// CreditWriterSvc defines the balance-mutating operations.
type CreditWriterSvc interface {
	Deduct(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error)
	Add(ctx context.Context, input domain.AddCreditsInput) (*domain.AddOutcome, error)
	// WithCreditCheck is the only entry point feature endpoints should use.
	WithCreditCheck(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error)
	// Refund gives back the credits of the account's own debit debitTransactionID
	// after a failed feature call. Each debit can be refunded once.
	Refund(ctx context.Context, accountID string, action domain.ActionType, debitTransactionID string, metadata map[string]any) (*domain.AddOutcome, error)
}

// CreditSvcFacade combines all credit service interfaces.
type CreditSvcFacade interface {
	CreditReaderSvc
	CreditWriterSvc
}
