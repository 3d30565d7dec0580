package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/utils/pagination"
	"github.com/google/uuid"
)

const (
	defaultTransactionPageSize = 20
	maxTransactionPageSize     = 100
)

// Usage analytics event names.
const (
	EventCreditsDeducted = "credits_deducted"
	EventCreditsAdded    = "credits_added"
	EventChargeRejected  = "credit_charge_rejected"
)

type creditService struct {
	BaseService
	repo    portsrepo.CreditRepositoryFacade
	tracker gateways.UsageTracker
	now     func() time.Time
}

// CreditServiceOption is a functional option for configuring the credit service
type CreditServiceOption func(*creditService)

// WithUsageTracker reports successful credit movements to product analytics.
func WithUsageTracker(tracker gateways.UsageTracker) CreditServiceOption {
	return func(s *creditService) {
		s.tracker = tracker
	}
}

// WithClock overrides the time source used for transaction timestamps.
func WithClock(now func() time.Time) CreditServiceOption {
	return func(s *creditService) {
		s.now = now
	}
}

// NewCreditService creates the credit service on top of the ledger store.
func NewCreditService(repo portsrepo.CreditRepositoryFacade, options ...CreditServiceOption) portssvc.CreditSvcFacade {
	svc := &creditService{
		repo: repo,
		now:  time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure creditService implements the CreditSvcFacade interface
var _ portssvc.CreditSvcFacade = (*creditService)(nil)

func (s *creditService) CheckBalance(ctx context.Context, accountID string, action domain.ActionType) (*domain.BalanceCheck, error) {
	cost, err := s.costOf(accountID, action)
	if err != nil {
		return nil, err
	}

	balance, err := s.currentBalance(ctx, accountID)
	if err != nil {
		s.LogError(ctx, err, "Failed to read credit balance", slog.String("account_id", accountID))
		return nil, err
	}

	return &domain.BalanceCheck{
		HasEnough:      balance >= cost,
		CurrentBalance: balance,
		Required:       cost,
	}, nil
}

func (s *creditService) Deduct(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	cost, err := s.costOf(accountID, action)
	if err != nil {
		return nil, err
	}

	txn, err := s.debit(ctx, accountID, action, cost, metadata)
	if errors.Is(err, apperrors.ErrInsufficientCredits) {
		balance, berr := s.currentBalance(ctx, accountID)
		if berr != nil {
			s.LogError(ctx, berr, "Failed to read credit balance after rejected charge", slog.String("account_id", accountID))
			return nil, berr
		}
		return s.rejected(ctx, accountID, action, cost, balance), nil
	}
	if err != nil {
		return nil, err
	}
	return s.charged(txn, cost), nil
}

// WithCreditCheck rejects early on the balance read at call time. The debit that
// follows is the actual guard: when a concurrent charge wins the race in between,
// the debit matches no row and the caller still sees the call-time balance.
func (s *creditService) WithCreditCheck(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	check, err := s.CheckBalance(ctx, accountID, action)
	if err != nil {
		return nil, err
	}
	if !check.HasEnough {
		return s.rejected(ctx, accountID, action, check.Required, check.CurrentBalance), nil
	}

	txn, err := s.debit(ctx, accountID, action, check.Required, metadata)
	if errors.Is(err, apperrors.ErrInsufficientCredits) {
		s.LogInfo(ctx, "Charge lost a concurrent race for the balance",
			slog.String("account_id", accountID),
			slog.String("action", string(action)))
		return s.rejected(ctx, accountID, action, check.Required, check.CurrentBalance), nil
	}
	if err != nil {
		return nil, err
	}
	return s.charged(txn, check.Required), nil
}

func (s *creditService) Add(ctx context.Context, input domain.AddCreditsInput) (*domain.AddOutcome, error) {
	if input.AccountID == "" {
		return nil, fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", apperrors.ErrValidation, input.Amount)
	}
	if input.ActionType == "" {
		return nil, fmt.Errorf("%w: action type is required", apperrors.ErrValidation)
	}

	entry := domain.LedgerEntry{
		TransactionID:  uuid.NewString(),
		AccountID:      input.AccountID,
		ActionType:     input.ActionType,
		Amount:         input.Amount,
		Metadata:       input.Metadata,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
	}

	txn, err := s.repo.CreditCredits(ctx, entry)
	switch {
	case errors.Is(err, apperrors.ErrDuplicate):
		s.LogInfo(ctx, "Credit already applied for idempotency key, skipping",
			slog.String("account_id", input.AccountID),
			slog.String("idempotency_key", input.IdempotencyKey))
		balance, berr := s.currentBalance(ctx, input.AccountID)
		if berr != nil {
			return nil, berr
		}
		return &domain.AddOutcome{Success: true, Duplicate: true, NewBalance: balance}, nil
	case errors.Is(err, apperrors.ErrNotFound):
		s.LogError(ctx, err, "Cannot credit a missing account", slog.String("account_id", input.AccountID))
		return nil, fmt.Errorf("account %s: %w", input.AccountID, err)
	case err != nil:
		s.LogError(ctx, err, "Failed to credit account",
			slog.String("account_id", input.AccountID),
			slog.String("action", string(input.ActionType)),
			slog.Int64("amount", input.Amount))
		return nil, err
	}

	s.LogInfo(ctx, "Credits added",
		slog.String("account_id", input.AccountID),
		slog.String("action", string(input.ActionType)),
		slog.Int64("amount", input.Amount),
		slog.Int64("balance", txn.CreditsAfter))
	s.track(input.AccountID, EventCreditsAdded, map[string]any{
		"action":  string(input.ActionType),
		"amount":  input.Amount,
		"balance": txn.CreditsAfter,
	})

	return &domain.AddOutcome{Success: true, NewBalance: txn.CreditsAfter, Transaction: txn}, nil
}

// Refund gives back exactly what the debit debitTransactionID took. The store
// checks that the debit belongs to accountID and was a charge for action.
func (s *creditService) Refund(ctx context.Context, accountID string, action domain.ActionType, debitTransactionID string, metadata map[string]any) (*domain.AddOutcome, error) {
	if _, err := s.costOf(accountID, action); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(debitTransactionID); err != nil {
		return nil, fmt.Errorf("%w: transaction id %q is not a valid UUID", apperrors.ErrValidation, debitTransactionID)
	}

	refundMeta := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		refundMeta[k] = v
	}
	refundMeta["refunded_action"] = string(action)
	refundMeta["refunded_transaction_id"] = debitTransactionID

	entry := domain.LedgerEntry{
		TransactionID: uuid.NewString(),
		AccountID:     accountID,
		ActionType:    domain.ActionRefund,
		Metadata:      refundMeta,
		CreatedAt:     s.now().UTC(),
	}

	txn, err := s.repo.RefundDebit(ctx, debitTransactionID, action, entry)
	switch {
	case errors.Is(err, apperrors.ErrDuplicate):
		s.LogInfo(ctx, "Debit already refunded, skipping",
			slog.String("account_id", accountID),
			slog.String("debit_transaction_id", debitTransactionID))
		balance, berr := s.currentBalance(ctx, accountID)
		if berr != nil {
			return nil, berr
		}
		return &domain.AddOutcome{Success: true, Duplicate: true, NewBalance: balance}, nil
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrValidation):
		s.LogWarn(ctx, "Refund rejected",
			slog.String("account_id", accountID),
			slog.String("debit_transaction_id", debitTransactionID),
			slog.String("error", err.Error()))
		return nil, err
	case err != nil:
		s.LogError(ctx, err, "Failed to refund debit",
			slog.String("account_id", accountID),
			slog.String("debit_transaction_id", debitTransactionID))
		return nil, err
	}

	s.LogInfo(ctx, "Debit refunded",
		slog.String("account_id", accountID),
		slog.String("debit_transaction_id", debitTransactionID),
		slog.Int64("amount", -txn.CreditsUsed),
		slog.Int64("balance", txn.CreditsAfter))
	s.track(accountID, EventCreditsAdded, map[string]any{
		"action":  string(domain.ActionRefund),
		"amount":  -txn.CreditsUsed,
		"balance": txn.CreditsAfter,
	})

	return &domain.AddOutcome{Success: true, NewBalance: txn.CreditsAfter, Transaction: txn}, nil
}

func (s *creditService) GetStats(ctx context.Context, accountID string) (*domain.CreditStats, error) {
	acc, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to load credit stats", slog.String("account_id", accountID))
		}
		return nil, err
	}
	return &domain.CreditStats{
		Balance:            acc.CreditsBalance,
		TotalUsed:          acc.CreditsTotalUsed,
		SubscriptionStatus: acc.SubscriptionStatus,
	}, nil
}

func (s *creditService) ListTransactions(ctx context.Context, accountID string, limit int, pageToken string) (*domain.TransactionPage, error) {
	if limit <= 0 {
		limit = defaultTransactionPageSize
	}
	if limit > maxTransactionPageSize {
		limit = maxTransactionPageSize
	}

	var before int64
	if pageToken != "" {
		seq, err := pagination.DecodeSequenceToken(pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		before = seq
	}

	// One extra row tells whether another page exists.
	txns, err := s.repo.ListTransactions(ctx, accountID, limit+1, before)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions", slog.String("account_id", accountID))
		return nil, err
	}

	page := &domain.TransactionPage{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		token := pagination.EncodeSequenceToken(page.Transactions[limit-1].Sequence)
		page.NextToken = &token
	}
	return page, nil
}

func (s *creditService) costOf(accountID string, action domain.ActionType) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	cost, ok := domain.CreditCost(action)
	if !ok {
		return 0, fmt.Errorf("%w: %w: %q", apperrors.ErrValidation, apperrors.ErrUnsupportedActionType, action)
	}
	return cost, nil
}

// currentBalance reads the balance, treating a missing account as empty.
func (s *creditService) currentBalance(ctx context.Context, accountID string) (int64, error) {
	acc, err := s.repo.FindAccountByID(ctx, accountID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.CreditsBalance, nil
}

func (s *creditService) debit(ctx context.Context, accountID string, action domain.ActionType, cost int64, metadata map[string]any) (*domain.Transaction, error) {
	txn, err := s.repo.DebitCredits(ctx, domain.LedgerEntry{
		TransactionID: uuid.NewString(),
		AccountID:     accountID,
		ActionType:    action,
		Amount:        cost,
		Metadata:      metadata,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrInsufficientCredits) {
			s.LogError(ctx, err, "Failed to deduct credits",
				slog.String("account_id", accountID),
				slog.String("action", string(action)))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Credits deducted",
		slog.String("account_id", accountID),
		slog.String("action", string(action)),
		slog.Int64("cost", cost),
		slog.Int64("balance", txn.CreditsAfter))
	s.track(accountID, EventCreditsDeducted, map[string]any{
		"action":  string(action),
		"cost":    cost,
		"balance": txn.CreditsAfter,
	})
	return txn, nil
}

func (s *creditService) charged(txn *domain.Transaction, cost int64) *domain.ChargeOutcome {
	return &domain.ChargeOutcome{
		Success:     true,
		NewBalance:  txn.CreditsAfter,
		Required:    cost,
		Transaction: txn,
	}
}

func (s *creditService) rejected(ctx context.Context, accountID string, action domain.ActionType, cost, balance int64) *domain.ChargeOutcome {
	s.LogInfo(ctx, "Charge rejected for insufficient credits",
		slog.String("account_id", accountID),
		slog.String("action", string(action)),
		slog.Int64("required", cost),
		slog.Int64("balance", balance))
	s.track(accountID, EventChargeRejected, map[string]any{
		"action":   string(action),
		"required": cost,
		"balance":  balance,
	})
	return &domain.ChargeOutcome{
		Success:        false,
		CurrentBalance: balance,
		Required:       cost,
		Reason:         domain.ChargeFailureInsufficientCredits,
	}
}

func (s *creditService) track(accountID, event string, properties map[string]any) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(accountID, event, properties)
}
