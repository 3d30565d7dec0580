package services_test

import (
	"context"

	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// --- Mock CreditRepository ---
type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockCreditRepository) ListTransactions(ctx context.Context, accountID string, limit int, beforeSequence int64) ([]domain.Transaction, error) {
	args := m.Called(ctx, accountID, limit, beforeSequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockCreditRepository) DebitCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockCreditRepository) CreditCredits(ctx context.Context, entry domain.LedgerEntry) (*domain.Transaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockCreditRepository) RefundDebit(ctx context.Context, debitTransactionID string, action domain.ActionType, entry domain.LedgerEntry) (*domain.Transaction, error) {
	args := m.Called(ctx, debitTransactionID, action, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockCreditRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockCreditRepository) UpdateSubscription(ctx context.Context, accountID string, update domain.SubscriptionUpdate) error {
	args := m.Called(ctx, accountID, update)
	return args.Error(0)
}

// --- Mock CreditSvc ---
type MockCreditSvc struct {
	mock.Mock
}

func (m *MockCreditSvc) Deduct(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	args := m.Called(ctx, accountID, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeOutcome), args.Error(1)
}

func (m *MockCreditSvc) Add(ctx context.Context, input domain.AddCreditsInput) (*domain.AddOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddOutcome), args.Error(1)
}

func (m *MockCreditSvc) WithCreditCheck(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	args := m.Called(ctx, accountID, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeOutcome), args.Error(1)
}

func (m *MockCreditSvc) Refund(ctx context.Context, accountID string, action domain.ActionType, debitTransactionID string, metadata map[string]any) (*domain.AddOutcome, error) {
	args := m.Called(ctx, accountID, action, debitTransactionID, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddOutcome), args.Error(1)
}

// --- Mock gateways ---
type MockEventVerifier struct {
	mock.Mock
}

func (m *MockEventVerifier) VerifyEvent(payload []byte, signatureHeader string) (*domain.BillingEvent, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingEvent), args.Error(1)
}

type MockSubscriptionGateway struct {
	mock.Mock
}

func (m *MockSubscriptionGateway) GetSubscription(ctx context.Context, subscriptionID string) (*domain.BillingSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingSubscription), args.Error(1)
}

func (m *MockSubscriptionGateway) ChangeSubscriptionPrice(ctx context.Context, change domain.PriceChange) (*domain.BillingSubscription, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingSubscription), args.Error(1)
}

type MockUsageTracker struct {
	mock.Mock
}

func (m *MockUsageTracker) Track(accountID string, event string, properties map[string]any) {
	m.Called(accountID, event, properties)
}

func testCatalog() *domain.PlanCatalog {
	catalog, err := domain.NewPlanCatalog(
		domain.Plan{Name: domain.StatusLite, PriceID: "price_lite", Credits: 1000},
		domain.Plan{Name: domain.StatusPlus, PriceID: "price_plus", Credits: 2000},
		domain.Plan{Name: domain.StatusPro, PriceID: "price_pro", Credits: 5000},
	)
	if err != nil {
		panic(err)
	}
	return catalog
}

func strPtr(s string) *string { return &s }
