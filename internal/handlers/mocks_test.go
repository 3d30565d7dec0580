package handlers_test

import (
	"context"
	"time"

	"github.com/SscSPs/deck_credits/internal/core/domain"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
)

const testJWTSecret = "test-secret-key-that-is-long-enough"

// --- Mock CreditService ---
type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) CheckBalance(ctx context.Context, accountID string, action domain.ActionType) (*domain.BalanceCheck, error) {
	args := m.Called(ctx, accountID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceCheck), args.Error(1)
}

func (m *MockCreditService) GetStats(ctx context.Context, accountID string) (*domain.CreditStats, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditStats), args.Error(1)
}

func (m *MockCreditService) ListTransactions(ctx context.Context, accountID string, limit int, pageToken string) (*domain.TransactionPage, error) {
	args := m.Called(ctx, accountID, limit, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionPage), args.Error(1)
}

func (m *MockCreditService) Deduct(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	args := m.Called(ctx, accountID, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeOutcome), args.Error(1)
}

func (m *MockCreditService) Add(ctx context.Context, input domain.AddCreditsInput) (*domain.AddOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddOutcome), args.Error(1)
}

func (m *MockCreditService) WithCreditCheck(ctx context.Context, accountID string, action domain.ActionType, metadata map[string]any) (*domain.ChargeOutcome, error) {
	args := m.Called(ctx, accountID, action, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeOutcome), args.Error(1)
}

func (m *MockCreditService) Refund(ctx context.Context, accountID string, action domain.ActionType, debitTransactionID string, metadata map[string]any) (*domain.AddOutcome, error) {
	args := m.Called(ctx, accountID, action, debitTransactionID, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AddOutcome), args.Error(1)
}

var _ portssvc.CreditSvcFacade = (*MockCreditService)(nil)

// --- Mock PlanChangeService ---
type MockPlanChangeService struct {
	mock.Mock
}

func (m *MockPlanChangeService) ChangePlan(ctx context.Context, accountID string, newPriceID string) (*domain.PlanChangeResult, error) {
	args := m.Called(ctx, accountID, newPriceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlanChangeResult), args.Error(1)
}

var _ portssvc.PlanChangeSvc = (*MockPlanChangeService)(nil)

// --- Mock BillingWebhookService ---
type MockBillingWebhookService struct {
	mock.Mock
}

func (m *MockBillingWebhookService) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	args := m.Called(ctx, payload, signatureHeader)
	return args.Error(0)
}

var _ portssvc.BillingWebhookSvc = (*MockBillingWebhookService)(nil)

// generateTestToken creates a signed access token the way the identity provider would.
func generateTestToken(secret, userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    "deck-test",
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
