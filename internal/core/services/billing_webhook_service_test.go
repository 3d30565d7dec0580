package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type BillingWebhookServiceTestSuite struct {
	suite.Suite
	verifier *MockEventVerifier
	credits  *MockCreditSvc
	repo     *MockCreditRepository
	service  portssvc.BillingWebhookSvc
	ctx      context.Context
	payload  []byte
}

func (suite *BillingWebhookServiceTestSuite) SetupTest() {
	suite.verifier = new(MockEventVerifier)
	suite.credits = new(MockCreditSvc)
	suite.repo = new(MockCreditRepository)
	suite.ctx = context.Background()
	suite.payload = []byte(`{"id":"evt_1"}`)
	suite.service = services.NewBillingWebhookService(suite.verifier, suite.credits, suite.repo, testCatalog(),
		services.WithWebhookTimeout(2*time.Second))
}

func TestBillingWebhookServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BillingWebhookServiceTestSuite))
}

func checkoutEvent() *domain.BillingEvent {
	return &domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventCheckoutSessionCompleted,
		Checkout: &domain.CheckoutCompleted{
			SessionID:      "cs_1",
			AccountID:      "user-1",
			PlanName:       "Plus",
			PriceID:        "price_plus",
			SubscriptionID: "sub_1",
			CustomerID:     "cus_1",
			AmountTotal:    1999,
			Currency:       "usd",
			PaymentStatus:  "paid",
		},
	}
}

func (suite *BillingWebhookServiceTestSuite) assertNoMutation() {
	suite.credits.AssertNotCalled(suite.T(), "Add", mock.Anything, mock.Anything)
	suite.repo.AssertNotCalled(suite.T(), "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_InvalidSignatureNeverMutates() {
	for _, header := range []string{"", "t=1,v1=bad"} {
		suite.verifier.On("VerifyEvent", suite.payload, header).Return(nil, apperrors.ErrSignatureInvalid).Once()

		err := suite.service.HandleEvent(suite.ctx, suite.payload, header)

		suite.ErrorIs(err, apperrors.ErrSignatureInvalid)
	}
	suite.assertNoMutation()
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_IgnoresOtherTypes() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(&domain.BillingEvent{ID: "evt_2", Type: "invoice.paid"}, nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.NoError(err)
	suite.assertNoMutation()
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_GrantsPlanCredits() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(checkoutEvent(), nil).Once()
	suite.credits.On("Add", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	}), mock.MatchedBy(func(in domain.AddCreditsInput) bool {
		return in.AccountID == "user-1" &&
			in.Amount == 2000 &&
			in.ActionType == domain.ActionCreditPurchase &&
			in.IdempotencyKey == "cs_1" &&
			in.Metadata["event_id"] == "evt_1" &&
			in.Metadata["session_id"] == "cs_1" &&
			in.Metadata["amount_paid"] == "19.99" &&
			in.Metadata["currency"] == "usd" &&
			in.Metadata["plan"] == "plus" &&
			in.Metadata["price"] == "price_plus" &&
			in.Metadata["customer_id"] == "cus_1"
	})).Return(&domain.AddOutcome{Success: true, NewBalance: 2000}, nil).Once()
	suite.repo.On("UpdateSubscription", mock.Anything, "user-1", mock.MatchedBy(func(u domain.SubscriptionUpdate) bool {
		return u.Status == domain.StatusPlus &&
			u.BillingSubscriptionID != nil && *u.BillingSubscriptionID == "sub_1" &&
			u.BillingPriceID != nil && *u.BillingPriceID == "price_plus"
	})).Return(nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.NoError(err)
	suite.credits.AssertExpectations(suite.T())
	suite.repo.AssertExpectations(suite.T())
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_UnsettledPaymentGrantsNothing() {
	for _, status := range []string{"unpaid", ""} {
		event := checkoutEvent()
		event.Checkout.PaymentStatus = status
		suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(event, nil).Once()

		err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

		suite.NoError(err, "payment status %q", status)
	}
	suite.assertNoMutation()
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_NoPaymentRequiredGrants() {
	event := checkoutEvent()
	event.Checkout.PaymentStatus = domain.PaymentStatusNoPaymentRequired
	event.Checkout.AmountTotal = 0
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(event, nil).Once()
	suite.credits.On("Add", mock.Anything, mock.MatchedBy(func(in domain.AddCreditsInput) bool {
		return in.Amount == 2000 && in.IdempotencyKey == "cs_1"
	})).Return(&domain.AddOutcome{Success: true, NewBalance: 2000}, nil).Once()
	suite.repo.On("UpdateSubscription", mock.Anything, "user-1", mock.AnythingOfType("domain.SubscriptionUpdate")).Return(nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.NoError(err)
	suite.credits.AssertExpectations(suite.T())
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_DuplicateDeliveryIsAcknowledged() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(checkoutEvent(), nil).Once()
	suite.credits.On("Add", mock.Anything, mock.AnythingOfType("domain.AddCreditsInput")).
		Return(&domain.AddOutcome{Success: true, Duplicate: true, NewBalance: 2000}, nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.NoError(err)
	suite.repo.AssertNotCalled(suite.T(), "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_SchemaViolations() {
	tests := []struct {
		name   string
		mutate func(c *domain.CheckoutCompleted)
	}{
		{"missing account", func(c *domain.CheckoutCompleted) { c.AccountID = "" }},
		{"missing plan name", func(c *domain.CheckoutCompleted) { c.PlanName = "" }},
		{"missing price", func(c *domain.CheckoutCompleted) { c.PriceID = "" }},
		{"missing session", func(c *domain.CheckoutCompleted) { c.SessionID = "" }},
		{"negative amount", func(c *domain.CheckoutCompleted) { c.AmountTotal = -1 }},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.SetupTest()
			event := checkoutEvent()
			tt.mutate(event.Checkout)
			suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(event, nil).Once()

			err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

			suite.ErrorIs(err, apperrors.ErrMalformedEvent)
			suite.assertNoMutation()
		})
	}
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_MissingCheckoutPayload() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(&domain.BillingEvent{ID: "evt_1", Type: domain.EventCheckoutSessionCompleted}, nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.ErrorIs(err, apperrors.ErrMalformedEvent)
	suite.assertNoMutation()
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_UnknownPlan() {
	event := checkoutEvent()
	event.Checkout.PlanName = "enterprise"
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(event, nil).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.ErrorIs(err, apperrors.ErrUnknownPlan)
	suite.assertNoMutation()
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_GrantFailureIsReturned() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(checkoutEvent(), nil).Once()
	suite.credits.On("Add", mock.Anything, mock.AnythingOfType("domain.AddCreditsInput")).
		Return(nil, apperrors.Unavailable("credit", assert.AnError)).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.ErrorIs(err, apperrors.ErrStoreUnavailable)
	suite.repo.AssertNotCalled(suite.T(), "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *BillingWebhookServiceTestSuite) TestHandleEvent_ReconcileFailureIsNotFatal() {
	suite.verifier.On("VerifyEvent", suite.payload, "sig").Return(checkoutEvent(), nil).Once()
	suite.credits.On("Add", mock.Anything, mock.AnythingOfType("domain.AddCreditsInput")).
		Return(&domain.AddOutcome{Success: true, NewBalance: 2000}, nil).Once()
	suite.repo.On("UpdateSubscription", mock.Anything, "user-1", mock.AnythingOfType("domain.SubscriptionUpdate")).
		Return(apperrors.Unavailable("update", assert.AnError)).Once()

	err := suite.service.HandleEvent(suite.ctx, suite.payload, "sig")

	suite.NoError(err)
	suite.repo.AssertExpectations(suite.T())
}
