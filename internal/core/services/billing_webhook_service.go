package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const defaultWebhookTimeout = 8 * time.Second

type billingWebhookService struct {
	BaseService
	verifier gateways.BillingEventVerifier
	credits  portssvc.CreditWriterSvc
	accounts portsrepo.AccountBillingWriter
	catalog  *domain.PlanCatalog
	validate *validator.Validate
	timeout  time.Duration
}

// BillingWebhookOption is a functional option for configuring the webhook service
type BillingWebhookOption func(*billingWebhookService)

// WithWebhookTimeout bounds the processing of a single delivery.
func WithWebhookTimeout(timeout time.Duration) BillingWebhookOption {
	return func(s *billingWebhookService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewBillingWebhookService(
	verifier gateways.BillingEventVerifier,
	credits portssvc.CreditWriterSvc,
	accounts portsrepo.AccountBillingWriter,
	catalog *domain.PlanCatalog,
	options ...BillingWebhookOption,
) portssvc.BillingWebhookSvc {
	svc := &billingWebhookService{
		verifier: verifier,
		credits:  credits,
		accounts: accounts,
		catalog:  catalog,
		validate: validator.New(),
		timeout:  defaultWebhookTimeout,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.BillingWebhookSvc = (*billingWebhookService)(nil)

func (s *billingWebhookService) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		s.LogWarn(ctx, "Rejected billing webhook", slog.String("error", err.Error()))
		return err
	}

	logger := s.GetLogger(ctx).With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	if event.Type != domain.EventCheckoutSessionCompleted {
		logger.Debug("Ignoring billing event type")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.handleCheckoutCompleted(ctx, logger, event)
}

func (s *billingWebhookService) handleCheckoutCompleted(ctx context.Context, logger *slog.Logger, event *domain.BillingEvent) error {
	checkout := event.Checkout
	if checkout == nil {
		return fmt.Errorf("%w: event %s carries no checkout session", apperrors.ErrMalformedEvent, event.ID)
	}
	if err := s.validate.Struct(checkout); err != nil {
		logger.Warn("Checkout session failed schema validation", slog.String("session_id", checkout.SessionID), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedEvent, err)
	}
	if !checkout.IsPaid() {
		logger.Info("Checkout session not paid yet, acknowledging without effect",
			slog.String("session_id", checkout.SessionID),
			slog.String("account_id", checkout.AccountID),
			slog.String("payment_status", checkout.PaymentStatus))
		return nil
	}

	plan, ok := s.catalog.ByName(checkout.PlanName)
	if !ok {
		err := fmt.Errorf("%w: %q", apperrors.ErrUnknownPlan, checkout.PlanName)
		// The customer paid for something the catalog does not know; operators must act.
		logger.Error("Checkout references a plan missing from the catalog",
			slog.String("error", err.Error()),
			slog.String("session_id", checkout.SessionID),
			slog.String("account_id", checkout.AccountID),
			slog.String("price_id", checkout.PriceID))
		return err
	}

	metadata := map[string]any{
		"event_id":     event.ID,
		"session_id":   checkout.SessionID,
		"amount_total": checkout.AmountTotal,
		"amount_paid":  decimal.New(checkout.AmountTotal, -2).StringFixed(2),
		"currency":     checkout.Currency,
		"plan":         string(plan.Name),
		"price":        checkout.PriceID,
	}
	if checkout.SubscriptionID != "" {
		metadata["subscription_id"] = checkout.SubscriptionID
	}
	if checkout.CustomerID != "" {
		metadata["customer_id"] = checkout.CustomerID
	}

	outcome, err := s.credits.Add(ctx, domain.AddCreditsInput{
		AccountID:      checkout.AccountID,
		Amount:         plan.Credits,
		ActionType:     domain.ActionCreditPurchase,
		Metadata:       metadata,
		IdempotencyKey: checkout.SessionID,
	})
	if err != nil {
		logger.Error("Failed to grant purchased credits",
			slog.String("error", err.Error()),
			slog.String("session_id", checkout.SessionID),
			slog.String("account_id", checkout.AccountID))
		return err
	}
	if outcome.Duplicate {
		logger.Info("Checkout session already processed", slog.String("session_id", checkout.SessionID))
		return nil
	}

	update := domain.SubscriptionUpdate{
		Status:         plan.Name,
		BillingPriceID: &checkout.PriceID,
	}
	if checkout.SubscriptionID != "" {
		update.BillingSubscriptionID = &checkout.SubscriptionID
	}
	if err := s.accounts.UpdateSubscription(ctx, checkout.AccountID, update); err != nil {
		// Credits are granted; the status is repaired by the next plan change or by an operator.
		logger.Error("Failed to reconcile subscription status after checkout",
			slog.String("error", err.Error()),
			slog.String("account_id", checkout.AccountID),
			slog.String("plan", string(plan.Name)))
		return nil
	}

	logger.Info("Checkout completed",
		slog.String("account_id", checkout.AccountID),
		slog.String("plan", string(plan.Name)),
		slog.Int64("credits_granted", plan.Credits),
		slog.Int64("balance", outcome.NewBalance))
	return nil
}
