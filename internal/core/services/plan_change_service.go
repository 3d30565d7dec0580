package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
)

type planChangeService struct {
	BaseService
	accounts portsrepo.CreditRepositoryFacade
	credits  portssvc.CreditWriterSvc
	gateway  gateways.SubscriptionGateway
	catalog  *domain.PlanCatalog
}

// NewPlanChangeService creates the plan change orchestrator. A nil gateway means
// billing is not configured and every change is rejected.
func NewPlanChangeService(
	accounts portsrepo.CreditRepositoryFacade,
	credits portssvc.CreditWriterSvc,
	gateway gateways.SubscriptionGateway,
	catalog *domain.PlanCatalog,
) portssvc.PlanChangeSvc {
	return &planChangeService{
		accounts: accounts,
		credits:  credits,
		gateway:  gateway,
		catalog:  catalog,
	}
}

var _ portssvc.PlanChangeSvc = (*planChangeService)(nil)

func (s *planChangeService) ChangePlan(ctx context.Context, accountID string, newPriceID string) (*domain.PlanChangeResult, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrBillingNotConfigured
	}
	if newPriceID == "" {
		return nil, fmt.Errorf("%w: new price id is required", apperrors.ErrValidation)
	}

	acc, err := s.accounts.FindAccountByID(ctx, accountID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %s is not provisioned", apperrors.ErrNoSubscription, accountID)
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to load account for plan change", slog.String("account_id", accountID))
		return nil, err
	}
	if !acc.HasSubscription() {
		return nil, apperrors.ErrNoSubscription
	}

	sub, err := s.gateway.GetSubscription(ctx, *acc.BillingSubscriptionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to fetch subscription from billing provider",
			slog.String("account_id", accountID),
			slog.String("subscription_id", *acc.BillingSubscriptionID))
		return nil, err
	}

	if sub.PriceID == newPriceID {
		return nil, apperrors.ErrSamePlan
	}

	current, ok := s.catalog.ByPriceID(sub.PriceID)
	if !ok {
		err := fmt.Errorf("%w: current price %s is not in the plan catalog", apperrors.ErrUnknownPlan, sub.PriceID)
		s.LogError(ctx, err, "Billing configuration does not cover the subscribed price", slog.String("account_id", accountID))
		return nil, err
	}
	next, ok := s.catalog.ByPriceID(newPriceID)
	if !ok {
		return nil, fmt.Errorf("%w: price %s is not in the plan catalog", apperrors.ErrUnknownPlan, newPriceID)
	}

	isUpgrade := next.Credits > current.Credits
	proration := domain.ProrateNone
	if isUpgrade {
		proration = domain.ProrateImmediately
	}

	updated, err := s.gateway.ChangeSubscriptionPrice(ctx, domain.PriceChange{
		SubscriptionID: sub.ID,
		ItemID:         sub.ItemID,
		NewPriceID:     newPriceID,
		Proration:      proration,
	})
	if err != nil {
		s.LogError(ctx, err, "Billing provider rejected the price change",
			slog.String("account_id", accountID),
			slog.String("from_price", sub.PriceID),
			slog.String("to_price", newPriceID))
		return nil, err
	}

	result := &domain.PlanChangeResult{
		IsUpgrade: isUpgrade,
		FromPlan:  current.Name,
		ToPlan:    next.Name,
	}

	if isUpgrade {
		diff := next.Credits - current.Credits
		outcome, err := s.credits.Add(ctx, domain.AddCreditsInput{
			AccountID:      accountID,
			Amount:         diff,
			ActionType:     domain.ActionPlanUpgrade,
			IdempotencyKey: domain.UpgradeKey(*sub, newPriceID),
			Metadata: map[string]any{
				"from_price":      sub.PriceID,
				"to_price":        newPriceID,
				"from_plan":       string(current.Name),
				"to_plan":         string(next.Name),
				"subscription_id": sub.ID,
			},
		})
		if err != nil {
			// The provider has already billed the upgrade; this needs a manual grant.
			s.LogError(ctx, err, "Upgrade billed but credits could not be added",
				slog.String("account_id", accountID),
				slog.String("subscription_id", sub.ID),
				slog.Int64("credits_owed", diff))
			return nil, err
		}
		if outcome.Duplicate {
			// A concurrent or repeated request already granted this upgrade.
			s.LogInfo(ctx, "Upgrade credits already granted for this period",
				slog.String("account_id", accountID),
				slog.String("subscription_id", sub.ID),
				slog.String("to_price", newPriceID))
			return nil, apperrors.ErrSamePlan
		}
		result.CreditsAdded = diff
		result.Message = fmt.Sprintf("Upgraded to %s. %d credits have been added to your balance now.", next.Name, diff)
	} else {
		result.Message = fmt.Sprintf("Your plan will change to %s at the end of the current billing period. Your credits stay unchanged until then.", next.Name)
	}

	update := domain.SubscriptionUpdate{
		Status:         next.Name,
		BillingPriceID: &newPriceID,
	}
	if updated != nil {
		update.CurrentPeriodEnd = updated.CurrentPeriodEnd
		update.CancelAt = updated.CancelAt
	}
	if err := s.accounts.UpdateSubscription(ctx, accountID, update); err != nil {
		// Plan changes read the price from the provider, so a stale row does not block the next one.
		s.LogError(ctx, err, "Failed to persist plan change",
			slog.String("account_id", accountID),
			slog.String("plan", string(next.Name)))
	}

	s.LogInfo(ctx, "Plan changed",
		slog.String("account_id", accountID),
		slog.String("from_plan", string(current.Name)),
		slog.String("to_plan", string(next.Name)),
		slog.Bool("is_upgrade", isUpgrade),
		slog.Int64("credits_added", result.CreditsAdded))
	return result, nil
}
