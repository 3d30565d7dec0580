package services

import (
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/core/ports/gateways"
	portsrepo "github.com/SscSPs/deck_credits/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/deck_credits/internal/core/ports/services"
	"github.com/SscSPs/deck_credits/internal/platform/config"
)

// Gateways bundles the adapters to external systems. Subscriptions may be nil
// when no billing provider key is configured; Usage may be nil.
type Gateways struct {
	Verifier      gateways.BillingEventVerifier
	Subscriptions gateways.SubscriptionGateway
	Usage         gateways.UsageTracker
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, catalog *domain.PlanCatalog, gw Gateways) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	creditOpts := []CreditServiceOption{}
	if gw.Usage != nil {
		creditOpts = append(creditOpts, WithUsageTracker(gw.Usage))
	}
	container.Credit = NewCreditService(repos.CreditRepo, creditOpts...)

	container.BillingWebhook = NewBillingWebhookService(
		gw.Verifier,
		container.Credit,
		repos.CreditRepo,
		catalog,
		WithWebhookTimeout(cfg.WebhookTimeout),
	)

	container.PlanChange = NewPlanChangeService(
		repos.CreditRepo,
		container.Credit,
		gw.Subscriptions,
		catalog,
	)

	return container
}
