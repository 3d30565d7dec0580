package services

// ServiceContainer holds instances of all the application services.
// Handlers only ever see these interfaces.
type ServiceContainer struct {
	Credit         CreditSvcFacade
	BillingWebhook BillingWebhookSvc
	PlanChange     PlanChangeSvc
}
