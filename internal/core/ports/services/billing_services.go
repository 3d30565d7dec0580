package services

import (
	"context"

	"github.com/SscSPs/deck_credits/internal/core/domain"
)

// BillingWebhookSvc processes signed billing-provider notifications.
type BillingWebhookSvc interface {
	// HandleEvent verifies and processes one delivery. A nil error means the
	// delivery should be acknowledged with 200.
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

// PlanChangeSvc switches the subscription tier of an account.
type PlanChangeSvc interface {
	ChangePlan(ctx context.Context, accountID string, newPriceID string) (*domain.PlanChangeResult, error)
}
