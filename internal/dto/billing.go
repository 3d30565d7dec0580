package dto

import "github.com/SscSPs/deck_credits/internal/core/domain"

// ChangePlanRequest moves the caller's subscription to another price.
type ChangePlanRequest struct {
	NewPriceID string `json:"newPriceId" binding:"required"`
}

// ChangePlanResponse tells the client which message to show.
type ChangePlanResponse struct {
	Success      bool   `json:"success"`
	IsUpgrade    bool   `json:"isUpgrade"`
	Message      string `json:"message"`
	CreditsAdded int64  `json:"creditsAdded"`
}

// WebhookAckResponse acknowledges a billing provider delivery.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

func ToChangePlanResponse(result *domain.PlanChangeResult) ChangePlanResponse {
	return ChangePlanResponse{
		Success:      true,
		IsUpgrade:    result.IsUpgrade,
		Message:      result.Message,
		CreditsAdded: result.CreditsAdded,
	}
}
