package dto

import (
	"time"

	"github.com/SscSPs/deck_credits/internal/core/domain"
)

// ChargeCreditsRequest asks to charge the policy cost of an action.
type ChargeCreditsRequest struct {
	Action   string         `json:"action" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// ChargeCreditsResponse is returned when the charge went through.
type ChargeCreditsResponse struct {
	Success          bool   `json:"success"`
	CreditsRemaining int64  `json:"creditsRemaining"`
	TransactionID    string `json:"transactionID,omitempty"`
}

// InsufficientCreditsResponse is the 402 body feature endpoints relay to the client.
type InsufficientCreditsResponse struct {
	Error           string `json:"error"`
	CreditsRequired int64  `json:"creditsRequired"`
	CurrentBalance  int64  `json:"currentBalance"`
}

// RefundCreditsRequest gives back a charge whose feature call failed.
// TransactionID is the caller's own debit for Action. It can be refunded once.
type RefundCreditsRequest struct {
	Action        string         `json:"action" binding:"required"`
	TransactionID string         `json:"transactionID" binding:"required,uuid"`
	Metadata      map[string]any `json:"metadata"`
}

// BalanceCheckResponse answers a pre-flight balance check.
type BalanceCheckResponse struct {
	HasEnough      bool  `json:"hasEnough"`
	CurrentBalance int64 `json:"currentBalance"`
	Required       int64 `json:"required"`
}

// CreditStatsResponse is the display projection of an account's credits.
type CreditStatsResponse struct {
	Balance            int64  `json:"balance"`
	TotalUsed          int64  `json:"totalUsed"`
	SubscriptionStatus string `json:"subscriptionStatus"`
}

// TransactionResponse is one ledger row.
type TransactionResponse struct {
	TransactionID string         `json:"transactionID"`
	ActionType    string         `json:"actionType"`
	CreditsUsed   int64          `json:"creditsUsed"`
	CreditsBefore int64          `json:"creditsBefore"`
	CreditsAfter  int64          `json:"creditsAfter"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	NextToken string `form:"nextToken"`
}

// ListTransactionsResponse wraps a page of transactions.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}

func ToBalanceCheckResponse(check *domain.BalanceCheck) BalanceCheckResponse {
	return BalanceCheckResponse{
		HasEnough:      check.HasEnough,
		CurrentBalance: check.CurrentBalance,
		Required:       check.Required,
	}
}

func ToCreditStatsResponse(stats *domain.CreditStats) CreditStatsResponse {
	return CreditStatsResponse{
		Balance:            stats.Balance,
		TotalUsed:          stats.TotalUsed,
		SubscriptionStatus: string(stats.SubscriptionStatus),
	}
}

// ToTransactionResponse converts a domain.Transaction to TransactionResponse DTO
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: txn.TransactionID,
		ActionType:    string(txn.ActionType),
		CreditsUsed:   txn.CreditsUsed,
		CreditsBefore: txn.CreditsBefore,
		CreditsAfter:  txn.CreditsAfter,
		Metadata:      txn.Metadata,
		CreatedAt:     txn.CreatedAt,
	}
}

// ToListTransactionsResponse converts a page of transactions, reusing the single converter
func ToListTransactionsResponse(page *domain.TransactionPage) ListTransactionsResponse {
	res := make([]TransactionResponse, len(page.Transactions))
	for i := range page.Transactions {
		res[i] = ToTransactionResponse(&page.Transactions[i])
	}
	return ListTransactionsResponse{Transactions: res, NextToken: page.NextToken}
}
