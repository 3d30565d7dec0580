package domain

import "time"

// ActionType names the reason for a ledger mutation.
type ActionType string

// Chargeable feature actions, see ActionCosts.
const (
	ActionPresentationCreate ActionType = "presentation_create"
	ActionSlideGenerate      ActionType = "slide_generate"
	ActionImageGenerate      ActionType = "image_generate"
	ActionChatMessage        ActionType = "chat_message"
	ActionBrainstorming      ActionType = "brainstorming"
)

// Billing-origin actions. These only ever add credits.
const (
	ActionCreditPurchase ActionType = "credit_purchase"
	ActionPlanUpgrade    ActionType = "plan_upgrade"
	ActionCreditGrant    ActionType = "credit_grant"
	ActionRefund         ActionType = "refund"
)

// Transaction is one append-only ledger row. CreditsUsed is positive for a debit
// and negative for a credit.
type Transaction struct {
	TransactionID string         `json:"transactionID"`
	Sequence      int64          `json:"sequence"` // Store-assigned, orders rows of one account
	AccountID     string         `json:"accountID"`
	ActionType    ActionType     `json:"actionType"`
	CreditsUsed   int64          `json:"creditsUsed"`
	CreditsBefore int64          `json:"creditsBefore"`
	CreditsAfter  int64          `json:"creditsAfter"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// IsConsistent checks credits_after = credits_before - credits_used.
func (t Transaction) IsConsistent() bool {
	return t.CreditsAfter == t.CreditsBefore-t.CreditsUsed
}

// IsRefundableDebit reports whether t is a debit of the chargeable action that can
// be given back.
func (t Transaction) IsRefundableDebit(action ActionType) bool {
	if t.ActionType != action || t.CreditsUsed <= 0 {
		return false
	}
	_, chargeable := CreditCost(t.ActionType)
	return chargeable
}

// RefundKey is the idempotency key claimed when the debit transactionID is refunded.
func RefundKey(transactionID string) string {
	return "refund:" + transactionID
}

// ReplayBalance folds transactions ordered oldest first and returns the resulting
// balance. ok is false if a row is inconsistent or does not chain onto its predecessor.
func ReplayBalance(txns []Transaction) (balance int64, ok bool) {
	for i, t := range txns {
		if !t.IsConsistent() {
			return 0, false
		}
		if i > 0 && txns[i-1].CreditsAfter != t.CreditsBefore {
			return 0, false
		}
		balance = t.CreditsAfter
	}
	return balance, true
}

// LedgerEntry is the input of a single atomic ledger mutation.
type LedgerEntry struct {
	TransactionID  string
	AccountID      string
	ActionType     ActionType
	Amount         int64 // Always positive; the direction is given by the primitive used
	Metadata       map[string]any
	IdempotencyKey string // Optional, only honoured by credit (add) mutations
	CreatedAt      time.Time
}

// TransactionPage is one page of an account's history, newest first.
type TransactionPage struct {
	Transactions []Transaction
	NextToken    *string
}
