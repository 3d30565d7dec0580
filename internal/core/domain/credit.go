package domain

// ChargeFailure classifies a failed charge. Only business outcomes live here;
// infrastructure failures are returned as errors.
type ChargeFailure string

const (
	ChargeFailureNone                ChargeFailure = ""
	ChargeFailureInsufficientCredits ChargeFailure = "insufficient_credits"
)

// BalanceCheck is the read-only pre-flight answer for an action.
type BalanceCheck struct {
	HasEnough      bool  `json:"hasEnough"`
	CurrentBalance int64 `json:"currentBalance"`
	Required       int64 `json:"required"`
}

// ChargeOutcome is the result of Deduct and WithCreditCheck.
type ChargeOutcome struct {
	Success        bool
	NewBalance     int64         // Set on success
	CurrentBalance int64         // Set on failure, balance observed when the call started
	Required       int64         // Policy cost of the action
	Reason         ChargeFailure // Set on failure
	Transaction    *Transaction  // The debit row on success
}

// AddCreditsInput describes a credit (add) operation.
type AddCreditsInput struct {
	AccountID      string
	Amount         int64
	ActionType     ActionType
	Metadata       map[string]any
	IdempotencyKey string
}

// AddOutcome is the result of Add. Duplicate is set when the idempotency key
// had already been applied, in which case nothing was mutated.
type AddOutcome struct {
	Success     bool
	NewBalance  int64
	Duplicate   bool
	Transaction *Transaction
}

// CreditStats is a read-only projection for display.
type CreditStats struct {
	Balance            int64              `json:"balance"`
	TotalUsed          int64              `json:"totalUsed"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
}
