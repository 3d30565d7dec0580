package domain

// ActionCosts is the single source of truth for what a chargeable action costs.
var ActionCosts = map[ActionType]int64{
	ActionPresentationCreate: 10,
	ActionSlideGenerate:      5,
	ActionImageGenerate:      2,
	ActionChatMessage:        2,
	ActionBrainstorming:      3,
}

// CreditCost returns the cost of a chargeable action. ok is false for unknown
// actions and for billing-origin actions, which are never charged.
func CreditCost(action ActionType) (cost int64, ok bool) {
	cost, ok = ActionCosts[action]
	return cost, ok
}
