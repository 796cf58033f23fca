package models

// Action is a quota-limited operation.
type Action string

const (
	ActionCreateWorkspace Action = "createWorkspace"
	ActionCreateContact   Action = "createContact"
	ActionCreateTile      Action = "createTile"
	ActionTileChat        Action = "tileChat"
	ActionContactChat     Action = "contactChat"
	ActionRegenerate      Action = "regenerate"
)

// Actions lists every limited action in display order.
var Actions = []Action{
	ActionCreateWorkspace,
	ActionCreateContact,
	ActionCreateTile,
	ActionTileChat,
	ActionContactChat,
	ActionRegenerate,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Unlimited is the limit value for actions without a ceiling.
const Unlimited = -1

// QuotaResult is the outcome of evaluating or consuming one action.
// For unlimited actions Limit and Remaining are both Unlimited.
type QuotaResult struct {
	Action    Action `json:"action"`
	Allowed   bool   `json:"allowed"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// NewQuotaResult derives Allowed and Remaining from used and limit.
func NewQuotaResult(action Action, used, limit int) QuotaResult {
	if limit == Unlimited {
		return QuotaResult{Action: action, Allowed: true, Used: used, Limit: Unlimited, Remaining: Unlimited}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaResult{Action: action, Allowed: used < limit, Used: used, Limit: limit, Remaining: remaining}
}

// QuotaRecord is one per-identity, per-action counter.
type QuotaRecord struct {
	IdentityID string `json:"identityId"`
	Action     Action `json:"action"`
	Count      int    `json:"count"`
}
