package models

import "time"

// RuleScope controls which trigger a rule is eligible to fire on.
type RuleScope string

const (
	ScopeImport RuleScope = "IMPORT"
	ScopeEdit   RuleScope = "EDIT"
	ScopeBoth   RuleScope = "BOTH"
)

// RuleApplyTo controls which transaction the rule's outputs land on.
type RuleApplyTo string

const (
	ApplySelf        RuleApplyTo = "SELF"
	ApplyCounterpart RuleApplyTo = "COUNTERPART"
	ApplyBothSides   RuleApplyTo = "BOTH"
)

// MatchingRule is one row of the declarative workflow rule table. The
// table is seeded from db/rules.json at startup and admin-edited through
// the API; the engine treats it as read-only during evaluation.
//
// Every predicate field is a pointer: nil means wildcard (the predicate
// always matches), non-nil means the transaction attribute must be equal.
// There is no reflection-based field lookup; each predicate is a typed
// column checked explicitly by the engine.
type MatchingRule struct {
	// ID is a stable business identifier (e.g. "IMP-020"); selection ties
	// on equal priority are broken by ascending lexicographic ID.
	ID string `gorm:"primaryKey" json:"id"`

	Priority int         `gorm:"not null" json:"priority"`
	Scope    RuleScope   `gorm:"not null" json:"scope"`
	ApplyTo  RuleApplyTo `gorm:"not null;default:SELF" json:"apply_to"`
	Active   bool        `gorm:"not null;default:true" json:"active"`

	// Match predicates over ledger attributes.
	AccountSide        *string `json:"account_side"`
	TransactionType    *string `json:"transaction_type"`
	Sign               *string `json:"sign"` // CREDIT or DEBIT
	GuaranteeType      *string `json:"guarantee_type"`
	AmountMatched      *bool   `json:"amount_matched"`
	StatusAcknowledged *bool   `json:"status_acknowledged"`
	FirstOccurrence    *bool   `json:"first_occurrence"`

	// Guard predicates over the transaction's workflow state before this
	// evaluation. RequireNoAction is the loop-breaker: once any action has
	// been set (by a rule or by hand) the rule can never re-fire.
	RequireNoAction   bool  `gorm:"not null;default:false" json:"require_no_action"`
	CurrentActionID   *int  `json:"current_action_id"`
	CurrentActionDone *bool `json:"current_action_done"`

	// Output assignments.
	OutputActionID     *int   `json:"output_action_id"`
	OutputKPIID        *int   `json:"output_kpi_id"`
	OutputIncidentID   *int   `json:"output_incident_id"`
	OutputRiskyItem    *bool  `json:"output_risky_item"`
	OutputReminderDays *int   `json:"output_reminder_days"`
	Message            string `json:"message"`

	Description string `json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MatchingRule) TableName() string {
	return "matching_rules"
}

// AppliesTo reports whether the rule's scope includes the given trigger.
func (r *MatchingRule) AppliesTo(scope RuleScope) bool {
	return r.Scope == ScopeBoth || r.Scope == scope
}
