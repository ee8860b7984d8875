package services

import (
	"fmt"
	"log"
	"sort"

	model "github.com/mkestrel/LedgerGuard/models"
)

// RuleOutcome carries the selected rule and its output assignments back
// to the workflow updater. Nil pointer outputs mean "this rule does not
// touch that field".
type RuleOutcome struct {
	Rule model.MatchingRule

	ActionID     *int
	KPIID        *int
	IncidentID   *int
	RiskyItem    *bool
	ReminderDays *int
	Message      string

	ApplyTo model.RuleApplyTo
}

// LoadActiveRules fetches the active rule table ordered for evaluation.
func (s *ReconService) LoadActiveRules() ([]model.MatchingRule, error) {
	var rules []model.MatchingRule
	if err := s.db.Where("active = ?", true).Find(&rules).Error; err != nil {
		log.Printf("[LoadActiveRules] Error fetching matching rules: %v", err)
		return nil, fmt.Errorf("failed to fetch matching rules: %w", err)
	}
	log.Printf("[LoadActiveRules] Loaded %d active matching rules", len(rules))
	return rules, nil
}

// EvaluateRules is a pure function of (transaction snapshot, trigger
// scope, rule table): it selects the single best-matching rule and
// returns its outputs, or nil when nothing matches. It never mutates the
// transaction; applying the outcome is the workflow updater's job.
func EvaluateRules(t *model.Transaction, rules []model.MatchingRule, scope model.RuleScope) *RuleOutcome {
	var matched []model.MatchingRule
	for _, rule := range rules {
		if ruleMatches(&rule, t, scope) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	best := selectRule(matched)
	return &RuleOutcome{
		Rule:         best,
		ActionID:     best.OutputActionID,
		KPIID:        best.OutputKPIID,
		IncidentID:   best.OutputIncidentID,
		RiskyItem:    best.OutputRiskyItem,
		ReminderDays: best.OutputReminderDays,
		Message:      best.Message,
		ApplyTo:      best.ApplyTo,
	}
}

// ruleMatches checks the rule's scope, every non-wildcard match predicate,
// and the workflow-state guards against the transaction as it stands
// before this evaluation.
//
// The guards are what keep repeated imports and edit/import interplay
// from looping: RequireNoAction blocks a rule once any action exists, and
// a FirstOccurrence predicate blocks re-fires on re-imported lines. Loop
// prevention is by construction here, not by runtime cycle detection.
func ruleMatches(r *model.MatchingRule, t *model.Transaction, scope model.RuleScope) bool {
	if !r.AppliesTo(scope) {
		return false
	}

	if r.AccountSide != nil && *r.AccountSide != string(t.AccountSide) {
		return false
	}
	if r.TransactionType != nil && *r.TransactionType != t.TransactionType {
		return false
	}
	if r.Sign != nil && *r.Sign != t.Sign() {
		return false
	}
	if r.GuaranteeType != nil && *r.GuaranteeType != t.GuaranteeType {
		return false
	}
	if r.AmountMatched != nil && *r.AmountMatched != t.AmountMatched {
		return false
	}
	if r.StatusAcknowledged != nil && *r.StatusAcknowledged != t.StatusAcknowledged {
		return false
	}
	if r.FirstOccurrence != nil && *r.FirstOccurrence != t.FirstOccurrence {
		return false
	}

	if r.RequireNoAction && t.ActionID != nil {
		return false
	}
	if r.CurrentActionID != nil && (t.ActionID == nil || *t.ActionID != *r.CurrentActionID) {
		return false
	}
	if r.CurrentActionDone != nil && (t.ActionDone == nil || *t.ActionDone != *r.CurrentActionDone) {
		return false
	}

	return true
}

// selectRule picks the winner among matching rules: ascending priority
// number, ties broken by ascending lexicographic rule id. Declaration or
// insertion order is never consulted, so evaluation is deterministic for
// any storage order of the rule table.
func selectRule(matched []model.MatchingRule) model.MatchingRule {
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched[0]
}
