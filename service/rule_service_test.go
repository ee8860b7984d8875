package services

import (
	"testing"

	"github.com/mkestrel/LedgerGuard/models"
	"github.com/stretchr/testify/assert"
)

func strPtr(v string) *string { return &v }

func wildcardRule(id string, priority int) models.MatchingRule {
	return models.MatchingRule{
		ID:       id,
		Priority: priority,
		Scope:    models.ScopeBoth,
		ApplyTo:  models.ApplySelf,
		Active:   true,
	}
}

func TestEvaluateRules_WildcardMatchesAnything(t *testing.T) {
	rules := []models.MatchingRule{wildcardRule("CATCH-ALL", 90)}
	tx := &models.Transaction{AccountSide: models.SideClearing, Amount: -42}

	out := EvaluateRules(tx, rules, models.ScopeImport)
	assert.NotNil(t, out)
	assert.Equal(t, "CATCH-ALL", out.Rule.ID)

	out = EvaluateRules(tx, rules, models.ScopeEdit)
	assert.NotNil(t, out)
}

func TestEvaluateRules_ScopeFiltering(t *testing.T) {
	importOnly := wildcardRule("IMP-ONLY", 10)
	importOnly.Scope = models.ScopeImport
	editOnly := wildcardRule("EDT-ONLY", 10)
	editOnly.Scope = models.ScopeEdit

	tx := &models.Transaction{AccountSide: models.SideReceivable}

	out := EvaluateRules(tx, []models.MatchingRule{importOnly, editOnly}, models.ScopeImport)
	assert.NotNil(t, out)
	assert.Equal(t, "IMP-ONLY", out.Rule.ID)

	out = EvaluateRules(tx, []models.MatchingRule{importOnly, editOnly}, models.ScopeEdit)
	assert.NotNil(t, out)
	assert.Equal(t, "EDT-ONLY", out.Rule.ID)
}

func TestRuleMatches_Predicates(t *testing.T) {
	base := models.Transaction{
		AccountSide:        models.SideReceivable,
		TransactionType:    "FEE",
		GuaranteeType:      "FIRST_DEMAND",
		Amount:             -50, // DEBIT
		AmountMatched:      true,
		StatusAcknowledged: false,
		FirstOccurrence:    true,
	}

	tests := []struct {
		name string
		rule models.MatchingRule
		want bool
	}{
		{"side match", models.MatchingRule{Scope: models.ScopeBoth, AccountSide: strPtr("RECEIVABLE")}, true},
		{"side mismatch", models.MatchingRule{Scope: models.ScopeBoth, AccountSide: strPtr("CLEARING")}, false},
		{"type mismatch", models.MatchingRule{Scope: models.ScopeBoth, TransactionType: strPtr("SETTLEMENT")}, false},
		{"sign match", models.MatchingRule{Scope: models.ScopeBoth, Sign: strPtr("DEBIT")}, true},
		{"sign mismatch", models.MatchingRule{Scope: models.ScopeBoth, Sign: strPtr("CREDIT")}, false},
		{"guarantee type match", models.MatchingRule{Scope: models.ScopeBoth, GuaranteeType: strPtr("FIRST_DEMAND")}, true},
		{"amount matched", models.MatchingRule{Scope: models.ScopeBoth, AmountMatched: boolPtr(true)}, true},
		{"amount matched mismatch", models.MatchingRule{Scope: models.ScopeBoth, AmountMatched: boolPtr(false)}, false},
		{"status not acknowledged", models.MatchingRule{Scope: models.ScopeBoth, StatusAcknowledged: boolPtr(false)}, true},
		{"first occurrence", models.MatchingRule{Scope: models.ScopeBoth, FirstOccurrence: boolPtr(true)}, true},
		{"first occurrence mismatch", models.MatchingRule{Scope: models.ScopeBoth, FirstOccurrence: boolPtr(false)}, false},
		{
			"all predicates together",
			models.MatchingRule{
				Scope:         models.ScopeBoth,
				AccountSide:   strPtr("RECEIVABLE"),
				Sign:          strPtr("DEBIT"),
				AmountMatched: boolPtr(true),
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			assert.Equal(t, tt.want, ruleMatches(&tt.rule, &tx, models.ScopeImport))
		})
	}
}

func TestRuleMatches_Guards(t *testing.T) {
	noAction := models.Transaction{}
	withAction := models.Transaction{ActionID: intPtr(7)}
	withDoneAction := models.Transaction{ActionID: intPtr(7), ActionDone: boolPtr(true)}

	requireNone := models.MatchingRule{Scope: models.ScopeBoth, RequireNoAction: true}
	assert.True(t, ruleMatches(&requireNone, &noAction, models.ScopeImport))
	assert.False(t, ruleMatches(&requireNone, &withAction, models.ScopeImport))

	onAction7 := models.MatchingRule{Scope: models.ScopeBoth, CurrentActionID: intPtr(7)}
	assert.False(t, ruleMatches(&onAction7, &noAction, models.ScopeImport))
	assert.True(t, ruleMatches(&onAction7, &withAction, models.ScopeImport))

	onAction7Done := models.MatchingRule{Scope: models.ScopeBoth, CurrentActionID: intPtr(7), CurrentActionDone: boolPtr(true)}
	assert.False(t, ruleMatches(&onAction7Done, &withAction, models.ScopeImport))
	assert.True(t, ruleMatches(&onAction7Done, &withDoneAction, models.ScopeImport))
}

func TestEvaluateRules_SelectionOrder(t *testing.T) {
	// Priority decides; equal priority falls back to lexicographic rule id.
	// Storage order of the rule slice must never matter.
	r10 := wildcardRule("ZZZ", 10)
	r20 := wildcardRule("AAA", 20)
	tieA := wildcardRule("TIE-A", 30)
	tieB := wildcardRule("TIE-B", 30)

	tx := &models.Transaction{}

	out := EvaluateRules(tx, []models.MatchingRule{r20, r10}, models.ScopeImport)
	assert.Equal(t, "ZZZ", out.Rule.ID)

	out = EvaluateRules(tx, []models.MatchingRule{tieB, tieA}, models.ScopeImport)
	assert.Equal(t, "TIE-A", out.Rule.ID)
	out = EvaluateRules(tx, []models.MatchingRule{tieA, tieB}, models.ScopeImport)
	assert.Equal(t, "TIE-A", out.Rule.ID)
}

func TestEvaluateRules_DoesNotMutate(t *testing.T) {
	rule := wildcardRule("R", 10)
	rule.OutputActionID = intPtr(5)
	tx := &models.Transaction{AccountSide: models.SideReceivable}

	out := EvaluateRules(tx, []models.MatchingRule{rule}, models.ScopeImport)
	assert.NotNil(t, out)
	assert.Nil(t, tx.ActionID)
	assert.Nil(t, tx.KPIID)
}

func TestEvaluateRules_RequireNoActionBreaksTheLoop(t *testing.T) {
	// The loop-prevention story: a rule that assigns an action and guards
	// on "no action yet" fires exactly once, no matter how often the line
	// is re-imported or a manual action replaces the rule's.
	rule := wildcardRule("IMP-090", 90)
	rule.RequireNoAction = true
	rule.OutputActionID = intPtr(1)

	tx := &models.Transaction{AccountSide: models.SideReceivable, FirstOccurrence: true}

	out := EvaluateRules(tx, []models.MatchingRule{rule}, models.ScopeImport)
	assert.NotNil(t, out)
	ApplyRuleOutcome(tx, out)
	assert.Equal(t, 1, *tx.ActionID)

	// Re-import of the same line: the guard now blocks.
	tx.FirstOccurrence = false
	assert.Nil(t, EvaluateRules(tx, []models.MatchingRule{rule}, models.ScopeImport))

	// A user overrides the action by hand; the guard still blocks.
	ApplyManualEdit(tx, ManualEdit{ActionID: intPtr(4)}, "analyst")
	assert.Nil(t, EvaluateRules(tx, []models.MatchingRule{rule}, models.ScopeImport))
	assert.Equal(t, 4, *tx.ActionID)
}
