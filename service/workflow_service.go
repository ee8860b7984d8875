package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	model "github.com/mkestrel/LedgerGuard/models"
)

// ActionNotApplicable is the sentinel action id meaning "nothing to do".
// Assigning it forces the done flag true and re-stamps the action date;
// an N/A line must never sit half-open with a null timestamp.
const ActionNotApplicable = 99

// RuleUser is the attribution written on comment lines produced by the
// rule engine rather than a person.
const RuleUser = "system"

// commentTimeLayout is the comment-log timestamp format. The grid in
// front of this service parses these lines, so the format is fixed.
const commentTimeLayout = "2006-01-02 15:04"

// ApplyRuleOutcome merges a rule engine result into the transaction's
// workflow state, in memory. Persistence is a separate step so a batch
// can decide when to save.
func ApplyRuleOutcome(t *model.Transaction, out *RuleOutcome) {
	if out == nil {
		return
	}

	if out.ActionID != nil {
		assignAction(t, *out.ActionID)
	}
	if out.KPIID != nil {
		v := *out.KPIID
		t.KPIID = &v
	}
	if out.IncidentID != nil {
		v := *out.IncidentID
		t.IncidentTypeID = &v
	}
	if out.RiskyItem != nil {
		t.RiskyItem = *out.RiskyItem
	}
	if out.ReminderDays != nil {
		t.ReminderFlag = true
		due := time.Now().AddDate(0, 0, *out.ReminderDays)
		t.ReminderDate = &due
	}
	if out.Message != "" {
		appendComment(t, RuleUser, out.Rule.ID, out.Message)
	}
}

// assignAction sets the action id and re-stamps the action date. The
// stamp happens on every assignment, including one that repeats the
// current value: the timestamp records the last decision, not the first.
func assignAction(t *model.Transaction, actionID int) {
	v := actionID
	t.ActionID = &v
	now := time.Now()
	t.ActionDate = &now

	if actionID == ActionNotApplicable {
		done := true
		t.ActionDone = &done
	}
}

// appendComment prepends a timestamped, user-attributed, rule-tagged line
// to the comment log. Newest lines come first. A message already present
// verbatim anywhere in the log is not appended again, which is what keeps
// a daily re-import from stacking identical rule messages.
func appendComment(t *model.Transaction, username, ruleID, message string) {
	if message == "" {
		return
	}
	if strings.Contains(t.Comment, message) {
		return
	}

	var line string
	if ruleID != "" {
		line = fmt.Sprintf("[%s] %s: [Rule %s] %s",
			time.Now().Format(commentTimeLayout), username, ruleID, message)
	} else {
		line = fmt.Sprintf("[%s] %s: %s",
			time.Now().Format(commentTimeLayout), username, message)
	}

	if t.Comment == "" {
		t.Comment = line
		return
	}
	t.Comment = line + "\n" + t.Comment
}

// ManualEdit is one save from the grid: nil fields were not touched by
// the user, non-nil fields overwrite. Last writer wins inside one save
// cycle.
type ManualEdit struct {
	ActionID       *int       `json:"action_id"`
	ActionDone     *bool      `json:"action_done"`
	KPIID          *int       `json:"kpi_id"`
	IncidentTypeID *int       `json:"incident_type_id"`
	RiskyItem      *bool      `json:"risky_item"`
	Assignee       *string    `json:"assignee"`
	ReminderFlag   *bool      `json:"reminder_flag"`
	ReminderDate   *time.Time `json:"reminder_date"`
	Comment        *string    `json:"comment"`
	InvoiceID      *string    `json:"invoice_id"`
	PaymentRef     *string    `json:"payment_ref"`
	GuaranteeRef   *string    `json:"guarantee_ref"`
}

// ApplyManualEdit merges a user edit into the workflow state, enforcing
// the same invariants as rule outputs: any action assignment re-stamps
// the timestamp, and the N/A sentinel forces done regardless of what the
// user put in the done checkbox.
func ApplyManualEdit(t *model.Transaction, edit ManualEdit, username string) {
	if edit.ActionDone != nil {
		v := *edit.ActionDone
		t.ActionDone = &v
	}
	if edit.ActionID != nil {
		assignAction(t, *edit.ActionID)
	}
	if edit.KPIID != nil {
		v := *edit.KPIID
		t.KPIID = &v
	}
	if edit.IncidentTypeID != nil {
		v := *edit.IncidentTypeID
		t.IncidentTypeID = &v
	}
	if edit.RiskyItem != nil {
		t.RiskyItem = *edit.RiskyItem
	}
	if edit.Assignee != nil {
		t.Assignee = *edit.Assignee
	}
	if edit.ReminderFlag != nil {
		t.ReminderFlag = *edit.ReminderFlag
	}
	if edit.ReminderDate != nil {
		v := *edit.ReminderDate
		t.ReminderDate = &v
	}
	if edit.Comment != nil && *edit.Comment != "" {
		appendComment(t, username, "", *edit.Comment)
	}
	if edit.InvoiceID != nil {
		t.InvoiceID = strings.ToUpper(strings.TrimSpace(*edit.InvoiceID))
	}
	if edit.PaymentRef != nil {
		t.PaymentRef = strings.ToUpper(strings.TrimSpace(*edit.PaymentRef))
	}
	if edit.GuaranteeRef != nil {
		t.GuaranteeRef = strings.ToUpper(strings.TrimSpace(*edit.GuaranteeRef))
	}
}

// workflowUpdates lists every column a workflow save writes: the
// action/KPI/comment state plus the resolved references, which a manual
// re-link edit can change.
func workflowUpdates(t *model.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"action_id":        t.ActionID,
		"action_done":      t.ActionDone,
		"action_date":      t.ActionDate,
		"kpi_id":           t.KPIID,
		"incident_type_id": t.IncidentTypeID,
		"risky_item":       t.RiskyItem,
		"comment":          t.Comment,
		"assignee":         t.Assignee,
		"reminder_flag":    t.ReminderFlag,
		"reminder_date":    t.ReminderDate,
		"invoice_id":       t.InvoiceID,
		"payment_ref":      t.PaymentRef,
		"guarantee_ref":    t.GuaranteeRef,
		"updated_at":       time.Now(),
	}
}

// SaveWorkflow persists the workflow fields. On a store failure the
// in-memory transaction is restored to its pre-attempt snapshot so memory
// and database never disagree; the error is surfaced, not swallowed.
func (s *ReconService) SaveWorkflow(t *model.Transaction, before model.WorkflowSnapshot) error {
	if err := s.db.Model(t).Updates(workflowUpdates(t)).Error; err != nil {
		log.Printf("[SaveWorkflow] Error persisting workflow for transaction %s, rolling back in-memory state: %v", t.ID, err)
		t.RestoreWorkflow(before)
		return fmt.Errorf("failed to persist workflow state: %w", err)
	}
	return nil
}

// EditTransaction is the manual-edit entry point: apply the user's field
// edits, run the EDIT-scope rules against the updated snapshot, persist,
// and recompute the KPIs of just the group this line belongs to.
func (s *ReconService) EditTransaction(id string, edit ManualEdit, username string) (*model.Transaction, error) {
	var t model.Transaction
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		log.Printf("[EditTransaction] Error fetching transaction %s: %v", id, err)
		return nil, fmt.Errorf("transaction %s not found: %w", id, err)
	}

	before := t.SnapshotWorkflow()
	prevRef := t.GroupRef()
	ApplyManualEdit(&t, edit, username)

	rules, err := s.LoadActiveRules()
	if err != nil {
		t.RestoreWorkflow(before)
		return nil, err
	}

	outcome := EvaluateRules(&t, rules, model.ScopeEdit)
	if outcome != nil {
		log.Printf("[EditTransaction] Rule %s fired on edit of transaction %s", outcome.Rule.ID, t.ID)
		if outcome.ApplyTo != model.ApplyCounterpart {
			ApplyRuleOutcome(&t, outcome)
		}
		if outcome.ApplyTo == model.ApplyCounterpart || outcome.ApplyTo == model.ApplyBothSides {
			if err := s.applyToCounterpart(&t, outcome); err != nil {
				log.Printf("[EditTransaction] Counterpart application failed for %s: %v", t.ID, err)
			}
		}
	}

	if err := s.SaveWorkflow(&t, before); err != nil {
		return nil, err
	}

	// References may have changed; this line's current group, and the one
	// it left behind, must be fresh without a full-set recompute.
	for _, ref := range changedGroupRefs(prevRef, t.GroupRef()) {
		if err := s.RecomputeGroupKPIs(ref); err != nil {
			log.Printf("[EditTransaction] Group KPI recompute failed for ref %s: %v", ref, err)
		}
	}

	return &t, nil
}

// changedGroupRefs lists the group references an edit leaves stale: the
// line's current group, plus the departed group when a re-link moved the
// line out of it.
func changedGroupRefs(before, after string) []string {
	var refs []string
	if after != "" {
		refs = append(refs, after)
	}
	if before != "" && before != after {
		refs = append(refs, before)
	}
	return refs
}

// applyToCounterpart mutates the paired transaction on the opposite
// ledger side of the same billing reference, when one exists.
func (s *ReconService) applyToCounterpart(t *model.Transaction, outcome *RuleOutcome) error {
	ref := t.GroupRef()
	if ref == "" {
		return nil
	}

	otherSide := model.SideClearing
	if t.AccountSide == model.SideClearing {
		otherSide = model.SideReceivable
	}

	var counterpart model.Transaction
	err := s.db.
		Where("account_side = ? AND ("+groupKeyCondition+")", otherSide, ref, ref).
		First(&counterpart).Error
	if err != nil {
		// No counterpart in the dataset is a normal state for unmatched lines.
		return nil
	}

	before := counterpart.SnapshotWorkflow()
	ApplyRuleOutcome(&counterpart, outcome)
	return s.SaveWorkflow(&counterpart, before)
}
