package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountSide identifies which of the two complementary ledger views a
// transaction line belongs to. A fully reconciled economic event has one
// line on each side.
type AccountSide string

const (
	SideReceivable AccountSide = "RECEIVABLE"
	SideClearing   AccountSide = "CLEARING"
)

// Transaction is one ledger line from an accounting extract, together with
// its mutable workflow state. Lines are never hard-deleted; re-imports of
// the same natural key update the ledger fields in place.
type Transaction struct {
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`

	// Ledger identifiers from the extract.
	EventNumber          string `gorm:"index" json:"event_number"`
	ReconciliationNumber string `gorm:"index" json:"reconciliation_number"`
	OriginNumber         string `json:"origin_number"`

	// Label is the raw free-text wording of the line; token extraction
	// scans it together with the number fields.
	Label string `json:"label"`

	Amount      float64 `json:"amount"`
	AmountLocal float64 `json:"amount_local"`

	OperationDate *time.Time `json:"operation_date"`
	ValueDate     *time.Time `json:"value_date"`

	AccountSide     AccountSide `gorm:"index" json:"account_side"`
	TransactionType string      `json:"transaction_type"`
	GuaranteeType   string      `json:"guarantee_type"`

	// Resolved billing references, written back by the resolver. An
	// already-extracted token wins over the value found on the record.
	InvoiceID    string `gorm:"index" json:"invoice_id"`
	PaymentRef   string `json:"payment_ref"`
	GuaranteeRef string `json:"guarantee_ref"`

	// ResolutionDetails records which cascade step matched and how many
	// candidates it saw, for diagnostics on the dashboard.
	ResolutionDetails datatypes.JSON `json:"resolution_details"`

	// Derived matching flags consumed by rule predicates.
	AmountMatched      bool `json:"amount_matched"`
	StatusAcknowledged bool `json:"status_acknowledged"`
	// FirstOccurrence is true only on the import that created this line.
	FirstOccurrence bool `json:"first_occurrence"`

	// Workflow state.
	ActionID       *int       `json:"action_id"`
	ActionDone     *bool      `json:"action_done"`
	ActionDate     *time.Time `json:"action_date"`
	KPIID          *int       `json:"kpi_id"`
	IncidentTypeID *int       `json:"incident_type_id"`
	RiskyItem      bool       `json:"risky_item"`
	Comment        string     `json:"comment"`
	Assignee       string     `json:"assignee"`
	ReminderFlag   bool       `json:"reminder_flag"`
	ReminderDate   *time.Time `json:"reminder_date"`

	// Cross-side grouping results.
	Grouped           bool     `json:"grouped"`
	MissingAmount     *float64 `json:"missing_amount"`
	CounterpartAmount *float64 `json:"counterpart_amount"`
	CounterpartCount  *int     `json:"counterpart_count"`

	ImportBatchID string `json:"import_batch_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NaturalKey identifies the same extract line across daily re-imports:
// two rows are the same transaction when side, event number and
// reconciliation number agree after trimming.
func (t *Transaction) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s",
		t.AccountSide,
		strings.TrimSpace(t.EventNumber),
		strings.TrimSpace(t.ReconciliationNumber))
}

// Sign classifies the line as CREDIT (>= 0) or DEBIT for rule predicates.
func (t *Transaction) Sign() string {
	if t.Amount < 0 {
		return "DEBIT"
	}
	return "CREDIT"
}

// GroupRef is the key the KPI calculator groups by: the resolved invoice
// id when present, else the reconciliation number as internal fallback.
// Empty means the line cannot be grouped at all.
func (t *Transaction) GroupRef() string {
	if ref := strings.ToUpper(strings.TrimSpace(t.InvoiceID)); ref != "" {
		return ref
	}
	return strings.ToUpper(strings.TrimSpace(t.ReconciliationNumber))
}

// WorkflowSnapshot captures the mutable workflow fields, including the
// resolved references a manual re-link can change, so a failed
// persistence attempt can restore the in-memory state it started from.
type WorkflowSnapshot struct {
	ActionID       *int
	ActionDone     *bool
	ActionDate     *time.Time
	KPIID          *int
	IncidentTypeID *int
	RiskyItem      bool
	Comment        string
	Assignee       string
	ReminderFlag   bool
	ReminderDate   *time.Time
	InvoiceID      string
	PaymentRef     string
	GuaranteeRef   string
}

func (t *Transaction) SnapshotWorkflow() WorkflowSnapshot {
	return WorkflowSnapshot{
		ActionID:       copyIntPtr(t.ActionID),
		ActionDone:     copyBoolPtr(t.ActionDone),
		ActionDate:     copyTimePtr(t.ActionDate),
		KPIID:          copyIntPtr(t.KPIID),
		IncidentTypeID: copyIntPtr(t.IncidentTypeID),
		RiskyItem:      t.RiskyItem,
		Comment:        t.Comment,
		Assignee:       t.Assignee,
		ReminderFlag:   t.ReminderFlag,
		ReminderDate:   copyTimePtr(t.ReminderDate),
		InvoiceID:      t.InvoiceID,
		PaymentRef:     t.PaymentRef,
		GuaranteeRef:   t.GuaranteeRef,
	}
}

func (t *Transaction) RestoreWorkflow(s WorkflowSnapshot) {
	t.ActionID = s.ActionID
	t.ActionDone = s.ActionDone
	t.ActionDate = s.ActionDate
	t.KPIID = s.KPIID
	t.IncidentTypeID = s.IncidentTypeID
	t.RiskyItem = s.RiskyItem
	t.Comment = s.Comment
	t.Assignee = s.Assignee
	t.ReminderFlag = s.ReminderFlag
	t.ReminderDate = s.ReminderDate
	t.InvoiceID = s.InvoiceID
	t.PaymentRef = s.PaymentRef
	t.GuaranteeRef = s.GuaranteeRef
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
