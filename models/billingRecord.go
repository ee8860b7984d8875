package models

import "time"

// BillingStatus is the lifecycle state of an external billing record.
type BillingStatus string

const (
	BillingDraft     BillingStatus = "DRAFT"
	BillingRequested BillingStatus = "REQUESTED"
	// BillingGenerated is the "ready" status: the only one guarantee-token
	// resolution is allowed to match against.
	BillingGenerated BillingStatus = "GENERATED"
	BillingSettled   BillingStatus = "SETTLED"
	BillingCancelled BillingStatus = "CANCELLED"
)

// BillingRecord is an invoice/guarantee-payment record from the external
// billing system, loaded as a read-only snapshot for each evaluation batch.
type BillingRecord struct {
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`

	InvoiceID      string `gorm:"index" json:"invoice_id"`
	PaymentRef     string `gorm:"index" json:"payment_ref"`
	GuaranteeRef   string `gorm:"index" json:"guarantee_ref"`
	BusinessCaseID string `json:"business_case_id"`
	CommissionRef  string `json:"commission_ref"`

	RequestedAmount *float64 `json:"requested_amount"`
	BillingAmount   *float64 `json:"billing_amount"`

	// Dates arrive from the billing system as free text in several
	// formats; they are kept raw and parsed tolerantly when needed.
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	Status BillingStatus `gorm:"index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
