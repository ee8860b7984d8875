package services

import (
	"fmt"
	"log"
	"strings"

	model "github.com/mkestrel/LedgerGuard/models"
)

// BillingSnapshot is an immutable, indexed view of the billing records
// loaded once per evaluation batch. It is built by the caller and passed
// by reference into every resolver call; the engine never refreshes it
// and holds no ambient cache of its own.
type BillingSnapshot struct {
	records      []model.BillingRecord
	byInvoiceID  map[string][]int
	byPaymentRef map[string][]int
}

// NewBillingSnapshot indexes the given records. Keys are case-insensitive
// and trimmed.
func NewBillingSnapshot(records []model.BillingRecord) *BillingSnapshot {
	snap := &BillingSnapshot{
		records:      records,
		byInvoiceID:  make(map[string][]int),
		byPaymentRef: make(map[string][]int),
	}
	for i, rec := range records {
		if key := snapshotKey(rec.InvoiceID); key != "" {
			snap.byInvoiceID[key] = append(snap.byInvoiceID[key], i)
		}
		if key := snapshotKey(rec.PaymentRef); key != "" {
			snap.byPaymentRef[key] = append(snap.byPaymentRef[key], i)
		}
	}
	return snap
}

// LoadBillingSnapshot reads the current billing-record set from the
// database and builds the batch snapshot.
func (s *ReconService) LoadBillingSnapshot() (*BillingSnapshot, error) {
	var records []model.BillingRecord
	if err := s.db.Find(&records).Error; err != nil {
		log.Printf("[LoadBillingSnapshot] Error loading billing records: %v", err)
		return nil, fmt.Errorf("failed to load billing records: %w", err)
	}
	log.Printf("[LoadBillingSnapshot] Snapshot built over %d billing records", len(records))
	return NewBillingSnapshot(records), nil
}

// ByInvoiceID returns every record whose invoice id equals the token,
// case-insensitive exact.
func (snap *BillingSnapshot) ByInvoiceID(token string) []model.BillingRecord {
	return snap.pick(snap.byInvoiceID[snapshotKey(token)])
}

// ByPaymentRef returns every record whose payment reference equals the
// token, case-insensitive exact.
func (snap *BillingSnapshot) ByPaymentRef(token string) []model.BillingRecord {
	return snap.pick(snap.byPaymentRef[snapshotKey(token)])
}

// All returns the full record set in load order.
func (snap *BillingSnapshot) All() []model.BillingRecord {
	return snap.records
}

func (snap *BillingSnapshot) Len() int {
	return len(snap.records)
}

func (snap *BillingSnapshot) pick(indexes []int) []model.BillingRecord {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]model.BillingRecord, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, snap.records[i])
	}
	return out
}

func snapshotKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
