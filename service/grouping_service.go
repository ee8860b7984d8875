package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	model "github.com/mkestrel/LedgerGuard/models"
)

// ComputeGroupKPIs groups transactions by billing reference across the
// two ledger sides and annotates every member in place.
//
// A group with members on both sides is "grouped": each member carries
// the opposite side's total amount and member count, plus the signed
// missing amount. The sign convention is per-side: receivable members
// see sum(receivable) + sum(clearing), clearing members the negation, so
// a fully covered group reports 0 on both sides and the two annotations
// always mirror each other. One-sided groups and lines with no reference
// at all are "grouped=false" with the counterpart fields cleared.
func ComputeGroupKPIs(txs []*model.Transaction) {
	groups := make(map[string][]*model.Transaction)
	for _, t := range txs {
		ref := t.GroupRef()
		if ref == "" {
			clearGrouping(t)
			continue
		}
		groups[ref] = append(groups[ref], t)
	}

	for _, members := range groups {
		computeOneGroup(members)
	}
}

func computeOneGroup(members []*model.Transaction) {
	var sumReceivable, sumClearing float64
	var countReceivable, countClearing int

	for _, t := range members {
		switch t.AccountSide {
		case model.SideReceivable:
			sumReceivable += t.Amount
			countReceivable++
		case model.SideClearing:
			sumClearing += t.Amount
			countClearing++
		}
	}

	if countReceivable == 0 || countClearing == 0 {
		for _, t := range members {
			clearGrouping(t)
		}
		return
	}

	missing := sumReceivable + sumClearing
	for _, t := range members {
		t.Grouped = true
		if t.AccountSide == model.SideReceivable {
			setGrouping(t, missing, sumClearing, countClearing)
		} else {
			setGrouping(t, -missing, sumReceivable, countReceivable)
		}
	}
}

func setGrouping(t *model.Transaction, missing, counterpartAmount float64, counterpartCount int) {
	m := missing
	a := counterpartAmount
	c := counterpartCount
	t.MissingAmount = &m
	t.CounterpartAmount = &a
	t.CounterpartCount = &c
}

func clearGrouping(t *model.Transaction) {
	t.Grouped = false
	t.MissingAmount = nil
	t.CounterpartAmount = nil
	t.CounterpartCount = nil
}

// RecomputeAllKPIs runs the full-set recomputation over every live
// transaction and persists the grouping fields.
func (s *ReconService) RecomputeAllKPIs() error {
	var txs []model.Transaction
	if err := s.db.Find(&txs).Error; err != nil {
		log.Printf("[RecomputeAllKPIs] Error loading transactions: %v", err)
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	refs := make([]*model.Transaction, len(txs))
	for i := range txs {
		refs[i] = &txs[i]
	}
	ComputeGroupKPIs(refs)

	if err := s.saveGroupingFields(refs); err != nil {
		return err
	}
	log.Printf("[RecomputeAllKPIs] Recomputed grouping KPIs for %d transactions", len(refs))
	return nil
}

// groupKeyCondition matches rows to a group reference the same way
// Transaction.GroupRef computes it: trimmed, case-insensitive, invoice id
// first with the reconciliation number as fallback.
const groupKeyCondition = "upper(trim(invoice_id)) = ? OR (trim(invoice_id) = '' AND upper(trim(reconciliation_number)) = ?)"

// RecomputeGroupKPIs is the incremental mode: after a single-row edit
// only the one group containing the given reference is recomputed,
// instead of rescanning the whole dataset.
func (s *ReconService) RecomputeGroupKPIs(ref string) error {
	key := strings.ToUpper(strings.TrimSpace(ref))
	if key == "" {
		return fmt.Errorf("empty group reference")
	}

	var txs []model.Transaction
	err := s.db.
		Where(groupKeyCondition, key, key).
		Find(&txs).Error
	if err != nil {
		log.Printf("[RecomputeGroupKPIs] Error loading group %s: %v", key, err)
		return fmt.Errorf("failed to load group %s: %w", key, err)
	}
	if len(txs) == 0 {
		log.Printf("[RecomputeGroupKPIs] No transactions found for group %s", key)
		return nil
	}

	refs := make([]*model.Transaction, len(txs))
	for i := range txs {
		refs[i] = &txs[i]
	}
	computeOneGroup(refs)

	return s.saveGroupingFields(refs)
}

func (s *ReconService) saveGroupingFields(txs []*model.Transaction) error {
	for _, t := range txs {
		updates := map[string]interface{}{
			"grouped":            t.Grouped,
			"missing_amount":     t.MissingAmount,
			"counterpart_amount": t.CounterpartAmount,
			"counterpart_count":  t.CounterpartCount,
			"updated_at":         time.Now(),
		}
		if err := s.db.Model(t).Updates(updates).Error; err != nil {
			log.Printf("[saveGroupingFields] Error persisting grouping for %s: %v", t.ID, err)
			return fmt.Errorf("failed to persist grouping fields: %w", err)
		}
	}
	return nil
}
