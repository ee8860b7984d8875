package services

import (
	"fmt"
	"log"

	model "github.com/mkestrel/LedgerGuard/models"
)

// AddMatchingRule stores a new rule. The rule table is admin-edited only;
// evaluation treats it as read-only.
func (s *ReconService) AddMatchingRule(rule *model.MatchingRule) error {
	if rule.ID == "" {
		return fmt.Errorf("matching rule requires an explicit id")
	}
	if err := s.db.Create(rule).Error; err != nil {
		log.Printf("[AddMatchingRule] Error saving rule %s: %v", rule.ID, err)
		return err
	}
	log.Printf("[AddMatchingRule] Rule %s added successfully", rule.ID)
	return nil
}

// GetAllMatchingRules retrieves the complete rule table, including
// inactive rules, for the admin screen.
func (s *ReconService) GetAllMatchingRules() ([]model.MatchingRule, error) {
	var rules []model.MatchingRule
	if err := s.db.Order("priority, id").Find(&rules).Error; err != nil {
		log.Printf("[GetAllMatchingRules] Error fetching rules: %v", err)
		return nil, err
	}
	return rules, nil
}

// GetMatchingRulesByIDs retrieves specific rules by id.
func (s *ReconService) GetMatchingRulesByIDs(ids []string) ([]model.MatchingRule, error) {
	var rules []model.MatchingRule
	if err := s.db.Where("id IN ?", ids).Find(&rules).Error; err != nil {
		log.Printf("[GetMatchingRulesByIDs] Error fetching rules %v: %v", ids, err)
		return nil, err
	}
	return rules, nil
}

// GetAllTransactions returns the live transaction set for the dashboard.
func (s *ReconService) GetAllTransactions() ([]model.Transaction, error) {
	var txs []model.Transaction
	result := s.db.Order("operation_date desc").Find(&txs)
	if result.Error != nil {
		log.Printf("[GetAllTransactions] Database query error: %v", result.Error)
		return nil, fmt.Errorf("failed to fetch transactions: %w", result.Error)
	}
	log.Printf("[GetAllTransactions] Retrieved %d transactions", len(txs))
	return txs, nil
}

// GetTransaction fetches one transaction by id.
func (s *ReconService) GetTransaction(id string) (*model.Transaction, error) {
	var t model.Transaction
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		log.Printf("[GetTransaction] Error fetching transaction %s: %v", id, err)
		return nil, err
	}
	return &t, nil
}

// UpsertBillingRecords refreshes the billing-record cache from the
// external billing system's export. Matching is by invoice id.
func (s *ReconService) UpsertBillingRecords(records []model.BillingRecord) (int, error) {
	count := 0
	for i := range records {
		rec := &records[i]
		var existing model.BillingRecord
		err := s.db.Where("invoice_id = ?", rec.InvoiceID).First(&existing).Error
		if err == nil {
			rec.ID = existing.ID
			if err := s.db.Save(rec).Error; err != nil {
				log.Printf("[UpsertBillingRecords] Error updating record %s: %v", rec.InvoiceID, err)
				return count, err
			}
		} else {
			if err := s.db.Create(rec).Error; err != nil {
				log.Printf("[UpsertBillingRecords] Error creating record %s: %v", rec.InvoiceID, err)
				return count, err
			}
		}
		count++
	}
	log.Printf("[UpsertBillingRecords] Upserted %d billing records", count)
	return count, nil
}
