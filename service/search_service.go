package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	model "github.com/mkestrel/LedgerGuard/models"
)

// indexTransaction mirrors the transaction into Elasticsearch for the
// dashboard's free-text search. Indexing is best-effort: a search index
// that lags never breaks an import.
func (s *ReconService) indexTransaction(t *model.Transaction) {
	if s.esClient == nil {
		return
	}

	doc := map[string]interface{}{
		"transaction_id":        t.ID,
		"event_number":          t.EventNumber,
		"reconciliation_number": t.ReconciliationNumber,
		"label":                 t.Label,
		"invoice_id":            t.InvoiceID,
		"guarantee_ref":         t.GuaranteeRef,
		"comment":               t.Comment,
		"account_side":          t.AccountSide,
		"amount":                t.Amount,
		"timestamp":             time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		log.Printf("[indexTransaction] Error marshaling transaction %s: %v", t.ID, err)
		return
	}

	res, err := s.esClient.Index(
		"transactions",
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(t.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("[indexTransaction] Elasticsearch indexing error: %v", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("[indexTransaction] Elasticsearch indexing failed: %s", res.String())
	}
}

// SearchTransactions runs a free-text query over the indexed labels,
// references and comment logs.
func (s *ReconService) SearchTransactions(query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query": query,
				"fields": []string{
					"label", "comment", "invoice_id", "guarantee_ref",
					"event_number", "reconciliation_number",
				},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex("transactions"),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var hits []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, source)
	}
	return hits, nil
}
