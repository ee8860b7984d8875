package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	model "github.com/mkestrel/LedgerGuard/models"
)

// ImportSummary reports one batch import back to the caller. Per-line
// failures are isolated and listed here; one bad line never aborts the
// rest of the batch.
type ImportSummary struct {
	BatchID    string   `json:"batch_id"`
	ArchiveKey string   `json:"archive_key"`
	Processed  int      `json:"processed"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Resolved   int      `json:"resolved"`
	RulesFired int      `json:"rules_fired"`
	Failures   []string `json:"failures"`
}

// ImportLedgerExtract ingests one ledger extract: archive the raw file,
// parse it, upsert transactions by natural key, run resolution and the
// IMPORT-scope rules per line, then recompute the grouping KPIs over the
// full set.
func (s *ReconService) ImportLedgerExtract(file multipart.File, header *multipart.FileHeader, username string) (*ImportSummary, error) {
	log.Printf("[ImportLedgerExtract] Starting import of %s (%d bytes)", header.Filename, header.Size)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[ImportLedgerExtract] Error reading upload: %v", err)
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	batchID := uuid.NewString()

	archiveKey, err := s.archiveExtract(batchID, header.Filename, fileBytes)
	if err != nil {
		return nil, err
	}

	lines, parseFailures := parseLedgerExtract(fileBytes)
	log.Printf("[ImportLedgerExtract] Parsed %d lines, %d rejected", len(lines), len(parseFailures))

	snapshot, err := s.LoadBillingSnapshot()
	if err != nil {
		return nil, err
	}
	rules, err := s.LoadActiveRules()
	if err != nil {
		return nil, err
	}

	existing, err := s.loadTransactionsByNaturalKey()
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		BatchID:    batchID,
		ArchiveKey: archiveKey,
		Failures:   parseFailures,
	}

	for i := range lines {
		line := &lines[i]
		summary.Processed++

		if err := s.importOne(line, existing, snapshot, rules, batchID, summary); err != nil {
			msg := fmt.Sprintf("line %s/%s: %v", line.EventNumber, line.ReconciliationNumber, err)
			log.Printf("[ImportLedgerExtract] %s", msg)
			summary.Failures = append(summary.Failures, msg)
		}
	}

	if err := s.RecomputeAllKPIs(); err != nil {
		// Grouping staleness is reported but does not undo the import.
		summary.Failures = append(summary.Failures, fmt.Sprintf("kpi recompute: %v", err))
	}

	log.Printf("[ImportLedgerExtract] Batch %s done: %d processed, %d created, %d updated, %d resolved, %d rules fired, %d failures",
		batchID, summary.Processed, summary.Created, summary.Updated,
		summary.Resolved, summary.RulesFired, len(summary.Failures))
	return summary, nil
}

// importOne processes a single extract line: upsert by natural key,
// resolve references against the snapshot, evaluate IMPORT-scope rules,
// persist, index.
func (s *ReconService) importOne(line *model.Transaction, existing map[string]*model.Transaction,
	snapshot *BillingSnapshot, rules []model.MatchingRule, batchID string, summary *ImportSummary) error {

	t, seen := existing[line.NaturalKey()]
	if seen {
		// Re-import of a known line: refresh the ledger fields, keep the
		// workflow state, and make sure first-occurrence rules stay off.
		t.Label = line.Label
		t.OriginNumber = line.OriginNumber
		t.Amount = line.Amount
		t.AmountLocal = line.AmountLocal
		t.OperationDate = line.OperationDate
		t.ValueDate = line.ValueDate
		t.TransactionType = line.TransactionType
		t.GuaranteeType = line.GuaranteeType
		t.FirstOccurrence = false
	} else {
		t = line
		t.FirstOccurrence = true
		t.ImportBatchID = batchID
	}

	toks := ExtractTokens(t)
	res := ResolveReference(t, toks, snapshot)
	ApplyResolution(t, toks, res)
	if res != nil {
		summary.Resolved++
	}

	before := t.SnapshotWorkflow()
	outcome := EvaluateRules(t, rules, model.ScopeImport)
	if outcome != nil {
		summary.RulesFired++
		if outcome.ApplyTo != model.ApplyCounterpart {
			ApplyRuleOutcome(t, outcome)
		}
	}

	var err error
	if seen {
		err = s.db.Save(t).Error
	} else {
		err = s.db.Create(t).Error
	}
	if err != nil {
		t.RestoreWorkflow(before)
		return fmt.Errorf("persist failed: %w", err)
	}
	if !seen {
		existing[t.NaturalKey()] = t
	}

	if outcome != nil && (outcome.ApplyTo == model.ApplyCounterpart || outcome.ApplyTo == model.ApplyBothSides) {
		if err := s.applyToCounterpart(t, outcome); err != nil {
			log.Printf("[importOne] Counterpart application failed for %s: %v", t.ID, err)
		}
	}

	// Indexing failures never break an import.
	s.indexTransaction(t)
	return nil
}

// archiveExtract stores the raw upload in the S3 archive bucket so every
// import stays auditable after the fact.
func (s *ReconService) archiveExtract(batchID, filename string, fileBytes []byte) (string, error) {
	bucket := os.Getenv("ARCHIVE_S3_BUCKET")
	if bucket == "" {
		log.Println("[archiveExtract] ARCHIVE_S3_BUCKET environment variable is not set")
		return "", fmt.Errorf("archive bucket not configured")
	}

	key := fmt.Sprintf("extracts/%s-%s", batchID, filename)
	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		log.Printf("[archiveExtract] S3 upload error: %v", err)
		return "", fmt.Errorf("failed to archive extract to S3: %w", err)
	}
	log.Printf("[archiveExtract] Extract archived at %s/%s", bucket, key)
	return key, nil
}

// loadTransactionsByNaturalKey builds the re-import lookup map.
func (s *ReconService) loadTransactionsByNaturalKey() (map[string]*model.Transaction, error) {
	var txs []model.Transaction
	if err := s.db.Find(&txs).Error; err != nil {
		log.Printf("[loadTransactionsByNaturalKey] Error loading transactions: %v", err)
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	out := make(map[string]*model.Transaction, len(txs))
	for i := range txs {
		out[txs[i].NaturalKey()] = &txs[i]
	}
	return out, nil
}

// Extract column order. The accounting system exports a fixed header; the
// parser is positional after validating it.
var extractColumns = []string{
	"account_side", "event_number", "reconciliation_number", "origin_number",
	"label", "amount", "amount_local", "operation_date", "value_date",
	"transaction_type", "guarantee_type",
}

// parseLedgerExtract reads the CSV extract into transaction lines.
// Rejected rows are returned as messages, not errors: the batch continues
// around them.
func parseLedgerExtract(data []byte) ([]model.Transaction, []string) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	var lines []model.Transaction
	var failures []string

	headerSeen := false
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			failures = append(failures, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		if !headerSeen {
			headerSeen = true
			if isExtractHeader(record) {
				continue
			}
		}

		t, err := parseExtractRow(record)
		if err != nil {
			failures = append(failures, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		lines = append(lines, t)
	}
	return lines, failures
}

func isExtractHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), extractColumns[0])
}

func parseExtractRow(record []string) (model.Transaction, error) {
	if len(record) < len(extractColumns) {
		return model.Transaction{}, fmt.Errorf("expected %d columns, got %d", len(extractColumns), len(record))
	}

	side := model.AccountSide(strings.ToUpper(strings.TrimSpace(record[0])))
	if side != model.SideReceivable && side != model.SideClearing {
		return model.Transaction{}, fmt.Errorf("unknown account side %q", record[0])
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q", record[5])
	}

	amountLocal := amount
	if strings.TrimSpace(record[6]) != "" {
		amountLocal, err = strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("invalid local amount %q", record[6])
		}
	}

	t := model.Transaction{
		AccountSide:          side,
		EventNumber:          strings.TrimSpace(record[1]),
		ReconciliationNumber: strings.TrimSpace(record[2]),
		OriginNumber:         strings.TrimSpace(record[3]),
		Label:                record[4],
		Amount:               amount,
		AmountLocal:          amountLocal,
		TransactionType:      strings.ToUpper(strings.TrimSpace(record[9])),
		GuaranteeType:        strings.ToUpper(strings.TrimSpace(record[10])),
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}

	// Dates in extracts are as messy as everywhere else; an unparseable
	// date leaves the field nil rather than rejecting the row.
	if d, ok := ParseFlexibleDate(record[7]); ok {
		t.OperationDate = &d
	}
	if d, ok := ParseFlexibleDate(record[8]); ok {
		t.ValueDate = &d
	}

	if t.EventNumber == "" && t.ReconciliationNumber == "" {
		return model.Transaction{}, fmt.Errorf("line carries neither event nor reconciliation number")
	}

	return t, nil
}
