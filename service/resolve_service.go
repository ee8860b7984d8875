package services

import (
	"encoding/json"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	model "github.com/mkestrel/LedgerGuard/models"
)

// MatchStep identifies which cascade step produced a resolution, for
// diagnostics on the transaction.
type MatchStep string

const (
	MatchStepInvoiceToken   MatchStep = "INVOICE_TOKEN"
	MatchStepPaymentToken   MatchStep = "PAYMENT_TOKEN"
	MatchStepCommissionRef  MatchStep = "COMMISSION_REF"
	MatchStepGuaranteeToken MatchStep = "GUARANTEE_TOKEN"
	MatchStepSuggestion     MatchStep = "SUGGESTION"
	matchStepNone           MatchStep = "NONE"
)

const amountTolerance = 0.01

// dateDistance sentinel for "no usable date on one side or the other":
// every candidate without dates scores the same, so dates stop mattering
// instead of aborting the resolution.
const noDatePreference = math.MaxFloat64

// Resolution is the outcome of the matching cascade: the single best
// billing record plus which step found it and how many candidates that
// step saw.
type Resolution struct {
	Record     model.BillingRecord
	Step       MatchStep
	Candidates int
}

// ResolveReference runs the matching cascade for one transaction against
// the batch snapshot. It returns nil when no step produces a candidate;
// that is a normal outcome, not an error.
//
// Cascade order: invoice token, payment-reference token, commission
// reference fallback, guarantee token, then a best-effort suggestion pass.
// The first step with at least one candidate wins and later steps are not
// consulted.
func ResolveReference(t *model.Transaction, toks ExtractedTokens, snap *BillingSnapshot) *Resolution {
	if snap == nil || snap.Len() == 0 {
		return nil
	}

	if toks.Invoice != "" {
		if cands := snap.ByInvoiceID(toks.Invoice); len(cands) > 0 {
			best := rankByAmount(cands, t.Amount)
			return &Resolution{Record: best, Step: MatchStepInvoiceToken, Candidates: len(cands)}
		}
	}

	if toks.PaymentRef != "" {
		if cands := snap.ByPaymentRef(toks.PaymentRef); len(cands) > 0 {
			best := rankByAmount(cands, t.Amount)
			return &Resolution{Record: best, Step: MatchStepPaymentToken, Candidates: len(cands)}
		}
	}

	if res := matchCommissionRef(t, snap); res != nil {
		return res
	}

	if toks.Guarantee != "" {
		if res := matchGuaranteeToken(t, toks.Guarantee, snap); res != nil {
			return res
		}
	}

	return suggestReference(t, toks, snap)
}

// rankByAmount picks the best record among candidates that already tie on
// the lookup key. A single candidate wins unconditionally, with no amount
// check at all. With several, the order is: exact requested-amount match,
// exact billing-amount match, closest requested amount, closest billing
// amount; remaining ties are stabilized by invoice id.
func rankByAmount(cands []model.BillingRecord, amount float64) model.BillingRecord {
	if len(cands) == 1 {
		return cands[0]
	}
	ranked := append([]model.BillingRecord(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		aExactReq := withinTolerance(a.RequestedAmount, amount)
		bExactReq := withinTolerance(b.RequestedAmount, amount)
		if aExactReq != bExactReq {
			return aExactReq
		}

		aExactBill := withinTolerance(a.BillingAmount, amount)
		bExactBill := withinTolerance(b.BillingAmount, amount)
		if aExactBill != bExactBill {
			return aExactBill
		}

		aReqDist := ptrDistance(a.RequestedAmount, amount)
		bReqDist := ptrDistance(b.RequestedAmount, amount)
		if aReqDist != bReqDist {
			return aReqDist < bReqDist
		}

		aBillDist := ptrDistance(a.BillingAmount, amount)
		bBillDist := ptrDistance(b.BillingAmount, amount)
		if aBillDist != bBillDist {
			return aBillDist < bBillDist
		}

		return a.InvoiceID < b.InvoiceID
	})
	return ranked[0]
}

// matchCommissionRef is the fallback reference pass: every alphanumeric
// token from the reconciliation-number-family fields is tried against the
// commission/sender reference. Multiple survivors rank by date proximity,
// then amount proximity.
func matchCommissionRef(t *model.Transaction, snap *BillingSnapshot) *Resolution {
	tokens := extractReferenceTokens(t)
	if len(tokens) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		wanted[tok] = true
	}

	var cands []model.BillingRecord
	for _, rec := range snap.All() {
		if ref := snapshotKey(rec.CommissionRef); ref != "" && wanted[ref] {
			cands = append(cands, rec)
		}
	}
	if len(cands) == 0 {
		return nil
	}

	best := cands[0]
	if len(cands) > 1 {
		sort.SliceStable(cands, func(i, j int) bool {
			a, b := cands[i], cands[j]
			aDate := dateDistanceDays(a, t)
			bDate := dateDistanceDays(b, t)
			if aDate != bDate {
				return aDate < bDate
			}
			aAmt := amountDistance(a, t.Amount)
			bAmt := amountDistance(b, t.Amount)
			if aAmt != bAmt {
				return aAmt < bAmt
			}
			return a.InvoiceID < b.InvoiceID
		})
		best = cands[0]
	}
	return &Resolution{Record: best, Step: MatchStepCommissionRef, Candidates: len(cands)}
}

// guaranteeCandidate pairs a record with whether it matched the token
// exactly; an exact match always outranks a contains match.
type guaranteeCandidate struct {
	rec   model.BillingRecord
	exact bool
}

// matchGuaranteeToken resolves a business-case token against guarantee
// references and business-case ids. Only records in GENERATED status are
// eligible: a guarantee can carry several billing records over its
// lifecycle and the cascade must pick the one that is actually ready,
// even when a DRAFT record is otherwise a closer match.
func matchGuaranteeToken(t *model.Transaction, token string, snap *BillingSnapshot) *Resolution {
	var cands []guaranteeCandidate
	for _, rec := range snap.All() {
		if rec.Status != model.BillingGenerated {
			continue
		}
		guaranteeRef := snapshotKey(rec.GuaranteeRef)
		businessCase := snapshotKey(rec.BusinessCaseID)
		switch {
		case guaranteeRef == token || businessCase == token:
			cands = append(cands, guaranteeCandidate{rec: rec, exact: true})
		case strings.Contains(guaranteeRef, token) || strings.Contains(businessCase, token):
			cands = append(cands, guaranteeCandidate{rec: rec, exact: false})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.exact != b.exact {
			return a.exact
		}
		aDate := dateDistanceDays(a.rec, t)
		bDate := dateDistanceDays(b.rec, t)
		if aDate != bDate {
			return aDate < bDate
		}
		aAmt := amountDistance(a.rec, t.Amount)
		bAmt := amountDistance(b.rec, t.Amount)
		if aAmt != bAmt {
			return aAmt < bAmt
		}
		return a.rec.InvoiceID < b.rec.InvoiceID
	})
	return &Resolution{Record: cands[0].rec, Step: MatchStepGuaranteeToken, Candidates: len(cands)}
}

// suggestReference is the last-resort pass: a loose contains scan of every
// extracted token against the record reference fields, reusing the
// guarantee status filter but none of the strict per-step ordering. The
// single best candidate by amount then date proximity is returned as a
// suggestion, or nil.
func suggestReference(t *model.Transaction, toks ExtractedTokens, snap *BillingSnapshot) *Resolution {
	var cands []model.BillingRecord
	seen := make(map[string]bool)
	add := func(rec model.BillingRecord) {
		if !seen[rec.ID] {
			seen[rec.ID] = true
			cands = append(cands, rec)
		}
	}

	for _, rec := range snap.All() {
		if tok := toks.Invoice; tok != "" {
			if containsFold(rec.InvoiceID, tok) || containsFold(rec.PaymentRef, tok) || containsFold(rec.CommissionRef, tok) {
				add(rec)
				continue
			}
		}
		if tok := toks.PaymentRef; tok != "" {
			if containsFold(rec.PaymentRef, tok) || containsFold(rec.CommissionRef, tok) {
				add(rec)
				continue
			}
		}
		if tok := toks.Guarantee; tok != "" && rec.Status == model.BillingGenerated {
			if containsFold(rec.GuaranteeRef, tok) || containsFold(rec.BusinessCaseID, tok) {
				add(rec)
			}
		}
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		aAmt := amountDistance(a, t.Amount)
		bAmt := amountDistance(b, t.Amount)
		if aAmt != bAmt {
			return aAmt < bAmt
		}
		aDate := dateDistanceDays(a, t)
		bDate := dateDistanceDays(b, t)
		if aDate != bDate {
			return aDate < bDate
		}
		return a.InvoiceID < b.InvoiceID
	})
	return &Resolution{Record: cands[0], Step: MatchStepSuggestion, Candidates: len(cands)}
}

// ApplyResolution writes the resolved references back onto the
// transaction. An already-extracted token always wins over the value
// carried by the resolved record. With no resolution the extracted tokens
// are still written so the line shows what was recognized.
func ApplyResolution(t *model.Transaction, toks ExtractedTokens, res *Resolution) {
	step := matchStepNone
	candidates := 0
	recordID := ""

	if res != nil {
		step = res.Step
		candidates = res.Candidates
		recordID = res.Record.ID

		t.InvoiceID = preferToken(toks.Invoice, res.Record.InvoiceID)
		t.PaymentRef = preferToken(toks.PaymentRef, firstNonEmpty(res.Record.PaymentRef, res.Record.CommissionRef))
		t.GuaranteeRef = preferToken(toks.Guarantee, res.Record.GuaranteeRef)
		t.AmountMatched = withinTolerance(res.Record.RequestedAmount, t.Amount) ||
			withinTolerance(res.Record.BillingAmount, t.Amount)
		t.StatusAcknowledged = res.Record.Status == model.BillingGenerated
	} else {
		t.InvoiceID = preferToken(toks.Invoice, t.InvoiceID)
		t.PaymentRef = preferToken(toks.PaymentRef, t.PaymentRef)
		t.GuaranteeRef = preferToken(toks.Guarantee, t.GuaranteeRef)
		t.AmountMatched = false
		t.StatusAcknowledged = false
	}

	details, err := json.Marshal(map[string]interface{}{
		"step":       step,
		"candidates": candidates,
		"record_id":  recordID,
	})
	if err != nil {
		log.Printf("[ApplyResolution] Error marshaling resolution details: %v", err)
		return
	}
	t.ResolutionDetails = datatypes.JSON(details)
}

func preferToken(token, fallback string) string {
	if token != "" {
		return token
	}
	return strings.ToUpper(strings.TrimSpace(fallback))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func containsFold(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(haystack), strings.ToUpper(needle))
}

func withinTolerance(recorded *float64, amount float64) bool {
	if recorded == nil {
		return false
	}
	return math.Abs(*recorded-amount) <= amountTolerance
}

func ptrDistance(recorded *float64, amount float64) float64 {
	if recorded == nil {
		return math.MaxFloat64
	}
	return math.Abs(*recorded - amount)
}

// amountDistance is the smaller of the distances to the requested and
// billed amounts, the measure used by the guarantee and fallback passes.
func amountDistance(rec model.BillingRecord, amount float64) float64 {
	return math.Min(ptrDistance(rec.RequestedAmount, amount), ptrDistance(rec.BillingAmount, amount))
}

// dateDistanceDays scores date proximity between a billing record and a
// transaction. Record side prefers the start date, falling back to the
// end date; transaction side prefers the operation date, falling back to
// the value date. A missing or unparseable date on either side yields
// the no-preference sentinel.
func dateDistanceDays(rec model.BillingRecord, t *model.Transaction) float64 {
	recDate, ok := ParseFlexibleDate(rec.StartDate)
	if !ok {
		recDate, ok = ParseFlexibleDate(rec.EndDate)
	}
	if !ok {
		return noDatePreference
	}

	var txDate time.Time
	switch {
	case t.OperationDate != nil:
		txDate = *t.OperationDate
	case t.ValueDate != nil:
		txDate = *t.ValueDate
	default:
		return noDatePreference
	}

	return math.Abs(recDate.Sub(txDate).Hours() / 24)
}
