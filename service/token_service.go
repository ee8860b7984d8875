package services

import (
	"regexp"
	"strings"

	model "github.com/mkestrel/LedgerGuard/models"
)

// Token patterns. All three are boundary-anchored by hand because the
// tokens must not touch any other alphanumeric character, and Go's RE2
// has no lookbehind. The scan is case-insensitive; extracted tokens are
// normalized to uppercase.
//
// Invoice token: BGI + (6-digit date block + 7 hex chars) or
// (4-digit date + 2-letter country code + 7 hex chars).
var invoiceTokenRe = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9])(BGI(?:[0-9]{6}[0-9A-F]{7}|[0-9]{4}[A-Z]{2}[0-9A-F]{7}))(?:[^A-Za-z0-9]|$)`)

// Payment-reference token: PAYRF + 8 to 20 alphanumerics.
var paymentTokenRe = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9])(PAYRF[A-Z0-9]{8,20})(?:[^A-Za-z0-9]|$)`)

// Guarantee token: G + 4 digits + 2 letters + 9 digits.
var guaranteeTokenRe = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9])(G[0-9]{4}[A-Z]{2}[0-9]{9})(?:[^A-Za-z0-9]|$)`)

// ExtractedTokens holds at most one token of each kind pulled from a
// transaction's free-text fields. Empty string means no token found,
// which is not an error.
type ExtractedTokens struct {
	Invoice    string
	PaymentRef string
	Guarantee  string
}

// ExtractTokens scans the transaction's text fields in side-dependent
// priority order and returns the first match per token kind.
//
// The clearing side books invoice tokens only into the reconciliation
// number field, so for that side there is deliberately no fallback to
// label or origin number. The receivable side scans label, then
// reconciliation number, then origin number.
func ExtractTokens(t *model.Transaction) ExtractedTokens {
	standard := []string{t.Label, t.ReconciliationNumber, t.OriginNumber}

	invoiceFields := standard
	if t.AccountSide == model.SideClearing {
		invoiceFields = []string{t.ReconciliationNumber}
	}

	return ExtractedTokens{
		Invoice:    firstTokenMatch(invoiceTokenRe, invoiceFields),
		PaymentRef: firstTokenMatch(paymentTokenRe, standard),
		Guarantee:  firstTokenMatch(guaranteeTokenRe, standard),
	}
}

// firstTokenMatch returns the first capture of re across fields, in field
// priority order, uppercased. Only the token shape is validated here;
// business validation happens downstream in the resolver.
func firstTokenMatch(re *regexp.Regexp, fields []string) string {
	for _, field := range fields {
		if field == "" {
			continue
		}
		if m := re.FindStringSubmatch(field); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// referenceTokenRe splits the reconciliation-number-family fields into
// candidate reference tokens for the fallback commission-reference match.
var referenceTokenRe = regexp.MustCompile(`[A-Za-z0-9]{6,}`)

// extractReferenceTokens pulls every alphanumeric run of useful length
// out of the reconciliation and origin number fields, deduplicated and
// uppercased, preserving first-seen order.
func extractReferenceTokens(t *model.Transaction) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, field := range []string{t.ReconciliationNumber, t.OriginNumber} {
		for _, tok := range referenceTokenRe.FindAllString(field, -1) {
			up := strings.ToUpper(tok)
			if !seen[up] {
				seen[up] = true
				tokens = append(tokens, up)
			}
		}
	}
	return tokens
}
