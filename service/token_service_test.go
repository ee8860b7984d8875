package services

import (
	"fmt"
	"testing"

	"github.com/mkestrel/LedgerGuard/models"
	"github.com/stretchr/testify/assert"
)

func TestExtractTokens_ReceivableFieldPriority(t *testing.T) {
	tests := []struct {
		name string
		tx   models.Transaction
		want ExtractedTokens
	}{
		{
			name: "invoice token in label",
			tx: models.Transaction{
				AccountSide: models.SideReceivable,
				Label:       "PAYMENT BGI202401A1B2C3D FEES Q1",
			},
			want: ExtractedTokens{Invoice: "BGI202401A1B2C3D"},
		},
		{
			name: "label wins over reconciliation number",
			tx: models.Transaction{
				AccountSide:          models.SideReceivable,
				Label:                "REF BGI202401A1B2C3D",
				ReconciliationNumber: "BGI202402F9E8D7C",
			},
			want: ExtractedTokens{Invoice: "BGI202401A1B2C3D"},
		},
		{
			name: "fallback to origin number",
			tx: models.Transaction{
				AccountSide:  models.SideReceivable,
				Label:        "COMMISSION SETTLEMENT",
				OriginNumber: "BGI2024FRA1B2C3D",
			},
			want: ExtractedTokens{Invoice: "BGI2024FRA1B2C3D"},
		},
		{
			name: "lowercase scan normalized to uppercase",
			tx: models.Transaction{
				AccountSide: models.SideReceivable,
				Label:       "bgi202401a1b2c3d",
			},
			want: ExtractedTokens{Invoice: "BGI202401A1B2C3D"},
		},
		{
			name: "all three kinds in one line",
			tx: models.Transaction{
				AccountSide:          models.SideReceivable,
				Label:                "BGI202401A1B2C3D / PAYRFAB12CD34EF",
				ReconciliationNumber: "G1234FR123456789",
			},
			want: ExtractedTokens{
				Invoice:    "BGI202401A1B2C3D",
				PaymentRef: "PAYRFAB12CD34EF",
				Guarantee:  "G1234FR123456789",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTokens(&tt.tx)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTokens_ClearingUsesReconciliationNumberOnly(t *testing.T) {
	// The clearing side has no fallback for invoice tokens: a token
	// sitting in the label must be ignored there.
	tx := models.Transaction{
		AccountSide: models.SideClearing,
		Label:       "SETTLEMENT BGI202401A1B2C3D",
	}
	assert.Empty(t, ExtractTokens(&tx).Invoice)

	tx.ReconciliationNumber = "BGI202401A1B2C3D"
	assert.Equal(t, "BGI202401A1B2C3D", ExtractTokens(&tx).Invoice)
}

func TestExtractTokens_BoundaryAnchoring(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"leading letter glued on", "XBGI202401A1B2C3D", ""},
		{"trailing digit glued on", "BGI202401A1B2C3D5", ""},
		{"separated by slash", "REF/BGI202401A1B2C3D/01", "BGI202401A1B2C3D"},
		{"at start of field", "BGI202401A1B2C3D charges", "BGI202401A1B2C3D"},
		{"at end of field", "charges BGI202401A1B2C3D", "BGI202401A1B2C3D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := models.Transaction{AccountSide: models.SideReceivable, Label: tt.label}
			assert.Equal(t, tt.want, ExtractTokens(&tx).Invoice)
		})
	}
}

func TestExtractTokens_PaymentRefLength(t *testing.T) {
	// 8 to 20 alphanumerics after the prefix.
	short := models.Transaction{AccountSide: models.SideReceivable, Label: "PAYRFAB12CD"}
	assert.Empty(t, ExtractTokens(&short).PaymentRef)

	ok := models.Transaction{AccountSide: models.SideReceivable, Label: "PAYRFAB12CD34"}
	assert.Equal(t, "PAYRFAB12CD34", ExtractTokens(&ok).PaymentRef)

	long := models.Transaction{AccountSide: models.SideReceivable,
		Label: "PAYRFAB12CD34EF56GH78IJ90X"} // 21 chars after prefix
	assert.Empty(t, ExtractTokens(&long).PaymentRef)
}

func TestExtractTokens_RoundTrip(t *testing.T) {
	// A token formatted from known parts must extract back byte-identical.
	tokens := []struct {
		kind  string
		value string
	}{
		{"invoice", fmt.Sprintf("BGI%06d%s", 202403, "0F1E2D3")},
		{"invoice", fmt.Sprintf("BGI%04d%s%s", 2024, "IT", "ABCDEF0")},
		{"payment", fmt.Sprintf("PAYRF%s", "X1Y2Z3W4V5")},
		{"guarantee", fmt.Sprintf("G%04d%s%09d", 1234, "FR", 123456789)},
	}

	for _, tok := range tokens {
		t.Run(tok.value, func(t *testing.T) {
			tx := models.Transaction{
				AccountSide: models.SideReceivable,
				Label:       fmt.Sprintf("WIRE %s SETTLEMENT", tok.value),
			}
			got := ExtractTokens(&tx)
			switch tok.kind {
			case "invoice":
				assert.Equal(t, tok.value, got.Invoice)
			case "payment":
				assert.Equal(t, tok.value, got.PaymentRef)
			case "guarantee":
				assert.Equal(t, tok.value, got.Guarantee)
			}
		})
	}
}

func TestExtractReferenceTokens(t *testing.T) {
	tx := models.Transaction{
		ReconciliationNumber: "COM-REF99871/2024",
		OriginNumber:         "ref99871 ABC123",
	}
	got := extractReferenceTokens(&tx)
	assert.Equal(t, []string{"REF99871", "ABC123"}, got)
}
