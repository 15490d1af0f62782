package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

func ns(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: true}
}

func TestChargeRow_BillingCharge(t *testing.T) {
	row := ChargeRow{
		InvoiceMD5:        ns(" ABC123 "),
		InvoiceNumber:     ns(" INV-1 "),
		ChargeDescription: ns("Monthly  service"),
		EquipmentType:     ns("8 Yard Front Load"),
		ServiceID:         ns("S1"),
		VendorName:        ns("Lawrence"),
		Price:             big.NewRat(81150, 100),
	}

	c := row.BillingCharge(3, corpus.KeyMD5)

	assert.Equal(t, 3, c.Row)
	assert.Equal(t, "abc123", c.Key)
	assert.Equal(t, "abc123", c.MD5)
	assert.Equal(t, "INV-1", c.InvoiceNumber)
	assert.Equal(t, "MONTHLY SERVICE", c.MatchText)
	assert.Equal(t, "8 Yard Front Load", c.EquipmentType)
	assert.Empty(t, c.Material)
	require.True(t, c.Amount.Valid)
	assert.True(t, c.Amount.Decimal.Equal(decimal.RequireFromString("811.5")))

	c = row.BillingCharge(0, corpus.KeyInvoiceNumber)
	assert.Equal(t, "INV-1", c.Key)
}

func TestChargeRow_AmountPrefersCost(t *testing.T) {
	row := ChargeRow{Cost: big.NewRat(-5, 2), Price: big.NewRat(7, 1)}
	c := row.BillingCharge(0, corpus.KeyMD5)
	require.True(t, c.Amount.Valid)
	assert.True(t, c.Amount.Decimal.Equal(decimal.RequireFromString("-2.5")))

	c = (&ChargeRow{}).BillingCharge(0, corpus.KeyMD5)
	assert.False(t, c.Amount.Valid)
	assert.Empty(t, c.Key)
}

func TestChargesQuery(t *testing.T) {
	q := chargesQuery("proj", "billing", "billing_charges", corpus.KeyMD5)
	assert.Contains(t, q, "`proj.billing.billing_charges`")
	assert.Contains(t, q, "LOWER(TRIM(invoice_md5)) IN UNNEST(@keys)")
	assert.Contains(t, q, "ORDER BY invoice_md5, line_no")

	q = chargesQuery("proj", "billing", "billing_charges", corpus.KeyInvoiceNumber)
	assert.Contains(t, q, "WHERE invoice_number IN UNNEST(@keys)")
	assert.Contains(t, q, "ORDER BY invoice_number, line_no")
}

func TestNewJoinedRecordRow(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	charge := corpus.BillingCharge{
		ChargeDescription: "Monthly Service",
		ServiceID:         "S1",
		Amount:            decimal.NewNullDecimal(decimal.RequireFromString("811.00")),
	}
	rec := matcher.JoinedRecord{
		RunID: "run-1",
		Key:   "abc",
		Line: corpus.LineRecord{
			MD5:         "abc",
			VendorName:  "Lawrence",
			Description: "MONTHLY EQUIPMENT FEE",
			Amount:      decimal.NewNullDecimal(decimal.RequireFromString("811.50")),
		},
		Charge:       &charge,
		Score:        5,
		AmountScore:  5,
		OverlapScore: 0,
		Variance:     decimal.NewNullDecimal(decimal.RequireFromString("0.50")),
		Status:       matcher.StatusMatched,
	}

	row := NewJoinedRecordRow(rec, created)

	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, "abc", row.JoinKey)
	assert.Equal(t, "matched", row.Status)
	assert.Equal(t, ns("abc"), row.InvoiceMD5)
	assert.False(t, row.InvoiceNumber.Valid)
	assert.Equal(t, ns("S1"), row.ServiceID)
	assert.Equal(t, 0, row.LineAmount.Cmp(big.NewRat(1623, 2)))
	assert.Equal(t, 0, row.BillingAmount.Cmp(big.NewRat(811, 1)))
	assert.Equal(t, 0, row.Variance.Cmp(big.NewRat(1, 2)))
	assert.Equal(t, int64(5), row.MatchScore)
	assert.False(t, row.Note.Valid)
	assert.Equal(t, created, row.CreatedTS)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.March, Day: 1}, row.RunDate)
}

func TestNewJoinedRecordRow_Unmatched(t *testing.T) {
	rec := matcher.JoinedRecord{
		Line:   corpus.LineRecord{Description: "EXTRA LIFT"},
		Status: matcher.StatusNoMatch,
		Note:   "No confident match found",
	}

	row := NewJoinedRecordRow(rec, time.Now())

	assert.Equal(t, "no_match", row.Status)
	assert.Nil(t, row.LineAmount)
	assert.Nil(t, row.BillingAmount)
	assert.Nil(t, row.Variance)
	assert.False(t, row.ChargeDescription.Valid)
	assert.Equal(t, ns("No confident match found"), row.Note)
}

func TestJoinedRecordRows(t *testing.T) {
	res := &matcher.Result{Records: []matcher.JoinedRecord{{Key: "a"}, {Key: "b"}}}
	rows := JoinedRecordRows(res, time.Now())
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].JoinKey)
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, batches(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, batches(items, 5))
	assert.Nil(t, batches([]int{}, 3))
}
