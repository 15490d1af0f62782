package bigquery

import (
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/invoice"
)

// ChargeRow is one row of the billing charges table.
type ChargeRow struct {
	InvoiceMD5    bigquery.NullString `bigquery:"invoice_md5"`    // NULLABLE
	InvoiceNumber bigquery.NullString `bigquery:"invoice_number"` // NULLABLE
	LineNo        bigquery.NullInt64  `bigquery:"line_no"`        // NULLABLE

	ChargeDescription bigquery.NullString `bigquery:"charge_description"` // NULLABLE
	EquipmentType     bigquery.NullString `bigquery:"equipment_type"`     // NULLABLE
	Material          bigquery.NullString `bigquery:"material"`           // NULLABLE
	ServiceID         bigquery.NullString `bigquery:"service_id"`         // NULLABLE
	ServiceType       bigquery.NullString `bigquery:"service_type"`       // NULLABLE
	VendorName        bigquery.NullString `bigquery:"vendor_name"`        // NULLABLE

	Cost  *big.Rat `bigquery:"cost"`  // NULLABLE NUMERIC
	Price *big.Rat `bigquery:"price"` // NULLABLE NUMERIC
}

// BillingCharge converts the row into the ledger record at position row, keyed on key.
// Cost is preferred over price, as in the CSV export.
func (r *ChargeRow) BillingCharge(row int, key string) corpus.BillingCharge {
	c := corpus.BillingCharge{
		Row:               row,
		MD5:               corpus.NormalizeMD5(r.InvoiceMD5.StringVal),
		InvoiceNumber:     corpus.NormalizeInvoiceNumber(r.InvoiceNumber.StringVal),
		ChargeDescription: r.ChargeDescription.StringVal,
		EquipmentType:     r.EquipmentType.StringVal,
		Material:          r.Material.StringVal,
		ServiceID:         r.ServiceID.StringVal,
		ServiceType:       r.ServiceType.StringVal,
		VendorName:        r.VendorName.StringVal,
		Amount:            ratAmount(r.Cost),
	}
	if !c.Amount.Valid {
		c.Amount = ratAmount(r.Price)
	}
	c.Key = corpus.KeyOf(key, c.MD5, c.InvoiceNumber)
	c.MatchText = invoice.NormalizeText(c.ChargeDescription)
	return c
}

// numericScale is the fractional precision of the BigQuery NUMERIC type.
const numericScale = 9

func ratAmount(r *big.Rat) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func decimalRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
