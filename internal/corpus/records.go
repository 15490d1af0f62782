package corpus

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/invoice"
)

var amountPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// LineRecord is one invoice line item as read from the extraction export.
type LineRecord struct {
	Row int

	Key           string
	MD5           string
	InvoiceNumber string

	VendorName    string
	AccountNumber string
	InvoiceDate   string
	Description   string
	Equipment     string
	Material      string

	// MatchText is the description upper-cased with whitespace collapsed.
	MatchText string
	Amount    decimal.NullDecimal
}

// BillingCharge is one billing ledger record.
type BillingCharge struct {
	Row int

	Key           string
	MD5           string
	InvoiceNumber string

	ChargeDescription string
	EquipmentType     string
	Material          string
	ServiceID         string
	ServiceType       string
	VendorName        string

	MatchText string
	Amount    decimal.NullDecimal
}

// ParseAmount reads the first number out of a cell after removing thousands separators.
func ParseAmount(s string) decimal.NullDecimal {
	m := amountPattern.FindString(strings.ReplaceAll(s, ",", ""))
	m = strings.TrimSuffix(m, ".")
	if m == "" || m == "-" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// firstAmount returns the first alias cell of row i that holds a number.
func (t *Table) firstAmount(i int, aliases []string) decimal.NullDecimal {
	for _, name := range aliases {
		if a := ParseAmount(t.cell(i, name)); a.Valid {
			return a
		}
	}
	return decimal.NullDecimal{}
}

// NormalizeMD5 trims and lower-cases a content hash.
func NormalizeMD5(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeInvoiceNumber trims an invoice number.
func NormalizeInvoiceNumber(s string) string {
	return strings.TrimSpace(s)
}

// KeyOf returns the join key value for key given both identifiers.
func KeyOf(key, md5, invoiceNumber string) string {
	if key == KeyInvoiceNumber {
		return invoiceNumber
	}
	return md5
}

// LineRecords converts the invoice table rows. Call RequireColumns first.
func LineRecords(t *Table, key string) []LineRecord {
	a := InvoiceAliases
	out := make([]LineRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := LineRecord{
			Row:           i,
			MD5:           NormalizeMD5(t.first(i, a[FieldMD5])),
			InvoiceNumber: NormalizeInvoiceNumber(t.first(i, a[FieldInvoiceNumber])),
			VendorName:    t.first(i, a[FieldVendorName]),
			AccountNumber: t.first(i, a[FieldAccountNumber]),
			InvoiceDate:   t.first(i, a[FieldInvoiceDate]),
			Description:   t.first(i, a[FieldDescription]),
			Equipment:     t.first(i, a[FieldEquipment]),
			Material:      t.first(i, a[FieldMaterial]),
			Amount:        t.firstAmount(i, a[FieldAmount]),
		}
		r.Key = KeyOf(key, r.MD5, r.InvoiceNumber)
		r.MatchText = invoice.NormalizeText(r.Description)
		out = append(out, r)
	}
	return out
}

// BillingCharges converts the billing table rows. Call RequireColumns first.
func BillingCharges(t *Table, key string) []BillingCharge {
	a := BillingAliases
	out := make([]BillingCharge, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		c := BillingCharge{
			Row:               i,
			MD5:               NormalizeMD5(t.first(i, a[FieldMD5])),
			InvoiceNumber:     NormalizeInvoiceNumber(t.first(i, a[FieldInvoiceNumber])),
			ChargeDescription: t.first(i, a[FieldDescription]),
			EquipmentType:     t.first(i, a[FieldEquipment]),
			Material:          t.first(i, a[FieldMaterial]),
			ServiceID:         t.first(i, a[FieldServiceID]),
			ServiceType:       t.first(i, a[FieldServiceType]),
			VendorName:        t.first(i, a[FieldVendorName]),
			Amount:            t.firstAmount(i, a[FieldAmount]),
		}
		c.Key = KeyOf(key, c.MD5, c.InvoiceNumber)
		c.MatchText = invoice.NormalizeText(c.ChargeDescription)
		out = append(out, c)
	}
	return out
}
