package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Invoice is one parsed source document. ID is the document's content hash
// (the md5 the extraction service stores it under). Optional header fields are nil when absent.
type Invoice struct {
	ID string

	AccountNumber  *string
	InvoiceNumber  *string
	InvoiceDate    *string
	VendorName     *string
	LocationCode   *string
	ServiceAddress *string

	TotalAmount decimal.NullDecimal

	LineItems []LineItem
}

// LineItem is a single charge line on an invoice. Description is upper-cased with
// whitespace collapsed; RawText is the untouched mention text.
type LineItem struct {
	Description string
	RawText     string

	Amount      decimal.NullDecimal
	Quantity    *float64
	UnitPrice   decimal.NullDecimal
	ServiceDate *string

	// Equipment and Material are nil when no classification rule matched.
	Equipment *string
	Material  *string
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FormatAmount renders an optional amount for flat outputs; absent amounts render empty.
func FormatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// NormalizeText upper-cases s and collapses runs of whitespace to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
