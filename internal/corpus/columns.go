package corpus

import (
	"fmt"
	"strings"

	"github.com/dvloznov/charge-mapping/internal/config"
)

// Key fields a corpus can be joined on.
const (
	KeyInvoiceNumber = "invoice_number"
	KeyMD5           = "md5"
)

// Logical field names, resolved through the alias tables below.
const (
	FieldMD5           = "md5"
	FieldInvoiceNumber = "invoice_number"
	FieldDescription   = "description"
	FieldAmount        = "amount"
	FieldVendorName    = "vendor_name"
	FieldAccountNumber = "account_number"
	FieldInvoiceDate   = "invoice_date"
	FieldEquipment     = "equipment"
	FieldMaterial      = "material"
	FieldServiceID     = "service_id"
	FieldServiceType   = "service_type"
)

// Aliases maps a logical field to the column names that may carry it, in preference order.
type Aliases map[string][]string

// InvoiceAliases covers the extraction detail export and its older variants.
var InvoiceAliases = Aliases{
	FieldMD5:           {"json_md5", "invoice_md5"},
	FieldInvoiceNumber: {"invoice_number"},
	FieldDescription:   {"line_description", "description"},
	FieldAmount:        {"line_amount", "amount"},
	FieldVendorName:    {"vendor_name"},
	FieldAccountNumber: {"account_number"},
	FieldInvoiceDate:   {"invoice_date"},
	FieldEquipment:     {"parsed_equipment"},
	FieldMaterial:      {"parsed_material"},
}

// BillingAliases covers billing_charges exports. The amount prefers cost over price.
var BillingAliases = Aliases{
	FieldMD5:           {"invoice_md5"},
	FieldInvoiceNumber: {"invoice_number", "billing_reference"},
	FieldDescription:   {"charge_description"},
	FieldAmount:        {"cost", "price"},
	FieldVendorName:    {"vendor_name"},
	FieldEquipment:     {"equipment_type"},
	FieldMaterial:      {"material"},
	FieldServiceID:     {"service_id"},
	FieldServiceType:   {"service_type"},
}

// present reports whether any alias of field is among cols.
func (a Aliases) present(field string, cols map[string]bool) bool {
	for _, name := range a[field] {
		if cols[name] {
			return true
		}
	}
	return false
}

func (a Aliases) label(field string) string {
	return strings.Join(a[field], "|")
}

// MissingColumnsError reports required columns absent from an input. Each entry lists the
// accepted alternatives joined by "|".
type MissingColumnsError struct {
	Source  string
	Columns []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns %v (found: %s)",
		e.Source, e.Columns, strings.Join(e.Found, ", "))
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

// ResolveKey picks the join key field for the two column sets. In auto mode the invoice
// number is used when both sides carry one, otherwise the content hash.
func ResolveKey(mode string, invoiceCols, billingCols []string) (string, error) {
	inv, bill := columnSet(invoiceCols), columnSet(billingCols)

	switch mode {
	case config.JoinKeyInvoiceNumber:
		return KeyInvoiceNumber, nil
	case config.JoinKeyMD5:
		return KeyMD5, nil
	case config.JoinKeyAuto, "":
		if InvoiceAliases.present(FieldInvoiceNumber, inv) && BillingAliases.present(FieldInvoiceNumber, bill) {
			return KeyInvoiceNumber, nil
		}
		return KeyMD5, nil
	}
	return "", fmt.Errorf("ResolveKey: unknown join key mode %q", mode)
}

// keyField maps a join key to the logical field holding it.
func keyField(key string) string {
	if key == KeyInvoiceNumber {
		return FieldInvoiceNumber
	}
	return FieldMD5
}

// RequireColumns checks that cols can supply the join key, the description and the amount.
func RequireColumns(source string, aliases Aliases, key string, cols []string) error {
	set := columnSet(cols)

	var missing []string
	for _, field := range []string{keyField(key), FieldDescription, FieldAmount} {
		if !aliases.present(field, set) {
			missing = append(missing, aliases.label(field))
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Source: source, Columns: missing, Found: cols}
	}
	return nil
}
