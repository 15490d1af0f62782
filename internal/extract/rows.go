package extract

import (
	"strconv"

	"github.com/dvloznov/charge-mapping/internal/invoice"
)

// DetailHeader is the column order of the extraction detail table.
var DetailHeader = []string{
	"json_md5", "vendor_name", "account_number", "invoice_number", "invoice_date",
	"location_code", "service_address", "line_description", "line_amount", "line_quantity",
	"line_unit_price", "service_date", "parsed_equipment", "parsed_material", "full_text",
}

// DetailRow flattens one line item together with its invoice header.
type DetailRow struct {
	JSONMD5         string
	VendorName      string
	AccountNumber   string
	InvoiceNumber   string
	InvoiceDate     string
	LocationCode    string
	ServiceAddress  string
	LineDescription string
	LineAmount      string
	LineQuantity    string
	LineUnitPrice   string
	ServiceDate     string
	ParsedEquipment string
	ParsedMaterial  string
	FullText        string
}

// Record returns the row in DetailHeader order.
func (r DetailRow) Record() []string {
	return []string{
		r.JSONMD5, r.VendorName, r.AccountNumber, r.InvoiceNumber, r.InvoiceDate,
		r.LocationCode, r.ServiceAddress, r.LineDescription, r.LineAmount, r.LineQuantity,
		r.LineUnitPrice, r.ServiceDate, r.ParsedEquipment, r.ParsedMaterial, r.FullText,
	}
}

// Records returns rows in DetailHeader order.
func Records(rows []DetailRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out
}

// DetailRows flattens invoices into one row per line item, in scan order.
func DetailRows(invoices []*invoice.Invoice) []DetailRow {
	var rows []DetailRow
	for _, inv := range invoices {
		for _, li := range inv.LineItems {
			rows = append(rows, DetailRow{
				JSONMD5:         inv.ID,
				VendorName:      invoice.Deref(inv.VendorName),
				AccountNumber:   invoice.Deref(inv.AccountNumber),
				InvoiceNumber:   invoice.Deref(inv.InvoiceNumber),
				InvoiceDate:     invoice.Deref(inv.InvoiceDate),
				LocationCode:    invoice.Deref(inv.LocationCode),
				ServiceAddress:  invoice.Deref(inv.ServiceAddress),
				LineDescription: li.Description,
				LineAmount:      invoice.FormatAmount(li.Amount),
				LineQuantity:    formatFloat(li.Quantity),
				LineUnitPrice:   invoice.FormatAmount(li.UnitPrice),
				ServiceDate:     invoice.Deref(li.ServiceDate),
				ParsedEquipment: invoice.Deref(li.Equipment),
				ParsedMaterial:  invoice.Deref(li.Material),
				FullText:        li.RawText,
			})
		}
	}
	return rows
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
