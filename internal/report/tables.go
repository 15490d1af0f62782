package report

import (
	"strconv"

	"github.com/dvloznov/charge-mapping/internal/extract"
	"github.com/dvloznov/charge-mapping/internal/invoice"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// Table is a named header plus string rows, the shape both writers consume.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Table names, also used as file-name kinds and sheet names.
const (
	KindJoined    = "joined"
	KindUnmatched = "unmatched"
	KindSummary   = "summary"
	KindVendors   = "vendors"
	KindDetail    = "detail"
)

var joinedHeader = []string{
	"invoice_md5", "invoice_number", "vendor_name", "account_number", "invoice_date",
	"invoice_line_description", "parsed_equipment", "parsed_material", "invoice_amount",
	"billing_charge_description", "billing_equipment_type", "billing_material",
	"billing_service_type", "billing_amount", "billing_service_id",
	"match_score", "amount_score", "overlap_score", "amount_variance", "run_id",
}

var unmatchedHeader = []string{
	"invoice_md5", "invoice_number", "vendor_name", "account_number", "invoice_date",
	"invoice_line_description", "parsed_equipment", "parsed_material", "invoice_amount",
	"match_score", "status", "note", "run_id",
}

// JoinedTable has one row per matched record.
func JoinedTable(records []matcher.JoinedRecord) Table {
	t := Table{Name: KindJoined, Header: joinedHeader}
	for _, r := range records {
		if !r.Matched() {
			continue
		}
		l, c := r.Line, r.Charge
		t.Rows = append(t.Rows, []string{
			l.MD5, l.InvoiceNumber, l.VendorName, l.AccountNumber, l.InvoiceDate,
			l.Description, l.Equipment, l.Material, invoice.FormatAmount(l.Amount),
			c.ChargeDescription, c.EquipmentType, c.Material,
			c.ServiceType, invoice.FormatAmount(c.Amount), c.ServiceID,
			strconv.Itoa(r.Score), strconv.Itoa(r.AmountScore), strconv.Itoa(r.OverlapScore),
			invoice.FormatAmount(r.Variance), r.RunID,
		})
	}
	return t
}

// UnmatchedTable has one row per unmatched record with its best score and reason.
func UnmatchedTable(records []matcher.JoinedRecord) Table {
	t := Table{Name: KindUnmatched, Header: unmatchedHeader}
	for _, r := range records {
		if r.Matched() {
			continue
		}
		l := r.Line
		t.Rows = append(t.Rows, []string{
			l.MD5, l.InvoiceNumber, l.VendorName, l.AccountNumber, l.InvoiceDate,
			l.Description, l.Equipment, l.Material, invoice.FormatAmount(l.Amount),
			strconv.Itoa(r.Score), string(r.Status), r.Note, r.RunID,
		})
	}
	return t
}

// PairTable renders description-pair frequencies.
func PairTable(pairs []PairCount) Table {
	t := Table{
		Name:   KindSummary,
		Header: []string{"invoice_line_description", "billing_charge_description", "count", "total_amount"},
	}
	for _, p := range pairs {
		t.Rows = append(t.Rows, []string{
			p.InvoiceDescription, p.BillingDescription, strconv.Itoa(p.Count), p.TotalAmount.StringFixed(2),
		})
	}
	return t
}

// VendorTable renders per-vendor totals.
func VendorTable(totals []VendorTotal) Table {
	t := Table{
		Name:   KindVendors,
		Header: []string{"vendor_name", "line_items", "matched", "match_rate", "matched_amount"},
	}
	for _, v := range totals {
		t.Rows = append(t.Rows, []string{
			v.Vendor, strconv.Itoa(v.Lines), strconv.Itoa(v.Matched),
			strconv.FormatFloat(v.MatchRate(), 'f', 4, 64), v.MatchedAmount.StringFixed(2),
		})
	}
	return t
}

// DetailTable renders extraction detail rows.
func DetailTable(rows []extract.DetailRow) Table {
	t := Table{Name: KindDetail, Header: extract.DetailHeader}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Record())
	}
	return t
}

// ExtractionTable renders the extraction summary.
func ExtractionTable(counts []ExtractionCount) Table {
	t := Table{
		Name:   KindSummary,
		Header: []string{"vendor", "description", "count", "total_amount"},
	}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{
			c.Vendor, c.Description, strconv.Itoa(c.Count), c.TotalAmount.StringFixed(2),
		})
	}
	return t
}
