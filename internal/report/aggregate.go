// Package report reduces joined records into review tables and writes them as CSV or XLSX.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/invoice"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// PairCount is how often an invoice description was linked to a billing description.
type PairCount struct {
	InvoiceDescription string
	BillingDescription string
	Count              int
	TotalAmount        decimal.Decimal
}

// PairFrequency counts (invoice description, billing description) pairs over matched
// records, most frequent first. Equal counts are ordered by the descriptions.
func PairFrequency(records []matcher.JoinedRecord) []PairCount {
	type pairKey struct{ inv, bill string }

	idx := make(map[pairKey]int)
	var out []PairCount
	for _, r := range records {
		if !r.Matched() {
			continue
		}
		k := pairKey{r.Line.Description, r.Charge.ChargeDescription}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, PairCount{InvoiceDescription: k.inv, BillingDescription: k.bill})
		}
		out[i].Count++
		if r.Line.Amount.Valid {
			out[i].TotalAmount = out[i].TotalAmount.Add(r.Line.Amount.Decimal)
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		if out[a].InvoiceDescription != out[b].InvoiceDescription {
			return out[a].InvoiceDescription < out[b].InvoiceDescription
		}
		return out[a].BillingDescription < out[b].BillingDescription
	})
	return out
}

// VendorTotal is the per-vendor match outcome.
type VendorTotal struct {
	Vendor        string
	Lines         int
	Matched       int
	MatchedAmount decimal.Decimal
}

// MatchRate is the share of lines that matched, between 0 and 1.
func (v VendorTotal) MatchRate() float64 {
	if v.Lines == 0 {
		return 0
	}
	return float64(v.Matched) / float64(v.Lines)
}

// VendorTotals groups records by invoice vendor, largest vendors first.
func VendorTotals(records []matcher.JoinedRecord) []VendorTotal {
	idx := make(map[string]int)
	var out []VendorTotal
	for _, r := range records {
		i, ok := idx[r.Line.VendorName]
		if !ok {
			i = len(out)
			idx[r.Line.VendorName] = i
			out = append(out, VendorTotal{Vendor: r.Line.VendorName})
		}
		out[i].Lines++
		if r.Matched() {
			out[i].Matched++
			if r.Line.Amount.Valid {
				out[i].MatchedAmount = out[i].MatchedAmount.Add(r.Line.Amount.Decimal)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Lines != out[b].Lines {
			return out[a].Lines > out[b].Lines
		}
		return out[a].Vendor < out[b].Vendor
	})
	return out
}

// Summary is the headline count of a join run.
type Summary struct {
	Records            int
	Matched            int
	ByStatus           map[matcher.Status]int
	UniqueVendors      int
	UniqueKeys         int
	ExactAmountMatches int
}

// Summarize counts outcomes. ExactAmountMatches are matched records whose variance is
// smaller than exactTol; UniqueVendors and UniqueKeys are over matched records.
func Summarize(records []matcher.JoinedRecord, exactTol decimal.Decimal) Summary {
	s := Summary{ByStatus: make(map[matcher.Status]int)}
	vendors := make(map[string]bool)
	keys := make(map[string]bool)

	for _, r := range records {
		s.Records++
		s.ByStatus[r.Status]++
		if !r.Matched() {
			continue
		}
		s.Matched++
		vendors[r.Line.VendorName] = true
		keys[r.Key] = true
		if r.Variance.Valid && r.Variance.Decimal.Abs().LessThan(exactTol) {
			s.ExactAmountMatches++
		}
	}
	s.UniqueVendors = len(vendors)
	s.UniqueKeys = len(keys)
	return s
}

// ExtractionCount aggregates extracted line items by vendor and description.
type ExtractionCount struct {
	Vendor      string
	Description string
	Count       int
	TotalAmount decimal.Decimal
}

// ExtractionSummary counts line items per (vendor, description), most frequent first.
func ExtractionSummary(invoices []*invoice.Invoice) []ExtractionCount {
	type key struct{ vendor, desc string }

	idx := make(map[key]int)
	var out []ExtractionCount
	for _, inv := range invoices {
		vendor := invoice.Deref(inv.VendorName)
		for _, li := range inv.LineItems {
			k := key{vendor, li.Description}
			i, ok := idx[k]
			if !ok {
				i = len(out)
				idx[k] = i
				out = append(out, ExtractionCount{Vendor: vendor, Description: li.Description})
			}
			out[i].Count++
			if li.Amount.Valid {
				out[i].TotalAmount = out[i].TotalAmount.Add(li.Amount.Decimal)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Count > out[b].Count
	})
	return out
}

// Top returns at most n leading pairs; n <= 0 returns all of them.
func Top(pairs []PairCount, n int) []PairCount {
	if n <= 0 || n >= len(pairs) {
		return pairs
	}
	return pairs[:n]
}
