// Package extract turns Document AI entity graphs into invoices with classified line items.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/classify"
	"github.com/dvloznov/charge-mapping/internal/invoice"
)

const lineItemType = "line_item"

// DocumentParseError reports a document that could not be read or decoded.
type DocumentParseError struct {
	ID  string
	Err error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parse document %s: %v", e.ID, e.Err)
}

func (e *DocumentParseError) Unwrap() error {
	return e.Err
}

var (
	datePattern     = regexp.MustCompile(`\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}`)
	currencyPattern = regexp.MustCompile(`\$?\d+\.\d{2}\b`)
	decimalPattern  = regexp.MustCompile(`\b\d+\.\d+\b`)
	trailingNumber  = regexp.MustCompile(`\s+\d+\s*$`)
	nonNumeric      = regexp.MustCompile(`[^\d.\-]`)
)

// Parse decodes one document. Malformed JSON yields a *DocumentParseError; unreadable
// field values are left absent. A document without line items gives an empty LineItems slice.
func Parse(data []byte, id string) (*invoice.Invoice, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &DocumentParseError{ID: id, Err: err}
	}

	inv := &invoice.Invoice{
		ID:        id,
		LineItems: []invoice.LineItem{},
	}

	entities := doc.entities()
	for _, e := range entities {
		applyHeader(inv, e)
	}
	for _, e := range entities {
		if e.Type != lineItemType {
			continue
		}
		if li, ok := parseLineItem(e); ok {
			inv.LineItems = append(inv.LineItems, li)
		}
	}

	return inv, nil
}

type headerField int

const (
	fieldNone headerField = iota
	fieldAccountNumber
	fieldInvoiceNumber
	fieldInvoiceDate
	fieldVendorName
	fieldLocationCode
	fieldServiceAddress
	fieldTotalAmount
)

// headerFieldFor maps a lower-cased entity type to the one header field it feeds.
// The cases are checked in order, so "invoice_id" never reaches the date rule.
func headerFieldFor(t string) headerField {
	has := func(s string) bool { return strings.Contains(t, s) }
	switch {
	case has("account") && has("number"):
		return fieldAccountNumber
	case has("invoice") && (has("number") || has("id")):
		return fieldInvoiceNumber
	case has("invoice") && has("date"):
		return fieldInvoiceDate
	case has("supplier") || has("vendor"):
		return fieldVendorName
	case has("location"):
		return fieldLocationCode
	case has("service") && has("address"):
		return fieldServiceAddress
	case t == "total_amount" || t == "amount_due" || t == "total_due":
		return fieldTotalAmount
	}
	return fieldNone
}

// applyHeader fills the field e maps to unless an earlier entity already did.
func applyHeader(inv *invoice.Invoice, e entity) {
	mention := strings.TrimSpace(e.MentionText)
	setOnce := func(dst **string) {
		if *dst == nil {
			*dst = invoice.StringPtr(mention)
		}
	}

	switch headerFieldFor(strings.ToLower(e.Type)) {
	case fieldAccountNumber:
		setOnce(&inv.AccountNumber)
	case fieldInvoiceNumber:
		setOnce(&inv.InvoiceNumber)
	case fieldInvoiceDate:
		setOnce(&inv.InvoiceDate)
	case fieldVendorName:
		setOnce(&inv.VendorName)
	case fieldLocationCode:
		setOnce(&inv.LocationCode)
	case fieldServiceAddress:
		setOnce(&inv.ServiceAddress)
	case fieldTotalAmount:
		if !inv.TotalAmount.Valid {
			inv.TotalAmount = parseMoney(e)
		}
	}
}

func parseLineItem(e entity) (invoice.LineItem, bool) {
	raw := strings.TrimSpace(e.MentionText)
	li := invoice.LineItem{RawText: raw}

	var desc string
	for _, p := range e.Properties {
		t := strings.ToLower(p.Type)
		switch {
		case strings.Contains(t, "description"):
			if desc == "" {
				desc = strings.TrimSpace(p.MentionText)
			}
		case t == "line_item/amount":
			if !li.Amount.Valid {
				li.Amount = parseMoney(p)
			}
		case strings.Contains(t, "quantity"):
			if li.Quantity == nil {
				li.Quantity = parseQuantity(p)
			}
		case strings.Contains(t, "unit_price"):
			if !li.UnitPrice.Valid {
				li.UnitPrice = parseMoney(p)
			}
		case strings.Contains(t, "date"):
			if li.ServiceDate == nil {
				li.ServiceDate = invoice.StringPtr(strings.TrimSpace(p.MentionText))
			}
		}
	}

	if desc == "" {
		desc = CleanDescription(raw)
	}
	li.Description = invoice.NormalizeText(desc)

	if li.Description == "" && !li.Amount.Valid {
		return li, false
	}

	li.Equipment = classifyFirst(classify.Equipment, li.Description, raw)
	li.Material = classifyFirst(classify.Material, li.Description, raw)
	return li, true
}

func classifyFirst(fn func(string) (string, bool), texts ...string) *string {
	for _, t := range texts {
		if label, ok := fn(t); ok {
			return &label
		}
	}
	return nil
}

// parseMoney prefers the typed money value and falls back to the mention text with
// everything but digits, dots and minus signs removed.
func parseMoney(e entity) decimal.NullDecimal {
	if nv := e.NormalizedValue; nv != nil && nv.MoneyValue != nil {
		units, uok := rawInt(nv.MoneyValue.Units)
		nanos, nok := rawInt(nv.MoneyValue.Nanos)
		if uok && nok {
			return decimal.NewNullDecimal(decimal.New(units, 0).Add(decimal.New(nanos, -9)))
		}
	}
	return ParseMoneyText(e.MentionText)
}

// ParseMoneyText strips non-numeric characters and parses the rest. Empty or malformed
// text gives an invalid NullDecimal.
func ParseMoneyText(s string) decimal.NullDecimal {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func parseQuantity(e entity) *float64 {
	if e.NormalizedValue != nil {
		if f, ok := rawFloat(e.NormalizedValue.FloatValue); ok {
			return &f
		}
	}
	s := strings.TrimSpace(strings.ReplaceAll(e.MentionText, ",", ""))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// CleanDescription derives a description from a raw line mention: dates, currency amounts,
// decimals and a trailing bare number are removed and whitespace is collapsed.
func CleanDescription(text string) string {
	if text == "" {
		return ""
	}
	text = datePattern.ReplaceAllString(text, "")
	text = currencyPattern.ReplaceAllString(text, "")
	text = decimalPattern.ReplaceAllString(text, "")
	text = trailingNumber.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, " -")
}
