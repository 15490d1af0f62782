package extract

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/charge-mapping/internal/invoice"
)

func assertAmount(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected amount %s, got none", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "want %s, got %s", want, got.Decimal)
}

const sampleDocument = `{
  "entities": [
    {"type": "supplier_name", "mentionText": " Lawrence Waste Services "},
    {"type": "vendor_address", "mentionText": "PO Box 1"},
    {"type": "account_number", "mentionText": "4471-22"},
    {"type": "invoice_id", "mentionText": "INV-9001"},
    {"type": "invoice_date", "mentionText": "03/01/2024"},
    {"type": "location_code", "mentionText": "S-12"},
    {"type": "service_address", "mentionText": "1 Main St"},
    {"type": "total_amount", "mentionText": "$1,031.00",
     "normalizedValue": {"moneyValue": {"currencyCode": "USD", "units": "1031"}}},
    {"type": "line_item", "mentionText": "30 YD COMPACTOR RENTAL 811.00",
     "properties": [
       {"type": "line_item/description", "mentionText": "30 yard   compactor rental"},
       {"type": "line_item/amount", "mentionText": "$811.00",
        "normalizedValue": {"moneyValue": {"units": "811", "nanos": 500000000}}},
       {"type": "line_item/quantity", "mentionText": "1", "normalizedValue": {"floatValue": 1}},
       {"type": "line_item/unit_price", "mentionText": "$1,200.50"},
       {"type": "line_item/service_date", "mentionText": "02/01/2024"}
     ]},
    {"type": "line_item", "mentionText": "02/15/2024 OCC RECYCLING PICKUP $220.00 2",
     "properties": [
       {"type": "line_item/amount", "mentionText": "220.00"}
     ]},
    {"type": "line_item", "mentionText": "", "properties": [
       {"type": "line_item/quantity", "mentionText": "3"}
    ]}
  ]
}`

func TestParse_Headers(t *testing.T) {
	inv, err := Parse([]byte(sampleDocument), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", inv.ID)
	assert.Equal(t, "Lawrence Waste Services", invoice.Deref(inv.VendorName))
	assert.Equal(t, "4471-22", invoice.Deref(inv.AccountNumber))
	assert.Equal(t, "INV-9001", invoice.Deref(inv.InvoiceNumber))
	assert.Equal(t, "03/01/2024", invoice.Deref(inv.InvoiceDate))
	assert.Equal(t, "S-12", invoice.Deref(inv.LocationCode))
	assert.Equal(t, "1 Main St", invoice.Deref(inv.ServiceAddress))
	assertAmount(t, "1031", inv.TotalAmount)
}

func TestParse_LineItems(t *testing.T) {
	inv, err := Parse([]byte(sampleDocument), "abc123")
	require.NoError(t, err)
	require.Len(t, inv.LineItems, 2)

	first := inv.LineItems[0]
	assert.Equal(t, "30 YARD COMPACTOR RENTAL", first.Description)
	assert.Equal(t, "30 YD COMPACTOR RENTAL 811.00", first.RawText)
	assertAmount(t, "811.5", first.Amount)
	assertAmount(t, "1200.50", first.UnitPrice)
	require.NotNil(t, first.Quantity)
	assert.Equal(t, 1.0, *first.Quantity)
	assert.Equal(t, "02/01/2024", invoice.Deref(first.ServiceDate))
	assert.Equal(t, "30 Yard Compactor", invoice.Deref(first.Equipment))
	assert.Nil(t, first.Material)

	second := inv.LineItems[1]
	assert.Equal(t, "OCC RECYCLING PICKUP", second.Description)
	assertAmount(t, "220", second.Amount)
	assert.Equal(t, "OCC", invoice.Deref(second.Material))
	assert.Nil(t, second.Equipment)
	assert.Nil(t, second.Quantity)
}

func TestParse_FirstHeaderMatchWins(t *testing.T) {
	doc := `{"entities": [
		{"type": "invoice_date", "mentionText": "01/01/2024"},
		{"type": "invoice_date", "mentionText": "02/02/2024"},
		{"type": "amount_due", "mentionText": "n/a"},
		{"type": "total_due", "mentionText": "12.34"}
	]}`

	inv, err := Parse([]byte(doc), "x")
	require.NoError(t, err)
	assert.Equal(t, "01/01/2024", invoice.Deref(inv.InvoiceDate))
	assertAmount(t, "12.34", inv.TotalAmount)
}

func TestParse_NestedDocument(t *testing.T) {
	doc := `{"document": {"entities": [{"type": "supplier_name", "mentionText": "Acme"}]}}`

	inv, err := Parse([]byte(doc), "x")
	require.NoError(t, err)
	assert.Equal(t, "Acme", invoice.Deref(inv.VendorName))
}

func TestParse_NoLineItems(t *testing.T) {
	for _, doc := range []string{`{}`, `{"entities": []}`, `{"entities": [{"type": "supplier_name", "mentionText": "Acme"}]}`} {
		inv, err := Parse([]byte(doc), "x")
		require.NoError(t, err)
		assert.NotNil(t, inv.LineItems)
		assert.Empty(t, inv.LineItems)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"entities": [`), "broken")
	require.Error(t, err)

	var perr *DocumentParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "broken", perr.ID)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestParse_BadMoneyDegradesToAbsent(t *testing.T) {
	doc := `{"entities": [{"type": "line_item", "mentionText": "FUEL SURCHARGE", "properties": [
		{"type": "line_item/amount", "mentionText": "TBD", "normalizedValue": {"moneyValue": {"units": "ten"}}},
		{"type": "line_item/quantity", "mentionText": "many"}
	]}]}`

	inv, err := Parse([]byte(doc), "x")
	require.NoError(t, err)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "FUEL SURCHARGE", inv.LineItems[0].Description)
	assert.False(t, inv.LineItems[0].Amount.Valid)
	assert.Nil(t, inv.LineItems[0].Quantity)
}

func TestParse_AmountOnlyLineIsKept(t *testing.T) {
	doc := `{"entities": [{"type": "line_item", "mentionText": "12.50", "properties": [
		{"type": "line_item/amount", "mentionText": "12.50"}
	]}]}`

	inv, err := Parse([]byte(doc), "x")
	require.NoError(t, err)
	require.Len(t, inv.LineItems, 1)
	assert.Empty(t, inv.LineItems[0].Description)
	assertAmount(t, "12.5", inv.LineItems[0].Amount)
}

func TestHeaderFieldFor(t *testing.T) {
	tests := []struct {
		typ  string
		want headerField
	}{
		{"account_number", fieldAccountNumber},
		{"invoice_number", fieldInvoiceNumber},
		{"invoice_id", fieldInvoiceNumber},
		{"invoice_date", fieldInvoiceDate},
		{"supplier_name", fieldVendorName},
		{"vendor_address", fieldVendorName},
		{"location_code", fieldLocationCode},
		{"service_address", fieldServiceAddress},
		{"total_amount", fieldTotalAmount},
		{"net_amount", fieldNone},
		{"due_date", fieldNone},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, headerFieldFor(tt.typ))
		})
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"02/15/2024 OCC RECYCLING PICKUP $220.00 2", "OCC RECYCLING PICKUP"},
		{"Fuel surcharge 1.5 - 12.00", "Fuel surcharge"},
		{"  extra   lift  ", "extra lift"},
		{"- Container rental -", "Container rental"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.in))
		})
	}
}

func TestParseMoneyText(t *testing.T) {
	assertAmount(t, "1234.56", ParseMoneyText("$1,234.56"))
	assertAmount(t, "-5", ParseMoneyText("(-5.00)"))
	assert.False(t, ParseMoneyText("").Valid)
	assert.False(t, ParseMoneyText("N/A").Valid)
	assert.False(t, ParseMoneyText("1.2.3").Valid)
}

func TestDetailRows(t *testing.T) {
	inv, err := Parse([]byte(sampleDocument), "abc123")
	require.NoError(t, err)

	rows := DetailRows([]*invoice.Invoice{inv})
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Record(), len(DetailHeader))
	assert.Equal(t, "abc123", rows[0].JSONMD5)
	assert.Equal(t, "1", rows[0].LineQuantity)
	assert.Equal(t, "811.5", rows[0].LineAmount)
	assert.Equal(t, "", rows[1].LineQuantity)
	assert.Equal(t, "OCC", rows[1].ParsedMaterial)

	records := Records(rows)
	require.Len(t, records, 2)
	assert.Equal(t, rows[1].Record(), records[1])
}
