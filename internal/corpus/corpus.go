package corpus

import (
	"context"
	"fmt"

	"github.com/dvloznov/charge-mapping/internal/logger"
)

// Group is the set of invoice lines sharing one join key, in file order.
type Group struct {
	Key   string
	Lines []LineRecord
}

// Corpus is both record sets partitioned by join key. Rows without a key are kept aside
// in MissingKey and never grouped.
type Corpus struct {
	Key string

	Groups  []Group
	Charges map[string][]BillingCharge

	MissingKey        []LineRecord
	ChargesMissingKey int

	LineCount   int
	ChargeCount int
}

// New groups lines and charges by their Key fields. Groups keep the order in which each key
// first appears; charges keep ledger order within a key.
func New(key string, lines []LineRecord, charges []BillingCharge) *Corpus {
	c := &Corpus{
		Key:         key,
		Charges:     make(map[string][]BillingCharge),
		LineCount:   len(lines),
		ChargeCount: len(charges),
	}

	pos := make(map[string]int)
	for _, l := range lines {
		if l.Key == "" {
			c.MissingKey = append(c.MissingKey, l)
			continue
		}
		i, ok := pos[l.Key]
		if !ok {
			i = len(c.Groups)
			pos[l.Key] = i
			c.Groups = append(c.Groups, Group{Key: l.Key})
		}
		c.Groups[i].Lines = append(c.Groups[i].Lines, l)
	}

	for _, ch := range charges {
		if ch.Key == "" {
			c.ChargesMissingKey++
			continue
		}
		c.Charges[ch.Key] = append(c.Charges[ch.Key], ch)
	}

	return c
}

// CommonKeys counts line groups that have at least one billing charge.
func (c *Corpus) CommonKeys() int {
	n := 0
	for _, g := range c.Groups {
		if len(c.Charges[g.Key]) > 0 {
			n++
		}
	}
	return n
}

// Load validates both tables, resolves the join key for mode and groups the records.
// Missing required columns are returned as *MissingColumnsError.
func Load(ctx context.Context, invoices, billing *Table, mode string) (*Corpus, error) {
	key, err := ResolveKey(mode, invoices.Columns(), billing.Columns())
	if err != nil {
		return nil, err
	}
	if err := RequireColumns(invoices.Source, InvoiceAliases, key, invoices.Columns()); err != nil {
		return nil, err
	}
	if err := RequireColumns(billing.Source, BillingAliases, key, billing.Columns()); err != nil {
		return nil, err
	}

	c := New(key, LineRecords(invoices, key), BillingCharges(billing, key))
	c.log(ctx)
	return c, nil
}

// ChargeSource supplies the billing charges whose key column holds one of values.
type ChargeSource interface {
	ChargesByKeys(ctx context.Context, key string, values []string) ([]BillingCharge, error)
}

// LoadFromSource validates the invoice table and fetches only the charges for its keys from src.
// In auto mode the source is taken to carry both identifiers.
func LoadFromSource(ctx context.Context, invoices *Table, src ChargeSource, mode string) (*Corpus, error) {
	sourceCols := []string{BillingAliases[FieldMD5][0], BillingAliases[FieldInvoiceNumber][0]}
	key, err := ResolveKey(mode, invoices.Columns(), sourceCols)
	if err != nil {
		return nil, err
	}
	if err := RequireColumns(invoices.Source, InvoiceAliases, key, invoices.Columns()); err != nil {
		return nil, err
	}

	lines := LineRecords(invoices, key)
	charges, err := src.ChargesByKeys(ctx, key, lineKeys(lines))
	if err != nil {
		return nil, fmt.Errorf("LoadFromSource: %w", err)
	}

	c := New(key, lines, charges)
	c.log(ctx)
	return c, nil
}

// lineKeys returns the distinct non-empty keys of lines in first-appearance order.
func lineKeys(lines []LineRecord) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, l := range lines {
		if l.Key == "" || seen[l.Key] {
			continue
		}
		seen[l.Key] = true
		keys = append(keys, l.Key)
	}
	return keys
}

// LoadFiles reads both CSV files and calls Load.
func LoadFiles(ctx context.Context, invoicePath, billingPath, mode string) (*Corpus, error) {
	inv, err := ReadCSVFile(invoicePath, SourceInvoice)
	if err != nil {
		return nil, fmt.Errorf("LoadFiles: %w", err)
	}
	bill, err := ReadCSVFile(billingPath, SourceBilling)
	if err != nil {
		return nil, fmt.Errorf("LoadFiles: %w", err)
	}
	return Load(ctx, inv, bill, mode)
}

func (c *Corpus) log(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("join_key", c.Key).
		Int("invoice_lines", c.LineCount).
		Int("billing_charges", c.ChargeCount).
		Int("invoice_keys", len(c.Groups)).
		Int("billing_keys", len(c.Charges)).
		Int("common_keys", c.CommonKeys()).
		Int("lines_missing_key", len(c.MissingKey)).
		Int("charges_missing_key", c.ChargesMissingKey).
		Msg("Corpus loaded")
}
