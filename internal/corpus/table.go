// Package corpus loads the invoice line-item and billing-charge record sets and partitions
// both by a shared join key.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/charge-mapping/internal/encoding"
)

// Source names used in errors and logs.
const (
	SourceInvoice = "invoice"
	SourceBilling = "billing"
)

// Table is a CSV file held in memory with normalised (lower-cased, trimmed) header names.
type Table struct {
	Source  string
	columns []string
	index   map[string]int
	rows    [][]string
}

// ReadCSV reads a header row and all data rows from r, decoding it to UTF-8 first.
func ReadCSV(r io.Reader, source string) (*Table, error) {
	ur, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %s: %w", source, err)
	}

	cr := csv.NewReader(ur)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadCSV: %s: file has no header row", source)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %s: read header: %w", source, err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: %s: %w", source, err)
		}
		rows = append(rows, rec)
	}

	return NewTable(source, header, rows), nil
}

// NewTable builds a table from an in-memory header and rows. The first of duplicate
// header names wins.
func NewTable(source string, header []string, rows [][]string) *Table {
	t := &Table{
		Source: source,
		index:  make(map[string]int, len(header)),
		rows:   rows,
	}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		t.columns = append(t.columns, name)
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path, source string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadCSVFile: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, source)
}

// Columns returns the normalised header names in file order.
func (t *Table) Columns() []string {
	return t.columns
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Has reports whether the header contains name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the trimmed cell of column name in data row i.
func (t *Table) Value(i int, name string) string {
	return t.cell(i, name)
}

// cell returns the trimmed value of column name in row i, or "" when the column or cell is absent.
func (t *Table) cell(i int, name string) string {
	idx, ok := t.index[name]
	if !ok {
		return ""
	}
	row := t.rows[i]
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// first returns the first non-empty cell among the alias columns of row i.
func (t *Table) first(i int, aliases []string) string {
	for _, name := range aliases {
		if v := t.cell(i, name); v != "" {
			return v
		}
	}
	return ""
}
