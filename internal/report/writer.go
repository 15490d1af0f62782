package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/charge-mapping/internal/extract"
	"github.com/dvloznov/charge-mapping/internal/invoice"
	"github.com/dvloznov/charge-mapping/internal/logger"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

const dateLayout = "2006-01-02"

// Default output prefixes.
const (
	JoinPrefix    = "invoice_billing"
	ExtractPrefix = "invoice_extract"
)

var unsafeChars = regexp.MustCompile(`[^\w\-]`)

// ExtractionPrefix names extraction outputs after the vendor filter when there is one.
func ExtractionPrefix(vendorFilter string) string {
	if vendorFilter == "" {
		return ExtractPrefix
	}
	safe := []rune(unsafeChars.ReplaceAllString(vendorFilter, "_"))
	if len(safe) > 30 {
		safe = safe[:30]
	}
	return "invoice_" + string(safe)
}

// FileName is <prefix>_<kind>_<YYYY-MM-DD>.<ext>.
func FileName(prefix, kind string, date time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, kind, date.Format(dateLayout), ext)
}

// WriteCSV writes the header and rows of t.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("WriteCSV: %s header: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("WriteCSV: %s rows: %w", t.Name, err)
	}
	return nil
}

// WriteCSVFile creates path and writes t to it.
func WriteCSVFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteCSVFile: %w", err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX saves the tables as sheets of one workbook, in argument order.
func WriteXLSX(path string, tables ...Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Name); err != nil {
				return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("WriteXLSX: new sheet %s: %w", t.Name, err)
		}

		if err := setRow(f, t.Name, 1, t.Header); err != nil {
			return err
		}
		for r, row := range t.Rows {
			if err := setRow(f, t.Name, r+2, row); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteXLSX: save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("WriteXLSX: %s row %d: %w", sheet, row, err)
	}
	return nil
}

// Writer places dated report files in Dir.
type Writer struct {
	Dir  string
	XLSX bool
	Date time.Time
}

func (w *Writer) path(prefix, kind, ext string) string {
	return filepath.Join(w.Dir, FileName(prefix, kind, w.Date, ext))
}

func (w *Writer) writeAll(ctx context.Context, prefix string, tables []Table) ([]string, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("Writer: create %s: %w", w.Dir, err)
	}

	var paths []string
	for _, t := range tables {
		p := w.path(prefix, t.Name, "csv")
		if err := WriteCSVFile(p, t); err != nil {
			return paths, err
		}
		log.Info().Str("path", p).Int("rows", len(t.Rows)).Msg("Wrote report")
		paths = append(paths, p)
	}

	if w.XLSX {
		p := filepath.Join(w.Dir, fmt.Sprintf("%s_%s.xlsx", prefix, w.Date.Format(dateLayout)))
		if err := WriteXLSX(p, tables...); err != nil {
			return paths, err
		}
		log.Info().Str("path", p).Msg("Wrote workbook")
		paths = append(paths, p)
	}
	return paths, nil
}

// JoinTables builds the joined, unmatched, summary and vendor tables for a match result.
func JoinTables(res *matcher.Result) []Table {
	return []Table{
		JoinedTable(res.Records),
		UnmatchedTable(res.Records),
		PairTable(PairFrequency(res.Records)),
		VendorTable(VendorTotals(res.Records)),
	}
}

// WriteJoin writes the join reports and returns the created paths.
func (w *Writer) WriteJoin(ctx context.Context, prefix string, res *matcher.Result) ([]string, error) {
	return w.writeAll(ctx, prefix, JoinTables(res))
}

// WriteExtraction writes the detail and summary tables of a scan, plus an errors file
// listing one "path: cause" line per failed document when there were failures.
func (w *Writer) WriteExtraction(ctx context.Context, prefix string, scan *extract.ScanResult) ([]string, error) {
	var invoices []*invoice.Invoice
	if scan != nil {
		invoices = scan.Invoices
	}
	tables := []Table{
		DetailTable(extract.DetailRows(invoices)),
		ExtractionTable(ExtractionSummary(invoices)),
	}
	paths, err := w.writeAll(ctx, prefix, tables)
	if err != nil {
		return paths, err
	}

	if scan != nil && len(scan.Errors) > 0 {
		p := w.path(prefix, "errors", "txt")
		if err := writeErrors(p, scan.Errors); err != nil {
			return paths, err
		}
		log := logger.FromContext(ctx)
		log.Warn().Str("path", p).Int("errors", len(scan.Errors)).Msg("Wrote errors")
		paths = append(paths, p)
	}
	return paths, nil
}

func writeErrors(path string, errs []extract.FileError) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writeErrors: %w", err)
	}
	for _, e := range errs {
		if _, err := fmt.Fprintln(f, e.String()); err != nil {
			f.Close()
			return fmt.Errorf("writeErrors: %w", err)
		}
	}
	return f.Close()
}

// LogSummary logs the headline counts and the top n description pairs.
func LogSummary(ctx context.Context, s Summary, pairs []PairCount, n int) {
	log := logger.FromContext(ctx)
	log.Info().
		Int("records", s.Records).
		Int("matched", s.Matched).
		Int("unmatched", s.Records-s.Matched).
		Int("key_not_found", s.ByStatus[matcher.StatusKeyNotFound]).
		Int("key_missing", s.ByStatus[matcher.StatusKeyMissing]).
		Int("claimed", s.ByStatus[matcher.StatusClaimed]).
		Int("unique_vendors", s.UniqueVendors).
		Int("unique_keys", s.UniqueKeys).
		Int("exact_amount_matches", s.ExactAmountMatches).
		Msg("Join summary")

	for _, p := range Top(pairs, n) {
		log.Info().
			Int("count", p.Count).
			Str("invoice_description", p.InvoiceDescription).
			Str("billing_description", p.BillingDescription).
			Msg("Mapping")
	}
}
