package extract

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/charge-mapping/internal/invoice"
	"github.com/dvloznov/charge-mapping/internal/logger"
)

const progressEvery = 100

// ScanOptions narrows a folder scan.
type ScanOptions struct {
	// VendorFilter keeps invoices whose vendor name contains it, case-insensitively.
	VendorFilter string
}

// FileError is a document that failed to read or parse.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) String() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ScanResult collects the invoices of a folder scan and the per-file failures.
type ScanResult struct {
	Files    int
	Invoices []*invoice.Invoice
	Errors   []FileError
}

// LineItemCount returns the number of line items across all invoices.
func (r *ScanResult) LineItemCount() int {
	n := 0
	for _, inv := range r.Invoices {
		n += len(inv.LineItems)
	}
	return n
}

// ScanDir parses every *.json file below root. A failing file is recorded in Errors and the
// scan moves on; only an unreadable root or a cancelled context stops it.
func ScanDir(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	log := logger.FromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ScanDir: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ScanDir: %s is not a directory", root)
	}

	paths, err := listJSON(root)
	if err != nil {
		return nil, fmt.Errorf("ScanDir: walk %s: %w", root, err)
	}
	log.Info().Str("root", root).Int("files", len(paths)).Msg("Found JSON files")

	filter := strings.ToLower(opts.VendorFilter)
	res := &ScanResult{Files: len(paths)}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if (i+1)%progressEvery == 0 {
			log.Info().Int("processed", i+1).Int("total", len(paths)).Msg("Scanning documents")
		}

		inv, err := ParseFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping document")
			res.Errors = append(res.Errors, FileError{Path: path, Err: err})
			continue
		}

		if filter != "" && !strings.Contains(strings.ToLower(invoice.Deref(inv.VendorName)), filter) {
			continue
		}
		res.Invoices = append(res.Invoices, inv)
	}

	log.Info().
		Int("invoices", len(res.Invoices)).
		Int("line_items", res.LineItemCount()).
		Int("errors", len(res.Errors)).
		Msg("Scan complete")

	return res, nil
}

// ParseFile reads and parses one document; its id is DocumentID of the path and content.
// Read failures are reported as *DocumentParseError like decode failures.
func ParseFile(path string) (*invoice.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentParseError{ID: DocumentID(path, nil), Err: err}
	}
	return Parse(data, DocumentID(path, data))
}

// DocumentID is the file stem, which the download step names after the invoice md5.
// A file without a stem falls back to the md5 of its content.
func DocumentID(path string, data []byte) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem != "" {
		return stem
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func listJSON(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
