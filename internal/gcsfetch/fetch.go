package gcsfetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/jobs"
	"github.com/dvloznov/charge-mapping/internal/jobs/inmemory"
	"github.com/dvloznov/charge-mapping/internal/logger"
)

const (
	colVendor = "vendor_name"
	colMD5    = "invoice_md5"

	maxFolderLen  = 50
	unknownVendor = "Unknown"
)

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Request is one document to fetch.
type Request struct {
	Vendor string
	MD5    string
}

// ReadRequests loads vendor_name/invoice_md5 pairs from a CSV export. Rows missing either
// value are dropped; a file missing either column is rejected.
func ReadRequests(path string) ([]Request, error) {
	t, err := corpus.ReadCSVFile(path, "vendor_md5s")
	if err != nil {
		return nil, fmt.Errorf("ReadRequests: %w", err)
	}

	var missing []string
	for _, col := range []string{colVendor, colMD5} {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &corpus.MissingColumnsError{Source: t.Source, Columns: missing, Found: t.Columns()}
	}

	var reqs []Request
	for i := 0; i < t.Len(); i++ {
		r := Request{Vendor: t.Value(i, colVendor), MD5: t.Value(i, colMD5)}
		if r.Vendor == "" || r.MD5 == "" {
			continue
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// SanitizeFolderName makes a vendor name safe as a directory name.
func SanitizeFolderName(name string) string {
	name = forbiddenChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	if r := []rune(name); len(r) > maxFolderLen {
		name = string(r[:maxFolderLen])
	}
	if name == "" {
		return unknownVendor
	}
	return name
}

// ObjectNames lists the object names a document may be stored under, in lookup order.
func ObjectNames(md5 string) []string {
	return []string{md5 + ".json", md5}
}

type Options struct {
	Bucket     string
	OutDir     string
	Workers    int
	MaxRetries int
	// Backoff is the retry delay unit; zero keeps the queue default.
	Backoff time.Duration
}

// VendorStats counts job outcomes for one vendor.
type VendorStats struct {
	Vendor     string
	Folder     string
	Downloaded int
	Skipped    int
	NotFound   int
	Errors     int
}

// Total is the number of requests for the vendor.
func (v VendorStats) Total() int {
	return v.Downloaded + v.Skipped + v.NotFound + v.Errors
}

// Stats are the batch totals; Vendors follow the order vendors first appear in the requests.
type Stats struct {
	Downloaded int
	Skipped    int
	NotFound   int
	Errors     int
	Vendors    []VendorStats
}

type Fetcher struct {
	store ObjectStore
	opts  Options
}

func New(store ObjectStore, opts Options) *Fetcher {
	return &Fetcher{store: store, opts: opts}
}

// Fetch downloads every request on a worker pool. A failure on one document is counted
// in Stats and does not stop the batch.
func (f *Fetcher) Fetch(ctx context.Context, reqs []Request) (*Stats, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(f.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("Fetch: create %s: %w", f.opts.OutDir, err)
	}

	jobStore := inmemory.NewStore()
	q := inmemory.NewQueue(f.opts.Workers, f.opts.Workers*2, jobStore)
	if f.opts.Backoff > 0 {
		q.Backoff = f.opts.Backoff
	}

	log.Info().
		Str("bucket", f.opts.Bucket).
		Int("documents", len(reqs)).
		Int("workers", f.opts.Workers).
		Msg("Downloading documents")

	if err := q.Start(ctx, f.handle); err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	var publishErr error
	for _, r := range reqs {
		job := &jobs.DownloadJob{Vendor: r.Vendor, MD5: r.MD5, MaxRetries: f.opts.MaxRetries}
		if err := q.Publish(ctx, job); err != nil {
			publishErr = err
			break
		}
	}
	_ = q.Close()
	q.Wait()

	all, err := jobStore.ListJobs(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("Fetch: list jobs: %w", err)
	}
	stats := collectStats(all)

	for _, v := range stats.Vendors {
		log.Info().
			Str("vendor", v.Vendor).
			Str("folder", v.Folder).
			Int("downloaded", v.Downloaded).
			Int("total", v.Total()).
			Msg("Vendor done")
	}
	log.Info().
		Int("downloaded", stats.Downloaded).
		Int("skipped", stats.Skipped).
		Int("not_found", stats.NotFound).
		Int("errors", stats.Errors).
		Str("output", f.opts.OutDir).
		Msg("Download complete")

	if publishErr != nil {
		return stats, fmt.Errorf("Fetch: %w", publishErr)
	}
	return stats, nil
}

// handle fetches one document. Existing local files are kept.
func (f *Fetcher) handle(ctx context.Context, job *jobs.DownloadJob) error {
	dir := filepath.Join(f.opts.OutDir, SanitizeFolderName(job.Vendor))
	local := filepath.Join(dir, job.MD5+".json")
	job.Path = local

	if _, err := os.Stat(local); err == nil {
		job.Outcome = jobs.OutcomeSkipped
		return nil
	}

	for _, name := range ObjectNames(job.MD5) {
		ok, err := f.store.Exists(ctx, f.opts.Bucket, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		data, err := f.store.Download(ctx, f.opts.Bucket, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", local, err)
		}

		job.Object = name
		job.Outcome = jobs.OutcomeDownloaded
		return nil
	}

	job.Outcome = jobs.OutcomeNotFound
	return nil
}

func collectStats(all []*jobs.DownloadJob) *Stats {
	stats := &Stats{}
	idx := make(map[string]int)

	for _, j := range all {
		i, ok := idx[j.Vendor]
		if !ok {
			i = len(stats.Vendors)
			idx[j.Vendor] = i
			stats.Vendors = append(stats.Vendors, VendorStats{Vendor: j.Vendor, Folder: SanitizeFolderName(j.Vendor)})
		}
		v := &stats.Vendors[i]

		switch {
		case j.Status != jobs.JobStatusCompleted:
			v.Errors++
			stats.Errors++
		case j.Outcome == jobs.OutcomeDownloaded:
			v.Downloaded++
			stats.Downloaded++
		case j.Outcome == jobs.OutcomeSkipped:
			v.Skipped++
			stats.Skipped++
		default:
			v.NotFound++
			stats.NotFound++
		}
	}
	return stats
}
