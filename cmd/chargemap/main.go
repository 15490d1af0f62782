package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/charge-mapping/internal/config"
	"github.com/dvloznov/charge-mapping/internal/gcsfetch"
	infraBQ "github.com/dvloznov/charge-mapping/internal/infra/bigquery"
	"github.com/dvloznov/charge-mapping/internal/logger"
	"github.com/dvloznov/charge-mapping/internal/pipeline"
	"github.com/dvloznov/charge-mapping/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	switch cmd {
	case "download":
		runDownload(ctx, log, cfg)
	case "extract":
		runExtract(ctx, log, cfg)
	case "join":
		runJoin(ctx, log, cfg)
	case "run":
		runAll(ctx, log, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Charge Mapping CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  chargemap <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  download  Download extraction JSONs from GCS into vendor folders")
	fmt.Println("  extract   Extract invoice line items from a folder of JSONs")
	fmt.Println("  join      Link invoice line items to billing charges")
	fmt.Println("  run       Extract a folder and join the result in one pass")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nSettings are read from CHARGEMAP_* environment variables (and .env); flags override them.")
	fmt.Println("Run 'chargemap <command> -h' for more information on a command.")
}

func runDownload(ctx context.Context, log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	csvPath := fs.String("csv", "vendor_md5s.csv", "CSV with vendor_name and invoice_md5 columns")
	outDir := fs.String("out", "vendor_jsons", "Output directory")
	fs.StringVar(&cfg.GCP.Bucket, "bucket", cfg.GCP.Bucket, "GCS bucket holding the extraction JSONs")
	fs.IntVar(&cfg.Download.Workers, "workers", cfg.Download.Workers, "Parallel downloads")
	fs.IntVar(&cfg.Download.MaxRetries, "retries", cfg.Download.MaxRetries, "Retries per document on errors")
	fs.Parse(os.Args[2:])
	validate(log, cfg)

	reqs, err := gcsfetch.ReadRequests(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read requests")
	}

	store, err := gcsfetch.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer store.Close()

	f := gcsfetch.New(store, gcsfetch.Options{
		Bucket:     cfg.GCP.Bucket,
		OutDir:     *outDir,
		Workers:    cfg.Download.Workers,
		MaxRetries: cfg.Download.MaxRetries,
	})
	stats, err := f.Fetch(ctx, reqs)
	if err != nil {
		log.Fatal().Err(err).Msg("Download failed")
	}

	fmt.Printf("Downloaded %d, skipped %d, not found %d, errors %d\n",
		stats.Downloaded, stats.Skipped, stats.NotFound, stats.Errors)
}

func runExtract(ctx context.Context, log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	dir := fs.String("dir", "", "Folder of extraction JSONs (searched recursively)")
	vendor := fs.String("vendor", "", "Only keep documents whose vendor contains this text")
	fs.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "Output directory")
	fs.BoolVar(&cfg.Output.XLSX, "xlsx", cfg.Output.XLSX, "Also write an Excel workbook")
	fs.Parse(os.Args[2:])

	if *dir == "" {
		log.Fatal().Msg("Error: --dir is required")
	}
	validate(log, cfg)

	state := &pipeline.PipelineState{JSONDir: *dir, VendorFilter: *vendor}
	p := pipeline.NewExtractionPipeline(cfg, report.ExtractionPrefix(*vendor), time.Now())
	if err := p.Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	fmt.Printf("Extracted %d line items from %d documents (%d errors)\n",
		state.Scan.LineItemCount(), len(state.Scan.Invoices), len(state.Scan.Errors))
	printFiles(state.Files)
}

// joinFlags registers the matching and output overrides shared by join and run.
type joinFlags struct {
	billing   *string
	bqBilling *bool
	publish   *bool
}

func addJoinFlags(fs *flag.FlagSet, cfg *config.Config) *joinFlags {
	jf := &joinFlags{
		billing:   fs.String("billing", "billing_charges.csv", "Billing charges CSV"),
		bqBilling: fs.Bool("billing-bq", false, "Read billing charges from BigQuery instead of a CSV"),
		publish:   fs.Bool("publish", false, "Insert joined records into the BigQuery joined table"),
	}
	fs.StringVar(&cfg.Match.JoinKey, "key", cfg.Match.JoinKey, "Join key: auto, invoice_number or md5")
	fs.IntVar(&cfg.Match.AcceptThreshold, "threshold", cfg.Match.AcceptThreshold, "Minimum score to accept a match")
	fs.StringVar(&cfg.Match.TieBreak, "tie-break", cfg.Match.TieBreak, "Tie-break policy: first or ranked")
	fs.BoolVar(&cfg.Match.Exclusive, "exclusive", cfg.Match.Exclusive, "Let each billing charge back at most one line")
	fs.IntVar(&cfg.Match.Workers, "workers", cfg.Match.Workers, "Join-key groups matched in parallel")
	fs.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "Output directory")
	fs.StringVar(&cfg.Output.Prefix, "prefix", cfg.Output.Prefix, "Output file prefix")
	fs.BoolVar(&cfg.Output.XLSX, "xlsx", cfg.Output.XLSX, "Also write an Excel workbook")
	fs.IntVar(&cfg.Output.TopN, "top", cfg.Output.TopN, "Description pairs to log")
	return jf
}

// deps opens the BigQuery repository when either BigQuery option is set.
func (jf *joinFlags) deps(ctx context.Context, log zerolog.Logger, cfg *config.Config) (pipeline.Deps, func()) {
	if !*jf.bqBilling && !*jf.publish {
		return pipeline.Deps{}, func() {}
	}
	if *jf.publish && cfg.BigQuery.JoinedTable == "" {
		log.Fatal().Msg("Error: --publish needs CHARGEMAP_BIGQUERY_JOINED_TABLE")
	}

	repo, err := infraBQ.NewRepository(ctx, cfg.GCP.ProjectID, cfg.BigQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}

	var deps pipeline.Deps
	if *jf.bqBilling {
		deps.Source = repo
	}
	if *jf.publish {
		deps.Publisher = repo
	}
	return deps, func() { repo.Close() }
}

func runJoin(ctx context.Context, log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	invoices := fs.String("invoices", "", "Invoice line items CSV (the extraction detail output)")
	jf := addJoinFlags(fs, cfg)
	fs.Parse(os.Args[2:])

	if *invoices == "" {
		log.Fatal().Msg("Error: --invoices is required")
	}
	validate(log, cfg)

	deps, closeDeps := jf.deps(ctx, log, cfg)
	defer closeDeps()

	state := &pipeline.PipelineState{InvoicePath: *invoices, BillingPath: *jf.billing}
	if err := pipeline.NewJoinPipeline(cfg, deps, time.Now()).Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Join failed")
	}

	printJoin(state)
}

func runAll(ctx context.Context, log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", "", "Folder of extraction JSONs (searched recursively)")
	vendor := fs.String("vendor", "", "Only keep documents whose vendor contains this text")
	jf := addJoinFlags(fs, cfg)
	fs.Parse(os.Args[2:])

	if *dir == "" {
		log.Fatal().Msg("Error: --dir is required")
	}
	validate(log, cfg)

	deps, closeDeps := jf.deps(ctx, log, cfg)
	defer closeDeps()

	state := &pipeline.PipelineState{JSONDir: *dir, VendorFilter: *vendor, BillingPath: *jf.billing}
	p := pipeline.NewFullPipeline(cfg, deps, report.ExtractionPrefix(*vendor), time.Now())
	if err := p.Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	printJoin(state)
}

func validate(log zerolog.Logger, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}
}

func printJoin(state *pipeline.PipelineState) {
	s := state.Summary
	fmt.Printf("\nRun %s: %d of %d invoice lines matched (%d exact amount matches)\n",
		state.Result.RunID, s.Matched, s.Records, s.ExactAmountMatches)
	fmt.Printf("Common keys: %d, unique vendors: %d, unique keys: %d\n",
		state.Corpus.CommonKeys(), s.UniqueVendors, s.UniqueKeys)
	printFiles(state.Files)
}

func printFiles(files []string) {
	fmt.Println("\nOutputs:")
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
}
