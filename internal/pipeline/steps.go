package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/extract"
	"github.com/dvloznov/charge-mapping/internal/logger"
	"github.com/dvloznov/charge-mapping/internal/matcher"
	"github.com/dvloznov/charge-mapping/internal/report"
)

// PipelineStep represents a single step of a run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Inputs. JSONDir is scanned when set; otherwise InvoicePath supplies the line items.
	JSONDir      string
	VendorFilter string
	InvoicePath  string
	BillingPath  string

	Scan    *extract.ScanResult
	Corpus  *corpus.Corpus
	Result  *matcher.Result
	Summary report.Summary
	Pairs   []report.PairCount

	// Files lists every report written, in write order.
	Files []string
}

// ScanStep parses every document under JSONDir.
type ScanStep struct{}

func (s *ScanStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := extract.ScanDir(ctx, state.JSONDir, extract.ScanOptions{VendorFilter: state.VendorFilter})
	if err != nil {
		return err
	}
	state.Scan = res
	return nil
}

// WriteExtractionStep writes the detail, summary and errors outputs of the scan.
type WriteExtractionStep struct {
	Writer *report.Writer
	Prefix string
}

func (s *WriteExtractionStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Scan == nil {
		return fmt.Errorf("WriteExtractionStep: no scan result")
	}
	paths, err := s.Writer.WriteExtraction(ctx, s.Prefix, state.Scan)
	state.Files = append(state.Files, paths...)
	return err
}

// LoadCorpusStep builds the corpus from the scan result or the invoice CSV on one side,
// and from Source or the billing CSV on the other.
type LoadCorpusStep struct {
	Mode string
	// Source replaces the billing CSV when set.
	Source corpus.ChargeSource
}

func (s *LoadCorpusStep) Execute(ctx context.Context, state *PipelineState) error {
	invoices, err := s.invoiceTable(state)
	if err != nil {
		return err
	}

	if s.Source != nil {
		c, err := corpus.LoadFromSource(ctx, invoices, s.Source, s.Mode)
		if err != nil {
			return err
		}
		state.Corpus = c
		return nil
	}

	billing, err := corpus.ReadCSVFile(state.BillingPath, corpus.SourceBilling)
	if err != nil {
		return fmt.Errorf("LoadCorpusStep: %w", err)
	}
	c, err := corpus.Load(ctx, invoices, billing, s.Mode)
	if err != nil {
		return err
	}
	state.Corpus = c
	return nil
}

func (s *LoadCorpusStep) invoiceTable(state *PipelineState) (*corpus.Table, error) {
	if state.Scan != nil {
		rows := extract.DetailRows(state.Scan.Invoices)
		return corpus.NewTable(corpus.SourceInvoice, extract.DetailHeader, extract.Records(rows)), nil
	}
	t, err := corpus.ReadCSVFile(state.InvoicePath, corpus.SourceInvoice)
	if err != nil {
		return nil, fmt.Errorf("LoadCorpusStep: %w", err)
	}
	return t, nil
}

// MatchStep links every line of the corpus to its best billing charge.
type MatchStep struct {
	Options matcher.Options
}

func (s *MatchStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := matcher.New(s.Options).Run(ctx, state.Corpus)
	if err != nil {
		return err
	}
	state.Result = res
	return nil
}

// AggregateStep computes the summary and description-pair frequencies and logs the top pairs.
type AggregateStep struct {
	ExactTolerance decimal.Decimal
	TopN           int
}

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = report.Summarize(state.Result.Records, s.ExactTolerance)
	state.Pairs = report.PairFrequency(state.Result.Records)
	report.LogSummary(ctx, state.Summary, state.Pairs, s.TopN)
	return nil
}

// WriteReportsStep writes the joined, unmatched, summary and vendor tables.
type WriteReportsStep struct {
	Writer *report.Writer
	Prefix string
}

func (s *WriteReportsStep) Execute(ctx context.Context, state *PipelineState) error {
	paths, err := s.Writer.WriteJoin(ctx, s.Prefix, state.Result)
	state.Files = append(state.Files, paths...)
	return err
}

// PublishStep hands the result to a Publisher.
type PublishStep struct {
	Publisher Publisher
}

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Publisher.PublishJoined(ctx, state.Result); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("run_id", state.Result.RunID).Msg("Result published")
	return nil
}
