// Package pipeline wires extraction, corpus loading, matching and reporting into ordered runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/charge-mapping/internal/config"
	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/matcher"
	"github.com/dvloznov/charge-mapping/internal/report"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Deps are the optional BigQuery collaborators of a join run.
type Deps struct {
	Source    corpus.ChargeSource
	Publisher Publisher
}

// writer returns a report writer for cfg dated now.
func writer(cfg *config.Config, now time.Time) *report.Writer {
	return &report.Writer{Dir: cfg.Output.Dir, XLSX: cfg.Output.XLSX, Date: now}
}

// joinSteps are the load, match, aggregate, write and optional publish steps.
func joinSteps(cfg *config.Config, deps Deps, now time.Time) []PipelineStep {
	steps := []PipelineStep{
		&LoadCorpusStep{Mode: cfg.Match.JoinKey, Source: deps.Source},
		&MatchStep{Options: matcher.OptionsFromConfig(cfg.Match)},
		&AggregateStep{ExactTolerance: cfg.Match.ExactTol(), TopN: cfg.Output.TopN},
		&WriteReportsStep{Writer: writer(cfg, now), Prefix: cfg.Output.Prefix},
	}
	if deps.Publisher != nil {
		steps = append(steps, &PublishStep{Publisher: deps.Publisher})
	}
	return steps
}

// NewJoinPipeline links an invoice line-item CSV to the billing charges.
func NewJoinPipeline(cfg *config.Config, deps Deps, now time.Time) *Pipeline {
	return NewPipeline(joinSteps(cfg, deps, now)...)
}

// NewExtractionPipeline scans a document folder and writes the extraction outputs.
func NewExtractionPipeline(cfg *config.Config, prefix string, now time.Time) *Pipeline {
	return NewPipeline(
		&ScanStep{},
		&WriteExtractionStep{Writer: writer(cfg, now), Prefix: prefix},
	)
}

// NewFullPipeline scans a document folder, writes its extraction outputs and joins the
// extracted line items to the billing charges in one pass.
func NewFullPipeline(cfg *config.Config, deps Deps, extractPrefix string, now time.Time) *Pipeline {
	steps := []PipelineStep{
		&ScanStep{},
		&WriteExtractionStep{Writer: writer(cfg, now), Prefix: extractPrefix},
	}
	return NewPipeline(append(steps, joinSteps(cfg, deps, now)...)...)
}
