// Package matcher links invoice line items to billing charges within join-key groups.
package matcher

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/logger"
)

// Status classifies a joined record.
type Status string

const (
	StatusMatched     Status = "matched"
	StatusNoMatch     Status = "no_match"
	StatusClaimed     Status = "claimed"
	StatusKeyNotFound Status = "key_not_found"
	StatusKeyMissing  Status = "key_missing"
)

// Notes written for unmatched records.
const (
	NoteNoMatch     = "No confident match found"
	NoteClaimed     = "best candidate claimed by another line item"
	NoteKeyNotFound = "key not found"
	NoteKeyMissing  = "join key missing"
)

// JoinedRecord is the outcome for one invoice line. Charge is nil unless Status is matched.
type JoinedRecord struct {
	RunID string
	Key   string

	Line   corpus.LineRecord
	Charge *corpus.BillingCharge

	Score        int
	AmountScore  int
	OverlapScore int
	Variance     decimal.NullDecimal

	Status Status
	Note   string
}

// Matched reports whether the record links to a charge.
func (r JoinedRecord) Matched() bool {
	return r.Status == StatusMatched
}

// Result holds one record per invoice line: groups in corpus order, then lines without a key.
type Result struct {
	RunID   string
	Key     string
	Records []JoinedRecord
}

// Matched returns the matched records in order.
func (r *Result) Matched() []JoinedRecord {
	return r.filter(true)
}

// Unmatched returns the unmatched records in order.
func (r *Result) Unmatched() []JoinedRecord {
	return r.filter(false)
}

func (r *Result) filter(matched bool) []JoinedRecord {
	var out []JoinedRecord
	for _, rec := range r.Records {
		if rec.Matched() == matched {
			out = append(out, rec)
		}
	}
	return out
}

type Matcher struct {
	opts Options
}

func New(opts Options) *Matcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Matcher{opts: opts}
}

// Run matches every group of c. Groups are independent, so with Workers > 1 they are
// matched concurrently; the record order does not depend on the worker count.
func (m *Matcher) Run(ctx context.Context, c *corpus.Corpus) (*Result, error) {
	log := logger.FromContext(ctx)
	runID := uuid.NewString()

	perGroup := make([][]JoinedRecord, len(c.Groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i := range c.Groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			grp := c.Groups[i]
			perGroup[i] = m.MatchGroup(grp.Key, grp.Lines, c.Charges[grp.Key])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Key: c.Key}
	for _, recs := range perGroup {
		res.Records = append(res.Records, recs...)
	}
	for _, line := range c.MissingKey {
		res.Records = append(res.Records, JoinedRecord{
			Line:   line,
			Status: StatusKeyMissing,
			Note:   NoteKeyMissing,
		})
	}
	for i := range res.Records {
		res.Records[i].RunID = runID
	}

	matched := 0
	for _, r := range res.Records {
		if r.Matched() {
			matched++
		}
	}
	log.Info().
		Str("run_id", runID).
		Int("groups", len(c.Groups)).
		Int("records", len(res.Records)).
		Int("matched", matched).
		Int("unmatched", len(res.Records)-matched).
		Msg("Matching complete")

	return res, nil
}

// MatchGroup matches the lines of one join key against that key's charges.
func (m *Matcher) MatchGroup(key string, lines []corpus.LineRecord, charges []corpus.BillingCharge) []JoinedRecord {
	out := make([]JoinedRecord, len(lines))

	if len(charges) == 0 {
		for i, line := range lines {
			out[i] = JoinedRecord{Key: key, Line: line, Status: StatusKeyNotFound, Note: NoteKeyNotFound}
		}
		return out
	}

	cands := make([][]Candidate, len(lines))
	for i := range lines {
		cands[i] = make([]Candidate, len(charges))
		for j := range charges {
			cands[i][j] = m.candidate(&lines[i], charges, j)
		}
	}

	if m.opts.Exclusive {
		m.assignExclusive(key, lines, cands, out)
		return out
	}

	for i, line := range lines {
		best := m.best(cands[i])
		out[i] = m.record(key, line, best, m.accepted(best.Score()))
	}
	return out
}

// best returns the winning candidate of a non-empty list.
func (m *Matcher) best(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if m.better(c, best) {
			best = c
		}
	}
	return best
}

type pair struct {
	line int
	cand Candidate
}

// assignExclusive hands out charges greedily by descending score so each charge backs at
// most one line. Lines whose acceptable charges were all taken are marked as claimed.
func (m *Matcher) assignExclusive(key string, lines []corpus.LineRecord, cands [][]Candidate, out []JoinedRecord) {
	var pairs []pair
	for i := range cands {
		for _, c := range cands[i] {
			if m.accepted(c.Score()) {
				pairs = append(pairs, pair{line: i, cand: c})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if pa.cand.Score() != pb.cand.Score() {
			return pa.cand.Score() > pb.cand.Score()
		}
		if pa.line != pb.line {
			return pa.line < pb.line
		}
		return m.better(pa.cand, pb.cand)
	})

	assigned := make([]bool, len(lines))
	claimed := make(map[int]bool)
	for _, p := range pairs {
		if assigned[p.line] || claimed[p.cand.Index] {
			continue
		}
		assigned[p.line] = true
		claimed[p.cand.Index] = true
		out[p.line] = m.record(key, lines[p.line], p.cand, true)
	}

	for i, line := range lines {
		if assigned[i] {
			continue
		}
		best := m.best(cands[i])
		rec := m.record(key, line, best, false)
		if m.accepted(best.Score()) {
			rec.Status = StatusClaimed
			rec.Note = NoteClaimed
		}
		out[i] = rec
	}
}

func (m *Matcher) record(key string, line corpus.LineRecord, c Candidate, accepted bool) JoinedRecord {
	rec := JoinedRecord{
		Key:          key,
		Line:         line,
		Score:        c.Score(),
		AmountScore:  c.AmountScore,
		OverlapScore: c.OverlapScore,
	}
	if !accepted {
		rec.Status = StatusNoMatch
		rec.Note = NoteNoMatch
		return rec
	}

	rec.Status = StatusMatched
	rec.Charge = c.Charge
	if line.Amount.Valid && c.Charge.Amount.Valid {
		rec.Variance = decimal.NewNullDecimal(line.Amount.Decimal.Sub(c.Charge.Amount.Decimal))
	}
	return rec
}
