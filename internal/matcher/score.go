package matcher

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/charge-mapping/internal/config"
	"github.com/dvloznov/charge-mapping/internal/corpus"
)

// Options are the scoring and selection constants.
type Options struct {
	AcceptThreshold int
	ExactTolerance  decimal.Decimal
	NearTolerance   decimal.Decimal
	ExactScore      int
	NearScore       int
	TieBreak        string
	Exclusive       bool
	Workers         int
}

// OptionsFromConfig copies the match section of a loaded configuration.
func OptionsFromConfig(m config.MatchConfig) Options {
	return Options{
		AcceptThreshold: m.AcceptThreshold,
		ExactTolerance:  m.ExactTol(),
		NearTolerance:   m.NearTol(),
		ExactScore:      m.ExactScore,
		NearScore:       m.NearScore,
		TieBreak:        m.TieBreak,
		Exclusive:       m.Exclusive,
		Workers:         m.Workers,
	}
}

// DefaultOptions returns the options of config.Default.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Match)
}

// Candidate is one line/charge pairing under consideration.
type Candidate struct {
	// Index is the charge's position within its group.
	Index  int
	Charge *corpus.BillingCharge

	AmountScore  int
	OverlapScore int
	// Distance is the edit distance between the match texts; only computed for the ranked tie-break.
	Distance int
}

// Score is the total evidence for the pairing.
func (c Candidate) Score() int {
	return c.AmountScore + c.OverlapScore
}

// AmountTier scores how closely two amounts agree. Both must be present.
func AmountTier(a, b decimal.NullDecimal, opts Options) int {
	if !a.Valid || !b.Valid {
		return 0
	}
	diff := a.Decimal.Sub(b.Decimal).Abs()
	switch {
	case diff.LessThan(opts.ExactTolerance):
		return opts.ExactScore
	case diff.LessThan(opts.NearTolerance):
		return opts.NearScore
	}
	return 0
}

// Overlap counts the distinct whitespace-separated words two texts share.
func Overlap(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		words[w] = true
	}
	n := 0
	for _, w := range strings.Fields(b) {
		if words[w] {
			n++
			delete(words, w)
		}
	}
	return n
}

func (m *Matcher) candidate(line *corpus.LineRecord, charges []corpus.BillingCharge, i int) Candidate {
	ch := &charges[i]
	c := Candidate{
		Index:        i,
		Charge:       ch,
		AmountScore:  AmountTier(line.Amount, ch.Amount, m.opts),
		OverlapScore: Overlap(line.MatchText, ch.MatchText),
	}
	if m.opts.TieBreak == config.TieBreakRanked {
		c.Distance = levenshtein.ComputeDistance(line.MatchText, ch.MatchText)
	}
	return c
}

// better reports whether c beats best. Under "first" only a strictly higher score wins;
// "ranked" then prefers more shared words and a smaller edit distance. Anything still tied
// keeps the earlier ledger row.
func (m *Matcher) better(c, best Candidate) bool {
	if c.Score() != best.Score() {
		return c.Score() > best.Score()
	}
	if m.opts.TieBreak == config.TieBreakRanked {
		if c.OverlapScore != best.OverlapScore {
			return c.OverlapScore > best.OverlapScore
		}
		if c.Distance != best.Distance {
			return c.Distance < best.Distance
		}
	}
	return c.Index < best.Index
}

// accepted reports whether a score is high enough to link a line to a charge.
// A zero score is never a match, whatever the threshold.
func (m *Matcher) accepted(score int) bool {
	return score > 0 && score >= m.opts.AcceptThreshold
}
