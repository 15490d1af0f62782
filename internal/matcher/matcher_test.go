package matcher

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/charge-mapping/internal/config"
	"github.com/dvloznov/charge-mapping/internal/corpus"
	"github.com/dvloznov/charge-mapping/internal/invoice"
)

func amt(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func line(key, desc, amount string) corpus.LineRecord {
	return corpus.LineRecord{
		Key:         key,
		MD5:         key,
		Description: desc,
		MatchText:   invoice.NormalizeText(desc),
		Amount:      amt(amount),
	}
}

func charge(key, desc, amount string) corpus.BillingCharge {
	return corpus.BillingCharge{
		Key:               key,
		MD5:               key,
		ChargeDescription: desc,
		MatchText:         invoice.NormalizeText(desc),
		Amount:            amt(amount),
	}
}

func optsWith(f func(*Options)) Options {
	o := DefaultOptions()
	f(&o)
	return o
}

func TestAmountTier(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		a, b string
		want int
	}{
		{"811.00", "811.00", 10},
		{"811.00", "811.50", 5},
		{"811.00", "820.00", 0},
		{"811.00", "811.019", 10},
		{"811.00", "811.02", 5},
		{"811.00", "812.00", 0},
		{"-5", "-5.01", 10},
		{"811.00", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountTier(amt(tt.a), amt(tt.b), opts))
			assert.Equal(t, tt.want, AmountTier(amt(tt.b), amt(tt.a), opts), "amount tier must be symmetric")
		})
	}
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1, Overlap("MONTHLY EQUIPMENT FEE", "MONTHLY SERVICE COMMERCIAL"))
	assert.Equal(t, 1, Overlap("FEE FEE", "FEE FEE FEE"))
	assert.Equal(t, 0, Overlap("", "FEE"))
	assert.Equal(t, 3, Overlap("ROLL OFF HAUL", "HAUL ROLL OFF"))
}

func TestMatchGroup_AmountTiers(t *testing.T) {
	m := New(DefaultOptions())
	lines := []corpus.LineRecord{line("k", "A", "811.00")}

	tests := []struct {
		cost      string
		wantScore int
		matched   bool
	}{
		{"811.00", 10, true},
		{"811.50", 5, true},
		{"820.00", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.cost, func(t *testing.T) {
			recs := m.MatchGroup("k", lines, []corpus.BillingCharge{charge("k", "B", tt.cost)})
			require.Len(t, recs, 1)
			assert.Equal(t, tt.wantScore, recs[0].Score)
			assert.Equal(t, tt.matched, recs[0].Matched())
		})
	}
}

func TestMatchGroup_Variance(t *testing.T) {
	recs := New(DefaultOptions()).MatchGroup("k",
		[]corpus.LineRecord{line("k", "A", "811.00")},
		[]corpus.BillingCharge{charge("k", "B", "811.50")})

	require.True(t, recs[0].Variance.Valid)
	assert.True(t, decimal.RequireFromString("-0.5").Equal(recs[0].Variance.Decimal))
	assert.Equal(t, "k", recs[0].Key)
}

func TestMatchGroup_ManyToOne(t *testing.T) {
	ch := []corpus.BillingCharge{charge("k", "MONTHLY SERVICE", "100.00")}
	lines := []corpus.LineRecord{line("k", "MONTHLY FEE", "100.00"), line("k", "MONTHLY FEE", "100.00")}

	recs := New(DefaultOptions()).MatchGroup("k", lines, ch)

	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.True(t, r.Matched())
		assert.Same(t, &ch[0], r.Charge)
		assert.Equal(t, 11, r.Score)
	}
}

func TestMatchGroup_NeverAcceptsBelowThreshold(t *testing.T) {
	recs := New(DefaultOptions()).MatchGroup("k",
		[]corpus.LineRecord{line("k", "30 YARD ROLL OFF", "811.00")},
		[]corpus.BillingCharge{charge("k", "30 YARD ROLL OFF", "900.00")})

	assert.False(t, recs[0].Matched())
	assert.Equal(t, 4, recs[0].Score)
	assert.Equal(t, StatusNoMatch, recs[0].Status)
	assert.Equal(t, NoteNoMatch, recs[0].Note)
	assert.Nil(t, recs[0].Charge)
}

func TestMatchGroup_OverlapAloneCanMatch(t *testing.T) {
	recs := New(DefaultOptions()).MatchGroup("k",
		[]corpus.LineRecord{line("k", "30 yard roll off haul", "")},
		[]corpus.BillingCharge{charge("k", "30 YARD ROLL OFF HAUL", "450.00")})

	assert.True(t, recs[0].Matched())
	assert.Equal(t, 5, recs[0].Score)
	assert.Equal(t, 0, recs[0].AmountScore)
	assert.False(t, recs[0].Variance.Valid)
}

func TestMatchGroup_NullLineNeverMatches(t *testing.T) {
	recs := New(DefaultOptions()).MatchGroup("k",
		[]corpus.LineRecord{line("k", "", "")},
		[]corpus.BillingCharge{charge("k", "", "")})

	assert.False(t, recs[0].Matched())
	assert.Equal(t, 0, recs[0].Score)
}

func TestMatchGroup_KeyNotFound(t *testing.T) {
	recs := New(DefaultOptions()).MatchGroup("k", []corpus.LineRecord{line("k", "A", "1.00")}, nil)

	require.Len(t, recs, 1)
	assert.Equal(t, StatusKeyNotFound, recs[0].Status)
	assert.Equal(t, NoteKeyNotFound, recs[0].Note)
	assert.Equal(t, 0, recs[0].Score)
}

func TestMatchGroup_TieBreak(t *testing.T) {
	tests := []struct {
		name     string
		line     corpus.LineRecord
		charges  []corpus.BillingCharge
		policy   string
		wantDesc string
	}{
		{
			name:     "first keeps ledger order on equal score",
			line:     line("k", "A B C D E", "100.00"),
			charges:  []corpus.BillingCharge{charge("k", "X", "100.00"), charge("k", "A B C D E", "100.50")},
			policy:   config.TieBreakFirst,
			wantDesc: "X",
		},
		{
			name:     "ranked prefers more shared words",
			line:     line("k", "A B C D E", "100.00"),
			charges:  []corpus.BillingCharge{charge("k", "X", "100.00"), charge("k", "A B C D E", "100.50")},
			policy:   config.TieBreakRanked,
			wantDesc: "A B C D E",
		},
		{
			name:     "ranked prefers smaller edit distance",
			line:     line("k", "ROLL OFF HAUL", "100.00"),
			charges:  []corpus.BillingCharge{charge("k", "HAUL ROLL OFF", "100.00"), charge("k", "ROLL OFF HAUL", "100.00")},
			policy:   config.TieBreakRanked,
			wantDesc: "ROLL OFF HAUL",
		},
		{
			name:     "first ignores edit distance",
			line:     line("k", "ROLL OFF HAUL", "100.00"),
			charges:  []corpus.BillingCharge{charge("k", "HAUL ROLL OFF", "100.00"), charge("k", "ROLL OFF HAUL", "100.00")},
			policy:   config.TieBreakFirst,
			wantDesc: "HAUL ROLL OFF",
		},
		{
			name: "ranked full tie keeps ledger order",
			line: line("k", "FEE", "10.00"),
			charges: []corpus.BillingCharge{
				{Key: "k", ChargeDescription: "FEE", MatchText: "FEE", Amount: amt("10.00"), ServiceID: "first"},
				{Key: "k", ChargeDescription: "FEE", MatchText: "FEE", Amount: amt("10.00"), ServiceID: "second"},
			},
			policy:   config.TieBreakRanked,
			wantDesc: "FEE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(optsWith(func(o *Options) { o.TieBreak = tt.policy }))
			recs := m.MatchGroup("k", []corpus.LineRecord{tt.line}, tt.charges)
			require.True(t, recs[0].Matched())
			assert.Equal(t, tt.wantDesc, recs[0].Charge.ChargeDescription)
			if tt.charges[0].ServiceID != "" {
				assert.Equal(t, "first", recs[0].Charge.ServiceID)
			}
		})
	}
}

func TestMatchGroup_DefaultTieBreakKeepsLedgerOrder(t *testing.T) {
	ch := []corpus.BillingCharge{
		charge("k", "MONTHLY SERVICE COMMERCIAL", "100.00"),
		charge("k", "MONTHLY X", "100.00"),
	}

	recs := New(DefaultOptions()).MatchGroup("k", []corpus.LineRecord{line("k", "MONTHLY FEE", "100.00")}, ch)

	require.Len(t, recs, 1)
	require.True(t, recs[0].Matched())
	assert.Equal(t, 11, recs[0].Score)
	assert.Same(t, &ch[0], recs[0].Charge)
}

func TestMatchGroup_Exclusive(t *testing.T) {
	m := New(optsWith(func(o *Options) { o.Exclusive = true }))

	t.Run("second line takes the next acceptable charge", func(t *testing.T) {
		recs := m.MatchGroup("k",
			[]corpus.LineRecord{line("k", "A", "811.00"), line("k", "B", "811.00")},
			[]corpus.BillingCharge{charge("k", "X", "811.00"), charge("k", "Y", "811.50")})

		require.True(t, recs[0].Matched())
		require.True(t, recs[1].Matched())
		assert.Equal(t, "X", recs[0].Charge.ChargeDescription)
		assert.Equal(t, "Y", recs[1].Charge.ChargeDescription)
		assert.Equal(t, 5, recs[1].Score)
	})

	t.Run("line loses its only charge", func(t *testing.T) {
		recs := m.MatchGroup("k",
			[]corpus.LineRecord{line("k", "A", "811.00"), line("k", "B", "811.00")},
			[]corpus.BillingCharge{charge("k", "X", "811.00")})

		assert.True(t, recs[0].Matched())
		assert.Equal(t, StatusClaimed, recs[1].Status)
		assert.Equal(t, NoteClaimed, recs[1].Note)
		assert.Equal(t, 10, recs[1].Score)
		assert.Nil(t, recs[1].Charge)
	})

	t.Run("higher score claims first regardless of line order", func(t *testing.T) {
		recs := m.MatchGroup("k",
			[]corpus.LineRecord{line("k", "A", "811.40"), line("k", "B", "811.00")},
			[]corpus.BillingCharge{charge("k", "X", "811.00")})

		assert.Equal(t, StatusClaimed, recs[0].Status)
		assert.True(t, recs[1].Matched())
	})
}

func testCorpus() *corpus.Corpus {
	lines := []corpus.LineRecord{
		line("a", "MONTHLY FEE", "100.00"),
		line("b", "EXTRA LIFT", "50.00"),
		line("a", "FUEL", "12.00"),
		line("", "ORPHAN", "1.00"),
		line("c", "RENTAL", "75.00"),
	}
	charges := []corpus.BillingCharge{
		charge("a", "MONTHLY SERVICE", "100.00"),
		charge("a", "FUEL SURCHARGE", "12.00"),
		charge("c", "RENTAL", "80.00"),
	}
	return corpus.New(corpus.KeyMD5, lines, charges)
}

func TestRun(t *testing.T) {
	res, err := New(DefaultOptions()).Run(context.Background(), testCorpus())
	require.NoError(t, err)

	require.Len(t, res.Records, 5)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, corpus.KeyMD5, res.Key)

	var statuses []Status
	for _, r := range res.Records {
		assert.Equal(t, res.RunID, r.RunID)
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []Status{StatusMatched, StatusMatched, StatusKeyNotFound, StatusNoMatch, StatusKeyMissing}, statuses)

	assert.Len(t, res.Matched(), 2)
	assert.Len(t, res.Unmatched(), 3)
	assert.Equal(t, NoteKeyMissing, res.Records[4].Note)
	assert.Equal(t, 1, res.Records[3].Score)
}

func TestRun_WorkersKeepOrder(t *testing.T) {
	serial, err := New(DefaultOptions()).Run(context.Background(), testCorpus())
	require.NoError(t, err)
	parallel, err := New(optsWith(func(o *Options) { o.Workers = 4 })).Run(context.Background(), testCorpus())
	require.NoError(t, err)

	require.Len(t, parallel.Records, len(serial.Records))
	for i := range serial.Records {
		assert.Equal(t, serial.Records[i].Line, parallel.Records[i].Line)
		assert.Equal(t, serial.Records[i].Status, parallel.Records[i].Status)
		assert.Equal(t, serial.Records[i].Score, parallel.Records[i].Score)
	}
	assert.NotEqual(t, serial.RunID, parallel.RunID)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultOptions()).Run(ctx, testCorpus())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Match
	cfg.Workers = 0

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 5, opts.AcceptThreshold)
	assert.True(t, decimal.RequireFromString("0.02").Equal(opts.ExactTolerance))

	assert.Equal(t, 1, New(opts).opts.Workers)
}
