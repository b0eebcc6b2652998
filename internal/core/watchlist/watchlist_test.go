package watchlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func row(id, name, programIDs, dataset, sourceType string) Row {
	return Row{
		ID:         id,
		Schema:     "Person",
		Name:       name,
		ProgramIDs: programIDs,
		Dataset:    dataset,
		SourceType: sourceType,
	}
}

func TestSplitAliases(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Ivan Petrov", []string{"Ivan Petrov"}},
		{"Ivan Petrov|I. Petrov; Vanya, Petrov I.", []string{"Ivan Petrov", "I. Petrov", "Vanya", "Petrov I."}},
		{" | ; ", nil},
	}
	for _, c := range cases {
		require.Equal(t, c.want, SplitAliases(c.in), "input %q", c.in)
	}
}

func TestSnapshotPartitionsBySource(t *testing.T) {
	s := NewSnapshot([]Row{
		row("s1", "Boris Volkov", "GB-HMT", "gb_hmt_sanctions", SourceSanctions),
		row("p1", "Maria Diaz", "", "peps", SourcePEP),
		row("x1", "", "", "", SourceSanctions), // nameless rows are dropped
	}, time.Now())

	require.Len(t, s.Sanctions(), 1)
	require.Len(t, s.PEPs(), 1)
	require.Equal(t, 2, s.Len())
}

func TestMatchesClass(t *testing.T) {
	person := Row{Schema: "Person"}
	org := Row{Schema: "Organization"}
	company := Row{Schema: "Company"}
	legal := Row{Schema: "LegalEntity"}

	require.True(t, MatchesClass(person, "person"))
	require.False(t, MatchesClass(person, "organization"))
	require.True(t, MatchesClass(org, "organization"))
	require.True(t, MatchesClass(company, "organization"))
	require.True(t, MatchesClass(legal, "organization"))
	require.False(t, MatchesClass(company, "person"))
	// unknown entity type defaults to person
	require.True(t, MatchesClass(person, ""))
}

func TestRegimeDerivation(t *testing.T) {
	cases := []struct {
		r    Row
		want string
	}{
		{Row{ProgramIDs: "GB-HMT; EU-COUNCIL"}, "GB-HMT"},
		{Row{Sanctions: "OFAC SDN List; details"}, "OFAC SDN List"},
		{Row{Dataset: "un_sc_sanctions"}, "un_sc_sanctions"},
		{Row{}, ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Regime(c.r))
	}
}

func TestCanonicalRegime(t *testing.T) {
	cases := []struct{ in, want string }{
		{"GB-HMT", "HM Treasury"},
		{"OFSI Consolidated List", "HM Treasury"},
		{"UK Financial Sanctions", "HM Treasury"},
		{"OFAC SDN", "OFAC"},
		{"US-OFAC", "OFAC"},
		{"United Nations Security Council", "UN"},
		{"UN-SC", "UN"},
		{"EU Council Regulation 269/2014", "EU Council"},
		{"EU-COUNCIL", "EU Council"},
		{"something else", ""},
		{"", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CanonicalRegime(c.in), "input %q", c.in)
	}
}

func TestDisplaySource(t *testing.T) {
	require.Equal(t, PEPSourceLabel, DisplaySource(Row{SourceType: SourcePEP, Dataset: "peps"}))
	require.Equal(t, "gb_hmt_sanctions", DisplaySource(Row{SourceType: SourceSanctions, Dataset: "gb_hmt_sanctions"}))
	require.Equal(t, "Open Sanctions", DisplaySource(Row{SourceType: SourceSanctions}))
}

func TestUKHashStableAndSelective(t *testing.T) {
	rows := []Row{
		row("uk1", "Boris Volkov", "GB-HMT", "gb_hmt_sanctions", SourceSanctions),
		row("uk2", "Elena Markova", "OFSI", "gb_hmt_sanctions", SourceSanctions),
		row("us1", "Carlos Rivera", "US-OFAC", "us_ofac_sdn", SourceSanctions),
	}
	a := NewSnapshot(rows, time.Now())
	b := NewSnapshot(rows, time.Now().Add(time.Hour))

	require.Equal(t, 2, a.UKRowCount())
	// identical UK rows hash identically regardless of load time
	require.Equal(t, a.UKHash(), b.UKHash())

	// non-UK churn does not move the hash
	c := NewSnapshot(append(rows, row("us2", "New Person", "US-OFAC", "us_ofac_sdn", SourceSanctions)), time.Now())
	require.Equal(t, a.UKHash(), c.UKHash())

	// UK churn does
	d := NewSnapshot(append(rows, row("uk3", "New UK Person", "GB-HMT", "gb_hmt_sanctions", SourceSanctions)), time.Now())
	require.NotEqual(t, a.UKHash(), d.UKHash())
}

func TestUKHashTracksContentChange(t *testing.T) {
	base := []Row{row("uk1", "Boris Volkov", "GB-HMT", "gb_hmt_sanctions", SourceSanctions)}
	a := NewSnapshot(base, time.Now())

	renamed := []Row{row("uk1", "Boris V. Volkov", "GB-HMT", "gb_hmt_sanctions", SourceSanctions)}
	b := NewSnapshot(renamed, time.Now())
	require.NotEqual(t, a.UKHash(), b.UKHash())
}

func TestDiffUK(t *testing.T) {
	prev := map[string]string{"a": "1", "b": "2", "c": "3"}
	curr := map[string]string{"b": "2", "c": "9", "d": "4", "e": "5"}

	d := DiffUK(prev, curr)
	require.Equal(t, 2, d.Added)
	require.Equal(t, 1, d.Removed)
	require.Equal(t, 1, d.Changed)

	// same index yields the zero delta
	require.Equal(t, Delta{}, DiffUK(curr, curr))
}
