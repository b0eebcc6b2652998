// Package matcher scores a screening subject against a watchlist snapshot
// and produces the decision record that evidence rows are built from
package matcher

import (
	"context"
	"sort"
	"strings"

	"opscreen/internal/core/entitykey"
	"opscreen/internal/core/similarity"
	"opscreen/internal/core/watchlist"
	perr "opscreen/internal/platform/errors"
)

// Outcome statuses
const (
	StatusCleared      = "Cleared"
	StatusFailPEP      = "Fail PEP"
	StatusFailSanction = "Fail Sanction"
)

// Risk levels paired with statuses
const (
	RiskCleared = "Cleared"
	RiskMedium  = "Medium Risk"
	RiskHigh    = "High Risk"
)

// Confidence bands
const (
	ConfidenceVeryHigh = "Very High"
	ConfidenceHigh     = "High"
	ConfidenceMedium   = "Medium"
	ConfidenceLow      = "Low"
)

// Config carries the scoring thresholds
type Config struct {
	// MatchThreshold is the minimum score for a decision candidate
	MatchThreshold int
	// SuggestionThreshold is the minimum score for the advisory list
	SuggestionThreshold int
}

// Defaults fills unset thresholds
func (c Config) Defaults() Config {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 75
	}
	if c.SuggestionThreshold <= 0 {
		c.SuggestionThreshold = 60
	}
	return c
}

// Subject is the screening input after normalization
type Subject struct {
	Name       string
	DOB        string // normalized, may be empty or year-only
	EntityType string // normalized lowercase class
}

// TopMatch is one advisory suggestion
type TopMatch struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Decision is the full outcome of one matcher run
type Decision struct {
	Status     string
	RiskLevel  string
	Confidence string
	Score      int

	MatchedName string
	MatchedDOB  string
	Position    string
	Topics      string

	Regimes []string // distinct canonical regime labels
	Sources []string // distinct display source labels

	UKSanctionsFlag bool
	PEPFlag         bool

	TopMatches []TopMatch
}

// Matcher holds a snapshot handle and thresholds. It performs no I/O and is
// deterministic for a fixed snapshot
type Matcher struct {
	cfg Config
}

// New builds a matcher with the given thresholds
func New(cfg Config) *Matcher { return &Matcher{cfg: cfg.Defaults()} }

type candidate struct {
	row   watchlist.Row
	score int
}

// Match runs the two-pass decision procedure over the snapshot.
// Returns Unavailable when the snapshot handle is nil
func (m *Matcher) Match(ctx context.Context, snap *watchlist.Snapshot, sub Subject) (Decision, error) {
	if snap == nil {
		return Decision{}, perr.Unavailablef("watchlist snapshot not available")
	}
	name := entitykey.NormalizeName(sub.Name)
	if name == "" {
		return Decision{}, perr.InvalidArgf("name must not be empty")
	}

	sanc, err := m.pass(ctx, snap.Sanctions(), sub, name)
	if err != nil {
		return Decision{}, err
	}
	pep, err := m.pass(ctx, snap.PEPs(), sub, name)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{TopMatches: mergeSuggestions(sanc.suggestions, pep.suggestions)}

	switch {
	case len(sanc.decisions) > 0:
		best := sanc.decisions[0]
		d.Status = StatusFailSanction
		d.RiskLevel = RiskHigh
		d.Score = best.score
		d.Confidence = confidenceFor(best.score)
		d.MatchedName = best.row.Name
		d.MatchedDOB = best.row.BirthDate
		d.Position = best.row.Position
		d.Topics = best.row.Topics
		d.Regimes, d.Sources, d.UKSanctionsFlag = attribute(sanc.decisions)
		d.PEPFlag = len(pep.decisions) > 0
		if d.PEPFlag {
			d.Sources = appendDistinct(d.Sources, watchlist.PEPSourceLabel)
		}
	case len(pep.decisions) > 0:
		best := pep.decisions[0]
		d.Status = StatusFailPEP
		d.RiskLevel = RiskMedium
		d.Score = best.score
		d.Confidence = confidenceFor(best.score)
		d.MatchedName = best.row.Name
		d.MatchedDOB = best.row.BirthDate
		d.Position = best.row.Position
		d.Topics = best.row.Topics
		d.Sources = []string{watchlist.PEPSourceLabel}
		d.PEPFlag = true
	default:
		d.Status = StatusCleared
		d.RiskLevel = RiskCleared
		d.Confidence = ConfidenceVeryHigh
		d.Score = 0
	}
	return d, nil
}

type passResult struct {
	decisions   []candidate // sorted by score desc
	suggestions []candidate
}

// pass scores one dataset. The DOB gate applies only to decision candidates;
// the advisory list is name-similarity only
func (m *Matcher) pass(ctx context.Context, rows []watchlist.Row, sub Subject, normName string) (passResult, error) {
	var res passResult
	for i, r := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return passResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "matching deadline exceeded")
			}
		}
		if !watchlist.MatchesClass(r, sub.EntityType) {
			continue
		}
		score := bestScore(normName, r)
		if score < m.cfg.SuggestionThreshold {
			continue
		}
		res.suggestions = append(res.suggestions, candidate{row: r, score: score})
		if score >= m.cfg.MatchThreshold && dobCompatible(sub.DOB, r.BirthDate) {
			res.decisions = append(res.decisions, candidate{row: r, score: score})
		}
	}
	sortCandidates(res.decisions)
	sortCandidates(res.suggestions)
	return res, nil
}

// bestScore takes the best similarity over the primary name and all aliases
func bestScore(normName string, r watchlist.Row) int {
	best := similarity.TokenSetRatio(normName, entitykey.NormalizeName(r.Name))
	for _, a := range r.Aliases {
		if v := similarity.TokenSetRatio(normName, entitykey.NormalizeName(a)); v > best {
			best = v
		}
	}
	return best
}

// dobCompatible gates decision candidates. A missing date on either side
// never disqualifies; when both sides carry one, a year-only value on either
// side compares years, otherwise the full dates must agree
func dobCompatible(subDOB, rowDOB string) bool {
	if subDOB == "" || rowDOB == "" {
		return true
	}
	if len(subDOB) == 4 || len(rowDOB) == 4 {
		return entitykey.YearOf(subDOB) == entitykey.YearOf(rowDOB)
	}
	return subDOB == rowDOB
}

func confidenceFor(score int) string {
	switch {
	case score >= 90:
		return ConfidenceHigh
	case score >= 80:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// attribute collects distinct regime and source labels over the sanctions
// decision candidates and reports whether any matched regime is UK-scoped
func attribute(decisions []candidate) (regimes, sources []string, uk bool) {
	for _, c := range decisions {
		regime := watchlist.Regime(c.row)
		if label := watchlist.CanonicalRegime(regime); label != "" {
			regimes = appendDistinct(regimes, label)
		}
		sources = appendDistinct(sources, watchlist.DisplaySource(c.row))
		if watchlist.IsUKRegime(regime) {
			uk = true
		}
	}
	return regimes, sources, uk
}

func appendDistinct(list []string, v string) []string {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return list
		}
	}
	return append(list, v)
}

func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].score != cs[j].score {
			return cs[i].score > cs[j].score
		}
		return cs[i].row.Name < cs[j].row.Name
	})
}

// mergeSuggestions combines both passes into the top-10 advisory list,
// deduplicated by subject name keeping the higher score
func mergeSuggestions(a, b []candidate) []TopMatch {
	type entry struct {
		display string
		score   int
	}
	byName := make(map[string]entry)
	for _, c := range append(append([]candidate{}, a...), b...) {
		key := strings.ToLower(c.row.Name)
		if v, ok := byName[key]; !ok || c.score > v.score {
			byName[key] = entry{display: c.row.Name, score: c.score}
		}
	}
	entries := make([]entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].display < entries[j].display
	})
	if len(entries) > 10 {
		entries = entries[:10]
	}
	out := make([]TopMatch, 0, len(entries))
	for _, e := range entries {
		out = append(out, TopMatch{Name: e.display, Score: e.score})
	}
	return out
}
