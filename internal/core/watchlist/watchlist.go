// Package watchlist holds the in-memory snapshot of the consolidated
// sanctions and PEP datasets that screening runs against
package watchlist

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Source labels carried on every row
const (
	SourceSanctions = "sanctions"
	SourcePEP       = "peps"
)

// Entity classes recognized by candidate filtering
const (
	ClassPerson       = "person"
	ClassOrganization = "organization"
)

// Row is one watchlist subject
type Row struct {
	ID         string
	Schema     string
	Name       string
	Aliases    []string
	BirthDate  string // normalized, may be empty or year-only
	Countries  string
	Position   string
	Topics     string
	Dataset    string
	ProgramIDs string
	Sanctions  string
	SourceType string // SourceSanctions or SourcePEP
}

// Snapshot is an immutable view over loaded rows.
// Build one with NewSnapshot and share it read-only across goroutines
type Snapshot struct {
	LoadedAt time.Time

	sanctions []Row
	peps      []Row

	ukHash  string
	ukIndex map[string]string // UK row id -> content signature
}

var aliasSplit = regexp.MustCompile(`[|;,]\s*`)

// SplitAliases breaks an alias blob on the separators the datasets use
func SplitAliases(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := aliasSplit.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NewSnapshot indexes rows by source type and precomputes the UK hash
func NewSnapshot(rows []Row, loadedAt time.Time) *Snapshot {
	s := &Snapshot{LoadedAt: loadedAt}
	for _, r := range rows {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		switch r.SourceType {
		case SourcePEP:
			s.peps = append(s.peps, r)
		default:
			s.sanctions = append(s.sanctions, r)
		}
	}
	s.ukIndex = buildUKIndex(s.sanctions)
	s.ukHash = hashUKIndex(s.ukIndex)
	return s
}

// Sanctions returns the sanctions rows
func (s *Snapshot) Sanctions() []Row { return s.sanctions }

// PEPs returns the PEP rows
func (s *Snapshot) PEPs() []Row { return s.peps }

// Len reports the total row count
func (s *Snapshot) Len() int { return len(s.sanctions) + len(s.peps) }

// UKRowCount reports how many sanctions rows are UK-scoped
func (s *Snapshot) UKRowCount() int { return len(s.ukIndex) }

// UKHash is the deterministic fingerprint of the UK-scoped sanctions rows.
// Two snapshots with identical UK rows produce identical hashes
func (s *Snapshot) UKHash() string { return s.ukHash }

// UKIndex returns a copy of the UK row id -> signature map
func (s *Snapshot) UKIndex() map[string]string {
	out := make(map[string]string, len(s.ukIndex))
	for k, v := range s.ukIndex {
		out[k] = v
	}
	return out
}

// MatchesClass reports whether a row belongs to the requested entity class.
// Datasets use person for individuals and a few flavors for organizations
func MatchesClass(r Row, entityType string) bool {
	sc := strings.ToLower(strings.TrimSpace(r.Schema))
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case ClassOrganization:
		return sc == "organization" || sc == "company" || sc == "legalentity"
	default:
		return sc == "person"
	}
}

// regimeAllow maps regime substrings onto the canonical labels exposed to
// callers. Only these regimes (plus the PEP dataset label) are attributed
var regimeAllow = []struct {
	needle string
	label  string
}{
	{"un ", "UN"},
	{"un-", "UN"},
	{"un_", "UN"},
	{"united nations", "UN"},
	{"ofac", "OFAC"},
	{"us-", "OFAC"},
	{"hm treasury", "HM Treasury"},
	{"hmt", "HM Treasury"},
	{"ofsi", "HM Treasury"},
	{"gb-", "HM Treasury"},
	{"uk financial sanctions", "HM Treasury"},
	{"uk fcdo", "HM Treasury"},
	{"eu council", "EU Council"},
	{"eu-", "EU Council"},
	{"eu_", "EU Council"},
	{"eu financial sanctions", "EU Council"},
}

// PEPSourceLabel attributes PEP matches
const PEPSourceLabel = "Consolidated PEP list"

// Regime derives a short regime label for a row.
// Priority: first program id, then the first sanctions chunk, then dataset
func Regime(r Row) string {
	if p := strings.TrimSpace(r.ProgramIDs); p != "" {
		return strings.TrimSpace(strings.SplitN(p, ";", 2)[0])
	}
	if sanc := strings.TrimSpace(r.Sanctions); sanc != "" {
		part := strings.TrimSpace(strings.SplitN(sanc, ";", 2)[0])
		if part == "" {
			part = strings.TrimSpace(strings.SplitN(sanc, "\n", 2)[0])
		}
		if part != "" {
			return part
		}
	}
	return strings.TrimSpace(r.Dataset)
}

// CanonicalRegime maps a derived regime onto the allow-list label, "" when
// the regime is outside the attributed set
func CanonicalRegime(regime string) string {
	s := strings.ToLower(strings.TrimSpace(regime))
	if s == "" {
		return ""
	}
	for _, entry := range regimeAllow {
		if strings.HasPrefix(s, entry.needle) || strings.Contains(s, entry.needle) {
			return entry.label
		}
	}
	return ""
}

// IsUKRegime reports whether a regime string is UK-scoped
func IsUKRegime(regime string) bool {
	return CanonicalRegime(regime) == "HM Treasury"
}

// DisplaySource renders the human source label for a matched row
func DisplaySource(r Row) string {
	if r.SourceType == SourcePEP {
		return PEPSourceLabel
	}
	if d := strings.TrimSpace(r.Dataset); d != "" {
		return d
	}
	return "Open Sanctions"
}

// buildUKIndex maps each UK-scoped sanctions row id to a content signature
// so the refresh delta can distinguish changed rows from stable ones
func buildUKIndex(rows []Row) map[string]string {
	idx := make(map[string]string)
	for _, r := range rows {
		if !IsUKRegime(Regime(r)) {
			continue
		}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		sig := sha256.Sum256([]byte(r.Name + "\x1f" + strings.Join(r.Aliases, "|") + "\x1f" + r.BirthDate + "\x1f" + r.Sanctions))
		idx[id] = hex.EncodeToString(sig[:8])
	}
	return idx
}

func hashUKIndex(idx map[string]string) string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{':'})
		h.Write([]byte(idx[k]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Delta summarizes UK row movement between two indexes
type Delta struct {
	Added   int
	Removed int
	Changed int
}

// DiffUK compares a previous UK index against the current one
func DiffUK(prev, curr map[string]string) Delta {
	var d Delta
	for id, sig := range curr {
		old, ok := prev[id]
		if !ok {
			d.Added++
		} else if old != sig {
			d.Changed++
		}
	}
	for id := range prev {
		if _, ok := curr[id]; !ok {
			d.Removed++
		}
	}
	return d
}
