// Package entitykey derives the stable screening fingerprint for an identity
// Pipeline for names
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKD normalization
// 3 Case folding
// 4 Remove combining marks and zero-width format chars
// 5 Width fold fullwidth to ASCII
// 6 Remove punctuation and symbols
// 7 Collapse whitespace to single spaces and trim
package entitykey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
	"unicode"

	perr "opscreen/internal/platform/errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// DefaultEntityType is assumed when the caller omits one
const DefaultEntityType = "Person"

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKD,
			cases.Fold(),                       // unicode case folding
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// NormalizeName returns the canonical lowercase form of a display name.
// Same logical name in different scripts of capitalization or accenting
// collapses to one string, so the fingerprint is stable across callers
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	ns = stripPunct(ns)
	return collapseSpaces(ns)
}

// NormalizeEntityType lowercases and defaults the entity type
func NormalizeEntityType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		t = strings.ToLower(DefaultEntityType)
	}
	return t
}

// NormalizeDOB canonicalizes a date of birth string.
// Full dates render as YYYY-MM-DD, bare years stay as YYYY, anything
// unparseable collapses to the empty string. Accepted inputs are ISO
// YYYY-MM-DD, DD-MM-YYYY, a bare 4-digit year, and RFC3339 timestamps
func NormalizeDOB(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == 4 && isDigits(s) {
		return s
	}
	for _, layout := range []string{"2006-01-02", "02-01-2006", "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// YearOf extracts the year from a normalized DOB, "" when absent
func YearOf(normalizedDOB string) string {
	if len(normalizedDOB) >= 4 && isDigits(normalizedDOB[:4]) {
		return normalizedDOB[:4]
	}
	return ""
}

// Fingerprint derives the 256-bit entity key as lowercase hex.
// Returns InvalidInput when the display name is empty after normalization
func Fingerprint(displayName, entityType, dob string) (string, error) {
	name := NormalizeName(displayName)
	if name == "" {
		return "", perr.InvalidArgf("name must not be empty")
	}
	etype := NormalizeEntityType(entityType)
	bdate := NormalizeDOB(dob)

	h := sha256.Sum256([]byte(name + "|" + etype + "|" + bdate))
	return hex.EncodeToString(h[:]), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// stripPunct replaces punctuation and symbol runes with spaces so word
// boundaries survive (e.g. "O'Neil-Smith" -> "o neil smith")
func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
