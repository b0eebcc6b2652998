// Package similarity implements name similarity scoring on a 0..100 scale.
// The token set ratio treats word order and duplicated words as noise, which
// suits watchlist names where aliases often permute or extend the base name
package similarity

import (
	"sort"
	"strings"
)

// Ratio scores two strings by indel distance over their combined length.
// 100 means identical, 0 means nothing in common
func Ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	la, lb := len(a), len(b)
	common := lcsLength(a, b)
	return (200*common + (la+lb)/2) / (la + lb)
}

// TokenSetRatio compares the sorted unique-token forms of both strings.
// It builds the intersection string and the two union strings, then returns
// the best pairwise Ratio among them
func TokenSetRatio(a, b string) int {
	am := tokenSet(a)
	bm := tokenSet(b)
	if len(am) == 0 && len(bm) == 0 {
		return 100
	}
	if len(am) == 0 || len(bm) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for t := range am {
		if _, ok := bm[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range bm {
		if _, ok := am[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	s0 := strings.Join(inter, " ")
	s1 := strings.TrimSpace(s0 + " " + strings.Join(onlyA, " "))
	s2 := strings.TrimSpace(s0 + " " + strings.Join(onlyB, " "))

	best := Ratio(s1, s2)
	// a non-empty intersection against either union dominates when one name
	// is a subset of the other
	if s0 != "" {
		if v := Ratio(s0, s1); v > best {
			best = v
		}
		if v := Ratio(s0, s2); v > best {
			best = v
		}
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	m := make(map[string]struct{}, len(fields))
	for _, t := range fields {
		m[t] = struct{}{}
	}
	return m
}

// lcsLength computes the longest common subsequence length with a two-row
// rolling table, O(len(a)*len(b)) time and O(min) space
func lcsLength(a, b string) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for j := 1; j <= len(b); j++ {
		for i := 1; i <= len(a); i++ {
			if a[i-1] == b[j-1] {
				curr[i] = prev[i-1] + 1
			} else if prev[i] >= curr[i-1] {
				curr[i] = prev[i]
			} else {
				curr[i] = curr[i-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}
