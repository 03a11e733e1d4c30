// Package export implements the Result Row contract and natural-order
// paging comparator of spec.md §6, ported from the original
// implementation's utils/exports/paging.py and highlight.py. Everything
// beyond this row shape — CSV/JSON/XML serialization itself — is a
// Non-goal (spec.md §1); callers format Row values however they like.
package export

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tesserae-go/tesserae/internal/store"
)

// NaturalLess reports whether a sorts before b under the locus-tag
// comparator of spec.md §6 ("so '1.9' < '1.10'"): runs of digits compare
// numerically, everything else compares byte-by-byte.
func NaturalLess(a, b string) bool {
	return naturalCompare(a, b) < 0
}

func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			na, ni := scanNumber(a, i)
			nb, nj := scanNumber(b, j)
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			i, j = ni, nj
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(a)-i < len(b)-j:
		return -1
	case len(a)-i > len(b)-j:
		return 1
	default:
		return 0
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// scanNumber reads the run of digits starting at i, returning its
// numeric value and the index just past it.
func scanNumber(s string, i int) (int, int) {
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	n, _ := strconv.Atoi(s[start:i])
	return n, i
}

// SortMatches orders matches that were fetched without a DB-side sort
// (spec.md §6: "When sort_by = 'score', sort is pushed to the store;
// otherwise results are fetched then sorted in a natural-order
// comparator"). Score-order matches arrive from internal/store already
// sorted and calling this with sortBy "score" is a no-op.
func SortMatches(matches []store.Match, sortBy, sortOrder string) {
	less := func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch sortBy {
		case "source_tag":
			return compareTags(a.SourceTag, b.SourceTag, sortOrder)
		case "target_tag":
			return compareTags(a.TargetTag, b.TargetTag, sortOrder)
		case "matched_features":
			return compareInts(len(a.MatchedTokens), len(b.MatchedTokens), sortOrder)
		default:
			return false
		}
	}
	sort.SliceStable(matches, less)
}

func compareTags(a, b, order string) bool {
	if order == "descending" {
		return NaturalLess(b, a)
	}
	return NaturalLess(a, b)
}

func compareInts(a, b int, order string) bool {
	if order == "descending" {
		return a > b
	}
	return a < b
}

// Row is one exported match, assembled per spec.md §6 "Result row
// (exporter contract)".
type Row struct {
	Index             int
	TargetLocus       string
	TargetSnippet     string
	SourceLocus       string
	SourceSnippet     string
	MatchedFeatures   string
	NormalizedScore   float64
	RawScore          float64
}

// BuildRows assembles the Result Row view of a page of matches. index
// is the sequential position of the first row within the overall
// result set (spec.md §6 "sequential index"); maxScore is the search's
// MaxScore, used for the 0-10 normalized score (spec.md §6 "raw × 10 /
// max-score-of-search").
func BuildRows(matches []store.Match, firstIndex int, maxScore float64, markup string) []Row {
	rows := make([]Row, len(matches))
	for i, m := range matches {
		rows[i] = BuildRow(m, firstIndex+i, maxScore, markup)
	}
	return rows
}

// BuildRow assembles a single Result Row.
func BuildRow(m store.Match, index int, maxScore float64, markup string) Row {
	var normalized float64
	if maxScore > 0 {
		normalized = m.Score * 10 / maxScore
	}

	var sourcePositions, targetPositions []int
	for _, p := range m.Highlights {
		sourcePositions = append(sourcePositions, p.Source)
		targetPositions = append(targetPositions, p.Target)
	}

	return Row{
		Index:           index,
		TargetLocus:     m.TargetTag,
		TargetSnippet:   Highlight(m.TargetSnippet, targetPositions, markup),
		SourceLocus:     m.SourceTag,
		SourceSnippet:   Highlight(m.SourceSnippet, sourcePositions, markup),
		MatchedFeatures: strings.Join(m.MatchedTokens, ";"),
		NormalizedScore: normalized,
		RawScore:        m.Score,
	}
}
