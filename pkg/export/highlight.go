package export

import (
	"sort"
	"strings"
	"unicode"
)

// Highlight wraps the word tokens at matchIndices in a snippet with
// markup, ported from utils/exports/highlight.py's highlight_matches:
// split the snippet into word and non-word runs, count only the word
// runs against matchIndices, and wrap a matched word run on both sides.
func Highlight(snippet string, matchIndices []int, markup string) string {
	if len(matchIndices) == 0 || markup == "" {
		return snippet
	}

	indices := append([]int(nil), matchIndices...)
	sort.Ints(indices)

	tokens := splitWordRuns(snippet)
	var b strings.Builder
	wordIdx := 0
	nextMatch := indices[0]
	indices = indices[1:]

	for _, tok := range tokens {
		if isWordRun(tok) {
			if wordIdx == nextMatch {
				b.WriteString(markup)
				b.WriteString(tok)
				b.WriteString(markup)
				if len(indices) > 0 {
					nextMatch = indices[0]
					indices = indices[1:]
				}
			} else {
				b.WriteString(tok)
			}
			wordIdx++
		} else {
			b.WriteString(tok)
		}
	}
	return b.String()
}

// splitWordRuns splits s into alternating word and non-word runs,
// where a non-word run is whitespace, digits, or the punctuation set
// the original recognizes as a token boundary (`.,;?!-&` plus
// whitespace); everything else (including diacritics) counts as part
// of a word.
func splitWordRuns(s string) []string {
	var runs []string
	var cur strings.Builder
	var curIsWord bool
	started := false

	flush := func() {
		if cur.Len() > 0 {
			runs = append(runs, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		word := isWordRune(r)
		if started && word != curIsWord {
			flush()
		}
		cur.WriteRune(r)
		curIsWord = word
		started = true
	}
	flush()
	return runs
}

func isWordRune(r rune) bool {
	if unicode.IsSpace(r) || unicode.IsDigit(r) {
		return false
	}
	switch r {
	case '.', ',', ';', '?', '!', '-', '&':
		return false
	}
	return true
}

func isWordRun(tok string) bool {
	for _, r := range tok {
		return isWordRune(r)
	}
	return false
}
