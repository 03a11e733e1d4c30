package unit

import "strings"

// phraseDelimiters are the punctuation marks that end a phrase unit
// (spec.md §4.2): ".", "?", "!", ";", ":". Consecutive delimiters never
// produce an empty phrase.
var phraseDelimiters = map[rune]bool{
	'.': true, '?': true, '!': true, ';': true, ':': true,
}

// Token is one word position of a text, annotated with the locus tag of
// the source line it came from and whether it is immediately followed by
// a phrase delimiter.
type Token struct {
	Text        string
	Tag         string
	PhraseBreak bool
}

// Span is a contiguous run of positions destined for one Unit: the locus
// tags it covers, the token text in order, a rendered snippet, and the
// original token-stream index each position came from (so a caller
// holding a parallel per-index feature slice can re-attach it after
// segmentation).
type Span struct {
	Tags    []string
	Tokens  []string
	Indices []int
}

// Snippet joins a span's tokens into a human-readable rendering.
func (s Span) Snippet() string {
	return strings.Join(s.Tokens, " ")
}

// SegmentLines groups tokens into line units: one unit per source line,
// in the order the lines were supplied. Lines with zero tokens are
// dropped (spec.md §4.2 "Empty lines are dropped").
func SegmentLines(tokens []Token) []Span {
	var spans []Span
	var cur *Span
	var curTag string
	seenTag := false

	for i, tok := range tokens {
		if !seenTag || tok.Tag != curTag {
			if cur != nil && len(cur.Tokens) > 0 {
				spans = append(spans, *cur)
			}
			cur = &Span{Tags: []string{tok.Tag}}
			curTag = tok.Tag
			seenTag = true
		}
		cur.Tokens = append(cur.Tokens, tok.Text)
		cur.Indices = append(cur.Indices, i)
	}
	if cur != nil && len(cur.Tokens) > 0 {
		spans = append(spans, *cur)
	}
	return spans
}

// SegmentPhrases walks the token stream and breaks a new phrase unit
// after every token marked PhraseBreak (spec.md §4.2 "phrases break on
// any of ., ?, !, ;, :"). Consecutive delimiters do not create empty
// phrases, and a trailing partial phrase holding fewer than two word
// tokens is dropped.
func SegmentPhrases(tokens []Token) []Span {
	var spans []Span
	var cur Span
	tagSeen := map[string]bool{}

	flush := func() {
		if len(cur.Tokens) == 0 {
			return
		}
		spans = append(spans, cur)
		cur = Span{}
		tagSeen = map[string]bool{}
	}

	for i, tok := range tokens {
		if !tagSeen[tok.Tag] {
			cur.Tags = append(cur.Tags, tok.Tag)
			tagSeen[tok.Tag] = true
		}
		cur.Tokens = append(cur.Tokens, tok.Text)
		cur.Indices = append(cur.Indices, i)
		if tok.PhraseBreak {
			flush()
		}
	}
	// Trailing partial phrase: drop if it holds fewer than 2 word tokens.
	if len(cur.Tokens) >= 2 {
		spans = append(spans, cur)
	}
	return spans
}

// IsPhraseDelimiter reports whether r ends a phrase (spec.md §4.2).
func IsPhraseDelimiter(r rune) bool {
	return phraseDelimiters[r]
}
