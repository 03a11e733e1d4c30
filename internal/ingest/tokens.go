package ingest

import (
	"strings"

	"github.com/tesserae-go/tesserae/internal/unit"
	"github.com/tesserae-go/tesserae/pkg/tessfile"
)

// wordTokens mechanically splits a tagged text's parsed lines into a
// word-level unit.Token stream: whitespace-delimited words tagged with
// their source locus, each intra-line `/` break treated as an
// additional whitespace boundary (spec.md §6), and a word is marked
// PhraseBreak if it ends with a phrase delimiter (spec.md §4.2). This is
// plain text-format parsing, not linguistics — the external Tokenizer
// is still the only thing that assigns form/lemmata/sound/semantic
// features to each resulting position.
func wordTokens(lines []tessfile.Line) []unit.Token {
	var out []unit.Token
	for _, line := range lines {
		for _, segment := range line.Segments() {
			for _, word := range strings.Fields(segment) {
				out = append(out, unit.Token{
					Text:        word,
					Tag:         line.Locus,
					PhraseBreak: endsInPhraseDelimiter(word),
				})
			}
		}
	}
	return out
}

// trailingQuotes are punctuation marks that may follow a phrase
// delimiter without hiding it, e.g. `dixit."` still ends a phrase.
var trailingQuotes = map[rune]bool{'"': true, '\'': true, ')': true, ']': true}

func endsInPhraseDelimiter(word string) bool {
	r := []rune(word)
	for i := len(r) - 1; i >= 0; i-- {
		if trailingQuotes[r[i]] {
			continue
		}
		return unit.IsPhraseDelimiter(r[i])
	}
	return false
}
