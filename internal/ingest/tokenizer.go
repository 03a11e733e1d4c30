package ingest

import "context"

// WordFeatures is one word position's candidate feature tokens per kind,
// as produced by the external normalizer/lemmatizer (spec.md §1
// "tokenization itself is an external collaborator — the language-
// specific normalizer and lemmatizer are treated as black boxes").
// Punctuation/whitespace positions carry every field empty (spec.md §3
// Token "Punctuation/whitespace tokens ... carry an empty feature set").
type WordFeatures struct {
	Form     string
	Lemmata  []string
	Sound    []string
	Semantic []string
}

// Tokenizer is the single normalizer entry point this repository calls
// at ingest (spec.md §9 Open Question (a): one codepath, not the
// source's second "languages/" variant). Implementations wrap whatever
// language-specific lemmatizer/phonetic-encoder/synonym-lookup a
// deployment uses; this package never inspects word content itself.
type Tokenizer interface {
	Tokenize(ctx context.Context, language string, words []string) ([]WordFeatures, error)
}
