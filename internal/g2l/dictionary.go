// Package g2l implements the Greek-to-Latin Matcher (spec.md §4.6): a
// static bilingual lemma dictionary and the translation-table preparation
// that lets the Matcher Core (internal/match) run a Greek source against
// a Latin target corpus.
package g2l

import (
	_ "embed"
	"encoding/json"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
)

//go:embed assets/seed.json
var seedDictionary []byte

// Dictionary is the *G→L* bilingual thesaurus of spec.md §4.6: a mapping
// from Greek lemma tokens to the list of Latin lemma tokens they
// translate to. The spec mandates no particular on-disk format for
// reimplementation ("shipped as compressed pickled data... no particular
// format for reimplementation"); this implementation ships it as JSON.
type Dictionary struct {
	entries map[string][]string
}

// LoadDictionary parses a JSON object of {"greek lemma": ["latin lemma", ...]}.
func LoadDictionary(data []byte) (*Dictionary, error) {
	var entries map[string][]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, tesserr.Internal("failed to parse greek-to-latin dictionary", err)
	}
	return &Dictionary{entries: entries}, nil
}

// SeedDictionary returns the small bundled default dictionary. Production
// deployments load a larger thesaurus file via LoadDictionary.
func SeedDictionary() (*Dictionary, error) {
	return LoadDictionary(seedDictionary)
}

// Translate returns the Latin lemma tokens a Greek lemma translates to.
func (d *Dictionary) Translate(greekLemma string) []string {
	return d.entries[greekLemma]
}

// Lemmas returns every Greek lemma the dictionary covers.
func (d *Dictionary) Lemmas() []string {
	out := make([]string, 0, len(d.entries))
	for lemma := range d.entries {
		out = append(out, lemma)
	}
	return out
}
