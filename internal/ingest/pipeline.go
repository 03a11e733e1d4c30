// Package ingest builds the Feature Registry, Unit Index and Bigram
// Store entries for a text from its tagged input lines, grounded on the
// teacher's internal/index.Runner staged-pipeline shape (scan -> chunk
// -> embed -> index) generalized to tokenize -> intern -> segment ->
// persist -> bigram (spec.md §4.2, §10.2).
package ingest

import (
	"context"
	"sort"

	"github.com/tesserae-go/tesserae/internal/bigram"
	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/internal/unit"
	"github.com/tesserae-go/tesserae/pkg/tessfile"
)

// allKinds lists every feature kind a bigram shard is kept for; a
// multitext search may be requested against any of these (spec.md §4.8
// parameterizes the Multitext Engine by feature kind).
var allKinds = []store.FeatureKind{
	store.FeatureKindForm,
	store.FeatureKindLemmata,
	store.FeatureKindSound,
	store.FeatureKindSemantic,
	store.FeatureKindSemanticLemmata,
}

// Request is one text's ingest input: the Text record to create
// (caller sets ID/Language/Author/Title/Year/IsProse/Hash/Path/
// UnitTypes) and its already-parsed tagged lines.
type Request struct {
	Text  *store.Text
	Lines []tessfile.Line
}

// Pipeline drives a text from "init" through "running" to "done" or
// "failed" (spec.md §3 "ingestion status"), wiring the Feature
// Registry, Unit Index and Bigram Store together.
type Pipeline struct {
	store     *store.SQLiteStore
	units     *unit.Index
	registry  *feature.Registry
	bigrams   *bigram.Store
	tokenizer Tokenizer
}

// New wires the ingest Pipeline's collaborators.
func New(s *store.SQLiteStore, units *unit.Index, registry *feature.Registry, bigrams *bigram.Store, tokenizer Tokenizer) *Pipeline {
	return &Pipeline{store: s, units: units, registry: registry, bigrams: bigrams, tokenizer: tokenizer}
}

// Ingest runs one text to completion. A failure during tokenization,
// interning, or persistence is recorded on the Text's status rather
// than rolling back already-saved state (spec.md §7 "IngestError ...
// propagates to the text's ingestion status with the stack trace as
// message").
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*store.Text, error) {
	text := req.Text
	if err := p.store.SaveText(ctx, text); err != nil {
		return nil, err
	}
	if err := p.store.UpdateTextStatus(ctx, text.ID, store.TextStatusRunning, ""); err != nil {
		return nil, err
	}

	runErr := p.run(ctx, text, req.Lines)
	if runErr != nil {
		_ = p.store.UpdateTextStatus(ctx, text.ID, store.TextStatusFailed, runErr.Error())
		if tesserr.IsFatal(runErr) {
			return nil, runErr
		}
		return p.store.GetText(ctx, text.ID)
	}
	if err := p.store.UpdateTextStatus(ctx, text.ID, store.TextStatusDone, ""); err != nil {
		return nil, err
	}
	return p.store.GetText(ctx, text.ID)
}

func (p *Pipeline) run(ctx context.Context, text *store.Text, lines []tessfile.Line) error {
	words := wordTokens(lines)
	if len(words) == 0 {
		return tesserr.Ingest("no word tokens produced from input lines", nil)
	}

	raw := make([]string, len(words))
	for i, w := range words {
		raw[i] = w.Text
	}
	features, err := p.tokenizer.Tokenize(ctx, text.Language, raw)
	if err != nil {
		return tesserr.Ingest("tokenizer failed", err)
	}
	if len(features) != len(words) {
		return tesserr.Ingest("tokenizer returned a feature set for a different number of words than it was given", nil)
	}

	byIndex, err := p.internAll(ctx, text, features)
	if err != nil {
		return err
	}

	for _, unitType := range text.UnitTypes {
		var spans []unit.Span
		switch unitType {
		case store.UnitTypeLine:
			spans = unit.SegmentLines(words)
		case store.UnitTypePhrase:
			spans = unit.SegmentPhrases(words)
		default:
			continue
		}

		units := unit.BuildUnits(spans, byIndex)
		if err := p.units.PutTextUnits(ctx, text.ID, unitType, units); err != nil {
			return err
		}
		got, err := p.units.UnitsOf(ctx, text.ID, unitType)
		if err != nil {
			return err
		}
		if err := p.writeBigrams(text.ID, unitType, got); err != nil {
			return err
		}
	}
	return nil
}

// internAll interns every candidate feature token at every word
// position, returning the per-position, per-kind index sets BuildUnits
// needs. Feature occurrence counts are incremented once per position a
// token appears at (spec.md §4.1 "Carries per-text occurrence counts").
func (p *Pipeline) internAll(ctx context.Context, text *store.Text, features []WordFeatures) (map[int]map[store.FeatureKind][]int, error) {
	byIndex := make(map[int]map[store.FeatureKind][]int, len(features))
	for i, wf := range features {
		kinds := make(map[store.FeatureKind][]int)

		if wf.Form != "" {
			idx, err := p.intern(ctx, text, store.FeatureKindForm, wf.Form)
			if err != nil {
				return nil, err
			}
			kinds[store.FeatureKindForm] = []int{idx}
		}

		lemmaIdx, err := p.internMany(ctx, text, store.FeatureKindLemmata, wf.Lemmata)
		if err != nil {
			return nil, err
		}
		if len(lemmaIdx) > 0 {
			kinds[store.FeatureKindLemmata] = lemmaIdx
		}

		soundIdx, err := p.internMany(ctx, text, store.FeatureKindSound, wf.Sound)
		if err != nil {
			return nil, err
		}
		if len(soundIdx) > 0 {
			kinds[store.FeatureKindSound] = soundIdx
		}

		semanticIdx, err := p.internMany(ctx, text, store.FeatureKindSemantic, wf.Semantic)
		if err != nil {
			return nil, err
		}
		if len(semanticIdx) > 0 {
			kinds[store.FeatureKindSemantic] = semanticIdx
		}

		// Open Question (b): "semantic+lemmata" is the union of the lemma
		// and synonym token sets at this position, interned under its own
		// namespace so it behaves like any other feature kind downstream.
		union := unionStrings(wf.Lemmata, wf.Semantic)
		unionIdx, err := p.internMany(ctx, text, store.FeatureKindSemanticLemmata, union)
		if err != nil {
			return nil, err
		}
		if len(unionIdx) > 0 {
			kinds[store.FeatureKindSemanticLemmata] = unionIdx
		}

		if len(kinds) > 0 {
			byIndex[i] = kinds
		}
	}
	return byIndex, nil
}

func (p *Pipeline) intern(ctx context.Context, text *store.Text, kind store.FeatureKind, token string) (int, error) {
	idx, err := p.registry.Intern(ctx, text.Language, kind, token)
	if err != nil {
		return 0, tesserr.Ingest("failed to intern feature", err)
	}
	if err := p.registry.CountInc(ctx, text.Language, kind, idx, text.ID, 1); err != nil {
		return 0, tesserr.Ingest("failed to record feature occurrence", err)
	}
	return idx, nil
}

func (p *Pipeline) internMany(ctx context.Context, text *store.Text, kind store.FeatureKind, tokens []string) ([]int, error) {
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		idx, err := p.intern(ctx, text, kind, tok)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// writeBigrams records every positionally-ordered 2-combination of
// feature instances within each unit, for every feature kind, keeping
// only the lexicographically first position pair per canonical
// (min-idx, max-idx) (spec.md §3 BigramEntry).
func (p *Pipeline) writeBigrams(textID string, unitType store.UnitType, units []store.Unit) error {
	w := p.bigrams.NewWriter(textID, unitType)
	defer func() { _ = w.Close() }()

	for _, u := range units {
		for _, kind := range allKinds {
			pf := store.PositionsFeatures(u, kind)
			type occurrence struct {
				position int
				index    int
			}
			var flat []occurrence
			for _, positionFeatures := range pf {
				for _, idx := range positionFeatures.Indices {
					flat = append(flat, occurrence{position: positionFeatures.Position, index: idx})
				}
			}
			sort.Slice(flat, func(i, j int) bool { return flat[i].position < flat[j].position })

			seen := make(map[[2]int]bool)
			for i := 0; i < len(flat); i++ {
				for j := i + 1; j < len(flat); j++ {
					if flat[i].position == flat[j].position {
						continue
					}
					a, b := flat[i].index, flat[j].index
					if a == b {
						continue
					}
					min, max := a, b
					if min > max {
						min, max = max, min
					}
					key := [2]int{min, max}
					if seen[key] {
						continue
					}
					seen[key] = true
					if err := w.Record(kind, a, b, flat[i].position, flat[j].position, u.ID); err != nil {
						return tesserr.Ingest("failed to record bigram", err)
					}
				}
			}
		}
	}
	return w.Flush()
}
