// Package unit implements the Unit Index (spec.md §4.2): segmentation of a
// text into line and phrase units, and the (text, unit-type, ordinal)
// store that serves them back in order.
package unit

import (
	"context"

	"github.com/tesserae-go/tesserae/internal/store"
)

// Index wraps the unit-table store methods behind the Unit Index
// contract: put_text_units, units_of, positions_features (spec.md §4.2).
type Index struct {
	store *store.SQLiteStore
}

// New wraps store behind the Unit Index contract.
func New(s *store.SQLiteStore) *Index {
	return &Index{store: s}
}

// PutTextUnits persists the units produced by segmenting one (text,
// unit-type) pair, replacing any prior units of the same pair (spec.md
// §4.2 "put_text_units").
func (idx *Index) PutTextUnits(ctx context.Context, textID string, unitType store.UnitType, units []store.Unit) error {
	return idx.store.PutTextUnits(ctx, textID, unitType, units)
}

// UnitsOf returns every unit of (text, unit-type) in ascending ordinal
// order (spec.md §4.2 "units_of").
func (idx *Index) UnitsOf(ctx context.Context, textID string, unitType store.UnitType) ([]store.Unit, error) {
	return idx.store.UnitsOf(ctx, textID, unitType)
}

// Get fetches a single unit by id.
func (idx *Index) Get(ctx context.Context, id int64) (*store.Unit, error) {
	return idx.store.GetUnit(ctx, id)
}

// PositionsFeatures returns a unit's (position, feature-indices) pairs for
// one feature kind, in position order (spec.md §4.2 "positions_features").
func (idx *Index) PositionsFeatures(u store.Unit, kind store.FeatureKind) []store.PositionFeatures {
	return store.PositionsFeatures(u, kind)
}

// BuildUnits converts segmentation spans into persistable store.Unit
// drafts, ordinal 0-based per (text, unit-type). byIndex maps an
// original token-stream index (Span.Indices) to that position's
// interned feature indices per kind, once the Feature Registry has
// interned every position's tokens; pass nil to build units with empty
// feature tables (e.g. in tests that only exercise segmentation).
func BuildUnits(spans []Span, byIndex map[int]map[store.FeatureKind][]int) []store.Unit {
	units := make([]store.Unit, 0, len(spans))
	for i, sp := range spans {
		tokens := make([]int, len(sp.Tokens))
		features := make(map[store.FeatureKind]map[int][]int)
		for j := range sp.Tokens {
			tokens[j] = j
			if byIndex == nil {
				continue
			}
			orig := sp.Indices[j]
			for kind, indices := range byIndex[orig] {
				if features[kind] == nil {
					features[kind] = make(map[int][]int)
				}
				features[kind][j] = indices
			}
		}
		units = append(units, store.Unit{
			Ordinal:  i,
			Tags:     sp.Tags,
			Snippet:  sp.Snippet(),
			Tokens:   tokens,
			Features: features,
		})
	}
	return units
}
