package search

import (
	"context"
	"sync"
	"time"

	"github.com/tesserae-go/tesserae/internal/bigram"
	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/freq"
	"github.com/tesserae-go/tesserae/internal/g2l"
	"github.com/tesserae-go/tesserae/internal/match"
	"github.com/tesserae-go/tesserae/internal/multitext"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/internal/unit"
)

// RetentionWindow is the 28-day search-cache retention period the GC
// sweep enforces (spec.md §3 "28 days", SPEC_FULL.md §10.3).
const RetentionWindow = 28 * 24 * time.Hour

// Lifecycle drives a Search from "init" through "running" to "done" or
// "failed" (spec.md §4.9), wiring together every domain package this
// repository builds.
type Lifecycle struct {
	store    *store.SQLiteStore
	units    *unit.Index
	registry *feature.Registry
	freqSvc  *freq.Service
	bigrams  *bigram.Store
	multi    *multitext.Engine

	g2lOnce   sync.Once
	g2lTables *g2l.Tables
	g2lErr    error
}

// New wires the Search Lifecycle's collaborators.
func New(s *store.SQLiteStore, units *unit.Index, registry *feature.Registry, freqSvc *freq.Service, bigrams *bigram.Store) *Lifecycle {
	return &Lifecycle{
		store:    s,
		units:    units,
		registry: registry,
		freqSvc:  freqSvc,
		bigrams:  bigrams,
		multi:    multitext.New(bigrams, registry, freqSvc),
	}
}

func (l *Lifecycle) greekTables(ctx context.Context) (*g2l.Tables, error) {
	l.g2lOnce.Do(func() {
		dict, err := g2l.SeedDictionary()
		if err != nil {
			l.g2lErr = err
			return
		}
		l.g2lTables, l.g2lErr = g2l.Prepare(ctx, dict, l.registry)
	})
	return l.g2lTables, l.g2lErr
}

// Execute runs a vanilla or greek_to_latin search to completion, reusing
// a cached non-failed search with the same canonical key if one exists
// (spec.md §4.9 "Cache lookup").
func (l *Lifecycle) Execute(ctx context.Context, searchType store.SearchType, params store.SearchParams) (*store.Search, error) {
	if searchType != store.SearchTypeVanilla && searchType != store.SearchTypeGreekToLatin {
		return nil, tesserr.Validation("Execute only runs vanilla or greek_to_latin searches", nil)
	}
	if params.Method.MaxDistance <= 0 {
		return nil, tesserr.New(tesserr.ErrCodeInvalidMaxDistance, "max_distance must be positive", nil)
	}

	cacheKey := store.CanonicalKey(searchType, params)
	if id, found, err := l.store.FindCachedSearch(ctx, cacheKey); err != nil {
		return nil, err
	} else if found {
		if err := l.store.TouchSearch(ctx, id); err != nil {
			return nil, err
		}
		return l.store.GetSearch(ctx, id)
	}

	sr := &store.Search{Type: searchType, Params: params, Stages: initialStages(stageNames)}
	sources := []store.SearchSource{
		{TextID: params.Source.TextID, Role: "source"},
		{TextID: params.Target.TextID, Role: "target"},
	}
	if err := l.store.CreateSearch(ctx, sr, sources); err != nil {
		return nil, err
	}

	runErr := l.run(ctx, sr)
	if runErr != nil {
		message := runErr.Error()
		if tesserr.IsFatal(runErr) {
			// InternalError is always fatal to the job and must not be
			// swallowed — the caller (internal/async worker) logs it
			// with full context (spec.md §7 "InternalError ... must be
			// logged with full context").
			_ = l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusFailed, message)
			return nil, runErr
		}
		_ = l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusFailed, message)
	}
	return l.store.GetSearch(ctx, sr.ID)
}

func (l *Lifecycle) run(ctx context.Context, sr *store.Search) error {
	if err := l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusRunning, ""); err != nil {
		return err
	}

	sourceUnits, err := l.units.UnitsOf(ctx, sr.Params.Source.TextID, sr.Params.Source.UnitType)
	if err != nil {
		return err
	}
	targetUnits, err := l.units.UnitsOf(ctx, sr.Params.Target.TextID, sr.Params.Target.UnitType)
	if err != nil {
		return err
	}
	if err := l.advance(ctx, sr, 0, 1.0); err != nil {
		return err
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	var matches []store.Match
	if sr.Type == store.SearchTypeGreekToLatin {
		matches, err = l.runGreekToLatin(ctx, sr, sourceUnits, targetUnits)
	} else {
		matches, err = l.runVanilla(ctx, sr, sourceUnits, targetUnits)
	}
	if err != nil {
		return err
	}
	if err := l.advance(ctx, sr, 2, 1.0); err != nil {
		return err
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}
	if err := l.store.SaveMatches(ctx, sr.ID, matches); err != nil {
		return err
	}
	maxScore, err := l.store.GetMaxScore(ctx, sr.ID)
	if err != nil {
		return err
	}
	if err := l.store.SetSearchMaxScore(ctx, sr.ID, maxScore); err != nil {
		return err
	}
	if err := l.advance(ctx, sr, 3, 1.0); err != nil {
		return err
	}
	return l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusDone, "")
}

func (l *Lifecycle) runVanilla(ctx context.Context, sr *store.Search, sourceUnits, targetUnits []store.Unit) ([]store.Match, error) {
	srcText, err := l.store.GetText(ctx, sr.Params.Source.TextID)
	if err != nil {
		return nil, err
	}
	tgtText, err := l.store.GetText(ctx, sr.Params.Target.TextID)
	if err != nil {
		return nil, err
	}
	if srcText.Language != tgtText.Language {
		return nil, tesserr.New(tesserr.ErrCodeIncompatibleLang, "vanilla search requires source and target of the same language", nil)
	}
	language, kind := srcText.Language, sr.Params.Method.Feature

	stopwords, err := resolveStopwords(ctx, l.registry, l.freqSvc, l.store, language, kind,
		sr.Params.Method.Stopwords, sr.Params.Method.StopwordCount, sr.Params.Method.FreqBasis,
		[]string{sr.Params.Source.TextID, sr.Params.Target.TextID})
	if err != nil {
		return nil, err
	}
	if err := l.advance(ctx, sr, 1, 1.0); err != nil {
		return nil, err
	}

	sourceFeatures := buildUnitFeatures(sourceUnits, kind, stopwords)
	targetFeatures := buildUnitFeatures(targetUnits, kind, stopwords)

	srcTotal := totalWordPositions(sourceUnits)
	tgtTotal := totalWordPositions(targetUnits)

	cfg := scoreConfig{
		basis:       sr.Params.Method.DistanceBasis,
		maxDistance: sr.Params.Method.MaxDistance,
		minScore:    sr.Params.Method.MinScore,
		srcFreqFor: func(int) match.FrequencyLookup {
			return func(idx int) (float64, error) {
				return l.freqSvc.InverseFrequency(ctx, sr.Params.Method.FreqBasis, language, kind, idx, srcText.ID, srcTotal)
			}
		},
		tgtFreqFor: func(int) match.FrequencyLookup {
			return func(idx int) (float64, error) {
				return l.freqSvc.InverseFrequency(ctx, sr.Params.Method.FreqBasis, language, kind, idx, tgtText.ID, tgtTotal)
			}
		},
		tokenOf: func(idx int) (string, error) {
			return l.registry.LookupToken(ctx, language, kind, idx)
		},
	}
	return scoreAll(ctx, sourceUnits, targetUnits, sourceFeatures, targetFeatures, cfg)
}

func buildUnitFeatures(units []store.Unit, kind store.FeatureKind, stopwords map[int]bool) []match.UnitFeatures {
	out := make([]match.UnitFeatures, len(units))
	for i, u := range units {
		out[i] = match.BuildUnitFeatures(u.ID, toPositionMap(store.PositionsFeatures(u, kind)), stopwords)
	}
	return out
}

func (l *Lifecycle) advance(ctx context.Context, sr *store.Search, stageIdx int, completion float64) error {
	if stageIdx < len(sr.Stages) {
		sr.Stages[stageIdx].Completion = completion
	}
	if err := l.store.UpdateSearchStages(ctx, sr.ID, sr.Stages); err != nil {
		return err
	}
	return l.store.TouchSearch(ctx, sr.ID)
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return tesserr.Cancelled("search cancelled")
	default:
		return nil
	}
}

// Delete removes a search, cascading to a dependent multitext search
// keyed to its results-id (spec.md §4.9 "Deletion cascade").
func (l *Lifecycle) Delete(ctx context.Context, searchID string) error {
	return l.store.DeleteSearch(ctx, searchID)
}

// Sweep garbage-collects searches whose last_queried_at exceeds the
// 28-day retention window (spec.md §3, SPEC_FULL.md §10.3).
func (l *Lifecycle) Sweep(ctx context.Context) ([]string, error) {
	return l.store.SweepExpiredSearches(ctx, RetentionWindow)
}

// Retrieve pages a search's matches per the paging contract of spec.md
// §6. Ordering and paging are both done by the store's ListMatches; no
// natural-order re-sort happens here.
func (l *Lifecycle) Retrieve(ctx context.Context, searchID, sortBy, sortOrder string, perPage, pageNumber int) ([]store.Match, int, error) {
	if err := l.store.TouchSearch(ctx, searchID); err != nil {
		return nil, 0, err
	}
	return l.store.ListMatches(ctx, searchID, sortBy, sortOrder, perPage, pageNumber)
}
