package search

import (
	"context"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/tesserae-go/tesserae/internal/store"
)

// RunMultitext executes a multitext search keyed to a prior (vanilla or
// greek_to_latin) search's results, joining that search's matches
// against the Bigram Store over the given scope of corpus texts (spec.md
// §4.8, §4.9 "ResultsID ... so a multitext search can key off a vanilla
// search"). Reuses a cached non-failed multitext search with the same
// canonical key, exactly as Execute does for vanilla searches.
func (l *Lifecycle) RunMultitext(ctx context.Context, resultsSearchID string, scopeTextIDs []string, kind store.FeatureKind, unitType store.UnitType) (*store.Search, error) {
	origin, err := l.store.GetSearch(ctx, resultsSearchID)
	if err != nil {
		return nil, err
	}
	if origin.Type == store.SearchTypeMultitext {
		return nil, tesserr.Validation("multitext cannot key off another multitext search", nil)
	}

	params := origin.Params
	params.Method.Name = store.SearchTypeMultitext
	params.Method.Feature = kind
	params.Source.UnitType = unitType

	cacheKey := store.CanonicalKey(store.SearchTypeMultitext, params)
	if id, found, err := l.store.FindCachedSearch(ctx, cacheKey); err != nil {
		return nil, err
	} else if found {
		if err := l.store.TouchSearch(ctx, id); err != nil {
			return nil, err
		}
		return l.store.GetSearch(ctx, id)
	}

	sr := &store.Search{
		Type:      store.SearchTypeMultitext,
		ResultsID: resultsSearchID,
		Params:    params,
		Stages:    initialStages(multitextStageNames),
	}
	sources := make([]store.SearchSource, 0, len(scopeTextIDs))
	for _, textID := range scopeTextIDs {
		sources = append(sources, store.SearchSource{TextID: textID, Role: "scope"})
	}
	if err := l.store.CreateSearch(ctx, sr, sources); err != nil {
		return nil, err
	}

	if err := l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusRunning, ""); err != nil {
		return nil, err
	}

	srcText, err := l.store.GetText(ctx, origin.Params.Source.TextID)
	if err != nil {
		_ = l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusFailed, err.Error())
		return l.store.GetSearch(ctx, sr.ID)
	}

	runErr := l.runMultitext(ctx, sr, origin, srcText.Language, kind, unitType, scopeTextIDs)
	if runErr != nil {
		_ = l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusFailed, runErr.Error())
		if tesserr.IsFatal(runErr) {
			return nil, runErr
		}
	}
	return l.store.GetSearch(ctx, sr.ID)
}

func (l *Lifecycle) runMultitext(ctx context.Context, sr, origin *store.Search, language string, kind store.FeatureKind, unitType store.UnitType, scopeTextIDs []string) error {
	matches, _, err := l.store.ListMatches(ctx, origin.ID, "score", "desc", maxMultitextMatches, 1)
	if err != nil {
		return err
	}
	if err := l.advance(ctx, sr, 0, 1.0); err != nil {
		return err
	}

	results, err := l.multi.Run(ctx, language, kind, unitType, matches, scopeTextIDs)
	if err != nil {
		return err
	}
	if err := l.advance(ctx, sr, 1, 1.0); err != nil {
		return err
	}

	// The multitext search carries its own Matches row per source match
	// so MultiResults (which foreign-key to matches, not searches) have
	// somewhere to attach; these mirror the origin's matches verbatim.
	mirrored := make([]store.Match, len(matches))
	copy(mirrored, matches)
	if err := l.store.SaveMatches(ctx, sr.ID, mirrored); err != nil {
		return err
	}
	for i, mr := range results {
		if len(mr) == 0 {
			continue
		}
		if err := l.store.SaveMultiResults(ctx, mirrored[i].ID, mr); err != nil {
			return err
		}
	}
	if err := l.advance(ctx, sr, 2, 1.0); err != nil {
		return err
	}
	return l.store.UpdateSearchStatus(ctx, sr.ID, store.SearchStatusDone, "")
}

// maxMultitextMatches bounds how many of a prior search's top matches a
// multitext run joins against the corpus; the prior search's own paging
// already orders by score descending, so this is the same "most
// significant matches first" window an exporter would page through.
const maxMultitextMatches = 10000
