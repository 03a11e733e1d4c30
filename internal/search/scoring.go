package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tesserae-go/tesserae/internal/match"
	"github.com/tesserae-go/tesserae/internal/store"
)

// partitionSize is the number of source units handed to one scoring
// goroutine at a time (spec.md §5 "parallelized by partitioning source
// units across threads"). A fixed size keeps partition count predictable
// without a tuning knob most corpora will never need.
const partitionSize = 256

// scoreAll runs the Matcher Core and Scorer over every source/target unit
// pair, partitioning the source side across goroutines joined with
// errgroup (spec.md §5: "each thread computes scores for its partition
// into a thread-local vector and the results are concatenated at the
// end"). No mutable state is shared across partitions; sourceFeatures,
// targetFeatures and cfg are read-only once scoreAll is called.
func scoreAll(ctx context.Context, sourceUnits, targetUnits []store.Unit, sourceFeatures, targetFeatures []match.UnitFeatures, cfg scoreConfig) ([]store.Match, error) {
	n := len(sourceFeatures)
	if n == 0 || len(targetFeatures) == 0 {
		return nil, nil
	}

	numPartitions := (n + partitionSize - 1) / partitionSize
	partials := make([][]store.Match, numPartitions)

	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < numPartitions; p++ {
		p := p
		start := p * partitionSize
		end := start + partitionSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			local, err := scorePartition(sourceUnits, targetUnits, sourceFeatures[start:end], start, targetFeatures, cfg)
			if err != nil {
				return err
			}
			partials[p] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matches []store.Match
	for _, part := range partials {
		matches = append(matches, part...)
	}
	sortMatches(matches)
	return matches, nil
}

// scorePartition runs candidate generation and scoring for one contiguous
// slice of source units. offset translates a candidate's slice-local
// SourceIdx back into sourceUnits' absolute index.
func scorePartition(sourceUnits, targetUnits []store.Unit, srcSlice []match.UnitFeatures, offset int, targetFeatures []match.UnitFeatures, cfg scoreConfig) ([]store.Match, error) {
	candidates := match.FindCandidates(srcSlice, targetFeatures)

	var matches []store.Match
	for _, c := range candidates {
		si := c.SourceIdx + offset
		src := srcSlice[c.SourceIdx]
		tgt := targetFeatures[c.TargetIdx]

		shared := match.SharedFeatures(src, tgt)
		if len(shared) < 2 {
			// Edge-case policy (spec.md §4.4): a candidate's recovered
			// shared-feature set can drop below 2 if stopwords slipped
			// in during an update; discard defensively.
			continue
		}
		pairs := match.RecoverPositionPairs(src, tgt, shared)
		srcAt, tgtAt := match.SidePositions(pairs)

		scored, ok, err := match.Score(srcAt, tgtAt, cfg.basis, cfg.maxDistance, cfg.minScore,
			cfg.srcFreqFor(si), cfg.tgtFreqFor(c.TargetIdx))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		tokens, err := tokensOf(shared, cfg.tokenOf)
		if err != nil {
			return nil, err
		}

		matches = append(matches, store.Match{
			SourceUnitID:  sourceUnits[si].ID,
			TargetUnitID:  targetUnits[c.TargetIdx].ID,
			SourceTag:     firstTag(sourceUnits[si].Tags),
			TargetTag:     firstTag(targetUnits[c.TargetIdx].Tags),
			SourceSnippet: sourceUnits[si].Snippet,
			TargetSnippet: targetUnits[c.TargetIdx].Snippet,
			MatchedTokens: tokens,
			Highlights:    toHighlights(pairs),
			Score:         scored.Score,
		})
	}
	return matches, nil
}

func tokensOf(featureIndices []int, tokenOf func(int) (string, error)) ([]string, error) {
	tokens := make([]string, 0, len(featureIndices))
	for _, idx := range featureIndices {
		token, err := tokenOf(idx)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func toHighlights(pairs []match.PositionPair) []store.PositionPair {
	out := make([]store.PositionPair, len(pairs))
	for i, p := range pairs {
		out[i] = store.PositionPair{Source: p.Source, Target: p.Target}
	}
	return out
}

// compareMatches is the deterministic tie-break of spec.md §4.4/§5:
// descending score, ties broken by ascending (source_unit_id,
// target_unit_id).
func compareMatches(a, b store.Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SourceUnitID != b.SourceUnitID {
		return a.SourceUnitID < b.SourceUnitID
	}
	return a.TargetUnitID < b.TargetUnitID
}

func sortMatches(matches []store.Match) {
	sort.Slice(matches, func(i, j int) bool { return compareMatches(matches[i], matches[j]) })
}
