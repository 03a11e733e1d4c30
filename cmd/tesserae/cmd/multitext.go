package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesserae-go/tesserae/internal/output"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/pkg/export"
)

type multitextOptions struct {
	resultsID string
	scope     []string
	feature   string
	unitType  string
	sortBy    string
	sortOrder string
	page      int
	perPage   int
	markup    string
}

func newMultitextCmd() *cobra.Command {
	var opts multitextOptions

	cmd := &cobra.Command{
		Use:   "multitext",
		Short: "Run a multitext search over a prior search's results",
		Long: `multitext takes the results of an already-completed vanilla search and,
for each matched pair, looks for a third text in --scope that shares the
same feature bigram with both the source and target unit, surfacing
allusions one text may be borrowing via an intermediate source
(spec.md §4.9 "Multitext search").`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMultitext(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.resultsID, "results", "", "ID of the completed vanilla search to run multitext over (required)")
	cmd.Flags().StringSliceVar(&opts.scope, "scope", nil, "Text IDs to search for corroborating third texts (required)")
	cmd.Flags().StringVar(&opts.feature, "feature", "lemmata", "Feature kind to match on")
	cmd.Flags().StringVar(&opts.unitType, "unit-type", "line", "Unit type of the scope texts")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", "score", "Sort by: score, source_tag, target_tag, matched_features")
	cmd.Flags().StringVar(&opts.sortOrder, "sort-order", "descending", "Sort order: ascending or descending")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number (1-indexed)")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 100, "Results per page")
	cmd.Flags().StringVar(&opts.markup, "markup", "", "Markup to wrap matched words with in snippets, e.g. **")

	return cmd
}

func runMultitext(cmd *cobra.Command, opts multitextOptions) error {
	if opts.resultsID == "" {
		return fmt.Errorf("--results is required")
	}
	if len(opts.scope) == 0 {
		return fmt.Errorf("--scope requires at least one text ID")
	}
	kind, err := parseFeatureKind(opts.feature)
	if err != nil {
		return err
	}
	unitType, err := parseUnitTypes([]string{opts.unitType})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		ctx := cmd.Context()
		var sr *store.Search
		jobErr := e.searches.Submit(ctx, func(ctx context.Context) error {
			var runErr error
			sr, runErr = e.lc.RunMultitext(ctx, opts.resultsID, opts.scope, kind, unitType[0])
			return runErr
		})
		if jobErr != nil {
			return fmt.Errorf("multitext search failed: %w", jobErr)
		}
		if sr.Status == store.SearchStatusFailed {
			return fmt.Errorf("multitext search failed: %s", sr.Message)
		}

		matches, total, err := e.lc.Retrieve(ctx, sr.ID, opts.sortBy, opts.sortOrder, opts.perPage, opts.page)
		if err != nil {
			return fmt.Errorf("failed to retrieve results: %w", err)
		}
		if opts.sortBy != "score" {
			export.SortMatches(matches, opts.sortBy, opts.sortOrder)
		}

		firstIndex := (opts.page-1)*opts.perPage + 1
		rows := export.BuildRows(matches, firstIndex, sr.MaxScore, opts.markup)
		return printRows(cmd, out, "text", total, rows)
	})
}
