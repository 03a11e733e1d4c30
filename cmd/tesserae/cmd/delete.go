package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesserae-go/tesserae/internal/output"
)

type deleteOptions struct {
	text   string
	search string
}

func newDeleteCmd() *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a text or a cached search",
		Long: `delete removes a text (with its units, per-text feature counts,
the searches that reference it, and its bigram rows; interned features
are kept) or a single cached search, by ID.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDelete(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "ID of a text to delete")
	cmd.Flags().StringVar(&opts.search, "search", "", "ID of a cached search to delete")

	return cmd
}

func runDelete(cmd *cobra.Command, opts deleteOptions) error {
	if opts.text == "" && opts.search == "" {
		return fmt.Errorf("one of --text or --search is required")
	}
	if opts.text != "" && opts.search != "" {
		return fmt.Errorf("only one of --text or --search may be given at a time")
	}

	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		ctx := cmd.Context()
		if opts.text != "" {
			if err := e.store.DeleteText(ctx, opts.text); err != nil {
				return fmt.Errorf("failed to delete text: %w", err)
			}
			if err := e.bigrams.Unregister(ctx, opts.text); err != nil {
				return fmt.Errorf("failed to delete text's bigram rows: %w", err)
			}
			out.Successf("deleted text %s", opts.text)
			return nil
		}

		if err := e.lc.Delete(ctx, opts.search); err != nil {
			return fmt.Errorf("failed to delete search: %w", err)
		}
		out.Successf("deleted search %s", opts.search)
		return nil
	})
}
