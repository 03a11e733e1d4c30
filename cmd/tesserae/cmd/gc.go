package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesserae-go/tesserae/internal/output"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Sweep searches that have fallen outside the retention window",
		Long: `gc deletes every search, whatever its status, that has not been
re-requested within the retention window (spec.md §3, §4.8), freeing
the matches and shared-feature scratch space it holds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGC(cmd)
		},
	}
	return cmd
}

func runGC(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	return withEngine(func(e *engine) error {
		deleted, err := e.lc.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		out.Successf("swept %d expired searches", len(deleted))
		return nil
	})
}
