package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/smoke"
)

func newSmokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Check that the embedding provider ranks the canned mascot example first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := internal.Setup(globalOpts, "smoke")
			if err != nil {
				return err
			}
			defer app.Close()

			enc, err := app.NewEncoder()
			if err != nil {
				return err
			}
			res, err := smoke.Run(cmd.Context(), enc, app.Log)
			if res != nil {
				printRanking(cmd, res.Indices, res.Scores, res.Texts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "smoke test passed")
			return nil
		},
	}
}

func printRanking(cmd *cobra.Command, indices []int, scores []float32, texts []string) {
	out := cmd.OutOrStdout()
	for i := range indices {
		fmt.Fprintf(out, "%2d. [%d] %.4f  %s\n", i+1, indices[i], scores[i], texts[i])
	}
}
