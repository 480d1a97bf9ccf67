package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/textindex"
)

func newLookupCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Keyword search over ingested documents (needs text_index.path)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := internal.Setup(globalOpts, "lookup")
			if err != nil {
				return err
			}
			defer app.Close()

			path := app.Config.TextIndex.Path
			if path == "" {
				return fmt.Errorf("text index is not configured; set text_index.path and re-run ingest")
			}
			idx, err := textindex.Open(path)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for i, hit := range hits {
				fmt.Fprintf(out, "%2d. %.3f  %s\n    Q: %s\n    A: %s\n", i+1, hit.Score, hit.ID, hit.Instruction, hit.Output)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of hits")
	return cmd
}
