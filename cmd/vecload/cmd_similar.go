package main

import (
	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/embedding"
)

func newSimilarCmd() *cobra.Command {
	var dim, topK int
	cmd := &cobra.Command{
		Use:   "similar <query> <text>...",
		Short: "Rank texts against a query by truncated embedding dot product",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := internal.Setup(globalOpts, "similar")
			if err != nil {
				return err
			}
			defer app.Close()

			enc, err := app.NewEncoder()
			if err != nil {
				return err
			}
			res, err := embedding.FindSimilarTexts(cmd.Context(), enc, args[0], args[1:], embedding.SimilarityOptions{
				MatryoshkaDim: dim,
				TopK:          topK,
			})
			if err != nil {
				return err
			}
			printRanking(cmd, res.Indices, res.Scores, res.Texts)
			return nil
		},
	}
	cmd.Flags().IntVar(&dim, "dim", embedding.DefaultMatryoshkaDim, "truncate embeddings to this many dimensions")
	cmd.Flags().IntVar(&topK, "top-k", 0, "show only the best k texts (0 = all)")
	return cmd
}
