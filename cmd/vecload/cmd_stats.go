package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/textindex"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show point counts per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := internal.Setup(globalOpts, "stats")
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			store, err := app.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile: %s\nBackend: %s\n\n", app.Config.Profile, app.Config.Store.Backend)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COLLECTION\tDIM\tPOINTS")
			for _, col := range app.Config.Ingest.Collections {
				exists, err := store.CollectionExists(ctx, col.Name)
				if err != nil {
					return err
				}
				if !exists {
					fmt.Fprintf(tw, "%s\t%d\t(missing)\n", col.Name, col.Dimension)
					continue
				}
				n, err := store.Count(ctx, col.Name)
				if err != nil {
					return fmt.Errorf("count %s: %w", col.Name, err)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\n", col.Name, col.Dimension, n)
			}
			_ = tw.Flush()

			if path := app.Config.TextIndex.Path; path != "" {
				idx, err := textindex.Open(path)
				if err != nil {
					return err
				}
				defer idx.Close()
				n, err := idx.Count()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nText index: %s (%d documents)\n", path, n)
			}
			return nil
		},
	}
}
