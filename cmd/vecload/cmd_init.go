package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/ingest"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configured collections if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := internal.Setup(globalOpts, "init")
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

			targets := ingest.TargetsFromConfig(app.Config.Ingest.Collections)
			if err := ingest.InitCollections(ctx, store, targets, vectorstore.Distance(app.Config.Ingest.Distance), app.Log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collections ready: %s\n", strings.Join(app.Config.CollectionNames(), ", "))
			return nil
		},
	}
}
