package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
)

var globalOpts internal.GlobalOptions

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vecload",
		Short:         "Embed a dataset once and load truncated vectors into several collections",
		Long:          internal.LongDescription,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&globalOpts.ConfigPath, "config", "", "config file (default ~/.vecload/config/vecload.yaml)")
	flags.StringVar(&globalOpts.Profile, "profile", "", "deployment profile (default $PROFILE or local)")
	flags.StringVar(&globalOpts.ResourcesDir, "resources", "resources", "directory holding the .<profile>.env files")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newSmokeCmd(),
		newIngestCmd(),
		newSimilarCmd(),
		newLookupCmd(),
		newStatsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vecload version %s\n", internal.Version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
