package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented config template if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalOpts.ConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if path == "" {
				return fmt.Errorf("cannot resolve home directory; pass --config")
			}
			created, err := config.WriteDefaultTemplate(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Wrote config template to %s\n", path)
			} else {
				fmt.Fprintf(out, "Config already exists at %s\n", path)
			}
			profile := config.ResolveProfile(globalOpts.Profile)
			fmt.Fprintln(out)
			internal.PrintEnvExample(out, config.ProfileEnvPath(globalOpts.ResourcesDir, profile))
			return nil
		},
	})
	return cmd
}
