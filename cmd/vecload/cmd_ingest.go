package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DreamCats/vecload/cmd/vecload/internal"
	"github.com/DreamCats/vecload/internal/dataset"
	"github.com/DreamCats/vecload/internal/ingest"
	"github.com/DreamCats/vecload/internal/progress"
	"github.com/DreamCats/vecload/internal/textindex"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

type ingestOptions struct {
	strict    bool
	initFirst bool
	batchSize int
	split     string
	progress  string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the dataset and upsert truncated vectors into every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error if any batch failed to upsert")
	cmd.Flags().BoolVar(&opts.initFirst, "init", false, "create missing collections before ingesting")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "documents per upsert batch (default from config)")
	cmd.Flags().StringVar(&opts.split, "split", "", "dataset split, e.g. train[:10%] (default from config)")
	cmd.Flags().StringVar(&opts.progress, "progress", "", "progress output: auto, always or never")
	return cmd
}

func runIngest(cmd *cobra.Command, opts ingestOptions) error {
	app, err := internal.Setup(globalOpts, "ingest")
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	if opts.batchSize > 0 {
		cfg.Ingest.BatchSize = opts.batchSize
	}
	if opts.split != "" {
		cfg.Dataset.Split = opts.split
	}
	if opts.progress != "" {
		cfg.Ingest.Progress = opts.progress
	}

	ctx := cmd.Context()
	store, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	targets := ingest.TargetsFromConfig(cfg.Ingest.Collections)
	if opts.initFirst {
		if err := ingest.InitCollections(ctx, store, targets, vectorstore.Distance(cfg.Ingest.Distance), app.Log); err != nil {
			return err
		}
	}

	enc, err := app.NewEncoder()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.Dimension > enc.Dimensions() {
			app.Log.WithFields(logrus.Fields{
				"collection": t.Name,
				"dimension":  t.Dimension,
				"model":      enc.Model(),
				"output":     enc.Dimensions(),
			}).Warn("collection is wider than the model output, its points will be skipped")
		}
	}
	src, err := dataset.NewSource(cfg.Dataset, app.Log)
	if err != nil {
		return err
	}

	var mirror ingest.Mirror
	if cfg.TextIndex.Path != "" {
		idx, err := textindex.Open(cfg.TextIndex.Path)
		if err != nil {
			return err
		}
		defer idx.Close()
		mirror = idx
	}

	driver, err := ingest.NewDriver(ingest.DriverOptions{
		Source:    src,
		Encoder:   enc,
		Store:     store,
		Targets:   targets,
		BatchSize: cfg.Ingest.BatchSize,
		Strict:    opts.strict,
		Mirror:    mirror,
		Progress:  progress.Enabled(cfg.Ingest.Progress),
		Log:       app.Log,
	})
	if err != nil {
		return err
	}

	report, err := driver.Run(ctx)
	if report != nil {
		report.Print(cmd.OutOrStdout())
	}
	return err
}
