package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/embedding"
	"github.com/DreamCats/vecload/internal/logger"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

// GlobalOptions are the persistent root flags.
type GlobalOptions struct {
	ConfigPath   string
	Profile      string
	ResourcesDir string
	LogLevel     string
}

// App bundles what a subcommand needs: the loaded config and the process logger.
type App struct {
	Config *config.Config
	Log    *logrus.Logger

	closeLog func() error
}

// Setup loads the configuration once and builds the logger for command.
func Setup(opts GlobalOptions, command string) (*App, error) {
	cfg, err := config.Load(config.LoadOptions{
		Profile:      opts.Profile,
		ConfigPath:   opts.ConfigPath,
		ResourcesDir: opts.ResourcesDir,
	})
	if err != nil {
		var notFound *config.ConfigNotFoundError
		if errors.As(err, &notFound) && notFound.RequestedPath == config.ProfileEnvPath(resourcesOrDefault(opts.ResourcesDir), notFound.Profile) {
			PrintEnvExample(os.Stderr, notFound.RequestedPath)
		}
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	log, closeLog, err := logger.New(cfg.Log, command, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	log.WithFields(logrus.Fields{
		"profile": cfg.Profile,
		"backend": cfg.Store.Backend,
	}).Debug("configuration loaded")

	return &App{Config: cfg, Log: log, closeLog: closeLog}, nil
}

// OpenStore connects to the configured vector store. Callers close it.
func (a *App) OpenStore(ctx context.Context) (vectorstore.Store, error) {
	store, err := vectorstore.Open(ctx, a.Config.Store, a.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return store, nil
}

// NewEncoder creates the configured embedding provider.
func (a *App) NewEncoder() (*embedding.Service, error) {
	return embedding.NewService(a.Config.Embedding, a.Log)
}

func (a *App) Close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func resourcesOrDefault(dir string) string {
	if dir == "" {
		return "resources"
	}
	return dir
}
