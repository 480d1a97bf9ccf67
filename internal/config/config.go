package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when neither --profile nor PROFILE is set.
const DefaultProfile = "local"

// Config holds the application configuration.
// It is built once at process start and passed into constructors.
type Config struct {
	Profile   string          `yaml:"-"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Ingest    IngestConfig    `yaml:"ingest"`
	TextIndex TextIndexConfig `yaml:"text_index,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// StoreConfig holds vector database connection settings
type StoreConfig struct {
	Backend  string        `yaml:"backend" validate:"oneof=qdrant sqlite postgres"`
	URL      string        `yaml:"url" validate:"required_if=Backend qdrant"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Path     string        `yaml:"path,omitempty" validate:"required_if=Backend sqlite"`
	DSN      string        `yaml:"dsn,omitempty" validate:"required_if=Backend postgres"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	RetryMax int           `yaml:"retry_max,omitempty" validate:"min=0,max=10"`
}

// EmbeddingConfig holds embedding service configuration.
// APIKey is checked when a provider is built, so commands that never embed run without it.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=jina openai volcengine"` // "jina" | "openai" | "volcengine"
	APIKey     string        `yaml:"api_key"`
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model" validate:"required"`
	Dimensions int           `yaml:"dimensions" validate:"gt=0"` // full output dimensionality
	BatchSize  int           `yaml:"batch_size" validate:"min=1,max=2048"`
	Workers    int           `yaml:"workers" validate:"min=1,max=64"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RetryMax   int           `yaml:"retry_max,omitempty" validate:"min=0,max=10"`
}

// DatasetConfig selects the rows to ingest.
// Name addresses a Hugging Face dataset; Path (a glob) selects local JSON/JSONL files instead.
type DatasetConfig struct {
	Name             string `yaml:"name" validate:"required_without=Path"`
	Path             string `yaml:"path,omitempty"`
	Subset           string `yaml:"subset,omitempty"`
	Split            string `yaml:"split" validate:"required"`
	InstructionField string `yaml:"instruction_field" validate:"required"`
	OutputField      string `yaml:"output_field" validate:"required"`
	Endpoint         string `yaml:"endpoint,omitempty"`
	Token            string `yaml:"token,omitempty"`
	PageSize         int    `yaml:"page_size,omitempty" validate:"min=1,max=100"`
}

// IngestConfig holds ingestion driver settings
type IngestConfig struct {
	Collections []CollectionConfig `yaml:"collections" validate:"required,min=1,unique=Name,dive"`
	Distance    string             `yaml:"distance" validate:"oneof=Cosine Dot Euclid Manhattan"`
	BatchSize   int                `yaml:"batch_size" validate:"min=1"`
	Progress    string             `yaml:"progress,omitempty" validate:"oneof=auto always never"`
}

// CollectionConfig is one target collection and the prefix length stored in it.
type CollectionConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Dimension int    `yaml:"dimension" validate:"gt=0"`
}

// TextIndexConfig enables the keyword mirror of ingested documents when Path is set.
type TextIndexConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"oneof=text json"`
	Dir    string `yaml:"dir,omitempty"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// Profile selects <ResourcesDir>/.<profile>.env. Empty falls back to $PROFILE, then "local".
	Profile string
	// ConfigPath is an explicit YAML file. Empty uses the default path when it exists.
	ConfigPath string
	// ResourcesDir holds the per-profile env files. Empty means "resources".
	ResourcesDir string
}

var validate = validator.New()

// Load resolves the deployment profile and builds the configuration.
//
// Precedence, lowest first: built-in defaults, YAML file, profile env file,
// process environment. The profile env file is required.
func Load(opts LoadOptions) (*Config, error) {
	profile := ResolveProfile(opts.Profile)

	resources := opts.ResourcesDir
	if resources == "" {
		resources = "resources"
	}
	envPath := ProfileEnvPath(resources, profile)
	if _, err := os.Stat(envPath); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{Profile: profile, RequestedPath: envPath}
		}
		return nil, fmt.Errorf("failed to stat profile env file: %w", err)
	}
	// godotenv keeps variables that are already set in the process environment.
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load profile env file %s: %w", envPath, err)
	}

	cfg := &Config{}
	yamlPath, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		yamlPath = DefaultConfigPath()
	}
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && !explicit:
		case os.IsNotExist(err):
			return nil, &ConfigNotFoundError{Profile: profile, RequestedPath: yamlPath}
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.Profile = profile
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveProfile returns the explicit profile, else $PROFILE, else DefaultProfile.
func ResolveProfile(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("PROFILE")); p != "" {
		return p
	}
	return DefaultProfile
}

// ProfileEnvPath returns the env file for a profile, e.g. resources/.local.env.
func ProfileEnvPath(resourcesDir, profile string) string {
	return filepath.Join(resourcesDir, "."+profile+".env")
}

// DefaultConfigPath returns ~/.vecload/config/vecload.yaml, or "" if the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".vecload", "config", "vecload.yaml")
}

// ConfigNotFoundError is returned when the profile env file or an explicit
// config file does not exist.
type ConfigNotFoundError struct {
	Profile       string
	RequestedPath string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s (profile %q)\n\nYou can:\n"+
		"  1. Create the env file for this profile (QDRANT_URL, QDRANT_API_KEY, EMBEDDING_API_KEY)\n"+
		"  2. Select another profile with --profile or PROFILE\n"+
		"  3. Run 'vecload config init' to write a YAML template",
		e.RequestedPath, e.Profile)
}

// applyEnv overlays connection settings taken from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	set(&c.Store.Backend, "VECLOAD_STORE_BACKEND")
	set(&c.Store.URL, "QDRANT_URL")
	set(&c.Store.APIKey, "QDRANT_API_KEY")
	set(&c.Store.Path, "VECLOAD_STORE_PATH")
	set(&c.Store.DSN, "VECLOAD_STORE_DSN", "DATABASE_URL")
	set(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	set(&c.Embedding.APIKey, "EMBEDDING_API_KEY", "JINA_API_KEY", "OPENAI_API_KEY")
	set(&c.Embedding.Model, "EMBEDDING_MODEL")
	set(&c.Embedding.Endpoint, "EMBEDDING_ENDPOINT")
	set(&c.Dataset.Token, "HF_TOKEN")
	set(&c.Log.Level, "LOG_LEVEL")
}

// applyDefaults fills every zero field from Default and expands ~ in paths.
func (c *Config) applyDefaults() error {
	defaults := Default()
	if c.Embedding.Provider != "" && c.Embedding.Provider != defaults.Embedding.Provider {
		// Endpoint and model defaults only make sense for the default provider.
		defaults.Embedding.Endpoint = ""
		defaults.Embedding.Model = providerDefaultModel(c.Embedding.Provider)
	}
	if err := mergo.Merge(c, &defaults); err != nil {
		return err
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Store.Path = expandPath(c.Store.Path)
	c.TextIndex.Path = expandPath(c.TextIndex.Path)
	c.Log.Dir = expandPath(c.Log.Dir)
	if c.Dataset.Path != "" {
		c.Dataset.Path = expandPath(c.Dataset.Path)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// CollectionNames returns the collection names in configuration order.
func (c *Config) CollectionNames() []string {
	names := make([]string, 0, len(c.Ingest.Collections))
	for _, col := range c.Ingest.Collections {
		names = append(names, col.Name)
	}
	return names
}

// Default returns the built-in configuration: the three Jina matryoshka
// collections fed from the Korean Wikidata QA set.
func Default() Config {
	return Config{
		Profile: DefaultProfile,
		Store: StoreConfig{
			Backend: "qdrant",
			URL:     "http://127.0.0.1:6333",
			Path:    "~/.vecload/data/vectors.db",
			Timeout: 20 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "jina",
			Endpoint:   "https://api.jina.ai/v1/embeddings",
			Model:      "jina-embeddings-v3",
			Dimensions: 1024,
			BatchSize:  64,
			Workers:    defaultWorkers(),
			Timeout:    60 * time.Second,
		},
		Dataset: DatasetConfig{
			Name:             "maywell/ko_wikidata_QA",
			Subset:           "default",
			Split:            "train[:10%]",
			InstructionField: "instruction",
			OutputField:      "output",
			Endpoint:         "https://datasets-server.huggingface.co",
			PageSize:         100,
		},
		Ingest: IngestConfig{
			Collections: []CollectionConfig{
				{Name: "jina_embed_1024", Dimension: 1024},
				{Name: "jina_embed_512", Dimension: 512},
				{Name: "jina_embed_128", Dimension: 128},
			},
			Distance:  "Cosine",
			BatchSize: 100,
			Progress:  "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func providerDefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "volcengine":
		return "doubao-embedding-vision-250615"
	default:
		return ""
	}
}

func defaultWorkers() int {
	workers := runtime.NumCPU()
	if workers > 4 {
		return 4
	}
	if workers < 1 {
		return 1
	}
	return workers
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

const defaultConfigTemplate = `# vecload configuration
#
# Connection secrets live in resources/.<profile>.env:
#   QDRANT_URL=http://127.0.0.1:6333
#   QDRANT_API_KEY=
#   EMBEDDING_API_KEY=your-jina-api-key
#
# Default location: $HOME/.vecload/config/vecload.yaml

store:
  # Backend: "qdrant" | "sqlite" | "postgres"
  backend: qdrant
  timeout: 20s
  # path: ~/.vecload/data/vectors.db      # sqlite
  # dsn: postgres://localhost:5432/vecload # postgres

embedding:
  # Provider: "jina" | "openai" | "volcengine"
  provider: jina
  model: jina-embeddings-v3
  dimensions: 1024
  batch_size: 64
  workers: 4

dataset:
  name: maywell/ko_wikidata_QA
  split: train[:10%]
  instruction_field: instruction
  output_field: output
  # path: ./data/**/*.jsonl   # read local files instead of the hub

ingest:
  distance: Cosine
  batch_size: 100
  collections:
    - name: jina_embed_1024
      dimension: 1024
    - name: jina_embed_512
      dimension: 512
    - name: jina_embed_128
      dimension: 128

# text_index:
#   path: ~/.vecload/text

log:
  level: info
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
