// Package config provides configuration loading and structs for the ingestor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrMissingOption indicates a required option has no value.
var ErrMissingOption = errors.New("missing required option")

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Source     SourceConfig     `yaml:"source"`
	Completion CompletionConfig `yaml:"completion"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Auth       AuthConfig       `yaml:"auth"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Retry      RetryConfig      `yaml:"retry"`
	Watch      WatchConfig      `yaml:"watch"`
	APIKey     string           `yaml:"api_key"`
}

// LogConfig enables rotated file logging in addition to stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SourceConfig names the document store and the default document.
type SourceConfig struct {
	Store       string `yaml:"store"`
	Bucket      string `yaml:"bucket"`
	DocumentID  string `yaml:"document_id"`
	DiskRoot    string `yaml:"disk_root"`
	GCSEndpoint string `yaml:"gcs_endpoint"`
}

// CompletionConfig selects the summarization model.
type CompletionConfig struct {
	Provider string  `yaml:"provider"`
	Model    string  `yaml:"model"`
	BaseURL  string  `yaml:"base_url"`
	Prompt   string  `yaml:"prompt"`
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
}

// EmbeddingConfig selects the embedding model and its task types.
type EmbeddingConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url"`
	TaskType      string  `yaml:"task_type"`
	QueryTaskType string  `yaml:"query_task_type"`
	Dimensions    int     `yaml:"dimensions"`
	CacheSize     int     `yaml:"cache_size"`
	ModelPath     string  `yaml:"model_path"`
	MaxTokens     int     `yaml:"max_tokens"`
	RPS           float64 `yaml:"rps"`
	Burst         int     `yaml:"burst"`
}

// VectorConfig selects the vector backend and collection.
type VectorConfig struct {
	Backend    string `yaml:"backend"`
	URL        string `yaml:"url"`
	APIPath    string `yaml:"api_path"`
	Collection string `yaml:"collection"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
}

// AuthConfig selects how bearer credentials for the vector database are obtained.
type AuthConfig struct {
	Mode        string        `yaml:"mode"`
	Audience    string        `yaml:"audience"`
	Token       string        `yaml:"token"`
	EarlyExpiry time.Duration `yaml:"early_expiry"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PipelineConfig bounds a single ingestion run.
type PipelineConfig struct {
	StepTimeout    time.Duration `yaml:"step_timeout"`
	ContentPreview int           `yaml:"content_preview"`
	Workers        int           `yaml:"workers"`
}

// RetryConfig bounds retries of fetch, embed, and store.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads the config file at path, then a .env file next to it, then environment overrides,
// then applies defaults and expands paths. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Log.File = expandPath(cfg.Log.File, configDir)
	cfg.Source.DiskRoot = expandPath(cfg.Source.DiskRoot, configDir)
	cfg.Vector.Path = expandPath(cfg.Vector.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every missing option needed to run the pipeline, including the default
// document source.
func (c *Config) Validate() error {
	return multierr.Append(c.validateSource(), c.ValidateServices())
}

// ValidateServices checks the options needed to build the model and vector services.
func (c *Config) ValidateServices() error {
	var err error
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrMissingOption, name))
		}
	}

	require("completion.model", c.Completion.Model)
	require("embedding.model", c.Embedding.Model)
	require("vector.collection", c.Vector.Collection)

	switch c.Vector.Backend {
	case "chroma":
		require("vector.url", c.Vector.URL)
	case "sqlite":
		require("vector.path", c.Vector.Path)
	case "pgvector":
		require("vector.dsn", c.Vector.DSN)
	case "memory":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown vector backend: %q", c.Vector.Backend))
	}

	if isRemoteProvider(c.Completion.Provider) || isRemoteProvider(c.Embedding.Provider) {
		require("api_key", c.APIKey)
	}
	if c.Embedding.Provider == "onnx" {
		require("embedding.model_path", c.Embedding.ModelPath)
	}
	if c.Auth.Mode == "metadata" {
		require("auth.audience", c.Auth.Audience)
	}
	if c.Auth.Mode == "static" {
		require("auth.token", c.Auth.Token)
	}
	return err
}

func (c *Config) validateSource() error {
	var err error
	if strings.TrimSpace(c.Source.Bucket) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: source.bucket", ErrMissingOption))
	}
	if strings.TrimSpace(c.Source.DocumentID) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: source.document_id", ErrMissingOption))
	}
	switch c.Source.Store {
	case "gcs":
	case "disk":
		if c.Source.DiskRoot == "" {
			err = multierr.Append(err, fmt.Errorf("%w: source.disk_root", ErrMissingOption))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown document store: %q", c.Source.Store))
	}
	return err
}

func isRemoteProvider(p string) bool {
	return p == "openai" || p == "langchain"
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
