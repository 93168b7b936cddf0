package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIKey, EnvIngestorAPIKey, EnvBucket, EnvDocumentID, EnvCompletionModel,
		EnvEmbeddingModel, EnvVectorURL, EnvCollection, EnvVectorBackend, EnvAuthToken, EnvDebug, EnvPort} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const fullConfig = `
source:
  bucket: "ai-app-gcs"
  document_id: "sample_cast_report.pdf"
completion:
  model: "gemini-pro"
embedding:
  model: "models/embedding-001"
vector:
  url: "https://chroma.example.com"
  collection: "cast_highlight_reports"
api_key: "k"
`

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
pipeline:
  step_timeout: 45s
`+fullConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Pipeline.StepTimeout != 45*time.Second {
		t.Errorf("step_timeout = %v, want 45s", cfg.Pipeline.StepTimeout)
	}
	if cfg.Source.Bucket != "ai-app-gcs" || cfg.Source.DocumentID != "sample_cast_report.pdf" {
		t.Errorf("unexpected source: %+v", cfg.Source)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
vector:
  backend: sqlite
  path: "./data/vectors.db"
watch:
  directories: ["./dev/sample"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "vectors.db")
	if cfg.Vector.Path != wantDB {
		t.Errorf("vector.path = %s, want %s", cfg.Vector.Path, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "dev", "sample"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
	if cfg.Log.File != "" {
		t.Errorf("empty log file should stay empty, got %s", cfg.Log.File)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, fullConfig)
	t.Setenv(EnvAPIKey, "from-google")
	t.Setenv(EnvBucket, "other-bucket")
	t.Setenv(EnvCollection, "other-collection")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvPort, "9999")
	t.Setenv(EnvAuthToken, "tok")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "from-google" {
		t.Errorf("api_key = %q", cfg.APIKey)
	}
	if cfg.Source.Bucket != "other-bucket" || cfg.Vector.Collection != "other-collection" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Source, cfg.Vector)
	}
	if !cfg.Debug || cfg.Server.Port != 9999 {
		t.Errorf("debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
	if cfg.Auth.Mode != "static" || cfg.Auth.Token != "tok" {
		t.Errorf("auth = %+v", cfg.Auth)
	}

	t.Setenv(EnvIngestorAPIKey, "from-ingestor")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "from-ingestor" {
		t.Errorf("INGESTOR_API_KEY should win, got %q", cfg.APIKey)
	}
}

func TestLoad_invalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "eighty")
	if _, err := Load(writeConfig(t, fullConfig)); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, fullConfig)
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envFile, []byte(EnvDocumentID+"=from-dotenv.pdf\n"), 0600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv(EnvDocumentID)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.DocumentID != "from-dotenv.pdf" {
		t.Errorf("document_id = %q, want from-dotenv.pdf", cfg.Source.DocumentID)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Source.Store != "gcs" || cfg.Vector.Backend != "chroma" || cfg.Auth.Mode != "none" {
		t.Errorf("defaults: store=%s backend=%s auth=%s", cfg.Source.Store, cfg.Vector.Backend, cfg.Auth.Mode)
	}
	if cfg.Embedding.TaskType != "RETRIEVAL_DOCUMENT" || cfg.Embedding.QueryTaskType != "RETRIEVAL_QUERY" {
		t.Errorf("task types: %s %s", cfg.Embedding.TaskType, cfg.Embedding.QueryTaskType)
	}
	if cfg.Pipeline.ContentPreview != 500 {
		t.Errorf("content_preview: got %d", cfg.Pipeline.ContentPreview)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry.max_attempts: got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Completion.Model != "" || cfg.Embedding.Model != "" || cfg.Vector.URL != "" ||
		cfg.Vector.Collection != "" || cfg.Source.Bucket != "" || cfg.Source.DocumentID != "" || cfg.APIKey != "" {
		t.Errorf("required options must not be defaulted: %+v", cfg)
	}
	if len(cfg.Watch.Extensions) == 0 || cfg.Watch.Extensions[0] != ".pdf" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestValidate_reportsEveryMissingOption(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrMissingOption) {
		t.Errorf("error should wrap ErrMissingOption: %v", err)
	}
	for _, name := range []string{"source.bucket", "source.document_id", "completion.model", "embedding.model",
		"vector.url", "vector.collection", "api_key"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestValidate_backendRequirements(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Completion: CompletionConfig{Model: "m", Provider: "mock"},
			Embedding:  EmbeddingConfig{Model: "e", Provider: "mock"},
			Vector:     VectorConfig{Collection: "c"},
		}
		ApplyDefaults(cfg)
		return cfg
	}

	cfg := base()
	cfg.Vector.Backend = "memory"
	if err := cfg.ValidateServices(); err != nil {
		t.Errorf("memory backend with mock providers should validate: %v", err)
	}

	cfg = base()
	cfg.Vector.Backend = "pgvector"
	if err := cfg.ValidateServices(); err == nil || !strings.Contains(err.Error(), "vector.dsn") {
		t.Errorf("pgvector without dsn: %v", err)
	}

	cfg = base()
	cfg.Vector.Backend = "faiss"
	if err := cfg.ValidateServices(); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg = base()
	cfg.Vector.URL = "http://localhost:8000"
	cfg.Auth.Mode = "metadata"
	if err := cfg.ValidateServices(); err == nil || !strings.Contains(err.Error(), "auth.audience") {
		t.Errorf("metadata auth without audience: %v", err)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "saved.yaml")
	cfg := &Config{
		Server:   ServerConfig{Host: "localhost", Port: 9090},
		Pipeline: PipelineConfig{StepTimeout: 90 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Pipeline.StepTimeout != 90*time.Second {
		t.Errorf("loaded step_timeout: got %v", loaded.Pipeline.StepTimeout)
	}
}
