package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override file settings.
const (
	EnvAPIKey          = "GOOGLE_API_KEY"
	EnvIngestorAPIKey  = "INGESTOR_API_KEY"
	EnvBucket          = "INGESTOR_BUCKET"
	EnvDocumentID      = "INGESTOR_DOCUMENT_ID"
	EnvCompletionModel = "INGESTOR_COMPLETION_MODEL"
	EnvEmbeddingModel  = "INGESTOR_EMBEDDING_MODEL"
	EnvVectorURL       = "INGESTOR_VECTOR_DB_URL"
	EnvCollection      = "INGESTOR_COLLECTION_NAME"
	EnvVectorBackend   = "INGESTOR_VECTOR_BACKEND"
	EnvAuthToken       = "INGESTOR_AUTH_TOKEN"
	EnvDebug           = "INGESTOR_DEBUG"
	EnvPort            = "INGESTOR_PORT"
)

// ApplyEnv overrides cfg with any set environment variables.
// INGESTOR_API_KEY wins over GOOGLE_API_KEY when both are set.
func ApplyEnv(cfg *Config) error {
	setString(&cfg.APIKey, EnvAPIKey)
	setString(&cfg.APIKey, EnvIngestorAPIKey)
	setString(&cfg.Source.Bucket, EnvBucket)
	setString(&cfg.Source.DocumentID, EnvDocumentID)
	setString(&cfg.Completion.Model, EnvCompletionModel)
	setString(&cfg.Embedding.Model, EnvEmbeddingModel)
	setString(&cfg.Vector.URL, EnvVectorURL)
	setString(&cfg.Vector.Collection, EnvCollection)
	setString(&cfg.Vector.Backend, EnvVectorBackend)
	if v := os.Getenv(EnvAuthToken); v != "" {
		cfg.Auth.Token = v
		if cfg.Auth.Mode == "" {
			cfg.Auth.Mode = "static"
		}
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
