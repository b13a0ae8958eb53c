// Package config reads the runtime configuration from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/storage"
)

// Storage backend names accepted in STORAGE_BACKEND.
const (
	BackendFile   = "file"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// DefaultQuotaBytes is the default document size limit, 5 MiB.
const DefaultQuotaBytes = 5 << 20

// Config holds all application configuration.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Local store
	DataDir        string
	StorageBackend string
	QuotaBytes     int64
	GCSBucket      string
	GCSPrefix      string

	// Google Drive sync
	GoogleAPIKey       string
	GoogleClientID     string
	GoogleClientSecret string
	SyncTimeout        time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataDir:        getEnv("DATA_DIR", defaultDataDir()),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		QuotaBytes:     int64(getEnvInt("STORAGE_QUOTA_BYTES", DefaultQuotaBytes)),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		GCSPrefix:      getEnv("GCS_PREFIX", "financial-control"),

		GoogleAPIKey:       getEnv("GOOGLE_API_KEY", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		SyncTimeout:        getEnvDuration("SYNC_TIMEOUT", 2*time.Minute),
	}
}

// DriveCredentials returns the configured Drive credentials, and false when
// none are configured.
func (c *Config) DriveCredentials() (cloudsync.Credentials, bool) {
	creds := cloudsync.Credentials{
		APIKey:       c.GoogleAPIKey,
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
	}
	return creds, creds.APIKey != "" || creds.ClientID != ""
}

// OpenBackend builds the configured storage backend. The returned close
// function releases its resources.
func OpenBackend(ctx context.Context, cfg *Config) (storage.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case BackendFile, "":
		b, err := storage.NewFileBackend(cfg.DataDir, cfg.QuotaBytes)
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil
	case BackendMemory:
		return storage.NewMemoryBackend(cfg.QuotaBytes), noop, nil
	case BackendGCS:
		b, err := storage.NewGCSBackend(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.QuotaBytes)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q (want file, gcs or memory)", cfg.StorageBackend)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".financial-control"
	}
	return filepath.Join(home, ".financial-control")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
