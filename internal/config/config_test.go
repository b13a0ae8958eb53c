package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/financial-control/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "STORAGE_BACKEND", "STORAGE_QUOTA_BYTES", "SYNC_TIMEOUT", "GOOGLE_API_KEY", "GOOGLE_CLIENT_ID"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != 8080 || cfg.LogLevel != "info" {
		t.Errorf("server defaults = %d %q", cfg.Port, cfg.LogLevel)
	}
	if cfg.StorageBackend != BackendFile || cfg.QuotaBytes != DefaultQuotaBytes {
		t.Errorf("storage defaults = %q %d", cfg.StorageBackend, cfg.QuotaBytes)
	}
	if cfg.SyncTimeout != 2*time.Minute {
		t.Errorf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if _, ok := cfg.DriveCredentials(); ok {
		t.Error("expected no drive credentials")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("STORAGE_QUOTA_BYTES", "1024")
	t.Setenv("SYNC_TIMEOUT", "30s")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("GOOGLE_CLIENT_ID", "id.apps.googleusercontent.com")

	cfg := Load()
	if cfg.Port != 9090 || cfg.StorageBackend != BackendMemory || cfg.QuotaBytes != 1024 || cfg.SyncTimeout != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	creds, ok := cfg.DriveCredentials()
	if !ok || creds.APIKey != "key" {
		t.Errorf("credentials = %+v, %v", creds, ok)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("SYNC_TIMEOUT", "soon")

	cfg := Load()
	if cfg.Port != 8080 || cfg.SyncTimeout != 2*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nFC_TEST_A=one\nexport FC_TEST_B=\"two\"\nFC_TEST_C=from-file\nnot a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FC_TEST_C", "from-env")
	os.Unsetenv("FC_TEST_A")
	os.Unsetenv("FC_TEST_B")
	t.Cleanup(func() {
		os.Unsetenv("FC_TEST_A")
		os.Unsetenv("FC_TEST_B")
	})

	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("FC_TEST_A"); got != "one" {
		t.Errorf("FC_TEST_A = %q", got)
	}
	if got := os.Getenv("FC_TEST_B"); got != "two" {
		t.Errorf("FC_TEST_B = %q", got)
	}
	if got := os.Getenv("FC_TEST_C"); got != "from-env" {
		t.Errorf("FC_TEST_C = %q, environment should win", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, closeFn, err := OpenBackend(ctx, &Config{StorageBackend: BackendFile, DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := b.(*storage.FileBackend); !ok {
		t.Errorf("file backend: got %T", b)
	}

	b, _, err = OpenBackend(ctx, &Config{StorageBackend: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*storage.MemoryBackend); !ok {
		t.Errorf("memory backend: got %T", b)
	}

	if _, _, err := OpenBackend(ctx, &Config{StorageBackend: BackendGCS}); err == nil {
		t.Error("expected error for gcs without bucket")
	}
	if _, _, err := OpenBackend(ctx, &Config{StorageBackend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
