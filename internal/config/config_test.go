package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeKeyFile(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte("0123456789abcdef0123456789abcdef"), mode); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithValidKeyFile(t *testing.T) {
	keyPath := writeKeyFile(t, 0o600)
	t.Setenv("HALO_MASTER_KEY_PATH", keyPath)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HALO_RESOLVE_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Error("expected a default DatabaseURL")
	}
	if cfg.PersonAutoMatch != 0.95 {
		t.Errorf("PersonAutoMatch = %v, want 0.95", cfg.PersonAutoMatch)
	}
	if cfg.AddressAutoMatch != 0.90 {
		t.Errorf("AddressAutoMatch = %v, want 0.90", cfg.AddressAutoMatch)
	}
	if cfg.DeriveInterval != 24*time.Hour {
		t.Errorf("DeriveInterval = %v, want 24h", cfg.DeriveInterval)
	}
	if cfg.PatternMaxResults != 500 {
		t.Errorf("PatternMaxResults = %v, want 500", cfg.PatternMaxResults)
	}
}

func TestLoad_MissingMasterKeyPathFails(t *testing.T) {
	t.Setenv("HALO_MASTER_KEY_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when HALO_MASTER_KEY_PATH is unset")
	}
}

func TestLoad_MalformedDurationFails(t *testing.T) {
	t.Setenv("HALO_MASTER_KEY_PATH", writeKeyFile(t, 0o600))
	t.Setenv("HALO_RESOLVE_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed HALO_RESOLVE_INTERVAL")
	}
}

func TestValidate_KeyFileWorldReadableRejected(t *testing.T) {
	cfg := Config{
		DatabaseURL:             "postgres://x",
		MasterKeyPath:           writeKeyFile(t, 0o644),
		ResolveBatchSize:        1,
		ResolveInterval:         time.Second,
		DeriveInterval:          time.Hour,
		PatternStatementTimeout: time.Second,
		PatternMaxResults:       1,
		ShutdownTimeout:         time.Second,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of world-readable key file")
	}
}

func TestValidate_KeyFileMissingRejected(t *testing.T) {
	cfg := Config{
		DatabaseURL:             "postgres://x",
		MasterKeyPath:           filepath.Join(t.TempDir(), "does-not-exist"),
		ResolveBatchSize:        1,
		ResolveInterval:         time.Second,
		DeriveInterval:          time.Hour,
		PatternStatementTimeout: time.Second,
		PatternMaxResults:       1,
		ShutdownTimeout:         time.Second,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of missing key file")
	}
}
