package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "ENV", "OBJECT_STORE", "API_TIMEOUT_SECONDS", "ASK_BURST", "SUMMARY_STALE_SECONDS", "SESSION_IDLE_MINUTES", "MAX_SESSIONS", "DATAGHOST_API_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" || cfg.Env != "dev" || cfg.ObjectStoreType != "local" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.APITimeout != 0 || cfg.AskBurst != 5 || cfg.SummaryStaleTime != time.Minute {
		t.Fatalf("unexpected tuning defaults %+v", cfg)
	}
	if cfg.SessionIdleTTL != 30*time.Minute || cfg.MaxSessions != 10000 {
		t.Fatalf("unexpected session limits %+v", cfg)
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "DATAGHOST_API_BASE_URL=http://api.local:8000\nOBJECT_STORE=S3\nENV=prod\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	unsetEnv(t, "DATAGHOST_API_BASE_URL", "OBJECT_STORE")
	t.Setenv("ENV", "staging")
	t.Setenv("ASK_BURST", "not-a-number")

	cfg := Load()
	if cfg.APIBaseURL != "http://api.local:8000" || cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected .env values, got %+v", cfg)
	}
	if cfg.Env != "staging" {
		t.Fatalf("real environment must win, got %q", cfg.Env)
	}
	if cfg.AskBurst != 5 {
		t.Fatalf("invalid int should fall back, got %d", cfg.AskBurst)
	}
}

// unsetEnv removes keys for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
