package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FLOWPILOT_LLM_API_KEY", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("expected default address, got %q", cfg.Server.Address)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.Temperature != 0.3 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty api key")
	}
	if cfg.Events.Stream != "flowpilot:executions" {
		t.Fatalf("unexpected events stream %q", cfg.Events.Stream)
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "flowpilot.yaml")
	data := []byte("server:\n  address: \":9000\"\nllm:\n  model: gpt-4o\n  timeout: 5s\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("FLOWPILOT_SERVER_ADDRESS", ":9100")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9100" {
		t.Fatalf("expected env override, got %q", cfg.Server.Address)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("expected file values, got %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Fatalf("expected api key from OPENAI_API_KEY, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FLOWPILOT_LLM_API_KEY", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "sk-dotenv" {
		t.Fatalf("expected api key from .env, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadConfigRejectsBadTemperature(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FLOWPILOT_LLM_TEMPERATURE", "3.5")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected temperature validation error")
	}
}

func TestLoadConfigEventsRequireRedis(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FLOWPILOT_EVENTS_ENABLED", "true")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected redis validation error when events are enabled")
	}
	t.Setenv("FLOWPILOT_STORAGE_REDIS_HOST", "localhost")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Storage.Redis.Addr())
	}
}

func TestLoadConfigLogLevel(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FLOWPILOT_GENERAL_LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.General.Verbose() {
		t.Fatalf("expected debug log level to enable verbose logging")
	}

	t.Setenv("FLOWPILOT_GENERAL_LOG_LEVEL", "chatty")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestGeneralConfigVerbose(t *testing.T) {
	if (GeneralConfig{LogLevel: "info"}).Verbose() {
		t.Fatalf("info must not be verbose")
	}
	if !(GeneralConfig{Debug: true, LogLevel: "info"}).Verbose() {
		t.Fatalf("debug flag must be verbose")
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (unavailable before Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
