package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("WI_TEST_DSN", "postgres://u:p@db:5432/intel")

	path := writeConfig(t, `
database:
  driver: postgres
  dsn: ${WI_TEST_DSN}
cache:
  redisAddr: ${WI_TEST_REDIS:-localhost:6379}
run:
  windowDays: 14
  sourceTimeout: 5s
  topics:
    - name: robotics
      keywords: [humanoid]
sources:
  - name: hn
    kind: hackernews
    enabled: false
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.DSN != "postgres://u:p@db:5432/intel" {
		t.Fatalf("dsn not expanded: %q", cfg.Database.DSN)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Fatalf("default not applied: %q", cfg.Cache.RedisAddr)
	}
	if cfg.Run.WindowDays != 14 || cfg.Run.SourceTimeout != 5*time.Second {
		t.Fatalf("run config not parsed: %+v", cfg.Run)
	}
	if len(cfg.Run.Topics) != 1 || cfg.Run.Topics[0].Keywords[0] != "humanoid" {
		t.Fatalf("topics not parsed: %+v", cfg.Run.Topics)
	}
	if cfg.Sources[0].IsEnabled() {
		t.Fatalf("expected source disabled")
	}
}

func TestLoadMergesOverDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, `
run:
  topN: 25
generation:
  model: gpt-4.1-mini
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(logLevelEnv, "warn")
	t.Setenv(redisAddrEnv, "")

	cfg := Load()

	if cfg.Run.TopN != 25 {
		t.Fatalf("expected topN override, got %d", cfg.Run.TopN)
	}
	if cfg.Run.WindowDays != 7 {
		t.Fatalf("expected default window, got %d", cfg.Run.WindowDays)
	}
	if cfg.Generation.Model != "gpt-4.1-mini" || cfg.Generation.APIKey != "sk-test" {
		t.Fatalf("unexpected generation config: %+v", cfg.Generation)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Fatalf("expected embedding key to follow OPENAI_API_KEY")
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL override, got %q", cfg.Logging.Level)
	}
	if len(cfg.Sources) == 0 {
		t.Fatalf("expected default sources")
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("expected bound timezone")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Database.Driver != "sqlite" || cfg.Scheduler.Interval != 7*24*time.Hour {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSourceEnabledDefault(t *testing.T) {
	t.Parallel()

	if !(SourceConfig{}).IsEnabled() {
		t.Fatalf("missing flag should mean enabled")
	}
}
