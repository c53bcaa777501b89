package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.TopK != 20 || cfg.Retrieval.TopN != 5 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.VectorWeight != 0.6 {
		t.Errorf("vector weight default: %v", cfg.Retrieval.VectorWeight)
	}
	if cfg.Workflow.LoopCap != 3 || cfg.Workflow.MaxHistory != 10 {
		t.Errorf("workflow defaults: %+v", cfg.Workflow)
	}
	if cfg.Retrieval.ChunkSize != 500 || cfg.Retrieval.ChunkOverlap != 100 {
		t.Errorf("chunking defaults: %+v", cfg.Retrieval)
	}
	if cfg.LLM.Retry.MaxRetries != 3 || cfg.LLM.Retry.BaseDelay != 2*time.Second {
		t.Errorf("retry defaults: %+v", cfg.LLM.Retry)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage default: %q", cfg.Storage.Backend)
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{
		"workflow": {"loop_cap": 5, "require_approve": true},
		"retrieval": {"vector_weight": 0.8},
		"storage": {"backend": "redis", "redis": {"host": "localhost", "port": "6379"}}
	}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workflow.LoopCap != 5 || !cfg.Workflow.RequireApprove {
		t.Errorf("workflow overrides: %+v", cfg.Workflow)
	}
	if cfg.Retrieval.VectorWeight != 0.8 {
		t.Errorf("vector weight: %v", cfg.Retrieval.VectorWeight)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("backend: %q", cfg.Storage.Backend)
	}
}

func TestLoadConfigRejectsBadBackend(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, `{"storage": {"backend": "cassandra"}}`)); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestLoadConfigRejectsIncompleteRedis(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, `{"storage": {"backend": "redis"}}`)); err == nil {
		t.Error("redis backend without host accepted")
	}
}

func TestServerConfigValidate(t *testing.T) {
	ok := ServerConfig{AuthEnabled: false}
	if err := ok.Validate(); err != nil {
		t.Errorf("auth disabled: %v", err)
	}
	bad := ServerConfig{AuthEnabled: true}
	if err := bad.Validate(); err == nil {
		t.Error("auth enabled without secret accepted")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "questor"}
	want := "postgres://u:p@db:5432/questor?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("dsn: got %q, want %q", got, want)
	}

	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Errorf("explicit url ignored: %q", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
