package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "querymind.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Storage.TaskStore.Driver != "memory" {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.TaskStore.Driver)
	}
	if cfg.Storage.TaskStore.Retries != 3 {
		t.Fatalf("unexpected retries: %d", cfg.Storage.TaskStore.Retries)
	}
	if cfg.TaskQueue.Driver != "memory" || cfg.TaskQueue.Worker != 2 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.TaskQueue)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("unexpected llm provider: %s", cfg.LLM.Provider)
	}
	if cfg.Sandbox.PythonExec != "python3" || cfg.Sandbox.TimeoutSeconds != 30 {
		t.Fatalf("unexpected sandbox defaults: %+v", cfg.Sandbox)
	}
	if cfg.Knowledge.MaxResults != 5 {
		t.Fatalf("unexpected knowledge defaults: %+v", cfg.Knowledge)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
		"llm": {"model_config": "models.yaml"},
		"knowledge": {"source": "knowledge.json"},
		"plugins": {"config_path": "plugins.yaml"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	baseDir := filepath.Dir(path)
	if cfg.LLM.ModelConfig != filepath.Join(baseDir, "models.yaml") {
		t.Fatalf("model config not resolved: %s", cfg.LLM.ModelConfig)
	}
	if cfg.Knowledge.Source != filepath.Join(baseDir, "knowledge.json") {
		t.Fatalf("knowledge source not resolved: %s", cfg.Knowledge.Source)
	}
	if cfg.Plugins.ConfigPath != filepath.Join(baseDir, "plugins.yaml") {
		t.Fatalf("plugin config not resolved: %s", cfg.Plugins.ConfigPath)
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"address": ":9090"},
		"storage": {"task_store": {"driver": "mysql", "dsn": "user:pass@tcp(db:3306)/querymind", "retries": 7}},
		"task_queue": {"driver": "redis", "worker": 8},
		"llm": {"provider": "openai", "openai": {"api_key": "sk-test", "temperature": 0.4}},
		"agent": {"memory_depth": 9, "max_retries": 2}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("address overridden: %s", cfg.Server.Address)
	}
	if cfg.Storage.TaskStore.Driver != "mysql" || cfg.Storage.TaskStore.Retries != 7 {
		t.Fatalf("storage values overridden: %+v", cfg.Storage.TaskStore)
	}
	if cfg.TaskQueue.Driver != "redis" || cfg.TaskQueue.Worker != 8 {
		t.Fatalf("queue values overridden: %+v", cfg.TaskQueue)
	}
	if cfg.LLM.OpenAI.ResolveAPIKey() != "sk-test" {
		t.Fatalf("api key lost: %q", cfg.LLM.OpenAI.ResolveAPIKey())
	}
	if cfg.Agent.MemoryDepth != 9 || cfg.Agent.MaxRetries != 2 {
		t.Fatalf("agent values overridden: %+v", cfg.Agent)
	}
}

func TestResolveAPIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("QUERYMIND_TEST_KEY", "  env-key  ")
	c := GeminiConfig{APIKeyEnv: "QUERYMIND_TEST_KEY"}
	if got := c.ResolveAPIKey(); got != "env-key" {
		t.Fatalf("unexpected key: %q", got)
	}
	c.APIKey = "inline-key"
	if got := c.ResolveAPIKey(); got != "inline-key" {
		t.Fatalf("inline key must win: %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("empty path must fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file must fail")
	}
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("invalid json must fail")
	}
}
