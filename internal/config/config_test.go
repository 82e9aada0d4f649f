package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.LLM.Provider)
	}
	if cfg.Session.MaxRounds != 1 {
		t.Errorf("expected default max_rounds 1, got %d", cfg.Session.MaxRounds)
	}
	if cfg.Session.QuestionsPerRound != 1 {
		t.Errorf("expected default questions_per_round 1, got %d", cfg.Session.QuestionsPerRound)
	}
	if cfg.LLM.TranscriptionModel != "whisper-1" {
		t.Errorf("expected whisper-1, got %q", cfg.LLM.TranscriptionModel)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.medisur.yml")

	original := DefaultConfig()
	original.LLM.Model = "gpt-4o"
	original.Session.MaxRounds = 3
	original.Session.OracleTimeout = 45 * time.Second
	original.Database.Path = "/var/lib/medisur/medisur.db"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Model != original.LLM.Model {
		t.Errorf("model: got %q, want %q", loaded.LLM.Model, original.LLM.Model)
	}
	if loaded.Session.MaxRounds != 3 {
		t.Errorf("max_rounds: got %d, want 3", loaded.Session.MaxRounds)
	}
	if loaded.Session.OracleTimeout != 45*time.Second {
		t.Errorf("oracle_timeout: got %s, want 45s", loaded.Session.OracleTimeout)
	}
	if loaded.Database.Path != original.Database.Path {
		t.Errorf("database.path: got %q, want %q", loaded.Database.Path, original.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("MEDISUR_LLM__MODEL", "gpt-4.1-mini")
	t.Setenv("MEDISUR_SESSION__MAX_ROUNDS", "2")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("env override failed: got %q", loaded.LLM.Model)
	}
	if loaded.Session.MaxRounds != 2 {
		t.Errorf("env override failed: max_rounds = %d", loaded.Session.MaxRounds)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"MEDISUR_LLM__MODEL":         "llm.model",
		"MEDISUR_SERVER__PORT":       "server.port",
		"MEDISUR_SESSION__AUDIO_DIR": "session.audio_dir",
		"MEDISUR_DATABASE__PATH":     "database.path",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid provider", func(c *Config) { c.LLM.Provider = "invalid" }},
		{"empty provider", func(c *Config) { c.LLM.Provider = "" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
		{"negative rounds", func(c *Config) { c.Session.MaxRounds = -1 }},
		{"zero questions", func(c *Config) { c.Session.QuestionsPerRound = 0 }},
		{"zero oracle timeout", func(c *Config) { c.Session.OracleTimeout = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"monitor without interval", func(c *Config) { c.Facilities.HealthInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnvVar(openai) = %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("APIKeyEnvVar(ollama) = %q, want empty", got)
	}
}

func TestSaveWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file: %v", err)
	}
}
