package cmd

import (
	"fmt"

	"github.com/ziadkadry99/medisur/internal/config"
	"github.com/ziadkadry99/medisur/internal/db"
	"github.com/ziadkadry99/medisur/internal/llm"
	"github.com/ziadkadry99/medisur/internal/logging"
)

// loadConfig loads and validates the config, providing a user-friendly error,
// and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `medisur init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logging.Setup(level, string(cfg.Log.Format))
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return database, nil
}

func llmSettings(cfg *config.Config) llm.Settings {
	return llm.Settings{
		Provider:           string(cfg.LLM.Provider),
		Model:              cfg.LLM.Model,
		TranscriptionModel: cfg.LLM.TranscriptionModel,
		BaseURL:            cfg.LLM.BaseURL,
	}
}

// createLLMProviderFromConfig creates the rate-limited oracle backend.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(llmSettings(cfg))
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(provider, cfg.LLM.RequestsPerMinute), nil
}
