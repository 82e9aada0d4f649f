package config

import "time"

// DefaultConfigFile is the file name used by init and the --config flag.
const DefaultConfigFile = ".medisur.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			AllowAll: false,
		},
		Database: DatabaseConfig{
			Path: "data/medisur.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogConsole,
		},
		LLM: LLMConfig{
			Provider:           ProviderOpenAI,
			Model:              "gpt-4o-mini",
			TranscriptionModel: "whisper-1",
			RequestsPerMinute:  60,
		},
		Session: SessionConfig{
			MaxRounds:         1,
			QuestionsPerRound: 1,
			OracleTimeout:     30 * time.Second,
			MaxMessageBytes:   10 << 20,
			WriteTimeout:      10 * time.Second,
		},
		Geocoder: GeocoderConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "medisur",
			CacheSize: 512,
			Timeout:   10 * time.Second,
		},
		Handoff: HandoffConfig{
			IntakePath: "/specialty-appointments/",
			Timeout:    10 * time.Second,
		},
		Facilities: FacilitiesConfig{
			Monitor:        true,
			HealthInterval: 60 * time.Second,
			HealthPath:     "/health",
		},
	}
}
