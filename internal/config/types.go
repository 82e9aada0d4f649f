package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// LogFormat selects the log writer.
type LogFormat string

const (
	LogJSON    LogFormat = "json"
	LogConsole LogFormat = "console"
)

// Config is the top-level medisur configuration, corresponding to .medisur.yml.
type Config struct {
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Database   DatabaseConfig   `yaml:"database" koanf:"database"`
	Log        LogConfig        `yaml:"log" koanf:"log"`
	LLM        LLMConfig        `yaml:"llm" koanf:"llm"`
	Session    SessionConfig    `yaml:"session" koanf:"session"`
	Geocoder   GeocoderConfig   `yaml:"geocoder" koanf:"geocoder"`
	Handoff    HandoffConfig    `yaml:"handoff" koanf:"handoff"`
	Facilities FacilitiesConfig `yaml:"facilities" koanf:"facilities"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string    `yaml:"level" koanf:"level"`
	Format LogFormat `yaml:"format" koanf:"format"`
}

// LLMConfig selects the oracle backend.
type LLMConfig struct {
	Provider           ProviderType `yaml:"provider" koanf:"provider"`
	Model              string       `yaml:"model" koanf:"model"`
	TranscriptionModel string       `yaml:"transcription_model" koanf:"transcription_model"`
	BaseURL            string       `yaml:"base_url" koanf:"base_url"`
	RequestsPerMinute  int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// SessionConfig bounds the conversation protocol.
type SessionConfig struct {
	MaxRounds         int           `yaml:"max_rounds" koanf:"max_rounds"`
	QuestionsPerRound int           `yaml:"questions_per_round" koanf:"questions_per_round"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout" koanf:"oracle_timeout"`
	AudioDir          string        `yaml:"audio_dir" koanf:"audio_dir"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes" koanf:"max_message_bytes"`
	WriteTimeout      time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
}

// GeocoderConfig configures the Nominatim-compatible geocoder.
type GeocoderConfig struct {
	BaseURL   string        `yaml:"base_url" koanf:"base_url"`
	UserAgent string        `yaml:"user_agent" koanf:"user_agent"`
	CacheSize int           `yaml:"cache_size" koanf:"cache_size"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout"`
}

// HandoffConfig configures facility intake delivery.
type HandoffConfig struct {
	IntakePath string        `yaml:"intake_path" koanf:"intake_path"`
	Timeout    time.Duration `yaml:"timeout" koanf:"timeout"`
}

// FacilitiesConfig configures the facility health monitor.
type FacilitiesConfig struct {
	Monitor        bool          `yaml:"monitor" koanf:"monitor"`
	HealthInterval time.Duration `yaml:"health_interval" koanf:"health_interval"`
	HealthPath     string        `yaml:"health_path" koanf:"health_path"`
}
