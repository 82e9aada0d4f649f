package llm

import (
	"fmt"
	"os"
)

// Settings selects and parameterises a provider.
type Settings struct {
	Provider           string
	Model              string
	TranscriptionModel string
	BaseURL            string
}

// NewProvider creates a new LLM provider from settings.
// Supported provider types: "openai", "ollama".
func NewProvider(s Settings) (Provider, error) {
	switch s.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, s.BaseURL, s.Model, s.TranscriptionModel), nil

	case "ollama":
		host := s.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, s.Model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", s.Provider)
	}
}

// NewTranscriber returns the speech-to-text backend. Only OpenAI-compatible
// endpoints transcribe, so an Ollama chat setup still needs OPENAI_API_KEY
// for audio input.
func NewTranscriber(s Settings) (Transcriber, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	baseURL := s.BaseURL
	if s.Provider != "openai" {
		baseURL = ""
	}
	return NewOpenAIProvider(apiKey, baseURL, s.Model, s.TranscriptionModel), nil
}
