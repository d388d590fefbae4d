package llm

import (
	"fmt"
	"strings"

	"samplewatch/internal/config"
	"samplewatch/internal/logging"
)

// NewClient creates the analysis client selected by the configuration.
// An unsupported provider or missing credential is a construction
// error; callers that want the fail-open analysis policy catch it and
// degrade instead of aborting.
func NewClient(cfg *config.Config) (Client, error) {
	provider := strings.ToLower(cfg.LLM.Provider)
	timeout := cfg.GetLLMTimeout()

	switch provider {
	case config.ProviderGemini:
		logging.LLM("creating Gemini client")
		return NewGeminiClient(GeminiConfig{
			APIKey:      cfg.LLM.Gemini.APIKey,
			Model:       cfg.LLM.Gemini.Model,
			Temperature: cfg.LLM.Gemini.Temperature,
			Timeout:     timeout,
		})

	case config.ProviderOpenAI:
		logging.LLM("creating OpenAI client")
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			Timeout:     timeout,
		})

	case config.ProviderQwen:
		logging.LLM("creating Qwen client")
		return NewQwenClient(QwenConfig{
			APIKey:      cfg.LLM.Qwen.APIKey,
			URL:         cfg.LLM.Qwen.URL,
			Model:       cfg.LLM.Qwen.Model,
			Temperature: cfg.LLM.Qwen.Temperature,
			Timeout:     timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q (valid: gemini, openai, qwen)", cfg.LLM.Provider)
	}
}
