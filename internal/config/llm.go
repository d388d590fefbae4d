package config

import (
	"fmt"
	"os"
	"strconv"
)

// LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"
)

// LLMConfig selects and configures the note-analysis provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai, qwen
	Timeout  string `yaml:"timeout"`  // per-request timeout, e.g. "30s"

	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Qwen   QwenConfig   `yaml:"qwen"`
}

// GeminiConfig configures the Google Gemini client.
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// QwenConfig configures the Qwen (Alibaba Cloud) client. The endpoint
// URL is deployment-specific, so it has no default.
type QwenConfig struct {
	APIKey      string  `yaml:"api_key"`
	URL         string  `yaml:"url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultLLMConfig mirrors the model defaults of the original
// deployment.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: ProviderGemini,
		Timeout:  "30s",
		Gemini: GeminiConfig{
			Model:       "gemini-1.5-flash",
			Temperature: 0.3,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
		},
		Qwen: QwenConfig{
			Model:       "qwen-turbo",
			Temperature: 0.3,
		},
	}
}

func (c *LLMConfig) applyEnvOverrides() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider = v
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("GEMINI_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gemini.Temperature = t
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.OpenAI.Temperature = t
		}
	}

	if key := os.Getenv("QWEN_API_KEY"); key != "" {
		c.Qwen.APIKey = key
	}
	if v := os.Getenv("QWEN_API_URL"); v != "" {
		c.Qwen.URL = v
	}
	if v := os.Getenv("QWEN_MODEL"); v != "" {
		c.Qwen.Model = v
	}
	if v := os.Getenv("QWEN_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.Qwen.Temperature = t
		}
	}
}

// Validate checks that the selected provider has its credentials. Other
// providers' sections may stay empty.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is not configured")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not configured")
		}
	case ProviderQwen:
		if c.Qwen.APIKey == "" {
			return fmt.Errorf("QWEN_API_KEY is not configured")
		}
		if c.Qwen.URL == "" {
			return fmt.Errorf("QWEN_API_URL is not configured")
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q (valid: gemini, openai, qwen)", c.Provider)
	}
	return nil
}
