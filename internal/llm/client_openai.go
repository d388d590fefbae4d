package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"samplewatch/internal/logging"
)

// OpenAIClient implements Client for the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// NewOpenAIClient creates an OpenAI client. A missing API key is a
// construction error.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logging.LLM("initialized OpenAI client with model %s", cfg.Model)
	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeNote classifies one note. Transport and decode failures yield
// the fallback analysis with a nil error.
func (c *OpenAIClient) AnalyzeNote(ctx context.Context, noteContent, sampleDate string) (Analysis, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(noteContent, sampleDate)},
		},
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] request failed: %v", err)
		return Fallback(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] failed to read response: %v", err)
		return Fallback(fmt.Sprintf("failed to read response: %v", err)), nil
	}
	if resp.StatusCode != http.StatusOK {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] status %d: %s", resp.StatusCode, string(body))
		return Fallback(fmt.Sprintf("API request failed with status %d", resp.StatusCode)), nil
	}

	var openaiResp openAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] failed to parse response: %v", err)
		return Fallback(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if openaiResp.Error != nil {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] API error: %s", openaiResp.Error.Message)
		return Fallback(fmt.Sprintf("API error: %s", openaiResp.Error.Message)), nil
	}
	if len(openaiResp.Choices) == 0 {
		logging.Get(logging.CategoryLLM).Error("[OpenAI] no completion returned")
		return Fallback("no completion returned"), nil
	}

	analysis := parseAnalysis(openaiResp.Choices[0].Message.Content)
	logging.LLMDebug("[OpenAI] analysis: %+v", analysis)
	return analysis, nil
}

// SetModel changes the model used for analysis.
func (c *OpenAIClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string { return c.model }
