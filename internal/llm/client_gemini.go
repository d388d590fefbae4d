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

// GeminiClient implements Client for the Google Gemini API.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-1.5-flash",
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	}
}

// NewGeminiClient creates a Gemini client. A missing API key is a
// construction error, surfaced before any request is made.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logging.LLM("initialized Gemini client with model %s", cfg.Model)
	return &GeminiClient{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeNote classifies one note. Transport and decode failures yield
// the fallback analysis with a nil error.
func (c *GeminiClient) AnalyzeNote(ctx context.Context, noteContent, sampleDate string) (Analysis, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildPrompt(noteContent, sampleDate)}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: 1000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[Gemini] request failed: %v", err)
		return Fallback(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[Gemini] failed to read response: %v", err)
		return Fallback(fmt.Sprintf("failed to read response: %v", err)), nil
	}
	if resp.StatusCode != http.StatusOK {
		logging.Get(logging.CategoryLLM).Error("[Gemini] status %d: %s", resp.StatusCode, string(body))
		return Fallback(fmt.Sprintf("API request failed with status %d", resp.StatusCode)), nil
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		logging.Get(logging.CategoryLLM).Error("[Gemini] failed to parse response: %v", err)
		return Fallback(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if geminiResp.Error != nil {
		logging.Get(logging.CategoryLLM).Error("[Gemini] API error: %s", geminiResp.Error.Message)
		return Fallback(fmt.Sprintf("API error: %s", geminiResp.Error.Message)), nil
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		logging.Get(logging.CategoryLLM).Error("[Gemini] no completion returned")
		return Fallback("no completion returned"), nil
	}

	analysis := parseAnalysis(geminiResp.Candidates[0].Content.Parts[0].Text)
	logging.LLMDebug("[Gemini] analysis: %+v", analysis)
	return analysis, nil
}

// SetModel changes the model used for analysis.
func (c *GeminiClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string { return c.model }
