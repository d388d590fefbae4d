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

// QwenClient implements Client for the Qwen (Alibaba Cloud) API. The
// endpoint URL is deployment-specific; depending on the gateway the
// response carries either an OpenAI-style choices array or a
// DashScope-style output object, and both shapes are accepted.
type QwenClient struct {
	apiKey      string
	apiURL      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// QwenConfig holds configuration for the Qwen client.
type QwenConfig struct {
	APIKey      string
	URL         string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewQwenClient creates a Qwen client. Missing key or URL is a
// construction error.
func NewQwenClient(cfg QwenConfig) (*QwenClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("QWEN_API_KEY is not configured")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("QWEN_API_URL is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = "qwen-turbo"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logging.LLM("initialized Qwen client with model %s", cfg.Model)
	return &QwenClient{
		apiKey:      cfg.APIKey,
		apiURL:      cfg.URL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type qwenRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type qwenResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Output *struct {
		Text string `json:"text"`
	} `json:"output"`
}

// AnalyzeNote classifies one note. Transport and decode failures yield
// the fallback analysis with a nil error.
func (c *QwenClient) AnalyzeNote(ctx context.Context, noteContent, sampleDate string) (Analysis, error) {
	reqBody := qwenRequest{
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

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[Qwen] request failed: %v", err)
		return Fallback(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("[Qwen] failed to read response: %v", err)
		return Fallback(fmt.Sprintf("failed to read response: %v", err)), nil
	}
	if resp.StatusCode != http.StatusOK {
		logging.Get(logging.CategoryLLM).Error("[Qwen] status %d: %s", resp.StatusCode, string(body))
		return Fallback(fmt.Sprintf("API request failed with status %d", resp.StatusCode)), nil
	}

	var qwenResp qwenResponse
	if err := json.Unmarshal(body, &qwenResp); err != nil {
		logging.Get(logging.CategoryLLM).Error("[Qwen] failed to parse response: %v", err)
		return Fallback(fmt.Sprintf("failed to parse response: %v", err)), nil
	}

	var text string
	switch {
	case len(qwenResp.Choices) > 0:
		text = qwenResp.Choices[0].Message.Content
	case qwenResp.Output != nil:
		text = qwenResp.Output.Text
	default:
		logging.Get(logging.CategoryLLM).Error("[Qwen] no completion returned")
		return Fallback("no completion returned"), nil
	}

	analysis := parseAnalysis(text)
	logging.LLMDebug("[Qwen] analysis: %+v", analysis)
	return analysis, nil
}

// SetModel changes the model used for analysis.
func (c *QwenClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *QwenClient) GetModel() string { return c.model }
