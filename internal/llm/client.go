// Package llm provides the note-analysis clients for the supported
// providers (Gemini, OpenAI, Qwen) behind one interface. All providers
// speak their HTTP APIs directly and normalize responses to the same
// strict-JSON contract; transport errors and malformed responses never
// propagate as analysis failures - they yield a fixed fallback
// analysis with the error captured in Reasoning.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"samplewatch/internal/logging"
)

// Sample statuses reported by the analysis.
const (
	StatusReceived    = "received"
	StatusDelayed     = "delayed"
	StatusNotReceived = "not_received"
	StatusUnknown     = "unknown"
)

// Customer satisfaction values reported by the analysis.
const (
	SatisfactionSatisfied   = "satisfied"
	SatisfactionUnsatisfied = "unsatisfied"
	SatisfactionNeutral     = "neutral"
	SatisfactionUnknown     = "unknown"
)

// Note categories reported by the analysis.
const (
	CategoryConfirmation = "sample_confirmation"
	CategoryDelay        = "sample_delay"
	CategoryComplaint    = "sample_complaint"
	CategoryInquiry      = "sample_inquiry"
	CategoryOther        = "other"
)

// Analysis is the normalized result of classifying one note against
// one sample shipment.
type Analysis struct {
	MentionsSample       bool    `json:"mentions_sample"`
	SampleStatus         string  `json:"sample_status"`
	CustomerSatisfaction string  `json:"customer_satisfaction"`
	Category             string  `json:"category"`
	Confidence           float64 `json:"confidence"`
	Reasoning            string  `json:"reasoning"`
}

// Client analyzes a note for information about a shipped sample.
// sampleDate is the ship date formatted as 2006-01-02.
type Client interface {
	AnalyzeNote(ctx context.Context, noteContent, sampleDate string) (Analysis, error)
}

// Fallback returns the fixed analysis used whenever a provider cannot
// produce a usable one: nothing mentioned, everything unknown, zero
// confidence, the failure captured in Reasoning.
func Fallback(reason string) Analysis {
	return Analysis{
		MentionsSample:       false,
		SampleStatus:         StatusUnknown,
		CustomerSatisfaction: SatisfactionUnknown,
		Category:             CategoryOther,
		Confidence:           0.0,
		Reasoning:            reason,
	}
}

const systemPrompt = "You are an expert at analyzing business notes. You always respond with JSON only."

// buildPrompt renders the analysis prompt for one note. The contract
// must stay in lockstep with the Analysis struct tags.
func buildPrompt(noteContent, sampleDate string) string {
	return fmt.Sprintf(`You are an expert at analyzing business notes. Analyze the note below for information about a product sample.

Sample ship date: %s

Note content:
"%s"

Analyze the note and respond ONLY with a JSON object (no extra text):
{
    "mentions_sample": true/false,
    "sample_status": "received" | "delayed" | "not_received" | "unknown",
    "customer_satisfaction": "satisfied" | "unsatisfied" | "neutral" | "unknown",
    "category": "sample_confirmation" | "sample_delay" | "sample_complaint" | "sample_inquiry" | "other",
    "confidence": 0.0-1.0,
    "reasoning": "short justification"
}

Rules:
- "mentions_sample": true only when the note explicitly mentions the sample(s)
- "sample_status":
  * "received" - the customer confirmed receiving the sample
  * "delayed" - a delivery delay is mentioned
  * "not_received" - the customer reports the sample did not arrive
  * "unknown" - the status cannot be determined
- "customer_satisfaction":
  * "satisfied" - the customer is happy with the sample
  * "unsatisfied" - the customer is unhappy
  * "neutral" - no satisfaction signal
  * "unknown" - cannot be determined
- "category": pick the closest category
- "confidence": 0.0-1.0, where 1.0 is full certainty

Respond with JSON ONLY, no commentary.`, sampleDate, noteContent)
}

// parseAnalysis decodes a provider completion into an Analysis,
// stripping markdown code fences first. A decode failure yields the
// fallback analysis, never an error.
func parseAnalysis(raw string) Analysis {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var a Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		logging.Get(logging.CategoryLLM).Error("failed to parse analysis JSON: %v", err)
		logging.LLMDebug("raw response: %s", raw)
		return Fallback(fmt.Sprintf("failed to parse response: %v", err))
	}
	if a.SampleStatus == "" {
		a.SampleStatus = StatusUnknown
	}
	if a.CustomerSatisfaction == "" {
		a.CustomerSatisfaction = SatisfactionUnknown
	}
	if a.Category == "" {
		a.Category = CategoryOther
	}
	return a
}
