// Package classifier wraps the AI lead-classification call and its
// deterministic fallback. A Classification is a point-in-time judgment used
// only as input; it is never mutated after creation.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"

	"google.golang.org/genai"
)

// Classification is the AI (or fallback) judgment for a lead.
type Classification struct {
	Division       string   `json:"division"`
	Priority       string   `json:"priority"`
	EstimatedValue float64  `json:"estimatedValue"`
	Reasoning      string   `json:"reasoning"`
	NextSteps      []string `json:"nextSteps"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"` // "ai" or "fallback"
}

// Classifier produces Classifications from lead snapshots. When the AI call
// fails or is not configured, Classify degrades to the rule-based fallback
// rather than returning an error.
type Classifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

// New creates a classifier. A missing API key is a configuration gap, not a
// startup failure: the classifier runs in fallback-only mode and logs a
// warning.
func New(ctx context.Context, cfg config.AIConfig, log *logger.Logger) *Classifier {
	c := &Classifier{
		model:   cfg.GetGeminiModel(),
		timeout: cfg.GetAICallTimeout(),
		log:     log,
	}

	if cfg.GetGeminiAPIKey() == "" {
		log.Warn("classifier: GEMINI_API_KEY not set, using rule-based fallback only")
		return c
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Warn("classifier: genai client init failed, using rule-based fallback only", "error", err)
		return c
	}

	c.client = client
	return c
}

const classifyPrompt = `You are a lead classifier for a business funding brokerage.
Classify the lead below into a division ("lending", "investment" or "real_estate"),
a priority ("hot", "warm" or "cold"), an estimated deal value in dollars,
a short reasoning, up to three next steps, and a confidence between 0 and 1.
Respond with a single JSON object with keys: division, priority, estimatedValue,
reasoning, nextSteps, confidence.

Lead:
%s`

// Classify returns a Classification for the snapshot. Never returns an error:
// any AI failure degrades to the deterministic fallback.
func (c *Classifier) Classify(ctx context.Context, snapshot map[string]any) Classification {
	if c.client == nil {
		return Fallback(snapshot)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	leadJSON, err := json.Marshal(snapshot)
	if err != nil {
		return Fallback(snapshot)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(fmt.Sprintf(classifyPrompt, leadJSON)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		c.log.Warn("classifier: AI call failed, using fallback", "error", err)
		return Fallback(snapshot)
	}

	var result Classification
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &result); err != nil {
		c.log.Warn("classifier: unparseable AI response, using fallback", "error", err)
		return Fallback(snapshot)
	}

	if !isKnownDivision(result.Division) || !isKnownPriority(result.Priority) {
		c.log.Warn("classifier: AI returned unknown division or priority, using fallback",
			"division", result.Division, "priority", result.Priority)
		return Fallback(snapshot)
	}

	result.Source = "ai"
	return result
}

// Chat sends a free-form directive about a lead to the model and returns the
// response text. Used by ai_followup workflow actions; the engine treats the
// call as fire-and-forget.
func (c *Classifier) Chat(ctx context.Context, directive string, snapshot map[string]any) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("classifier: AI not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	leadJSON, _ := json.Marshal(snapshot)
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(directive+"\n\nLead context:\n"+string(leadJSON)), nil)
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isKnownDivision(d string) bool {
	switch d {
	case "lending", "investment", "real_estate":
		return true
	}
	return false
}

func isKnownPriority(p string) bool {
	switch p {
	case "hot", "warm", "cold":
		return true
	}
	return false
}
