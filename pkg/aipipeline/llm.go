package aipipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medibrief/api/pkg/aiinput"
)

// summarySystemPrompt constrains the LLM's output into the enumerated
// sections clinicians expect and forbids diagnosis (spec.md §4.8).
const summarySystemPrompt = `You are a clinical documentation assistant. You are given an anonymized patient snapshot (age band, vital sign trends, recent lab values, and recent symptom notes). Produce a structured summary with exactly these sections, each as a heading followed by 2-4 sentences:

Clinical Overview
Vital Sign Trends
Laboratory Findings
Symptom Analysis
Risk Assessment
Recommended Monitoring
Disclaimer

Never state or imply a diagnosis. Describe patterns, not conclusions. The Disclaimer section must state that this is not a diagnosis and must be reviewed by a licensed clinician.`

// chatSystemPrompt constrains the RAG chat variant to answer strictly
// from the provided anonymized context (spec.md §4.8).
const chatSystemPrompt = `You are a clinical assistant answering a question about a patient using only the anonymized snapshot provided below. If the snapshot does not contain enough information to answer, say so. Never state or imply a diagnosis, and always note that your answer does not replace clinical judgment.`

// LLMConfig holds connection settings for the configured LLM provider.
type LLMConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Configured reports whether an API key has been set. Callers use this to
// decide between the LLM path and the fallback renderer (spec.md §4.8).
func (c LLMConfig) Configured() bool {
	return c.APIKey != ""
}

// LLMClient calls a chat-completions style HTTP endpoint, following the
// same request/response shape as the provider adapters in pkg/aipipeline's
// grounding (a single POST with a Bearer token and a JSON chat payload).
type LLMClient struct {
	cfg    LLMConfig
	client *http.Client
}

// NewLLMClient creates an LLMClient.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	return &LLMClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateSummary calls the LLM with the summary system prompt and the
// anonymized structured input rendered as context (spec.md §4.8: temp
// 0.2-0.3, max_tokens ~1500).
func (c *LLMClient) GenerateSummary(ctx context.Context, in aiinput.StructuredInput, ageBand string) (string, error) {
	return c.complete(ctx, summarySystemPrompt, renderContext(in, ageBand), 0.25, 1500)
}

// AnswerQuestion calls the LLM with the chat system prompt, the
// anonymized context, and the caller's question (spec.md §4.8 RAG chat).
func (c *LLMClient) AnswerQuestion(ctx context.Context, in aiinput.StructuredInput, ageBand, question string) (string, error) {
	prompt := renderContext(in, ageBand) + "\n\nQuestion: " + question
	return c.complete(ctx, chatSystemPrompt, prompt, 0.3, 800)
}

func (c *LLMClient) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling llm provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// renderContext turns an anonymized structured input into the plain-text
// context block handed to the LLM as part of the user prompt.
func renderContext(in aiinput.StructuredInput, ageBand string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age band: %s\n", ageBand)
	fmt.Fprintf(&b, "Blood pressure trend (most recent first): %v\n", in.BPTrend)
	fmt.Fprintf(&b, "Glucose trend (most recent first): %v\n", in.GlucoseTrend)
	fmt.Fprintf(&b, "Heart rate trend (most recent first): %v\n", in.HeartRateTrend)
	fmt.Fprintf(&b, "Weight trend (most recent first): %v\n", in.WeightTrend)
	fmt.Fprintf(&b, "Recent lab values: %v\n", in.RecentLabValues)
	fmt.Fprintf(&b, "Recent symptom notes: %v\n", in.RecentSymptoms)
	return b.String()
}
