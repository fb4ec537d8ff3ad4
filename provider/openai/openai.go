package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sourcefinder/config"
	"sourcefinder/models"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// ErrModelUnavailable marks completion failures the caller can degrade from.
var ErrModelUnavailable = errors.New("model unavailable")

const maxHistoryTurns = 10

// client implements the provider interface using OpenAI's API
type client struct {
	apiKey          string
	apiURL          string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *client {
	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &client{
		apiKey:          cfg.APIKey,
		apiURL:          apiURL,
		completionModel: cfg.CompletionModel,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
	}
}

const planSystemPrompt = `You are a search query planner. Given a user's question and the conversation so far, write one focused search query per platform, tuned to how that platform's search works:
- Reddit: community discussion phrasing, no operators
- Twitter: short keyword query, hashtags where natural
- Web: precise web search keywords
- News: newsworthy keyword phrasing
- Academic: formal terminology for paper search

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{"Reddit": "...", "Twitter": "...", "Web": "...", "News": "...", "Academic": "..."}
Do not include any other text or explanation.`

// PlanQueries asks the model for per-platform search queries. Any failure,
// including unparseable output, falls back to the user's raw question for
// every requested kind.
func (c *client) PlanQueries(ctx context.Context, query string, history []models.ChatMessage, kinds []models.SourceKind) map[models.SourceKind]string {
	fallback := make(map[models.SourceKind]string, len(kinds))
	for _, kind := range kinds {
		fallback[kind] = query
	}

	messages := append([]Message{{Role: "system", Content: planSystemPrompt}}, historyMessages(history)...)
	messages = append(messages, Message{Role: "user", Content: query})

	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return fallback
	}
	var planned map[string]string
	if err := json.Unmarshal([]byte(stripCodeFence(responseStr)), &planned); err != nil {
		return fallback
	}

	out := make(map[models.SourceKind]string, len(kinds))
	for _, kind := range kinds {
		if q := strings.TrimSpace(planned[string(kind)]); q != "" {
			out[kind] = q
		} else {
			out[kind] = query
		}
	}
	return out
}

const synthesizeSystemPrompt = `You are a research assistant that answers questions using only the provided sources.

RULES:
1. Base every claim on the sources below; do not invent facts
2. Cite sources inline with their bracketed number, e.g. [1] or [2][4]
3. If the sources do not cover part of the question, say so
4. Answer in well-structured Markdown

The sources are numbered; cite them by those numbers only.`

// Synthesize writes the answer from the rendered evidence block. Transport
// and API failures are wrapped in ErrModelUnavailable.
func (c *client) Synthesize(ctx context.Context, query string, history []models.ChatMessage, evidence string) (string, error) {
	userPrompt := fmt.Sprintf("SOURCES:\n%s\nQUESTION: %s", evidence, query)
	if evidence == "" {
		userPrompt = fmt.Sprintf("No sources were found for this question. Say so briefly, then answer from general knowledge, clearly marked as uncited.\n\nQUESTION: %s", query)
	}

	messages := append([]Message{{Role: "system", Content: synthesizeSystemPrompt}}, historyMessages(history)...)
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return responseStr, nil
}

// historyMessages maps the transcript tail onto chat messages, dropping
// per-message sources to keep the prompt small.
func historyMessages(history []models.ChatMessage) []Message {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		out = append(out, Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// stripCodeFence unwraps ```json ... ``` blocks some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// sendRequest sends a request to the OpenAI API
func (c *client) sendRequest(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp response
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return openaiResp.Choices[0].Message.Content, nil
}
