package provider

import (
	"context"
	"errors"
	"fmt"

	"sourcefinder/config"
	"sourcefinder/models"
	openai_provider "sourcefinder/provider/openai"
)

// ErrModelUnavailable is returned when the completion backend cannot produce
// an answer. Callers are expected to degrade to evidence-only responses.
var ErrModelUnavailable = openai_provider.ErrModelUnavailable

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the interface that all LLM implementations must satisfy.
//
// PlanQueries turns the user's question into one tuned search query per
// requested source kind; it degrades to the raw question and never fails.
// Synthesize writes the cited answer from the rendered evidence block.
type Provider interface {
	PlanQueries(ctx context.Context, query string, history []models.ChatMessage, kinds []models.SourceKind) map[models.SourceKind]string
	Synthesize(ctx context.Context, query string, history []models.ChatMessage, evidence string) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set (OPENAI_API_KEY)")
		}
		return openai_provider.NewClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
