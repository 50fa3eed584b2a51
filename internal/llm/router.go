// In file: internal/llm/router.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"

	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// ProviderConfig selects and configures the AI backend.
type ProviderConfig struct {
	// Provider is "openai", "gemini" or "anthropic". Empty picks the first
	// provider with a key, in that order.
	Provider         string
	Model            string
	OpenAIKey        string
	OpenAIBaseURL    string
	GeminiKey        string
	AnthropicKey     string
	AnthropicBaseURL string
}

// ResolveProvider fills in the provider and model the config implies.
func (c ProviderConfig) ResolveProvider() (ProviderConfig, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		switch {
		case c.OpenAIKey != "":
			c.Provider = ProviderOpenAI
		case c.GeminiKey != "":
			c.Provider = ProviderGemini
		case c.AnthropicKey != "":
			c.Provider = ProviderAnthropic
		default:
			return c, errors.New("no AI backend configured: set OPENAI_API_KEY, GEMINI_API_KEY or ANTHROPIC_API_KEY")
		}
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
	case ProviderGemini:
		if c.Model == "" {
			c.Model = defaultGeminiModel
		}
	case ProviderAnthropic:
		if c.Model == "" {
			c.Model = defaultAnthropicModel
		}
	default:
		return c, fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
	return c, nil
}

// NewClient builds the client for the configured provider and returns the
// resolved config alongside it so callers know which model to request.
func NewClient(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (LLMClient, ProviderConfig, error) {
	cfg, err := cfg.ResolveProvider()
	if err != nil {
		return nil, cfg, err
	}
	switch cfg.Provider {
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.GeminiKey, logger)
		return c, cfg, err
	case ProviderAnthropic:
		c, err := NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicBaseURL, logger)
		return c, cfg, err
	default:
		c, err := NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, logger)
		return c, cfg, err
	}
}
