package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProvider(t *testing.T) {
	cfg, err := ProviderConfig{OpenAIKey: "k"}.ResolveProvider()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, defaultOpenAIModel, cfg.Model)

	cfg, err = ProviderConfig{GeminiKey: "g", Model: "gemini-2.0-flash"}.ResolveProvider()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)

	_, err = ProviderConfig{}.ResolveProvider()
	assert.Error(t, err)

	_, err = ProviderConfig{Provider: "mistral", OpenAIKey: "k"}.ResolveProvider()
	assert.Error(t, err)
}

func TestNewClient_OpenAI(t *testing.T) {
	c, cfg, err := NewClient(context.Background(), ProviderConfig{Provider: "OpenAI", OpenAIKey: "k", OpenAIBaseURL: "http://localhost:1234/v1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:1234/v1/chat/completions", oc.endpoint)
}

func TestNewClient_Anthropic(t *testing.T) {
	cfg, err := ProviderConfig{AnthropicKey: "a"}.ResolveProvider()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, defaultAnthropicModel, cfg.Model)

	c, cfg, err := NewClient(context.Background(), ProviderConfig{Provider: "anthropic", AnthropicKey: "a", AnthropicBaseURL: "http://localhost:1234/v1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	ac, ok := c.(*AnthropicClient)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:1234/v1/messages", ac.endpoint)

	_, _, err = NewClient(context.Background(), ProviderConfig{Provider: "anthropic"}, nil)
	assert.Error(t, err)
}
