// In file: internal/llm/constants.go
package llm

import "time"

// This file centralizes constants shared across the clients in the llm package.
const (
	defaultTimeout    = 120 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultMaxTokens     = 4096
)
