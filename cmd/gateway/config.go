// In file: cmd/gateway/config.go
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/tool-gateway/internal/gateway"
	"github.com/dileep-u-k/tool-gateway/internal/llm"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

const defaultConfigPath = "config.yaml"

// AppConfig holds all configuration for the gateway, loaded from the environment and config files.
type AppConfig struct {
	Port      string
	LogLevel  string
	LogFormat string

	LLM llm.ProviderConfig

	// BraveAPIKey enables the local search fallback.
	BraveAPIKey    string
	BraveSearchURL string
	WeatherURL     string
	// NewsAPIKey enables the news headlines tool.
	NewsAPIKey string
	NewsAPIURL string
	// RedisAddr enables tool statistics. Empty disables them.
	RedisAddr string

	Hosted   []transport.HostedConfig
	Aliases  map[string]string
	Policies map[string]gateway.ToolPolicy
	Dispatch DispatchConfig
	Gateway  GatewayConfig
}

type DispatchConfig struct {
	CallTimeout    time.Duration `yaml:"call_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

type GatewayConfig struct {
	SystemPrompt         string   `yaml:"system_prompt"`
	SummarizeToolResults bool     `yaml:"summarize_tool_results"`
	MaxTokens            int      `yaml:"max_tokens"`
	Temperature          *float32 `yaml:"temperature"`
}

// fileConfig mirrors config.yaml.
type fileConfig struct {
	Hosted   []hostedEntry          `yaml:"hosted"`
	Aliases  map[string]string      `yaml:"aliases"`
	Tools    map[string]policyEntry `yaml:"tools"`
	Dispatch DispatchConfig         `yaml:"dispatch"`
	Gateway  GatewayConfig          `yaml:"gateway"`
}

type hostedEntry struct {
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	URL       string `yaml:"url"`
	Transport string `yaml:"transport"`
	// Secrets are never written into the file, only the variables holding them.
	APIKeyEnv      string `yaml:"api_key_env"`
	ProfileEnv     string `yaml:"profile_env"`
	ProvidesSearch bool   `yaml:"provides_search"`
}

type policyEntry struct {
	Source   string   `yaml:"source"`
	Fallback []string `yaml:"fallback"`
}

// LoadConfig loads all configuration from a .env file, environment variables, and the YAML file.
func LoadConfig() (*AppConfig, error) {
	// In Docker (GIN_MODE=release) configuration comes straight from the environment.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Port:      envOr("PORT", "8080"),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
		LLM: llm.ProviderConfig{
			Provider:         os.Getenv("LLM_PROVIDER"),
			Model:            os.Getenv("LLM_MODEL"),
			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
			GeminiKey:        os.Getenv("GEMINI_API_KEY"),
			AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		},
		BraveAPIKey:    os.Getenv("BRAVE_API_KEY"),
		BraveSearchURL: os.Getenv("BRAVE_SEARCH_URL"),
		WeatherURL:     os.Getenv("WEATHER_BASE_URL"),
		NewsAPIKey:     os.Getenv("NEWS_API_KEY"),
		NewsAPIURL:     os.Getenv("NEWS_API_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
	}

	path := envOr("GATEWAY_CONFIG", defaultConfigPath)
	file, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.apply(file, os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// readConfigFile parses the YAML file. A missing file yields the defaults.
func readConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &file, nil
}

// apply validates the file section and folds it into cfg. getenv resolves the
// secrets the hosted entries point at.
func (cfg *AppConfig) apply(file *fileConfig, getenv func(string) string) error {
	var errs []error

	seen := map[tools.Source]string{}
	for i, h := range file.Hosted {
		src, ok := tools.ParseSource(h.Source)
		switch {
		case strings.TrimSpace(h.Name) == "":
			errs = append(errs, fmt.Errorf("hosted[%d]: name is required", i))
			continue
		case !ok || !src.IsHosted():
			errs = append(errs, fmt.Errorf("hosted %s: source must be %s or %s, got %q", h.Name, tools.SourceHostedPrimary, tools.SourceHostedSecondary, h.Source))
			continue
		case h.URL == "":
			errs = append(errs, fmt.Errorf("hosted %s: url is required", h.Name))
			continue
		}
		if other, dup := seen[src]; dup {
			errs = append(errs, fmt.Errorf("hosted %s: source %s is already used by %s", h.Name, src, other))
			continue
		}
		seen[src] = h.Name

		t := strings.ToLower(h.Transport)
		if t != "" && t != "streamable-http" && t != "sse" {
			errs = append(errs, fmt.Errorf("hosted %s: unknown transport %q", h.Name, h.Transport))
			continue
		}
		hc := transport.HostedConfig{
			Name:           h.Name,
			Source:         src,
			URL:            h.URL,
			Transport:      t,
			ProvidesSearch: h.ProvidesSearch,
		}
		if h.APIKeyEnv != "" {
			hc.APIKey = getenv(h.APIKeyEnv)
		}
		if h.ProfileEnv != "" {
			hc.Profile = getenv(h.ProfileEnv)
		}
		cfg.Hosted = append(cfg.Hosted, hc)
	}

	cfg.Policies = make(map[string]gateway.ToolPolicy, len(file.Tools))
	for name, p := range file.Tools {
		var policy gateway.ToolPolicy
		if p.Source != "" {
			src, ok := tools.ParseSource(p.Source)
			if !ok {
				errs = append(errs, fmt.Errorf("tools.%s: unknown source %q", name, p.Source))
				continue
			}
			policy.Source = src
		}
		for _, f := range p.Fallback {
			src, ok := tools.ParseSource(f)
			if !ok {
				errs = append(errs, fmt.Errorf("tools.%s: unknown fallback source %q", name, f))
				continue
			}
			policy.Fallback = append(policy.Fallback, src)
		}
		cfg.Policies[name] = policy
	}

	if file.Dispatch.CallTimeout < 0 || file.Dispatch.ProbeTimeout < 0 || file.Dispatch.MaxConcurrency < 0 {
		errs = append(errs, errors.New("dispatch: timeouts and max_concurrency must not be negative"))
	}

	cfg.Aliases = file.Aliases
	cfg.Dispatch = file.Dispatch
	cfg.Gateway = file.Gateway
	if v := getenv("SUMMARIZE_TOOL_RESULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.SummarizeToolResults = b
		}
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
