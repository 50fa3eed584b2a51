// In file: internal/tools/weather_tool.go
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Weather Tool Implementation ---

const defaultWeatherURL = "https://wttr.in"

// WeatherTool fetches a one-line weather report. It needs no credential.
type WeatherTool struct {
	baseURL    string
	httpClient *http.Client
}

var _ ToolExecutor = (*WeatherTool)(nil)

// NewWeatherTool creates a WeatherTool. An empty baseURL selects wttr.in.
func NewWeatherTool(baseURL string) *WeatherTool {
	if baseURL == "" {
		baseURL = defaultWeatherURL
	}
	return &WeatherTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (wt *WeatherTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "get_current_weather",
		Description: "Get the current weather for a specific location",
		Source:      SourceLocal,
		Parameters: JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"location": {
					Type:        "string",
					Description: "The city and state, e.g., San Francisco, CA or Kharagpur, India",
				},
			},
			Required: []string{"location"},
		},
	}
}

// Execute returns the plain-text report; the normalizer passes strings through untouched.
func (wt *WeatherTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for weather tool: %w", err)
	}
	if strings.TrimSpace(args.Location) == "" {
		return nil, fmt.Errorf("%w: location cannot be empty", ErrInvalidArguments)
	}

	endpoint := fmt.Sprintf("%s/%s?format=3", wt.baseURL, url.PathEscape(args.Location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather API request: %w", err)
	}
	// Some services block the default Go user agent.
	req.Header.Set("User-Agent", "Tool-Gateway/1.0")

	resp, err := wt.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call weather API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned non-200 status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather API response: %w", err)
	}

	report := strings.TrimSpace(string(body))
	if strings.Contains(report, "Unknown location") {
		return nil, fmt.Errorf("unknown location %q", args.Location)
	}
	return report, nil
}
