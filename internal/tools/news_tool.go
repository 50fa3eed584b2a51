// In file: internal/tools/news_tool.go
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- News Tool Implementation ---

const defaultNewsAPIURL = "https://newsapi.org/v2/top-headlines"

// NewsTool fetches the latest headlines from NewsAPI (https://newsapi.org).
type NewsTool struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

var _ ToolExecutor = (*NewsTool)(nil)

// NewNewsTool creates a NewsTool. An empty endpoint selects NewsAPI.
func NewNewsTool(apiKey, endpoint string) (*NewsTool, error) {
	if apiKey == "" {
		return nil, errors.New("NewsAPI key cannot be empty")
	}
	if endpoint == "" {
		endpoint = defaultNewsAPIURL
	}
	return &NewsTool{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// Descriptor leaves every argument optional; NewsAPI accepts any combination.
func (nt *NewsTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "get_news_headlines",
		Description: "Fetches the latest news headlines about a specific topic, category, or from a particular country.",
		Source:      SourceLocal,
		Aliases:     []string{"getNewsHeadlines"},
		Parameters: JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"query": {
					Type:        "string",
					Description: "The topic or keyword to search for in the news, e.g., 'artificial intelligence'.",
				},
				"category": {
					Type:        "string",
					Description: "The category of news.",
					Enum:        []any{"business", "entertainment", "general", "health", "science", "sports", "technology"},
				},
				"country": {
					Type:        "string",
					Description: "The 2-letter ISO 3166-1 code of the country, e.g., 'us', 'in' or 'gb'.",
				},
			},
		},
	}
}

// Headline is one entry of the structured news payload.
type Headline struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Execute returns {"totalResults": n, "articles": [...]}, at most five articles.
func (nt *NewsTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Query    string `json:"query"`
		Category string `json:"category"`
		Country  string `json:"country"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for news tool: %w", err)
	}

	params := url.Values{}
	if args.Query != "" {
		params.Add("q", args.Query)
	}
	if args.Category != "" {
		params.Add("category", args.Category)
	}
	if args.Country != "" {
		params.Add("country", args.Country)
	}
	// NewsAPI rejects top-headlines requests without any filter.
	if len(params) == 0 {
		params.Add("country", "us")
	}
	params.Add("pageSize", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nt.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news API request: %w", err)
	}
	req.Header.Set("X-Api-Key", nt.apiKey)
	req.Header.Set("User-Agent", "Tool-Gateway/1.0")

	resp, err := nt.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned non-200 status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read news API response: %w", err)
	}
	var apiResp struct {
		TotalResults int `json:"totalResults"`
		Articles     []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse news API JSON response: %w", err)
	}

	articles := make([]Headline, 0, len(apiResp.Articles))
	for _, a := range apiResp.Articles {
		articles = append(articles, Headline{Title: a.Title, Source: a.Source.Name, Description: a.Description, URL: a.URL})
	}
	return map[string]any{"totalResults": apiResp.TotalResults, "articles": articles}, nil
}
