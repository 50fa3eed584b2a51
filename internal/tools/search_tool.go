// In file: internal/tools/search_tool.go
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Search Tool Implementation ---

const defaultBraveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// SearchToolName is the canonical name of the web search capability. Hosted
// search backends and the local fallback both serve it under this name.
const SearchToolName = "brave_search"

// SearchTool is the local, API-key based web search used when no hosted search
// backend is connected.
type SearchTool struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

var _ ToolExecutor = (*SearchTool)(nil)

// NewSearchTool creates a SearchTool. An empty endpoint selects the Brave API.
func NewSearchTool(apiKey, endpoint string) (*SearchTool, error) {
	if apiKey == "" {
		return nil, errors.New("brave search API key cannot be empty")
	}
	if endpoint == "" {
		endpoint = defaultBraveSearchURL
	}
	return &SearchTool{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// SearchDescriptor describes the search capability independent of who serves it.
func SearchDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        SearchToolName,
		Description: "Searches the web and returns the top results with titles, URLs and snippets.",
		Source:      SourceLocal,
		Parameters: JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"query": {Type: "string", Description: "The search query."},
				"count": {Type: "integer", Description: "Number of results to return (1-20).", Default: 5},
			},
			Required: []string{"query"},
		},
	}
}

func (st *SearchTool) Descriptor() ToolDescriptor {
	return SearchDescriptor()
}

// SearchResult is one entry of the structured search payload.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Execute returns {"results": [...]}.
func (st *SearchTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for search tool: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidArguments)
	}
	if args.Count <= 0 || args.Count > 20 {
		args.Count = 5
	}

	params := url.Values{}
	params.Set("q", args.Query)
	params.Set("count", strconv.Itoa(args.Count))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", st.apiKey)

	resp, err := st.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var apiResp struct {
		Web struct {
			Results []SearchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse search API JSON response: %w", err)
	}

	results := apiResp.Web.Results
	if results == nil {
		results = []SearchResult{}
	}
	return map[string]any{"results": results}, nil
}
