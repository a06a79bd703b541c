package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/util"
	"github.com/ppiankov/verity/internal/worker"
)

// TavilyClient implements Searcher over the Tavily search API
type TavilyClient struct {
	endpoint   string
	apiKey     string
	depth      string
	httpClient *http.Client
	limiter    *worker.Limiter
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeAnswer  bool     `json:"include_answer"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
	Author        string  `json:"author,omitempty"`
}

type tavilyError struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

// NewTavilyClient creates a search client from config
func NewTavilyClient(cfg model.SearchConfig, proxy model.HTTPConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	depth := cfg.Depth
	if depth == "" {
		depth = DepthBasic
	}

	return &TavilyClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		depth:    depth,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(proxy.HTTPProxy, proxy.HTTPSProxy, proxy.NoProxy),
			},
		},
		limiter: worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}, nil
}

// Search runs one query
func (c *TavilyClient) Search(ctx context.Context, q Query) ([]model.CandidateDocument, error) {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	depth := q.Depth
	if depth == "" {
		depth = c.depth
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:         c.apiKey,
		Query:          q.Text,
		SearchDepth:    depth,
		IncludeDomains: q.IncludeDomains,
		MaxResults:     q.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tavilyError
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &apiErr); err == nil {
			if apiErr.Error != "" {
				msg = apiErr.Error
			} else if apiErr.Detail != nil {
				msg = fmt.Sprint(apiErr.Detail)
			}
		}
		return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, msg)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	docs := make([]model.CandidateDocument, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if doc, ok := r.normalize(); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// normalize converts a provider hit into a candidate; hits without a URL are dropped
func (r tavilyResult) normalize() (model.CandidateDocument, bool) {
	u := strings.TrimSpace(r.URL)
	if u == "" {
		return model.CandidateDocument{}, false
	}

	body := r.Content
	if strings.TrimSpace(body) == "" {
		body = r.RawContent
	}

	return model.CandidateDocument{
		URL:           u,
		Title:         CleanSnippet(r.Title),
		Body:          CleanSnippet(body),
		PublishedDate: ParseDate(r.PublishedDate),
		Author:        strings.TrimSpace(r.Author),
		ProviderScore: r.Score,
	}, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseDate reads the date formats search providers emit; nil when unparseable
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
