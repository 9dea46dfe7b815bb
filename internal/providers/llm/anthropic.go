package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("llm: api key is required")

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 2000
	defaultTimeout   = 60 * time.Second
	apiVersion       = "2023-06-01"
)

// Options configures the Anthropic messages client.
type Options struct {
	APIKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration

	// Now supplies the date stamped into the system prompt; defaults to
	// time.Now. Injected so tests stay deterministic.
	Now func() time.Time
}

// Client performs HTTP calls to the Anthropic messages API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs an Anthropic client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:     opts.APIKey,
		model:      model,
		baseURL:    baseURL,
		maxTokens:  maxTokens,
		httpClient: httpClient,
		logger:     opts.Logger,
		now:        now,
	}, nil
}

// Analyze sends the three metric datasets and a question to the model and
// returns its prose answer formatted for Slack.
func (c *Client) Analyze(ctx context.Context, tenantName string, ds domain.Dataset, question string) (string, error) {
	search, err := json.Marshal(ds.Search)
	if err != nil {
		return "", fmt.Errorf("llm: encode search data: %w", err)
	}
	traffic, err := json.Marshal(ds.Traffic)
	if err != nil {
		return "", fmt.Errorf("llm: encode traffic data: %w", err)
	}
	attribution, err := json.Marshal(ds.Attribution)
	if err != nil {
		return "", fmt.Errorf("llm: encode attribution data: %w", err)
	}

	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    c.systemPrompt(tenantName),
		Messages: []message{{
			Role: "user",
			Content: fmt.Sprintf(
				"Client: %s\n\nSearch Console daily data (most recent first):\n%s\n\nGA4 daily data (most recent first):\n%s\n\nAttribution data - sessions by source/medium/campaign (most recent first):\n%s\n\nQuestion: %s",
				tenantName, search, traffic, attribution, question,
			),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("llm: decode response (%d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		if c.logger != nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("type", decoded.Error.Type).
				Str("message", decoded.Error.Message).
				Msg("llm api error")
		}
		return "", fmt.Errorf("llm: api error: %s", decoded.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("llm: request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Text == "" {
		return "", fmt.Errorf("llm: empty completion")
	}
	return decoded.Content[0].Text, nil
}

func (c *Client) systemPrompt(tenantName string) string {
	return fmt.Sprintf(`You are a senior analytics consultant for %s. You have access to their daily Google Analytics (GA4), Google Search Console (GSC), and session attribution data.

Today's date: %s

COMPARISON RULES
- By default, always compare data to the previous week (this week vs last week)
- If the user specifies a time period (e.g. "this month", "this quarter"), compare with the equivalent previous period
- "this week" = Monday of the current week to today
- "last week" = the previous full Monday-Sunday
- If a period is incomplete, note this and compare like-for-like days where possible
- Always calculate exact numbers for both periods and show the %% change

WHAT TO REPORT
- SEO-specific questions: only report Search Console metrics (impressions, clicks, CTR, average position)
- Traffic-specific questions: only report GA4 metrics (sessions, active users, new users, engagement rate)
- Attribution/channel questions: report from the attribution data showing top sources
- General questions about site performance: report on all three sections: Search Console, GA4, and Traffic Attribution

FORMATTING
This response will be displayed in Slack. Use Slack markup only:
- Bold: *text* (not **text** or ## text)
- Italic: _text_
- No markdown headings. Use *bold text* on its own line for section headers
- Use standard hyphens for bullet points
- Show each metric on its own line with the raw total, the %% change from the previous period, and a traffic light emoji (green improving, yellow flat, red declining)

TONE AND RULES
- Be direct and honest about the numbers. Never obscure bad news
- Always pair bad news with a constructive next step
- No hedging, no waffle or filler
- Always express changes as percentages using the %% symbol
- If the data doesn't cover what they're asking, say so directly`,
		tenantName, c.now().UTC().Format("2006-01-02"))
}
