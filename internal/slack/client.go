package slack

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

	"insightbot/internal/infra"
)

// ErrMissingToken indicates the client was configured without a bot token.
var ErrMissingToken = errors.New("slack: bot token is required")

const (
	defaultBaseURL = "https://slack.com/api"
	defaultTimeout = 15 * time.Second
)

// Options configures the Slack Web API client.
type Options struct {
	BotToken       string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Slack Web API and to response callback
// URLs handed out with slash commands.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Message is an outbound message payload, for both response URLs and
// chat.postMessage.
type Message struct {
	ResponseType string  `json:"response_type,omitempty"`
	Channel      string  `json:"channel,omitempty"`
	Text         string  `json:"text"`
	Blocks       []Block `json:"blocks,omitempty"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	View  struct {
		ID string `json:"id"`
	} `json:"view"`
}

// NewClient constructs a Slack client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.BotToken == "" {
		return nil, ErrMissingToken
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		botToken:   opts.BotToken,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// PostMessage pushes a message into a channel via chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks []Block) error {
	_, err := c.call(ctx, "chat.postMessage", Message{
		Channel: channelID,
		Text:    text,
		Blocks:  blocks,
	})
	return err
}

// OpenView opens a modal against a trigger ID and returns the view ID, which
// a later UpdateView can target. Trigger IDs expire within seconds, so
// callers open a placeholder first and fill it in afterwards.
func (c *Client) OpenView(ctx context.Context, triggerID string, view View) (string, error) {
	resp, err := c.call(ctx, "views.open", map[string]any{
		"trigger_id": triggerID,
		"view":       view,
	})
	if err != nil {
		return "", err
	}
	return resp.View.ID, nil
}

// UpdateView replaces the contents of an open modal.
func (c *Client) UpdateView(ctx context.Context, viewID string, view View) error {
	_, err := c.call(ctx, "views.update", map[string]any{
		"view_id": viewID,
		"view":    view,
	})
	return err
}

// Respond posts a message to a slash command's response callback URL. The
// URL itself authorizes the post; no token is attached.
func (c *Client) Respond(ctx context.Context, responseURL string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: encode response: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: build response request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post to response url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack: response url post failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("slack: encode %s payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("slack: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("slack: read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("slack: %s failed (%d): %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("slack: decode %s response: %w", method, err)
	}
	if !decoded.OK {
		if c.logger != nil {
			c.logger.Error().Str("method", method).Str("error", decoded.Error).Msg("slack api error")
		}
		return nil, fmt.Errorf("slack: %s returned error: %s", method, decoded.Error)
	}
	return &decoded, nil
}
