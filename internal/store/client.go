package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"insightbot/internal/infra"
)

// ErrMissingCredentials indicates the client was configured without a
// Supabase URL or service key.
var ErrMissingCredentials = errors.New("store: supabase url and service key are required")

// ErrNotConfigured is returned when a channel has no active binding.
var ErrNotConfigured = errors.New("store: channel is not configured")

// Store table names, matching the Supabase schema.
const (
	TableBindings         = "slack_channels"
	TableTenants          = "clients"
	TableSearchDaily      = "analytics_gsc_daily"
	TableTrafficDaily     = "analytics_ga4_daily"
	TableAttributionDaily = "analytics_attribution_daily"
)

// conflictKeys maps each upsertable table to its natural-key columns. The
// store merges duplicates on these columns, which makes every upsert
// independently idempotent.
var conflictKeys = map[string]string{
	TableBindings:         "channel_id",
	TableSearchDaily:      "client_id,data_date",
	TableTrafficDaily:     "client_id,event_date",
	TableAttributionDaily: "client_id,event_date,event_name,source,medium,campaign",
}

// upsertChunkSize bounds the row count per upsert call.
const upsertChunkSize = 500

const defaultTimeout = 15 * time.Second

// Options configures the Supabase REST client.
type Options struct {
	BaseURL        string
	ServiceKey     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Supabase PostgREST endpoint.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a store client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" || opts.ServiceKey == "" {
		return nil, ErrMissingCredentials
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
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		serviceKey: opts.ServiceKey,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// get fetches rows matching the query and decodes the JSON array into out.
func (c *Client) get(ctx context.Context, table string, query url.Values, out any) error {
	endpoint := c.endpoint(table, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("store: build GET %s: %w", table, err)
	}
	c.authorize(req)

	body, err := c.do(req, table, http.MethodGet)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("store: decode %s response: %w", table, err)
	}
	return nil
}

// Upsert writes rows with merge-duplicates semantics on the table's conflict
// keys, chunking at the per-call row bound. Retrying a partially completed
// batch is safe.
func Upsert[T any](ctx context.Context, c *Client, table string, rows []T) error {
	keys, ok := conflictKeys[table]
	if !ok {
		return fmt.Errorf("store: no conflict keys registered for table %s", table)
	}
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := c.upsertChunk(ctx, table, keys, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertChunk(ctx context.Context, table, keys string, chunk any) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("store: encode %s rows: %w", table, err)
	}

	query := url.Values{}
	query.Set("on_conflict", keys)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(table, query), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("store: build POST %s: %w", table, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal,resolution=merge-duplicates")

	_, err = c.do(req, table, http.MethodPost)
	return err
}

// Patch updates fields on every row matching the filter.
func (c *Client) Patch(ctx context.Context, table string, filter url.Values, fields any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: encode %s patch: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.endpoint(table, filter), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("store: build PATCH %s: %w", table, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	_, err = c.do(req, table, http.MethodPatch)
	return err
}

func (c *Client) endpoint(table string, query url.Values) string {
	endpoint := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

func (c *Client) do(req *http.Request, table, method string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.logger != nil {
			c.logger.Error().
				Str("table", table).
				Str("method", method).
				Int("status", resp.StatusCode).
				Str("body", string(body)).
				Msg("store request failed")
		}
		return nil, fmt.Errorf("store: %s %s failed (%d): %s", method, table, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if readErr != nil {
		return nil, fmt.Errorf("store: read %s response: %w", table, readErr)
	}
	return body, nil
}
