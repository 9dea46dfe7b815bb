package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"insightbot/internal/domain"
)

// Retrieval bounds keep the payload handed to the analysis model predictable:
// at most a 90-day window for the daily series and 500 attribution rows.
const (
	dailyWindowLimit  = 90
	attributionLimit  = 500
	bindingSelect     = "channel_id,client_id,schedule_day,schedule_time,is_active,last_report_sent,clients(id,name,slug)"
	tenantSelect      = "id,name,slug"
	searchSelect      = "data_date,impressions,clicks,ctr,avg_position"
	trafficSelect     = "event_date,sessions,active_users,new_users,engaged_sessions,engagement_rate"
	attributionSelect = "event_date,event_name,source,medium,campaign,sessions,users"
)

// ActiveBindingForChannel returns the active binding for a channel, including
// the embedded tenant. ErrNotConfigured when the channel has no active binding.
func (c *Client) ActiveBindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error) {
	query := url.Values{}
	query.Set("select", bindingSelect)
	query.Set("channel_id", "eq."+channelID)
	query.Set("is_active", "eq.true")

	var rows []domain.Binding
	if err := c.get(ctx, TableBindings, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotConfigured
	}
	return &rows[0], nil
}

// BindingForChannel returns the binding for a channel regardless of its
// active flag, or nil when the channel was never configured. The setup form
// uses it to prefill current selections.
func (c *Client) BindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error) {
	query := url.Values{}
	query.Set("select", "client_id,schedule_day,schedule_time,is_active")
	query.Set("channel_id", "eq."+channelID)

	var rows []domain.Binding
	if err := c.get(ctx, TableBindings, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ActiveTenants lists tenants available for setup, ordered by name.
func (c *Client) ActiveTenants(ctx context.Context) ([]domain.Tenant, error) {
	query := url.Values{}
	query.Set("select", tenantSelect)
	query.Set("status", "eq.active")
	query.Set("order", "name")

	var rows []domain.Tenant
	if err := c.get(ctx, TableTenants, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TenantName resolves a tenant ID to its display name.
func (c *Client) TenantName(ctx context.Context, tenantID string) (string, error) {
	query := url.Values{}
	query.Set("select", "name")
	query.Set("id", "eq."+tenantID)

	var rows []domain.Tenant
	if err := c.get(ctx, TableTenants, query, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("store: tenant %s not found", tenantID)
	}
	return rows[0].Name, nil
}

// TenantSlugs returns the slug-to-ID mapping for every tenant. The sync job
// uses it to translate warehouse slugs into store UUIDs.
func (c *Client) TenantSlugs(ctx context.Context) (map[string]string, error) {
	query := url.Values{}
	query.Set("select", "id,slug")

	var rows []domain.Tenant
	if err := c.get(ctx, TableTenants, query, &rows); err != nil {
		return nil, err
	}
	slugs := make(map[string]string, len(rows))
	for _, t := range rows {
		slugs[t.Slug] = t.ID
	}
	return slugs, nil
}

// DueBindings returns every active binding whose schedule matches the given
// weekday and HH:MM exactly.
func (c *Client) DueBindings(ctx context.Context, day, hhmm string) ([]domain.Binding, error) {
	query := url.Values{}
	query.Set("select", bindingSelect)
	query.Set("schedule_day", "eq."+day)
	query.Set("schedule_time", "eq."+hhmm)
	query.Set("is_active", "eq.true")

	var rows []domain.Binding
	if err := c.get(ctx, TableBindings, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchDaily fetches the most recent search-visibility rows for a tenant,
// newest first.
func (c *Client) SearchDaily(ctx context.Context, tenantID string) ([]domain.SearchDaily, error) {
	query := url.Values{}
	query.Set("select", searchSelect)
	query.Set("client_id", "eq."+tenantID)
	query.Set("order", "data_date.desc")
	query.Set("limit", fmt.Sprint(dailyWindowLimit))

	var rows []domain.SearchDaily
	if err := c.get(ctx, TableSearchDaily, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TrafficDaily fetches the most recent traffic rows for a tenant, newest first.
func (c *Client) TrafficDaily(ctx context.Context, tenantID string) ([]domain.TrafficDaily, error) {
	query := url.Values{}
	query.Set("select", trafficSelect)
	query.Set("client_id", "eq."+tenantID)
	query.Set("order", "event_date.desc")
	query.Set("limit", fmt.Sprint(dailyWindowLimit))

	var rows []domain.TrafficDaily
	if err := c.get(ctx, TableTrafficDaily, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Attribution fetches the most recent attribution rows for a tenant, newest
// first, busiest sources first within a date.
func (c *Client) Attribution(ctx context.Context, tenantID string) ([]domain.AttributionDaily, error) {
	query := url.Values{}
	query.Set("select", attributionSelect)
	query.Set("client_id", "eq."+tenantID)
	query.Set("order", "event_date.desc,sessions.desc")
	query.Set("limit", fmt.Sprint(attributionLimit))

	var rows []domain.AttributionDaily
	if err := c.get(ctx, TableAttributionDaily, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveBinding upserts a binding keyed by channel, last write wins.
func (c *Client) SaveBinding(ctx context.Context, b domain.Binding) error {
	return Upsert(ctx, c, TableBindings, []domain.Binding{b})
}

// DeactivateBinding turns off scheduled and on-demand reports for a channel.
// The row is kept so a later setup can restore its history.
func (c *Client) DeactivateBinding(ctx context.Context, channelID string) error {
	filter := url.Values{}
	filter.Set("channel_id", "eq."+channelID)
	return c.Patch(ctx, TableBindings, filter, map[string]any{"is_active": false})
}

// MarkReportSent records the delivery timestamp for a channel.
func (c *Client) MarkReportSent(ctx context.Context, channelID string, sentAt time.Time) error {
	filter := url.Values{}
	filter.Set("channel_id", "eq."+channelID)
	return c.Patch(ctx, TableBindings, filter, map[string]any{
		"last_report_sent": sentAt.UTC().Format(time.RFC3339),
	})
}

// UpsertSearchDaily writes search-visibility rows in idempotent batches.
func (c *Client) UpsertSearchDaily(ctx context.Context, rows []domain.SearchDaily) error {
	return Upsert(ctx, c, TableSearchDaily, rows)
}

// UpsertTrafficDaily writes traffic rows in idempotent batches.
func (c *Client) UpsertTrafficDaily(ctx context.Context, rows []domain.TrafficDaily) error {
	return Upsert(ctx, c, TableTrafficDaily, rows)
}

// UpsertAttributionDaily writes attribution rows in idempotent batches.
func (c *Client) UpsertAttributionDaily(ctx context.Context, rows []domain.AttributionDaily) error {
	return Upsert(ctx, c, TableAttributionDaily, rows)
}
