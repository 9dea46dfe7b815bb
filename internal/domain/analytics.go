package domain

import "time"

// Tenant is the business entity a report is generated for. Rows live in the
// store's clients table; ID is the store UUID, Slug the stable short name
// used by warehouse rollups.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status,omitempty"`
}

// Binding associates a Slack channel with a tenant and a weekly delivery
// schedule. Schedule times are evaluated in Europe/London at minute
// resolution. Bindings are deactivated, never deleted.
type Binding struct {
	ChannelID      string     `json:"channel_id"`
	ClientID       string     `json:"client_id"`
	ScheduleDay    string     `json:"schedule_day,omitempty"`
	ScheduleTime   string     `json:"schedule_time,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      string     `json:"created_by,omitempty"`
	LastReportSent *time.Time `json:"last_report_sent,omitempty"`

	// Tenant carries the embedded clients row when the query selects it.
	Tenant *Tenant `json:"clients,omitempty"`
}

// SearchDaily is one day of search-visibility metrics for a tenant.
type SearchDaily struct {
	ClientID    string  `json:"client_id,omitempty"`
	Date        string  `json:"data_date"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	AvgPosition float64 `json:"avg_position"`
}

// TrafficDaily is one day of site-traffic metrics for a tenant.
type TrafficDaily struct {
	ClientID        string  `json:"client_id,omitempty"`
	Date            string  `json:"event_date"`
	Sessions        int64   `json:"sessions"`
	ActiveUsers     int64   `json:"active_users"`
	NewUsers        int64   `json:"new_users"`
	EngagedSessions int64   `json:"engaged_sessions"`
	EngagementRate  float64 `json:"engagement_rate"`
}

// AttributionDaily is one (date, event, source, medium, campaign) attribution
// row; several rows share a date.
type AttributionDaily struct {
	ClientID  string `json:"client_id,omitempty"`
	Date      string `json:"event_date"`
	EventName string `json:"event_name"`
	Source    string `json:"source"`
	Medium    string `json:"medium"`
	Campaign  string `json:"campaign"`
	Sessions  int64  `json:"sessions"`
	Users     int64  `json:"users"`
}

// Dataset bundles the three metric windows fed to the analysis model.
// All slices are ordered newest first, as fetched.
type Dataset struct {
	Search      []SearchDaily
	Traffic     []TrafficDaily
	Attribution []AttributionDaily
}
