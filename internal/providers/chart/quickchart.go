package chart

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"insightbot/internal/domain"
)

// DefaultBaseURL is the public QuickChart endpoint.
const DefaultBaseURL = "https://quickchart.io"

// chartDays bounds the rendered window to the two most recent weeks.
const chartDays = 14

// Builder turns a traffic time series into a rendered chart image URL.
// Building is pure: the same rows always produce the same URL, and no
// network call happens until Slack fetches the image.
type Builder struct {
	baseURL string
}

// NewBuilder returns a Builder targeting the given QuickChart base URL,
// falling back to the public endpoint when empty.
func NewBuilder(baseURL string) *Builder {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Builder{baseURL: base}
}

type lineChart struct {
	Type    string      `json:"type"`
	Data    lineData    `json:"data"`
	Options lineOptions `json:"options"`
}

type lineData struct {
	Labels   []string      `json:"labels"`
	Datasets []lineDataset `json:"datasets"`
}

type lineDataset struct {
	Label           string  `json:"label"`
	Data            []int64 `json:"data"`
	BorderColor     string  `json:"borderColor"`
	BackgroundColor string  `json:"backgroundColor"`
	Fill            bool    `json:"fill"`
	Tension         float64 `json:"tension"`
	PointRadius     int     `json:"pointRadius"`
	BorderDash      []int   `json:"borderDash,omitempty"`
}

type lineOptions struct {
	Plugins struct {
		Legend struct {
			Position string `json:"position"`
			Labels   struct {
				BoxWidth int `json:"boxWidth"`
				Padding  int `json:"padding"`
			} `json:"labels"`
		} `json:"legend"`
	} `json:"plugins"`
	Scales struct {
		Y struct {
			BeginAtZero bool `json:"beginAtZero"`
			Grid        struct {
				Color string `json:"color"`
			} `json:"grid"`
		} `json:"y"`
		X struct {
			Grid struct {
				Display bool `json:"display"`
			} `json:"grid"`
		} `json:"x"`
	} `json:"scales"`
}

// TrafficChartURL renders the sessions/active-users trend for the most
// recent days of traffic data. Rows arrive newest first and are reversed to
// chronological order. Returns "" when fewer than two dated points exist.
func (b *Builder) TrafficChartURL(rows []domain.TrafficDaily) string {
	recent := make([]domain.TrafficDaily, 0, chartDays)
	for _, row := range rows {
		if row.Date == "" {
			continue
		}
		recent = append(recent, row)
		if len(recent) == chartDays {
			break
		}
	}
	if len(recent) < 2 {
		return ""
	}

	// Newest-first to chronological.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	labels := make([]string, len(recent))
	sessions := make([]int64, len(recent))
	users := make([]int64, len(recent))
	for i, row := range recent {
		labels[i] = dayMonthLabel(row.Date)
		sessions[i] = row.Sessions
		users[i] = row.ActiveUsers
	}

	cfg := lineChart{
		Type: "line",
		Data: lineData{
			Labels: labels,
			Datasets: []lineDataset{
				{
					Label:           "Sessions",
					Data:            sessions,
					BorderColor:     "#4A90D9",
					BackgroundColor: "rgba(74, 144, 217, 0.1)",
					Fill:            true,
					Tension:         0.3,
					PointRadius:     3,
				},
				{
					Label:           "Active Users",
					Data:            users,
					BorderColor:     "#7B68EE",
					BackgroundColor: "rgba(123, 104, 238, 0.05)",
					Fill:            false,
					Tension:         0.3,
					PointRadius:     3,
					BorderDash:      []int{5, 5},
				},
			},
		},
	}
	cfg.Options.Plugins.Legend.Position = "bottom"
	cfg.Options.Plugins.Legend.Labels.BoxWidth = 12
	cfg.Options.Plugins.Legend.Labels.Padding = 20
	cfg.Options.Scales.Y.BeginAtZero = true
	cfg.Options.Scales.Y.Grid.Color = "#f0f0f0"
	cfg.Options.Scales.X.Grid.Display = false

	encoded, err := json.Marshal(cfg)
	if err != nil {
		// Marshaling a struct of strings and ints cannot fail in practice.
		return ""
	}
	return b.baseURL + "/chart?c=" + url.QueryEscape(string(encoded)) + "&w=600&h=300&bkg=white"
}

// dayMonthLabel shortens an ISO date to D/M for axis labels; malformed dates
// fall through unchanged.
func dayMonthLabel(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return fmt.Sprintf("%d/%d", t.Day(), int(t.Month()))
}
