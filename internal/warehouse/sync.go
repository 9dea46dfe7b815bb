// Package warehouse copies the latest analytics rollups out of the data
// warehouse and into the serving store. The serving side addresses tenants by
// UUID while the warehouse addresses them by slug; the sync resolves slugs
// through the store and drops rows for slugs it cannot resolve.
package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
)

// windowDays is how far back each run reaches. Runs overlap on purpose: the
// rollups are upserted on their conflict keys, so re-reading recent days
// refreshes late-arriving data instead of duplicating it.
const windowDays = 7

// DB is the warehouse query surface; *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Sink receives the mapped rows; *store.Client satisfies it.
type Sink interface {
	TenantSlugs(ctx context.Context) (map[string]string, error)
	UpsertSearchDaily(ctx context.Context, rows []domain.SearchDaily) error
	UpsertTrafficDaily(ctx context.Context, rows []domain.TrafficDaily) error
	UpsertAttributionDaily(ctx context.Context, rows []domain.AttributionDaily) error
}

// Counts summarizes one sync run.
type Counts struct {
	Search      int
	Traffic     int
	Attribution int

	// Skipped counts warehouse rows whose slug has no serving-side tenant.
	Skipped int
}

// Syncer runs the warehouse-to-store copy.
type Syncer struct {
	db     DB
	sink   Sink
	logger infra.Logger
}

func NewSyncer(db DB, sink Sink, logger infra.Logger) *Syncer {
	return &Syncer{db: db, sink: sink, logger: logger}
}

// Run copies the last windowDays of all three rollup tables. The tables sync
// concurrently; a failure in any one fails the run.
func (s *Syncer) Run(ctx context.Context) (Counts, error) {
	slugs, err := s.sink.TenantSlugs(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("resolve tenant slugs: %w", err)
	}

	var counts Counts
	skipped := make([]int, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, dropped, err := s.syncSearch(gctx, slugs)
		counts.Search, skipped[0] = n, dropped
		return err
	})
	g.Go(func() error {
		n, dropped, err := s.syncTraffic(gctx, slugs)
		counts.Traffic, skipped[1] = n, dropped
		return err
	})
	g.Go(func() error {
		n, dropped, err := s.syncAttribution(gctx, slugs)
		counts.Attribution, skipped[2] = n, dropped
		return err
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	counts.Skipped = skipped[0] + skipped[1] + skipped[2]

	s.logger.Info().
		Int("search", counts.Search).
		Int("traffic", counts.Traffic).
		Int("attribution", counts.Attribution).
		Int("skipped", counts.Skipped).
		Msg("warehouse sync complete")
	return counts, nil
}

const searchQuery = `
SELECT client_slug, data_date::text, impressions, clicks, ctr, avg_position
FROM gsc_daily_rollup
WHERE data_date >= current_date - $1::int`

func (s *Syncer) syncSearch(ctx context.Context, slugs map[string]string) (int, int, error) {
	rows, err := s.db.Query(ctx, searchQuery, windowDays)
	if err != nil {
		return 0, 0, fmt.Errorf("query gsc_daily_rollup: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchDaily
	var skipped int
	for rows.Next() {
		var slug string
		var row domain.SearchDaily
		if err := rows.Scan(&slug, &row.Date, &row.Impressions, &row.Clicks, &row.CTR, &row.AvgPosition); err != nil {
			return 0, 0, fmt.Errorf("scan gsc_daily_rollup: %w", err)
		}
		clientID, ok := slugs[slug]
		if !ok {
			skipped++
			s.logger.Warn().Str("slug", slug).Str("table", "gsc_daily_rollup").Msg("no tenant for slug, row dropped")
			continue
		}
		row.ClientID = clientID
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("read gsc_daily_rollup: %w", err)
	}
	if err := s.sink.UpsertSearchDaily(ctx, out); err != nil {
		return 0, 0, err
	}
	return len(out), skipped, nil
}

const trafficQuery = `
SELECT client_slug, event_date::text, sessions, active_users, new_users, engaged_sessions, engagement_rate
FROM ga4_daily_rollup
WHERE event_date >= current_date - $1::int`

func (s *Syncer) syncTraffic(ctx context.Context, slugs map[string]string) (int, int, error) {
	rows, err := s.db.Query(ctx, trafficQuery, windowDays)
	if err != nil {
		return 0, 0, fmt.Errorf("query ga4_daily_rollup: %w", err)
	}
	defer rows.Close()

	var out []domain.TrafficDaily
	var skipped int
	for rows.Next() {
		var slug string
		var row domain.TrafficDaily
		if err := rows.Scan(&slug, &row.Date, &row.Sessions, &row.ActiveUsers, &row.NewUsers, &row.EngagedSessions, &row.EngagementRate); err != nil {
			return 0, 0, fmt.Errorf("scan ga4_daily_rollup: %w", err)
		}
		clientID, ok := slugs[slug]
		if !ok {
			skipped++
			s.logger.Warn().Str("slug", slug).Str("table", "ga4_daily_rollup").Msg("no tenant for slug, row dropped")
			continue
		}
		row.ClientID = clientID
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("read ga4_daily_rollup: %w", err)
	}
	if err := s.sink.UpsertTrafficDaily(ctx, out); err != nil {
		return 0, 0, err
	}
	return len(out), skipped, nil
}

const attributionQuery = `
SELECT client_slug, event_date::text, event_name, source, medium, campaign, sessions, users
FROM attribution_daily_rollup
WHERE event_date >= current_date - $1::int`

func (s *Syncer) syncAttribution(ctx context.Context, slugs map[string]string) (int, int, error) {
	rows, err := s.db.Query(ctx, attributionQuery, windowDays)
	if err != nil {
		return 0, 0, fmt.Errorf("query attribution_daily_rollup: %w", err)
	}
	defer rows.Close()

	var out []domain.AttributionDaily
	var skipped int
	for rows.Next() {
		var slug string
		var row domain.AttributionDaily
		if err := rows.Scan(&slug, &row.Date, &row.EventName, &row.Source, &row.Medium, &row.Campaign, &row.Sessions, &row.Users); err != nil {
			return 0, 0, fmt.Errorf("scan attribution_daily_rollup: %w", err)
		}
		clientID, ok := slugs[slug]
		if !ok {
			skipped++
			s.logger.Warn().Str("slug", slug).Str("table", "attribution_daily_rollup").Msg("no tenant for slug, row dropped")
			continue
		}
		row.ClientID = clientID
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("read attribution_daily_rollup: %w", err)
	}
	if err := s.sink.UpsertAttributionDaily(ctx, out); err != nil {
		return 0, 0, err
	}
	return len(out), skipped, nil
}
