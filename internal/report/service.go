package report

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
	"insightbot/internal/slack"
)

// DefaultQuestion drives the `report` command and every scheduled send.
const DefaultQuestion = "Give me a weekly performance report"

// MetricSource provides the three bounded metric windows for a tenant.
type MetricSource interface {
	SearchDaily(ctx context.Context, tenantID string) ([]domain.SearchDaily, error)
	TrafficDaily(ctx context.Context, tenantID string) ([]domain.TrafficDaily, error)
	Attribution(ctx context.Context, tenantID string) ([]domain.AttributionDaily, error)
}

// Analyzer turns datasets plus a question into formatted prose.
type Analyzer interface {
	Analyze(ctx context.Context, tenantName string, ds domain.Dataset, question string) (string, error)
}

// ChartBuilder renders a traffic series into an image URL.
type ChartBuilder interface {
	TrafficChartURL(rows []domain.TrafficDaily) string
}

// Report is a fully assembled report message, ready to deliver.
type Report struct {
	TenantName string
	Analysis   string
	ChartURL   string
	Blocks     []slack.Block
}

// Service runs the fetch, analyze, render, compose pipeline.
type Service struct {
	metrics MetricSource
	llm     Analyzer
	chart   ChartBuilder
	logger  infra.Logger
}

// NewService wires the pipeline's collaborators.
func NewService(metrics MetricSource, llm Analyzer, chart ChartBuilder, logger infra.Logger) *Service {
	return &Service{metrics: metrics, llm: llm, chart: chart, logger: logger}
}

// Generate produces a report for a tenant. The three metric fetches run
// concurrently; the first failure cancels the rest and fails the whole
// pipeline before the model is ever called. Partial datasets are never
// analyzed.
func (s *Service) Generate(ctx context.Context, tenant domain.Tenant, question string) (*Report, error) {
	if tenant.ID == "" {
		return nil, fmt.Errorf("report: tenant id is required")
	}
	if question == "" {
		question = DefaultQuestion
	}

	var ds domain.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.metrics.SearchDaily(gctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("fetch search data: %w", err)
		}
		ds.Search = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.metrics.TrafficDaily(gctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("fetch traffic data: %w", err)
		}
		ds.Traffic = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.metrics.Attribution(gctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("fetch attribution data: %w", err)
		}
		ds.Attribution = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("tenant", tenant.Slug).
		Int("search_rows", len(ds.Search)).
		Int("traffic_rows", len(ds.Traffic)).
		Int("attribution_rows", len(ds.Attribution)).
		Msg("metric data fetched")

	analysis, err := s.llm.Analyze(ctx, tenant.Name, ds, question)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	chartURL := s.chart.TrafficChartURL(ds.Traffic)

	return &Report{
		TenantName: tenant.Name,
		Analysis:   analysis,
		ChartURL:   chartURL,
		Blocks:     slack.BuildReportBlocks(tenant.Name, analysis, chartURL),
	}, nil
}
