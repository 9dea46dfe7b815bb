package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
	"insightbot/internal/report"
	"insightbot/internal/slack"
)

// Store is the slice of the store client the handlers depend on.
type Store interface {
	ActiveBindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error)
	BindingForChannel(ctx context.Context, channelID string) (*domain.Binding, error)
	ActiveTenants(ctx context.Context) ([]domain.Tenant, error)
	TenantName(ctx context.Context, tenantID string) (string, error)
	SaveBinding(ctx context.Context, b domain.Binding) error
	DeactivateBinding(ctx context.Context, channelID string) error
	MarkReportSent(ctx context.Context, channelID string, sentAt time.Time) error
}

// Reporter runs the report pipeline for a tenant.
type Reporter interface {
	Generate(ctx context.Context, tenant domain.Tenant, question string) (*report.Report, error)
}

// Notifier is the Slack surface the handlers talk to.
type Notifier interface {
	Respond(ctx context.Context, responseURL string, msg slack.Message) error
	OpenView(ctx context.Context, triggerID string, view slack.View) (string, error)
	UpdateView(ctx context.Context, viewID string, view slack.View) error
}

// DispatchRunner triggers one scheduled-dispatch pass.
type DispatchRunner interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// App bundles the webhook handlers and their collaborators.
type App struct {
	Logger     infra.Logger
	Store      Store
	Reports    Reporter
	Slack      Notifier
	Dispatcher DispatchRunner

	// Now is injectable for dispatch tests; defaults to time.Now.
	Now func() time.Time

	// async runs pipeline work after the acknowledgment; tests swap it for
	// a synchronous call.
	async func(fn func())
}

// NewApp wires the handler container.
func NewApp(logger infra.Logger, store Store, reports Reporter, notifier Notifier, dispatcher DispatchRunner) *App {
	return &App{
		Logger:     logger,
		Store:      store,
		Reports:    reports,
		Slack:      notifier,
		Dispatcher: dispatcher,
		Now:        time.Now,
		async:      func(fn func()) { go fn() },
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// detach separates pipeline work from the request lifecycle: the platform's
// acknowledgment deadline must not cancel a report that is still generating.
func (a *App) detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
