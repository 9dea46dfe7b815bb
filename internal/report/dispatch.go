package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insightbot/internal/domain"
	"insightbot/internal/infra"
	"insightbot/internal/slack"
)

// referenceZone fixes schedule evaluation to UK time regardless of where the
// process runs.
const referenceZone = "Europe/London"

// BindingStore provides the due set and records deliveries.
type BindingStore interface {
	DueBindings(ctx context.Context, day, hhmm string) ([]domain.Binding, error)
	MarkReportSent(ctx context.Context, channelID string, sentAt time.Time) error
}

// Pusher delivers a finished report into a channel.
type Pusher interface {
	PostMessage(ctx context.Context, channelID, text string, blocks []slack.Block) error
}

// Dispatcher sends scheduled reports to every binding due at the current
// reference-time minute.
type Dispatcher struct {
	store   BindingStore
	reports *Service
	pusher  Pusher
	logger  infra.Logger
	loc     *time.Location
}

// NewDispatcher loads the reference timezone and wires the dispatcher.
func NewDispatcher(store BindingStore, reports *Service, pusher Pusher, logger infra.Logger) (*Dispatcher, error) {
	loc, err := time.LoadLocation(referenceZone)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load %s: %w", referenceZone, err)
	}
	return &Dispatcher{store: store, reports: reports, pusher: pusher, logger: logger, loc: loc}, nil
}

// Run processes every binding due at now, evaluated in the reference zone at
// minute granularity. Each recipient is handled in isolation: a failure is
// logged and skipped, leaving its last-delivery timestamp untouched; a
// missed weekly send is not retried until its schedule next matches. The
// returned count is the number of due recipients attempted.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (int, error) {
	local := now.In(d.loc)
	day := strings.ToLower(local.Weekday().String())
	hhmm := local.Format("15:04")

	due, err := d.store.DueBindings(ctx, day, hhmm)
	if err != nil {
		return 0, fmt.Errorf("dispatch: load due bindings: %w", err)
	}
	d.logger.Info().Str("day", day).Str("time", hhmm).Int("due", len(due)).Msg("dispatch check")

	for _, binding := range due {
		if err := d.send(ctx, binding); err != nil {
			d.logger.Error().
				Err(err).
				Str("channel", binding.ChannelID).
				Msg("scheduled report failed; will retry at the next matching schedule")
			continue
		}
		d.logger.Info().Str("channel", binding.ChannelID).Msg("scheduled report sent")
	}
	return len(due), nil
}

func (d *Dispatcher) send(ctx context.Context, binding domain.Binding) error {
	if binding.Tenant == nil {
		return fmt.Errorf("dispatch: binding %s has no tenant", binding.ChannelID)
	}

	rep, err := d.reports.Generate(ctx, *binding.Tenant, DefaultQuestion)
	if err != nil {
		return err
	}
	if err := d.pusher.PostMessage(ctx, binding.ChannelID, "Weekly Analytics Report for "+rep.TenantName, rep.Blocks); err != nil {
		return err
	}
	if err := d.store.MarkReportSent(ctx, binding.ChannelID, time.Now()); err != nil {
		return fmt.Errorf("dispatch: record delivery: %w", err)
	}
	return nil
}
