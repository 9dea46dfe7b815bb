package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"insightbot/internal/domain"
	"insightbot/internal/slack"
)

// dayLabel turns a stored lowercase weekday into its display form.
func dayLabel(day string) string {
	return cases.Title(language.BritishEnglish).String(day)
}

const setupCallbackID = "analytics_setup"

// Reports go out on working days, during working hours, UK time.
var (
	scheduleDays  = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	scheduleTimes = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"}
)

type setupMetadata struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// runSetup opens the configuration modal. The trigger ID expires within
// seconds, so a placeholder view is opened first and filled in once the
// slower store lookups complete.
func (a *App) runSetup(ctx context.Context, cmd slashCommand) {
	viewID, err := a.Slack.OpenView(ctx, cmd.TriggerID, loadingView())
	if err != nil {
		a.Logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("failed to open setup modal")
		return
	}

	var tenants []domain.Tenant
	var existing *domain.Binding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenants, err = a.Store.ActiveTenants(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = a.Store.BindingForChannel(gctx, cmd.ChannelID)
		return err
	})
	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("failed to load setup data")
		return
	}
	if len(tenants) == 0 {
		a.Logger.Error().Msg("no active tenants available for setup")
		return
	}

	meta, err := json.Marshal(setupMetadata{ChannelID: cmd.ChannelID, UserID: cmd.UserID})
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to encode setup metadata")
		return
	}

	if err := a.Slack.UpdateView(ctx, viewID, setupView(tenants, existing, string(meta))); err != nil {
		a.Logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("failed to update setup modal")
	}
}

func loadingView() slack.View {
	return slack.View{
		Type:       "modal",
		CallbackID: "analytics_setup_loading",
		Title:      slack.PlainText("Analytics Setup"),
		Close:      slack.PlainText("Cancel"),
		Blocks: []slack.Block{
			slack.SectionBlock("Loading clients..."),
		},
	}
}

// setupView builds the full configuration form. When the channel already has
// a binding the current selections are preselected; on a fresh channel the
// initial_option fields stay absent entirely.
func setupView(tenants []domain.Tenant, existing *domain.Binding, metadata string) slack.View {
	tenantOptions := make([]slack.Option, len(tenants))
	for i, t := range tenants {
		tenantOptions[i] = slack.SelectOption(t.Name, t.ID)
	}
	dayOptions := make([]slack.Option, len(scheduleDays))
	for i, day := range scheduleDays {
		dayOptions[i] = slack.SelectOption(dayLabel(day), day)
	}
	timeOptions := make([]slack.Option, len(scheduleTimes))
	for i, hhmm := range scheduleTimes {
		timeOptions[i] = slack.SelectOption(hhmm, hhmm)
	}

	isUpdate := existing != nil
	intro := "_Configure analytics reports for this channel._"
	submit := "Save"
	var initialTenant, initialDay, initialTime *slack.Option
	if isUpdate {
		intro = "_Update the configuration for this channel._"
		submit = "Update"
		initialTenant = findOption(tenantOptions, existing.ClientID)
		initialDay = findOption(dayOptions, existing.ScheduleDay)
		initialTime = findOption(timeOptions, existing.ScheduleTime)
	}

	return slack.View{
		Type:            "modal",
		CallbackID:      setupCallbackID,
		Title:           slack.PlainText("Analytics Setup"),
		Submit:          slack.PlainText(submit),
		Close:           slack.PlainText("Cancel"),
		PrivateMetadata: metadata,
		Blocks: []slack.Block{
			slack.SectionBlock(intro),
			slack.InputBlock("client_block", "Select Client", slack.Element{
				Type:          "static_select",
				ActionID:      "client_select",
				Placeholder:   slack.PlainText("Choose a client"),
				Options:       tenantOptions,
				InitialOption: initialTenant,
			}),
			slack.InputBlock("day_block", "Weekly Report Day", slack.Element{
				Type:          "static_select",
				ActionID:      "day_select",
				Placeholder:   slack.PlainText("Choose day of week"),
				Options:       dayOptions,
				InitialOption: initialDay,
			}),
			slack.InputBlock("time_block", "Report Time (UK)", slack.Element{
				Type:          "static_select",
				ActionID:      "time_select",
				Placeholder:   slack.PlainText("Choose time"),
				Options:       timeOptions,
				InitialOption: initialTime,
			}),
		},
	}
}

func findOption(options []slack.Option, value string) *slack.Option {
	for i := range options {
		if options[i].Value == value {
			return &options[i]
		}
	}
	return nil
}

func confirmationView(tenantName, day, hhmm string) slack.View {
	return slack.View{
		Type:  "modal",
		Title: slack.PlainText("Setup Complete"),
		Close: slack.PlainText("Done"),
		Blocks: []slack.Block{
			slack.SectionBlock(fmt.Sprintf(
				"*Analytics configured for %s*\n\nWeekly reports will be sent to this channel every %s at %s UK time.",
				tenantName, dayLabel(day), hhmm,
			)),
			slack.DividerBlock(),
			slack.SectionBlock("*Available commands:*\n\n`/analytics report` — send a report now\n`/analytics <question>` — ask anything about the data\n`/analytics setup` — change settings\n`/analytics unset` — switch reports off"),
		},
	}
}

func setupFailedView(err error) slack.View {
	return slack.View{
		Type:  "modal",
		Title: slack.PlainText("Setup Failed"),
		Close: slack.PlainText("Close"),
		Blocks: []slack.Block{
			slack.SectionBlock(fmt.Sprintf("Something went wrong saving the setup. Please try again.\n\n_%s_", err)),
		},
	}
}
