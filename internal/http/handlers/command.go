package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"insightbot/internal/report"
	"insightbot/internal/slack"
	"insightbot/internal/store"
)

const notConfiguredText = "❌ This channel is not configured. Run `/analytics setup` to get started."

type slashCommand struct {
	Text        string
	ChannelID   string
	TriggerID   string
	UserID      string
	ResponseURL string
}

// HandleCommand routes the /analytics slash command. Slack drops the
// connection after a few seconds, so every branch acknowledges synchronously
// and hands the real work to a detached goroutine; outcomes travel back over
// the response URL.
func (a *App) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.Logger.Warn().Err(err).Msg("malformed slash command form")
		w.WriteHeader(http.StatusOK)
		return
	}
	cmd := slashCommand{
		Text:        r.FormValue("text"),
		ChannelID:   r.FormValue("channel_id"),
		TriggerID:   r.FormValue("trigger_id"),
		UserID:      r.FormValue("user_id"),
		ResponseURL: r.FormValue("response_url"),
	}
	ctx := a.detach(r.Context())

	switch strings.ToLower(strings.TrimSpace(cmd.Text)) {
	case "setup":
		// Empty ack: the modal itself is the response.
		w.WriteHeader(http.StatusOK)
		a.async(func() { a.runSetup(ctx, cmd) })
	case "unset", "off":
		a.json(w, http.StatusOK, slack.Message{ResponseType: "ephemeral", Text: "Removing this channel's report configuration..."})
		a.async(func() { a.runUnset(ctx, cmd) })
	case "report":
		a.json(w, http.StatusOK, slack.Message{ResponseType: "in_channel", Text: "📊 Generating report..."})
		a.async(func() { a.runReport(ctx, cmd, report.DefaultQuestion, true) })
	default:
		a.json(w, http.StatusOK, slack.Message{ResponseType: "in_channel", Text: "🔍 Pulling your data..."})
		question := strings.TrimSpace(cmd.Text)
		a.async(func() { a.runReport(ctx, cmd, question, false) })
	}
}

func (a *App) runReport(ctx context.Context, cmd slashCommand, question string, recordSend bool) {
	binding, err := a.Store.ActiveBindingForChannel(ctx, cmd.ChannelID)
	if errors.Is(err, store.ErrNotConfigured) {
		a.respond(ctx, cmd.ResponseURL, slack.Message{ResponseType: "in_channel", Text: notConfiguredText})
		return
	}
	if err != nil {
		a.reportFailure(ctx, cmd, err)
		return
	}
	if binding.Tenant == nil {
		a.reportFailure(ctx, cmd, fmt.Errorf("binding for channel %s carries no tenant", cmd.ChannelID))
		return
	}

	rep, err := a.Reports.Generate(ctx, *binding.Tenant, question)
	if err != nil {
		a.reportFailure(ctx, cmd, err)
		return
	}

	a.respond(ctx, cmd.ResponseURL, slack.Message{
		ResponseType: "in_channel",
		Text:         "Analytics report for " + rep.TenantName,
		Blocks:       rep.Blocks,
	})

	if recordSend {
		if err := a.Store.MarkReportSent(ctx, cmd.ChannelID, time.Now()); err != nil {
			a.Logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("failed to record report delivery")
		}
	}
}

func (a *App) runUnset(ctx context.Context, cmd slashCommand) {
	if err := a.Store.DeactivateBinding(ctx, cmd.ChannelID); err != nil {
		a.reportFailure(ctx, cmd, err)
		return
	}
	a.respond(ctx, cmd.ResponseURL, slack.Message{
		ResponseType: "ephemeral",
		Text:         "Reports are switched off for this channel. Run `/analytics setup` to turn them back on.",
	})
}

// reportFailure surfaces a pipeline error to the user over the async channel;
// the synchronous slot was spent on the acknowledgment.
func (a *App) reportFailure(ctx context.Context, cmd slashCommand, err error) {
	a.Logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("report pipeline failed")
	a.respond(ctx, cmd.ResponseURL, slack.Message{
		ResponseType: "in_channel",
		Text:         "❌ Something went wrong.\n\n*Error:* " + err.Error(),
	})
}

// respond is best effort: when even the error report fails, the secondary
// failure is logged and dropped.
func (a *App) respond(ctx context.Context, responseURL string, msg slack.Message) {
	if err := a.Slack.Respond(ctx, responseURL, msg); err != nil {
		a.Logger.Error().Err(err).Msg("failed to post to response url")
	}
}
