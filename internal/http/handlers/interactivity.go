package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"insightbot/internal/domain"
	"insightbot/internal/slack"
)

type interactionPayload struct {
	Type string `json:"type"`
	View struct {
		CallbackID      string `json:"callback_id"`
		PrivateMetadata string `json:"private_metadata"`
		State           struct {
			Values map[string]map[string]struct {
				SelectedOption struct {
					Value string `json:"value"`
				} `json:"selected_option"`
			} `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

type viewSubmissionResponse struct {
	ResponseAction string     `json:"response_action"`
	View           slack.View `json:"view"`
}

// HandleInteractivity processes modal submissions. Slack rejects structured
// error statuses on this path, so anything unparseable or unrelated is
// acknowledged and dropped.
func (a *App) HandleInteractivity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.Logger.Warn().Err(err).Msg("malformed interactivity form")
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &payload); err != nil {
		a.Logger.Warn().Err(err).Msg("invalid interactivity payload json")
		w.WriteHeader(http.StatusOK)
		return
	}
	if payload.Type != "view_submission" || payload.View.CallbackID != setupCallbackID {
		w.WriteHeader(http.StatusOK)
		return
	}

	var meta setupMetadata
	if err := json.Unmarshal([]byte(payload.View.PrivateMetadata), &meta); err != nil {
		a.Logger.Warn().Err(err).Msg("invalid setup metadata")
		w.WriteHeader(http.StatusOK)
		return
	}

	tenantID := payload.View.State.Values["client_block"]["client_select"].SelectedOption.Value
	day := payload.View.State.Values["day_block"]["day_select"].SelectedOption.Value
	hhmm := payload.View.State.Values["time_block"]["time_select"].SelectedOption.Value
	a.Logger.Info().
		Str("channel", meta.ChannelID).
		Str("tenant", tenantID).
		Str("day", day).
		Str("time", hhmm).
		Msg("saving channel configuration")

	tenantName, err := a.saveBinding(r.Context(), meta, tenantID, day, hhmm)
	if err != nil {
		a.Logger.Error().Err(err).Str("channel", meta.ChannelID).Msg("failed to save setup")
		a.json(w, http.StatusOK, viewSubmissionResponse{
			ResponseAction: "update",
			View:           setupFailedView(err),
		})
		return
	}

	a.json(w, http.StatusOK, viewSubmissionResponse{
		ResponseAction: "update",
		View:           confirmationView(tenantName, day, hhmm),
	})
}

// saveBinding upserts the binding and resolves the tenant's display name in
// parallel. The upsert is idempotent: resubmitting the form overwrites the
// previous configuration for the channel.
func (a *App) saveBinding(ctx context.Context, meta setupMetadata, tenantID, day, hhmm string) (string, error) {
	var tenantName string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Store.SaveBinding(gctx, domain.Binding{
			ChannelID:    meta.ChannelID,
			ClientID:     tenantID,
			ScheduleDay:  day,
			ScheduleTime: hhmm,
			IsActive:     true,
			CreatedBy:    meta.UserID,
		})
	})
	g.Go(func() error {
		var err error
		tenantName, err = a.Store.TenantName(gctx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return tenantName, nil
}
