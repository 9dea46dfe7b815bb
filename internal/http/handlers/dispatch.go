package handlers

import "net/http"

// HandleDispatch runs one scheduled-dispatch pass. Unlike the Slack-facing
// endpoints this one answers its caller (the external scheduler) with a real
// error status on top-level failure.
func (a *App) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	sent, err := a.Dispatcher.Run(r.Context(), a.Now())
	if err != nil {
		a.Logger.Error().Err(err).Msg("scheduled dispatch failed")
		a.json(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "sent": sent})
}
