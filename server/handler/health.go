package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"shipjoy/server/application"
)

// StatusReporter はルームの直近の状態を返します。*application.ConsoleApplication が満たします。
type StatusReporter interface {
	Status() application.ConsoleStatus
}

type healthResponse struct {
	Status string                     `json:"status"`
	Room   *application.ConsoleStatus `json:"room,omitempty"`
}

// NewHealthHandler はルームの状態を JSON で返します。reporter が nil なら status のみ返します。
func NewHealthHandler(reporter StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if reporter != nil {
			st := reporter.Status()
			resp.Room = &st
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.WarnContext(r.Context(), "failed to write health response", "err", err)
		}
	}
}
