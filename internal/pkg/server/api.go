package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/counter"
	"github.com/anicoll/counter-dashboard/internal/pkg/metrics"
)

type resetResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	err := counter.SendReset(r.Context(), s.store)
	metrics.ResetCommands.WithLabelValues(metrics.ResetResult(err)).Inc()
	if err != nil {
		s.logger.Error("failed to send reset command", zap.String("user_id", user.ID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, resetResponse{Error: "Failed to send reset command."})
		return
	}
	s.logger.Info("reset command sent", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusAccepted, resetResponse{Status: "sent"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
