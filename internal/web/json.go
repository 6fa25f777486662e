package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sweeney/habit-button/internal/analytics"
)

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Volume int `json:"volume"`
	Streak int `json:"streak"`
	Total  int `json:"total"`
}

// StatusResponse is the body of POST /log.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func formatStats(s analytics.Snapshot) StatsResponse {
	return StatsResponse{
		Volume: s.WeeklyVolume,
		Streak: s.WeeklyStreak,
		Total:  s.Total,
	}
}

// formatLogs renders timestamps in their stored zone, oldest first.
func formatLogs(history []time.Time) []string {
	out := make([]string, 0, len(history))
	for _, t := range history {
		out = append(out, t.Format(time.RFC3339))
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
