package main

import (
	"encoding/json"
	"net/http"

	"github.com/unihub/realtime/internal/connection"
	"github.com/unihub/realtime/internal/session"
)

// statsSource is the part of a session the health endpoint reads.
type statsSource interface {
	Stats() session.Stats
}

// newHealthHandler serves the session summary at path. The status is
// "healthy" while the channel is connected and "degraded" otherwise.
func newHealthHandler(path string, src statsSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		stats := src.Stats()

		health := struct {
			Status  string        `json:"status"`
			Session session.Stats `json:"session"`
		}{
			Status:  "healthy",
			Session: stats,
		}
		if !stats.Connected {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if stats.State == connection.StateFailed.String() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
