// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/watcher"
)

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	watcher.Snapshot
	Status        string     `json:"status"`
	QueueDepth    int        `json:"queue_depth"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Status()

	resp := StatusResponse{
		Snapshot:   snap,
		Status:     "not-afk",
		QueueDepth: s.opts.QueueDepth(r.Context()),
	}
	if snap.AFK {
		resp.Status = "afk"
	}
	if last := s.opts.LastAccepted(); !last.IsZero() {
		resp.LastHeartbeat = &last
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// ConfigResponse is the /api/config payload. Secrets are omitted.
type ConfigResponse struct {
	ServerURL    string  `json:"server_url"`
	Timeout      float64 `json:"timeout_seconds"`
	PollTime     float64 `json:"poll_time_seconds"`
	Testing      bool    `json:"testing"`
	BucketID     string  `json:"bucket_id"`
	IdleProvider string  `json:"idle_provider"`
	QueueBackend string  `json:"queue_backend"`
	QueueMax     int     `json:"queue_max"`
	LogLevel     string  `json:"log_level"`
	Version      string  `json:"version,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.opts.Config.Get()

	writeJSON(w, r, http.StatusOK, ConfigResponse{
		ServerURL:    cfg.ServerURL,
		Timeout:      cfg.Timeout.Seconds(),
		PollTime:     cfg.PollTime.Seconds(),
		Testing:      cfg.Testing,
		BucketID:     cfg.BucketID(),
		IdleProvider: cfg.IdleProvider,
		QueueBackend: cfg.QueueBackend,
		QueueMax:     cfg.QueueMax,
		LogLevel:     cfg.LogLevel,
		Version:      cfg.Version,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.encode_error").
			Msg("failed to encode response")
	}
}
