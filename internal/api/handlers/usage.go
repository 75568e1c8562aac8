package handlers

import (
	"net/http"
	"time"

	"github.com/Manjussha/promptvs/internal/credential"
)

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	_, source := h.keys.Resolve()
	ok(w, map[string]interface{}{
		"state":      h.runner.State(),
		"error":      h.runner.LastError(),
		"configured": source != credential.SourceNone,
		"key_source": source,
		"model":      h.model,
		"pricing":    h.pricing,
		"ws_clients": h.hub.ClientCount(),
		"time":       time.Now().Format(time.RFC3339),
	})
}

// GetUsage handles GET /api/v1/usage.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	s := h.budget.Snapshot()
	ok(w, map[string]interface{}{
		"snapshot":            s,
		"retry_after_seconds": int64(s.RetryAfter.Round(time.Second) / time.Second),
	})
}
