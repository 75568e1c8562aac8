package handlers

import (
	"net/http"

	"github.com/Manjussha/promptvs/internal/credential"
)

// GetAPIKey handles GET /api/v1/settings/api-key. The key itself is never returned.
func (h *Handler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	_, source := h.keys.Resolve()
	ok(w, map[string]interface{}{
		"configured": source != credential.SourceNone,
		"source":     source,
	})
}

// UpdateAPIKey handles PUT /api/v1/settings/api-key. An empty key clears the override.
func (h *Handler) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.keys.Save(req.APIKey); err != nil {
		fail(w, http.StatusInternalServerError, "save: "+err.Error())
		return
	}
	// Counts depend on the key, so re-estimate the current inputs.
	h.estimator.Edit(h.estimator.Input())
	h.GetAPIKey(w, r)
}
