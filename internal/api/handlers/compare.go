package handlers

import (
	"context"
	"net/http"

	"github.com/Manjussha/promptvs/internal/compare"
)

// GetInputs handles GET /api/v1/inputs.
func (h *Handler) GetInputs(w http.ResponseWriter, r *http.Request) {
	ok(w, h.estimator.Input())
}

// UpdateInputs handles PUT /api/v1/inputs.
// The new text is re-estimated after the quiet period and the last comparison is cleared.
func (h *Handler) UpdateInputs(w http.ResponseWriter, r *http.Request) {
	var in compare.Input
	if err := decode(r, &in); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.estimator.Edit(in)
	h.runner.Reset()
	ok(w, in)
}

// GetEstimate handles GET /api/v1/estimate.
func (h *Handler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	ok(w, h.estimator.Latest())
}

// Run handles POST /api/v1/run. It blocks until both strategies resolve.
// A client disconnect does not abort calls that are already billed.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.runner.Run(context.WithoutCancel(r.Context()), h.estimator.Input())
	if err != nil {
		failRun(w, err)
		return
	}
	ok(w, cmp)
}

// GetResults handles GET /api/v1/results.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]interface{}{
		"state":      h.runner.State(),
		"error":      h.runner.LastError(),
		"comparison": h.runner.Last(),
	})
}
