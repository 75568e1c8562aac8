// Package handlers provides HTTP handler implementations for the PromptVs REST API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/compare"
	"github.com/Manjussha/promptvs/internal/credential"
	"github.com/Manjussha/promptvs/internal/estimate"
	"github.com/Manjussha/promptvs/internal/gemini"
	"github.com/Manjussha/promptvs/internal/tokenizer"
	"github.com/Manjussha/promptvs/internal/usage"
)

// Runner runs comparisons.
type Runner interface {
	Run(ctx context.Context, in compare.Input) (*compare.Comparison, error)
	State() compare.State
	Last() *compare.Comparison
	LastError() string
	Reset()
}

// Estimator holds the current inputs and their live estimate.
type Estimator interface {
	Edit(in compare.Input)
	Input() compare.Input
	Latest() estimate.Estimate
}

// Budget reports the local request budget.
type Budget interface {
	Snapshot() usage.Snapshot
}

// Keys reads and stores the API key override.
type Keys interface {
	Resolve() (string, credential.Source)
	Save(key string) error
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// Handler holds all shared dependencies for API handler methods.
type Handler struct {
	runner    Runner
	estimator Estimator
	budget    Budget
	keys      Keys
	hub       ClientCounter
	model     string
	pricing   tokenizer.PricingTable
}

// New creates a Handler with all dependencies.
func New(
	runner Runner,
	est Estimator,
	budget Budget,
	keys Keys,
	hub ClientCounter,
	model string,
	pricing tokenizer.PricingTable,
) *Handler {
	return &Handler{
		runner:    runner,
		estimator: est,
		budget:    budget,
		keys:      keys,
		hub:       hub,
		model:     model,
		pricing:   pricing,
	}
}

type response struct {
	Success            bool        `json:"success"`
	Data               interface{} `json:"data,omitempty"`
	Error              string      `json:"error,omitempty"`
	NeedsConfiguration bool        `json:"needs_configuration,omitempty"`
}

func ok(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response{Success: true, Data: data}); err != nil {
		log.Debugf("handlers.ok: encode: %v", err)
	}
}

func fail(w http.ResponseWriter, code int, msg string) {
	write(w, code, response{Success: false, Error: msg})
}

func write(w http.ResponseWriter, code int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debugf("handlers.write: encode: %v", err)
	}
}

// failRun maps a run error onto a status code and the user-facing message.
func failRun(w http.ResponseWriter, err error) {
	var remote *gemini.RemoteError
	resp := response{Success: false, Error: gemini.UserMessage(err)}
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, gemini.ErrConfiguration):
		code = http.StatusPreconditionFailed
		resp.NeedsConfiguration = true
	case errors.Is(err, gemini.ErrRateLimited):
		code = http.StatusTooManyRequests
	case errors.Is(err, compare.ErrRunInProgress):
		code = http.StatusConflict
		resp.Error = err.Error()
	case errors.As(err, &remote):
		code = http.StatusBadGateway
	}
	write(w, code, resp)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
