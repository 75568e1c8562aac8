// Package compare runs a simple prompt and a context-engineered prompt against
// the same base text and assembles comparable usage and cost summaries.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/gemini"
	"github.com/Manjussha/promptvs/internal/tokenizer"
)

// State is the lifecycle state of the orchestrator.
type State string

const (
	StateIdle               State = "idle"
	StateRunning            State = "running"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
	StateNeedsConfiguration State = "needs_configuration"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a comparison is already running")

// Generator is the remote inference backend.
type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string) (*gemini.Generation, error)
	CountTokens(ctx context.Context, apiKey, text string) (int, error)
}

// Budget gates runs and records billed calls.
type Budget interface {
	MayProceed() bool
	RecordSuccess(tokens int)
}

// Credentials supplies the API key for a run.
type Credentials interface {
	APIKey() (string, bool)
}

// Result is the outcome of one strategy.
type Result struct {
	Strategy Strategy                `json:"strategy"`
	Output   string                  `json:"output"`
	Usage    tokenizer.TokenUsage    `json:"usage"`
	Cost     tokenizer.CostBreakdown `json:"cost"`
	// ServerTotalTokens is what the API billed, wrapper tokens included.
	ServerTotalTokens int   `json:"server_total_tokens"`
	LatencyMs         int64 `json:"latency_ms"`
}

// Comparison is one completed run.
type Comparison struct {
	ID             string    `json:"id"`
	Model          string    `json:"model,omitempty"`
	Input          Input     `json:"input"`
	Simple         *Result   `json:"simple"`
	Context        *Result   `json:"context"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// String summarizes the comparison for chat notifications.
func (c *Comparison) String() string {
	if c == nil || c.Simple == nil || c.Context == nil {
		return "no comparison"
	}
	return fmt.Sprintf("run %s: simple %d tok $%s, context %d tok $%s, %dms",
		c.ID, c.Simple.Usage.TotalTokens, c.Simple.Cost.Total,
		c.Context.Usage.TotalTokens, c.Context.Cost.Total, c.TotalLatencyMs)
}

// Event reports a state transition.
type Event struct {
	RunID       string      `json:"run_id,omitempty"`
	State       State       `json:"state"`
	Error       string      `json:"error,omitempty"`
	RateLimited bool        `json:"rate_limited,omitempty"`
	Comparison  *Comparison `json:"comparison,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPricing sets the prices used for result costs.
func WithPricing(p tokenizer.PricingTable) Option {
	return func(o *Orchestrator) { o.pricing = p }
}

// WithModel records the model name on each comparison.
func WithModel(name string) Option {
	return func(o *Orchestrator) { o.model = name }
}

// WithObserver registers fn to be called on every state transition.
// Observers run synchronously and must not call back into the Orchestrator.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// Orchestrator runs one comparison at a time.
type Orchestrator struct {
	gen       Generator
	budget    Budget
	creds     Credentials
	pricing   tokenizer.PricingTable
	model     string
	observers []func(Event)

	mu      sync.Mutex
	state   State
	last    *Comparison
	lastErr string
}

// New creates an idle Orchestrator.
func New(gen Generator, budget Budget, creds Credentials, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		budget:  budget,
		creds:   creds,
		pricing: tokenizer.DefaultPricing,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Last returns the last completed comparison, or nil.
func (o *Orchestrator) Last() *Comparison {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// LastError returns the user-facing message of the last failure, if the
// orchestrator is in a failed or needs-configuration state.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Reset discards the last comparison and returns to Idle. It is a no-op while running.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return
	}
	o.state = StateIdle
	o.last = nil
	o.lastErr = ""
	o.mu.Unlock()
	o.emit(Event{State: StateIdle})
}

// Run compares both strategies on in. It returns gemini.ErrConfiguration
// without contacting the budget or the network when no key is set, and
// gemini.ErrRateLimited without any network call when the budget is spent.
// Any remote failure aborts the whole run; calls that did succeed are still
// recorded against the budget because they were billed.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Comparison, error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	runID := uuid.NewString()

	apiKey, ok := o.creds.APIKey()
	if !ok {
		o.state = StateNeedsConfiguration
		o.lastErr = gemini.UserMessage(gemini.ErrConfiguration)
		o.mu.Unlock()
		o.emit(Event{RunID: runID, State: StateNeedsConfiguration, Error: gemini.UserMessage(gemini.ErrConfiguration)})
		return nil, gemini.ErrConfiguration
	}

	o.last = nil
	if !o.budget.MayProceed() {
		o.state = StateFailed
		o.lastErr = gemini.RateLimitMessage
		o.mu.Unlock()
		log.Warnf("compare.Run: local request budget exhausted, run %s not sent", runID)
		o.emit(Event{RunID: runID, State: StateFailed, Error: gemini.RateLimitMessage, RateLimited: true})
		return nil, gemini.ErrRateLimited
	}

	o.state = StateRunning
	o.lastErr = ""
	o.mu.Unlock()
	o.emit(Event{RunID: runID, State: StateRunning})

	cmp, err := o.execute(ctx, runID, apiKey, in)

	o.mu.Lock()
	if err != nil {
		o.state = StateFailed
		o.lastErr = gemini.UserMessage(err)
	} else {
		o.state = StateCompleted
		o.last = cmp
	}
	o.mu.Unlock()

	if err != nil {
		log.Errorf("compare.Run: run %s failed: %v", runID, err)
		o.emit(Event{
			RunID:       runID,
			State:       StateFailed,
			Error:       gemini.UserMessage(err),
			RateLimited: errors.Is(err, gemini.ErrRateLimited),
		})
		return nil, err
	}
	log.Infof("compare.Run: run %s completed in %dms", runID, cmp.TotalLatencyMs)
	o.emit(Event{RunID: runID, State: StateCompleted, Comparison: cmp})
	return cmp, nil
}

type generation struct {
	gen     *gemini.Generation
	latency time.Duration
	err     error
}

type count struct {
	tokens int
	err    error
}

// execute dispatches both generations and the three exact counts together.
// Total latency spans dispatch until both generations have resolved.
func (o *Orchestrator) execute(ctx context.Context, runID, apiKey string, in Input) (*Comparison, error) {
	var (
		simple, contextual                 generation
		base, simplePrompt, contextPrompt count
		gens, counts                       sync.WaitGroup
	)

	started := time.Now()
	gens.Add(2)
	go func() {
		defer gens.Done()
		simple = o.generate(ctx, apiKey, ComposePrompt(in.SimplePrompt, in.BaseText))
	}()
	go func() {
		defer gens.Done()
		contextual = o.generate(ctx, apiKey, ComposePrompt(in.ContextPrompt, in.BaseText))
	}()

	counts.Add(3)
	for _, job := range []struct {
		text string
		out  *count
	}{
		{in.BaseText, &base},
		{in.SimplePrompt, &simplePrompt},
		{in.ContextPrompt, &contextPrompt},
	} {
		go func(text string, out *count) {
			defer counts.Done()
			n, err := o.gen.CountTokens(ctx, apiKey, text)
			*out = count{tokens: n, err: err}
		}(job.text, job.out)
	}

	gens.Wait()
	total := time.Since(started)
	counts.Wait()

	switch {
	case simple.err != nil:
		return nil, fmt.Errorf("compare.Run: %s generate: %w", StrategySimple, simple.err)
	case contextual.err != nil:
		return nil, fmt.Errorf("compare.Run: %s generate: %w", StrategyContext, contextual.err)
	case base.err != nil:
		return nil, fmt.Errorf("compare.Run: count base text: %w", base.err)
	case simplePrompt.err != nil:
		return nil, fmt.Errorf("compare.Run: count %s prompt: %w", StrategySimple, simplePrompt.err)
	case contextPrompt.err != nil:
		return nil, fmt.Errorf("compare.Run: count %s prompt: %w", StrategyContext, contextPrompt.err)
	}

	return &Comparison{
		ID:             runID,
		Model:          o.model,
		Input:          in,
		Simple:         o.result(StrategySimple, simple, base.tokens, simplePrompt.tokens),
		Context:        o.result(StrategyContext, contextual, base.tokens, contextPrompt.tokens),
		TotalLatencyMs: total.Milliseconds(),
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}, nil
}

// generate times one call and records it against the budget as soon as it succeeds.
func (o *Orchestrator) generate(ctx context.Context, apiKey, prompt string) generation {
	start := time.Now()
	gen, err := o.gen.Generate(ctx, apiKey, prompt)
	latency := time.Since(start)
	if err != nil {
		return generation{latency: latency, err: err}
	}
	o.budget.RecordSuccess(gen.TotalTokens)
	return generation{gen: gen, latency: latency}
}

func (o *Orchestrator) result(s Strategy, g generation, baseTokens, promptTokens int) *Result {
	u := tokenizer.NewTokenUsage(baseTokens, promptTokens, g.gen.OutputTokens)
	return &Result{
		Strategy:          s,
		Output:            g.gen.Text,
		Usage:             u,
		Cost:              o.pricing.Breakdown(u),
		ServerTotalTokens: g.gen.TotalTokens,
		LatencyMs:         g.latency.Milliseconds(),
	}
}

func (o *Orchestrator) emit(ev Event) {
	for _, fn := range o.observers {
		fn(ev)
	}
}
