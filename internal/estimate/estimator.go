// Package estimate keeps a live, debounced token and input-cost estimate for
// the current inputs. Estimates are best-effort: a count that fails reads as 0.
package estimate

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/compare"
	"github.com/Manjussha/promptvs/internal/gemini"
	"github.com/Manjussha/promptvs/internal/tokenizer"
)

// DefaultDelay is the quiet period after the last edit before counting.
const DefaultDelay = 600 * time.Millisecond

// Counter counts tokens without ever failing.
type Counter interface {
	TryCountTokens(ctx context.Context, apiKey, text string) gemini.CountResult
}

// Credentials supplies the API key. A missing key yields zero counts.
type Credentials interface {
	APIKey() (string, bool)
}

// StrategyEstimate is the projected input side of one strategy.
type StrategyEstimate struct {
	InputTokens int    `json:"input_tokens"`
	InputCost   string `json:"input_cost"`
}

// Estimate is one applied count batch.
type Estimate struct {
	Generation          uint64           `json:"generation"`
	BaseTokens          int              `json:"base_tokens"`
	SimplePromptTokens  int              `json:"simple_prompt_tokens"`
	ContextPromptTokens int              `json:"context_prompt_tokens"`
	Simple              StrategyEstimate `json:"simple"`
	Context             StrategyEstimate `json:"context"`
	// Complete is false when any of the three counts was unavailable.
	Complete  bool      `json:"complete"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.delay = d
		}
	}
}

// WithPricing sets the prices used for input cost.
func WithPricing(p tokenizer.PricingTable) Option {
	return func(e *Estimator) { e.pricing = p }
}

// WithObserver registers fn to receive every applied estimate.
func WithObserver(fn func(Estimate)) Option {
	return func(e *Estimator) { e.observers = append(e.observers, fn) }
}

// Estimator debounces edits and applies only the newest batch of counts.
type Estimator struct {
	counter   Counter
	creds     Credentials
	pricing   tokenizer.PricingTable
	delay     time.Duration
	observers []func(Estimate)

	mu      sync.Mutex
	input   compare.Input
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	latest  Estimate
	stopped bool
}

// New creates an Estimator with no input scheduled.
func New(counter Counter, creds Credentials, opts ...Option) *Estimator {
	e := &Estimator{
		counter: counter,
		creds:   creds,
		pricing: tokenizer.DefaultPricing,
		delay:   DefaultDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit replaces the current input and restarts the quiet period. Any pending
// or in-flight batch for older input is superseded.
func (e *Estimator) Edit(in compare.Input) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	e.input = in
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	gen := e.gen
	e.timer = time.AfterFunc(e.delay, func() { e.fire(gen) })
}

// Input returns the most recently edited input.
func (e *Estimator) Input() compare.Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// Latest returns the most recently applied estimate.
func (e *Estimator) Latest() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Stop cancels pending work. Later edits are ignored.
func (e *Estimator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Estimator) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.stopped {
		e.mu.Unlock()
		return
	}
	in := e.input
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	apiKey, _ := e.creds.APIKey()

	var base, simple, contextual gemini.CountResult
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); base = e.counter.TryCountTokens(ctx, apiKey, in.BaseText) }()
	go func() { defer wg.Done(); simple = e.counter.TryCountTokens(ctx, apiKey, in.SimplePrompt) }()
	go func() { defer wg.Done(); contextual = e.counter.TryCountTokens(ctx, apiKey, in.ContextPrompt) }()
	wg.Wait()

	est := e.build(gen, base, simple, contextual)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		log.Debugf("estimate.fire: dropping stale batch %d", gen)
		return
	}
	e.latest = est
	e.cancel = nil
	e.mu.Unlock()

	for _, fn := range e.observers {
		fn(est)
	}
}

func (e *Estimator) build(gen uint64, base, simple, contextual gemini.CountResult) Estimate {
	b, s, c := base.OrZero(), simple.OrZero(), contextual.OrZero()
	return Estimate{
		Generation:          gen,
		BaseTokens:          b,
		SimplePromptTokens:  s,
		ContextPromptTokens: c,
		Simple:              e.strategy(b + s),
		Context:             e.strategy(b + c),
		Complete:            base.Available && simple.Available && contextual.Available,
		UpdatedAt:           time.Now(),
	}
}

func (e *Estimator) strategy(tokens int) StrategyEstimate {
	return StrategyEstimate{
		InputTokens: tokens,
		InputCost:   tokenizer.FormatCost(tokenizer.EstimateCost(tokens, e.pricing.InputPer1M)),
	}
}
