package usage

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Window is a trailing time window with a maximum request count.
type Window struct {
	Duration time.Duration
	MaxCount int
}

// Free-tier limits for the Gemini flash models.
var (
	MinuteWindow = Window{Duration: time.Minute, MaxCount: 15}
	DayWindow    = Window{Duration: 24 * time.Hour, MaxCount: 1500}
)

// Snapshot describes the ledger as seen by the governor at one instant.
type Snapshot struct {
	RequestsLastMinute int           `json:"requests_last_minute"`
	RequestsLastDay    int           `json:"requests_last_day"`
	TokensLastDay      int           `json:"tokens_last_day"`
	MinuteLimit        int           `json:"minute_limit"`
	DayLimit           int           `json:"day_limit"`
	MayProceed         bool          `json:"may_proceed"`
	RetryAfter         time.Duration `json:"retry_after_ns"`
	TakenAt            time.Time     `json:"taken_at"`
}

// Governor decides whether a new remote request may proceed, based only on
// locally recorded successes. It cannot see requests made by other clients
// sharing the same credential, so it is a best-effort approximation.
type Governor struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	minute Window
	day    Window
}

// NewGovernor creates a Governor with the free-tier windows.
func NewGovernor(store Store) *Governor {
	return &Governor{
		store:  store,
		now:    time.Now,
		minute: MinuteWindow,
		day:    DayWindow,
	}
}

// WithClock replaces the time source. Used by tests.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// MayProceed reports whether fewer than the maximum number of requests were
// recorded in both trailing windows. Storage problems read as an empty ledger.
func (g *Governor) MayProceed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	records := g.store.Load()
	nowMs := g.now().UnixMilli()
	minute := countWithin(records, nowMs, g.minute.Duration)
	day := countWithin(records, nowMs, g.day.Duration)
	return minute < g.minute.MaxCount && day < g.day.MaxCount
}

// RecordSuccess prunes records older than the day window and appends one for
// a call the remote side confirmed. Must not be called for failed calls.
// Storage errors are logged, not returned.
func (g *Governor) RecordSuccess(tokens int) {
	if tokens < 0 {
		tokens = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	nowMs := now.UnixMilli()
	records := g.store.Load()

	active := records[:0]
	for _, r := range records {
		if nowMs-r.Timestamp < g.day.Duration.Milliseconds() {
			active = append(active, r)
		}
	}
	active = append(active, Record{Timestamp: nowMs, Tokens: tokens})

	if err := g.store.Save(active); err != nil {
		log.Errorf("usage.RecordSuccess: %v", err)
		return
	}
	log.Debugf("usage.RecordSuccess: tokens=%d ledger=%d", tokens, len(active))
}

// Snapshot reports window counts without modifying the ledger.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	nowMs := now.UnixMilli()
	records := g.store.Load()

	var minuteTS, dayTS []int64
	tokens := 0
	for _, r := range records {
		age := nowMs - r.Timestamp
		if age < g.day.Duration.Milliseconds() {
			dayTS = append(dayTS, r.Timestamp)
			tokens += r.Tokens
		}
		if age < g.minute.Duration.Milliseconds() {
			minuteTS = append(minuteTS, r.Timestamp)
		}
	}

	s := Snapshot{
		RequestsLastMinute: len(minuteTS),
		RequestsLastDay:    len(dayTS),
		TokensLastDay:      tokens,
		MinuteLimit:        g.minute.MaxCount,
		DayLimit:           g.day.MaxCount,
		TakenAt:            now,
	}
	s.MayProceed = s.RequestsLastMinute < s.MinuteLimit && s.RequestsLastDay < s.DayLimit
	if !s.MayProceed {
		s.RetryAfter = maxDuration(
			retryAfter(minuteTS, nowMs, g.minute),
			retryAfter(dayTS, nowMs, g.day),
		)
	}
	return s
}

func countWithin(records []Record, nowMs int64, d time.Duration) int {
	n := 0
	for _, r := range records {
		if nowMs-r.Timestamp < d.Milliseconds() {
			n++
		}
	}
	return n
}

// retryAfter returns how long until enough in-window records expire for the
// count to drop below the window maximum.
func retryAfter(inWindow []int64, nowMs int64, w Window) time.Duration {
	if len(inWindow) < w.MaxCount {
		return 0
	}
	sorted := append([]int64(nil), inWindow...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	expiresAt := sorted[len(sorted)-w.MaxCount] + w.Duration.Milliseconds()
	if expiresAt <= nowMs {
		return 0
	}
	return time.Duration(expiresAt-nowMs) * time.Millisecond
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
